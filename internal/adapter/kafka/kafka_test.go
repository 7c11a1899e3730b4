package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lovoo/goka"
	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/pkg/schema"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type MockProducerClient struct {
	mock.Mock
}

func (m *MockProducerClient) ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	args := m.Called(ctx, rs)
	return args.Get(0).(kgo.ProduceResults)
}

func (m *MockProducerClient) TryProduce(
	ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error),
) {
	m.Called(ctx, r, promise)
}

func (m *MockProducerClient) Close() {
	m.Called()
}

type MockConsumerClient struct {
	mock.Mock
}

func (m *MockConsumerClient) PollFetches(ctx context.Context) kgo.Fetches {
	args := m.Called(ctx)
	return args.Get(0).(kgo.Fetches)
}

func (m *MockConsumerClient) CommitUncommittedOffsets(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConsumerClient) Close() {
	m.Called()
}

// jsonSerde stands in for the registry framed serde.
type jsonSerde struct{}

func (jsonSerde) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonSerde) Decode(b []byte, v any) error {
	return json.Unmarshal(b, v)
}

type failingEncoder struct{}

func (failingEncoder) Encode(any) ([]byte, error) {
	return nil, errors.New("encode failed")
}

func okResults(rs []*kgo.Record) kgo.ProduceResults {
	res := make(kgo.ProduceResults, len(rs))
	for i, r := range rs {
		res[i] = kgo.ProduceResult{Record: r}
	}
	return res
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func testCatalog() domain.Catalog {
	return domain.Catalog{
		Products: []domain.Product{
			{
				ID: "10", Title: "Laptop", Category: "electronics",
				Price: decimal.RequireFromString("999.90"), OriginalPrice: price("1199.90"),
				Stock: 2, Rating: 4.5, ReviewCount: 12, Featured: true,
				Tags: []string{"popular"}, Image: "laptop.png",
			},
			{
				ID: "11", Title: "Camiseta", Category: "clothing",
				Price: decimal.RequireFromString("19.99"), Tags: []string{},
			},
		},
		Categories: []domain.Category{
			{ID: "electronics", Name: "Electrónica", Icon: "💻"},
			{ID: "clothing", Name: "Ropa", Icon: "👕"},
		},
	}
}

func TestProductMapping(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		p := testCatalog().Products[0]
		s := productToSchemaV1(p, 3)
		assert.Equal(t, "999.9", s.Price)
		require.NotNil(t, s.OriginalPrice)
		assert.Equal(t, 3, s.Position)

		got, err := schemaV1ToProduct(s)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.True(t, p.Price.Equal(got.Price))
		assert.True(t, p.OriginalPrice.Equal(*got.OriginalPrice))
		assert.Equal(t, p.Tags, got.Tags)
		assert.True(t, got.HasDiscount())
	})

	t.Run("WithoutOriginalPrice", func(t *testing.T) {
		s := productToSchemaV1(testCatalog().Products[1], 0)
		assert.Nil(t, s.OriginalPrice)

		got, err := schemaV1ToProduct(s)
		require.NoError(t, err)
		assert.Nil(t, got.OriginalPrice)
	})

	t.Run("BadPrice", func(t *testing.T) {
		_, err := schemaV1ToProduct(schema.ProductV1{ID: "1", Price: "free"})
		assert.Error(t, err)

		bad := "n/a"
		_, err = schemaV1ToProduct(schema.ProductV1{ID: "1", Price: "1", OriginalPrice: &bad})
		assert.Error(t, err)
	})
}

func TestFilterEventMapping(t *testing.T) {
	st := domain.DefaultFilterState()
	st.Status.Add(domain.StatusNew)
	st.Status.Add(domain.StatusFeatured)
	st.Tags.Add("oferta")
	ev := domain.FilterEvent{
		EventID:    "e1",
		SessionID:  "s1",
		OccurredAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		State:      st,
		Visible:    2,
		Total:      5,
	}

	s := filterEventToSchemaV1(ev)
	assert.Equal(t, []string{"featured", "new"}, s.Status)
	assert.Equal(t, []string{"oferta"}, s.Tags)
	assert.Equal(t, "all", s.Category)
	assert.True(t, s.ShowOutOfStock)
	assert.Equal(t, 2, s.Visible)
	assert.Equal(t, 5, s.Total)
}

func TestCatalogProducer(t *testing.T) {
	newProducer := func(t *testing.T, cl ProducerClient, products Encoder) CatalogProducer {
		t.Helper()
		p, err := NewCatalogProducer(
			ProducerWithClientOpt(cl),
			ProductsTopicOpt("products", products),
			CategoriesTopicOpt("categories", jsonSerde{}),
		)
		require.NoError(t, err)
		return p
	}

	t.Run("ProducesCategoriesThenProducts", func(t *testing.T) {
		cl := new(MockProducerClient)
		var sent []*kgo.Record
		cl.On("ProduceSync", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				sent = args.Get(1).([]*kgo.Record)
			}).
			Return(kgo.ProduceResults{}).Once()

		p := newProducer(t, cl, jsonSerde{})
		require.NoError(t, p.ProduceCatalog(t.Context(), testCatalog()))

		require.Len(t, sent, 4)
		assert.Equal(t, "categories", sent[0].Topic)
		assert.Equal(t, "electronics", string(sent[0].Key))
		assert.Equal(t, "categories", sent[1].Topic)
		assert.Equal(t, "products", sent[2].Topic)
		assert.Equal(t, "10", string(sent[2].Key))
		assert.Equal(t, "11", string(sent[3].Key))

		var s schema.ProductV1
		require.NoError(t, json.Unmarshal(sent[3].Value, &s))
		assert.Equal(t, 1, s.Position)
		cl.AssertExpectations(t)
	})

	t.Run("BrokerError", func(t *testing.T) {
		cl := new(MockProducerClient)
		cl.On("ProduceSync", mock.Anything, mock.Anything).
			Return(kgo.ProduceResults{{Err: kgo.ErrRecordTimeout}})

		p := newProducer(t, cl, jsonSerde{})
		err := p.ProduceCatalog(t.Context(), testCatalog())
		assert.ErrorIs(t, err, kgo.ErrRecordTimeout)
	})

	t.Run("EncodeError", func(t *testing.T) {
		cl := new(MockProducerClient)
		p := newProducer(t, cl, failingEncoder{})
		err := p.ProduceCatalog(t.Context(), testCatalog())
		assert.ErrorContains(t, err, "encode failed")
		cl.AssertNotCalled(t, "ProduceSync", mock.Anything, mock.Anything)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		cl := new(MockProducerClient)
		p := newProducer(t, cl, jsonSerde{})
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		assert.ErrorIs(t, p.ProduceCatalog(ctx, testCatalog()), context.Canceled)
	})

	t.Run("TooFewOpts", func(t *testing.T) {
		assert.Panics(t, func() {
			_, _ = NewCatalogProducer(ProducerWithClientOpt(new(MockProducerClient)))
		})
	})

	t.Run("EmptyTopic", func(t *testing.T) {
		_, err := NewCatalogProducer(ProductsTopicOpt("", jsonSerde{}))
		assert.Error(t, err)
	})

	t.Run("Close", func(t *testing.T) {
		cl := new(MockProducerClient)
		cl.On("Close").Once()
		newProducer(t, cl, jsonSerde{}).Close()
		cl.AssertExpectations(t)
	})
}

func TestFilterEventProducer(t *testing.T) {
	newEventProducer := func(t *testing.T, cl ProducerClient) FilterEventProducer {
		t.Helper()
		p, err := NewFilterEventProducer(
			ProducerWithClientOpt(cl),
			FilterEventsTopicOpt("filter-events", jsonSerde{}),
		)
		require.NoError(t, err)
		return p
	}
	ev := domain.FilterEvent{EventID: "e1", SessionID: "s1", State: domain.DefaultFilterState()}

	t.Run("BuffersRecordWithoutWaiting", func(t *testing.T) {
		cl := new(MockProducerClient)
		var (
			sent    *kgo.Record
			sentCtx context.Context
		)
		cl.On("TryProduce", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				sentCtx = args.Get(0).(context.Context)
				sent = args.Get(1).(*kgo.Record)
			}).
			Once()

		ctx, cancel := context.WithCancel(t.Context())
		require.NoError(t, newEventProducer(t, cl).PublishFilterEvent(ctx, ev))
		cancel()

		require.NotNil(t, sent)
		assert.Equal(t, "filter-events", sent.Topic)
		assert.Equal(t, "s1", string(sent.Key))
		assert.NoError(t, sentCtx.Err())
		cl.AssertNotCalled(t, "ProduceSync", mock.Anything, mock.Anything)
	})

	t.Run("DeliveryErrorIsNotReturned", func(t *testing.T) {
		cl := new(MockProducerClient)
		cl.On("TryProduce", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				promise := args.Get(2).(func(*kgo.Record, error))
				promise(args.Get(1).(*kgo.Record), kgo.ErrRecordTimeout)
			}).
			Once()

		assert.NoError(t, newEventProducer(t, cl).PublishFilterEvent(t.Context(), ev))
		cl.AssertExpectations(t)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		cl := new(MockProducerClient)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		err := newEventProducer(t, cl).PublishFilterEvent(ctx, ev)
		assert.ErrorIs(t, err, context.Canceled)
		cl.AssertNotCalled(t, "TryProduce", mock.Anything, mock.Anything, mock.Anything)
	})
}

type fakeIterator struct {
	keys   []string
	values []any
	pos    int
	err    error
	closed bool
}

func (it *fakeIterator) Next() bool {
	it.pos++
	return it.pos <= len(it.keys)
}

func (it *fakeIterator) Err() error { return it.err }

func (it *fakeIterator) Key() string { return it.keys[it.pos-1] }

func (it *fakeIterator) Value() (any, error) {
	v := it.values[it.pos-1]
	if err, ok := v.(error); ok {
		return nil, err
	}
	return v, nil
}

func (it *fakeIterator) Release() { it.closed = true }

func (it *fakeIterator) Seek(string) bool { return false }

type fakeTable struct {
	recovered bool
	it        *fakeIterator
}

func (t *fakeTable) Recovered() bool { return t.recovered }

func (t *fakeTable) Iterator() (goka.Iterator, error) {
	return t.it, nil
}

func TestCollect(t *testing.T) {
	t.Run("SkipsTombstones", func(t *testing.T) {
		it := &fakeIterator{
			keys:   []string{"a", "b"},
			values: []any{schema.CategoryV1{ID: "a"}, nil},
		}
		got, err := collect[schema.CategoryV1](&fakeTable{it: it})
		require.NoError(t, err)
		assert.Equal(t, []schema.CategoryV1{{ID: "a"}}, got)
		assert.True(t, it.closed)
	})

	t.Run("WrongType", func(t *testing.T) {
		it := &fakeIterator{keys: []string{"a"}, values: []any{"text"}}
		_, err := collect[schema.CategoryV1](&fakeTable{it: it})
		assert.ErrorIs(t, err, ErrInvalidValueType)
	})

	t.Run("ValueError", func(t *testing.T) {
		it := &fakeIterator{keys: []string{"a"}, values: []any{errors.New("corrupt")}}
		_, err := collect[schema.CategoryV1](&fakeTable{it: it})
		assert.ErrorContains(t, err, "corrupt")
	})
}

func TestCatalogViewFetch(t *testing.T) {
	c := testCatalog()
	products := &fakeTable{recovered: true, it: &fakeIterator{
		keys: []string{"11", "10"},
		values: []any{
			productToSchemaV1(c.Products[1], 1),
			productToSchemaV1(c.Products[0], 0),
		},
	}}
	categories := &fakeTable{recovered: true, it: &fakeIterator{
		keys: []string{"clothing", "electronics"},
		values: []any{
			categoryToSchemaV1(c.Categories[1], 1),
			categoryToSchemaV1(c.Categories[0], 0),
		},
	}}

	v := &CatalogView{products: products, categories: categories}
	assert.Equal(t, "kafka", v.Name())

	got, err := v.Fetch(t.Context())
	require.NoError(t, err)
	require.Len(t, got.Products, 2)
	assert.Equal(t, domain.ProductID("10"), got.Products[0].ID)
	assert.Equal(t, domain.ProductID("11"), got.Products[1].ID)
	assert.Equal(t, c.Categories, got.Categories)
	require.NoError(t, domain.ValidateCatalog(got))

	t.Run("Recovering", func(t *testing.T) {
		v := &CatalogView{
			products:   &fakeTable{recovered: false},
			categories: &fakeTable{recovered: true},
		}
		_, err := v.Fetch(t.Context())
		assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	})

	t.Run("EmptyTables", func(t *testing.T) {
		v := &CatalogView{
			products:   &fakeTable{recovered: true, it: &fakeIterator{}},
			categories: &fakeTable{recovered: true, it: &fakeIterator{}},
		}
		_, err := v.Fetch(t.Context())
		assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	})

	t.Run("BadDecimal", func(t *testing.T) {
		v := &CatalogView{
			products: &fakeTable{recovered: true, it: &fakeIterator{
				keys:   []string{"1"},
				values: []any{schema.ProductV1{ID: "1", Price: "x"}},
			}},
			categories: &fakeTable{recovered: true, it: &fakeIterator{}},
		}
		_, err := v.Fetch(t.Context())
		assert.ErrorIs(t, err, domain.ErrInvalidCatalog)
	})
}

func TestSchemaCodec(t *testing.T) {
	codec := newCategoryCodec(jsonSerde{})

	b, err := codec.Encode(schema.CategoryV1{ID: "a", Name: "A"})
	require.NoError(t, err)

	v, err := codec.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, schema.CategoryV1{ID: "a", Name: "A"}, v)

	_, err = codec.Encode(schema.ProductV1{})
	assert.ErrorIs(t, err, ErrInvalidValueType)
}

func fetchesWith(topic string, n int) kgo.Fetches {
	rs := make([]*kgo.Record, n)
	for i := range n {
		rs[i] = &kgo.Record{Topic: topic}
	}
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      topic,
		Partitions: []kgo.FetchPartition{{Partition: 0, Records: rs}},
	}}}}
}

func TestCatalogChangeConsumer(t *testing.T) {
	t.Run("NotifiesAndCommits", func(t *testing.T) {
		cl := new(MockConsumerClient)
		cl.On("PollFetches", mock.Anything).Return(fetchesWith("products", 3)).Once()
		cl.On("CommitUncommittedOffsets", mock.Anything).Return(nil).Once()

		var got int
		c, err := NewCatalogChangeConsumer(
			ConsumerWithClientOpt(cl),
			ConsumerNotifyOpt(func(n int) { got += n }),
		)
		require.NoError(t, err)

		require.NoError(t, c.consume(t.Context()))
		assert.Equal(t, 3, got)
		cl.AssertExpectations(t)
	})

	t.Run("EmptyPollDoesNotNotify", func(t *testing.T) {
		cl := new(MockConsumerClient)
		cl.On("PollFetches", mock.Anything).Return(kgo.Fetches{}).Once()

		c, err := NewCatalogChangeConsumer(
			ConsumerWithClientOpt(cl),
			ConsumerNotifyOpt(func(int) { t.Fatal("unexpected notify") }),
		)
		require.NoError(t, err)
		require.NoError(t, c.consume(t.Context()))
		cl.AssertNotCalled(t, "CommitUncommittedOffsets", mock.Anything)
	})

	t.Run("PartitionErrors", func(t *testing.T) {
		cl := new(MockConsumerClient)
		fs := kgo.Fetches{{Topics: []kgo.FetchTopic{{
			Topic: "products",
			Partitions: []kgo.FetchPartition{
				{Partition: 0, Err: errors.New("leader moved")},
				{Partition: 1, Err: errors.New("offset out of range")},
			},
		}}}}
		cl.On("PollFetches", mock.Anything).Return(fs).Once()

		c, err := NewCatalogChangeConsumer(
			ConsumerWithClientOpt(cl),
			ConsumerNotifyOpt(func(int) {}),
		)
		require.NoError(t, err)
		err = c.consume(t.Context())
		assert.ErrorContains(t, err, "leader moved")
		assert.ErrorContains(t, err, "offset out of range")
	})

	t.Run("RunStopsOnCancel", func(t *testing.T) {
		cl := new(MockConsumerClient)
		ctx, cancel := context.WithCancel(t.Context())
		cl.On("PollFetches", mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(kgo.Fetches{})

		c, err := NewCatalogChangeConsumer(
			ConsumerWithClientOpt(cl),
			ConsumerNotifyOpt(func(int) {}),
		)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Run(ctx)
		}()
		wg.Wait()
	})

	t.Run("TooFewOpts", func(t *testing.T) {
		assert.Panics(t, func() {
			_, _ = NewCatalogChangeConsumer(ConsumerWithClientOpt(new(MockConsumerClient)))
		})
	})
}
