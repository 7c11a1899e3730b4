package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"time"

	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/internal/core/port"
	"github.com/twmb/franz-go/pkg/kgo"
)

var (
	_ port.CatalogProducer      = (*CatalogProducer)(nil)
	_ port.FilterEventPublisher = (*FilterEventProducer)(nil)
)

// DefaultRecordDeliveryTimeout bounds how long a record may wait for the
// broker, retries included.
const DefaultRecordDeliveryTimeout = 10 * time.Second

type ProducerOpt func(*producerOpts) error

type target struct {
	topic   string
	encoder Encoder
}

type producerOpts struct {
	cl         ProducerClient
	products   *target
	categories *target
	events     *target
}

func ProducerClientOpt(
	ctx context.Context, seedBrokers []string, tlsConfig *tls.Config,
) ProducerOpt {
	return func(opts *producerOpts) error {
		kopts := append(
			ClientOpts(seedBrokers, tlsConfig),
			kgo.RequiredAcks(kgo.AllISRAcks()),
			kgo.AllowAutoTopicCreation(),
			kgo.RecordDeliveryTimeout(DefaultRecordDeliveryTimeout),
		)
		cl, err := kgo.NewClient(kopts...)
		if err != nil {
			return err
		}

		if err := cl.Ping(ctx); err != nil {
			cl.Close()
			return err
		}
		opts.cl = cl
		return nil
	}
}

// ProducerWithClientOpt uses an existing client.
func ProducerWithClientOpt(cl ProducerClient) ProducerOpt {
	return func(opts *producerOpts) error {
		if cl == nil {
			return errors.New("client is nil")
		}
		opts.cl = cl
		return nil
	}
}

func newTarget(topic string, encoder Encoder) (*target, error) {
	if topic == "" {
		return nil, errors.New("topic is empty string")
	}
	if encoder == nil {
		return nil, errors.New("encoder is nil")
	}
	return &target{topic: topic, encoder: encoder}, nil
}

func ProductsTopicOpt(topic string, encoder Encoder) ProducerOpt {
	return func(opts *producerOpts) (err error) {
		opts.products, err = newTarget(topic, encoder)
		return
	}
}

func CategoriesTopicOpt(topic string, encoder Encoder) ProducerOpt {
	return func(opts *producerOpts) (err error) {
		opts.categories, err = newTarget(topic, encoder)
		return
	}
}

func FilterEventsTopicOpt(topic string, encoder Encoder) ProducerOpt {
	return func(opts *producerOpts) (err error) {
		opts.events, err = newTarget(topic, encoder)
		return
	}
}

func (o *producerOpts) apply(opts ...ProducerOpt) error {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return err
		}
	}
	return nil
}

// A producer is used for composition.
//
// Producing records to kafka broker and closing underlying [kgo.Client].
type producer struct {
	opPrefix string
	cl       ProducerClient
}

func (p producer) close() {
	const op = "close"
	log := slog.With("op", makeOp(p.opPrefix, op))
	log.Info("closing producer...")
	p.cl.Close()
	log.Info("producer is closed")
}

func (p producer) produce(
	ctx context.Context, rs ...*kgo.Record,
) error {
	const op = "produce"
	res := p.cl.ProduceSync(ctx, rs...)
	if err := res.FirstErr(); err != nil {
		return opErr(err, p.opPrefix, op)
	}
	return nil
}

// produceAsync buffers r and returns at once. A full buffer fails r instead
// of waiting; delivery errors are logged.
func (p producer) produceAsync(ctx context.Context, r *kgo.Record) {
	const op = "produceAsync"
	log := slog.With("op", makeOp(p.opPrefix, op))

	// the record outlives the caller
	p.cl.TryProduce(context.WithoutCancel(ctx), r, func(r *kgo.Record, err error) {
		if err != nil {
			log.Warn("failed to deliver record", "topic", r.Topic, "err", err)
		}
	})
}

func encodeRecord(t *target, key string, v any) (*kgo.Record, error) {
	b, err := t.encoder.Encode(v)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{Topic: t.topic, Key: []byte(key), Value: b}, nil
}

// A CatalogProducer publishes products and categories to their streams,
// keyed by id.
type CatalogProducer struct {
	producer   producer
	products   target
	categories target
	opPrefix   string
}

func NewCatalogProducer(opts ...ProducerOpt) (CatalogProducer, error) {
	const op = "NewCatalogProducer"

	var options producerOpts
	if err := options.apply(opts...); err != nil {
		return CatalogProducer{}, opErr(err, op)
	}

	if options.cl == nil || options.products == nil || options.categories == nil {
		panic(opErr(ErrTooFewOpts, op)) // develop mistake
	}

	opPrefix := "CatalogProducer"
	return CatalogProducer{
		producer:   producer{opPrefix: opPrefix, cl: options.cl},
		products:   *options.products,
		categories: *options.categories,
		opPrefix:   opPrefix,
	}, nil
}

func (p CatalogProducer) Close() {
	p.producer.close()
}

func (p CatalogProducer) ProduceCatalog(
	ctx context.Context, c domain.Catalog,
) error {
	const op = "ProduceCatalog"

	if err := ctx.Err(); err != nil {
		return opErr(err, p.opPrefix, op)
	}

	rs, err := p.createRecords(c)
	if err != nil {
		return opErr(err, p.opPrefix, op)
	}

	if err := p.producer.produce(ctx, rs...); err != nil {
		return opErr(err, p.opPrefix, op)
	}

	return nil
}

func (p CatalogProducer) createRecords(
	c domain.Catalog,
) ([]*kgo.Record, error) {
	const op = "createRecords"

	rs := make([]*kgo.Record, 0, len(c.Categories)+len(c.Products))
	for i, v := range c.Categories {
		r, err := encodeRecord(&p.categories, v.ID, categoryToSchemaV1(v, i))
		if err != nil {
			return nil, opErr(err, p.opPrefix, op)
		}
		rs = append(rs, r)
	}

	for i, v := range c.Products {
		r, err := encodeRecord(&p.products, string(v.ID), productToSchemaV1(v, i))
		if err != nil {
			return nil, opErr(err, p.opPrefix, op)
		}
		rs = append(rs, r)
	}
	return rs, nil
}

// A FilterEventProducer publishes applied filter passes keyed by session.
type FilterEventProducer struct {
	producer producer
	events   target
	opPrefix string
}

func NewFilterEventProducer(opts ...ProducerOpt) (FilterEventProducer, error) {
	const op = "NewFilterEventProducer"

	var options producerOpts
	if err := options.apply(opts...); err != nil {
		return FilterEventProducer{}, opErr(err, op)
	}

	if options.cl == nil || options.events == nil {
		panic(opErr(ErrTooFewOpts, op)) // develop mistake
	}

	opPrefix := "FilterEventProducer"
	return FilterEventProducer{
		producer: producer{opPrefix: opPrefix, cl: options.cl},
		events:   *options.events,
		opPrefix: opPrefix,
	}, nil
}

func (p FilterEventProducer) Close() {
	p.producer.close()
}

func (p FilterEventProducer) PublishFilterEvent(
	ctx context.Context, ev domain.FilterEvent,
) error {
	const op = "PublishFilterEvent"

	if err := ctx.Err(); err != nil {
		return opErr(err, p.opPrefix, op)
	}

	r, err := encodeRecord(&p.events, ev.SessionID, filterEventToSchemaV1(ev))
	if err != nil {
		return opErr(err, p.opPrefix, op)
	}

	p.producer.produceAsync(ctx, r)
	return nil
}
