package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"

	"github.com/lovoo/goka"
	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/pkg/schema"
	"github.com/shopspring/decimal"
	"github.com/twmb/franz-go/pkg/kgo"
)

var (
	ErrTooFewOpts       = errors.New("too few options")
	ErrInvalidValueType = errors.New("invalid value type")
)

type ProducerClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	TryProduce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Close()
}

type ConsumerClient interface {
	PollFetches(context.Context) kgo.Fetches
	CommitUncommittedOffsets(context.Context) error
	Close()
}

type Encoder interface {
	Encode(v any) ([]byte, error)
}

type Decoder interface {
	Decode(b []byte, v any) error
}

type Serde interface {
	Encoder
	Decoder
}

// ClientOpts returns the connection options shared by every franz-go client.
// A nil tlsConfig dials in plaintext.
func ClientOpts(seedBrokers []string, tlsConfig *tls.Config) []kgo.Opt {
	opts := []kgo.Opt{kgo.SeedBrokers(seedBrokers...)}
	if tlsConfig != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsConfig))
	}
	return opts
}

func withNonlogProcOpt() goka.ProcessorOption {
	return goka.WithLogger(log.New(io.Discard, "", 0))
}

func makeOp(s ...string) string {
	return strings.Join(s, ".")
}

func opErr(err error, op ...string) error {
	return fmt.Errorf("%s: %w", makeOp(op...), err)
}

func productToSchemaV1(v domain.Product, position int) (s schema.ProductV1) {
	s.ID = string(v.ID)
	s.Title = v.Title
	s.Description = v.Description
	s.Category = v.Category
	s.Price = v.Price.String()
	if v.OriginalPrice != nil {
		orig := v.OriginalPrice.String()
		s.OriginalPrice = &orig
	}
	s.Stock = v.Stock
	s.Rating = v.Rating
	s.ReviewCount = v.ReviewCount
	s.Featured = v.Featured
	s.Tags = slices.Clone(v.Tags)
	s.Image = v.Image
	s.Position = position
	return
}

func schemaV1ToProduct(s schema.ProductV1) (domain.Product, error) {
	price, err := decimal.NewFromString(s.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s: price: %w", s.ID, err)
	}

	v := domain.Product{
		ID:          domain.ProductID(s.ID),
		Title:       s.Title,
		Description: s.Description,
		Category:    s.Category,
		Price:       price,
		Stock:       s.Stock,
		Rating:      s.Rating,
		ReviewCount: s.ReviewCount,
		Featured:    s.Featured,
		Tags:        s.Tags,
		Image:       s.Image,
	}

	if s.OriginalPrice != nil {
		orig, err := decimal.NewFromString(*s.OriginalPrice)
		if err != nil {
			return domain.Product{}, fmt.Errorf("product %s: original price: %w", s.ID, err)
		}
		v.OriginalPrice = &orig
	}
	return v, nil
}

func categoryToSchemaV1(v domain.Category, position int) schema.CategoryV1 {
	return schema.CategoryV1{
		ID:       v.ID,
		Name:     v.Name,
		Icon:     v.Icon,
		Position: position,
	}
}

func schemaV1ToCategory(s schema.CategoryV1) domain.Category {
	return domain.Category{ID: s.ID, Name: s.Name, Icon: s.Icon}
}

func filterEventToSchemaV1(v domain.FilterEvent) schema.FilterEventV1 {
	return schema.FilterEventV1{
		EventID:        v.EventID,
		SessionID:      v.SessionID,
		OccurredAt:     v.OccurredAt,
		Category:       v.State.Category,
		Search:         v.State.Search,
		Status:         v.State.Status.Values(),
		Tags:           v.State.Tags.Values(),
		ShowOutOfStock: v.State.ShowOutOfStock,
		Visible:        v.Visible,
		Total:          v.Total,
	}
}
