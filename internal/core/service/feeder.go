package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/internal/core/port"
)

// A Feeder publishes a catalog read from a source to the catalog streams.
type Feeder struct {
	source   port.CatalogSource
	producer port.CatalogProducer
}

func NewFeeder(source port.CatalogSource, producer port.CatalogProducer) Feeder {
	return Feeder{source: source, producer: producer}
}

func (f Feeder) Feed(ctx context.Context) error {
	const op = "Feeder.Feed"
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c, err := f.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := domain.ValidateCatalog(c); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := f.producer.ProduceCatalog(ctx, c); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info(
		"catalog published",
		"source", f.source.Name(),
		"products", len(c.Products),
		"categories", len(c.Categories),
	)
	return nil
}
