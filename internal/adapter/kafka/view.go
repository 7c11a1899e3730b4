package kafka

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/lovoo/goka"
	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/internal/core/port"
	"github.com/niksmo/gallery/pkg/schema"
	"golang.org/x/sync/errgroup"
)

var _ port.CatalogSource = (*CatalogView)(nil)

type tableView interface {
	Recovered() bool
	Iterator() (goka.Iterator, error)
}

// A CatalogViewConfig used for setup [CatalogView].
//
// All fields are required.
type CatalogViewConfig struct {
	SeedBrokers     []string
	ProductsGroup   string
	CategoriesGroup string
	ProductSerde    Serde
	CategorySerde   Serde
}

// A CatalogView reads the catalog group tables kept by the
// [CatalogTableProcessor] pair.
type CatalogView struct {
	products   tableView
	categories tableView
	runners    []*goka.View
}

func NewCatalogView(config CatalogViewConfig) (*CatalogView, error) {
	const op = "NewCatalogView"

	pv, err := goka.NewView(
		config.SeedBrokers,
		goka.GroupTable(goka.Group(config.ProductsGroup)),
		newProductCodec(config.ProductSerde),
	)
	if err != nil {
		return nil, opErr(err, op)
	}

	cv, err := goka.NewView(
		config.SeedBrokers,
		goka.GroupTable(goka.Group(config.CategoriesGroup)),
		newCategoryCodec(config.CategorySerde),
	)
	if err != nil {
		return nil, opErr(err, op)
	}

	return &CatalogView{
		products:   pv,
		categories: cv,
		runners:    []*goka.View{pv, cv},
	}, nil
}

// Run keeps both tables up to date until ctx is done.
func (v *CatalogView) Run(ctx context.Context) error {
	const op = "CatalogView.Run"
	log := slog.With("op", op)

	g, ctx := errgroup.WithContext(ctx)
	for _, gv := range v.runners {
		g.Go(func() error {
			return gv.Run(ctx)
		})
	}

	log.Info("running")
	if err := g.Wait(); err != nil {
		log.Error("unexpected fail on run", "err", err)
		return opErr(err, op)
	}
	log.Info("stopped")
	return nil
}

func (*CatalogView) Name() string {
	return "kafka"
}

func (v *CatalogView) Fetch(ctx context.Context) (domain.Catalog, error) {
	const op = "CatalogView.Fetch"

	if err := ctx.Err(); err != nil {
		return domain.Catalog{}, opErr(err, op)
	}

	if !v.products.Recovered() || !v.categories.Recovered() {
		return domain.Catalog{}, fmt.Errorf(
			"%s: %w: tables are recovering", op, domain.ErrSourceUnavailable,
		)
	}

	ps, err := collect[schema.ProductV1](v.products)
	if err != nil {
		return domain.Catalog{}, opErr(err, op)
	}
	// nothing published yet, let the next source answer
	if len(ps) == 0 {
		return domain.Catalog{}, fmt.Errorf(
			"%s: %w: products table is empty", op, domain.ErrSourceUnavailable,
		)
	}
	slices.SortStableFunc(ps, func(a, b schema.ProductV1) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
	})

	cs, err := collect[schema.CategoryV1](v.categories)
	if err != nil {
		return domain.Catalog{}, opErr(err, op)
	}
	slices.SortStableFunc(cs, func(a, b schema.CategoryV1) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
	})

	c := domain.Catalog{
		Products:   make([]domain.Product, 0, len(ps)),
		Categories: make([]domain.Category, 0, len(cs)),
	}
	for _, s := range ps {
		p, err := schemaV1ToProduct(s)
		if err != nil {
			return domain.Catalog{}, fmt.Errorf("%s: %w: %w", op, domain.ErrInvalidCatalog, err)
		}
		c.Products = append(c.Products, p)
	}
	for _, s := range cs {
		c.Categories = append(c.Categories, schemaV1ToCategory(s))
	}
	return c, nil
}

func collect[T any](tv tableView) ([]T, error) {
	it, err := tv.Iterator()
	if err != nil {
		return nil, err
	}
	defer it.Release()

	var out []T
	for it.Next() {
		raw, err := it.Value()
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", it.Key(), err)
		}
		if raw == nil {
			continue
		}
		v, ok := raw.(T)
		if !ok {
			return nil, fmt.Errorf("key %q: %w: %T", it.Key(), ErrInvalidValueType, raw)
		}
		out = append(out, v)
	}
	return out, it.Err()
}
