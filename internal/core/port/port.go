package port

import (
	"context"

	"github.com/niksmo/gallery/internal/core/domain"
)

// A CatalogSource fetches a catalog document from one origin.
type CatalogSource interface {
	Name() string
	Fetch(context.Context) (domain.Catalog, error)
}

// A CatalogSnapshotter keeps the last catalog that loaded successfully.
type CatalogSnapshotter interface {
	SaveCatalog(context.Context, domain.Catalog) error
}

type Renderer interface {
	Draw(domain.View) error
	DrawLoading() error
	DrawError(message string) error
}

type FilterEventPublisher interface {
	PublishFilterEvent(context.Context, domain.FilterEvent) error
}

// A CatalogProducer publishes a catalog to the catalog streams.
type CatalogProducer interface {
	ProduceCatalog(context.Context, domain.Catalog) error
}
