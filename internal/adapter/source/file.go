package source

import (
	"context"
	"fmt"
	"os"

	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/internal/core/port"
)

var _ port.CatalogSource = (*FileSource)(nil)

// A FileSource reads the catalog document from the local filesystem.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (*FileSource) Name() string {
	return "local"
}

func (s *FileSource) Path() string {
	return s.path
}

func (s *FileSource) Fetch(ctx context.Context) (domain.Catalog, error) {
	const op = "FileSource.Fetch"

	if err := ctx.Err(); err != nil {
		return domain.Catalog{}, fmt.Errorf("%s: %w", op, err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf(
			"%s: %w: %w", op, domain.ErrSourceUnavailable, err,
		)
	}

	c, err := DecodeCatalog(data)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%s: %s: %w", op, s.path, err)
	}
	return c, nil
}
