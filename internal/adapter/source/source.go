// Package source implements the catalog data sources of the fallback chain.
package source

import (
	"fmt"

	"github.com/niksmo/gallery/internal/core/domain"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DecodeCatalog parses a catalog document. A malformed document or a
// products field that is not an array is reported as
// [domain.ErrInvalidCatalog].
func DecodeCatalog(data []byte) (domain.Catalog, error) {
	var c domain.Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return domain.Catalog{}, fmt.Errorf("%w: %w", domain.ErrInvalidCatalog, err)
	}
	return c, nil
}
