package domain

import "errors"

var (
	ErrInvalidCatalog     = errors.New("invalid catalog")
	ErrSourceUnavailable  = errors.New("catalog source unavailable")
	ErrUnknownFilterType  = errors.New("unknown filter type")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)
