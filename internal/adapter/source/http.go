package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/internal/core/port"
)

var _ port.CatalogSource = (*HTTPSource)(nil)

// DefaultHTTPTimeout bounds a single remote request.
const DefaultHTTPTimeout = 10 * time.Second

// An HTTPSource fetches the catalog document from a remote endpoint.
type HTTPSource struct {
	cl  *resty.Client
	url string
}

// NewHTTPSource returns a source that GETs url. A non-positive timeout
// means [DefaultHTTPTimeout].
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	cl := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPSource{cl: cl, url: url}
}

func (*HTTPSource) Name() string {
	return "remote"
}

func (s *HTTPSource) Fetch(ctx context.Context) (domain.Catalog, error) {
	const op = "HTTPSource.Fetch"
	log := slog.With("op", op, "url", s.url)

	start := time.Now()
	resp, err := s.cl.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf(
			"%s: %w: %w", op, domain.ErrSourceUnavailable, err,
		)
	}

	if resp.IsError() {
		return domain.Catalog{}, fmt.Errorf(
			"%s: %w: HTTP Error: %s", op, domain.ErrSourceUnavailable, resp.Status(),
		)
	}

	c, err := DecodeCatalog(resp.Body())
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("catalog fetched", "duration", time.Since(start))
	return c, nil
}
