package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/internal/core/port"
	"github.com/niksmo/gallery/pkg/retry"
)

// DefaultSourceTimeout bounds a single fetch attempt.
const DefaultSourceTimeout = 10 * time.Second

var ErrNoSources = errors.New("no catalog sources")

type loaderOpts struct {
	sources  []port.CatalogSource
	snapshot port.CatalogSnapshotter
	retry    retry.RetryConfig
	timeout  time.Duration
}

type LoaderOpt func(*loaderOpts) error

// WithSources appends sources to the fallback chain in priority order.
func WithSources(sources ...port.CatalogSource) LoaderOpt {
	return func(o *loaderOpts) error {
		for _, s := range sources {
			if s == nil {
				return errors.New("nil catalog source")
			}
		}
		o.sources = append(o.sources, sources...)
		return nil
	}
}

// WithSnapshotter stores every successfully loaded catalog.
func WithSnapshotter(s port.CatalogSnapshotter) LoaderOpt {
	return func(o *loaderOpts) error {
		if s == nil {
			return errors.New("nil snapshotter")
		}
		o.snapshot = s
		return nil
	}
}

// WithRetry sets the retry policy applied to each source. Structural errors
// are never retried.
func WithRetry(c retry.RetryConfig) LoaderOpt {
	return func(o *loaderOpts) error {
		if c.MaxAttempts < 0 {
			return fmt.Errorf("invalid max attempts: %d", c.MaxAttempts)
		}
		o.retry = c
		return nil
	}
}

func WithSourceTimeout(d time.Duration) LoaderOpt {
	return func(o *loaderOpts) error {
		if d <= 0 {
			return fmt.Errorf("invalid source timeout: %s", d)
		}
		o.timeout = d
		return nil
	}
}

// A Loader fetches the catalog from an ordered chain of sources and returns
// the first one that yields a valid document.
type Loader struct {
	sources  []port.CatalogSource
	snapshot port.CatalogSnapshotter
	retry    retry.RetryConfig
	timeout  time.Duration
}

func NewLoader(opts ...LoaderOpt) (*Loader, error) {
	const op = "NewLoader"

	options := loaderOpts{
		retry:   retry.RetryConfig{MaxAttempts: 1},
		timeout: DefaultSourceTimeout,
	}
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if len(options.sources) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoSources)
	}

	rc := options.retry
	userShouldRetry := rc.ShouldRetry
	rc.ShouldRetry = func(err error) bool {
		if !retryable(err) {
			return false
		}
		return userShouldRetry == nil || userShouldRetry(err)
	}

	return &Loader{
		sources:  options.sources,
		snapshot: options.snapshot,
		retry:    rc,
		timeout:  options.timeout,
	}, nil
}

func retryable(err error) bool {
	return !errors.Is(err, domain.ErrInvalidCatalog) &&
		!errors.Is(err, context.Canceled)
}

// Sources returns the names of the chain in priority order.
func (l *Loader) Sources() []string {
	names := make([]string, len(l.sources))
	for i, s := range l.sources {
		names[i] = s.Name()
	}
	return names
}

// A LoadResult is a catalog and the name of the source that produced it.
type LoadResult struct {
	Catalog domain.Catalog
	Source  string
}

// Load walks the chain. When every source fails it returns a [*LoadError].
func (l *Loader) Load(ctx context.Context) (LoadResult, error) {
	const op = "Loader.Load"
	log := slog.With("op", op)

	var errs *multierror.Error
	for _, src := range l.sources {
		if err := ctx.Err(); err != nil {
			return LoadResult{}, fmt.Errorf("%s: %w", op, err)
		}

		c, err := l.fetch(ctx, src)
		if err != nil {
			log.Warn("catalog source failed", "source", src.Name(), "err", err)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}

		log.Info(
			"catalog loaded",
			"source", src.Name(),
			"products", len(c.Products),
			"categories", len(c.Categories),
		)
		l.save(ctx, src, c)
		return LoadResult{Catalog: c, Source: src.Name()}, nil
	}

	if err := ctx.Err(); err != nil {
		return LoadResult{}, fmt.Errorf("%s: %w", op, err)
	}

	err := fmt.Errorf("%s: %w: %w", op, domain.ErrCatalogUnavailable, errs.ErrorOrNil())
	log.Error("all catalog sources failed", "err", err)
	return LoadResult{}, &LoadError{Message: LoadFailedMessage, Err: err}
}

func (l *Loader) fetch(ctx context.Context, src port.CatalogSource) (domain.Catalog, error) {
	return retry.DoWithResult(ctx, l.retry, func() (domain.Catalog, error) {
		ctx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()

		c, err := src.Fetch(ctx)
		if err != nil {
			return domain.Catalog{}, err
		}
		if err := domain.ValidateCatalog(c); err != nil {
			return domain.Catalog{}, err
		}
		return c, nil
	})
}

func (l *Loader) save(ctx context.Context, src port.CatalogSource, c domain.Catalog) {
	if l.snapshot == nil {
		return
	}
	if s, ok := src.(port.CatalogSnapshotter); ok && s == l.snapshot {
		return
	}
	if err := l.snapshot.SaveCatalog(ctx, c); err != nil {
		slog.Warn("failed to save catalog snapshot", "op", "Loader.save", "err", err)
	}
}
