package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/internal/core/filter"
	"github.com/niksmo/gallery/internal/core/port"
	"github.com/niksmo/gallery/internal/core/scheduler"
	"github.com/niksmo/gallery/internal/core/store"
)

// DefaultSearchDebounce is the quiet period before typed search input is
// applied.
const DefaultSearchDebounce = 300 * time.Millisecond

// DefaultPublishTimeout bounds the filter event publishing of one filter
// pass.
const DefaultPublishTimeout = 2 * time.Second

type galleryOpts struct {
	clock          scheduler.Clock
	renderInterval time.Duration
	searchDebounce time.Duration
	events         port.FilterEventPublisher
	statusOptions  []domain.FilterOption
	tagOptions     []domain.FilterOption
}

type GalleryOpt func(*galleryOpts) error

func WithClock(c scheduler.Clock) GalleryOpt {
	return func(o *galleryOpts) error {
		if c == nil {
			return errors.New("nil clock")
		}
		o.clock = c
		return nil
	}
}

func WithRenderInterval(d time.Duration) GalleryOpt {
	return func(o *galleryOpts) error {
		if d <= 0 {
			return fmt.Errorf("invalid render interval: %s", d)
		}
		o.renderInterval = d
		return nil
	}
}

func WithSearchDebounce(d time.Duration) GalleryOpt {
	return func(o *galleryOpts) error {
		if d < 0 {
			return fmt.Errorf("invalid search debounce: %s", d)
		}
		o.searchDebounce = d
		return nil
	}
}

// WithEventPublisher publishes a [domain.FilterEvent] after every filter pass.
func WithEventPublisher(p port.FilterEventPublisher) GalleryOpt {
	return func(o *galleryOpts) error {
		if p == nil {
			return errors.New("nil event publisher")
		}
		o.events = p
		return nil
	}
}

func WithFilterOptions(status, tags []domain.FilterOption) GalleryOpt {
	return func(o *galleryOpts) error {
		if len(status) != 0 {
			o.statusOptions = status
		}
		if len(tags) != 0 {
			o.tagOptions = tags
		}
		return nil
	}
}

// A Gallery is one browsing session: the filter selections, the loaded
// catalog and the view drawn from them.
//
// Every selection change recomputes the filtered products and schedules a
// render. Renders are throttled; typed search input is debounced.
type Gallery struct {
	mu        sync.Mutex
	engine    *filter.Engine
	store     *store.Store
	loader    *Loader
	renderer  port.Renderer
	throttler *scheduler.Throttler
	search    *scheduler.Debouncer[string]
	events    port.FilterEventPublisher
	clock     scheduler.Clock
	sessionID string

	statusOptions []domain.FilterOption
	tagOptions    []domain.FilterOption
}

func NewGallery(
	loader *Loader, renderer port.Renderer, opts ...GalleryOpt,
) (*Gallery, error) {
	const op = "NewGallery"

	if loader == nil || renderer == nil {
		panic(op + ": nil loader or renderer") // develop mistake
	}

	options := galleryOpts{
		clock:          scheduler.RealClock{},
		renderInterval: scheduler.DefaultRenderInterval,
		searchDebounce: DefaultSearchDebounce,
		statusOptions:  domain.DefaultStatusOptions(),
		tagOptions:     domain.DefaultTagOptions(),
	}
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	throttler, err := scheduler.NewThrottler(
		options.renderInterval,
		scheduler.WithClock(options.clock),
		scheduler.WithErrorHandler(func(err error) {
			slog.Error("render failed", "op", "Gallery.render", "err", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	g := &Gallery{
		engine:        filter.NewEngine(),
		store:         store.New(),
		loader:        loader,
		renderer:      renderer,
		throttler:     throttler,
		events:        options.events,
		clock:         options.clock,
		sessionID:     uuid.NewString(),
		statusOptions: options.statusOptions,
		tagOptions:    options.tagOptions,
	}
	g.search = scheduler.NewDebouncer(options.clock, options.searchDebounce, g.applySearchInput)
	return g, nil
}

func (g *Gallery) SessionID() string {
	return g.sessionID
}

// Load fetches the catalog through the fallback chain and renders it.
//
// While loading the renderer shows a skeleton. When every source fails the
// renderer shows the error state and a [*LoadError] is returned. A load that
// finishes after a newer one has started is discarded.
func (g *Gallery) Load(ctx context.Context) error {
	const op = "Gallery.Load"
	log := slog.With("op", op)

	gen := g.store.BeginLoad()
	if err := g.renderer.DrawLoading(); err != nil {
		log.Warn("failed to draw loading state", "err", err)
	}

	res, err := g.loader.Load(ctx)
	if err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		if errors.Is(ctx.Err(), context.Canceled) {
			return g.loadCanceled(ctx, gen, err)
		}
		return g.loadFailed(ctx, gen, err)
	}

	if !g.store.CommitLoad(gen, res.Catalog) {
		log.Info("stale catalog load discarded", "source", res.Source, "generation", gen)
		return nil
	}

	return g.ApplyFiltersAndRender(ctx)
}

// loadCanceled handles a load abandoned by its caller. It is not a catalog
// failure: the generation is given back and the error state is not drawn.
func (g *Gallery) loadCanceled(ctx context.Context, gen uint64, err error) error {
	log := slog.With("op", "Gallery.loadCanceled")

	g.store.AbortLoad(gen)
	log.Info("catalog load canceled", "generation", gen)

	if g.store.Loaded() {
		// replace the loading skeleton
		if rerr := g.ApplyFiltersAndRender(context.WithoutCancel(ctx)); rerr != nil {
			log.Error("failed to redraw catalog", "err", rerr)
		}
	}
	return err
}

func (g *Gallery) loadFailed(ctx context.Context, gen uint64, err error) error {
	log := slog.With("op", "Gallery.loadFailed")

	if !g.store.Current(gen) {
		log.Info("stale catalog load failure discarded", "generation", gen)
		return nil
	}

	if g.store.Loaded() {
		// keep showing the previous catalog
		log.Warn("catalog reload failed", "err", err)
		if rerr := g.ApplyFiltersAndRender(ctx); rerr != nil {
			log.Error("failed to redraw previous catalog", "err", rerr)
		}
		return err
	}

	var loadErr *LoadError
	msg := LoadFailedMessage
	if errors.As(err, &loadErr) {
		msg = loadErr.Message
	}
	if derr := g.renderer.DrawError(msg); derr != nil {
		log.Error("failed to draw error state", "err", derr)
	}
	return err
}

// ApplyFiltersAndRender recomputes the filtered products from the current
// selections and schedules a render. It is the only writer of the filtered
// list.
func (g *Gallery) ApplyFiltersAndRender(ctx context.Context) error {
	g.mu.Lock()
	ev, err := g.applyLocked()
	g.mu.Unlock()

	g.publish(ctx, ev)
	return err
}

func (g *Gallery) applyLocked() (domain.FilterEvent, error) {
	const op = "Gallery.applyFilters"

	state := g.engine.State()
	products := g.store.Products()
	filtered := filter.Apply(state, products)
	g.store.SetFiltered(filtered)

	view := domain.View{
		Products:   filtered,
		Categories: g.store.Categories(),
		Total:      len(products),
		Stats:      filter.Stats(state),
	}

	slog.Debug(
		"filters applied",
		"op", op,
		"visible", view.Visible(),
		"total", view.Total,
		"active", view.Stats.Total,
	)

	ev := domain.FilterEvent{
		EventID:    uuid.NewString(),
		SessionID:  g.sessionID,
		OccurredAt: g.clock.Now(),
		State:      state,
		Visible:    view.Visible(),
		Total:      view.Total,
	}

	err := g.throttler.Do(func() error {
		return g.renderer.Draw(view)
	})
	if err != nil {
		return ev, fmt.Errorf("%s: %w", op, err)
	}
	return ev, nil
}

func (g *Gallery) publish(ctx context.Context, ev domain.FilterEvent) {
	if g.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultPublishTimeout)
	defer cancel()
	if err := g.events.PublishFilterEvent(ctx, ev); err != nil {
		slog.Warn("failed to publish filter event", "op", "Gallery.publish", "err", err)
	}
}

func (g *Gallery) mutate(ctx context.Context, fn func(*filter.Engine) error) error {
	g.mu.Lock()
	if err := fn(g.engine); err != nil {
		g.mu.Unlock()
		return err
	}
	ev, err := g.applyLocked()
	g.mu.Unlock()

	g.publish(ctx, ev)
	return err
}

func (g *Gallery) SetCategory(ctx context.Context, id string) error {
	return g.mutate(ctx, func(e *filter.Engine) error {
		e.SetCategory(id)
		return nil
	})
}

// SetSearch applies query immediately and drops any pending typed input.
func (g *Gallery) SetSearch(ctx context.Context, query string) error {
	g.search.Cancel()
	return g.mutate(ctx, func(e *filter.Engine) error {
		e.SetSearch(query)
		return nil
	})
}

// SearchInput applies query once typing has paused.
func (g *Gallery) SearchInput(query string) {
	g.search.Call(query)
}

func (g *Gallery) applySearchInput(query string) {
	err := g.mutate(context.Background(), func(e *filter.Engine) error {
		e.SetSearch(query)
		return nil
	})
	if err != nil {
		slog.Error("failed to apply search input", "op", "Gallery.applySearchInput", "err", err)
	}
}

func (g *Gallery) ClearSearch(ctx context.Context) error {
	return g.SetSearch(ctx, "")
}

func (g *Gallery) AddFilter(ctx context.Context, t domain.FilterType, value string) error {
	const op = "Gallery.AddFilter"

	if t == domain.FilterStatus && !filter.KnownStatus(value) {
		slog.Debug("unknown status filter matches every product", "op", op, "status", value)
	}

	err := g.mutate(ctx, func(e *filter.Engine) error {
		return e.AddFilter(t, value)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (g *Gallery) RemoveFilter(ctx context.Context, t domain.FilterType, value string) error {
	const op = "Gallery.RemoveFilter"

	err := g.mutate(ctx, func(e *filter.Engine) error {
		return e.RemoveFilter(t, value)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (g *Gallery) SetShowOutOfStock(ctx context.Context, show bool) error {
	return g.mutate(ctx, func(e *filter.Engine) error {
		e.SetShowOutOfStock(show)
		return nil
	})
}

// ClearAllFilters restores the default selections.
func (g *Gallery) ClearAllFilters(ctx context.Context) error {
	g.search.Cancel()
	return g.mutate(ctx, func(e *filter.Engine) error {
		e.ClearAll()
		return nil
	})
}

func (g *Gallery) FilterState() domain.FilterState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.State()
}

func (g *Gallery) FilterStats() domain.FilterStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.Stats()
}

// View returns the products of the last filter pass with the catalog
// summary.
func (g *Gallery) View() domain.View {
	g.mu.Lock()
	defer g.mu.Unlock()
	return domain.View{
		Products:   g.store.Filtered(),
		Categories: g.store.Categories(),
		Total:      g.store.Len(),
		Stats:      g.engine.Stats(),
	}
}

func (g *Gallery) Categories() []domain.Category {
	return g.store.Categories()
}

// FilterOptions returns the selectable status and tag values.
func (g *Gallery) FilterOptions() (status, tags []domain.FilterOption) {
	return g.statusOptions, g.tagOptions
}

// RenderStats returns the render throttler counters.
func (g *Gallery) RenderStats() scheduler.ThrottleStats {
	return g.throttler.Stats()
}

// FlushRender draws the pending render now instead of waiting for the
// cooldown to end.
func (g *Gallery) FlushRender() error {
	return g.throttler.Flush()
}

// Close stops pending search input and renders.
func (g *Gallery) Close() {
	const op = "Gallery.Close"
	log := slog.With("op", op)
	log.Info("closing gallery...")
	g.search.Stop()
	g.throttler.Stop()
	log.Info("gallery is closed")
}
