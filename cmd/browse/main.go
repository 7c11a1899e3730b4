// Browse loads the catalog once, applies the filters given on the command
// line and prints the gallery to the terminal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/niksmo/gallery/config"
	"github.com/niksmo/gallery/internal/adapter/render"
	"github.com/niksmo/gallery/internal/adapter/source"
	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/internal/core/port"
	"github.com/niksmo/gallery/internal/core/service"
	"github.com/niksmo/gallery/pkg/logger"
	"github.com/niksmo/gallery/pkg/retry"
	"github.com/niksmo/gallery/pkg/sigctx"
	"github.com/spf13/pflag"
)

const loadTimeout = 30 * time.Second

type flags struct {
	category string
	search   string
	status   []string
	tags     []string
	inStock  bool
}

func main() {
	sigCtx, cancel := sigctx.NotifyContext()
	defer cancel()

	f := parseFlags()
	cfg := config.Load()

	// keep stdout for the gallery
	syncFn, err := logger.Init(slog.LevelWarn, logger.FormatConsole, cfg.Log.ServiceName)
	if err != nil {
		fallDown(err)
	}
	defer syncFn()

	ctx, cancelLoad := context.WithTimeout(sigCtx, loadTimeout)
	defer cancelLoad()

	if err := browse(ctx, cfg, f); err != nil {
		fmt.Fprintln(os.Stderr, err)
		syncFn()
		os.Exit(1)
	}
}

func parseFlags() flags {
	var f flags
	pflag.StringVarP(&f.category, "category", "c", domain.CategoryAll, "category id")
	pflag.StringVarP(&f.search, "search", "s", "", "search query")
	pflag.StringSliceVar(&f.status, "status", nil, "status filter: featured, new, discount")
	pflag.StringSliceVarP(&f.tags, "tag", "t", nil, "tag filter")
	pflag.BoolVar(&f.inStock, "in-stock", false, "hide products without stock")
	pflag.String("config", "config.yaml", "config file")
	pflag.Parse()
	return f
}

func browse(ctx context.Context, cfg config.Config, f flags) error {
	loader, err := service.NewLoader(
		service.WithSources(sources(cfg)...),
		service.WithRetry(retry.RetryConfig{
			MaxAttempts: cfg.Catalog.Retry.MaxAttempts,
			Backoff:     retry.ExponentialBackoff(cfg.Catalog.Retry.BaseDelay),
		}),
	)
	if err != nil {
		return err
	}

	frame := &lastFrame{}
	g, err := service.NewGallery(
		loader, frame,
		service.WithFilterOptions(cfg.Filters.Status, cfg.Filters.Tags),
	)
	if err != nil {
		return err
	}
	defer g.Close()

	out := render.NewTerminalRenderer(os.Stdout)
	if err := g.Load(ctx); err != nil {
		_ = frame.drawTo(out)
		return err
	}

	if err := applyFlags(ctx, g, f); err != nil {
		return err
	}
	if err := g.FlushRender(); err != nil {
		return err
	}
	return frame.drawTo(out)
}

var _ port.Renderer = (*lastFrame)(nil)

// lastFrame keeps only the latest frame so intermediate renders are not
// printed.
type lastFrame struct {
	mu      sync.Mutex
	view    *domain.View
	errMsg  string
	loading bool
}

func (r *lastFrame) Draw(v domain.View) error {
	r.set(&v, "", false)
	return nil
}

func (r *lastFrame) DrawLoading() error {
	r.set(nil, "", true)
	return nil
}

func (r *lastFrame) DrawError(message string) error {
	r.set(nil, message, false)
	return nil
}

func (r *lastFrame) set(v *domain.View, errMsg string, loading bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view, r.errMsg, r.loading = v, errMsg, loading
}

func (r *lastFrame) drawTo(out port.Renderer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.view != nil:
		return out.Draw(*r.view)
	case r.errMsg != "":
		return out.DrawError(r.errMsg)
	case r.loading:
		return out.DrawLoading()
	}
	return nil
}

func applyFlags(ctx context.Context, g *service.Gallery, f flags) error {
	if err := g.SetCategory(ctx, f.category); err != nil {
		return err
	}
	if err := g.SetSearch(ctx, f.search); err != nil {
		return err
	}
	for _, s := range f.status {
		if err := g.AddFilter(ctx, domain.FilterStatus, s); err != nil {
			return err
		}
	}
	for _, t := range f.tags {
		if err := g.AddFilter(ctx, domain.FilterTags, t); err != nil {
			return err
		}
	}
	return g.SetShowOutOfStock(ctx, !f.inStock)
}

// sources builds the chain from the file based sources. Infrastructure
// sources need the gallery service and are skipped.
func sources(cfg config.Config) []port.CatalogSource {
	cc := cfg.Catalog

	var out []port.CatalogSource
	for _, name := range cc.Sources {
		switch name {
		case config.SourceRemote:
			out = append(out, source.NewHTTPSource(cc.RemoteURL, cc.RemoteTimeout))
		case config.SourceLocal:
			out = append(out, source.NewFileSource(cc.LocalPath))
		case config.SourceMock:
			flaky, err := source.NewFlaky(
				source.NewFileSource(cc.LocalPath),
				source.FlakyDelayOpt(cc.Mock.Delay),
				source.FlakyFailRateOpt(cc.Mock.FailRate),
			)
			if err != nil {
				fallDown(err)
			}
			out = append(out, flaky)
		default:
			slog.Warn("catalog source is not supported by browse", "source", name)
		}
	}

	if len(out) == 0 {
		out = append(out, source.NewFileSource(cc.LocalPath))
	}
	return out
}

func fallDown(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
}
