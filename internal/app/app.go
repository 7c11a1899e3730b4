package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/niksmo/gallery/config"
	"github.com/niksmo/gallery/internal/adapter"
	"github.com/niksmo/gallery/internal/adapter/cache"
	"github.com/niksmo/gallery/internal/adapter/httphandler"
	"github.com/niksmo/gallery/internal/adapter/kafka"
	"github.com/niksmo/gallery/internal/adapter/render"
	"github.com/niksmo/gallery/internal/adapter/source"
	"github.com/niksmo/gallery/internal/adapter/storage"
	"github.com/niksmo/gallery/internal/core/port"
	"github.com/niksmo/gallery/internal/core/scheduler"
	"github.com/niksmo/gallery/internal/core/service"
	"github.com/niksmo/gallery/pkg/logger"
	"github.com/niksmo/gallery/pkg/retry"
	"github.com/niksmo/gallery/pkg/schema"
	"golang.org/x/sync/errgroup"
)

// reloadDebounce collapses bursts of broker change notifications into one
// reload. File changes are debounced by the watcher itself.
const reloadDebounce = 500 * time.Millisecond

type serdes struct {
	product     schema.Serde
	category    schema.Serde
	filterEvent schema.Serde
}

type kafkaAdapters struct {
	tlsConfig  *tls.Config
	tableProcs []*kafka.CatalogTableProcessor
	view       *kafka.CatalogView
	events     *kafka.FilterEventProducer
	changes    *kafka.CatalogChangeConsumer
}

type App struct {
	ctx    context.Context
	cfg    config.Config
	syncFn func()

	serdes     serdes
	kafka      kafkaAdapters
	sqldb      *storage.SQLDB
	redis      *redis.Client
	snapshot   port.CatalogSnapshotter
	cacheSrc   port.CatalogSource
	sources    []port.CatalogSource
	fileSource *source.FileSource

	renderer   *render.HTMLRenderer
	gallery    *service.Gallery
	reload     *scheduler.Debouncer[string]
	watcher    *source.FileWatcher
	httpServer httphandler.HTTPServer

	group errgroup.Group
}

func New(ctx context.Context, config config.Config) *App {
	app := &App{ctx: ctx, cfg: config}

	app.initLogger()
	app.initSerdes()
	app.initOutboundAdapters()
	app.initSources()
	app.initCoreService()
	app.initInboundAdapters()

	return app
}

func (app *App) initLogger() {
	const op = "App.initLogger"

	syncFn, err := logger.Init(
		app.cfg.Log.Level, app.cfg.Log.Format, app.cfg.Log.ServiceName,
	)
	if err != nil {
		app.fallDown(op, err)
	}
	app.syncFn = syncFn
}

func (app *App) initSerdes() {
	const op = "App.initSerdes"

	if !app.cfg.Broker.Enabled {
		return
	}

	ctx := app.ctx
	topics := app.cfg.Broker.Topics

	schemaCreater, err := schema.NewSchemaCreater(app.cfg.Broker.SchemaRegistryURLs...)
	if err != nil {
		app.fallDown(op, err)
	}

	app.serdes.product, err = schema.NewSerdeProductV1(
		ctx,
		schema.SubjectOpt(schema.SubjectFor(topics.Products)),
		schema.SchemaIdentifierOpt(schemaCreater),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.serdes.category, err = schema.NewSerdeCategoryV1(
		ctx,
		schema.SubjectOpt(schema.SubjectFor(topics.Categories)),
		schema.SchemaIdentifierOpt(schemaCreater),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.serdes.filterEvent, err = schema.NewSerdeFilterEventV1(
		ctx,
		schema.SubjectOpt(schema.SubjectFor(topics.FilterEvents)),
		schema.SchemaIdentifierOpt(schemaCreater),
	)
	if err != nil {
		app.fallDown(op, err)
	}
}

func (app *App) initOutboundAdapters() {
	if app.usesSource(config.SourceSQL) {
		app.initSQL()
	}
	if app.cfg.Redis.Enabled {
		app.initRedis()
	}
	if app.cfg.Broker.Enabled {
		app.initKafka()
	}
}

func (app *App) initSQL() {
	const op = "App.initSQL"

	db, err := storage.NewSQLDB(app.ctx, app.cfg.SQL.DSN)
	if err != nil {
		app.fallDown(op, err)
	}
	app.sqldb = &db
}

func (app *App) initRedis() {
	const op = "App.initRedis"

	rc := app.cfg.Redis
	cl, err := cache.NewClient(app.ctx, cache.Config{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err != nil {
		app.fallDown(op, err)
	}

	rcat := cache.NewRedisCatalog(cl, rc.Key, rc.TTL)
	app.redis = cl
	app.snapshot = rcat
	app.cacheSrc = rcat
}

func (app *App) initKafka() {
	const op = "App.initKafka"

	bc := app.cfg.Broker

	if bc.TLS {
		tlsConfig, err := adapter.MakeTLSConfig(bc.CACertPath, bc.CertPath, bc.KeyPath)
		if err != nil {
			app.fallDown(op, err)
		}
		app.kafka.tlsConfig = tlsConfig
	}

	if app.usesSource(config.SourceKafka) {
		app.initCatalogTables()
	}

	if bc.PublishEvents {
		p, err := kafka.NewFilterEventProducer(
			kafka.ProducerClientOpt(app.ctx, bc.SeedBrokers, app.kafka.tlsConfig),
			kafka.FilterEventsTopicOpt(bc.Topics.FilterEvents, app.serdes.filterEvent),
		)
		if err != nil {
			app.fallDown(op, err)
		}
		app.kafka.events = &p
	}

	if bc.WatchCatalog {
		c, err := kafka.NewCatalogChangeConsumer(
			kafka.ConsumerClientOpt(
				bc.SeedBrokers, app.kafka.tlsConfig, bc.Groups.CatalogWatcher,
				bc.Topics.Products, bc.Topics.Categories,
			),
			kafka.ConsumerNotifyOpt(func(records int) {
				app.requestReload(fmt.Sprintf("%d catalog records", records))
			}),
		)
		if err != nil {
			app.fallDown(op, err)
		}
		app.kafka.changes = &c
	}
}

func (app *App) initCatalogTables() {
	const op = "App.initCatalogTables"

	bc := app.cfg.Broker

	productsProc, err := kafka.NewProductsTableProc(
		bc.SeedBrokers, bc.Topics.Products, bc.Groups.ProductsTable, app.serdes.product,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	categoriesProc, err := kafka.NewCategoriesTableProc(
		bc.SeedBrokers, bc.Topics.Categories, bc.Groups.CategoriesTable, app.serdes.category,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	view, err := kafka.NewCatalogView(kafka.CatalogViewConfig{
		SeedBrokers:     bc.SeedBrokers,
		ProductsGroup:   bc.Groups.ProductsTable,
		CategoriesGroup: bc.Groups.CategoriesTable,
		ProductSerde:    app.serdes.product,
		CategorySerde:   app.serdes.category,
	})
	if err != nil {
		app.fallDown(op, err)
	}

	app.kafka.tableProcs = []*kafka.CatalogTableProcessor{productsProc, categoriesProc}
	app.kafka.view = view
}

// initSources builds the fallback chain in the configured order.
func (app *App) initSources() {
	const op = "App.initSources"

	cc := app.cfg.Catalog
	for _, name := range cc.Sources {
		var src port.CatalogSource
		switch name {
		case config.SourceRemote:
			src = source.NewHTTPSource(cc.RemoteURL, cc.RemoteTimeout)
		case config.SourceLocal:
			src = app.localSource()
		case config.SourceMock:
			flaky, err := source.NewFlaky(
				app.localSource(),
				source.FlakyDelayOpt(cc.Mock.Delay),
				source.FlakyFailRateOpt(cc.Mock.FailRate),
			)
			if err != nil {
				app.fallDown(op, err)
			}
			src = flaky
		case config.SourceCache:
			src = app.cacheSrc
		case config.SourceSQL:
			src = storage.NewCatalogRepository(*app.sqldb)
		case config.SourceKafka:
			src = app.kafka.view
		default:
			app.fallDown(op, fmt.Errorf("unknown catalog source %q", name))
		}
		app.sources = append(app.sources, src)
	}
}

func (app *App) localSource() *source.FileSource {
	if app.fileSource == nil {
		app.fileSource = source.NewFileSource(app.cfg.Catalog.LocalPath)
	}
	return app.fileSource
}

func (app *App) initCoreService() {
	const op = "App.initCoreService"

	cc := app.cfg.Catalog

	loaderOpts := []service.LoaderOpt{
		service.WithSources(app.sources...),
		service.WithRetry(retry.RetryConfig{
			MaxAttempts: cc.Retry.MaxAttempts,
			Backoff:     retry.ExponentialBackoff(cc.Retry.BaseDelay),
		}),
	}
	if cc.RemoteTimeout > 0 {
		loaderOpts = append(loaderOpts, service.WithSourceTimeout(cc.RemoteTimeout))
	}
	if app.snapshot != nil {
		loaderOpts = append(loaderOpts, service.WithSnapshotter(app.snapshot))
	}

	loader, err := service.NewLoader(loaderOpts...)
	if err != nil {
		app.fallDown(op, err)
	}

	app.renderer = render.NewHTMLRenderer(app.cfg.Render.PageTitle)

	galleryOpts := []service.GalleryOpt{
		service.WithRenderInterval(app.cfg.Render.Interval),
		service.WithSearchDebounce(app.cfg.Render.SearchDebounce),
		service.WithFilterOptions(app.cfg.Filters.Status, app.cfg.Filters.Tags),
	}
	if app.kafka.events != nil {
		galleryOpts = append(galleryOpts, service.WithEventPublisher(app.kafka.events))
	}

	gallery, err := service.NewGallery(loader, app.renderer, galleryOpts...)
	if err != nil {
		app.fallDown(op, err)
	}
	app.gallery = gallery

	app.reload = scheduler.NewDebouncer(nil, reloadDebounce, app.reloadCatalog)

	if cc.Watch && app.fileSource != nil {
		watcher, err := source.NewFileWatcher(
			app.fileSource.Path(), cc.WatchDebounce, nil,
			func(path string) { app.reloadCatalog(path + " changed") },
		)
		if err != nil {
			app.fallDown(op, err)
		}
		app.watcher = watcher
	}
}

func (app *App) initInboundAdapters() {
	mux := http.NewServeMux()
	httphandler.RegisterGallery(mux, app.gallery, app.renderer)

	app.httpServer = httphandler.NewHTTPServer(httphandler.ServerConfig{
		Addr:           app.cfg.HTTP.Addr,
		HandlerTimeout: app.cfg.HTTP.HandlerTimeout,
	}, mux)
}

func (app *App) requestReload(reason string) {
	app.reload.Call(reason)
}

func (app *App) reloadCatalog(reason string) {
	const op = "App.reloadCatalog"
	log := slog.With("op", op, "reason", reason)

	log.Info("reloading catalog")
	if err := app.gallery.Load(app.ctx); err != nil {
		log.Error("failed to reload catalog", "err", err)
	}
}

func (app *App) usesSource(name string) bool {
	return slices.Contains(app.cfg.Catalog.Sources, name)
}

// Run starts every component in the background. A component that stops
// unexpectedly calls stopFn.
func (app *App) Run(stopFn context.CancelFunc) {
	ctx := app.ctx

	go app.httpServer.Run(stopFn)

	if len(app.kafka.tableProcs) != 0 {
		var wg sync.WaitGroup
		for _, p := range app.kafka.tableProcs {
			wg.Add(1)
			go p.Run(ctx, stopFn, &wg)
		}
		app.group.Go(func() error {
			wg.Wait()
			return nil
		})
	}

	if app.kafka.view != nil {
		app.group.Go(func() error {
			if err := app.kafka.view.Run(ctx); err != nil {
				stopFn()
				return err
			}
			return nil
		})
	}

	if app.kafka.changes != nil {
		app.group.Go(func() error {
			app.kafka.changes.Run(ctx)
			return nil
		})
	}

	if app.watcher != nil {
		app.group.Go(func() error {
			return app.watcher.Run(ctx)
		})
	}

	app.group.Go(func() error {
		app.reloadCatalog("startup")
		return nil
	})

	slog.Info("application is running", "sources", app.sourceNames())
}

func (app *App) sourceNames() []string {
	names := make([]string, len(app.sources))
	for i, s := range app.sources {
		names[i] = s.Name()
	}
	return names
}

func (app *App) Close(ctx context.Context) {
	slog.Info("application is closing...")

	app.httpServer.Close(ctx)
	app.reload.Stop()
	app.gallery.Close()

	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			slog.Error("failed to close file watcher", "err", err)
		}
	}
	if app.kafka.changes != nil {
		app.kafka.changes.Close()
	}
	for _, p := range app.kafka.tableProcs {
		p.Close()
	}

	app.wait(ctx)

	if app.kafka.events != nil {
		app.kafka.events.Close()
	}
	if app.sqldb != nil {
		app.sqldb.Close()
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			slog.Error("failed to close redis client", "err", err)
		}
	}

	slog.Info("application is closed")
	app.syncFn()
}

func (app *App) wait(ctx context.Context) {
	done := make(chan error, 1)
	go func() { done <- app.group.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			slog.Error("component stopped with error", "err", err)
		}
	case <-ctx.Done():
		slog.Warn("components did not stop in time")
	}
}

func (app *App) fallDown(op string, err error) {
	panic(fmt.Errorf("%s: %w", op, err))
}
