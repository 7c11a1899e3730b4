// Feeder publishes a catalog document to the catalog topics or to the
// catalog tables.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"

	"github.com/niksmo/gallery/config"
	"github.com/niksmo/gallery/internal/adapter"
	"github.com/niksmo/gallery/internal/adapter/kafka"
	"github.com/niksmo/gallery/internal/adapter/source"
	"github.com/niksmo/gallery/internal/adapter/storage"
	"github.com/niksmo/gallery/internal/core/port"
	"github.com/niksmo/gallery/internal/core/service"
	"github.com/niksmo/gallery/pkg/logger"
	"github.com/niksmo/gallery/pkg/schema"
	"github.com/niksmo/gallery/pkg/sigctx"
	"github.com/spf13/pflag"
)

const (
	targetKafka = "kafka"
	targetSQL   = "sql"
)

func main() {
	sigCtx, cancel := sigctx.NotifyContext()
	defer cancel()

	file := pflag.StringP("file", "f", "", "catalog file, catalog.local_path by default")
	target := pflag.StringP("target", "t", targetKafka, "kafka or sql")
	pflag.String("config", "config.yaml", "config file")
	pflag.Parse()

	cfg := config.Load()

	syncFn, err := logger.Init(cfg.Log.Level, logger.FormatConsole, cfg.Log.ServiceName)
	if err != nil {
		fallDown("logger.Init", err)
	}
	defer syncFn()

	path := *file
	if path == "" {
		path = cfg.Catalog.LocalPath
	}

	producer, closeFn := createProducer(sigCtx, cfg, *target)
	defer closeFn()

	feeder := service.NewFeeder(source.NewFileSource(path), producer)
	if err := feeder.Feed(sigCtx); err != nil {
		slog.Error("failed to feed catalog", "target", *target, "err", err)
		closeFn()
		syncFn()
		os.Exit(1)
	}
}

func createProducer(
	ctx context.Context, cfg config.Config, target string,
) (port.CatalogProducer, func()) {
	switch target {
	case targetKafka:
		return createCatalogProducer(ctx, cfg)
	case targetSQL:
		return createCatalogRepository(ctx, cfg)
	}
	fallDown("main.createProducer", fmt.Errorf("unknown target %q", target))
	return nil, nil
}

func createCatalogProducer(
	ctx context.Context, cfg config.Config,
) (port.CatalogProducer, func()) {
	const op = "main.createCatalogProducer"

	bc := cfg.Broker

	schemaCreater, err := schema.NewSchemaCreater(bc.SchemaRegistryURLs...)
	if err != nil {
		fallDown(op, err)
	}

	productSerde, err := schema.NewSerdeProductV1(
		ctx,
		schema.SubjectOpt(schema.SubjectFor(bc.Topics.Products)),
		schema.SchemaIdentifierOpt(schemaCreater),
	)
	if err != nil {
		fallDown(op, err)
	}

	categorySerde, err := schema.NewSerdeCategoryV1(
		ctx,
		schema.SubjectOpt(schema.SubjectFor(bc.Topics.Categories)),
		schema.SchemaIdentifierOpt(schemaCreater),
	)
	if err != nil {
		fallDown(op, err)
	}

	tlsConfig := adapterTLS(cfg)

	p, err := kafka.NewCatalogProducer(
		kafka.ProducerClientOpt(ctx, bc.SeedBrokers, tlsConfig),
		kafka.ProductsTopicOpt(bc.Topics.Products, productSerde),
		kafka.CategoriesTopicOpt(bc.Topics.Categories, categorySerde),
	)
	if err != nil {
		fallDown(op, err)
	}
	return p, p.Close
}

func createCatalogRepository(
	ctx context.Context, cfg config.Config,
) (port.CatalogProducer, func()) {
	const op = "main.createCatalogRepository"

	if cfg.SQL.DSN == "" {
		fallDown(op, fmt.Errorf("sql.dsn is required"))
	}

	db, err := storage.NewSQLDB(ctx, cfg.SQL.DSN)
	if err != nil {
		fallDown(op, err)
	}
	return storage.NewCatalogRepository(db), db.Close
}

func adapterTLS(cfg config.Config) *tls.Config {
	bc := cfg.Broker
	if !bc.TLS {
		return nil
	}
	tlsConfig, err := adapter.MakeTLSConfig(bc.CACertPath, bc.CertPath, bc.KeyPath)
	if err != nil {
		fallDown("main.adapterTLS", err)
	}
	return tlsConfig
}

func fallDown(op string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", op, err)
	os.Exit(2)
}
