package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lovoo/goka"
	"github.com/niksmo/gallery/config"
	"github.com/niksmo/gallery/internal/adapter"
	"github.com/niksmo/gallery/internal/adapter/kafka"
	"github.com/niksmo/gallery/pkg/sigctx"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
)

const (
	partitions        = 3
	replicationFactor = 3
	delete            = "delete"
	compact           = "compact"
)

func main() {
	sigCtx, closeApp := sigctx.NotifyContext()
	defer closeApp()

	cfg := config.Load()

	cl := createClient(cfg)
	defer cl.Close()

	printStart(cfg)
	defer printComplete(time.Now())

	// catalog streams and filter events
	err := makeTopics(
		sigCtx, cl, delete,
		cfg.Broker.Topics.Products,
		cfg.Broker.Topics.Categories,
		cfg.Broker.Topics.FilterEvents,
	)
	if err != nil {
		printFail(err)
		return
	}

	// group table topics
	err = makeTopics(
		sigCtx, cl, compact,
		toGroupTable(cfg.Broker.Groups.ProductsTable),
		toGroupTable(cfg.Broker.Groups.CategoriesTable),
	)
	if err != nil {
		printFail(err)
		return
	}
}

func createClient(cfg config.Config) *kadm.Client {
	bc := cfg.Broker

	var tlsConfig *tls.Config
	if bc.TLS {
		var err error
		tlsConfig, err = adapter.MakeTLSConfig(bc.CACertPath, bc.CertPath, bc.KeyPath)
		if err != nil {
			printFail(err)
			os.Exit(2)
		}
	}

	cl, err := kadm.NewOptClient(kafka.ClientOpts(bc.SeedBrokers, tlsConfig)...)
	if err != nil {
		panic(err) // develop mistake
	}
	return cl
}

func makeTopics(
	ctx context.Context, cl *kadm.Client, cleanupPolicy string, topics ...string,
) error {
	var (
		minISR = "1"
	)

	config := map[string]*string{
		"cleanup.policy":      &cleanupPolicy,
		"min.insync.replicas": &minISR,
	}

	responses, err := cl.CreateTopics(
		ctx,
		partitions,
		replicationFactor,
		config,
		topics...,
	)

	if err != nil {
		return err
	}

	var errs []error
	for _, res := range responses.Sorted() {
		err := res.Err
		if err != nil {
			if errors.Is(res.Err, kerr.TopicAlreadyExists) {
				fmt.Printf("topic: %q already exists\n", res.Topic)
			} else {
				errs = append(errs, err)
			}
			continue
		}
		fmt.Printf("topic: %q successfully created\n", res.Topic)
	}

	return errors.Join(errs...)
}

func printStart(cfg config.Config) {
	fmt.Printf(`initializing topics...
	- %q
	- %q
	- %q
	- %q
	- %q

`,
		cfg.Broker.Topics.Products,
		cfg.Broker.Topics.Categories,
		cfg.Broker.Topics.FilterEvents,
		toGroupTable(cfg.Broker.Groups.ProductsTable),
		toGroupTable(cfg.Broker.Groups.CategoriesTable),
	)
}

func printComplete(start time.Time) {
	fmt.Printf("\ncomplete in %s\n", time.Since(start))
}

func printFail(err error) {
	fmt.Printf("failed to create topics: \n%s\n", err)
}

func toGroupTable(group string) string {
	return string(goka.GroupTable(goka.Group(group)))
}
