package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

type ConsumerOpt func(*consumerOpts) error

func ConsumerClientOpt(
	seedBrokers []string, tlsConfig *tls.Config, group string, topics ...string,
) ConsumerOpt {
	return func(co *consumerOpts) error {
		kopts := append(
			ClientOpts(seedBrokers, tlsConfig),
			kgo.ConsumeTopics(topics...),
			kgo.ConsumerGroup(group),
			kgo.DisableAutoCommit(),
		)
		cl, err := kgo.NewClient(kopts...)
		if err != nil {
			return err
		}
		co.cl = cl
		return nil
	}
}

// ConsumerWithClientOpt uses an existing client.
func ConsumerWithClientOpt(cl ConsumerClient) ConsumerOpt {
	return func(co *consumerOpts) error {
		if cl == nil {
			return errors.New("client is nil")
		}
		co.cl = cl
		return nil
	}
}

// ConsumerNotifyOpt sets the function called with the number of records of
// every non-empty poll.
func ConsumerNotifyOpt(fn func(records int)) ConsumerOpt {
	return func(co *consumerOpts) error {
		if fn == nil {
			return errors.New("notify func is nil")
		}
		co.notify = fn
		return nil
	}
}

type consumerOpts struct {
	cl     ConsumerClient
	notify func(int)
}

func (co *consumerOpts) apply(opts ...ConsumerOpt) error {
	for _, opt := range opts {
		if err := opt(co); err != nil {
			return err
		}
	}
	return nil
}

// A CatalogChangeConsumer watches the catalog streams and reports every
// batch of changes, so that the gallery can reload.
type CatalogChangeConsumer struct {
	opPrefix string
	cl       ConsumerClient
	notify   func(int)
	backoff  time.Duration
}

func NewCatalogChangeConsumer(opts ...ConsumerOpt) (CatalogChangeConsumer, error) {
	const op = "NewCatalogChangeConsumer"

	var options consumerOpts
	if err := options.apply(opts...); err != nil {
		return CatalogChangeConsumer{}, opErr(err, op)
	}

	if options.cl == nil || options.notify == nil {
		panic(opErr(ErrTooFewOpts, op)) // develop mistake
	}

	return CatalogChangeConsumer{
		opPrefix: "CatalogChangeConsumer",
		cl:       options.cl,
		notify:   options.notify,
		backoff:  time.Second,
	}, nil
}

// Run polls until ctx is done.
func (c CatalogChangeConsumer) Run(ctx context.Context) {
	const op = "Run"
	log := slog.With("op", makeOp(c.opPrefix, op))

	log.Info("running")

	for {
		select {
		case <-ctx.Done():
			log.Info("stopped")
			return
		default:
		}

		err := c.consume(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			log.Error("failed to consume", "err", err)
			c.slowDown(ctx)
		}
	}
}

func (c CatalogChangeConsumer) consume(ctx context.Context) error {
	const op = "consume"

	fetches, err := c.pollFetches(ctx)
	if err != nil {
		return opErr(err, c.opPrefix, op)
	}

	n := fetches.NumRecords()
	if n == 0 {
		return nil
	}

	c.notify(n)

	if err := c.commit(ctx); err != nil {
		return opErr(err, c.opPrefix, op)
	}
	return nil
}

func (c CatalogChangeConsumer) pollFetches(ctx context.Context) (kgo.Fetches, error) {
	const op = "pollFetches"

	fetches := c.cl.PollFetches(ctx)
	if err := fetches.Err0(); err != nil {
		return nil, opErr(err, c.opPrefix, op)
	}

	if err := c.handleFetchesErrs(fetches); err != nil {
		return nil, opErr(err, c.opPrefix, op)
	}

	return fetches, nil
}

func (c CatalogChangeConsumer) handleFetchesErrs(fetches kgo.Fetches) error {
	var errsMessages []string
	fetches.EachError(func(t string, p int32, err error) {
		if err != nil {
			errsMessages = append(errsMessages, fmt.Sprintf(
				"topic %q partition %d: %q", t, p, err,
			))
		}
	})

	if len(errsMessages) != 0 {
		return errors.New(strings.Join(errsMessages, "; "))
	}
	return nil
}

func (c CatalogChangeConsumer) slowDown(ctx context.Context) {
	t := time.NewTimer(c.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (c CatalogChangeConsumer) commit(ctx context.Context) error {
	const op = "commit"

	if err := ctx.Err(); err != nil {
		return opErr(err, c.opPrefix, op)
	}

	if err := c.cl.CommitUncommittedOffsets(ctx); err != nil {
		return opErr(err, c.opPrefix, op)
	}
	return nil
}

func (c CatalogChangeConsumer) Close() {
	const op = "Close"
	log := slog.With("op", makeOp(c.opPrefix, op))

	log.Info("closing consumer...")
	c.cl.Close()
	log.Info("consumer is closed")
}
