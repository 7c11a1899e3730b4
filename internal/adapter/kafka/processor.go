package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/lovoo/goka"
	"github.com/niksmo/gallery/pkg/schema"
)

// A processor is used for composition.
//
// Running and closing the underlying [goka.Processor]
type processor struct {
	opPrefix string
	gp       *goka.Processor
}

func (p *processor) run(
	ctx context.Context, stopFn context.CancelFunc, wg *sync.WaitGroup,
) {
	const op = "run"
	log := slog.With("op", makeOp(p.opPrefix, op))

	defer wg.Done()

	go p.runProc(ctx, stopFn)

	log.Info("preparing...")
	p.waitForReady(ctx)
	log.Info("running")
}

func (p *processor) runProc(ctx context.Context, stopFn context.CancelFunc) {
	const op = "run"
	log := slog.With("op", makeOp(p.opPrefix, op))

	defer stopFn()

	err := p.gp.Run(ctx)
	if err != nil {
		log.Error("stopped", "err", err)
		return
	}
	log.Info("stopped")
}

func (p *processor) waitForReady(ctx context.Context) {
	const op = "waitForReady"
	log := slog.With("op", makeOp(p.opPrefix, op))

	err := p.gp.WaitForReadyContext(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error("fall down while preparing", "err", err)
		return
	}
}

func (p *processor) close() {
	const op = "close"
	log := slog.With("op", makeOp(p.opPrefix, op))

	log.Info("closing processor...")
	p.gp.Stop()
	log.Info("processor is closed")
}

// A schemaCodec is a [goka.Codec] for one registry framed schema type.
type schemaCodec[T any] struct {
	serde Serde
	name  string
}

func (c schemaCodec[T]) Encode(v any) ([]byte, error) {
	if _, ok := v.(T); !ok {
		return nil, opErr(ErrInvalidValueType, c.name, "Encode")
	}
	return c.serde.Encode(v)
}

func (c schemaCodec[T]) Decode(data []byte) (any, error) {
	var s T
	if err := c.serde.Decode(data, &s); err != nil {
		return nil, opErr(err, c.name, "Decode")
	}
	return s, nil
}

func newProductCodec(s Serde) schemaCodec[schema.ProductV1] {
	return schemaCodec[schema.ProductV1]{serde: s, name: "productCodec"}
}

func newCategoryCodec(s Serde) schemaCodec[schema.CategoryV1] {
	return schemaCodec[schema.CategoryV1]{serde: s, name: "categoryCodec"}
}

// A CatalogTableProcessor persists the latest value of every key of a
// catalog stream into its group table.
type CatalogTableProcessor struct {
	opPrefix string
	proc     processor
}

// NewProductsTableProc materializes the products stream. The group name is
// also the group table name read by [CatalogView].
func NewProductsTableProc(
	seedBrokers []string, inputStream string, group string, productSerde Serde,
) (*CatalogTableProcessor, error) {
	return newCatalogTableProc(
		"ProductsTableProcessor", seedBrokers, inputStream, group,
		newProductCodec(productSerde),
	)
}

func NewCategoriesTableProc(
	seedBrokers []string, inputStream string, group string, categorySerde Serde,
) (*CatalogTableProcessor, error) {
	return newCatalogTableProc(
		"CategoriesTableProcessor", seedBrokers, inputStream, group,
		newCategoryCodec(categorySerde),
	)
}

func newCatalogTableProc(
	opPrefix string,
	seedBrokers []string,
	inputStream string,
	group string,
	codec goka.Codec,
) (*CatalogTableProcessor, error) {
	const op = "newCatalogTableProc"

	p := CatalogTableProcessor{opPrefix: opPrefix}

	gg := goka.DefineGroup(goka.Group(group),
		goka.Input(goka.Stream(inputStream), codec, p.processFn),
		goka.Persist(codec),
	)

	gp, err := goka.NewProcessor(seedBrokers, gg, withNonlogProcOpt())
	if err != nil {
		return nil, opErr(err, opPrefix, op)
	}

	p.proc = processor{opPrefix: opPrefix, gp: gp}
	return &p, nil
}

func (p *CatalogTableProcessor) Run(
	ctx context.Context, stopFn context.CancelFunc, wg *sync.WaitGroup,
) {
	p.proc.run(ctx, stopFn, wg)
}

func (p *CatalogTableProcessor) Close() {
	p.proc.close()
}

func (p *CatalogTableProcessor) processFn(ctx goka.Context, msg any) {
	const op = "processFn"
	log := slog.With("op", makeOp(p.opPrefix, op), "key", ctx.Key())

	if msg == nil {
		ctx.Delete()
		log.Debug("catalog entry deleted")
		return
	}
	ctx.SetValue(msg)
	log.Debug("catalog entry stored")
}
