package service_test

import (
	"context"
	"sync"

	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

type MockSource struct {
	mock.Mock
	name string
}

func newMockSource(name string) *MockSource {
	return &MockSource{name: name}
}

func (m *MockSource) Name() string {
	return m.name
}

func (m *MockSource) Fetch(ctx context.Context) (domain.Catalog, error) {
	args := m.Called(ctx)
	if fn, ok := args.Get(0).(func(context.Context) domain.Catalog); ok {
		return fn(ctx), args.Error(1)
	}
	return args.Get(0).(domain.Catalog), args.Error(1)
}

type MockSnapshotter struct {
	mock.Mock
}

func (m *MockSnapshotter) SaveCatalog(ctx context.Context, c domain.Catalog) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

// snapshotSource is a cache that is both a source and a snapshotter.
type snapshotSource struct {
	MockSource
	MockSnapshotter
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishFilterEvent(ctx context.Context, ev domain.FilterEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) ProduceCatalog(ctx context.Context, c domain.Catalog) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

// recordingRenderer remembers every draw.
type recordingRenderer struct {
	mu       sync.Mutex
	views    []domain.View
	loadings int
	errors   []string
	drawErr  error
}

func (r *recordingRenderer) Draw(v domain.View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
	return r.drawErr
}

func (r *recordingRenderer) DrawLoading() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadings++
	return nil
}

func (r *recordingRenderer) DrawError(msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
	return nil
}

func (r *recordingRenderer) draws() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *recordingRenderer) last() domain.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		return domain.View{}
	}
	return r.views[len(r.views)-1]
}
