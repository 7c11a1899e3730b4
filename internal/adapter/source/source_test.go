package source_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/niksmo/gallery/internal/adapter/source"
	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogDoc = `{
  "products": [
    {"id": 1, "title": "Laptop", "category": "electronics", "price": 999.9,
     "originalPrice": 1199.9, "stock": 3, "rating": 4.5, "reviewCount": 10,
     "featured": true, "tags": ["popular"]},
    {"id": "2", "title": "Camiseta", "category": "clothing", "price": "19.99",
     "stock": 0, "rating": 4, "reviewCount": 2, "featured": false, "tags": []}
  ],
  "categories": [{"id": "electronics", "name": "Electrónica", "icon": "💻"}]
}`

func TestDecodeCatalog(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		c, err := source.DecodeCatalog([]byte(catalogDoc))
		require.NoError(t, err)
		require.Len(t, c.Products, 2)
		assert.Equal(t, domain.ProductID("1"), c.Products[0].ID)
		assert.True(t, c.Products[0].HasDiscount())
		assert.Equal(t, domain.ProductID("2"), c.Products[1].ID)
		require.NoError(t, domain.ValidateCatalog(c))
	})

	t.Run("ProductsNotArray", func(t *testing.T) {
		_, err := source.DecodeCatalog([]byte(`{"products": "none"}`))
		assert.ErrorIs(t, err, domain.ErrInvalidCatalog)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := source.DecodeCatalog([]byte(`{"products": [`))
		assert.ErrorIs(t, err, domain.ErrInvalidCatalog)
	})

	t.Run("MissingProductsFailsValidation", func(t *testing.T) {
		c, err := source.DecodeCatalog([]byte(`{"categories": []}`))
		require.NoError(t, err)
		assert.ErrorIs(t, domain.ValidateCatalog(c), domain.ErrInvalidCatalog)
	})
}

func TestHTTPSource(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(catalogDoc))
		}))
		defer srv.Close()

		s := source.NewHTTPSource(srv.URL+"/data.json", 0)
		assert.Equal(t, "remote", s.Name())

		c, err := s.Fetch(t.Context())
		require.NoError(t, err)
		assert.Len(t, c.Products, 2)
	})

	t.Run("Non2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := source.NewHTTPSource(srv.URL, 0).Fetch(t.Context())
		assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
		assert.ErrorContains(t, err, "500")
	})

	t.Run("Timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		_, err := source.NewHTTPSource(srv.URL, 20*time.Millisecond).Fetch(t.Context())
		assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	})

	t.Run("Structural", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"products": 7}`))
		}))
		defer srv.Close()

		_, err := source.NewHTTPSource(srv.URL, 0).Fetch(t.Context())
		assert.ErrorIs(t, err, domain.ErrInvalidCatalog)
	})
}

func writeCatalog(t *testing.T, dir, doc string) string {
	t.Helper()
	path := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	t.Run("OK", func(t *testing.T) {
		s := source.NewFileSource(writeCatalog(t, dir, catalogDoc))
		assert.Equal(t, "local", s.Name())
		c, err := s.Fetch(t.Context())
		require.NoError(t, err)
		assert.Len(t, c.Categories, 1)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := source.NewFileSource(filepath.Join(dir, "nope.json")).Fetch(t.Context())
		assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("BundledSample", func(t *testing.T) {
		c, err := source.NewFileSource("../../../data/products.json").Fetch(t.Context())
		require.NoError(t, err)
		require.NoError(t, domain.ValidateCatalog(c))
		assert.Len(t, c.Products, 6)
		assert.Equal(t, domain.ProductID("lamp-6"), c.Products[5].ID)
		assert.Len(t, c.Categories, 3)
	})
}

type stubSource struct {
	calls atomic.Int32
}

func (*stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(context.Context) (domain.Catalog, error) {
	s.calls.Add(1)
	return domain.Catalog{Products: []domain.Product{}}, nil
}

func TestFlaky(t *testing.T) {
	t.Run("Fails", func(t *testing.T) {
		stub := new(stubSource)
		f, err := source.NewFlaky(stub,
			source.FlakyDelayOpt(0),
			source.FlakyRandOpt(func() float64 { return 0.05 }),
		)
		require.NoError(t, err)

		_, err = f.Fetch(t.Context())
		assert.ErrorIs(t, err, source.ErrSimulatedFailure)
		assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
		assert.Zero(t, stub.calls.Load())
	})

	t.Run("Passes", func(t *testing.T) {
		stub := new(stubSource)
		f, err := source.NewFlaky(stub,
			source.FlakyDelayOpt(time.Millisecond),
			source.FlakyRandOpt(func() float64 { return 0.1 }),
		)
		require.NoError(t, err)

		c, err := f.Fetch(t.Context())
		require.NoError(t, err)
		assert.NotNil(t, c.Products)
		assert.Equal(t, int32(1), stub.calls.Load())
		assert.Equal(t, "mock", f.Name())
	})

	t.Run("DelayHonorsContext", func(t *testing.T) {
		f, err := source.NewFlaky(new(stubSource), source.FlakyDelayOpt(time.Hour))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		_, err = f.Fetch(ctx)
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("InvalidRate", func(t *testing.T) {
		_, err := source.NewFlaky(new(stubSource), source.FlakyFailRateOpt(1.5))
		assert.Error(t, err)
	})
}

func TestFileWatcher(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, catalogDoc)

	var changes atomic.Int32
	w, err := source.NewFileWatcher(path, 20*time.Millisecond, nil, func(string) {
		changes.Add(1)
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for range 3 {
		require.NoError(t, os.WriteFile(path, []byte(catalogDoc), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		return changes.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, w.Close())
}
