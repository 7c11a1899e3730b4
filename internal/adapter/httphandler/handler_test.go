package httphandler_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/niksmo/gallery/internal/adapter/httphandler"
	"github.com/niksmo/gallery/internal/adapter/render"
	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/internal/core/scheduler"
	"github.com/niksmo/gallery/internal/core/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type switchSource struct {
	fail atomic.Bool
}

func (*switchSource) Name() string { return "switch" }

func (s *switchSource) Fetch(context.Context) (domain.Catalog, error) {
	if s.fail.Load() {
		return domain.Catalog{}, domain.ErrSourceUnavailable
	}
	orig := decimal.RequireFromString("1199.90")
	return domain.Catalog{
		Products: []domain.Product{
			{
				ID: "1", Title: "Laptop", Category: "electronics",
				Price: decimal.RequireFromString("999.90"), OriginalPrice: &orig,
				Stock: 3, Rating: 4.5, Featured: true, Tags: []string{"popular"},
			},
			{
				ID: "2", Title: "Camiseta", Category: "clothing",
				Price: decimal.RequireFromString("19.99"), Stock: 0, Tags: []string{"nuevo"},
			},
		},
		Categories: []domain.Category{
			{ID: "electronics", Name: "Electrónica", Icon: "💻"},
			{ID: "clothing", Name: "Ropa", Icon: "👕"},
		},
	}, nil
}

type fixture struct {
	srv     *httptest.Server
	src     *switchSource
	clock   *scheduler.ManualClock
	gallery *service.Gallery
}

func newFixture(t *testing.T, load bool) *fixture {
	t.Helper()

	src := new(switchSource)
	loader, err := service.NewLoader(service.WithSources(src))
	require.NoError(t, err)

	clock := scheduler.NewManualClock(time.Unix(0, 0))
	pages := render.NewHTMLRenderer("Galería")
	g, err := service.NewGallery(loader, pages, service.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(g.Close)

	if load {
		require.NoError(t, g.Load(t.Context()))
	}

	mux := http.NewServeMux()
	httphandler.RegisterGallery(mux, g, pages)
	srv := httptest.NewServer(httphandler.AllowJSON(mux))
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, src: src, clock: clock, gallery: g}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, f.srv.URL+path, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type filtersBody struct {
	State struct {
		Category       string   `json:"category"`
		Search         string   `json:"search"`
		Status         []string `json:"status"`
		Tags           []string `json:"tags"`
		ShowOutOfStock bool     `json:"show_out_of_stock"`
	} `json:"state"`
	Stats domain.FilterStats `json:"stats"`
}

func TestPage(t *testing.T) {
	f := newFixture(t, true)

	resp := f.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Mostrando 2 de 2 productos")

	resp = f.do(t, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProductsAndCategories(t *testing.T) {
	f := newFixture(t, true)

	resp := f.do(t, http.MethodGet, "/v1/products", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	products := decode[struct {
		Products []domain.Product   `json:"products"`
		Summary  httphandler.Summary `json:"summary"`
	}](t, resp)
	assert.Len(t, products.Products, 2)
	assert.Equal(t, 2, products.Summary.Total)
	assert.Equal(t, "Mostrando 2 de 2 productos", products.Summary.Text)

	resp = f.do(t, http.MethodGet, "/v1/categories", "")
	cats := decode[httphandler.CategoriesResponse](t, resp)
	assert.Len(t, cats.Categories, 2)

	resp = f.do(t, http.MethodGet, "/v1/filters/options", "")
	opts := decode[httphandler.FilterOptionsResponse](t, resp)
	assert.Len(t, opts.Status, 3)
	assert.Len(t, opts.Tags, 3)
}

func TestFilters(t *testing.T) {
	f := newFixture(t, true)

	t.Run("Category", func(t *testing.T) {
		resp := f.do(t, http.MethodPut, "/v1/filters/category", `{"category":"clothing"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[filtersBody](t, resp)
		assert.Equal(t, "clothing", body.State.Category)
		assert.Equal(t, 1, body.Stats.Total)
		assert.Len(t, f.gallery.View().Products, 1)
	})

	t.Run("AddAndRemoveStatus", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/v1/filters/status/featured", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[filtersBody](t, resp)
		assert.Equal(t, []string{"featured"}, body.State.Status)
		assert.Empty(t, f.gallery.View().Products)

		resp = f.do(t, http.MethodDelete, "/v1/filters/status/featured", "")
		body = decode[filtersBody](t, resp)
		assert.Empty(t, body.State.Status)
	})

	t.Run("UnknownType", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/v1/filters/color/red", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Stock", func(t *testing.T) {
		resp := f.do(t, http.MethodPut, "/v1/filters/stock", `{"show_out_of_stock":false}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[filtersBody](t, resp)
		assert.False(t, body.State.ShowOutOfStock)

		resp = f.do(t, http.MethodPut, "/v1/filters/stock", `{}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("ClearAll", func(t *testing.T) {
		resp := f.do(t, http.MethodDelete, "/v1/filters", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[filtersBody](t, resp)
		assert.Equal(t, domain.CategoryAll, body.State.Category)
		assert.True(t, body.State.ShowOutOfStock)
		assert.Zero(t, body.Stats.Total)
		assert.Len(t, f.gallery.View().Products, 2)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		resp := f.do(t, http.MethodPut, "/v1/filters/category", `{`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSearch(t *testing.T) {
	f := newFixture(t, true)

	resp := f.do(t, http.MethodPut, "/v1/filters/search", `{"query":" LAP "}`)
	body := decode[filtersBody](t, resp)
	assert.Equal(t, "LAP", body.State.Search)
	assert.Len(t, f.gallery.View().Products, 1)

	resp = f.do(t, http.MethodDelete, "/v1/filters/search", "")
	body = decode[filtersBody](t, resp)
	assert.Empty(t, body.State.Search)

	for _, q := range []string{"c", "ca", "cam"} {
		resp = f.do(t, http.MethodPost, "/v1/filters/search/input", `{"query":"`+q+`"}`)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	}
	assert.Empty(t, f.gallery.FilterState().Search)

	f.clock.Advance(service.DefaultSearchDebounce)
	assert.Equal(t, "cam", f.gallery.FilterState().Search)
	assert.Len(t, f.gallery.View().Products, 1)
}

func TestReload(t *testing.T) {
	t.Run("InitialFailureThenRetry", func(t *testing.T) {
		f := newFixture(t, false)
		f.src.fail.Store(true)

		resp := f.do(t, http.MethodPost, "/v1/catalog/reload", "")
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		body := decode[httphandler.ReloadResponse](t, resp)
		assert.Equal(t, service.LoadFailedMessage, body.Message)

		page := f.do(t, http.MethodGet, "/", "")
		b, err := io.ReadAll(page.Body)
		require.NoError(t, err)
		assert.Contains(t, string(b), render.RetryText)

		f.src.fail.Store(false)
		resp = f.do(t, http.MethodPost, "/v1/catalog/reload", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, f.gallery.View().Products, 2)
	})

	t.Run("OutlivesClientDisconnect", func(t *testing.T) {
		loader, err := service.NewLoader(service.WithSources(new(switchSource)))
		require.NoError(t, err)
		pages := render.NewHTMLRenderer("Galería")
		g, err := service.NewGallery(loader, pages, service.WithClock(scheduler.NewManualClock(time.Unix(0, 0))))
		require.NoError(t, err)
		defer g.Close()

		mux := http.NewServeMux()
		httphandler.RegisterGallery(mux, g, pages)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		req := httptest.NewRequestWithContext(ctx, http.MethodPost, "/v1/catalog/reload", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, g.View().Products, 2)
		assert.NotContains(t, string(pages.Page()), render.RetryText)
	})

	t.Run("BrowserRedirect", func(t *testing.T) {
		f := newFixture(t, false)
		req, err := http.NewRequestWithContext(
			t.Context(), http.MethodPost, f.srv.URL+"/v1/catalog/reload", nil,
		)
		require.NoError(t, err)
		req.Header.Set("Accept", "text/html")

		cl := f.srv.Client()
		cl.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		resp, err := cl.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("Location"))
	})
}

func TestAllowJSON(t *testing.T) {
	f := newFixture(t, true)

	req, err := http.NewRequestWithContext(
		t.Context(), http.MethodPut, f.srv.URL+"/v1/filters/category",
		strings.NewReader(`category=x`),
	)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/v1/filters", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
	s := httphandler.NewHTTPServer(httphandler.ServerConfig{Addr: "127.0.0.1:0"}, mux)

	ctx, cancel := context.WithCancel(t.Context())
	go s.Run(cancel)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second)
	defer closeCancel()
	s.Close(closeCtx)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal(errors.New("server did not stop"))
	}
}
