package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/niksmo/gallery/internal/adapter/render"
	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/internal/core/service"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Gallery is the gallery service as seen by the HTTP surface.
type Gallery interface {
	Load(ctx context.Context) error
	SetCategory(ctx context.Context, id string) error
	SetSearch(ctx context.Context, query string) error
	SearchInput(query string)
	ClearSearch(ctx context.Context) error
	AddFilter(ctx context.Context, t domain.FilterType, value string) error
	RemoveFilter(ctx context.Context, t domain.FilterType, value string) error
	SetShowOutOfStock(ctx context.Context, show bool) error
	ClearAllFilters(ctx context.Context) error
	FilterState() domain.FilterState
	FilterStats() domain.FilterStats
	View() domain.View
	Categories() []domain.Category
	FilterOptions() (status, tags []domain.FilterOption)
}

// A PageSource serves the latest rendered gallery page.
type PageSource interface {
	Page() []byte
}

type GalleryHandler struct {
	gallery Gallery
	pages   PageSource
}

func RegisterGallery(mux *http.ServeMux, g Gallery, pages PageSource) {
	h := GalleryHandler{gallery: g, pages: pages}

	mux.HandleFunc("GET /{$}", h.GetPage)
	mux.HandleFunc("GET /v1/products", h.GetProducts)
	mux.HandleFunc("GET /v1/categories", h.GetCategories)
	mux.HandleFunc("GET /v1/filters", h.GetFilters)
	mux.HandleFunc("GET /v1/filters/options", h.GetFilterOptions)
	mux.HandleFunc("PUT /v1/filters/category", h.PutCategory)
	mux.HandleFunc("PUT /v1/filters/search", h.PutSearch)
	mux.HandleFunc("POST /v1/filters/search/input", h.PostSearchInput)
	mux.HandleFunc("DELETE /v1/filters/search", h.DeleteSearch)
	mux.HandleFunc("PUT /v1/filters/stock", h.PutStock)
	mux.HandleFunc("POST /v1/filters/{type}/{value}", h.PostFilter)
	mux.HandleFunc("DELETE /v1/filters/{type}/{value}", h.DeleteFilter)
	mux.HandleFunc("DELETE /v1/filters", h.DeleteFilters)
	mux.HandleFunc("POST /v1/catalog/reload", h.PostReload)
}

func (h GalleryHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	const op = "GalleryHandler.GetPage"
	log := slog.With("op", op)

	page := h.pages.Page()
	if page == nil {
		http.Error(w, "gallery is not rendered yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(page); err != nil {
		log.Error("failed to write response body", "err", err)
	}
}

func (h GalleryHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	v := h.gallery.View()
	products := v.Products
	if products == nil {
		products = []domain.Product{}
	}
	writeJSON(w, http.StatusOK, ProductsResponse{
		Products: products,
		Summary: Summary{
			Visible: v.Visible(),
			Total:   v.Total,
			Text:    render.Summary(v),
		},
	})
}

func (h GalleryHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CategoriesResponse{
		Categories: h.gallery.Categories(),
	})
}

func (h GalleryHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	h.writeFilters(w, http.StatusOK)
}

func (h GalleryHandler) GetFilterOptions(w http.ResponseWriter, r *http.Request) {
	status, tags := h.gallery.FilterOptions()
	writeJSON(w, http.StatusOK, FilterOptionsResponse{Status: status, Tags: tags})
}

func (h GalleryHandler) PutCategory(w http.ResponseWriter, r *http.Request) {
	const op = "GalleryHandler.PutCategory"

	var req CategoryRequest
	if !decodeJSON(w, r, op, &req) {
		return
	}
	h.applied(w, op, h.gallery.SetCategory(r.Context(), req.Category))
}

func (h GalleryHandler) PutSearch(w http.ResponseWriter, r *http.Request) {
	const op = "GalleryHandler.PutSearch"

	var req SearchRequest
	if !decodeJSON(w, r, op, &req) {
		return
	}
	h.applied(w, op, h.gallery.SetSearch(r.Context(), req.Query))
}

// PostSearchInput feeds keystrokes; the search is applied once typing pauses.
func (h GalleryHandler) PostSearchInput(w http.ResponseWriter, r *http.Request) {
	const op = "GalleryHandler.PostSearchInput"

	var req SearchRequest
	if !decodeJSON(w, r, op, &req) {
		return
	}
	h.gallery.SearchInput(req.Query)
	w.WriteHeader(http.StatusAccepted)
}

func (h GalleryHandler) DeleteSearch(w http.ResponseWriter, r *http.Request) {
	const op = "GalleryHandler.DeleteSearch"
	h.applied(w, op, h.gallery.ClearSearch(r.Context()))
}

func (h GalleryHandler) PutStock(w http.ResponseWriter, r *http.Request) {
	const op = "GalleryHandler.PutStock"

	var req StockRequest
	if !decodeJSON(w, r, op, &req) {
		return
	}
	if req.ShowOutOfStock == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{"show_out_of_stock is required"})
		return
	}
	h.applied(w, op, h.gallery.SetShowOutOfStock(r.Context(), *req.ShowOutOfStock))
}

func (h GalleryHandler) PostFilter(w http.ResponseWriter, r *http.Request) {
	const op = "GalleryHandler.PostFilter"

	t, value := filterPath(r)
	h.applied(w, op, h.gallery.AddFilter(r.Context(), t, value))
}

func (h GalleryHandler) DeleteFilter(w http.ResponseWriter, r *http.Request) {
	const op = "GalleryHandler.DeleteFilter"

	t, value := filterPath(r)
	h.applied(w, op, h.gallery.RemoveFilter(r.Context(), t, value))
}

func (h GalleryHandler) DeleteFilters(w http.ResponseWriter, r *http.Request) {
	const op = "GalleryHandler.DeleteFilters"
	h.applied(w, op, h.gallery.ClearAllFilters(r.Context()))
}

// ReloadTimeout bounds a reload started over HTTP.
const ReloadTimeout = 30 * time.Second

// PostReload runs the fallback chain again. Browsers posting the retry form
// are redirected back to the page.
func (h GalleryHandler) PostReload(w http.ResponseWriter, r *http.Request) {
	const op = "GalleryHandler.PostReload"
	log := slog.With("op", op)

	// a client that goes away must not abandon the reload
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), ReloadTimeout)
	defer cancel()

	err := h.gallery.Load(ctx)

	if wantsHTML(r) {
		if err != nil {
			log.Warn("reload failed", "err", err)
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err != nil {
		log.Warn("reload failed", "err", err)
		msg := service.LoadFailedMessage
		var loadErr *service.LoadError
		if errors.As(err, &loadErr) {
			msg = loadErr.Message
		}
		writeJSON(w, http.StatusServiceUnavailable, ReloadResponse{Status: "error", Message: msg})
		return
	}

	log.Info("catalog reloaded")
	writeJSON(w, http.StatusOK, ReloadResponse{Status: "ok"})
}

func (h GalleryHandler) applied(w http.ResponseWriter, op string, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrUnknownFilterType) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{"unknown filter type"})
			return
		}
		slog.Error("failed to apply filters", "op", op, "err", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{"failed to apply filters"})
		return
	}
	h.writeFilters(w, http.StatusOK)
}

func (h GalleryHandler) writeFilters(w http.ResponseWriter, code int) {
	writeJSON(w, code, FiltersResponse{
		State: h.gallery.FilterState(),
		Stats: h.gallery.FilterStats(),
	})
}

func filterPath(r *http.Request) (domain.FilterType, string) {
	return domain.FilterType(r.PathValue("type")), r.PathValue("value")
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{"invalid JSON data"})
		slog.Warn("failed to parse JSON", "op", op, "err", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	const op = "httphandler.writeJSON"

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response body", "op", op, "err", err)
	}
}
