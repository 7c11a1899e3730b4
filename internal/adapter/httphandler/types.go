package httphandler

import "github.com/niksmo/gallery/internal/core/domain"

type (
	CategoryRequest struct {
		Category string `json:"category"`
	}

	SearchRequest struct {
		Query string `json:"query"`
	}

	StockRequest struct {
		ShowOutOfStock *bool `json:"show_out_of_stock"`
	}
)

type (
	Summary struct {
		Visible int    `json:"visible"`
		Total   int    `json:"total"`
		Text    string `json:"text"`
	}

	ProductsResponse struct {
		Products []domain.Product `json:"products"`
		Summary  Summary          `json:"summary"`
	}

	CategoriesResponse struct {
		Categories []domain.Category `json:"categories"`
	}

	FiltersResponse struct {
		State domain.FilterState `json:"state"`
		Stats domain.FilterStats `json:"stats"`
	}

	FilterOptionsResponse struct {
		Status []domain.FilterOption `json:"status"`
		Tags   []domain.FilterOption `json:"tags"`
	}

	ReloadResponse struct {
		Status  string `json:"status"`
		Message string `json:"message,omitempty"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}
)
