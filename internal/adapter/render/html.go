package render

import (
	"bytes"
	"fmt"
	"html/template"
	"sync"

	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/internal/core/port"
)

var _ port.Renderer = (*HTMLRenderer)(nil)

const pageTemplate = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<main class="gallery" aria-busy="{{.Loading}}">
{{- if .Loading}}
<p class="loading">{{.LoadingText}}</p>
<section class="card-container">
{{- range .Skeletons}}
<div class="card skeleton-card">
<div class="skeleton-image skeleton"></div>
<div class="card__content">
<div class="skeleton-text skeleton skeleton-text--medium"></div>
<div class="skeleton-text skeleton skeleton-text--short"></div>
<div class="skeleton-text skeleton"></div>
</div>
</div>
{{- end}}
</section>
{{- else if .Error}}
<div class="error-message" role="alert">
<p>{{.Error}}</p>
<form method="post" action="{{.ReloadPath}}">
<button class="retry-btn" type="submit">{{.RetryText}}</button>
</form>
</div>
{{- else}}
<header class="gallery__header">
<p class="gallery__summary">{{.Summary}}</p>
<p class="filter-stats">{{.FilterStats}}</p>
</header>
{{- if .Cards}}
<section class="card-container">
{{- range .Cards}}
<article class="card{{if .Featured}} card--featured{{end}}{{if .OutOfStock}} card--out-of-stock{{end}}" data-category="{{.Category}}" data-id="{{.ID}}" aria-labelledby="product-title-{{.ID}}">
<div class="card__image-container">
{{- if .New}}
<span class="card__new-badge">` + NewBadge + `</span>
{{- end}}
{{- if .Featured}}
<span class="card__badge">` + FeaturedBadge + `</span>
{{- end}}
<img src="{{.Image}}" alt="{{.Title}}" class="card__image" loading="lazy" decoding="async">
</div>
{{- if .Discount}}
<span class="card__discount">-{{.Discount}}%</span>
{{- end}}
<div class="card__content">
<span class="card__category">{{.CategoryIcon}}</span>
<h3 id="product-title-{{.ID}}" class="card__title">{{.Title}}</h3>
<p class="card__description">{{.Description}}</p>
<div class="card__rating">
<span class="rating__stars">{{.Stars}}</span>
<span class="rating__text">{{.RatingText}}</span>
</div>
</div>
<div class="card__footer">
<div class="price-container">
{{- if .OriginalPrice}}
<span class="card__original-price"><s>{{.OriginalPrice}}</s></span>
{{- end}}
<span class="card__price">{{.Price}}</span>
</div>
<div class="stock-info stock-badge {{if .OutOfStock}}out-of-stock{{else}}in-stock{{end}}">{{.StockText}}</div>
</div>
</article>
{{- end}}
</section>
{{- else}}
<div class="empty-state">
<p>{{.EmptyText}}</p>
</div>
{{- end}}
{{- end}}
</main>
</body>
</html>
`

type page struct {
	Title       string
	Loading     bool
	LoadingText string
	Skeletons   []struct{}
	Error       string
	ReloadPath  string
	RetryText   string
	Summary     string
	FilterStats string
	Cards       []Card
	EmptyText   string
}

// DefaultReloadPath is where the retry button of the error state posts.
const DefaultReloadPath = "/v1/catalog/reload"

// An HTMLRenderer draws views into an HTML page and keeps the latest one.
type HTMLRenderer struct {
	tmpl       *template.Template
	title      string
	reloadPath string

	mu   sync.RWMutex
	last []byte
}

func NewHTMLRenderer(title string) *HTMLRenderer {
	return &HTMLRenderer{
		tmpl:       template.Must(template.New("gallery").Parse(pageTemplate)),
		title:      title,
		reloadPath: DefaultReloadPath,
	}
}

func (r *HTMLRenderer) Draw(v domain.View) error {
	return r.render(page{
		Summary:     Summary(v),
		FilterStats: FilterStatsText(v.Stats),
		Cards:       Cards(v),
		EmptyText:   EmptyStateText,
	})
}

func (r *HTMLRenderer) DrawLoading() error {
	return r.render(page{
		Loading:     true,
		LoadingText: LoadingText,
		Skeletons:   make([]struct{}, SkeletonCount),
	})
}

func (r *HTMLRenderer) DrawError(message string) error {
	return r.render(page{
		Error:      message,
		ReloadPath: r.reloadPath,
		RetryText:  RetryText,
	})
}

func (r *HTMLRenderer) render(p page) error {
	const op = "HTMLRenderer.render"

	p.Title = r.title

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, p); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	r.last = buf.Bytes()
	r.mu.Unlock()
	return nil
}

// Page returns the latest drawn page, or nil before the first draw.
func (r *HTMLRenderer) Page() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return bytes.Clone(r.last)
}
