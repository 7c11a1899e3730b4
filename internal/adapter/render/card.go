// Package render draws gallery views as HTML pages or terminal cards.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/niksmo/gallery/internal/core/domain"
)

const (
	EmptyStateText = "No se encontraron productos"
	LoadingText    = "Cargando productos..."
	RetryText      = "Reintentar"
	SkeletonCount  = 8
	FeaturedBadge  = "⭐ Destacado"
	NewBadge       = "🆕 Nuevo"
	OutOfStockText = "❌ Agotado"
	noFiltersText  = "Sin filtros activos"
	fullStarGlyph  = "⭐"
	halfStarGlyph  = "✨"
	emptyStarGlyph = "☆"
	currencyPrefix = "€"
)

// A Card is the display model of one product.
type Card struct {
	ID            string
	Title         string
	Description   string
	Image         string
	Category      string
	CategoryIcon  string
	Featured      bool
	New           bool
	OutOfStock    bool
	Discount      int
	Price         string
	OriginalPrice string
	Stars         string
	RatingText    string
	StockText     string
}

func NewCard(p domain.Product, categories []domain.Category) Card {
	c := Card{
		ID:           string(p.ID),
		Title:        p.Title,
		Description:  p.Description,
		Image:        p.Image,
		Category:     p.Category,
		CategoryIcon: domain.CategoryIcon(categories, p.Category),
		Featured:     p.Featured,
		New:          p.IsNew(),
		OutOfStock:   !p.InStock(),
		Discount:     p.DiscountPercent(),
		Price:        formatPrice(p.Price.StringFixed(2)),
		Stars:        Stars(p.Rating),
		RatingText: fmt.Sprintf(
			"%s (%d reseñas)", strconv.FormatFloat(p.Rating, 'f', -1, 64), p.ReviewCount,
		),
	}

	if p.HasDiscount() {
		c.OriginalPrice = formatPrice(p.OriginalPrice.StringFixed(2))
	}

	if c.OutOfStock {
		c.StockText = OutOfStockText
	} else {
		c.StockText = fmt.Sprintf("✅ %d en stock", p.Stock)
	}
	return c
}

func Cards(v domain.View) []Card {
	cards := make([]Card, len(v.Products))
	for i, p := range v.Products {
		cards[i] = NewCard(p, v.Categories)
	}
	return cards
}

func formatPrice(amount string) string {
	return currencyPrefix + amount
}

// Stars draws a rating rounded down to the nearest half star.
func Stars(rating float64) string {
	s := domain.StarRating(rating)
	var b strings.Builder
	b.WriteString(strings.Repeat(fullStarGlyph, s.Full))
	if s.Half {
		b.WriteString(halfStarGlyph)
	}
	b.WriteString(strings.Repeat(emptyStarGlyph, s.Empty))
	return b.String()
}

// Summary is the "showing N of M" line.
func Summary(v domain.View) string {
	return fmt.Sprintf("Mostrando %d de %d productos", v.Visible(), v.Total)
}

func FilterStatsText(s domain.FilterStats) string {
	if s.Total == 0 {
		return noFiltersText
	}
	return fmt.Sprintf("%d filtro(s) activo(s)", s.Total)
}
