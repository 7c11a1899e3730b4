// Package filter evaluates the composite gallery filter against a product
// collection.
//
// Facets are ANDed together while the values selected inside one facet are
// ORed: selecting both "featured" and "discount" shows products that are
// featured or discounted.
package filter

import (
	"strings"

	"github.com/niksmo/gallery/internal/core/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Apply returns the products that satisfy s, in input order.
// The result is never nil.
func Apply(s domain.FilterState, products []domain.Product) []domain.Product {
	m := newMatcher(s)
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if m.match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Matches reports whether p satisfies s.
func Matches(s domain.FilterState, p domain.Product) bool {
	return newMatcher(s).match(p)
}

type matcher struct {
	state domain.FilterState
	query string
	lower cases.Caser
}

func newMatcher(s domain.FilterState) matcher {
	lower := cases.Lower(language.Und)
	return matcher{
		state: s,
		query: lower.String(strings.TrimSpace(s.Search)),
		lower: lower,
	}
}

func (m matcher) match(p domain.Product) bool {
	return m.matchesCategory(p) &&
		m.matchesSearch(p) &&
		m.matchesStatus(p) &&
		m.matchesTags(p) &&
		m.matchesStock(p)
}

func (m matcher) matchesCategory(p domain.Product) bool {
	return m.state.Category == domain.CategoryAll ||
		p.Category == m.state.Category
}

func (m matcher) matchesSearch(p domain.Product) bool {
	if m.query == "" {
		return true
	}
	if m.contains(p.Title) || m.contains(p.Description) {
		return true
	}
	for _, tag := range p.Tags {
		if m.contains(tag) {
			return true
		}
	}
	return false
}

func (m matcher) contains(s string) bool {
	return strings.Contains(m.lower.String(s), m.query)
}

func (m matcher) matchesStatus(p domain.Product) bool {
	if m.state.Status.Len() == 0 {
		return true
	}
	for status := range m.state.Status {
		if matchesStatus(status, p) {
			return true
		}
	}
	return false
}

// matchesStatus evaluates one status id. Unknown ids pass.
func matchesStatus(status string, p domain.Product) bool {
	switch status {
	case domain.StatusFeatured:
		return p.Featured
	case domain.StatusNew:
		return p.IsNew()
	case domain.StatusDiscount:
		return p.HasDiscount()
	default:
		return true
	}
}

// KnownStatus reports whether status has a dedicated predicate.
func KnownStatus(status string) bool {
	switch status {
	case domain.StatusFeatured, domain.StatusNew, domain.StatusDiscount:
		return true
	}
	return false
}

func (m matcher) matchesTags(p domain.Product) bool {
	if m.state.Tags.Len() == 0 {
		return true
	}
	for _, tag := range p.Tags {
		if m.state.Tags.Has(tag) {
			return true
		}
	}
	return false
}

func (m matcher) matchesStock(p domain.Product) bool {
	return m.state.ShowOutOfStock || p.InStock()
}
