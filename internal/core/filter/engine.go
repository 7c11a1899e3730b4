package filter

import (
	"fmt"
	"strings"

	"github.com/niksmo/gallery/internal/core/domain"
)

// An Engine owns the current filter selections.
//
// Engine is not safe for concurrent use; the gallery serializes access.
type Engine struct {
	state domain.FilterState
}

func NewEngine() *Engine {
	return &Engine{state: domain.DefaultFilterState()}
}

// State returns a copy of the current selections.
func (e *Engine) State() domain.FilterState {
	return e.state.Clone()
}

// Apply filters products with the current selections.
func (e *Engine) Apply(products []domain.Product) []domain.Product {
	return Apply(e.state, products)
}

// SetCategory selects a single category. An empty id selects all.
func (e *Engine) SetCategory(id string) {
	if id == "" {
		id = domain.CategoryAll
	}
	e.state.Category = id
}

func (e *Engine) SetSearch(query string) {
	e.state.Search = strings.TrimSpace(query)
}

func (e *Engine) SetShowOutOfStock(show bool) {
	e.state.ShowOutOfStock = show
}

// AddFilter inserts value into the facet t. Adding a present value is a no-op.
func (e *Engine) AddFilter(t domain.FilterType, value string) error {
	const op = "Engine.AddFilter"

	sel, ok := e.state.Selection(t)
	if !ok {
		return fmt.Errorf("%s: %w: %q", op, domain.ErrUnknownFilterType, t)
	}
	sel.Add(value)
	return nil
}

func (e *Engine) RemoveFilter(t domain.FilterType, value string) error {
	const op = "Engine.RemoveFilter"

	sel, ok := e.state.Selection(t)
	if !ok {
		return fmt.Errorf("%s: %w: %q", op, domain.ErrUnknownFilterType, t)
	}
	sel.Remove(value)
	return nil
}

// ClearAll restores the default selections.
func (e *Engine) ClearAll() {
	e.state = domain.DefaultFilterState()
}

// Stats counts the active filter dimensions. Status and tag selections count
// one per selected value.
func (e *Engine) Stats() domain.FilterStats {
	return Stats(e.state)
}

func Stats(s domain.FilterState) domain.FilterStats {
	st := domain.FilterStats{
		Category: s.Category != domain.CategoryAll,
		Search:   strings.TrimSpace(s.Search) != "",
		Status:   s.Status.Len(),
		Tags:     s.Tags.Len(),
		Stock:    !s.ShowOutOfStock,
	}
	st.Total = boolToInt(st.Category) +
		boolToInt(st.Search) +
		st.Status +
		st.Tags +
		boolToInt(st.Stock)
	return st
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
