// Package store keeps the loaded catalog and the current filtered view.
package store

import (
	"slices"
	"sync"

	"github.com/niksmo/gallery/internal/core/domain"
)

// A Store holds the full product list, the categories and the filtered
// products. Getters return copies.
//
// Replacing the products does not recompute the filtered list; the gallery
// does that on its next filter pass.
type Store struct {
	mu         sync.RWMutex
	products   []domain.Product
	categories []domain.Category
	filtered   []domain.Product

	gen       uint64
	committed uint64
}

func New() *Store {
	return &Store{
		products:   []domain.Product{},
		categories: []domain.Category{},
		filtered:   []domain.Product{},
	}
}

func (s *Store) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.products)
}

func (s *Store) Categories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categories)
}

func (s *Store) Filtered() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.filtered)
}

// Len returns the number of loaded products.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

func (s *Store) SetProducts(ps []domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = cloneOrEmpty(ps)
}

func (s *Store) SetCategories(cs []domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = cloneOrEmpty(cs)
}

func (s *Store) SetFiltered(ps []domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filtered = cloneOrEmpty(ps)
}

// BeginLoad starts a load and returns its generation.
func (s *Store) BeginLoad() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

// CommitLoad installs the catalog loaded under gen. A load that completes
// after a newer load has started is discarded, and CommitLoad reports false.
func (s *Store) CommitLoad(gen uint64, c domain.Catalog) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || gen <= s.committed {
		return false
	}
	s.committed = gen
	s.products = cloneOrEmpty(c.Products)
	s.categories = cloneOrEmpty(c.Categories)
	return true
}

// AbortLoad gives gen back when it is still the newest load, so the load
// started before it can commit again.
func (s *Store) AbortLoad(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen && gen > s.committed {
		s.gen--
	}
}

// Current reports whether gen is the newest load started.
func (s *Store) Current(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gen == s.gen
}

// Loaded reports whether any load has been committed.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed != 0
}

func cloneOrEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return slices.Clone(v)
}
