package domain

import (
	"maps"
	"slices"
)

// CategoryAll is the category sentinel that matches every product.
const CategoryAll = "all"

// A FilterType names a multi-select filter facet.
type FilterType string

const (
	FilterStatus FilterType = "status"
	FilterTags   FilterType = "tags"
)

func (t FilterType) Valid() bool {
	return t == FilterStatus || t == FilterTags
}

// Status filter ids.
const (
	StatusFeatured = "featured"
	StatusNew      = "new"
	StatusDiscount = "discount"
)

// A Selection is an unordered set of selected filter values.
type Selection map[string]struct{}

func NewSelection(values ...string) Selection {
	s := make(Selection, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Add inserts v and reports whether it was absent.
func (s Selection) Add(v string) bool {
	if _, ok := s[v]; ok {
		return false
	}
	s[v] = struct{}{}
	return true
}

// Remove deletes v and reports whether it was present.
func (s Selection) Remove(v string) bool {
	if _, ok := s[v]; !ok {
		return false
	}
	delete(s, v)
	return true
}

func (s Selection) Has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s Selection) Len() int {
	return len(s)
}

// Values returns the selected values in sorted order.
func (s Selection) Values() []string {
	return slices.Sorted(maps.Keys(s))
}

func (s Selection) Clone() Selection {
	c := make(Selection, len(s))
	maps.Copy(c, s)
	return c
}

func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// A FilterState holds the current filter selections.
type FilterState struct {
	Category       string    `json:"category"`
	Search         string    `json:"search"`
	Status         Selection `json:"status"`
	Tags           Selection `json:"tags"`
	ShowOutOfStock bool      `json:"show_out_of_stock"`
}

func DefaultFilterState() FilterState {
	return FilterState{
		Category:       CategoryAll,
		Search:         "",
		Status:         NewSelection(),
		Tags:           NewSelection(),
		ShowOutOfStock: true,
	}
}

// Clone returns a deep copy that shares no sets with s.
func (s FilterState) Clone() FilterState {
	c := s
	c.Status = s.Status.Clone()
	c.Tags = s.Tags.Clone()
	return c
}

// Selection returns the set that backs the facet t.
func (s FilterState) Selection(t FilterType) (Selection, bool) {
	switch t {
	case FilterStatus:
		return s.Status, true
	case FilterTags:
		return s.Tags, true
	}
	return nil, false
}

// FilterStats describes which filter dimensions are active.
type FilterStats struct {
	Category bool `json:"category"`
	Search   bool `json:"search"`
	Status   int  `json:"status"`
	Tags     int  `json:"tags"`
	Stock    bool `json:"stock"`
	Total    int  `json:"total"`
}

// A FilterOption is a selectable value of a filter facet.
type FilterOption struct {
	ID   string `json:"id" mapstructure:"id" yaml:"id"`
	Name string `json:"name" mapstructure:"name" yaml:"name"`
	Icon string `json:"icon" mapstructure:"icon" yaml:"icon"`
}

func DefaultStatusOptions() []FilterOption {
	return []FilterOption{
		{ID: StatusFeatured, Name: "Destacados", Icon: "⭐"},
		{ID: StatusNew, Name: "Nuevos", Icon: "🆕"},
		{ID: StatusDiscount, Name: "En oferta", Icon: "💸"},
	}
}

func DefaultTagOptions() []FilterOption {
	return []FilterOption{
		{ID: "popular", Name: "Populares", Icon: "🔥"},
		{ID: NewTag, Name: "Nuevo", Icon: "🎉"},
		{ID: "oferta", Name: "Oferta", Icon: "💰"},
	}
}
