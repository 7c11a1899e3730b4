package domain

// A View is what a renderer draws: the filtered products in order plus the
// numbers shown around the grid.
type View struct {
	Products   []Product
	Categories []Category
	Total      int
	Stats      FilterStats
}

func (v View) Visible() int {
	return len(v.Products)
}

func (v View) Empty() bool {
	return len(v.Products) == 0
}

func (v View) CategoryIcon(id string) string {
	return CategoryIcon(v.Categories, id)
}

// Stars is a five-star rating split into glyph counts.
type Stars struct {
	Full  int
	Half  bool
	Empty int
}

// StarRating renders rating as whole stars plus a half star when the
// fractional part is at least one half. Ratings are clamped to [0, 5].
func StarRating(rating float64) Stars {
	rating = max(0, min(5, rating))
	full := int(rating)
	half := rating-float64(full) >= 0.5
	empty := 5 - full
	if half {
		empty--
	}
	return Stars{Full: full, Half: half, Empty: empty}
}
