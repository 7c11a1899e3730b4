package domain

import (
	"bytes"
	"fmt"
	"slices"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewTag is the product tag that marks a product as new.
const NewTag = "nuevo"

// DefaultCategoryIcon is shown for products whose category is unknown.
const DefaultCategoryIcon = "📦"

// A ProductID identifies a product. Catalog documents carry it either as a
// JSON number or as a JSON string.
type ProductID string

func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ProductID(s)
		return nil
	}

	var n jsoniter.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if n == "" {
		return fmt.Errorf("product id: want string or number, got %q", data)
	}
	*id = ProductID(n.String())
	return nil
}

type (
	Product struct {
		ID            ProductID        `json:"id" validate:"required"`
		Title         string           `json:"title" validate:"required"`
		Description   string           `json:"description"`
		Category      string           `json:"category"`
		Price         decimal.Decimal  `json:"price" validate:"gte=0"`
		OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
		Stock         int              `json:"stock" validate:"gte=0"`
		Rating        float64          `json:"rating" validate:"gte=0,lte=5"`
		ReviewCount   int              `json:"reviewCount" validate:"gte=0"`
		Featured      bool             `json:"featured"`
		Tags          []string         `json:"tags"`
		Image         string           `json:"image,omitempty"`
	}

	Category struct {
		ID   string `json:"id" validate:"required"`
		Name string `json:"name"`
		Icon string `json:"icon"`
	}
)

// HasDiscount reports whether the original price is present and strictly
// greater than the price.
func (p Product) HasDiscount() bool {
	return p.OriginalPrice != nil && p.OriginalPrice.GreaterThan(p.Price)
}

// DiscountPercent returns the discount rounded to a whole percent, or 0.
func (p Product) DiscountPercent() int {
	if !p.HasDiscount() {
		return 0
	}
	orig := *p.OriginalPrice
	pct := orig.Sub(p.Price).Div(orig).Mul(decimal.NewFromInt(100)).Round(0)
	return int(pct.IntPart())
}

func (p Product) InStock() bool {
	return p.Stock > 0
}

func (p Product) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

func (p Product) IsNew() bool {
	return p.HasTag(NewTag)
}

// A Catalog is the data source document.
type Catalog struct {
	Products   []Product  `json:"products" validate:"unique=ID,dive"`
	Categories []Category `json:"categories" validate:"dive"`
}

// CategoryIcon resolves the icon of the category id.
func CategoryIcon(categories []Category, id string) string {
	for _, c := range categories {
		if c.ID == id && c.Icon != "" {
			return c.Icon
		}
	}
	return DefaultCategoryIcon
}
