package schema

import "github.com/hamba/avro/v2"

const ProductSchemaTextV1 = `{
	"type": "record",
	"namespace": "gallery",
	"name": "product",
	"fields": [
		{"name": "id", "type": "string"},
		{"name": "title", "type": "string"},
		{"name": "description", "type": "string"},
		{"name": "category", "type": "string"},
		{"name": "price", "type": "string"},
		{"name": "original_price", "type": ["null", "string"], "default": null},
		{"name": "stock", "type": "long"},
		{"name": "rating", "type": "double"},
		{"name": "review_count", "type": "long"},
		{"name": "featured", "type": "boolean"},
		{"name": "tags", "type": {"type": "array", "items": "string"}},
		{"name": "image", "type": "string"},
		{"name": "position", "type": "long"}
	]
}`

// ProductV1 carries prices as decimal strings.
type ProductV1 struct {
	ID            string   `avro:"id"`
	Title         string   `avro:"title"`
	Description   string   `avro:"description"`
	Category      string   `avro:"category"`
	Price         string   `avro:"price"`
	OriginalPrice *string  `avro:"original_price"`
	Stock         int      `avro:"stock"`
	Rating        float64  `avro:"rating"`
	ReviewCount   int      `avro:"review_count"`
	Featured      bool     `avro:"featured"`
	Tags          []string `avro:"tags"`
	Image         string   `avro:"image"`
	Position      int      `avro:"position"`
}

func ProductV1Avro() avro.Schema {
	return avro.MustParse(ProductSchemaTextV1)
}

const CategorySchemaTextV1 = `{
	"type": "record",
	"namespace": "gallery",
	"name": "category",
	"fields": [
		{"name": "id", "type": "string"},
		{"name": "name", "type": "string"},
		{"name": "icon", "type": "string"},
		{"name": "position", "type": "long"}
	]
}`

type CategoryV1 struct {
	ID       string `avro:"id"`
	Name     string `avro:"name"`
	Icon     string `avro:"icon"`
	Position int    `avro:"position"`
}

func CategoryV1Avro() avro.Schema {
	return avro.MustParse(CategorySchemaTextV1)
}
