package schema

import (
	"time"

	"github.com/hamba/avro/v2"
)

const FilterEventSchemaTextV1 = `{
	"type": "record",
	"namespace": "gallery",
	"name": "filter_event",
	"fields": [
		{"name": "event_id", "type": "string"},
		{"name": "session_id", "type": "string"},
		{"name": "occurred_at", "type": {"type": "long", "logicalType": "timestamp-millis"}},
		{"name": "category", "type": "string"},
		{"name": "search", "type": "string"},
		{"name": "status", "type": {"type": "array", "items": "string"}},
		{"name": "tags", "type": {"type": "array", "items": "string"}},
		{"name": "show_out_of_stock", "type": "boolean"},
		{"name": "visible", "type": "long"},
		{"name": "total", "type": "long"}
	]
}`

type FilterEventV1 struct {
	EventID        string    `avro:"event_id"`
	SessionID      string    `avro:"session_id"`
	OccurredAt     time.Time `avro:"occurred_at"`
	Category       string    `avro:"category"`
	Search         string    `avro:"search"`
	Status         []string  `avro:"status"`
	Tags           []string  `avro:"tags"`
	ShowOutOfStock bool      `avro:"show_out_of_stock"`
	Visible        int       `avro:"visible"`
	Total          int       `avro:"total"`
}

func FilterEventV1Avro() avro.Schema {
	return avro.MustParse(FilterEventSchemaTextV1)
}
