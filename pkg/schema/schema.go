package schema

import (
	"context"

	"github.com/hamba/avro/v2"
	"github.com/twmb/franz-go/pkg/sr"
)

func AvroEncodeFn(s avro.Schema) func(v any) ([]byte, error) {
	return func(v any) ([]byte, error) {
		return avro.Marshal(s, v)
	}
}

func AvroDecodeFn(s avro.Schema) func([]byte, any) error {
	return func(data []byte, v any) error {
		return avro.Unmarshal(s, data, v)
	}
}

// A SchemaIdentifier resolves the registry id of a schema under a subject.
type SchemaIdentifier interface {
	DetermineID(ctx context.Context, subject string, avroSchemaText string) (int, error)
}

// A SchemaCreater registers Avro schemas in the schema registry. Registering
// a schema that already exists returns its id.
type SchemaCreater struct {
	cl *sr.Client
}

func NewSchemaCreater(urls ...string) (SchemaCreater, error) {
	cl, err := sr.NewClient(sr.URLs(urls...))
	if err != nil {
		return SchemaCreater{}, err
	}
	return SchemaCreater{cl}, nil
}

func (c SchemaCreater) DetermineID(
	ctx context.Context, subject string, avroSchemaText string,
) (int, error) {
	ss, err := c.cl.CreateSchema(ctx, subject, sr.Schema{
		Type:   sr.TypeAvro,
		Schema: avroSchemaText,
	})
	if err != nil {
		return 0, err
	}
	return ss.ID, nil
}

// SubjectFor returns the value subject of topic.
func SubjectFor(topic string) string {
	return topic + "-value"
}
