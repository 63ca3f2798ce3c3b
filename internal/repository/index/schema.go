package index

import (
	"fmt"

	"github.com/kailas-cloud/seqdex/internal/db"
	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
)

// buildIndex creates the FT index over the _idx object of an index's events.
func buildIndex(name, prefix string, fields []field.Field) (*db.IndexDefinition, error) {
	b := db.NewEventIndex(name, prefix)

	for _, f := range fields {
		switch f.FieldType() {
		case field.Keyword:
			b.Keyword(f.Attribute())
		case field.Numeric, field.Date:
			b.Numeric(f.Attribute())
		case field.Boolean:
			b.Flag(f.Attribute())
		default:
			return nil, fmt.Errorf("unknown field type: %s", f.FieldType())
		}
	}

	return b.Build()
}
