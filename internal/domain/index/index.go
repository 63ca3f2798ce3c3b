package index

import (
	"fmt"
	"regexp"
	"time"

	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
)

var nameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_.\-]*$`)

// Index is the event index aggregate (immutable value object).
type Index struct {
	name      string
	fields    []field.Field
	createdAt int64
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("index name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("index name too long (max 64)")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("index name must be lowercase alphanumeric with dots, underscores and hyphens")
	}
	return nil
}

func validateFields(fields []field.Field) error {
	if len(fields) == 0 {
		return fmt.Errorf("at least one field is required")
	}
	if len(fields) > 256 {
		return fmt.Errorf("too many fields (max 256)")
	}
	names := make(map[string]bool, len(fields))
	attrs := make(map[string]string, len(fields))
	hasTime := false
	for _, f := range fields {
		if names[f.Name()] {
			return fmt.Errorf("duplicate field name: %s", f.Name())
		}
		names[f.Name()] = true
		if other, ok := attrs[f.Attribute()]; ok {
			return fmt.Errorf("fields %s and %s map to the same attribute %s", other, f.Name(), f.Attribute())
		}
		attrs[f.Attribute()] = f.Name()
		if f.FieldType() == field.Date {
			hasTime = true
		}
	}
	if !hasTime {
		return fmt.Errorf("at least one date field is required")
	}
	return nil
}

// New validates and creates an Index.
// Name: ^[a-z0-9][a-z0-9_.-]*$, 1-64 chars. Fields: unique names and attributes,
// 1-256, at least one date field to order events by.
func New(name string, fields []field.Field) (Index, error) {
	if err := validateName(name); err != nil {
		return Index{}, err
	}
	if err := validateFields(fields); err != nil {
		return Index{}, err
	}
	return Index{
		name:      name,
		fields:    fields,
		createdAt: time.Now().UnixMilli(),
	}, nil
}

// Reconstruct creates an Index without validation (storage hydration).
func Reconstruct(name string, fields []field.Field, createdAt int64) Index {
	return Index{name: name, fields: fields, createdAt: createdAt}
}

// Name returns the index name.
func (i Index) Name() string { return i.name }

// Fields returns the indexed field definitions.
func (i Index) Fields() []field.Field { return i.fields }

// CreatedAt returns the creation timestamp (unix millis).
func (i Index) CreatedAt() int64 { return i.createdAt }

// FieldByName looks up a field by name.
func (i Index) FieldByName(name string) (field.Field, bool) {
	for _, f := range i.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return field.Field{}, false
}

// FieldType returns the declared type of a field.
func (i Index) FieldType(name string) (field.Type, bool) {
	f, ok := i.FieldByName(name)
	if !ok {
		return "", false
	}
	return f.FieldType(), true
}
