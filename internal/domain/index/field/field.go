package field

import (
	"fmt"
	"regexp"
	"strings"
)

// Type is the indexing type of a field.
type Type string

// Field type constants.
const (
	// Keyword is an exact-match string field.
	Keyword Type = "keyword"
	Numeric Type = "numeric"
	// Date holds epoch millis or RFC3339 strings, stored as epoch millis.
	Date    Type = "date"
	Boolean Type = "boolean"
)

// IsValid checks if the type is one of the supported values.
func (t Type) IsValid() bool {
	return t == Keyword || t == Numeric || t == Date || t == Boolean
}

// IsOrdered reports whether range comparisons apply to the type.
func (t Type) IsOrdered() bool { return t == Numeric || t == Date }

var (
	nameRegex = regexp.MustCompile(`^[a-zA-Z_@][a-zA-Z0-9_@.\-]*$`)

	reservedFieldNames = map[string]bool{
		"_id": true, "_index": true, "_idx": true, "_source": true,
	}

	attrReplacer = strings.NewReplacer(".", "_", "@", "at_", "-", "_")
)

// Field is an immutable value object describing an indexed event field.
type Field struct {
	name      string
	fieldType Type
}

// New validates and creates a Field.
// Name must be a dotted path, max 128 chars, and not reserved.
func New(name string, ft Type) (Field, error) {
	if name == "" {
		return Field{}, fmt.Errorf("field name is required")
	}
	if len(name) > 128 {
		return Field{}, fmt.Errorf("field name %q too long (max 128)", name)
	}
	if reservedFieldNames[name] {
		return Field{}, fmt.Errorf("field name %q is reserved", name)
	}
	if !nameRegex.MatchString(name) || strings.Contains(name, "..") || strings.HasSuffix(name, ".") {
		return Field{}, fmt.Errorf("invalid field name %q", name)
	}
	if !ft.IsValid() {
		return Field{}, fmt.Errorf("invalid field type %q for %q", ft, name)
	}
	return Field{name: name, fieldType: ft}, nil
}

// Reconstruct creates a Field without validation (storage hydration).
func Reconstruct(name string, ft Type) Field {
	return Field{name: name, fieldType: ft}
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// FieldType returns the field's indexing type.
func (f Field) FieldType() Type { return f.fieldType }

// Attribute returns the backend attribute name for the field.
func (f Field) Attribute() string { return Attribute(f.name) }

// Attribute maps a dotted field path to a backend-safe attribute name.
func Attribute(name string) string { return attrReplacer.Replace(name) }

// Path splits a dotted field name into its segments.
func Path(name string) []string { return strings.Split(name, ".") }
