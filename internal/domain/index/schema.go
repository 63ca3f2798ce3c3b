package index

import (
	"fmt"

	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
)

// Schema is the union of field declarations of one or more indices.
type Schema struct {
	types map[string]field.Type
}

// Merge combines index schemas. A field declared with different types
// in two indices is rejected.
func Merge(indices ...Index) (Schema, error) {
	s := Schema{types: make(map[string]field.Type)}
	for _, idx := range indices {
		for _, f := range idx.Fields() {
			if prev, ok := s.types[f.Name()]; ok && prev != f.FieldType() {
				return Schema{}, fmt.Errorf(
					"field %s is %s in one index and %s in %s", f.Name(), prev, f.FieldType(), idx.Name())
			}
			s.types[f.Name()] = f.FieldType()
		}
	}
	return s, nil
}

// FieldType returns the declared type of a field.
func (s Schema) FieldType(name string) (field.Type, bool) {
	t, ok := s.types[name]
	return t, ok
}

// Len returns the number of distinct fields.
func (s Schema) Len() int { return len(s.types) }
