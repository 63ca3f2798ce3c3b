package db

import (
	"errors"
	"fmt"
)

// StorageType is the document representation an FT index covers.
type StorageType string

const (
	// StorageHash indexes Redis hashes.
	StorageHash StorageType = "HASH"
	// StorageJSON indexes RedisJSON documents. Event indexes always use it.
	StorageJSON StorageType = "JSON"
)

// IndexedPath is the JSON path holding an event document's normalized,
// queryable attributes. The event body as submitted lives under _source.
const IndexedPath = "$._idx."

// CaseInsensitiveSuffix names the case-folded twin of a keyword attribute.
const CaseInsensitiveSuffix = "__ci"

// KeywordSeparator keeps keyword strings whole. Multi-valued keywords are
// stored as JSON arrays, so no real value ever contains it.
const KeywordSeparator = "\x1f"

// AttrType is the FT attribute type backing an event field.
type AttrType int

const (
	// AttrNumeric backs numeric and date fields.
	AttrNumeric AttrType = iota
	// AttrTag backs keyword and boolean fields.
	AttrTag
)

func (t AttrType) String() string {
	switch t {
	case AttrNumeric:
		return "NUMERIC"
	case AttrTag:
		return "TAG"
	default:
		return fmt.Sprintf("AttrType(%d)", int(t))
	}
}

// IndexField is one attribute of an FT schema.
type IndexField struct {
	Path  string // JSON path the attribute reads
	Alias string // name queries use; defaults to Path
	Type  AttrType

	Separator     string // TAG only
	CaseSensitive bool   // TAG only

	Sortable bool
	// IndexMissing allows ismissing() on the attribute.
	IndexMissing bool
}

// Attribute returns the name the field is queried by.
func (f *IndexField) Attribute() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Path
}

// IndexDefinition is what FT.CREATE receives for one event index.
type IndexDefinition struct {
	Name        string
	StorageType StorageType
	Prefixes    []string
	Fields      []IndexField
}

// Validate rejects definitions FT.CREATE would refuse, plus prefix-less
// ones: dropping such an index with its documents would empty the keyspace.
func (idx *IndexDefinition) Validate() error {
	if !IsValidIdentifier(idx.Name) {
		return fmt.Errorf("invalid index name %q", idx.Name)
	}
	if len(idx.Prefixes) == 0 {
		return fmt.Errorf("index %s: at least one key prefix is required", idx.Name)
	}
	if len(idx.Fields) == 0 {
		return fmt.Errorf("index %s: at least one attribute is required", idx.Name)
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	for i := range idx.Fields {
		if err := idx.Fields[i].validate(); err != nil {
			return fmt.Errorf("index %s: attribute %d: %w", idx.Name, i, err)
		}
		attr := idx.Fields[i].Attribute()
		if _, dup := seen[attr]; dup {
			return fmt.Errorf("index %s: duplicate attribute %s", idx.Name, attr)
		}
		seen[attr] = struct{}{}
	}
	return nil
}

func (f *IndexField) validate() error {
	if f.Path == "" {
		return errors.New("path is required")
	}
	switch f.Type {
	case AttrNumeric:
		if f.Separator != "" || f.CaseSensitive {
			return fmt.Errorf("%s: tag options on a numeric attribute", f.Attribute())
		}
	case AttrTag:
		if f.Sortable {
			return fmt.Errorf("%s: only numeric attributes can be sortable", f.Attribute())
		}
	default:
		return fmt.Errorf("%s: unknown attribute type %s", f.Attribute(), f.Type)
	}
	return nil
}

// IsValidIdentifier reports whether s is usable as an FT index name:
// non-empty and drawn from [a-zA-Z0-9_:.-].
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == ':', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}
