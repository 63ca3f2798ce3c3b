package db

import (
	"strconv"
	"strings"
)

// IndexBuilder assembles the FT schema of an event index. Every attribute
// reads from the document's _idx object.
type IndexBuilder struct {
	def IndexDefinition
}

// NewEventIndex starts a JSON index named name over the keys under prefixes.
func NewEventIndex(name string, prefixes ...string) *IndexBuilder {
	return &IndexBuilder{
		def: IndexDefinition{
			Name:        name,
			StorageType: StorageJSON,
			Prefixes:    prefixes,
		},
	}
}

// Keyword adds an exact TAG attribute and its case-folded twin, so both
// == and : can be answered from the index.
func (b *IndexBuilder) Keyword(attr string) *IndexBuilder {
	path := IndexedPath + attr
	b.def.Fields = append(b.def.Fields,
		IndexField{
			Path:          path,
			Alias:         attr,
			Type:          AttrTag,
			Separator:     KeywordSeparator,
			CaseSensitive: true,
			IndexMissing:  true,
		},
		IndexField{
			Path:      path,
			Alias:     attr + CaseInsensitiveSuffix,
			Type:      AttrTag,
			Separator: KeywordSeparator,
		},
	)
	return b
}

// Numeric adds a sortable NUMERIC attribute. Dates are stored as epoch
// milliseconds and use it too, which lets any of them order a search.
func (b *IndexBuilder) Numeric(attr string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{
		Path:         IndexedPath + attr,
		Alias:        attr,
		Type:         AttrNumeric,
		Sortable:     true,
		IndexMissing: true,
	})
	return b
}

// Flag adds a TAG attribute for booleans, stored as "true" or "false".
func (b *IndexBuilder) Flag(attr string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{
		Path:         IndexedPath + attr,
		Alias:        attr,
		Type:         AttrTag,
		IndexMissing: true,
	})
	return b
}

// Field appends an attribute verbatim.
func (b *IndexBuilder) Field(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Build validates and returns the definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	return &def, nil
}

// MustBuild is Build for definitions known to be valid.
func (b *IndexBuilder) MustBuild() *IndexDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// String renders the definition the way FT.CREATE spells it, with the
// keyword separator made visible.
func (idx *IndexDefinition) String() string {
	var sb strings.Builder
	sb.WriteString("FT.CREATE ")
	sb.WriteString(idx.Name)
	if idx.StorageType != "" {
		sb.WriteString(" ON " + string(idx.StorageType))
	}
	if len(idx.Prefixes) > 0 {
		sb.WriteString(" PREFIX " + strconv.Itoa(len(idx.Prefixes)))
		for _, p := range idx.Prefixes {
			sb.WriteString(" " + p)
		}
	}
	sb.WriteString(" SCHEMA")
	for i := range idx.Fields {
		f := &idx.Fields[i]
		sb.WriteString(" " + f.Path)
		if f.Alias != "" {
			sb.WriteString(" AS " + f.Alias)
		}
		sb.WriteString(" " + f.Type.String())
		if f.Separator != "" {
			sb.WriteString(" SEPARATOR " + strconv.Quote(f.Separator))
		}
		if f.CaseSensitive {
			sb.WriteString(" CASESENSITIVE")
		}
		if f.IndexMissing {
			sb.WriteString(" INDEXMISSING")
		}
		if f.Sortable {
			sb.WriteString(" SORTABLE")
		}
	}
	return sb.String()
}
