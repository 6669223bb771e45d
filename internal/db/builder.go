package db

import "errors"

var errNoField = errors.New("modifier used before any field was added")

// SchemaBuilder assembles an IndexDefinition field by field. Weight, NoStem,
// Sortable and As modify the field added last.
type SchemaBuilder struct {
	def IndexDefinition
	err error
}

// NewIndex starts an index over hashes whose keys start with one of prefixes.
func NewIndex(name string, prefixes ...string) *SchemaBuilder {
	return &SchemaBuilder{def: IndexDefinition{Name: name, Prefixes: prefixes}}
}

// Text adds a full-text field.
func (b *SchemaBuilder) Text(name string) *SchemaBuilder {
	return b.add(Field{Name: name, Kind: KindText})
}

// Tag adds an exact-match tag field.
func (b *SchemaBuilder) Tag(name string) *SchemaBuilder {
	return b.add(Field{Name: name, Kind: KindTag})
}

// Numeric adds a numeric field.
func (b *SchemaBuilder) Numeric(name string) *SchemaBuilder {
	return b.add(Field{Name: name, Kind: KindNumeric})
}

// Vector adds an HNSW vector field.
func (b *SchemaBuilder) Vector(name string, spec HNSW) *SchemaBuilder {
	return b.add(Field{Name: name, Kind: KindVector, Vector: &spec})
}

// Weight sets the BM25 weight of the last text field.
func (b *SchemaBuilder) Weight(w float64) *SchemaBuilder {
	if f := b.last(); f != nil {
		f.Weight = w
	}
	return b
}

// NoStem disables stemming on the last text field.
func (b *SchemaBuilder) NoStem() *SchemaBuilder {
	if f := b.last(); f != nil {
		f.NoStem = true
	}
	return b
}

// Sortable marks the last field SORTABLE.
func (b *SchemaBuilder) Sortable() *SchemaBuilder {
	if f := b.last(); f != nil {
		f.Sortable = true
	}
	return b
}

// As aliases the last field.
func (b *SchemaBuilder) As(alias string) *SchemaBuilder {
	if f := b.last(); f != nil {
		f.Alias = alias
	}
	return b
}

// Build validates and returns the definition.
func (b *SchemaBuilder) Build() (*IndexDefinition, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	return &def, nil
}

func (b *SchemaBuilder) add(f Field) *SchemaBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

func (b *SchemaBuilder) last() *Field {
	n := len(b.def.Fields)
	if n == 0 {
		if b.err == nil {
			b.err = errNoField
		}
		return nil
	}
	return &b.def.Fields[n-1]
}
