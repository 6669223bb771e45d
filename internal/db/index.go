package db

import (
	"errors"
	"fmt"
	"strconv"
)

// FieldKind is the FT schema type of an indexed hash field.
type FieldKind int

// Field kinds supported by CreateIndex.
const (
	KindText FieldKind = iota + 1
	KindTag
	KindNumeric
	KindVector
)

func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "TEXT"
	case KindTag:
		return "TAG"
	case KindNumeric:
		return "NUMERIC"
	case KindVector:
		return "VECTOR"
	default:
		return "UNKNOWN"
	}
}

// DistanceMetric used by KNN queries. Search scores assume cosine.
type DistanceMetric string

// DistanceCosine is cosine distance, 1 - cosine similarity.
const DistanceCosine DistanceMetric = "COSINE"

// HNSW describes a FLOAT32 vector field indexed with HNSW.
type HNSW struct {
	Dim         int
	Distance    DistanceMetric // empty means cosine
	M           int            // max edges per node, 0 keeps the server default
	EFConstruct int            // build-time candidate list size, 0 keeps the server default
}

// Field is one attribute of an FT schema.
type Field struct {
	Name     string
	Alias    string // AS alias, used by queries in place of Name
	Kind     FieldKind
	Weight   float64 // TEXT: BM25 weight, 0 keeps the default of 1
	NoStem   bool    // TEXT: match tokens verbatim
	Sortable bool
	Vector   *HNSW // VECTOR only
}

// QueryName is how FT.SEARCH refers to the field.
func (f *Field) QueryName() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// IndexDefinition describes an FT index over hashes under Prefixes.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []Field
}

// Validate checks that the definition would be accepted by FT.CREATE.
func (d *IndexDefinition) Validate() error {
	if !validIdentifier(d.Name) {
		return fmt.Errorf("invalid index name %q", d.Name)
	}
	if len(d.Fields) == 0 {
		return errors.New("index has no fields")
	}

	seen := make(map[string]struct{}, len(d.Fields))
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		name := f.QueryName()
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate field %q", name)
		}
		seen[name] = struct{}{}

		switch f.Kind {
		case KindText:
			if f.Weight < 0 {
				return fmt.Errorf("field %q: negative weight", name)
			}
		case KindTag, KindNumeric:
		case KindVector:
			if f.Vector == nil || f.Vector.Dim <= 0 {
				return fmt.Errorf("field %q: vector needs a positive dimension", name)
			}
		default:
			return fmt.Errorf("field %q: unknown kind %d", name, f.Kind)
		}
	}
	return nil
}

// CreateArgs renders the arguments of FT.CREATE, index name first.
func (d *IndexDefinition) CreateArgs() ([]string, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	args := []string{d.Name, "ON", "HASH"}
	if len(d.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(d.Prefixes)))
		args = append(args, d.Prefixes...)
	}
	args = append(args, "SCHEMA")
	for i := range d.Fields {
		args = append(args, d.Fields[i].schemaArgs()...)
	}
	return args, nil
}

func (f *Field) schemaArgs() []string {
	args := []string{f.Name}
	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}
	args = append(args, f.Kind.String())

	switch f.Kind {
	case KindText:
		if f.Weight > 0 {
			args = append(args, "WEIGHT", strconv.FormatFloat(f.Weight, 'f', -1, 64))
		}
		if f.NoStem {
			args = append(args, "NOSTEM")
		}
	case KindVector:
		args = append(args, f.Vector.args()...)
	}

	if f.Sortable && f.Kind != KindVector {
		args = append(args, "SORTABLE")
	}
	return args
}

// args renders "HNSW <n> TYPE FLOAT32 DIM .. DISTANCE_METRIC .. [M ..] [EF_CONSTRUCTION ..]".
func (h *HNSW) args() []string {
	distance := h.Distance
	if distance == "" {
		distance = DistanceCosine
	}
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(h.Dim),
		"DISTANCE_METRIC", string(distance),
	}
	if h.M > 0 {
		attrs = append(attrs, "M", strconv.Itoa(h.M))
	}
	if h.EFConstruct > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(h.EFConstruct))
	}
	return append([]string{"HNSW", strconv.Itoa(len(attrs))}, attrs...)
}

// validIdentifier reports whether s is a non-empty run of [a-zA-Z0-9_:-].
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == ':', r == '-':
		default:
			return false
		}
	}
	return true
}
