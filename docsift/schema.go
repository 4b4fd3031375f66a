package docsift

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// FieldQuery is the declared semantic kind of a schema field. It governs how
// raw filter values are parsed and translated into predicate fragments. The
// set of kinds is closed; dispatch is by exhaustive type switch.
type FieldQuery interface {
	isFieldQuery()
}

// Range is a numeric field queryable directly by its canonical name or via
// the derived Min/Max virtual keys.
type Range struct {
	Min     string
	Max     string
	Aliases map[string]int64
}

func (Range) isFieldQuery() {}

// Min is the effective kind of a Range field addressed through its min key.
type Min struct{}

func (Min) isFieldQuery() {}

// Max is the effective kind of a Range field addressed through its max key.
type Max struct{}

func (Max) isFieldQuery() {}

// Bool matches true/false values and supports existence keywords.
type Bool struct{}

func (Bool) isFieldQuery() {}

// AmbiguousTag matches a field stored sometimes as number, sometimes as
// string, sometimes absent.
type AmbiguousTag struct{}

func (AmbiguousTag) isFieldQuery() {}

// NumericTag matches an integer-coded tag, optionally via named aliases.
// The stored value may be a number or its string form.
type NumericTag struct {
	Aliases map[string]int64
}

func (NumericTag) isFieldQuery() {}

// StringTag matches by plain string equality.
type StringTag struct{}

func (StringTag) isFieldQuery() {}

// Nested marks a field whose canonical name is a path prefix; filter keys
// address values under it with dotted paths.
type Nested struct{}

func (Nested) isFieldQuery() {}

// Fulltext matches by text search at the relational level rather than inside
// the document-path expression.
type Fulltext struct {
	Lang   string
	Syntax string
	Target string // document field to search; empty means the field's own name
}

func (Fulltext) isFieldQuery() {}

// Not negates any inner kind, including another Not.
type Not struct {
	Inner FieldQuery
}

func (Not) isFieldQuery() {}

// ConvertKind names a value representation for result post-processing.
type ConvertKind string

const (
	ConvertDateTimeString  ConvertKind = "datetime_string"
	ConvertTimestamp       ConvertKind = "timestamp"
	ConvertTimestampMillis ConvertKind = "timestamp_millis"
)

// ConverterSpec declares how a field's value is rewritten on the way out of
// the store. Pairs without a defined rule are no-ops.
type ConverterSpec struct {
	From ConvertKind `json:"from"`
	To   ConvertKind `json:"to"`
}

// FieldSpec is one declared field: its query kind plus an optional converter.
type FieldSpec struct {
	Query   FieldQuery
	Convert *ConverterSpec
}

// Schema describes one document table: where it lives, which filter keys it
// accepts, and how results are ordered by default.
type Schema struct {
	Table         string               `json:"table"`
	Fields        map[string]FieldSpec `json:"fields"`
	DefaultSortBy string               `json:"default_sortby"`
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var reservedFieldNames = map[string]bool{
	KeySortBy:    true,
	KeySortOrder: true,
	KeyLimit:     true,
	KeyOffset:    true,
}

var fulltextSyntaxes = map[string]bool{
	"to_tsquery":           true,
	"plainto_tsquery":      true,
	"phraseto_tsquery":     true,
	"websearch_to_tsquery": true,
}

var convertKinds = map[ConvertKind]bool{
	ConvertDateTimeString:  true,
	ConvertTimestamp:       true,
	ConvertTimestampMillis: true,
}

// Validate checks the schema. Field names, the table name, and every value
// interpolated into query text (aliases aside, which are integers) must be
// plain identifiers.
func (s Schema) Validate() error {
	if !identRe.MatchString(s.Table) {
		return SchemaError(fmt.Sprintf("invalid table name %q (must match %s)", s.Table, identRe.String()))
	}
	if len(s.Fields) == 0 {
		return SchemaError("schema must have at least one field")
	}

	// Range min/max virtual keys share one namespace with each other; a key
	// two fields both claim would resolve to whichever the scan hits first.
	virtualOwner := make(map[string]string)

	for name, spec := range s.Fields {
		if !identRe.MatchString(name) {
			return SchemaError(fmt.Sprintf("invalid field name %q (must match %s)", name, identRe.String()))
		}
		if reservedFieldNames[name] {
			return SchemaError(fmt.Sprintf("field name %q is reserved", name))
		}
		if spec.Query == nil {
			return SchemaError(fmt.Sprintf("field %q has no query kind", name))
		}
		if err := s.validateQuery(name, spec.Query); err != nil {
			return err
		}
		if c := spec.Convert; c != nil {
			if !convertKinds[c.From] || !convertKinds[c.To] {
				return SchemaError(fmt.Sprintf("field %q: unknown converter pair %s -> %s", name, c.From, c.To))
			}
		}
		if r, isRange := spec.Query.(Range); isRange {
			for _, key := range []string{r.Min, r.Max} {
				if owner, taken := virtualOwner[key]; taken {
					return SchemaError(fmt.Sprintf("fields %q and %q both declare range key %q", owner, name, key))
				}
				virtualOwner[key] = name
			}
		}
	}

	return nil
}

func (s Schema) validateQuery(name string, q FieldQuery) error {
	switch q := q.(type) {
	case Range:
		if !identRe.MatchString(q.Min) || !identRe.MatchString(q.Max) {
			return SchemaError(fmt.Sprintf("field %q: range min/max keys must be identifiers", name))
		}
		if q.Min == q.Max {
			return SchemaError(fmt.Sprintf("field %q: range min and max keys must differ", name))
		}
		// Virtual keys must not shadow a declared field.
		for _, key := range []string{q.Min, q.Max} {
			if s.HasField(key) {
				return SchemaError(fmt.Sprintf("field %q: range key %q collides with a declared field", name, key))
			}
		}
	case Fulltext:
		if !identRe.MatchString(q.Lang) {
			return SchemaError(fmt.Sprintf("field %q: invalid fulltext language %q", name, q.Lang))
		}
		if !fulltextSyntaxes[q.Syntax] {
			return SchemaError(fmt.Sprintf("field %q: unknown fulltext syntax %q", name, q.Syntax))
		}
		if q.Target != "" && !identRe.MatchString(q.Target) {
			return SchemaError(fmt.Sprintf("field %q: invalid fulltext target %q", name, q.Target))
		}
	case Not:
		if q.Inner == nil {
			return SchemaError(fmt.Sprintf("field %q: not requires an inner query", name))
		}
		return s.validateQuery(name, q.Inner)
	case Min, Max, Bool, AmbiguousTag, NumericTag, StringTag, Nested:
		// no kind-specific configuration to check
	default:
		return SchemaError(fmt.Sprintf("field %q: unknown query kind %T", name, q))
	}
	return nil
}

// queryJSON is the wire form of a FieldQuery, discriminated by "type".
type queryJSON struct {
	Type    string           `json:"type"`
	Min     string           `json:"min,omitempty"`
	Max     string           `json:"max,omitempty"`
	Aliases map[string]int64 `json:"aliases,omitempty"`
	Lang    string           `json:"lang,omitempty"`
	Syntax  string           `json:"syntax,omitempty"`
	Target  string           `json:"target,omitempty"`
	Inner   *queryJSON       `json:"inner,omitempty"`
}

// upperAliases normalizes alias names so lookups can be case-insensitive.
func upperAliases(in map[string]int64) map[string]int64 {
	if in == nil {
		return nil
	}
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[strings.ToUpper(k)] = v
	}
	return out
}

func (qj *queryJSON) toQuery() (FieldQuery, error) {
	switch qj.Type {
	case "range":
		return Range{Min: qj.Min, Max: qj.Max, Aliases: upperAliases(qj.Aliases)}, nil
	case "min":
		return Min{}, nil
	case "max":
		return Max{}, nil
	case "bool":
		return Bool{}, nil
	case "ambiguous_tag":
		return AmbiguousTag{}, nil
	case "numeric_tag":
		return NumericTag{Aliases: upperAliases(qj.Aliases)}, nil
	case "string_tag":
		return StringTag{}, nil
	case "nested":
		return Nested{}, nil
	case "fulltext":
		return Fulltext{Lang: qj.Lang, Syntax: qj.Syntax, Target: qj.Target}, nil
	case "not":
		if qj.Inner == nil {
			return nil, SchemaError(`"not" query without "inner"`)
		}
		inner, err := qj.Inner.toQuery()
		if err != nil {
			return nil, err
		}
		return Not{Inner: inner}, nil
	default:
		return nil, SchemaError(fmt.Sprintf("unknown query type %q", qj.Type))
	}
}

func queryToJSON(q FieldQuery) *queryJSON {
	switch q := q.(type) {
	case Range:
		return &queryJSON{Type: "range", Min: q.Min, Max: q.Max, Aliases: q.Aliases}
	case Min:
		return &queryJSON{Type: "min"}
	case Max:
		return &queryJSON{Type: "max"}
	case Bool:
		return &queryJSON{Type: "bool"}
	case AmbiguousTag:
		return &queryJSON{Type: "ambiguous_tag"}
	case NumericTag:
		return &queryJSON{Type: "numeric_tag", Aliases: q.Aliases}
	case StringTag:
		return &queryJSON{Type: "string_tag"}
	case Nested:
		return &queryJSON{Type: "nested"}
	case Fulltext:
		return &queryJSON{Type: "fulltext", Lang: q.Lang, Syntax: q.Syntax, Target: q.Target}
	case Not:
		return &queryJSON{Type: "not", Inner: queryToJSON(q.Inner)}
	default:
		return nil
	}
}

// fieldSpecJSON is the wire form of a FieldSpec.
type fieldSpecJSON struct {
	Query   *queryJSON     `json:"query"`
	Convert *ConverterSpec `json:"convert,omitempty"`
}

func (fs FieldSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(fieldSpecJSON{Query: queryToJSON(fs.Query), Convert: fs.Convert})
}

func (fs *FieldSpec) UnmarshalJSON(data []byte) error {
	var wire fieldSpecJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Query == nil {
		return SchemaError(`field spec without "query"`)
	}
	q, err := wire.Query.toQuery()
	if err != nil {
		return err
	}
	fs.Query = q
	fs.Convert = wire.Convert
	return nil
}

// ToJSON serializes the schema to JSON.
func (s Schema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// SchemaFromJSON deserializes and validates a schema.
func SchemaFromJSON(b []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(b, &s); err != nil {
		return Schema{}, Wrap(ErrSchema, "invalid schema JSON", err)
	}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// Get retrieves a field spec by name.
func (s Schema) Get(name string) (FieldSpec, bool) {
	spec, ok := s.Fields[name]
	return spec, ok
}

// HasField checks if a field exists in the schema.
func (s Schema) HasField(name string) bool {
	_, ok := s.Fields[name]
	return ok
}
