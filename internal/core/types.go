package core

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Value is one untyped cell as handed over by an extractor: a string,
// an int64, a float64, a bool, or nil for an empty cell.
type Value = any

// RawRow is one input line keyed by field name. Columns keeps the order in
// which the extractor saw them; Line is the 1-based source line (0 if the
// source has no notion of lines).
type RawRow struct {
	Line    int
	Columns []string
	Values  map[string]Value
}

// NewRawRow builds a RawRow from parallel column and cell slices.
// Missing trailing cells are treated as empty.
func NewRawRow(line int, columns []string, cells []Value) RawRow {
	row := RawRow{
		Line:    line,
		Columns: make([]string, 0, len(columns)),
		Values:  make(map[string]Value, len(columns)),
	}
	for i, col := range columns {
		if col == "" {
			continue
		}
		if _, dup := row.Values[col]; dup {
			continue
		}
		var v Value
		if i < len(cells) {
			v = cells[i]
		}
		row.Columns = append(row.Columns, col)
		row.Values[col] = v
	}
	return row
}

// Get returns the raw value stored for field, or nil.
func (r RawRow) Get(field string) Value {
	if r.Values == nil {
		return nil
	}
	return r.Values[field]
}

// Text returns the cleaned string form of a field. Numbers that hold an
// integral value are rendered without a fractional part so that a
// spreadsheet's 3.0 reads the same as "3".
func (r RawRow) Text(field string) string {
	return ValueText(r.Get(field))
}

// ValueText renders a Value as cleaned text.
func ValueText(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return CleanCell(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// FieldType selects how a field is checked and canonicalized.
type FieldType int

const (
	FieldText    FieldType = iota // trimmed free text
	FieldName                     // person or course name, title-cased
	FieldEmail                    // lower-cased address
	FieldCode                     // upper-cased identifier such as a course code
	FieldInteger                  // whole number
	FieldDate                     // calendar date
)

var fieldTypeNames = [...]string{"text", "name", "email", "code", "integer", "date"}

func (t FieldType) String() string {
	if t < 0 || int(t) >= len(fieldTypeNames) {
		return "unknown"
	}
	return fieldTypeNames[t]
}

// FieldSpec is one row of an entity's rule table.
type FieldSpec struct {
	Name string
	Type FieldType

	// Required fields must be non-empty after trimming.
	Required bool

	// Placeholder replaces an empty value of an optional field during
	// normalization. It is written verbatim into the record.
	Placeholder string

	// Domain restricts an integer field to the listed values.
	Domain []int64

	// Lookup names the caller-supplied reference set an integer field
	// must belong to, e.g. "department".
	Lookup string
}

// LookupSet is a read-only set of known reference ids.
type LookupSet map[int64]struct{}

// NewLookupSet builds a LookupSet from ids.
func NewLookupSet(ids ...int64) LookupSet {
	set := make(LookupSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports whether id is in the set.
func (s LookupSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Lookups maps lookup names to their reference sets. A lookup that is absent
// from the map is not checked during validation.
type Lookups map[string]LookupSet

// BusinessKey is an entity's natural uniqueness key.
type BusinessKey string

// Record is a normalized, typed row ready to be loaded.
type Record interface {
	Key() BusinessKey
}

// Fields holds canonical values produced by the Normalizer, keyed by field
// name. Entity builders turn it into a typed Record.
type Fields map[string]any

// String returns the canonical text of a field.
func (f Fields) String(name string) string {
	s, _ := f[name].(string)
	return s
}

// Int returns the canonical integer of a field, or 0.
func (f Fields) Int(name string) int64 {
	n, _ := f[name].(int64)
	return n
}

// Time returns the canonical date of a field and whether one was set.
func (f Fields) Time(name string) (time.Time, bool) {
	t, ok := f[name].(time.Time)
	return t, ok
}

// EntityInfo describes a loadable entity.
type EntityInfo struct {
	Key         string   // Registry key, e.g. "students"
	Label       string   // Display name
	Table       string   // Target table in the store
	KeyFields   []string // Fields forming the business key
	Description string
}

// EntityDefinition bundles everything the pipeline needs for one entity.
type EntityDefinition struct {
	Info   EntityInfo
	Fields []FieldSpec

	// Build turns canonical field values into a typed record.
	Build func(Fields) Record
}

// Field returns the spec for name.
func (d EntityDefinition) Field(name string) (FieldSpec, bool) {
	for _, spec := range d.Fields {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// WithOptional returns a copy of the definition where the named fields are
// no longer required. Unknown field names are a configuration error.
func (d EntityDefinition) WithOptional(names ...string) (EntityDefinition, error) {
	if len(names) == 0 {
		return d, nil
	}
	fields := make([]FieldSpec, len(d.Fields))
	copy(fields, d.Fields)

	var unknown []string
	for _, name := range names {
		found := false
		for i := range fields {
			if fields[i].Name == name {
				fields[i].Required = false
				found = true
			}
		}
		if !found {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return EntityDefinition{}, NewConfigurationError("entity %s has no field(s) %s",
			d.Info.Key, strings.Join(unknown, ", "))
	}

	d.Fields = fields
	return d, nil
}

// Inserter persists one record with insert-or-ignore semantics keyed on the
// record's business key. inserted is false when the key already exists; the
// existing row is left untouched and no error is returned.
type Inserter interface {
	InsertIgnore(ctx context.Context, rec Record) (inserted bool, err error)
}

// ValidationOutcome is the immutable result of validating one row.
type ValidationOutcome struct {
	Accepted bool
	Reasons  []string
}

// LoadStatus is the result class of a load attempt.
type LoadStatus int

const (
	LoadLoaded LoadStatus = iota
	LoadSkippedDuplicate
	LoadRejectedAtStore
)

func (s LoadStatus) String() string {
	switch s {
	case LoadLoaded:
		return "loaded"
	case LoadSkippedDuplicate:
		return "skipped_duplicate"
	case LoadRejectedAtStore:
		return "rejected_at_store"
	default:
		return "unknown"
	}
}

// LoadOutcome is what the Loader reports for one record.
type LoadOutcome struct {
	Status LoadStatus
	Detail string
}

// RowState tracks a row through the pipeline.
type RowState int

const (
	StatePending RowState = iota
	StateRejected
	StateAccepted
	StateDuplicateInBatch
	StateNormalized
	StateLoaded
	StateSkippedDuplicate
	StateRejectedAtStore
)

var rowStateNames = map[RowState]string{
	StatePending:          "pending",
	StateRejected:         "rejected",
	StateAccepted:         "accepted",
	StateDuplicateInBatch: "duplicate_in_batch",
	StateNormalized:       "normalized",
	StateLoaded:           "loaded",
	StateSkippedDuplicate: "skipped_duplicate",
	StateRejectedAtStore:  "rejected_at_store",
}

func (s RowState) String() string {
	if name, ok := rowStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the state by name in JSON reports.
func (s RowState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *RowState) UnmarshalText(b []byte) error {
	for state, name := range rowStateNames {
		if name == string(b) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown row state %q", string(b))
}

// Terminal reports whether no further transition follows the state.
func (s RowState) Terminal() bool {
	switch s {
	case StateRejected, StateDuplicateInBatch, StateLoaded, StateSkippedDuplicate, StateRejectedAtStore:
		return true
	}
	return false
}
