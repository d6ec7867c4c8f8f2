package core

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalizer turns accepted rows into typed records. It holds no mutable
// state: the same row always yields the same record.
type Normalizer struct {
	specs []FieldSpec
	build func(Fields) Record
}

// NewNormalizer returns a Normalizer for an entity definition.
func NewNormalizer(def EntityDefinition) (*Normalizer, error) {
	if def.Build == nil {
		return nil, NewConfigurationError("entity %s has no record builder", def.Info.Key)
	}
	return &Normalizer{specs: def.Fields, build: def.Build}, nil
}

// Fields canonicalizes every declared field of row. Empty optional fields
// take their placeholder, or are left out when they have none.
func (n *Normalizer) Fields(row RawRow) Fields {
	fields := make(Fields, len(n.specs))
	for _, spec := range n.specs {
		raw := row.Text(spec.Name)
		if raw == "" {
			if spec.Placeholder == "" {
				continue
			}
			raw = spec.Placeholder
		}
		fields[spec.Name] = Canonical(spec.Type, raw)
	}
	return fields
}

// Normalize returns the typed record for an accepted row.
func (n *Normalizer) Normalize(row RawRow) Record {
	return n.build(n.Fields(row))
}

// Canonical converts a cleaned, non-empty value to the canonical form of its
// field type. Values that do not parse are returned as trimmed text.
func Canonical(ft FieldType, raw string) any {
	raw = strings.TrimSpace(raw)
	switch ft {
	case FieldName:
		return TitleCase(raw)
	case FieldEmail:
		return strings.ToLower(raw)
	case FieldCode:
		return strings.ToUpper(strings.Join(strings.Fields(raw), " "))
	case FieldInteger:
		if n, ok := ParseInteger(raw); ok {
			return n
		}
	case FieldDate:
		if t, ok := ParseDate(raw); ok {
			return t
		}
	}
	return raw
}

// TitleCase collapses runs of whitespace and title-cases every word.
func TitleCase(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	// A Caser keeps state between calls, so each call gets its own.
	return cases.Title(language.Und).String(s)
}
