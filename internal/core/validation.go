package core

// validation.go applies an entity's rule table to one raw row.
//
// Every field is checked in declaration order, and within a field the checks
// run presence, then type/format, then domain, then lookup. A row collects
// every violation it has so a single re-submission can fix all of them; the
// reasons come out in that fixed order so two runs over the same row always
// report the same text.

import (
	"fmt"
	"regexp"
	"strings"
)

// codeRegex matches identifiers such as course codes: letters, digits and a
// few separators, starting with a letter or digit.
var codeRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ._-]*$`)

// RowValidator validates rows against a rule table. It is safe for
// concurrent use; the rule table and lookups are never mutated.
type RowValidator struct {
	specs   []FieldSpec
	lookups Lookups
}

// NewRowValidator checks the rule table and lookups and returns a validator.
// A rule table that cannot be applied consistently is a ConfigurationError.
func NewRowValidator(specs []FieldSpec, lookups Lookups) (*RowValidator, error) {
	if len(specs) == 0 {
		return nil, NewConfigurationError("rule table is empty")
	}

	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, NewConfigurationError("rule table has a field without a name")
		}
		if seen[spec.Name] {
			return nil, NewConfigurationError("field %q declared twice", spec.Name)
		}
		seen[spec.Name] = true

		if (len(spec.Domain) > 0 || spec.Lookup != "") && spec.Type != FieldInteger {
			return nil, NewConfigurationError("field %q: domain and lookup rules need an integer field", spec.Name)
		}
		if spec.Lookup != "" {
			if set, ok := lookups[spec.Lookup]; ok && len(set) == 0 {
				return nil, NewConfigurationError("lookup %q for field %q is empty", spec.Lookup, spec.Name)
			}
		}
	}

	v := &RowValidator{specs: specs, lookups: lookups}

	// A placeholder stands in for an empty cell, so it has to pass the
	// field's own rules or accepted rows would carry invalid values.
	for _, spec := range specs {
		if spec.Placeholder == "" {
			continue
		}
		if reasons := v.checkField(spec, CleanCell(spec.Placeholder)); len(reasons) > 0 {
			return nil, NewConfigurationError("field %q: placeholder %q breaks its rules: %s",
				spec.Name, spec.Placeholder, strings.Join(reasons, "; "))
		}
	}

	return v, nil
}

// Validate applies every rule to row. It never fails: malformed input is
// reported through the outcome's reasons.
func (v *RowValidator) Validate(row RawRow) ValidationOutcome {
	var reasons []string

	for _, spec := range v.specs {
		raw := row.Text(spec.Name)
		if raw == "" {
			if spec.Required {
				reasons = append(reasons, "missing "+spec.Name)
			}
			continue
		}
		reasons = append(reasons, v.checkField(spec, raw)...)
	}

	return ValidationOutcome{Accepted: len(reasons) == 0, Reasons: reasons}
}

// checkField runs the type, domain and lookup rules for a non-empty value.
func (v *RowValidator) checkField(spec FieldSpec, raw string) []string {
	switch spec.Type {
	case FieldEmail:
		if !ValidEmail(raw) {
			return []string{fmt.Sprintf("invalid email format: %q", raw)}
		}

	case FieldCode:
		if !codeRegex.MatchString(raw) {
			return []string{fmt.Sprintf("invalid %s format: %q", spec.Name, raw)}
		}

	case FieldDate:
		if _, ok := ParseDate(raw); !ok {
			return []string{fmt.Sprintf("invalid %s date: %q", spec.Name, raw)}
		}

	case FieldInteger:
		n, ok := ParseInteger(raw)
		if !ok {
			return []string{fmt.Sprintf("%s is not a number: %q", spec.Name, raw)}
		}
		var reasons []string
		if len(spec.Domain) > 0 && !inDomain(n, spec.Domain) {
			reasons = append(reasons, fmt.Sprintf("invalid %s: %d (must be %s)", spec.Name, n, describeDomain(spec.Domain)))
		}
		if spec.Lookup != "" {
			if set, ok := v.lookups[spec.Lookup]; ok && !set.Has(n) {
				reasons = append(reasons, fmt.Sprintf("unknown %s: %d", spec.Name, n))
			}
		}
		return reasons
	}

	return nil
}

// ValidEmail reports whether s looks like local@domain.tld: exactly one @,
// a non-empty local part, and a dotted domain without empty labels.
func ValidEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return false
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if label == "" {
			return false
		}
	}
	return true
}

func inDomain(n int64, domain []int64) bool {
	for _, d := range domain {
		if d == n {
			return true
		}
	}
	return false
}

// describeDomain renders a domain as "1-4" when it is a contiguous range and
// as "one of 1, 3, 5" otherwise.
func describeDomain(domain []int64) string {
	contiguous := true
	for i := 1; i < len(domain); i++ {
		if domain[i] != domain[i-1]+1 {
			contiguous = false
			break
		}
	}
	if contiguous && len(domain) > 1 {
		return fmt.Sprintf("%d-%d", domain[0], domain[len(domain)-1])
	}

	parts := make([]string, len(domain))
	for i, d := range domain {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "one of " + strings.Join(parts, ", ")
}

// IntRange returns the inclusive domain lo..hi.
func IntRange(lo, hi int64) []int64 {
	if hi < lo {
		return nil
	}
	out := make([]int64, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		out = append(out, n)
	}
	return out
}
