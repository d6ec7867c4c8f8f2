// Package rules loads the optional rule-set file that tunes entity
// definitions without a rebuild: reference lookup tables, which fields may be
// left empty, and the header names a source uses.
//
// Example:
//
//	[lookups]
//	departments = [1, 2, 3]
//
//	[entities.students]
//	optional = ["year"]
//	[entities.students.mapping]
//	name = "Full Name"
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/JonMunkholm/sheet2neon/internal/core"
	"github.com/JonMunkholm/sheet2neon/internal/core/entities"
)

//go:embed sample_rules.toml
var sampleRules []byte

// Sample returns an annotated rule-set file.
func Sample() []byte {
	return slices.Clone(sampleRules)
}

// RuleSet is the decoded rule-set file.
type RuleSet struct {
	Lookups  LookupTables           `toml:"lookups"`
	Entities map[string]EntityRules `toml:"entities" validate:"dive,keys,required,endkeys"`
}

// LookupTables lists the reference ids rows may point at.
type LookupTables struct {
	Departments []int64 `toml:"departments" validate:"omitempty,unique,dive,gt=0"`
}

// EntityRules overrides one entity's definition.
type EntityRules struct {
	Optional     []string          `toml:"optional" validate:"unique,dive,required"`
	Placeholders map[string]string `toml:"placeholders" validate:"dive,keys,required,endkeys,required"`
	Mapping      map[string]string `toml:"mapping" validate:"dive,keys,required,endkeys,required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default is the empty rule set: definitions apply unchanged.
func Default() *RuleSet {
	return &RuleSet{Entities: map[string]EntityRules{}}
}

// Load reads and validates a rule-set file. An empty path yields Default.
// Every failure is a *core.ConfigurationError.
func Load(path string) (*RuleSet, error) {
	if path == "" {
		return Default(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, core.NewConfigurationError("open rule set: %v", err)
	}
	defer file.Close()

	rs := Default()
	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(rs); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, core.NewConfigurationError("parse rule set %s: %s", path, strict.String())
		}
		return nil, core.NewConfigurationError("parse rule set %s: %v", path, err)
	}
	if rs.Entities == nil {
		rs.Entities = map[string]EntityRules{}
	}

	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

// Validate checks the struct tags and returns one ConfigurationError listing
// every problem.
func (rs *RuleSet) Validate() error {
	err := validate.Struct(rs)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return core.NewConfigurationError("rule set: %v", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return core.NewConfigurationError("rule set: %s", strings.Join(problems, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "RuleSet.")
	switch fe.Tag() {
	case "unique":
		return field + " has duplicate entries"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "required":
		return field + " must not be empty"
	default:
		return fmt.Sprintf("%s fails %s", field, fe.Tag())
	}
}

// UnknownEntities returns entity names in the file that are not in known.
func (rs *RuleSet) UnknownEntities(known []string) []string {
	var unknown []string
	for name := range rs.Entities {
		if !slices.Contains(known, name) {
			unknown = append(unknown, name)
		}
	}
	slices.Sort(unknown)
	return unknown
}

// Apply returns def with the entity's overrides applied.
func (rs *RuleSet) Apply(def core.EntityDefinition) (core.EntityDefinition, error) {
	er, ok := rs.Entities[def.Info.Key]
	if !ok {
		return def, nil
	}

	out, err := def.WithOptional(er.Optional...)
	if err != nil {
		return core.EntityDefinition{}, err
	}
	out.Fields = slices.Clone(out.Fields)
	for name, placeholder := range er.Placeholders {
		i := slices.IndexFunc(out.Fields, func(f core.FieldSpec) bool { return f.Name == name })
		if i < 0 {
			return core.EntityDefinition{}, core.NewConfigurationError("%s: placeholder for unknown field %q", def.Info.Key, name)
		}
		out.Fields[i].Placeholder = placeholder
	}
	if len(er.Placeholders) > 0 {
		// Lookups are not known here; NewRowValidator checks them per run.
		if _, err := core.NewRowValidator(out.Fields, nil); err != nil {
			return core.EntityDefinition{}, fmt.Errorf("%s: %w", def.Info.Key, err)
		}
	}
	return out, nil
}

// Mapping returns the header mapping configured for entity, or nil.
func (rs *RuleSet) Mapping(entity string) map[string]string {
	return rs.Entities[entity].Mapping
}

// StaticLookups returns the lookup tables listed in the file. Tables that
// are not listed are absent from the result rather than empty.
func (rs *RuleSet) StaticLookups() core.Lookups {
	lookups := core.Lookups{}
	if len(rs.Lookups.Departments) > 0 {
		lookups[entities.LookupDepartment] = core.NewLookupSet(rs.Lookups.Departments...)
	}
	return lookups
}

// DepartmentIDs lists the configured department ids, used to seed the
// department table.
func (rs *RuleSet) DepartmentIDs() []int64 {
	return slices.Clone(rs.Lookups.Departments)
}
