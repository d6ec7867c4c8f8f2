package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheet2neon/internal/core"
	"github.com/JonMunkholm/sheet2neon/internal/core/entities"
)

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_EmptyPath(t *testing.T) {
	rs, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, rs.StaticLookups())
	assert.Empty(t, rs.Entities)
}

func TestLoad_Sample(t *testing.T) {
	rs, err := Load(writeRules(t, string(Sample())))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3, 4}, rs.DepartmentIDs())
	assert.True(t, rs.StaticLookups()[entities.LookupDepartment].Has(3))
	assert.Equal(t, "Full Name", rs.Mapping("students")["name"])
	assert.Empty(t, rs.UnknownEntities(core.Keys()))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "syntax", body: "[lookups\n", want: "parse rule set"},
		{name: "unknown key", body: "[lookups]\nfaculties = [1]\n", want: "faculties"},
		{name: "duplicate ids", body: "[lookups]\ndepartments = [1, 1]\n", want: "duplicate entries"},
		{name: "non-positive id", body: "[lookups]\ndepartments = [0]\n", want: "greater than 0"},
		{name: "empty mapping header", body: "[entities.students.mapping]\nname = \"\"\n", want: "must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeRules(t, tt.body))
			require.Error(t, err)
			assert.True(t, core.IsFatal(err), "want a configuration error, got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
}

func TestRuleSet_Apply(t *testing.T) {
	rs, err := Load(writeRules(t, `
[entities.students]
optional = ["year"]
[entities.students.placeholders]
year = "2"
`))
	require.NoError(t, err)

	base := entities.StudentDefinition()
	def, err := rs.Apply(base)
	require.NoError(t, err)

	year, ok := def.Field("year")
	require.True(t, ok)
	assert.False(t, year.Required)
	assert.Equal(t, "2", year.Placeholder)

	original, _ := base.Field("year")
	assert.True(t, original.Required, "Apply must not modify the input definition")
	assert.Equal(t, entities.PlaceholderYear, original.Placeholder)

	courses, err := rs.Apply(entities.CourseDefinition())
	require.NoError(t, err)
	assert.Equal(t, entities.CourseDefinition().Fields, courses.Fields)
}

func TestRuleSet_Apply_UnknownField(t *testing.T) {
	for _, body := range []string{
		"[entities.students]\noptional = [\"shoe_size\"]\n",
		"[entities.students.placeholders]\nshoe_size = \"9\"\n",
	} {
		rs, err := Load(writeRules(t, body))
		require.NoError(t, err)
		_, err = rs.Apply(entities.StudentDefinition())
		assert.True(t, core.IsFatal(err), "body %q: error = %v", body, err)
	}
}

func TestRuleSet_Apply_InvalidPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		def  core.EntityDefinition
		body string
		want string
	}{
		{
			name: "year outside 1-4",
			def:  entities.StudentDefinition(),
			body: "[entities.students]\noptional = [\"year\"]\n[entities.students.placeholders]\nyear = \"9\"\n",
			want: "invalid year: 9",
		},
		{
			name: "malformed email",
			def:  entities.StudentDefinition(),
			body: "[entities.students]\noptional = [\"email\"]\n[entities.students.placeholders]\nemail = \"nobody\"\n",
			want: "invalid email format",
		},
		{
			name: "non-numeric credits",
			def:  entities.CourseDefinition(),
			body: "[entities.courses.placeholders]\ncredits = \"three\"\n",
			want: "credits is not a number",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Load(writeRules(t, tt.body))
			require.NoError(t, err)

			_, err = rs.Apply(tt.def)
			require.Error(t, err)
			assert.True(t, core.IsFatal(err), "want a configuration error, got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRuleSet_UnknownEntities(t *testing.T) {
	rs := &RuleSet{Entities: map[string]EntityRules{"students": {}, "teachers": {}, "alumni": {}}}
	assert.Equal(t, []string{"alumni", "teachers"}, rs.UnknownEntities([]string{"students", "courses"}))
}
