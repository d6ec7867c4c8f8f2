package entities

import "github.com/JonMunkholm/sheet2neon/internal/core"

func init() {
	core.Register(CourseDefinition())
}

// Course is a normalized course row keyed by its code.
type Course struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Credits      int64  `json:"credits"`
	DepartmentID int64  `json:"department_id"`
}

// Key implements core.Record.
func (c Course) Key() core.BusinessKey { return core.BusinessKey(c.Code) }

// CourseDefinition returns the courses rule table.
func CourseDefinition() core.EntityDefinition {
	return core.EntityDefinition{
		Info: core.EntityInfo{
			Key:         "courses",
			Label:       "Courses",
			Table:       "course",
			KeyFields:   []string{"code"},
			Description: "Course catalogue; code is unique.",
		},
		Fields: []core.FieldSpec{
			{Name: "code", Type: core.FieldCode, Required: true},
			{Name: "name", Type: core.FieldName, Required: true},
			{Name: "credits", Type: core.FieldInteger, Required: true, Domain: core.IntRange(1, 4)},
			{Name: "department_id", Type: core.FieldInteger, Required: true, Lookup: LookupDepartment},
		},
		Build: func(f core.Fields) core.Record {
			return Course{
				Code:         f.String("code"),
				Name:         f.String("name"),
				Credits:      f.Int("credits"),
				DepartmentID: f.Int("department_id"),
			}
		},
	}
}
