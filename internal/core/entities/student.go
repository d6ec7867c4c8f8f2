package entities

import "github.com/JonMunkholm/sheet2neon/internal/core"

func init() {
	core.Register(StudentDefinition())
}

// Student is a normalized student row. Its business key is the email.
type Student struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Year         int64  `json:"year"`
	DepartmentID int64  `json:"department_id"`
}

// Key implements core.Record.
func (s Student) Key() core.BusinessKey { return core.BusinessKey(s.Email) }

// StudentDefinition returns the students rule table.
func StudentDefinition() core.EntityDefinition {
	return core.EntityDefinition{
		Info: core.EntityInfo{
			Key:         "students",
			Label:       "Students",
			Table:       "student",
			KeyFields:   []string{"email"},
			Description: "One row per student; email is unique.",
		},
		Fields: []core.FieldSpec{
			{Name: "name", Type: core.FieldName, Required: true, Placeholder: PlaceholderName},
			{Name: "email", Type: core.FieldEmail, Required: true, Placeholder: PlaceholderEmail},
			{Name: "year", Type: core.FieldInteger, Required: true, Placeholder: PlaceholderYear, Domain: core.IntRange(1, 4)},
			{Name: "department_id", Type: core.FieldInteger, Required: true, Lookup: LookupDepartment},
		},
		Build: func(f core.Fields) core.Record {
			return Student{
				Name:         f.String("name"),
				Email:        f.String("email"),
				Year:         f.Int("year"),
				DepartmentID: f.Int("department_id"),
			}
		},
	}
}
