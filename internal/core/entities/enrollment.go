package entities

import (
	"time"

	"github.com/JonMunkholm/sheet2neon/internal/core"
)

func init() {
	core.Register(EnrollmentDefinition())
}

// Enrollment links a student to a course. The store resolves both
// references; either one missing is a store-level rejection.
type Enrollment struct {
	StudentEmail string     `json:"student_email"`
	CourseCode   string     `json:"course_code"`
	EnrolledOn   *time.Time `json:"enrolled_on,omitempty"`
}

// Key implements core.Record.
func (e Enrollment) Key() core.BusinessKey {
	return core.BusinessKey(e.StudentEmail + "|" + e.CourseCode)
}

// EnrollmentDefinition returns the enrollments rule table.
func EnrollmentDefinition() core.EntityDefinition {
	return core.EntityDefinition{
		Info: core.EntityInfo{
			Key:         "enrollments",
			Label:       "Enrollments",
			Table:       "enrollment",
			KeyFields:   []string{"student_email", "course_code"},
			Description: "Student-to-course links; each pair appears once.",
		},
		Fields: []core.FieldSpec{
			{Name: "student_email", Type: core.FieldEmail, Required: true},
			{Name: "course_code", Type: core.FieldCode, Required: true},
			{Name: "enrolled_on", Type: core.FieldDate},
		},
		Build: func(f core.Fields) core.Record {
			e := Enrollment{
				StudentEmail: f.String("student_email"),
				CourseCode:   f.String("course_code"),
			}
			if t, ok := f.Time("enrolled_on"); ok {
				e.EnrolledOn = &t
			}
			return e
		},
	}
}
