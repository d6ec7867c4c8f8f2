package core

import (
	"context"
	"errors"
	"sync"
)

// person mirrors the shape of a student record without importing the
// entities package.
type person struct {
	Name  string
	Email string
	Year  int64
	Dept  int64
}

func (p person) Key() BusinessKey { return BusinessKey(p.Email) }

func personDefinition() EntityDefinition {
	return EntityDefinition{
		Info: EntityInfo{Key: "people", Table: "person", KeyFields: []string{"email"}},
		Fields: []FieldSpec{
			{Name: "name", Type: FieldName, Required: true, Placeholder: "Unknown"},
			{Name: "email", Type: FieldEmail, Required: true, Placeholder: "unknown@example.com"},
			{Name: "year", Type: FieldInteger, Required: true, Placeholder: "1", Domain: IntRange(1, 4)},
			{Name: "dept", Type: FieldInteger, Required: true, Lookup: "department"},
		},
		Build: func(f Fields) Record {
			return person{
				Name:  f.String("name"),
				Email: f.String("email"),
				Year:  f.Int("year"),
				Dept:  f.Int("dept"),
			}
		},
	}
}

func personRow(line int, name, email string, year, dept Value) RawRow {
	return NewRawRow(line, []string{"name", "email", "year", "dept"}, []Value{name, email, year, dept})
}

// memoryStore is an Inserter keyed on the business key. It can be told to
// refuse specific keys, or to block until the caller's context ends.
type memoryStore struct {
	mu      sync.Mutex
	rows    map[BusinessKey]Record
	refuse  map[BusinessKey]error
	inserts int
	onCall  func(n int)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		rows:   make(map[BusinessKey]Record),
		refuse: make(map[BusinessKey]error),
	}
}

func (m *memoryStore) InsertIgnore(ctx context.Context, rec Record) (bool, error) {
	m.mu.Lock()
	m.inserts++
	n := m.inserts
	hook := m.onCall
	m.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.refuse[rec.Key()]; ok {
		return false, err
	}
	if _, exists := m.rows[rec.Key()]; exists {
		return false, nil
	}
	m.rows[rec.Key()] = rec
	return true, nil
}

var errDanglingDepartment = errors.New(`insert or update on table "person" violates foreign key constraint "person_dept_fkey"`)
