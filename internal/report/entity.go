package report

import "github.com/JonMunkholm/sheet2neon/internal/core"

// Field describes one field of an entity.
type Field struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Required    bool    `json:"required"`
	Placeholder string  `json:"placeholder,omitempty"`
	Domain      []int64 `json:"domain,omitempty"`
	Lookup      string  `json:"lookup,omitempty"`
}

// Entity is the serializable form of a core.EntityDefinition.
type Entity struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Table       string   `json:"table"`
	KeyFields   []string `json:"key_fields"`
	Description string   `json:"description,omitempty"`
	Fields      []Field  `json:"fields"`
}

// Describe converts definitions for JSON output.
func Describe(defs []core.EntityDefinition) []Entity {
	out := make([]Entity, len(defs))
	for i, def := range defs {
		fields := make([]Field, len(def.Fields))
		for j, f := range def.Fields {
			fields[j] = Field{
				Name:        f.Name,
				Type:        f.Type.String(),
				Required:    f.Required,
				Placeholder: f.Placeholder,
				Domain:      f.Domain,
				Lookup:      f.Lookup,
			}
		}
		out[i] = Entity{
			Key:         def.Info.Key,
			Label:       def.Info.Label,
			Table:       def.Info.Table,
			KeyFields:   def.Info.KeyFields,
			Description: def.Info.Description,
			Fields:      fields,
		}
	}
	return out
}
