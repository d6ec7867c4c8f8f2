// Package entities registers the loadable entities with the core registry.
// Import it for its side effects.
package entities

// Placeholders written into records when a field is configured as optional
// and left empty.
const (
	PlaceholderEmail = "unknown@example.com"
	PlaceholderName  = "Unknown"
	PlaceholderYear  = "1"
)

// Lookup names shared by entities.
const (
	LookupDepartment = "department"
)
