// Package core is the extract-validate-transform-deduplicate-load pipeline
// for tabular enrollment data.
//
// It knows nothing about files, HTTP or SQL drivers. Extractors hand it
// [RawRow] values, entity packages register [EntityDefinition] rule tables
// with [Register], and stores implement [Inserter]. Everything else here is
// pure: validating, normalizing and deduplicating a batch has no side
// effects outside the run that owns it.
//
// # Entities
//
// An entity is a rule table plus a record builder:
//
//	core.Register(core.EntityDefinition{
//	    Info: core.EntityInfo{Key: "courses", Table: "course", KeyFields: []string{"code"}},
//	    Fields: []core.FieldSpec{
//	        {Name: "code", Type: core.FieldCode, Required: true},
//	        {Name: "credits", Type: core.FieldInteger, Required: true, Domain: core.IntRange(1, 4)},
//	    },
//	    Build: buildCourse,
//	})
//
// # Runs
//
// [Pipeline.Run] takes every row from Pending to exactly one terminal state
// (Rejected, DuplicateInBatch, Loaded, SkippedDuplicate or RejectedAtStore)
// and returns an immutable [RunReport]. Only [ExtractionError] and
// [ConfigurationError] abort a run, and both happen before the first row.
package core
