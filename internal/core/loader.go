package core

import "context"

// Loader persists records through an Inserter and classifies the result.
type Loader struct {
	ins Inserter
}

// NewLoader returns a Loader writing through ins.
func NewLoader(ins Inserter) *Loader {
	return &Loader{ins: ins}
}

// Load attempts to persist rec. A key that already exists in the store is
// SkippedDuplicate; any other store failure is RejectedAtStore with the
// underlying error as detail. The returned error is non-nil only when ctx
// ended, in which case the outcome must be discarded.
func (l *Loader) Load(ctx context.Context, rec Record) (LoadOutcome, error) {
	inserted, err := l.ins.InsertIgnore(ctx, rec)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return LoadOutcome{}, ctxErr
		}
		return LoadOutcome{Status: LoadRejectedAtStore, Detail: err.Error()}, nil
	}
	if !inserted {
		return LoadOutcome{Status: LoadSkippedDuplicate, Detail: "already in store"}, nil
	}
	return LoadOutcome{Status: LoadLoaded}, nil
}
