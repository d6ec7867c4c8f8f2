package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/sheet2neon/internal/core"
)

// Exit codes. Scripts rely on these, keep them stable.
const (
	exitFailure    = 1
	exitUsage      = 2
	exitConfig     = 3
	exitExtraction = 4
	exitDatabase   = 5
	exitRejected   = 6
	exitCanceled   = 130
)

// errRejected ends `etl run --fail-on-reject` when a row was rejected. The
// report has already been printed, so main stays quiet about it.
var errRejected = errors.New("rows were rejected")

type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

// withCode tags err with an exit code. A nil err stays nil.
func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

func usageError(format string, args ...any) error {
	return withCode(exitUsage, fmt.Errorf(format, args...))
}

// exitCode picks the process status for err. Typed pipeline errors win over
// codes attached further out.
func exitCode(err error) int {
	var ce *core.ConfigurationError
	var ee *core.ExtractionError
	var coded *codedError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errRejected):
		return exitRejected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return exitCanceled
	case errors.As(err, &ce):
		return exitConfig
	case errors.As(err, &ee):
		return exitExtraction
	case errors.As(err, &coded):
		return coded.code
	default:
		return exitFailure
	}
}

// describe adds the user-facing action to errors the catalogue knows.
func describe(err error) string {
	if !core.IsUserFacing(err) {
		return err.Error()
	}
	msg := core.MapError(err)
	if msg.Action == "" {
		return fmt.Sprintf("%s (%s)", err, msg.Code)
	}
	return fmt.Sprintf("%s (%s)\n%s", err, msg.Code, msg.Action)
}
