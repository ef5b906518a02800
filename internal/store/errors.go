package store

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordsExist is returned when CreateNew meets a non-empty record file.
	ErrRecordsExist = errors.New("record file already contains labels; resume it instead")
	// ErrNoRecord is returned by Remove when the path has no record.
	ErrNoRecord = errors.New("no record for path")
)

// IOError is a failed read, write or flush of the record file. Any IOError
// during a session is fatal: a committed label must never be lost quietly.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("record store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsIOError reports whether err is an *IOError.
func IsIOError(err error) bool {
	var e *IOError
	return errors.As(err, &e)
}

// ValidationError describes a record row that was skipped on resume, or an
// entry refused on append.
type ValidationError struct {
	Line   int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("record line %d: %s", e.Line, e.Reason)
	}
	return "invalid record: " + e.Reason
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}
