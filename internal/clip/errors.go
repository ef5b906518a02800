package clip

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRange is returned for a request whose start is not before its end.
var ErrInvalidRange = errors.New("segment start must be before end")

// Attempt records one strategy run.
type Attempt struct {
	Strategy   string
	ExitCode   int
	StderrTail string
	Err        error
}

func (a Attempt) String() string {
	if a.Err != nil {
		return fmt.Sprintf("%s: %v", a.Strategy, a.Err)
	}
	return fmt.Sprintf("%s: exit %d", a.Strategy, a.ExitCode)
}

// ExtractionError means every strategy failed. It is never fatal to the session.
type ExtractionError struct {
	Source   string
	Attempts []Attempt
}

func (e *ExtractionError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.String())
	}
	return fmt.Sprintf("extract clip from %s failed (%s)", e.Source, strings.Join(parts, "; "))
}

// Unwrap exposes the last attempt's error, if any.
func (e *ExtractionError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// IsExtractionError reports whether err is an *ExtractionError.
func IsExtractionError(err error) bool {
	var e *ExtractionError
	return errors.As(err, &e)
}
