package session

import (
	"errors"
	"fmt"
)

var (
	// ErrCommandRejected is returned for a command the current state does not accept.
	ErrCommandRejected = errors.New("command not allowed now")
	// ErrExtractorUnavailable is returned for Fail when no clip tool is installed.
	ErrExtractorUnavailable = errors.New("ffmpeg not found; install it to cut failing segments")
	// ErrNoHistory is returned for go-back with nothing to undo.
	ErrNoHistory = errors.New("nothing to go back to")
)

// ValidationError is a segment that cannot be confirmed. The selection stays
// as it was.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid segment: " + e.Reason
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func rejected(cmd Command, mode Mode) error {
	return fmt.Errorf("%s while %s: %w", cmd, mode, ErrCommandRejected)
}
