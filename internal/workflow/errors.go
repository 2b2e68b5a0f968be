package workflow

import (
	"errors"

	dErrors "caseflow/pkg/domain-errors"
)

// Reason is the stable code callers branch on when a transition is rejected.
// Every denial and rejection carries one so the UI never parses message text.
type Reason string

const (
	ReasonCaseNotFound          Reason = "CASE_NOT_FOUND"
	ReasonInvalidTransition     Reason = "INVALID_TRANSITION"
	ReasonNotAssignedToUserUnit Reason = "NOT_ASSIGNED_TO_USER_UNIT"
	ReasonConflict              Reason = "CONFLICT"
)

// Error pairs a coarse domain-error code with the workflow reason. The
// wrapped coded error drives HTTP status mapping; Reason drives messaging.
type Error struct {
	Reason Reason
	err    *dErrors.Error
}

func newError(reason Reason, code dErrors.Code, message string) *Error {
	return &Error{Reason: reason, err: dErrors.New(code, message)}
}

func (e *Error) Error() string {
	return string(e.Reason) + ": " + e.err.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

// ReasonOf extracts the workflow reason from err, or "" when err carries
// none.
func ReasonOf(err error) Reason {
	var we *Error
	if errors.As(err, &we) {
		return we.Reason
	}
	return ""
}
