package audit

import "errors"

var (
	// ErrInvalidInput reports a target URL that cannot be audited.
	ErrInvalidInput = errors.New("invalid input")
	// ErrToolFailure reports that the browser or audit tool failed.
	ErrToolFailure = errors.New("audit tool failure")
	// ErrAuditTimeout reports an audit that exceeded its time budget.
	ErrAuditTimeout = errors.New("audit timed out")
)

// Message returns the text shown to API clients for an audit error. Invalid
// URLs get a fixed message; other failures keep their wrapped reason.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "Invalid URL format"
	default:
		return err.Error()
	}
}
