package colab

import (
	"fmt"
	"time"
)

// AuthCause identifies why authentication failed.
type AuthCause string

const (
	// AuthCauseCookieLoad means the cookie file could not be read or parsed
	AuthCauseCookieLoad AuthCause = "cookie-load"
	// AuthCauseValidationTimeout means cookies were applied but the signed-in
	// signal never appeared within the validation window
	AuthCauseValidationTimeout AuthCause = "validation-timeout"
	// AuthCauseInteractiveTimeout means the human login window elapsed
	AuthCauseInteractiveTimeout AuthCause = "interactive-timeout"
)

// AuthError indicates the session could not be authenticated.
type AuthError struct {
	Method string
	Cause  AuthCause
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (method=%s, cause=%s): %v", e.Method, e.Cause, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed. A stored
// credential that failed validation will not become valid on retry; a human
// who missed the interactive window may make the next one.
func (e *AuthError) Retryable() bool {
	return e.Cause == AuthCauseInteractiveTimeout
}

// RuntimeUnavailableError indicates a notebook runtime could not be
// attached, either because allocation timed out or because the service
// explicitly denied the request. Both are retryable: allocation pressure
// is transient.
type RuntimeUnavailableError struct {
	Denied bool
	Err    error
}

func (e *RuntimeUnavailableError) Error() string {
	if e.Denied {
		return fmt.Sprintf("runtime allocation denied: %v", e.Err)
	}
	return fmt.Sprintf("runtime unavailable: %v", e.Err)
}

func (e *RuntimeUnavailableError) Unwrap() error { return e.Err }

func (e *RuntimeUnavailableError) Retryable() bool { return true }

// CellFailureCause identifies why a cell failed.
type CellFailureCause string

const (
	// CauseReadback means the injected source did not read back intact
	CauseReadback CellFailureCause = "readback-mismatch"
	// CauseErrorMarker means the cell output carried an error indicator
	CauseErrorMarker CellFailureCause = "error-marker"
	// CauseTimeout means the cell did not reach a terminal state in time
	CauseTimeout CellFailureCause = "timeout"
)

// CellExecutionError indicates a cell failed and the plan was aborted.
// It always names the failing cell index. Retryable at full-attempt
// granularity only; there is no per-cell retry.
type CellExecutionError struct {
	Index  int
	Cause  CellFailureCause
	Detail string
	Err    error
}

func (e *CellExecutionError) Error() string {
	msg := fmt.Sprintf("cell %d failed (%s)", e.Index, e.Cause)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *CellExecutionError) Unwrap() error { return e.Err }

// Retryable reports whether a fresh attempt could succeed. An error marker
// or a timeout may clear on a fresh runtime; a read-back mismatch is a
// precondition failure that no retry will fix.
func (e *CellExecutionError) Retryable() bool {
	return e.Cause != CauseReadback
}

// GenerationIncompleteError indicates the notebook finished its cells but
// the generation-complete marker never appeared in the output.
type GenerationIncompleteError struct {
	Waited time.Duration
}

func (e *GenerationIncompleteError) Error() string {
	return fmt.Sprintf("generation did not complete within %s", e.Waited)
}

func (e *GenerationIncompleteError) Retryable() bool { return true }
