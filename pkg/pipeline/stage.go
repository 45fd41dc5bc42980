package pipeline

import (
	"fmt"
	"time"

	"github.com/ttngo/bulletincast/pkg/retry"
)

// Stage names the phase of an attempt that failed.
type Stage string

const (
	// StageLaunch covers browser launch and session setup
	StageLaunch Stage = "launch"
	// StageAuth covers credential loading and session validation
	StageAuth Stage = "auth"
	// StageRuntime covers notebook load and runtime attachment
	StageRuntime Stage = "runtime"
	// StageExecute covers cell injection and execution
	StageExecute Stage = "execute"
	// StageRetrieve covers generation confirmation and download
	StageRetrieve Stage = "retrieve"
	// StagePlace covers moving the verified artifact to its dated path
	StagePlace Stage = "place"
)

// StageError wraps a stage failure with attempt context. The retry
// classification of the underlying error is preserved; wrapping never
// promotes a fatal error to retryable or vice versa.
type StageError struct {
	Stage   Stage
	Attempt int
	Elapsed time.Duration
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed on attempt %d after %s: %v",
		e.Stage, e.Attempt, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Retryable() bool { return retry.IsRetryable(e.Err) }
