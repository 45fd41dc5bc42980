// Package colab drives a Google-Colab-hosted notebook through a browser
// page: authentication, runtime attachment, cell injection and execution,
// and triggering the artifact download. All UI access goes through the
// Surface interface so the control flow can be tested without a browser.
package colab

import (
	"context"
	"time"
)

// RuntimeState is the observed state of the notebook runtime.
type RuntimeState int

const (
	// RuntimeDisconnected means no runtime is attached
	RuntimeDisconnected RuntimeState = iota
	// RuntimeConnecting means attachment is in progress
	RuntimeConnecting
	// RuntimeConnected means the runtime is attached and usable
	RuntimeConnected
	// RuntimeDenied means the service explicitly refused allocation
	RuntimeDenied
)

func (s RuntimeState) String() string {
	switch s {
	case RuntimeDisconnected:
		return "disconnected"
	case RuntimeConnecting:
		return "connecting"
	case RuntimeConnected:
		return "connected"
	case RuntimeDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// CellStatus is the observed execution status of a single cell.
type CellStatus int

const (
	// CellIdle means the cell has not run
	CellIdle CellStatus = iota
	// CellRunning means execution is in progress
	CellRunning
	// CellCompleted means the cell finished without an error indicator
	CellCompleted
	// CellErrored means the cell output carries an error indicator
	CellErrored
)

func (s CellStatus) String() string {
	switch s {
	case CellIdle:
		return "idle"
	case CellRunning:
		return "running"
	case CellCompleted:
		return "completed"
	case CellErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Cookie is a stored browser cookie. The JSON shape matches the cookie
// export files produced by earlier versions of this tool, so existing
// credential files keep working.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expiry   float64 `json:"expiry,omitempty"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
}

// Surface is the capability interface over the notebook page. PageSurface
// implements it with Playwright; tests substitute a fake.
type Surface interface {
	// Navigate loads a URL and waits for the load event
	Navigate(ctx context.Context, url string) error

	// WaitReady blocks until the notebook shell and its cells are present
	WaitReady(ctx context.Context, timeout time.Duration) error

	// IsAuthenticated reports whether the page shows a signed-in state
	IsAuthenticated(ctx context.Context) (bool, error)

	// SetCookies applies stored cookies to the browser context
	SetCookies(ctx context.Context, cookies []Cookie) error

	// ReadCookies exports the current browser cookies
	ReadCookies(ctx context.Context) ([]Cookie, error)

	// RuntimeState observes the current runtime attachment state
	RuntimeState(ctx context.Context) (RuntimeState, error)

	// RequestRuntime asks the service to attach a runtime
	RequestRuntime(ctx context.Context) error

	// CellCount returns the number of cells in the notebook
	CellCount(ctx context.Context) (int, error)

	// WriteCell replaces the source of the cell at index
	WriteCell(ctx context.Context, index int, source string) error

	// ReadCell returns the current source of the cell at index
	ReadCell(ctx context.Context, index int) (string, error)

	// RunCell starts execution of the cell at index
	RunCell(ctx context.Context, index int) error

	// CellStatus observes the execution status of the cell at index
	CellStatus(ctx context.Context, index int) (CellStatus, error)

	// CellOutput returns the visible output text of the cell at index
	CellOutput(ctx context.Context, index int) (string, error)

	// TriggerDownload asks the notebook to download the remote file into
	// the session download directory
	TriggerDownload(ctx context.Context, remotePath string) error
}
