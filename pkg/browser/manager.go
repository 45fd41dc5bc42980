// Package browser owns the lifetime of the Playwright-driven browser used to
// operate the hosted notebook. A Manager initializes the Playwright runtime
// once; each run opens a single Session that is closed exactly once, on every
// exit path.
package browser

import (
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/ttngo/bulletincast/pkg/logging"
)

// Options controls how a browser session is launched.
type Options struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int

	// DownloadDir is where files downloaded by the page are saved.
	// The directory is created if it does not exist.
	DownloadDir string
}

// LaunchError indicates the browser could not be started or the initial
// session could not be established. Launch failures are transient more often
// than not (stale driver processes, display issues), so they are retryable.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("browser launch failed: %v", e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Retryable reports that a fresh launch attempt may succeed.
func (e *LaunchError) Retryable() bool { return true }

// Manager initializes the Playwright runtime and opens browser sessions.
type Manager struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	initialized bool
	log         *logging.Logger
}

// NewManager creates a manager. Initialize must be called before Open.
func NewManager() *Manager {
	return &Manager{
		log: logging.ForComponent("browser"),
	}
}

// Initialize installs browser binaries if needed and starts the Playwright
// driver. Safe to call more than once.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	// Driver output goes to the log file via stderr discard so it does
	// not interleave with CLI progress output
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	m.log.Infof("playwright runtime initialized")
	return nil
}

// Open launches a browser and returns a new session. Each retry attempt gets
// its own session; the caller is responsible for calling Session.Close.
func (m *Manager) Open(opts Options) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("browser manager not initialized")
	}

	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = 1920
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = 1080
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
	}
	b, err := m.playwright.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, &LaunchError{Err: err}
	}

	acceptDownloads := true
	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		AcceptDownloads: &acceptDownloads,
	}
	context, err := b.NewContext(contextOpts)
	if err != nil {
		b.Close()
		return nil, &LaunchError{Err: fmt.Errorf("failed to create context: %w", err)}
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		b.Close()
		return nil, &LaunchError{Err: fmt.Errorf("failed to create page: %w", err)}
	}

	session := newSession(b, context, page, opts, m.log)
	m.log.Infof("opened browser session %s (headless=%v, viewport=%dx%d)",
		session.ID, opts.Headless, opts.ViewportWidth, opts.ViewportHeight)
	return session, nil
}

// Shutdown stops the Playwright driver. Sessions must be closed first.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized || m.playwright == nil {
		return nil
	}

	if err := m.playwright.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	m.initialized = false
	m.log.Infof("playwright runtime stopped")
	return nil
}
