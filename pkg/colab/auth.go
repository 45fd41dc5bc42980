package colab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ttngo/bulletincast/pkg/logging"
	"github.com/ttngo/bulletincast/pkg/poll"
)

// accountsURL is loaded before applying cookies so the browser context has
// a Google origin to attach them to.
const accountsURL = "https://accounts.google.com"

// AuthOptions configures an AuthManager.
type AuthOptions struct {
	// Method is "cookies" or "interactive"
	Method string

	// CookiesFile is the cookie export path. Required for the cookies
	// method; for interactive it is where refreshed cookies are saved.
	CookiesFile string

	// NotebookURL is navigated to after credentials are applied
	NotebookURL string

	// ValidationTimeout bounds how long applied cookies may take to show
	// the signed-in signal
	ValidationTimeout time.Duration

	// InteractiveTimeout bounds the human login window
	InteractiveTimeout time.Duration

	// CheckInterval is the auth signal polling interval
	CheckInterval time.Duration
}

// AuthManager authenticates the browser session against the notebook
// service using one of two strategies: stored cookies (fails fast, not
// retryable) or an interactive human login window (retryable).
type AuthManager struct {
	surface Surface
	waiter  *poll.Waiter
	opts    AuthOptions
	log     *logging.Logger
}

// NewAuthManager creates an auth manager. A nil clock uses real time.
func NewAuthManager(surface Surface, clock poll.Clock, opts AuthOptions) *AuthManager {
	return &AuthManager{
		surface: surface,
		waiter:  poll.NewWaiter(clock),
		opts:    opts,
		log:     logging.ForComponent("auth"),
	}
}

// Authenticate runs the configured strategy and leaves the page on the
// notebook URL in a signed-in state.
func (m *AuthManager) Authenticate(ctx context.Context) error {
	switch m.opts.Method {
	case "cookies":
		return m.authenticateWithCookies(ctx)
	case "interactive":
		return m.authenticateInteractive(ctx)
	default:
		return fmt.Errorf("unknown auth method: %s", m.opts.Method)
	}
}

func (m *AuthManager) authenticateWithCookies(ctx context.Context) error {
	m.log.Infof("authenticating with stored cookies from %s", m.opts.CookiesFile)

	cookies, err := loadCookies(m.opts.CookiesFile)
	if err != nil {
		return &AuthError{Method: m.opts.Method, Cause: AuthCauseCookieLoad, Err: err}
	}

	if err := m.surface.Navigate(ctx, accountsURL); err != nil {
		return fmt.Errorf("failed to reach accounts page: %w", err)
	}
	if err := m.surface.SetCookies(ctx, cookies); err != nil {
		return &AuthError{Method: m.opts.Method, Cause: AuthCauseCookieLoad, Err: err}
	}
	m.log.Infof("applied %d cookies", len(cookies))

	if err := m.surface.Navigate(ctx, m.opts.NotebookURL); err != nil {
		return fmt.Errorf("failed to open notebook: %w", err)
	}

	if err := m.waitForSignedIn(ctx, m.opts.ValidationTimeout); err != nil {
		if errors.Is(err, poll.ErrTimeout) {
			m.log.Errorf("cookie validation timed out after %s", m.opts.ValidationTimeout)
			return &AuthError{Method: m.opts.Method, Cause: AuthCauseValidationTimeout, Err: err}
		}
		return err
	}

	m.log.Infof("authenticated with stored cookies")
	return nil
}

func (m *AuthManager) authenticateInteractive(ctx context.Context) error {
	if err := m.surface.Navigate(ctx, m.opts.NotebookURL); err != nil {
		return fmt.Errorf("failed to open notebook: %w", err)
	}

	m.log.Infof("waiting up to %s for manual login in the browser window", m.opts.InteractiveTimeout)

	if err := m.waitForSignedIn(ctx, m.opts.InteractiveTimeout); err != nil {
		if errors.Is(err, poll.ErrTimeout) {
			m.log.Errorf("interactive login window elapsed after %s", m.opts.InteractiveTimeout)
			return &AuthError{Method: m.opts.Method, Cause: AuthCauseInteractiveTimeout, Err: err}
		}
		return err
	}

	m.log.Infof("interactive login complete")
	m.refreshStoredCookies(ctx)
	return nil
}

func (m *AuthManager) waitForSignedIn(ctx context.Context, timeout time.Duration) error {
	return m.waiter.Until(ctx, m.opts.CheckInterval, timeout, func(ctx context.Context) (bool, error) {
		ok, err := m.surface.IsAuthenticated(ctx)
		if err != nil {
			m.log.Debugf("auth signal check failed: %v", err)
			return false, nil
		}
		return ok, nil
	})
}

// refreshStoredCookies saves the post-login cookies so the next run can use
// the cookies method. Best effort; a failure here does not fail the run.
func (m *AuthManager) refreshStoredCookies(ctx context.Context) {
	if m.opts.CookiesFile == "" {
		return
	}

	cookies, err := m.surface.ReadCookies(ctx)
	if err != nil {
		m.log.Warnf("could not export cookies after login: %v", err)
		return
	}
	if err := saveCookies(m.opts.CookiesFile, cookies); err != nil {
		m.log.Warnf("could not save cookies: %v", err)
		return
	}
	m.log.Infof("saved %d cookies to %s", len(cookies), m.opts.CookiesFile)
}
