package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/ttngo/bulletincast/pkg/logging"
)

// Session is a single live browser session. It owns the page, context and
// browser process for one run attempt. Close is idempotent and tears the
// three down in order.
type Session struct {
	ID          string
	Browser     playwright.Browser
	Context     playwright.BrowserContext
	Page        playwright.Page
	DownloadDir string
	CreatedAt   time.Time

	closeOnce sync.Once
	closeErr  error
	closed    bool
	log       *logging.Logger
}

func newSession(b playwright.Browser, ctx playwright.BrowserContext, page playwright.Page, opts Options, log *logging.Logger) *Session {
	return &Session{
		ID:          uuid.New().String()[:8],
		Browser:     b,
		Context:     ctx,
		Page:        page,
		DownloadDir: opts.DownloadDir,
		CreatedAt:   time.Now(),
		log:         log,
	}
}

// Navigate loads the given URL and waits for the load event.
func (s *Session) Navigate(url string, timeout time.Duration) error {
	ms := float64(timeout.Milliseconds())
	waitUntil := playwright.WaitUntilStateLoad
	_, err := s.Page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntil,
		Timeout:   &ms,
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Screenshot captures the full page to the given path. Used to preserve
// evidence when a run attempt fails.
func (s *Session) Screenshot(path string) error {
	fullPage := true
	_, err := s.Page.Screenshot(playwright.PageScreenshotOptions{
		Path:     &path,
		FullPage: &fullPage,
	})
	if err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	return nil
}

// Closed reports whether Close has completed.
func (s *Session) Closed() bool {
	return s.closed
}

// Close tears down the page, context and browser. Safe to call multiple
// times; only the first call does the work.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.log.Infof("closing browser session %s", s.ID)

		var errs []error
		if err := s.Page.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.Context.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.Browser.Close(); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			s.closeErr = fmt.Errorf("errors closing session %s: %v", s.ID, errs)
		}
		s.closed = true
	})
	return s.closeErr
}
