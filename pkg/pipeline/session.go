package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/ttngo/bulletincast/pkg/browser"
	"github.com/ttngo/bulletincast/pkg/colab"
	"github.com/ttngo/bulletincast/pkg/config"
)

// Session is the per-attempt browser state the runner drives. Each attempt
// gets a fresh session; the runner closes it before retrying.
type Session interface {
	// Surface is the notebook control surface bound to this session's page
	Surface() colab.Surface

	// DownloadDir is where this session's browser saves downloads
	DownloadDir() string

	// Screenshot captures the page for failure diagnostics
	Screenshot(path string) error

	// Close tears down the session. Safe to call more than once.
	Close() error
}

// Opener creates a fresh Session for each attempt.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// BrowserOpener opens real Chromium sessions through a browser.Manager.
type BrowserOpener struct {
	manager *browser.Manager
	cfg     *config.Config
}

// NewBrowserOpener wraps an initialized manager. The manager's lifecycle
// stays with the caller; Shutdown is not the opener's job.
func NewBrowserOpener(manager *browser.Manager, cfg *config.Config) *BrowserOpener {
	return &BrowserOpener{manager: manager, cfg: cfg}
}

// Open launches a browser session with a fresh download directory.
func (o *BrowserOpener) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "bulletincast-dl-")
	if err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	sess, err := o.manager.Open(browser.Options{
		Headless:       o.cfg.Browser.Headless,
		ViewportWidth:  o.cfg.Browser.ViewportWidth,
		ViewportHeight: o.cfg.Browser.ViewportHeight,
		DownloadDir:    dir,
	})
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	return &browserSession{
		sess:    sess,
		surface: colab.NewPageSurface(sess, o.cfg.Timeouts.Download.Std()),
		dir:     dir,
	}, nil
}

type browserSession struct {
	sess    *browser.Session
	surface colab.Surface
	dir     string
}

func (s *browserSession) Surface() colab.Surface { return s.surface }

func (s *browserSession) DownloadDir() string { return s.dir }

func (s *browserSession) Screenshot(path string) error { return s.sess.Screenshot(path) }

func (s *browserSession) Close() error {
	err := s.sess.Close()
	os.RemoveAll(s.dir)
	return err
}
