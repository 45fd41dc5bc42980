package colab

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/playwright-community/playwright-go"

	"github.com/ttngo/bulletincast/pkg/browser"
	"github.com/ttngo/bulletincast/pkg/logging"
)

// Selectors for the notebook UI. The page ships both legacy and custom
// element markup, so each selector carries alternatives.
const (
	selNotebookShell = "#main-content, .notebook-container, colab-notebook"
	selCells         = ".cell, colab-cell"
	selConnectButton = "colab-connect-button, button[aria-label*='Connect']"
)

// writeCellJS replaces a cell's source through whichever editor the page
// exposes: a CodeMirror instance, a Monaco model, or a bare textarea.
// Returns the method used, or an empty string when none applied.
const writeCellJS = `(cell, text) => {
	if (cell.CodeMirror) {
		cell.CodeMirror.setValue(text);
		return 'codemirror';
	}
	const cms = cell.querySelectorAll('.CodeMirror');
	for (const el of cms) {
		if (el.CodeMirror) {
			el.CodeMirror.setValue(text);
			return 'codemirror';
		}
	}
	const monacoDiv = cell.querySelector('.monaco-editor');
	if (monacoDiv && window.monaco) {
		const models = window.monaco.editor.getModels();
		if (models.length > 0) {
			models[0].setValue(text);
			return 'monaco';
		}
	}
	const ta = cell.querySelector('textarea');
	if (ta) {
		ta.value = text;
		ta.dispatchEvent(new Event('input', { bubbles: true }));
		ta.dispatchEvent(new Event('change', { bubbles: true }));
		return 'textarea';
	}
	return '';
}`

// readCellJS returns a cell's current source, or null when no editor is
// reachable.
const readCellJS = `(cell) => {
	if (cell.CodeMirror) {
		return cell.CodeMirror.getValue();
	}
	const cms = cell.querySelectorAll('.CodeMirror');
	for (const el of cms) {
		if (el.CodeMirror) {
			return el.CodeMirror.getValue();
		}
	}
	const ta = cell.querySelector('textarea');
	if (ta) {
		return ta.value;
	}
	return null;
}`

// cellStatusJS classifies a cell by its execution indicators. Colab shows
// [*] while running and [n] when done.
const cellStatusJS = `(cell) => {
	if (cell.querySelector('.spinner, .running, [class*="executing"], [class*="running"]')) {
		return 'running';
	}
	if (cell.querySelector('.error, .err, [class*="error"], .traceback')) {
		return 'error';
	}
	const text = cell.innerText || '';
	if (text.includes('[*]') || text.includes('[ ]')) {
		return 'running';
	}
	if (/\[\d+\]/.test(text)) {
		return 'completed';
	}
	if (cell.querySelector('.completed, [class*="completed"], [class*="done"]')) {
		return 'completed';
	}
	return 'idle';
}`

const cellOutputJS = `(cell) => {
	const out = cell.querySelector('.output, .output_area, [class*="output"]');
	return out ? out.innerHTML : '';
}`

const authStateJS = `() => {
	if (document.querySelector('[aria-label*="Account"], [aria-label*="Google Account"], .gb_d')) {
		return true;
	}
	const bodyText = document.body ? document.body.innerText : '';
	if (bodyText.includes('Sign in')) {
		return false;
	}
	return !!document.querySelector('.notebook-toolbar, colab-toolbar');
}`

const runtimeStateJS = `() => {
	const bodyText = document.body ? document.body.innerText : '';
	if (bodyText.includes('Cannot connect to GPU') ||
		bodyText.includes('usage limits') ||
		bodyText.includes('Unable to connect to GPU')) {
		return 'denied';
	}
	if (bodyText.includes('Connecting') || bodyText.includes('Allocating')) {
		return 'connecting';
	}
	if (bodyText.includes('RAM') && bodyText.includes('Disk')) {
		return 'connected';
	}
	return 'disconnected';
}`

const triggerDownloadJS = `(path) => {
	if (window.google && google.colab && google.colab.files && google.colab.files.download) {
		google.colab.files.download(path);
		return true;
	}
	return false;
}`

// PageSurface implements Surface over a live Playwright page.
type PageSurface struct {
	session         *browser.Session
	page            playwright.Page
	downloadTimeout time.Duration
	log             *logging.Logger
}

// NewPageSurface wraps a browser session's page.
func NewPageSurface(session *browser.Session, downloadTimeout time.Duration) *PageSurface {
	return &PageSurface{
		session:         session,
		page:            session.Page,
		downloadTimeout: downloadTimeout,
		log:             logging.ForComponent("surface"),
	}
}

func (s *PageSurface) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.session.Navigate(url, 60*time.Second)
}

func (s *PageSurface) WaitReady(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms := float64(timeout.Milliseconds())
	if _, err := s.page.WaitForSelector(selNotebookShell, playwright.PageWaitForSelectorOptions{
		Timeout: &ms,
	}); err != nil {
		return fmt.Errorf("notebook shell did not appear: %w", err)
	}
	if _, err := s.page.WaitForSelector(selCells, playwright.PageWaitForSelectorOptions{
		Timeout: &ms,
	}); err != nil {
		return fmt.Errorf("notebook cells did not appear: %w", err)
	}
	return nil
}

func (s *PageSurface) IsAuthenticated(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	result, err := s.page.Evaluate(authStateJS)
	if err != nil {
		return false, fmt.Errorf("auth state check failed: %w", err)
	}
	signedIn, ok := result.(bool)
	return ok && signedIn, nil
}

func (s *PageSurface) SetCookies(ctx context.Context, cookies []Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	converted := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := playwright.OptionalCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   playwright.String(c.Domain),
			Path:     playwright.String(c.Path),
			Secure:   playwright.Bool(c.Secure),
			HttpOnly: playwright.Bool(c.HTTPOnly),
		}
		if c.Expiry > 0 {
			cookie.Expires = playwright.Float(c.Expiry)
		}
		converted = append(converted, cookie)
	}

	if err := s.session.Context.AddCookies(converted); err != nil {
		return fmt.Errorf("failed to apply cookies: %w", err)
	}
	return nil
}

func (s *PageSurface) ReadCookies(ctx context.Context) ([]Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := s.session.Context.Cookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expiry:   c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		})
	}
	return cookies, nil
}

func (s *PageSurface) RuntimeState(ctx context.Context) (RuntimeState, error) {
	if err := ctx.Err(); err != nil {
		return RuntimeDisconnected, err
	}

	result, err := s.page.Evaluate(runtimeStateJS)
	if err != nil {
		return RuntimeDisconnected, fmt.Errorf("runtime state check failed: %w", err)
	}

	switch result {
	case "connected":
		return RuntimeConnected, nil
	case "connecting":
		return RuntimeConnecting, nil
	case "denied":
		return RuntimeDenied, nil
	default:
		return RuntimeDisconnected, nil
	}
}

func (s *PageSurface) RequestRuntime(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.page.Locator(selConnectButton).First().Click(); err != nil {
		return fmt.Errorf("failed to click connect: %w", err)
	}
	return nil
}

func (s *PageSurface) CellCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.page.Locator(selCells).Count()
}

func (s *PageSurface) WriteCell(ctx context.Context, index int, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cell := s.page.Locator(selCells).Nth(index)
	if err := cell.ScrollIntoViewIfNeeded(); err != nil {
		return fmt.Errorf("failed to scroll to cell %d: %w", index, err)
	}
	if err := cell.Click(); err != nil {
		return fmt.Errorf("failed to focus cell %d: %w", index, err)
	}

	result, err := cell.Evaluate(writeCellJS, source)
	if err == nil {
		if method, ok := result.(string); ok && method != "" {
			s.log.Debugf("cell %d written via %s", index, method)
			s.page.WaitForTimeout(1000)
			return nil
		}
	}

	s.log.Warnf("editor APIs unavailable for cell %d, falling back to clipboard paste", index)
	return s.writeCellViaClipboard(cell, source)
}

// writeCellViaClipboard rewrites a cell through the OS clipboard and
// keyboard, for pages where the editor objects are not scriptable.
func (s *PageSurface) writeCellViaClipboard(cell playwright.Locator, source string) error {
	if err := clipboard.WriteAll(source); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}

	if err := cell.Dblclick(); err != nil {
		return fmt.Errorf("failed to enter edit mode: %w", err)
	}
	s.page.WaitForTimeout(500)

	kb := s.page.Keyboard()
	for _, key := range []string{"Control+a", "Delete", "Control+v", "Escape"} {
		if err := kb.Press(key); err != nil {
			return fmt.Errorf("keyboard %s failed: %w", key, err)
		}
		s.page.WaitForTimeout(300)
	}
	return nil
}

func (s *PageSurface) ReadCell(ctx context.Context, index int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cell := s.page.Locator(selCells).Nth(index)
	result, err := cell.Evaluate(readCellJS, nil)
	if err != nil {
		return "", fmt.Errorf("failed to read cell %d: %w", index, err)
	}
	source, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("cell %d has no readable editor", index)
	}
	return source, nil
}

func (s *PageSurface) RunCell(ctx context.Context, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cell := s.page.Locator(selCells).Nth(index)
	if err := cell.ScrollIntoViewIfNeeded(); err != nil {
		return fmt.Errorf("failed to scroll to cell %d: %w", index, err)
	}
	if err := cell.Click(); err != nil {
		return fmt.Errorf("failed to focus cell %d: %w", index, err)
	}
	s.page.WaitForTimeout(500)

	if err := s.page.Keyboard().Press("Shift+Enter"); err != nil {
		return fmt.Errorf("failed to run cell %d: %w", index, err)
	}
	return nil
}

func (s *PageSurface) CellStatus(ctx context.Context, index int) (CellStatus, error) {
	if err := ctx.Err(); err != nil {
		return CellIdle, err
	}

	cell := s.page.Locator(selCells).Nth(index)
	result, err := cell.Evaluate(cellStatusJS, nil)
	if err != nil {
		return CellIdle, fmt.Errorf("status check for cell %d failed: %w", index, err)
	}

	switch result {
	case "running":
		return CellRunning, nil
	case "completed":
		return CellCompleted, nil
	case "error":
		return CellErrored, nil
	default:
		return CellIdle, nil
	}
}

func (s *PageSurface) CellOutput(ctx context.Context, index int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cell := s.page.Locator(selCells).Nth(index)
	result, err := cell.Evaluate(cellOutputJS, nil)
	if err != nil {
		return "", fmt.Errorf("failed to read output of cell %d: %w", index, err)
	}
	fragment, _ := result.(string)
	if strings.TrimSpace(fragment) == "" {
		return "", nil
	}
	return visibleText(fragment), nil
}

func (s *PageSurface) TriggerDownload(ctx context.Context, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms := float64(s.downloadTimeout.Milliseconds())
	download, err := s.page.ExpectDownload(func() error {
		result, jserr := s.page.Evaluate(triggerDownloadJS, remotePath)
		if jserr != nil {
			return fmt.Errorf("download trigger failed: %w", jserr)
		}
		if triggered, ok := result.(bool); !ok || !triggered {
			return fmt.Errorf("files.download is not available on the page")
		}
		return nil
	}, playwright.PageExpectDownloadOptions{Timeout: &ms})
	if err != nil {
		return fmt.Errorf("download did not start: %w", err)
	}

	target := filepath.Join(s.session.DownloadDir, download.SuggestedFilename())
	if err := download.SaveAs(target); err != nil {
		return fmt.Errorf("failed to save download: %w", err)
	}
	s.log.Infof("download saved to %s", target)
	return nil
}
