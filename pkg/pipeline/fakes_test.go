package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ttngo/bulletincast/pkg/colab"
)

// stubSurface is a scriptable notebook surface for runner tests. The
// default shape is a healthy notebook: signed in, runtime connected, every
// cell completes on first check.
type stubSurface struct {
	mu sync.Mutex

	cellCount int
	authOK    bool
	runtime   colab.RuntimeState

	// statusFor overrides cell status by index and check count
	statusFor    func(index, check int) colab.CellStatus
	statusChecks map[int]int

	// outputs holds visible cell output by index
	outputs map[int]string

	// downloadDir receives a WAV file on TriggerDownload when set
	downloadDir string

	sources   map[int]string
	runOrder  []int
	navigated []string
	applied   [][]colab.Cookie
	downloads []string
}

func newStubSurface(cellCount int) *stubSurface {
	return &stubSurface{
		cellCount:    cellCount,
		authOK:       true,
		runtime:      colab.RuntimeConnected,
		statusChecks: make(map[int]int),
		outputs:      make(map[int]string),
		sources:      make(map[int]string),
	}
}

func (s *stubSurface) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigated = append(s.navigated, url)
	return nil
}

func (s *stubSurface) WaitReady(ctx context.Context, timeout time.Duration) error { return nil }

func (s *stubSurface) IsAuthenticated(ctx context.Context) (bool, error) {
	return s.authOK, nil
}

func (s *stubSurface) SetCookies(ctx context.Context, cookies []colab.Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, cookies)
	return nil
}

func (s *stubSurface) ReadCookies(ctx context.Context) ([]colab.Cookie, error) {
	return nil, nil
}

func (s *stubSurface) RuntimeState(ctx context.Context) (colab.RuntimeState, error) {
	return s.runtime, nil
}

func (s *stubSurface) RequestRuntime(ctx context.Context) error { return nil }

func (s *stubSurface) CellCount(ctx context.Context) (int, error) { return s.cellCount, nil }

func (s *stubSurface) WriteCell(ctx context.Context, index int, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[index] = source
	return nil
}

func (s *stubSurface) ReadCell(ctx context.Context, index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	source, ok := s.sources[index]
	if !ok {
		return "", fmt.Errorf("cell %d has no source", index)
	}
	return source, nil
}

func (s *stubSurface) RunCell(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runOrder = append(s.runOrder, index)
	return nil
}

func (s *stubSurface) CellStatus(ctx context.Context, index int) (colab.CellStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusChecks[index]++
	if s.statusFor == nil {
		return colab.CellCompleted, nil
	}
	return s.statusFor(index, s.statusChecks[index]), nil
}

func (s *stubSurface) CellOutput(ctx context.Context, index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputs[index], nil
}

func (s *stubSurface) TriggerDownload(ctx context.Context, remotePath string) error {
	s.mu.Lock()
	s.downloads = append(s.downloads, remotePath)
	dir := s.downloadDir
	s.mu.Unlock()
	if dir == "" {
		return nil
	}

	data := make([]byte, 2048)
	copy(data[0:4], "RIFF")
	copy(data[8:12], "WAVE")
	return os.WriteFile(filepath.Join(dir, filepath.Base(remotePath)), data, 0644)
}

// stubSession pairs a stub surface with close and screenshot accounting.
type stubSession struct {
	mu          sync.Mutex
	surface     *stubSurface
	dir         string
	closeCount  int
	screenshots []string
}

func (s *stubSession) Surface() colab.Surface { return s.surface }

func (s *stubSession) DownloadDir() string { return s.dir }

func (s *stubSession) Screenshot(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshots = append(s.screenshots, path)
	return nil
}

func (s *stubSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	return nil
}

func (s *stubSession) closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

// stubOpener builds a fresh session per attempt and remembers them all.
type stubOpener struct {
	mu       sync.Mutex
	build    func() *stubSession
	openErr  error
	sessions []*stubSession
}

func (o *stubOpener) Open(ctx context.Context) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	session := o.build()
	o.sessions = append(o.sessions, session)
	return session, nil
}

func (o *stubOpener) opened() []*stubSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*stubSession, len(o.sessions))
	copy(out, o.sessions)
	return out
}
