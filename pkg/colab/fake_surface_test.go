package colab

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeSurface is a scriptable in-memory Surface for control-flow tests.
type fakeSurface struct {
	mu sync.Mutex

	cellCount   int
	cellSources map[int]string
	outputs     map[int]string

	// authenticatedAfter is how many IsAuthenticated calls return false
	// before the signal appears; negative means never
	authenticatedAfter int
	authChecks         int

	// runtimeStates are consumed one per RuntimeState call; the last
	// entry repeats
	runtimeStates   []RuntimeState
	runtimeChecks   int
	runtimeRequests int

	// statusFor scripts CellStatus by cell index and check count;
	// nil means every cell completes on first check
	statusFor    func(index, check int) CellStatus
	statusChecks map[int]int

	runOrder  []int
	navigated []string
	applied   [][]Cookie
	exported  []Cookie
	downloads []string

	waitReadyErr error
	writeErr     error
	readOverride func(index int) (string, bool)
	onDownload   func(remotePath string) error
}

func newFakeSurface(cellCount int) *fakeSurface {
	return &fakeSurface{
		cellCount:    cellCount,
		cellSources:  make(map[int]string),
		outputs:      make(map[int]string),
		statusChecks: make(map[int]int),
	}
}

func (f *fakeSurface) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeSurface) WaitReady(ctx context.Context, timeout time.Duration) error {
	return f.waitReadyErr
}

func (f *fakeSurface) IsAuthenticated(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authChecks++
	if f.authenticatedAfter < 0 {
		return false, nil
	}
	return f.authChecks > f.authenticatedAfter, nil
}

func (f *fakeSurface) SetCookies(ctx context.Context, cookies []Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, cookies)
	return nil
}

func (f *fakeSurface) ReadCookies(ctx context.Context) ([]Cookie, error) {
	return f.exported, nil
}

func (f *fakeSurface) RuntimeState(ctx context.Context) (RuntimeState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.runtimeStates) == 0 {
		return RuntimeConnected, nil
	}
	i := f.runtimeChecks
	if i >= len(f.runtimeStates) {
		i = len(f.runtimeStates) - 1
	}
	f.runtimeChecks++
	return f.runtimeStates[i], nil
}

func (f *fakeSurface) RequestRuntime(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runtimeRequests++
	return nil
}

func (f *fakeSurface) CellCount(ctx context.Context) (int, error) {
	return f.cellCount, nil
}

func (f *fakeSurface) WriteCell(ctx context.Context, index int, source string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cellSources[index] = source
	return nil
}

func (f *fakeSurface) ReadCell(ctx context.Context, index int) (string, error) {
	if f.readOverride != nil {
		if source, ok := f.readOverride(index); ok {
			return source, nil
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	source, ok := f.cellSources[index]
	if !ok {
		return "", fmt.Errorf("cell %d has no source", index)
	}
	return source, nil
}

func (f *fakeSurface) RunCell(ctx context.Context, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runOrder = append(f.runOrder, index)
	return nil
}

func (f *fakeSurface) CellStatus(ctx context.Context, index int) (CellStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusChecks[index]++
	if f.statusFor == nil {
		return CellCompleted, nil
	}
	return f.statusFor(index, f.statusChecks[index]), nil
}

func (f *fakeSurface) CellOutput(ctx context.Context, index int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outputs[index], nil
}

func (f *fakeSurface) TriggerDownload(ctx context.Context, remotePath string) error {
	f.mu.Lock()
	f.downloads = append(f.downloads, remotePath)
	f.mu.Unlock()
	if f.onDownload != nil {
		return f.onDownload(remotePath)
	}
	return nil
}
