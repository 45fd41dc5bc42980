package colab

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttngo/bulletincast/pkg/poll"
	"github.com/ttngo/bulletincast/pkg/retry"
)

func testClock() *poll.FakeClock {
	return poll.NewFakeClock(time.Unix(0, 0))
}

func testEngineOptions() EngineOptions {
	return EngineOptions{
		CellTimeout:       5 * time.Minute,
		GenerationTimeout: 10 * time.Minute,
		CheckInterval:     2 * time.Second,
		TextVariable:      "TEXT_TO_SYNTHESIZE",
		RemoteAudioPath:   "/content/output_vietnamese.wav",
		Generation: GenerationParams{
			NumStep:     8,
			Speed:       1.0,
			MaxDuration: 100,
		},
	}
}

func sequentialPlan(t *testing.T, last, injection int) *ExecutionPlan {
	t.Helper()
	cells := make([]int, 0, last+1)
	for i := 0; i <= last; i++ {
		cells = append(cells, i)
	}
	plan, err := NewPlan(cells, injection)
	require.NoError(t, err)
	return plan
}

func TestEngineExecutesCellsInOrder(t *testing.T) {
	surface := newFakeSurface(11)
	plan := sequentialPlan(t, 10, 0)
	engine := NewEngine(surface, testClock(), testEngineOptions())

	err := engine.Execute(context.Background(), plan, "bản tin hôm nay")
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, surface.runOrder)
	for _, task := range plan.Tasks {
		assert.Equal(t, TaskSucceeded, task.State, "cell %d", task.Index)
	}
	assert.Equal(t, 11, plan.Succeeded())

	// injected source carries the payload and the generation parameters
	source := surface.cellSources[0]
	assert.Contains(t, source, "bản tin hôm nay")
	assert.Contains(t, source, "NUM_STEP = 8")
	assert.Contains(t, source, "REMOVE_LONG_SIL = False")
	assert.Contains(t, source, `"/content/output_vietnamese.wav"`)
}

func TestEngineReadbackMismatchStopsBeforeExecution(t *testing.T) {
	surface := newFakeSurface(11)
	surface.readOverride = func(index int) (string, bool) {
		return "TEXT_TO_SYNTHESIZE = \"\"\"\"\"\"", true
	}
	plan := sequentialPlan(t, 10, 0)
	engine := NewEngine(surface, testClock(), testEngineOptions())

	err := engine.Execute(context.Background(), plan, "bản tin hôm nay")
	require.Error(t, err)

	var cellErr *CellExecutionError
	require.ErrorAs(t, err, &cellErr)
	assert.Equal(t, 0, cellErr.Index)
	assert.Equal(t, CauseReadback, cellErr.Cause)
	assert.False(t, retry.IsRetryable(err), "a mismatched injection will not improve on retry")

	// nothing ran
	assert.Empty(t, surface.runOrder)
	for _, task := range plan.Tasks {
		assert.Equal(t, TaskPending, task.State)
	}
}

func TestEngineAbortsAtErrorMarkerCell(t *testing.T) {
	surface := newFakeSurface(11)
	surface.statusFor = func(index, check int) CellStatus {
		if index == 6 {
			return CellErrored
		}
		return CellCompleted
	}
	surface.outputs[6] = "ValueError: reference audio not found"

	plan := sequentialPlan(t, 10, 0)
	engine := NewEngine(surface, testClock(), testEngineOptions())

	err := engine.Execute(context.Background(), plan, "bản tin hôm nay")
	require.Error(t, err)

	var cellErr *CellExecutionError
	require.ErrorAs(t, err, &cellErr)
	assert.Equal(t, 6, cellErr.Index)
	assert.Equal(t, CauseErrorMarker, cellErr.Cause)
	assert.Contains(t, cellErr.Detail, "ValueError")
	assert.True(t, retry.IsRetryable(err))

	// cells after the failure never start
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, surface.runOrder)
	assert.Equal(t, TaskFailed, plan.Tasks[6].State)
	for _, task := range plan.Tasks[7:] {
		assert.Equal(t, TaskPending, task.State, "cell %d", task.Index)
	}
}

func TestEngineCellTimeout(t *testing.T) {
	surface := newFakeSurface(11)
	surface.statusFor = func(index, check int) CellStatus {
		if index == 2 {
			return CellRunning
		}
		return CellCompleted
	}

	opts := testEngineOptions()
	opts.CellTimeout = 10 * time.Second
	plan := sequentialPlan(t, 10, 0)
	engine := NewEngine(surface, testClock(), opts)

	err := engine.Execute(context.Background(), plan, "bản tin hôm nay")
	require.Error(t, err)

	var cellErr *CellExecutionError
	require.ErrorAs(t, err, &cellErr)
	assert.Equal(t, 2, cellErr.Index)
	assert.Equal(t, CauseTimeout, cellErr.Cause)
	assert.True(t, retry.IsRetryable(err))
	assert.Equal(t, []int{0, 1, 2}, surface.runOrder)
}

func TestEngineGenerationTimeoutAppliesToInjectionCell(t *testing.T) {
	surface := newFakeSurface(15)
	// the injection cell needs 20s of polling, past the 10s cell timeout
	// but well inside the generation timeout
	surface.statusFor = func(index, check int) CellStatus {
		if index == 14 && check < 10 {
			return CellRunning
		}
		return CellCompleted
	}

	opts := testEngineOptions()
	opts.CellTimeout = 10 * time.Second
	opts.GenerationTimeout = 10 * time.Minute

	plan, err := NewPlan([]int{14}, 14)
	require.NoError(t, err)

	engine := NewEngine(surface, testClock(), opts)
	require.NoError(t, engine.Execute(context.Background(), plan, "bản tin"))
	assert.Equal(t, TaskSucceeded, plan.Tasks[0].State)
}

func TestEnginePlanOutOfRange(t *testing.T) {
	surface := newFakeSurface(5)
	plan := sequentialPlan(t, 10, 0)
	engine := NewEngine(surface, testClock(), testEngineOptions())

	err := engine.Execute(context.Background(), plan, "bản tin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only 5 cells")
	// a misconfigured plan will not improve on retry
	assert.False(t, retry.IsRetryable(err))
	assert.Empty(t, surface.runOrder)
}

func TestEngineWriteFailure(t *testing.T) {
	surface := newFakeSurface(11)
	surface.writeErr = errors.New("editor not scriptable")
	plan := sequentialPlan(t, 10, 0)
	engine := NewEngine(surface, testClock(), testEngineOptions())

	err := engine.Execute(context.Background(), plan, "bản tin")
	var cellErr *CellExecutionError
	require.ErrorAs(t, err, &cellErr)
	assert.Equal(t, CauseReadback, cellErr.Cause)
	assert.Empty(t, surface.runOrder)
}

func TestRenderInjectionCell(t *testing.T) {
	source := renderInjectionCell("xin chào", "TEXT_TO_SYNTHESIZE", "/content/out.wav", GenerationParams{
		NumStep:       16,
		Speed:         0.85,
		RemoveLongSil: true,
		MaxDuration:   100,
	})

	assert.Contains(t, source, `TEXT_TO_SYNTHESIZE = """xin chào"""`)
	assert.Contains(t, source, `OUTPUT_WAV = "/content/out.wav"`)
	assert.Contains(t, source, "NUM_STEP = 16")
	assert.Contains(t, source, "SPEED = 0.85")
	assert.Contains(t, source, "REMOVE_LONG_SIL = True")
	assert.Contains(t, source, markerStarted)
	assert.Contains(t, source, markerComplete)
	assert.Contains(t, source, "text=TEXT_TO_SYNTHESIZE")
}
