package colab

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ttngo/bulletincast/pkg/logging"
	"github.com/ttngo/bulletincast/pkg/poll"
)

// maxErrorDetail bounds how much cell output is attached to an error.
const maxErrorDetail = 400

// EngineOptions configures an Engine.
type EngineOptions struct {
	// CellTimeout bounds each ordinary cell
	CellTimeout time.Duration

	// GenerationTimeout bounds the injection cell, which runs the
	// synthesis itself
	GenerationTimeout time.Duration

	// CheckInterval is the cell status polling interval
	CheckInterval time.Duration

	// TextVariable is the variable name assigned in the injection cell
	TextVariable string

	// RemoteAudioPath is where the notebook writes the generated audio
	RemoteAudioPath string

	// Generation holds the synthesis parameters
	Generation GenerationParams
}

// Engine injects the bulletin into the input cell and executes the plan's
// cells in strict order. The first failure aborts the rest of the plan;
// there is no per-cell retry. A failed plan is discarded and a retry, if
// any, starts over with a fresh session and a fresh plan.
type Engine struct {
	surface Surface
	waiter  *poll.Waiter
	opts    EngineOptions
	log     *logging.Logger
}

// NewEngine creates an engine. A nil clock uses real time.
func NewEngine(surface Surface, clock poll.Clock, opts EngineOptions) *Engine {
	return &Engine{
		surface: surface,
		waiter:  poll.NewWaiter(clock),
		opts:    opts,
		log:     logging.ForComponent("engine"),
	}
}

// Execute injects the text into the plan's input cell, verifies it read
// back intact, then runs every cell in order.
func (e *Engine) Execute(ctx context.Context, plan *ExecutionPlan, text string) error {
	count, err := e.surface.CellCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count cells: %w", err)
	}
	if plan.MaxIndex() >= count {
		return fmt.Errorf("plan references cell %d but notebook has only %d cells", plan.MaxIndex(), count)
	}
	e.log.Infof("notebook has %d cells, plan covers %d of them", count, len(plan.Tasks))

	if err := e.inject(ctx, plan.InjectionIndex, text); err != nil {
		return err
	}

	for i := range plan.Tasks {
		task := &plan.Tasks[i]
		task.State = TaskRunning
		e.log.Infof("[%d/%d] executing cell %d", i+1, len(plan.Tasks), task.Index)

		// the injection cell runs the synthesis itself, so it gets the
		// longer generation timeout
		timeout := e.opts.CellTimeout
		if task.Index == plan.InjectionIndex && e.opts.GenerationTimeout > timeout {
			timeout = e.opts.GenerationTimeout
		}

		if err := e.runCell(ctx, task.Index, timeout); err != nil {
			task.State = TaskFailed
			e.log.Errorf("cell %d failed, aborting remaining %d cells: %v",
				task.Index, len(plan.Tasks)-i-1, err)
			return err
		}
		task.State = TaskSucceeded
	}

	e.log.Infof("all %d cells completed", len(plan.Tasks))
	return nil
}

// inject writes the rendered source into the input cell and verifies the
// bulletin text reads back intact before anything executes.
func (e *Engine) inject(ctx context.Context, index int, text string) error {
	source := renderInjectionCell(text, e.opts.TextVariable, e.opts.RemoteAudioPath, e.opts.Generation)

	e.log.Infof("writing %d chars into cell %d", len(source), index)
	if err := e.surface.WriteCell(ctx, index, source); err != nil {
		return &CellExecutionError{Index: index, Cause: CauseReadback, Err: err}
	}

	got, err := e.surface.ReadCell(ctx, index)
	if err != nil {
		return &CellExecutionError{Index: index, Cause: CauseReadback, Err: err}
	}
	if !strings.Contains(got, text) {
		return &CellExecutionError{
			Index:  index,
			Cause:  CauseReadback,
			Detail: fmt.Sprintf("wrote %d chars, read back %d without the payload", len(source), len(got)),
		}
	}

	e.log.Infof("cell %d content verified", index)
	return nil
}

func (e *Engine) runCell(ctx context.Context, index int, timeout time.Duration) error {
	if err := e.surface.RunCell(ctx, index); err != nil {
		return &CellExecutionError{Index: index, Cause: CauseErrorMarker, Err: fmt.Errorf("failed to start: %w", err)}
	}

	err := e.waiter.Until(ctx, e.opts.CheckInterval, timeout, func(ctx context.Context) (bool, error) {
		status, serr := e.surface.CellStatus(ctx, index)
		if serr != nil {
			e.log.Debugf("cell %d status check failed: %v", index, serr)
			return false, nil
		}
		switch status {
		case CellCompleted:
			return true, nil
		case CellErrored:
			return false, &CellExecutionError{
				Index:  index,
				Cause:  CauseErrorMarker,
				Detail: e.errorDetail(ctx, index),
			}
		default:
			return false, nil
		}
	})
	if err != nil {
		var cellErr *CellExecutionError
		if errors.As(err, &cellErr) {
			return err
		}
		if errors.Is(err, poll.ErrTimeout) {
			return &CellExecutionError{Index: index, Cause: CauseTimeout, Err: err}
		}
		return err
	}
	return nil
}

func (e *Engine) errorDetail(ctx context.Context, index int) string {
	out, err := e.surface.CellOutput(ctx, index)
	if err != nil || out == "" {
		return ""
	}
	out = strings.TrimSpace(out)
	if len(out) > maxErrorDetail {
		out = out[:maxErrorDetail] + "..."
	}
	return out
}
