package colab

import "fmt"

// TaskState tracks a single cell task through the plan.
type TaskState int

const (
	// TaskPending means the cell has not been started
	TaskPending TaskState = iota
	// TaskRunning means the cell is executing
	TaskRunning
	// TaskSucceeded means the cell completed without error
	TaskSucceeded
	// TaskFailed means the cell errored or timed out
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskSucceeded:
		return "succeeded"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CellTask is one cell in an execution plan.
type CellTask struct {
	Index int
	State TaskState
}

// ExecutionPlan is the ordered set of cells for one run attempt. Plans are
// never reused across attempts; each attempt builds a fresh one.
type ExecutionPlan struct {
	Tasks          []CellTask
	InjectionIndex int
}

// NewPlan builds a plan from an ordered cell index list. Indices must be
// strictly increasing and must include the injection index.
func NewPlan(cells []int, injectionIndex int) (*ExecutionPlan, error) {
	if len(cells) == 0 {
		return nil, fmt.Errorf("plan has no cells")
	}

	tasks := make([]CellTask, 0, len(cells))
	prev := -1
	found := false
	for _, idx := range cells {
		if idx < 0 {
			return nil, fmt.Errorf("cell index %d is negative", idx)
		}
		if idx <= prev {
			return nil, fmt.Errorf("cell indices must be strictly increasing, got %d after %d", idx, prev)
		}
		prev = idx
		if idx == injectionIndex {
			found = true
		}
		tasks = append(tasks, CellTask{Index: idx, State: TaskPending})
	}
	if !found {
		return nil, fmt.Errorf("injection index %d is not in the plan", injectionIndex)
	}

	return &ExecutionPlan{Tasks: tasks, InjectionIndex: injectionIndex}, nil
}

// MaxIndex returns the highest cell index in the plan.
func (p *ExecutionPlan) MaxIndex() int {
	return p.Tasks[len(p.Tasks)-1].Index
}

// Succeeded returns the number of tasks that completed successfully.
func (p *ExecutionPlan) Succeeded() int {
	n := 0
	for _, t := range p.Tasks {
		if t.State == TaskSucceeded {
			n++
		}
	}
	return n
}
