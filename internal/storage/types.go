package storage

import (
	"context"
	"time"

	"mediafetch/internal/window"
)

type State string

const (
	StatePending    State = "PENDING"
	StateInProgress State = "IN_PROGRESS"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

func (s State) Valid() bool {
	switch s {
	case StatePending, StateInProgress, StateCompleted, StateFailed:
		return true
	}
	return false
}

// Task is one media-fetch job. Priority is set only while State is PENDING;
// a higher number runs first.
type Task struct {
	ID               string    `json:"id"`
	Sources          []string  `json:"sources"`
	DownloadStrategy string    `json:"download_strategy"`
	SaveStrategy     string    `json:"save_strategy"`
	CatalogueName    string    `json:"catalogue_name"`
	State            State     `json:"state"`
	Priority         *int      `json:"priority"`
	ErrorMessage     string    `json:"error_message"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewTask is the input for CreateTask. A nil Priority appends the task at
// the end of the pending queue.
type NewTask struct {
	Sources          []string `json:"sources"`
	DownloadStrategy string   `json:"download_strategy"`
	SaveStrategy     string   `json:"save_strategy"`
	CatalogueName    string   `json:"catalogue_name"`
	Priority         *int     `json:"priority,omitempty"`
}

// TaskPatch holds optional edits; nil fields are left untouched.
type TaskPatch struct {
	Sources          *[]string `json:"sources,omitempty"`
	DownloadStrategy *string   `json:"download_strategy,omitempty"`
	SaveStrategy     *string   `json:"save_strategy,omitempty"`
	CatalogueName    *string   `json:"catalogue_name,omitempty"`
	Priority         *int      `json:"priority,omitempty"`
}

type TaskFilter struct {
	State State
	Limit int
}

// Window is a daily execution window. Both bounds are inclusive.
type Window struct {
	ID        string           `json:"id"`
	Start     window.TimeOfDay `json:"start"`
	End       window.TimeOfDay `json:"end"`
	CreatedAt time.Time        `json:"created_at"`
}

// Event is an operator-visible feed entry (job outcome, gate warnings).
type Event struct {
	ID          int64      `json:"id"`
	Kind        string     `json:"kind"`
	Level       string     `json:"level"`
	TaskID      string     `json:"task_id,omitempty"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"created_at"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`
}

type EventFilter struct {
	IncludeDismissed bool
	Limit            int
}

// Store is the persistence API used by the gate, the runner and the HTTP API.
type Store interface {
	CreateTask(ctx context.Context, in NewTask) (Task, error)
	GetTask(ctx context.Context, id string) (Task, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]Task, error)
	UpdateTask(ctx context.Context, id string, p TaskPatch) (Task, error)
	DeleteTask(ctx context.Context, id string) error
	RequeueTask(ctx context.Context, id string) (Task, error)

	// NextPending returns the pending task that should run next: highest
	// priority, then oldest.
	NextPending(ctx context.Context) (Task, bool, error)
	HasInProgress(ctx context.Context) (bool, error)
	// Compact clears stray priorities on non-pending tasks and renumbers the
	// pending set to 1..N. It returns the number of rows rewritten.
	Compact(ctx context.Context) (int, error)

	// ClaimTask moves a pending task to IN_PROGRESS. ok is false when the
	// task is no longer pending.
	ClaimTask(ctx context.Context, id string) (t Task, ok bool, err error)
	CompleteTask(ctx context.Context, id string) error
	FailTask(ctx context.Context, id, message string) error

	CreateWindow(ctx context.Context, start, end window.TimeOfDay) (Window, error)
	ListWindows(ctx context.Context) ([]Window, error)
	DeleteWindow(ctx context.Context, id string) error
	// CurrentWindow returns the earliest-created window.
	CurrentWindow(ctx context.Context) (Window, bool, error)

	AppendEvent(ctx context.Context, e Event) (Event, error)
	ListEvents(ctx context.Context, f EventFilter) ([]Event, error)
	DismissEvent(ctx context.Context, id int64) error

	Close() error
}
