package core

// tasks.go holds ingestion task state and the in-memory registry that serves
// status polling.
//
// Counters are atomics so pollers never contend with the worker. The error
// list, warnings and lifecycle fields sit behind a per-task mutex. Tasks are
// process-local and disappear on restart.

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTaskNotFound is returned when polling an unknown or evicted task.
var ErrTaskNotFound = errors.New("task not found")

// TaskStatus is the lifecycle state of an ingestion task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// DefaultMaxTaskErrors bounds the row messages kept per task.
const DefaultMaxTaskErrors = 1000

// Task is one background ingestion of a parsed file.
type Task struct {
	ID        string
	FileName  string
	SessionID int64
	Layout    Layout
	TotalRows int
	CreatedAt time.Time

	maxErrors int

	processed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64

	mu         sync.Mutex
	status     TaskStatus
	message    string
	errs       []string
	dropped    int
	warnings   []string
	updatedAt  time.Time
	finishedAt *time.Time
}

func newTask(id, fileName string, sessionID int64, layout Layout, totalRows, maxErrors int, now time.Time) *Task {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxTaskErrors
	}
	return &Task{
		ID:        id,
		FileName:  fileName,
		SessionID: sessionID,
		Layout:    layout,
		TotalRows: totalRows,
		CreatedAt: now,
		maxErrors: maxErrors,
		status:    TaskPending,
		updatedAt: now,
	}
}

// Status returns the current lifecycle state.
func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Task) start(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = TaskProcessing
	t.updatedAt = now
}

func (t *Task) rowSucceeded() {
	t.succeeded.Add(1)
	t.processed.Add(1)
}

func (t *Task) rowFailed(msg string) {
	t.mu.Lock()
	if len(t.errs) < t.maxErrors {
		t.errs = append(t.errs, msg)
	} else {
		t.dropped++
	}
	t.mu.Unlock()
	t.failed.Add(1)
	t.processed.Add(1)
}

func (t *Task) warn(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warnings = append(t.warnings, msg)
}

// finish moves the task to a terminal state. Later calls are ignored.
func (t *Task) finish(status TaskStatus, message string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return false
	}
	t.status = status
	t.message = message
	t.updatedAt = now
	t.finishedAt = &now
	return true
}

func (t *Task) finishedBefore(cutoff time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finishedAt != nil && t.finishedAt.Before(cutoff)
}

// TaskSnapshot is a consistent copy of a task's progress.
type TaskSnapshot struct {
	TaskID        string     `json:"task_id"`
	Status        TaskStatus `json:"status"`
	Progress      float64    `json:"progress"`
	TotalRows     int        `json:"total_rows"`
	ProcessedRows int64      `json:"processed_rows"`
	SuccessCount  int64      `json:"success_count"`
	ErrorCount    int64      `json:"error_count"`
	Errors        []string   `json:"errors"`
	ErrorsDropped int        `json:"errors_dropped,omitempty"`
	Warnings      []string   `json:"warnings,omitempty"`
	Layout        Layout     `json:"detected_format"`
	FileName      string     `json:"file_name"`
	SessionID     int64      `json:"session_id"`
	Message       string     `json:"message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Snapshot copies the task's current state.
func (t *Task) Snapshot() TaskSnapshot {
	t.mu.Lock()
	snap := TaskSnapshot{
		TaskID:        t.ID,
		Status:        t.status,
		TotalRows:     t.TotalRows,
		Errors:        append([]string{}, t.errs...),
		ErrorsDropped: t.dropped,
		Layout:        t.Layout,
		FileName:      t.FileName,
		SessionID:     t.SessionID,
		Message:       t.message,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.updatedAt,
		FinishedAt:    t.finishedAt,
	}
	if len(t.warnings) > 0 {
		snap.Warnings = append([]string(nil), t.warnings...)
	}
	t.mu.Unlock()

	snap.ProcessedRows = t.processed.Load()
	snap.SuccessCount = t.succeeded.Load()
	snap.ErrorCount = t.failed.Load()
	snap.Progress = progress(snap.ProcessedRows, t.TotalRows, snap.Status)
	return snap
}

func progress(processed int64, total int, status TaskStatus) float64 {
	if total <= 0 {
		if status == TaskCompleted {
			return 100
		}
		return 0
	}
	pct := float64(processed) * 100 / float64(total)
	return math.Round(pct*100) / 100
}

// DefaultMaxRetainedTasks bounds the registry when no limit is configured.
const DefaultMaxRetainedTasks = 500

// taskRegistry indexes tasks by id. When full, adding a task evicts the
// oldest terminal ones; running tasks are never evicted.
type taskRegistry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	order []string
	max   int
}

func newTaskRegistry(max int) *taskRegistry {
	if max <= 0 {
		max = DefaultMaxRetainedTasks
	}
	return &taskRegistry{tasks: make(map[string]*Task), max: max}
}

func (r *taskRegistry) add(t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.tasks) >= r.max {
		excess := len(r.tasks) - r.max + 1
		r.removeLocked(func(old *Task) bool {
			if excess > 0 && old.Status().Terminal() {
				excess--
				return true
			}
			return false
		})
	}
	r.tasks[t.ID] = t
	r.order = append(r.order, t.ID)
}

func (r *taskRegistry) get(id string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	return t, ok
}

func (r *taskRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// sweep drops terminal tasks that finished before cutoff.
func (r *taskRegistry) sweep(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(func(t *Task) bool { return t.finishedBefore(cutoff) })
}

// removeLocked walks tasks oldest first and drops those drop selects.
func (r *taskRegistry) removeLocked(drop func(*Task) bool) int {
	kept := r.order[:0]
	removed := 0
	for _, id := range r.order {
		if drop(r.tasks[id]) {
			delete(r.tasks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return removed
}
