package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/natijti/internal/metrics"
)

// ErrSessionNotFound is returned when an exam session id does not resolve.
var ErrSessionNotFound = errors.New("exam session not found")

// DefaultBatchSize is the number of rows committed together.
const DefaultBatchSize = 100

// Options tunes a Service. Zero values fall back to the package defaults.
type Options struct {
	BatchSize        int
	MaxTaskErrors    int
	MaxRetainedTasks int
	MaxConcurrent    int
	MaxWait          time.Duration
	FileRules        FileRules

	ResultsTTL      time.Duration
	StatsTTL        time.Duration
	DefaultPageSize int
	MaxPageSize     int
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxTaskErrors <= 0 {
		o.MaxTaskErrors = DefaultMaxTaskErrors
	}
	if o.MaxRetainedTasks <= 0 {
		o.MaxRetainedTasks = DefaultMaxRetainedTasks
	}
	if o.ResultsTTL <= 0 {
		o.ResultsTTL = time.Hour
	}
	if o.StatsTTL <= 0 {
		o.StatsTTL = 2 * time.Hour
	}
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = 50
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = 1000
	}
	return o
}

// Service runs ingestion tasks and serves the results read path.
type Service struct {
	store   Store
	cache   Cache
	ranker  *Ranker
	opts    Options
	limiter *UploadLimiter
	tasks   *taskRegistry
	now     func() time.Time
}

// NewService wires a Service over store. A nil cache disables caching.
func NewService(store Store, cache Cache, opts Options) *Service {
	opts = opts.withDefaults()
	if cache == nil {
		cache = noCache{}
	}
	return &Service{
		store:   store,
		cache:   cache,
		ranker:  NewRanker(store),
		opts:    opts,
		limiter: NewUploadLimiter(opts.MaxConcurrent, opts.MaxWait),
		tasks:   newTaskRegistry(opts.MaxRetainedTasks),
		now:     time.Now,
	}
}

// Limiter exposes the task limiter for health reporting.
func (s *Service) Limiter() *UploadLimiter {
	return s.limiter
}

// SubmitRequest is an uploaded file destined for one exam session.
type SubmitRequest struct {
	FileName  string
	Reader    io.Reader
	Size      int64
	SessionID int64
}

// TaskHandle is returned once a task has been accepted.
type TaskHandle struct {
	TaskID    string `json:"task_id"`
	Message   string `json:"message"`
	TotalRows int    `json:"total_rows"`
	Layout    Layout `json:"detected_format"`
}

// Submit validates and parses the upload, then ingests it in the background.
//
// File and session problems are reported here, before a task exists. Row
// problems are reported through Status. Returns ErrTooManyTasks when every
// task slot stays busy.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*TaskHandle, error) {
	if req.Reader == nil {
		return nil, ErrNoFile
	}
	if req.SessionID <= 0 {
		return nil, fmt.Errorf("%w: invalid id %d", ErrSessionNotFound, req.SessionID)
	}

	start := time.Now()
	table, err := ReadTable(req.FileName, req.Reader, req.Size, s.opts.FileRules)
	metrics.RecordStep("parse", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	if _, err := s.store.FindSession(ctx, req.SessionID); err != nil {
		return nil, fmt.Errorf("find session %d: %w", req.SessionID, err)
	}

	layout := DetectLayout(table.Columns())

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	task := newTask(uuid.NewString(), table.FileName, req.SessionID, layout, table.Len(), s.opts.MaxTaskErrors, s.now())
	s.tasks.add(task)

	slog.Info("ingestion task accepted",
		"task_id", task.ID,
		"session_id", req.SessionID,
		"file", table.FileName,
		"layout", layout.String(),
		"rows", table.Len(),
		"client_ip", ClientIPFromContext(ctx),
		"user_agent", UserAgentFromContext(ctx),
	)

	go func() {
		defer s.limiter.Release()
		s.runTask(context.Background(), task, table)
	}()

	return &TaskHandle{
		TaskID:    task.ID,
		Message:   fmt.Sprintf("Import started: %d rows detected as %s", table.Len(), layout.Spec().Description),
		TotalRows: table.Len(),
		Layout:    layout,
	}, nil
}

// Status returns a snapshot of a task.
func (s *Service) Status(taskID string) (TaskSnapshot, error) {
	t, ok := s.tasks.get(taskID)
	if !ok {
		return TaskSnapshot{}, ErrTaskNotFound
	}
	return t.Snapshot(), nil
}

// WaitForTasks blocks until every running task has finished or ctx ends.
func (s *Service) WaitForTasks(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// noCache is the Cache used when none is configured.
type noCache struct{}

func (noCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (noCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noCache) Delete(context.Context, string) error                     { return nil }
