package core

// service_upload.go is the background half of an ingestion task.
//
// Rows are mapped and upserted one at a time inside a Batch. Every BatchSize
// rows the batch is committed and a new one begun. A rejected or failing row
// is recorded against the task and never stops the rows after it. A failed
// intermediate commit loses only that batch: it is logged, noted on the task
// as a warning and processing carries on.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/natijti/internal/metrics"
)

func (s *Service) runTask(ctx context.Context, task *Task, table *Table) {
	start := time.Now()
	log := slog.With("task_id", task.ID, "session_id", task.SessionID)
	task.start(s.now())

	var batch Batch
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in ingestion task", "panic", r)
			if batch != nil {
				_ = batch.Rollback(ctx)
			}
			s.invalidateSession(ctx, task.SessionID)
			s.finishTask(task, TaskFailed, fmt.Sprintf("internal error: %v", r), start)
		}
	}()

	fail := func(msg string, err error) {
		log.Error(msg, "error", err)
		// Earlier batches may already be committed.
		s.invalidateSession(ctx, task.SessionID)
		s.finishTask(task, TaskFailed, fmt.Sprintf("%s: %v", msg, err), start)
	}

	if _, err := s.store.FindSession(ctx, task.SessionID); err != nil {
		fail("session lookup failed", err)
		return
	}

	refs, err := s.loadReferences(ctx)
	if err != nil {
		fail("loading reference data failed", err)
		return
	}
	est, reg, ser := refs.Size()
	log.Debug("reference caches loaded", "establishments", est, "regions", reg, "series", ser)

	batch, err = s.store.Begin(ctx)
	if err != nil {
		fail("begin batch failed", err)
		return
	}

	batchStart := 0
	for i := 0; i < table.Len(); i++ {
		line := table.Line(i)
		if err := s.ingestRow(ctx, batch, table.Row(i), task.SessionID, task.Layout, refs); err != nil {
			task.rowFailed(fmt.Sprintf("row %d: %v", line, err))
			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				log.Warn("row write failed", "row", line, "error", err)
			}
		} else {
			task.rowSucceeded()
		}

		if (i+1)%s.opts.BatchSize == 0 && i+1 < table.Len() {
			batch, err = s.flush(ctx, task, batch, table.Line(batchStart), line)
			if err != nil {
				fail("begin batch failed", err)
				return
			}
			batchStart = i + 1
		}
	}

	err = batch.Commit(ctx)
	metrics.RecordBatch(err)
	if err != nil {
		_ = batch.Rollback(ctx)
		batch = nil
		fail("final commit failed", err)
		return
	}
	batch = nil

	s.invalidateSession(ctx, task.SessionID)
	s.finishTask(task, TaskCompleted, "", start)
}

// flush commits the current batch and begins the next one. A commit failure
// is absorbed; only a failure to begin a new batch is returned.
func (s *Service) flush(ctx context.Context, task *Task, batch Batch, firstLine, lastLine int) (Batch, error) {
	err := batch.Commit(ctx)
	metrics.RecordBatch(err)
	if err != nil {
		_ = batch.Rollback(ctx)
		slog.Error("batch commit failed",
			"task_id", task.ID,
			"first_row", firstLine,
			"last_row", lastLine,
			"error", err,
		)
		task.warn(fmt.Sprintf("rows %d-%d were not saved: %v", firstLine, lastLine, err))
	}
	return s.store.Begin(ctx)
}

// ingestRow maps one row and upserts it on (national id, session).
func (s *Service) ingestRow(ctx context.Context, batch Batch, row Row, sessionID int64, layout Layout, refs *ReferenceCaches) error {
	rec, err := MapRow(row, sessionID, layout, refs)
	if err != nil {
		return err
	}

	now := s.now()
	existing, err := batch.FindRecord(ctx, rec.Key())
	if err != nil {
		return fmt.Errorf("find existing result: %w", err)
	}
	if existing != nil {
		existing.CopyPayload(rec)
		existing.UpdatedAt = now
		if err := batch.UpdateRecord(ctx, existing); err != nil {
			return fmt.Errorf("update result: %w", err)
		}
		return nil
	}

	rec.ID = uuid.New()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if err := batch.InsertRecord(ctx, rec); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// loadReferences reads the three reference tables concurrently.
func (s *Service) loadReferences(ctx context.Context) (*ReferenceCaches, error) {
	var establishments, regions, series []RefEntry

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		establishments, err = s.store.ListEstablishments(gctx)
		if err != nil {
			return fmt.Errorf("list establishments: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		regions, err = s.store.ListRegions(gctx)
		if err != nil {
			return fmt.Errorf("list regions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		series, err = s.store.ListSeries(gctx)
		if err != nil {
			return fmt.Errorf("list series: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewReferenceCaches(establishments, regions, series), nil
}

func (s *Service) finishTask(task *Task, status TaskStatus, message string, start time.Time) {
	if !task.finish(status, message, s.now()) {
		return
	}
	snap := task.Snapshot()
	metrics.RecordTask(string(status))
	metrics.RecordRows("success", snap.SuccessCount)
	metrics.RecordRows("error", snap.ErrorCount)
	var stepErr error
	if status == TaskFailed {
		stepErr = errors.New(message)
	}
	metrics.RecordStep("ingest", stepErr, time.Since(start))

	slog.Info("ingestion task finished",
		"task_id", task.ID,
		"session_id", task.SessionID,
		"status", status,
		"processed", snap.ProcessedRows,
		"success", snap.SuccessCount,
		"errors", snap.ErrorCount,
		"warnings", len(snap.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
