package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/natijti/internal/config"
	"github.com/JonMunkholm/natijti/internal/core"
)

// drainTimeout bounds the wait for a running task after an interrupt.
const drainTimeout = 30 * time.Second

type importOptions struct {
	sessionID int64
	poll      time.Duration
	strict    bool
}

func newImportCmd(a *app) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a results file into an exam session",
		Long: "Import reads FILE, detects its layout and upserts every valid row into the\n" +
			"session. Rejected rows are reported and do not stop the import.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.sessionID <= 0 {
				return withCode(exitUsage, fmt.Errorf("--session must be a positive id"))
			}
			return runImport(cmd.Context(), a, args[0], opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().Int64Var(&opts.sessionID, "session", 0, "Exam session id (required)")
	cmd.Flags().DurationVar(&opts.poll, "poll", 250*time.Millisecond, "Progress polling interval")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero when any row is rejected")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func serviceOptions(cfg *config.Config) core.Options {
	return core.Options{
		BatchSize:        cfg.Upload.BatchSize,
		MaxTaskErrors:    cfg.Upload.MaxTaskErrors,
		MaxRetainedTasks: cfg.Upload.MaxRetainedTasks,
		MaxConcurrent:    cfg.Upload.MaxConcurrent,
		MaxWait:          cfg.Upload.MaxWaitTime,
		FileRules: core.FileRules{
			MaxSize:    cfg.Upload.MaxFileSize.Int64(),
			Extensions: cfg.Upload.AllowedExtensions,
		},
	}
}

func runImport(ctx context.Context, a *app, path string, opts importOptions, out, errOut io.Writer) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	backend, err := a.openStore(ctx, false)
	if err != nil {
		return err
	}
	defer backend.Close()

	f, err := os.Open(path)
	if err != nil {
		return withCode(exitUsage, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return withCode(exitUsage, err)
	}

	svc := core.NewService(backend, nil, serviceOptions(cfg))
	handle, err := svc.Submit(ctx, core.SubmitRequest{
		FileName:  path,
		Reader:    f,
		Size:      info.Size(),
		SessionID: opts.sessionID,
	})
	if err != nil {
		return withCode(exitValidation, fmt.Errorf("%s (%w)", core.FormatUserError(err), err))
	}
	fmt.Fprintln(errOut, handle.Message)

	snap, err := waitForTask(ctx, svc, handle.TaskID, opts.poll, errOut)
	if err != nil {
		return err
	}
	// The task slot is released just after the terminal status is set.
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	_ = svc.WaitForTasks(drainCtx)
	if err := printJSON(out, snap); err != nil {
		return err
	}

	switch {
	case snap.Status == core.TaskFailed:
		return withCode(exitDB, fmt.Errorf("import failed: %s", snap.Message))
	case opts.strict && snap.ErrorCount > 0:
		return withCode(exitValidation, fmt.Errorf("%d rows rejected", snap.ErrorCount))
	}
	return nil
}

// waitForTask polls the task until it is terminal, printing progress as it
// changes. Tasks cannot be cancelled, so an interrupt waits a bounded time
// for the running batch to finish.
func waitForTask(ctx context.Context, svc *core.Service, taskID string, poll time.Duration, errOut io.Writer) (core.TaskSnapshot, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	last := -1.0
	for {
		snap, err := svc.Status(taskID)
		if err != nil {
			return snap, err
		}
		if snap.Progress != last {
			fmt.Fprintf(errOut, "%6.2f%%  %d/%d rows, %d rejected\n",
				snap.Progress, snap.ProcessedRows, snap.TotalRows, snap.ErrorCount)
			last = snap.Progress
		}
		if snap.Status.Terminal() {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			slog.Warn("interrupted, waiting for the running task", "task_id", taskID)
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
			if err := svc.WaitForTasks(drainCtx); err != nil {
				return snap, fmt.Errorf("task %s still running: %w", taskID, err)
			}
			snap, _ = svc.Status(taskID)
			return snap, ctx.Err()
		case <-ticker.C:
		}
	}
}
