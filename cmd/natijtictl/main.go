// Command natijtictl administers a results store from the command line:
// schema migration, sessions and reference data, and offline file checks
// and imports through the same engine the server uses.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/natijti/internal/config"
	"github.com/JonMunkholm/natijti/internal/logging"
	"github.com/JonMunkholm/natijti/internal/store"
)

// Exit codes.
const (
	exitError      = 1
	exitUsage      = 2
	exitValidation = 3
	exitDB         = 4
)

// codedError carries the process exit code for err.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

func exitCode(err error) int {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitError
}

// app holds state shared by subcommands.
type app struct {
	envFile  string
	logLevel string
	cfg      *config.Config
}

// config loads the environment configuration once.
func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	if a.envFile != "" {
		if err := godotenv.Overload(a.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, withCode(exitUsage, fmt.Errorf("load %s: %w", a.envFile, err))
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	a.cfg = cfg
	return cfg, nil
}

// openStore opens the configured backend. Callers close it.
func (a *app) openStore(ctx context.Context, migrate bool) (store.Backend, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	dbCfg := cfg.Database
	dbCfg.Migrate = dbCfg.Migrate || migrate
	b, err := store.Open(ctx, dbCfg)
	if err != nil {
		return nil, withCode(exitDB, err)
	}
	return b, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "natijtictl",
		Short:         "Administer exam results: migrate, load sessions, check and import files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), a.logLevel, "text"))
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Environment file to load before reading configuration")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(
		newMigrateCmd(a),
		newDetectCmd(),
		newPreviewCmd(),
		newImportCmd(a),
		newSessionCmd(a),
		newRefCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}
