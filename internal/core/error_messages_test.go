package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error returns empty", err: nil, wantCode: ""},
		{name: "wrapped file too large", err: fmt.Errorf("%w: 60MB exceeds limit", ErrFileTooLarge), wantCode: "FILE001"},
		{name: "unsupported file", err: fmt.Errorf("%w: \".pdf\"", ErrUnsupportedFile), wantCode: "FILE002"},
		{name: "unparseable file", err: ErrUnparseableFile, wantCode: "FILE003"},
		{name: "no file", err: ErrNoFile, wantCode: "FILE004"},
		{name: "empty file", err: ErrEmptyFile, wantCode: "FILE005"},
		{name: "session lookup wrapped twice", err: fmt.Errorf("find session 3: %w", ErrSessionNotFound), wantCode: "SES001"},
		{name: "busy", err: ErrTooManyTasks, wantCode: "TSK002"},
		{name: "unknown task", err: ErrTaskNotFound, wantCode: "TSK003"},
		{name: "unknown result", err: ErrResultNotFound, wantCode: "RES001"},
		{name: "row error unwraps", err: &RowError{Err: ErrNationalIDTooShort, Detail: "x"}, wantCode: "VAL002"},
		{name: "missing decision", err: &RowError{Err: ErrMissingDecision}, wantCode: "VAL004"},
		{name: "invalid parameter", err: fmt.Errorf("%w: size", ErrInvalidParameter), wantCode: "VAL005"},
		{name: "invalid score", err: &RowError{Err: ErrInvalidScore, Detail: `"abc" is not a number`}, wantCode: "VAL006"},
		{name: "postgres duplicate key", err: errors.New("ERROR: duplicate key value violates unique constraint \"results_pkey\""), wantCode: "DB001"},
		{name: "sqlite unique constraint", err: errors.New("constraint failed: UNIQUE constraint failed: results.nni"), wantCode: "DB001"},
		{name: "foreign key", err: errors.New("violates foreign key constraint"), wantCode: "DB002"},
		{name: "connection refused", err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), wantCode: "DB003"},
		{name: "sqlite busy", err: errors.New("database is locked (5) (SQLITE_BUSY)"), wantCode: "DB004"},
		{name: "case insensitive", err: errors.New("DEADLOCK detected"), wantCode: "DB004"},
		{name: "rate limit", err: errors.New("rate limit exceeded"), wantCode: "RATE001"},
		{name: "unknown error returns default", err: errors.New("something odd"), wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Message == "" {
				t.Error("MapError() message is empty")
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrSessionNotFound)
	want := "Exam session not found (Code: SES001). Check the session id"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "sentinel is user facing", err: ErrEmptyFile, want: true},
		{name: "driver pattern is user facing", err: errors.New("duplicate key"), want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
