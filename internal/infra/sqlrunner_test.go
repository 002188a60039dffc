package infra

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type recordingExecutor struct {
	lastQuery string
	lastArgs  []any
}

func (r *recordingExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	r.lastQuery, r.lastArgs = query, args
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (r *recordingExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	r.lastQuery, r.lastArgs = query, args
	return errorRow{err: pgx.ErrNoRows}
}

func (r *recordingExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	r.lastQuery, r.lastArgs = query, args
	return nil, errors.New("not implemented")
}

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		marker  string
		wantErr bool
	}{
		{
			name:   "valid marker",
			query:  "--sql 0b7b1d3e-6c53-4c1b-9a55-0d7f1f3f4a10\nselect 1;",
			marker: "0b7b1d3e-6c53-4c1b-9a55-0d7f1f3f4a10",
		},
		{
			name:   "leading whitespace",
			query:  "\n  --sql 0b7b1d3e-6c53-4c1b-9a55-0d7f1f3f4a10\nselect 1;",
			marker: "0b7b1d3e-6c53-4c1b-9a55-0d7f1f3f4a10",
		},
		{name: "missing marker", query: "select 1;", wantErr: true},
		{name: "uppercase uuid rejected", query: "--sql 0B7B1D3E-6C53-4C1B-9A55-0D7F1F3F4A10\nselect 1;", wantErr: true},
		{name: "empty", query: "   ", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			marker, body, err := extractMarker(tc.query)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.query)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractMarker returned error: %v", err)
			}
			if marker != tc.marker {
				t.Fatalf("marker = %q, want %q", marker, tc.marker)
			}
			if strings.Contains(body, "--sql") {
				t.Fatalf("marker line leaked into body: %q", body)
			}
		})
	}
}

func TestSQLRunnerStripsMarker(t *testing.T) {
	exec := &recordingExecutor{}
	runner := NewSQLRunner(exec, zerolog.New(io.Discard))

	_, err := runner.Exec(context.Background(), "--sql 0b7b1d3e-6c53-4c1b-9a55-0d7f1f3f4a10\ndelete from avatar_talks where id = $1;", "abc")
	if err != nil {
		t.Fatalf("Exec returned error: %v", err)
	}
	if strings.TrimSpace(exec.lastQuery) != "delete from avatar_talks where id = $1;" {
		t.Fatalf("forwarded query = %q", exec.lastQuery)
	}
	if len(exec.lastArgs) != 1 || exec.lastArgs[0] != "abc" {
		t.Fatalf("forwarded args = %#v", exec.lastArgs)
	}
}

func TestSQLRunnerRejectsUnmarkedQuery(t *testing.T) {
	exec := &recordingExecutor{}
	runner := NewSQLRunner(exec, zerolog.New(io.Discard))

	var id string
	err := runner.QueryRow(context.Background(), "select id from avatar_talks").Scan(&id)
	if err == nil {
		t.Fatalf("expected error for unmarked query")
	}
	if exec.lastQuery != "" {
		t.Fatalf("unmarked query reached the pool: %q", exec.lastQuery)
	}
}

func TestSQLRunnerPassesNoRows(t *testing.T) {
	runner := NewSQLRunner(&recordingExecutor{}, zerolog.New(io.Discard))

	var id string
	err := runner.QueryRow(context.Background(), "--sql 0b7b1d3e-6c53-4c1b-9a55-0d7f1f3f4a10\nselect 1;").Scan(&id)
	if !IsNoRows(err) {
		t.Fatalf("expected no rows error, got %v", err)
	}
}
