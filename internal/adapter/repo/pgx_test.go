package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

// talkRows serves canned talk tuples through the pgx.Rows interface.
type talkRows struct {
	tuples [][]any
	idx    int
	closed bool
}

func (r *talkRows) Close()                                       { r.closed = true }
func (r *talkRows) Err() error                                   { return nil }
func (r *talkRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *talkRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *talkRows) RawValues() [][]byte                          { return nil }
func (r *talkRows) Conn() *pgx.Conn                              { return nil }

func (r *talkRows) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (r *talkRows) Next() bool {
	if r.idx >= len(r.tuples) {
		return false
	}
	r.idx++
	return true
}

func (r *talkRows) Scan(dest ...any) error {
	return assignTuple(r.tuples[r.idx-1], dest)
}

func assignTuple(tuple []any, dest []any) error {
	if len(tuple) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(tuple), len(dest))
	}
	for i, v := range tuple {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported target %T", dest[i])
		}
	}
	return nil
}

type execCall struct {
	query string
	args  []any
}

type fakeExecutor struct {
	execs    []execCall
	affected int64
	row      pgx.Row
	rows     pgx.Rows
	lastArgs []any
}

func (f *fakeExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{query: query, args: args})
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", f.affected)), nil
}

func (f *fakeExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	f.lastArgs = args
	if f.row == nil {
		return simpleRow{}
	}
	return f.row
}

func (f *fakeExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	f.lastArgs = args
	return f.rows, nil
}
