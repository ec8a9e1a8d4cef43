package postgres_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/dispatchd/internal/domain"
)

// rowStub implements pgx.Row
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

// rowsStub implements pgx.Rows over a fixed list of scan functions.
type rowsStub struct {
	scans  []func(dest ...any) error
	pos    int
	rowErr error
}

func (r *rowsStub) Close()                                       {}
func (r *rowsStub) Err() error                                   { return r.rowErr }
func (r *rowsStub) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *rowsStub) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rowsStub) Next() bool                                   { return r.pos < len(r.scans) }
func (r *rowsStub) Scan(dest ...any) error {
	fn := r.scans[r.pos]
	r.pos++
	return fn(dest...)
}
func (r *rowsStub) Values() ([]any, error) { return nil, nil }
func (r *rowsStub) RawValues() [][]byte    { return nil }
func (r *rowsStub) Conn() *pgx.Conn        { return nil }

// poolStub implements postgres.PgxPool for tests. Unconfigured methods fail
// loudly so a test exercising the wrong call path does not pass by accident.
type poolStub struct {
	exec     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryRow func(ctx context.Context, sql string, args ...any) pgx.Row
	query    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (p *poolStub) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if p.exec == nil {
		return pgconn.CommandTag{}, errors.New("exec not configured")
	}
	return p.exec(ctx, sql, args...)
}

func (p *poolStub) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if p.queryRow == nil {
		return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
	}
	return p.queryRow(ctx, sql, args...)
}

func (p *poolStub) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if p.query == nil {
		return nil, errors.New("query not configured")
	}
	return p.query(ctx, sql, args...)
}

// scanAs writes j into the standard job column targets.
func scanAs(j domain.Job) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = j.RequestID
		*(dest[1].(*domain.JobStatus)) = j.Status
		*(dest[2].(*json.RawMessage)) = j.Payload
		*(dest[3].(*json.RawMessage)) = j.Result
		*(dest[4].(**string)) = j.Error
		*(dest[5].(**string)) = j.Vendor
		*(dest[6].(*time.Time)) = j.CreatedAt
		*(dest[7].(*time.Time)) = j.UpdatedAt
		return nil
	}
}
