// Package postgres provides PostgreSQL database adapters.
//
// It implements the job repository port for data persistence. Writes are
// validated at this boundary so malformed rows never reach the table, and
// all calls can be guarded by the store's circuit breaker.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/dispatchd/internal/adapter/observability"
	"github.com/fairyhunter13/dispatchd/internal/domain"
)

// PgxPool is a minimal subset of pgxpool used by the repos for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// JobRepo persists and loads dispatch jobs from PostgreSQL using a minimal
// pgx pool. Breaker, when set, guards every call against a failing database.
type JobRepo struct {
	Pool    PgxPool
	Breaker *observability.CircuitBreaker
}

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

const jobColumns = `request_id, status, payload, result, error, vendor, created_at, updated_at`

// Create inserts a new pending job keyed by its request id.
func (r *JobRepo) Create(ctx domain.Context, j domain.Job) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Create")
	defer span.End()
	if err := domain.ValidateNewJob(j); err != nil {
		return fmt.Errorf("op=jobs.create: %w", err)
	}
	now := time.Now().UTC()
	createdAt := j.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	q := `INSERT INTO jobs (request_id, status, payload, vendor, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6)`
	err := r.guard(ctx, func(ctx context.Context) error {
		_, err := r.Pool.Exec(ctx, q, j.RequestID, domain.JobPending, j.Payload, j.Vendor, createdAt, now)
		return mapPgError(err)
	})
	if err != nil {
		return fmt.Errorf("op=jobs.create: %w", err)
	}
	return nil
}

// FindByID loads a job by request id.
func (r *JobRepo) FindByID(ctx domain.Context, requestID string) (domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.FindByID")
	defer span.End()
	if err := domain.ValidateRequestID(requestID); err != nil {
		return domain.Job{}, fmt.Errorf("op=jobs.find_by_id: %w", err)
	}
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE request_id=$1`
	var j domain.Job
	err := r.guard(ctx, func(ctx context.Context) error {
		if err := scanJob(r.Pool.QueryRow(ctx, q, requestID), &j); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Job{}, fmt.Errorf("op=jobs.find_by_id: %w", err)
	}
	return j, nil
}

// UpdateStatus writes a job's status, sets the vendor when non-nil, and
// advances updated_at.
func (r *JobRepo) UpdateStatus(ctx domain.Context, requestID string, status domain.JobStatus, vendor *string) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.UpdateStatus")
	defer span.End()
	if err := domain.ValidateRequestID(requestID); err != nil {
		return fmt.Errorf("op=jobs.update_status: %w", err)
	}
	if err := domain.ValidateStatus(status); err != nil {
		return fmt.Errorf("op=jobs.update_status: %w", err)
	}
	q := `UPDATE jobs SET status=$2, vendor=COALESCE($3, vendor), updated_at=$4 WHERE request_id=$1`
	err := r.guard(ctx, func(ctx context.Context) error {
		tag, err := r.Pool.Exec(ctx, q, requestID, status, vendor, time.Now().UTC())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("op=jobs.update_status: %w", err)
	}
	return nil
}

// UpdateResult finalizes a job with a terminal status and its result or
// error message. Terminal rows carry exactly one of the two.
func (r *JobRepo) UpdateResult(ctx domain.Context, requestID string, status domain.JobStatus, result json.RawMessage, errMsg *string) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.UpdateResult")
	defer span.End()
	if err := domain.ValidateRequestID(requestID); err != nil {
		return fmt.Errorf("op=jobs.update_result: %w", err)
	}
	if err := domain.ValidateTerminalWrite(status, result, errMsg); err != nil {
		return fmt.Errorf("op=jobs.update_result: %w", err)
	}
	var resultArg any
	if len(result) > 0 {
		resultArg = result
	}
	q := `UPDATE jobs SET status=$2, result=$3, error=$4, updated_at=$5 WHERE request_id=$1`
	err := r.guard(ctx, func(ctx context.Context) error {
		tag, err := r.Pool.Exec(ctx, q, requestID, status, resultArg, errMsg, time.Now().UTC())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("op=jobs.update_result: %w", err)
	}
	return nil
}

// FindByStatus lists jobs in a status, most recently updated first.
func (r *JobRepo) FindByStatus(ctx domain.Context, status domain.JobStatus, limit int) ([]domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.FindByStatus")
	defer span.End()
	if err := domain.ValidateStatus(status); err != nil {
		return nil, fmt.Errorf("op=jobs.find_by_status: %w", err)
	}
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE status=$1 ORDER BY updated_at DESC LIMIT $2`
	var jobs []domain.Job
	err := r.guard(ctx, func(ctx context.Context) error {
		rows, err := r.Pool.Query(ctx, q, status, limit)
		if err != nil {
			return err
		}
		jobs, err = collectJobs(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("op=jobs.find_by_status: %w", err)
	}
	return jobs, nil
}

// FindByVendor lists jobs dispatched to a vendor, newest first.
func (r *JobRepo) FindByVendor(ctx domain.Context, vendor string, limit int) ([]domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.FindByVendor")
	defer span.End()
	if vendor == "" {
		return nil, fmt.Errorf("op=jobs.find_by_vendor: %w: vendor required", domain.ErrValidation)
	}
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE vendor=$1 ORDER BY created_at DESC LIMIT $2`
	var jobs []domain.Job
	err := r.guard(ctx, func(ctx context.Context) error {
		rows, err := r.Pool.Query(ctx, q, vendor, limit)
		if err != nil {
			return err
		}
		jobs, err = collectJobs(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("op=jobs.find_by_vendor: %w", err)
	}
	return jobs, nil
}

// FindRecent lists jobs created within the last N hours, newest first. The
// scan is capped at 1000 rows.
func (r *JobRepo) FindRecent(ctx domain.Context, hours int) ([]domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.FindRecent")
	defer span.End()
	if hours <= 0 {
		hours = 24
	}
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE created_at >= $1 ORDER BY created_at DESC LIMIT 1000`
	var jobs []domain.Job
	err := r.guard(ctx, func(ctx context.Context) error {
		rows, err := r.Pool.Query(ctx, q, cutoff)
		if err != nil {
			return err
		}
		jobs, err = collectJobs(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("op=jobs.find_recent: %w", err)
	}
	return jobs, nil
}

// Stats aggregates job counts in total, per status, and per vendor.
func (r *JobRepo) Stats(ctx domain.Context) (domain.StoreStats, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Stats")
	defer span.End()
	st := domain.StoreStats{
		ByStatus: make(map[domain.JobStatus]int64),
		ByVendor: make(map[string]int64),
	}
	err := r.guard(ctx, func(ctx context.Context) error {
		if err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&st.Total); err != nil {
			return err
		}
		rows, err := r.Pool.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
		if err != nil {
			return err
		}
		if err := collectCounts(rows, func(key string, n int64) {
			st.ByStatus[domain.JobStatus(key)] = n
		}); err != nil {
			return err
		}
		rows, err = r.Pool.Query(ctx, `SELECT vendor, COUNT(*) FROM jobs WHERE vendor IS NOT NULL GROUP BY vendor`)
		if err != nil {
			return err
		}
		return collectCounts(rows, func(key string, n int64) {
			st.ByVendor[key] = n
		})
	})
	if err != nil {
		return domain.StoreStats{}, fmt.Errorf("op=jobs.stats: %w", err)
	}
	return st, nil
}

// HealthCheck reports whether the database answers a trivial query. It
// bypasses the breaker so readiness sees the dependency itself.
func (r *JobRepo) HealthCheck(ctx domain.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var one int
	return r.Pool.QueryRow(ctx, `SELECT 1`).Scan(&one) == nil
}

// guard routes a call through the store breaker when one is configured.
func (r *JobRepo) guard(ctx context.Context, op func(context.Context) error) error {
	if r.Breaker == nil {
		return op(ctx)
	}
	return r.Breaker.Execute(ctx, op)
}

func scanJob(row pgx.Row, j *domain.Job) error {
	return row.Scan(&j.RequestID, &j.Status, &j.Payload, &j.Result, &j.Error, &j.Vendor, &j.CreatedAt, &j.UpdatedAt)
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	defer rows.Close()
	jobs := make([]domain.Job, 0, 8)
	for rows.Next() {
		var j domain.Job
		if err := scanJob(rows, &j); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func collectCounts(rows pgx.Rows, add func(key string, n int64)) error {
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		add(key, n)
	}
	return rows.Err()
}

// mapPgError converts driver errors to domain sentinels where they carry
// domain meaning.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrDuplicateID
	}
	return err
}
