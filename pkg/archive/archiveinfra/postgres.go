package archiveinfra

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Abraxas-365/workq/pkg/archive"
	"github.com/Abraxas-365/workq/pkg/errx"
	"github.com/Abraxas-365/workq/pkg/queue"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Schema creates the archive table. It is safe to run on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS job_archive (
	jobid       TEXT PRIMARY KEY,
	system      TEXT NOT NULL,
	queue       TEXT NOT NULL,
	class       TEXT NOT NULL,
	username    TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL,
	last_error  TEXT NOT NULL DEFAULT '',
	document    JSONB NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS job_archive_queue_idx ON job_archive (system, queue, archived_at DESC);`

// PostgresRepository is the PostgreSQL implementation of archive.Repository.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema applies Schema.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return storeError(err, "failed to create archive schema")
	}
	return nil
}

// Save inserts a record, replacing any earlier record for the same job.
func (r *PostgresRepository) Save(ctx context.Context, rec archive.Record) error {
	query := `
		INSERT INTO job_archive (
			jobid, system, queue, class, username, state, last_error, document, archived_at
		) VALUES (
			:jobid, :system, :queue, :class, :username, :state, :last_error, :document, :archived_at
		)
		ON CONFLICT (jobid) DO UPDATE SET
			state = EXCLUDED.state,
			last_error = EXCLUDED.last_error,
			document = EXCLUDED.document,
			archived_at = EXCLUDED.archived_at`

	if _, err := r.db.NamedExecContext(ctx, query, toPersistence(rec)); err != nil {
		return storeError(err, "failed to archive job").WithDetail("jobid", rec.JobID)
	}
	return nil
}

// FindByID returns the archived record of one job.
func (r *PostgresRepository) FindByID(ctx context.Context, jobid string) (*archive.Record, error) {
	var row recordRow
	query := `SELECT * FROM job_archive WHERE jobid = $1`
	err := r.db.GetContext(ctx, &row, query, jobid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, archive.NewNotFound(jobid)
	}
	if err != nil {
		return nil, storeError(err, "failed to find archived job").WithDetail("jobid", jobid)
	}
	rec := toDomain(row)
	return &rec, nil
}

// FindByQueue returns the most recently archived jobs of one queue.
func (r *PostgresRepository) FindByQueue(ctx context.Context, system, queueName string, limit int) ([]*archive.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []recordRow
	query := `SELECT * FROM job_archive WHERE system = $1 AND queue = $2 ORDER BY archived_at DESC LIMIT $3`
	if err := r.db.SelectContext(ctx, &rows, query, system, queueName, limit); err != nil {
		return nil, storeError(err, "failed to list archived jobs").
			WithDetail("system", system).
			WithDetail("queue", queueName)
	}
	out := make([]*archive.Record, len(rows))
	for i, row := range rows {
		rec := toDomain(row)
		out[i] = &rec
	}
	return out, nil
}

type recordRow struct {
	JobID      string    `db:"jobid"`
	System     string    `db:"system"`
	Queue      string    `db:"queue"`
	Class      string    `db:"class"`
	Username   string    `db:"username"`
	State      string    `db:"state"`
	LastError  string    `db:"last_error"`
	Document   []byte    `db:"document"`
	ArchivedAt time.Time `db:"archived_at"`
}

func toPersistence(r archive.Record) recordRow {
	return recordRow{
		JobID:      r.JobID,
		System:     r.System,
		Queue:      r.Queue,
		Class:      r.Class,
		Username:   r.User,
		State:      string(r.State),
		LastError:  r.LastError,
		Document:   r.Document,
		ArchivedAt: r.ArchivedAt,
	}
}

func toDomain(row recordRow) archive.Record {
	return archive.Record{
		JobID:      row.JobID,
		System:     row.System,
		Queue:      row.Queue,
		Class:      row.Class,
		User:       row.Username,
		State:      queue.State(row.State),
		LastError:  row.LastError,
		Document:   row.Document,
		ArchivedAt: row.ArchivedAt,
	}
}

// storeError keeps the Postgres error code when there is one.
func storeError(err error, msg string) *errx.Error {
	e := archive.NewStoreError(err).WithDetail("operation", msg)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		e.WithDetail("pg_code", string(pqErr.Code))
	}
	return e
}
