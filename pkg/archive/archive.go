package archive

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Abraxas-365/workq/pkg/errx"
	"github.com/Abraxas-365/workq/pkg/queue"
)

var archiveErrors = errx.NewRegistry("ARCHIVE")

var (
	ErrRecordNotFound = archiveErrors.Register("RECORD_NOT_FOUND", errx.TypeNotFound, 404, "Archived job not found")
	ErrEncode         = archiveErrors.Register("ENCODE", errx.TypeInternal, 500, "Failed to encode job document")
	ErrStore          = archiveErrors.Register("STORE", errx.TypeExternal, 502, "Archive store operation failed")
	ErrDisabled       = archiveErrors.Register("DISABLED", errx.TypeValidation, 400, "Archive database is not configured")
)

func NewNotFound(jobid string) *errx.Error {
	return archiveErrors.New(ErrRecordNotFound).WithDetail("jobid", jobid)
}

func NewDisabled() *errx.Error {
	return archiveErrors.New(ErrDisabled)
}

func NewStoreError(cause error) *errx.Error {
	return archiveErrors.NewWithCause(ErrStore, cause)
}

// Record is a finalized job as kept in long-term storage. The live store
// only holds jobs until they are cancelled; the archive keeps them for good.
type Record struct {
	JobID      string          `json:"jobid"`
	System     string          `json:"system"`
	Queue      string          `json:"queue"`
	Class      string          `json:"class"`
	User       string          `json:"user,omitempty"`
	State      queue.State     `json:"state"`
	LastError  string          `json:"last_error,omitempty"`
	Document   json.RawMessage `json:"document"`
	ArchivedAt time.Time       `json:"archived_at"`
}

// Repository persists archive records.
type Repository interface {
	Save(ctx context.Context, r Record) error
	FindByID(ctx context.Context, jobid string) (*Record, error)
	FindByQueue(ctx context.Context, system, queueName string, limit int) ([]*Record, error)
}

// NewRecord snapshots a finalized job.
func NewRecord(job *queue.Job, state queue.State, at time.Time) (Record, error) {
	doc, err := json.Marshal(job)
	if err != nil {
		return Record{}, archiveErrors.NewWithCause(ErrEncode, err).WithDetail("jobid", job.Metadata.JobID)
	}
	return Record{
		JobID:      job.Metadata.JobID,
		System:     job.Metadata.System,
		Queue:      job.Metadata.Queue,
		Class:      job.Class,
		User:       job.Metadata.User,
		State:      state,
		LastError:  job.LastError,
		Document:   doc,
		ArchivedAt: at.UTC(),
	}, nil
}

// Job decodes the stored document.
func (r *Record) Job() (*queue.Job, error) {
	var job queue.Job
	if err := json.Unmarshal(r.Document, &job); err != nil {
		return nil, archiveErrors.NewWithCause(ErrEncode, err).WithDetail("jobid", r.JobID)
	}
	return &job, nil
}

// Archiver adapts a Repository to the worker's archive hook.
type Archiver struct {
	repo  Repository
	clock func() time.Time
}

func NewArchiver(repo Repository) *Archiver {
	return &Archiver{repo: repo, clock: time.Now}
}

// Archive saves job with its final state. Re-archiving the same job
// replaces the earlier record.
func (a *Archiver) Archive(ctx context.Context, job *queue.Job, state queue.State) error {
	rec, err := NewRecord(job, state, a.clock())
	if err != nil {
		return err
	}
	return a.repo.Save(ctx, rec)
}

// Lookup returns the archived document of jobid.
func (a *Archiver) Lookup(ctx context.Context, jobid string) (*queue.Job, error) {
	rec, err := a.repo.FindByID(ctx, jobid)
	if err != nil {
		return nil, err
	}
	return rec.Job()
}

// History lists the most recently archived jobs of one queue, newest first.
func (a *Archiver) History(ctx context.Context, system, queueName string, limit int) ([]*Record, error) {
	return a.repo.FindByQueue(ctx, system, queueName, limit)
}
