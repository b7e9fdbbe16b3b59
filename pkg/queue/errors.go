package queue

import "github.com/Abraxas-365/workq/pkg/errx"

var queueErrors = errx.NewRegistry("QUEUE")

var (
	ErrQueueNotFound  = queueErrors.Register("QUEUE_NOT_FOUND", errx.TypeNotFound, 404, "Queue is not registered")
	ErrNoQueues       = queueErrors.Register("NO_QUEUES", errx.TypeNotFound, 404, "No queues registered")
	ErrJobNotFound    = queueErrors.Register("JOB_NOT_FOUND", errx.TypeNotFound, 404, "Job not found")
	ErrWorkerNotFound = queueErrors.Register("WORKER_NOT_FOUND", errx.TypeNotFound, 404, "Worker not found")
	ErrMissingClass   = queueErrors.Register("MISSING_CLASS", errx.TypePrecondition, 412, "Job requires a class")
	ErrMissingVars    = queueErrors.Register("MISSING_VARS", errx.TypePrecondition, 412, "Job requires vars")
	ErrNoActiveJob    = queueErrors.Register("NO_ACTIVE_JOB", errx.TypePrecondition, 412, "Worker has no active job")
	ErrTimeout        = queueErrors.Register("TIMEOUT", errx.TypeTimeout, 408, "No job arrived within the wait window")
	ErrJobCancelled   = queueErrors.Register("JOB_CANCELLED", errx.TypeCancelled, 410, "Job was cancelled")
	ErrInvalidState   = queueErrors.Register("INVALID_STATE", errx.TypeValidation, 400, "Unknown job state")
	ErrStore          = queueErrors.Register("STORE", errx.TypeExternal, 502, "Queue store operation failed")
	ErrMarshal        = queueErrors.Register("MARSHAL", errx.TypeInternal, 500, "Failed to marshal job document")
	ErrUnmarshal      = queueErrors.Register("UNMARSHAL", errx.TypeInternal, 500, "Failed to unmarshal job document")
	ErrBadIdentity    = queueErrors.Register("BAD_IDENTITY", errx.TypeValidation, 400, "Malformed worker identity")
)

func storeError(op string, err error) *errx.Error {
	return queueErrors.NewWithCause(ErrStore, err).WithDetail("op", op)
}
