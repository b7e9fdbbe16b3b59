package worker

import "github.com/Abraxas-365/workq/pkg/errx"

var workerErrors = errx.NewRegistry("WORKER")

var (
	ErrUnknownHandler = workerErrors.Register("UNKNOWN_HANDLER", errx.TypeNotFound, 404, "No handler registered for class")
	ErrHandlerPanic   = workerErrors.Register("HANDLER_PANIC", errx.TypeHandler, 500, "Handler panicked")
	ErrHandlerFailed  = workerErrors.Register("HANDLER_FAILED", errx.TypeHandler, 500, "Handler returned an error")
	ErrAlreadyRunning = workerErrors.Register("ALREADY_RUNNING", errx.TypeConflict, 409, "Runner is already running")
	ErrInvalidStep    = workerErrors.Register("INVALID_STEP", errx.TypeValidation, 400, "Step count must be positive")
)
