package errx

// Type represents the category of error
type Type string

const (
	// TypeInternal represents internal server errors
	TypeInternal Type = "INTERNAL"

	// TypeValidation represents validation errors
	TypeValidation Type = "VALIDATION"

	// TypeNotFound represents resource not found errors
	TypeNotFound Type = "NOT_FOUND"

	// TypeConflict represents a concurrent modification of watched state
	TypeConflict Type = "CONFLICT"

	// TypePrecondition represents a call made without its required state
	// (missing job fields, no active claim for the worker)
	TypePrecondition Type = "PRECONDITION_FAILED"

	// TypeTimeout represents a bounded wait that produced nothing
	TypeTimeout Type = "TIMEOUT"

	// TypeCancelled represents work that was withdrawn before it ran
	TypeCancelled Type = "CANCELLED"

	// TypeHandler represents a failure raised by job handler code
	TypeHandler Type = "HANDLER_FAILURE"

	// TypeExternal represents errors from external services (the store, databases)
	TypeExternal Type = "EXTERNAL"
)

// String returns the string representation of the error type
func (t Type) String() string {
	return string(t)
}
