package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest indicates an invalid, current-month, or pre-inception target period.
	ErrBadRequest = errors.New("bad request")
	// ErrMissingInput indicates a required identifier was not supplied.
	ErrMissingInput = errors.New("missing input")
	// ErrDatabase indicates a collaborator read or write failed outright.
	ErrDatabase = errors.New("database error")
	// ErrPartialSuccess indicates some but not all metric fields persisted.
	ErrPartialSuccess = errors.New("partial success")
	// ErrFailedRequest indicates an unexpected failure caught at the orchestrator boundary.
	ErrFailedRequest = errors.New("request failed")
)
