package pipeline

import (
	"fmt"

	"github.com/dgallion1/freightdoc/internal/store"
)

// ContentError reports a document whose text cannot be used. It is shown
// to the caller verbatim and never retried.
type ContentError struct {
	Reason string
}

func (e *ContentError) Error() string { return e.Reason }

// NotFoundError reports an unknown document id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("document %s not found", e.ID) }

func (e *NotFoundError) Unwrap() error { return store.ErrNotFound }

// ValidationError reports a malformed request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Reason) }
