package recordstore

import (
	"errors"
	"fmt"
	"net/http"

	"courseadmin/internal/domain/reference"
)

// ErrNotFound is wrapped by RemoteError when the store answers 404.
var ErrNotFound = errors.New("record not found")

// ErrNoRecordID is returned when a create response carries no identifier.
var ErrNoRecordID = errors.New("record store response carried no record id")

// RemoteError is a non-success answer from the record store.
type RemoteError struct {
	Kind       reference.Kind
	Op         string
	StatusCode int
	Message    string
}

// Error implements error.
func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: record store returned %d", e.Kind, e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: record store returned %d: %s", e.Kind, e.Op, e.StatusCode, e.Message)
}

// Unwrap exposes ErrNotFound for 404 answers.
func (e *RemoteError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}
