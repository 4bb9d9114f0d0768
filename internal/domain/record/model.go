package record

import (
	"errors"
	"strings"
	"time"

	"courseadmin/internal/domain/reference"
)

// Domain errors
var (
	ErrInvalidAppID    = errors.New("app ID must be 24 hex characters")
	ErrInvalidRecordID = errors.New("record ID must be 24 hex characters")
	ErrNilFields       = errors.New("record fields cannot be nil")
	ErrEmptyFieldName  = errors.New("record field name cannot be empty")
)

// Record is one stored row of the hosted record API: an identifier and a
// flat field mapping, scoped by the app (collection) it belongs to.
type Record struct {
	AppID     string
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks if the Record can be stored.
// PRE: Record struct is populated
// POST: Returns nil if valid, error otherwise
func (r *Record) Validate() error {
	if !reference.IsID(r.AppID) {
		return ErrInvalidAppID
	}
	if !reference.IsID(r.ID) {
		return ErrInvalidRecordID
	}
	if r.Fields == nil {
		return ErrNilFields
	}
	for name := range r.Fields {
		if strings.TrimSpace(name) == "" {
			return ErrEmptyFieldName
		}
	}
	return nil
}

// Merge applies a partial field set. Fields absent from partial are kept;
// a nil value removes the field.
// PRE: r.Fields is non-nil
// POST: r.Fields reflects partial, UpdatedAt is set to now
func (r *Record) Merge(partial map[string]any, now time.Time) {
	if r.Fields == nil {
		r.Fields = make(map[string]any, len(partial))
	}
	for name, v := range partial {
		if v == nil {
			delete(r.Fields, name)
			continue
		}
		r.Fields[name] = v
	}
	r.UpdatedAt = now
}
