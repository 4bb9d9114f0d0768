package record

import (
	"context"
	"errors"

	domain "courseadmin/internal/domain/record"
)

// ErrNotFound is returned when no record matches the app and id.
var ErrNotFound = errors.New("record not found")

// Store persists Record state.
type Store interface {
	List(ctx context.Context, appID string) ([]domain.Record, error)
	GetByID(ctx context.Context, appID, id string) (domain.Record, error)
	Save(ctx context.Context, value domain.Record) error
	Delete(ctx context.Context, appID, id string) error
}
