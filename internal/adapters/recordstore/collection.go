package recordstore

import (
	"context"
	"fmt"

	"courseadmin/internal/domain/course"
	"courseadmin/internal/domain/enrollment"
	"courseadmin/internal/domain/instructor"
	"courseadmin/internal/domain/participant"
	"courseadmin/internal/domain/reference"
	"courseadmin/internal/domain/room"
)

// Collection is the typed view of one entity kind in the store.
type Collection[E any] struct {
	client *Client
	kind   reference.Kind
	decode func(RawRecord) E
}

// NewCollection binds a decoder to one kind of the client.
// PRE: client is non-nil; kind is valid; decode is non-nil
// POST: Returns a collection issuing calls for kind
func NewCollection[E any](client *Client, kind reference.Kind, decode func(RawRecord) E) *Collection[E] {
	return &Collection[E]{client: client, kind: kind, decode: decode}
}

// Courses returns the course collection.
func Courses(c *Client) *Collection[course.Course] {
	return NewCollection(c, reference.KindCourse, DecodeCourse)
}

// Instructors returns the instructor collection.
func Instructors(c *Client) *Collection[instructor.Instructor] {
	return NewCollection(c, reference.KindInstructor, DecodeInstructor)
}

// Participants returns the participant collection.
func Participants(c *Client) *Collection[participant.Participant] {
	return NewCollection(c, reference.KindParticipant, DecodeParticipant)
}

// Rooms returns the room collection.
func Rooms(c *Client) *Collection[room.Room] {
	return NewCollection(c, reference.KindRoom, DecodeRoom)
}

// Enrollments returns the enrollment collection.
func Enrollments(c *Client) *Collection[enrollment.Enrollment] {
	return NewCollection(c, reference.KindEnrollment, DecodeEnrollment)
}

// Kind returns the entity kind of the collection.
func (c *Collection[E]) Kind() reference.Kind {
	return c.kind
}

// List fetches the full collection.
// PRE: none
// POST: Returns every stored record decoded, or the remote error
func (c *Collection[E]) List(ctx context.Context) ([]E, error) {
	raws, err := c.client.listRecords(ctx, c.kind)
	if err != nil {
		return nil, err
	}
	out := make([]E, 0, len(raws))
	for _, r := range raws {
		out = append(out, c.decode(r))
	}
	return out, nil
}

// Create stores a new record.
// PRE: fields uses wire names; references are already URLs
// POST: Returns the created record with its store-assigned id
func (c *Collection[E]) Create(ctx context.Context, fields Fields) (E, error) {
	var zero E
	raw, err := c.client.createRecord(ctx, c.kind, fields)
	if err != nil {
		return zero, err
	}
	return c.decode(raw), nil
}

// Update writes a partial field set. Omitted fields stay untouched.
// PRE: id names an existing record
// POST: Returns the updated record, or ErrNotFound wrapped in a RemoteError
func (c *Collection[E]) Update(ctx context.Context, id string, fields Fields) (E, error) {
	var zero E
	if id == "" {
		return zero, fmt.Errorf("%s update: %w", c.kind, ErrNotFound)
	}
	raw, err := c.client.updateRecord(ctx, c.kind, id, fields)
	if err != nil {
		return zero, err
	}
	return c.decode(raw), nil
}

// Delete removes a record.
// PRE: id names an existing record
// POST: The record is gone from the store, or the remote error is returned
func (c *Collection[E]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%s delete: %w", c.kind, ErrNotFound)
	}
	return c.client.deleteRecord(ctx, c.kind, id)
}

// ReferenceURL builds a reference URL to a record of any kind.
func (c *Collection[E]) ReferenceURL(kind reference.Kind, id string) string {
	return c.client.ReferenceURL(kind, id)
}
