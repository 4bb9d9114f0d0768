package enrollment

import (
	"time"

	"courseadmin/internal/domain/reference"
)

// Enrollment links a participant to a course.
type Enrollment struct {
	ID           string
	Participant  *reference.Ref
	Course       *reference.Ref
	RegisteredOn time.Time // zero when missing
	Paid         bool
}

// SortKey returns the registration date used for recency ordering.
// A missing date sorts as the Unix epoch.
func (e Enrollment) SortKey() time.Time {
	if e.RegisteredOn.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return e.RegisteredOn
}
