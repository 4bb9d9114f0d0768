package course

import (
	"strings"
	"time"

	"courseadmin/internal/domain/reference"
)

// Status is the lifecycle state of a course.
type Status string

// Status constants.
const (
	StatusPlanned   Status = "planned"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Statuses is the fixed display order of course states.
var Statuses = []Status{StatusPlanned, StatusActive, StatusCompleted, StatusCancelled}

// wire values as stored by the hosted record schema
var statusWire = map[Status]string{
	StatusPlanned:   "geplant",
	StatusActive:    "aktiv",
	StatusCompleted: "abgeschlossen",
	StatusCancelled: "abgesagt",
}

var statusLabels = map[Status]string{
	StatusPlanned:   "Geplant",
	StatusActive:    "Aktiv",
	StatusCompleted: "Abgeschlossen",
	StatusCancelled: "Abgesagt",
}

// LookupStatus accepts either the domain name or the stored value and
// reports whether s named a known state.
func LookupStatus(s string) (Status, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for st, wire := range statusWire {
		if s == string(st) || s == wire {
			return st, true
		}
	}
	return "", false
}

// ParseStatus is LookupStatus with unknown or empty input falling back to
// StatusPlanned.
func ParseStatus(s string) Status {
	if st, ok := LookupStatus(s); ok {
		return st
	}
	return StatusPlanned
}

// WireValue returns the value written to the record store.
func (s Status) WireValue() string {
	if w, ok := statusWire[s]; ok {
		return w
	}
	return statusWire[StatusPlanned]
}

// Label returns the display label of the state.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return statusLabels[StatusPlanned]
}

// Course is an offering with an optional instructor and room.
type Course struct {
	ID          string
	Title       string
	Description string // optional, markdown
	StartDate   time.Time
	EndDate     time.Time // zero when open-ended

	MaxParticipants *int     // nil when not set
	Price           *float64 // nil when not set
	Status          Status

	Instructor *reference.Ref // optional
	Room       *reference.Ref // optional
}

// PriceOrZero returns the price, treating an absent price as 0.
func (c Course) PriceOrZero() float64 {
	if c.Price == nil {
		return 0
	}
	return *c.Price
}
