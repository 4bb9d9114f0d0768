package room

import "strings"

// Room hosts courses.
type Room struct {
	ID       string
	Name     string
	Building string // optional
	Capacity *int   // nil when not recorded
}

// CapacityOrZero returns the capacity, treating an unknown capacity as 0.
func (r Room) CapacityOrZero() int {
	if r.Capacity == nil {
		return 0
	}
	return *r.Capacity
}

// Label returns the name with the building in parentheses when known.
func (r Room) Label() string {
	if strings.TrimSpace(r.Building) == "" {
		return r.Name
	}
	return r.Name + " (" + r.Building + ")"
}
