package participant

import "time"

// Participant enrolls in courses.
type Participant struct {
	ID        string
	Name      string
	Email     string
	Phone     string    // optional
	BirthDate time.Time // zero when unknown
}
