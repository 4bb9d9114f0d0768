package instructor

// Instructor teaches courses. Required fields are enforced by the form
// layer before a record reaches the store.
type Instructor struct {
	ID      string
	Name    string
	Email   string
	Phone   string // optional
	Subject string // optional subject area
}
