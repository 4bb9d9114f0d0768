package projections

import (
	"strings"

	"courseadmin/internal/adapters/recordstore"
	"courseadmin/internal/application/dataset"
	"courseadmin/internal/domain/course"
	"courseadmin/internal/domain/enrollment"
	"courseadmin/internal/domain/instructor"
	"courseadmin/internal/domain/participant"
	"courseadmin/internal/domain/reference"
	"courseadmin/internal/domain/room"
)

// CourseRow is a course with its references resolved for display.
type CourseRow struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	DescriptionHTML string        `json:"description_html,omitempty"` // filled by the web layer
	StartDate       string        `json:"start_date"`
	EndDate         string        `json:"end_date,omitempty"`
	Period          string        `json:"period"`
	MaxParticipants *int          `json:"max_participants,omitempty"`
	Price           *float64      `json:"price,omitempty"`
	Status          course.Status `json:"status"`
	StatusLabel     string        `json:"status_label"`
	InstructorID    string        `json:"instructor_id,omitempty"`
	Instructor      string        `json:"instructor"`
	RoomID          string        `json:"room_id,omitempty"`
	Room            string        `json:"room"`
}

// QueryCourseRows resolves instructor and room labels for courses.
// PRE: related holds instructors and rooms
// POST: One row per course; unresolved references show the placeholder
func QueryCourseRows(courses []course.Course, related dataset.Dataset) []CourseRow {
	out := make([]CourseRow, 0, len(courses))
	for _, c := range courses {
		out = append(out, CourseRow{
			ID:              c.ID,
			Title:           c.Title,
			Description:     c.Description,
			StartDate:       recordstore.FormatDate(c.StartDate),
			EndDate:         recordstore.FormatDate(c.EndDate),
			Period:          period(recordstore.FormatDate(c.StartDate), recordstore.FormatDate(c.EndDate)),
			MaxParticipants: c.MaxParticipants,
			Price:           c.Price,
			Status:          c.Status,
			StatusLabel:     c.Status.Label(),
			InstructorID:    reference.RefID(c.Instructor),
			Instructor:      related.InstructorName(c.Instructor),
			RoomID:          reference.RefID(c.Room),
			Room:            related.RoomName(c.Room),
		})
	}
	return out
}

func period(start, end string) string {
	switch {
	case start == "" && end == "":
		return reference.Placeholder
	case end == "":
		return start
	case start == "":
		return end
	}
	return start + " – " + end
}

// InstructorRow is an instructor for display.
type InstructorRow struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// QueryInstructorRows maps instructors to rows.
func QueryInstructorRows(instructors []instructor.Instructor) []InstructorRow {
	out := make([]InstructorRow, 0, len(instructors))
	for _, i := range instructors {
		out = append(out, InstructorRow{ID: i.ID, Name: i.Name, Email: i.Email, Phone: i.Phone, Subject: i.Subject})
	}
	return out
}

// ParticipantRow is a participant for display.
type ParticipantRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	BirthDate string `json:"birth_date,omitempty"`
}

// QueryParticipantRows maps participants to rows.
func QueryParticipantRows(participants []participant.Participant) []ParticipantRow {
	out := make([]ParticipantRow, 0, len(participants))
	for _, p := range participants {
		out = append(out, ParticipantRow{
			ID:        p.ID,
			Name:      p.Name,
			Email:     p.Email,
			Phone:     p.Phone,
			BirthDate: recordstore.FormatDate(p.BirthDate),
		})
	}
	return out
}

// RoomRow is a room with its occupancy relative to every loaded room.
type RoomRow struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Building string   `json:"building,omitempty"`
	Capacity *int     `json:"capacity,omitempty"`
	Percent  int      `json:"percent"`
	Band     LoadBand `json:"band"`
}

// QueryRoomRows maps rooms to rows. Occupancy is computed over all, so a
// filtered view keeps the same bars.
// PRE: shown is a subset of all
// POST: One row per shown room
func QueryRoomRows(shown, all []room.Room) []RoomRow {
	occ := make(map[string]Occupancy, len(all))
	for _, o := range RoomOccupancy(all) {
		occ[strings.ToLower(o.RoomID)] = o
	}
	out := make([]RoomRow, 0, len(shown))
	for _, r := range shown {
		o := occ[strings.ToLower(r.ID)]
		out = append(out, RoomRow{
			ID:       r.ID,
			Name:     r.Name,
			Building: r.Building,
			Capacity: r.Capacity,
			Percent:  o.Percent,
			Band:     o.Band,
		})
	}
	return out
}

// EnrollmentRow is an enrollment with participant and course resolved.
type EnrollmentRow struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participant_id,omitempty"`
	Participant   string `json:"participant"`
	CourseID      string `json:"course_id,omitempty"`
	Course        string `json:"course"`
	RegisteredOn  string `json:"registered_on,omitempty"`
	Paid          bool   `json:"paid"`
}

// EnrollmentSummary is the header line of the enrollment list.
type EnrollmentSummary struct {
	Total int `json:"total"`
	Paid  int `json:"paid"`
	Open  int `json:"open"`
}

// QueryEnrollmentRows resolves participant and course labels.
// PRE: related holds participants and courses
// POST: One row per enrollment; unresolved references show the placeholder
func QueryEnrollmentRows(enrollments []enrollment.Enrollment, related dataset.Dataset) []EnrollmentRow {
	out := make([]EnrollmentRow, 0, len(enrollments))
	for _, e := range enrollments {
		out = append(out, EnrollmentRow{
			ID:            e.ID,
			ParticipantID: reference.RefID(e.Participant),
			Participant:   related.ParticipantName(e.Participant),
			CourseID:      reference.RefID(e.Course),
			Course:        related.CourseTitle(e.Course),
			RegisteredOn:  recordstore.FormatDate(e.RegisteredOn),
			Paid:          e.Paid,
		})
	}
	return out
}

// SummarizeEnrollments counts all, paid and open enrollments.
func SummarizeEnrollments(enrollments []enrollment.Enrollment) EnrollmentSummary {
	return EnrollmentSummary{
		Total: len(enrollments),
		Paid:  PaidCount(enrollments),
		Open:  UnpaidCount(enrollments),
	}
}
