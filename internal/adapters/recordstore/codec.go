package recordstore

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"courseadmin/internal/domain/course"
	"courseadmin/internal/domain/enrollment"
	"courseadmin/internal/domain/instructor"
	"courseadmin/internal/domain/participant"
	"courseadmin/internal/domain/reference"
	"courseadmin/internal/domain/room"
)

// Wire field names of the hosted schema.
const (
	FieldCourseTitle       = "titel"
	FieldCourseDescription = "beschreibung"
	FieldCourseStart       = "startdatum"
	FieldCourseEnd         = "enddatum"
	FieldCourseMax         = "max_teilnehmer"
	FieldCoursePrice       = "preis"
	FieldCourseStatus      = "status"
	FieldCourseInstructor  = "dozent"
	FieldCourseRoom        = "raum"

	FieldInstructorName    = "name"
	FieldInstructorEmail   = "email"
	FieldInstructorPhone   = "telefon"
	FieldInstructorSubject = "fachgebiet"

	FieldParticipantName  = "name"
	FieldParticipantEmail = "email"
	FieldParticipantPhone = "telefon"
	FieldParticipantBirth = "geburtsdatum"

	FieldRoomName     = "raumname"
	FieldRoomBuilding = "gebaeude"
	FieldRoomCapacity = "kapazitaet"

	FieldEnrollmentParticipant = "teilnehmer"
	FieldEnrollmentCourse      = "kurs"
	FieldEnrollmentDate        = "anmeldedatum"
	FieldEnrollmentPaid        = "bezahlt"
)

// DateLayout is the layout dates are written in.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParseDate reads a stored date. Unparseable input yields the zero time.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FormatDate renders t for the store, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// DecodeCourse maps a stored record onto a course.
func DecodeCourse(r RawRecord) course.Course {
	return course.Course{
		ID:              r.ID,
		Title:           fieldString(r, FieldCourseTitle),
		Description:     fieldString(r, FieldCourseDescription),
		StartDate:       ParseDate(fieldString(r, FieldCourseStart)),
		EndDate:         ParseDate(fieldString(r, FieldCourseEnd)),
		MaxParticipants: fieldInt(r, FieldCourseMax),
		Price:           fieldFloat(r, FieldCoursePrice),
		Status:          course.ParseStatus(fieldString(r, FieldCourseStatus)),
		Instructor:      reference.FromURL(reference.KindInstructor, fieldString(r, FieldCourseInstructor)),
		Room:            reference.FromURL(reference.KindRoom, fieldString(r, FieldCourseRoom)),
	}
}

// DecodeInstructor maps a stored record onto an instructor.
func DecodeInstructor(r RawRecord) instructor.Instructor {
	return instructor.Instructor{
		ID:      r.ID,
		Name:    fieldString(r, FieldInstructorName),
		Email:   fieldString(r, FieldInstructorEmail),
		Phone:   fieldString(r, FieldInstructorPhone),
		Subject: fieldString(r, FieldInstructorSubject),
	}
}

// DecodeParticipant maps a stored record onto a participant.
func DecodeParticipant(r RawRecord) participant.Participant {
	return participant.Participant{
		ID:        r.ID,
		Name:      fieldString(r, FieldParticipantName),
		Email:     fieldString(r, FieldParticipantEmail),
		Phone:     fieldString(r, FieldParticipantPhone),
		BirthDate: ParseDate(fieldString(r, FieldParticipantBirth)),
	}
}

// DecodeRoom maps a stored record onto a room.
func DecodeRoom(r RawRecord) room.Room {
	return room.Room{
		ID:       r.ID,
		Name:     fieldString(r, FieldRoomName),
		Building: fieldString(r, FieldRoomBuilding),
		Capacity: fieldInt(r, FieldRoomCapacity),
	}
}

// DecodeEnrollment maps a stored record onto an enrollment.
func DecodeEnrollment(r RawRecord) enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:           r.ID,
		Participant:  reference.FromURL(reference.KindParticipant, fieldString(r, FieldEnrollmentParticipant)),
		Course:       reference.FromURL(reference.KindCourse, fieldString(r, FieldEnrollmentCourse)),
		RegisteredOn: ParseDate(fieldString(r, FieldEnrollmentDate)),
		Paid:         fieldBool(r, FieldEnrollmentPaid),
	}
}

// fieldString returns a string field. Scalars are rendered as text; other
// shapes and missing fields yield "".
func fieldString(r RawRecord, name string) string {
	raw, ok := r.Fields[name]
	if !ok {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// fieldFloat accepts a JSON number or a numeric string; anything else is absent.
func fieldFloat(r RawRecord, name string) *float64 {
	raw, ok := r.Fields[name]
	if !ok {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), ",", "."), 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

func fieldInt(r RawRecord, name string) *int {
	f := fieldFloat(r, name)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// fieldBool treats true, "true" and "1" as set; everything else is false.
func fieldBool(r RawRecord, name string) bool {
	raw, ok := r.Fields[name]
	if !ok {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "1"
	case float64:
		return t != 0
	}
	return false
}
