package controller

import (
	"strconv"
	"time"

	"courseadmin/internal/adapters/recordstore"
	"courseadmin/internal/application/dataset"
	"courseadmin/internal/domain/course"
	"courseadmin/internal/domain/enrollment"
	"courseadmin/internal/domain/instructor"
	"courseadmin/internal/domain/participant"
	"courseadmin/internal/domain/reference"
	"courseadmin/internal/domain/room"
)

func today(now time.Time) string { return now.Format("2006-01-02") }

func optionalInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func optionalFloat(x *float64) string {
	if x == nil {
		return ""
	}
	return strconv.FormatFloat(*x, 'f', -1, 64)
}

func statusOptions() []string {
	out := make([]string, 0, len(course.Statuses))
	for _, s := range course.Statuses {
		out = append(out, string(s))
	}
	return out
}

// CourseDescriptor configures the course list.
func CourseDescriptor() Descriptor[course.Course] {
	return Descriptor[course.Course]{
		Kind: reference.KindCourse,
		Fields: []FieldSpec{
			{Name: "title", Wire: recordstore.FieldCourseTitle, Type: FieldText, Required: true},
			{Name: "description", Wire: recordstore.FieldCourseDescription, Type: FieldText},
			{Name: "start_date", Wire: recordstore.FieldCourseStart, Type: FieldDate, Required: true},
			{Name: "end_date", Wire: recordstore.FieldCourseEnd, Type: FieldDate},
			{Name: "max_participants", Wire: recordstore.FieldCourseMax, Type: FieldInt},
			{Name: "price", Wire: recordstore.FieldCoursePrice, Type: FieldDecimal},
			{
				Name: "status", Wire: recordstore.FieldCourseStatus, Type: FieldEnum, Options: statusOptions(),
				Default: func(time.Time) string { return string(course.StatusPlanned) },
				Encode:  func(v string) any { return course.ParseStatus(v).WireValue() },
			},
			{Name: "instructor", Wire: recordstore.FieldCourseInstructor, Type: FieldRef, RefKind: reference.KindInstructor},
			{Name: "room", Wire: recordstore.FieldCourseRoom, Type: FieldRef, RefKind: reference.KindRoom},
		},
		Dependencies: []reference.Kind{reference.KindInstructor, reference.KindRoom},
		ID:           func(c course.Course) string { return c.ID },
		ToForm: func(c course.Course) Form {
			return Form{
				"title":            c.Title,
				"description":      c.Description,
				"start_date":       recordstore.FormatDate(c.StartDate),
				"end_date":         recordstore.FormatDate(c.EndDate),
				"max_participants": optionalInt(c.MaxParticipants),
				"price":            optionalFloat(c.Price),
				"status":           string(c.Status),
				"instructor":       reference.RefID(c.Instructor),
				"room":             reference.RefID(c.Room),
			}
		},
		SearchText: func(c course.Course, _ dataset.Dataset) []string {
			return []string{c.Title}
		},
		Describe: func(c course.Course, _ dataset.Dataset) string { return c.Title },
	}
}

// InstructorDescriptor configures the instructor list.
func InstructorDescriptor() Descriptor[instructor.Instructor] {
	return Descriptor[instructor.Instructor]{
		Kind: reference.KindInstructor,
		Fields: []FieldSpec{
			{Name: "name", Wire: recordstore.FieldInstructorName, Type: FieldText, Required: true},
			{Name: "email", Wire: recordstore.FieldInstructorEmail, Type: FieldText, Required: true},
			{Name: "phone", Wire: recordstore.FieldInstructorPhone, Type: FieldText},
			{Name: "subject", Wire: recordstore.FieldInstructorSubject, Type: FieldText},
		},
		ID: func(i instructor.Instructor) string { return i.ID },
		ToForm: func(i instructor.Instructor) Form {
			return Form{"name": i.Name, "email": i.Email, "phone": i.Phone, "subject": i.Subject}
		},
		SearchText: func(i instructor.Instructor, _ dataset.Dataset) []string {
			return []string{i.Name, i.Email, i.Subject}
		},
		Describe: func(i instructor.Instructor, _ dataset.Dataset) string { return i.Name },
	}
}

// ParticipantDescriptor configures the participant list.
func ParticipantDescriptor() Descriptor[participant.Participant] {
	return Descriptor[participant.Participant]{
		Kind: reference.KindParticipant,
		Fields: []FieldSpec{
			{Name: "name", Wire: recordstore.FieldParticipantName, Type: FieldText, Required: true},
			{Name: "email", Wire: recordstore.FieldParticipantEmail, Type: FieldText, Required: true},
			{Name: "phone", Wire: recordstore.FieldParticipantPhone, Type: FieldText},
			{Name: "birth_date", Wire: recordstore.FieldParticipantBirth, Type: FieldDate},
		},
		ID: func(p participant.Participant) string { return p.ID },
		ToForm: func(p participant.Participant) Form {
			return Form{
				"name":       p.Name,
				"email":      p.Email,
				"phone":      p.Phone,
				"birth_date": recordstore.FormatDate(p.BirthDate),
			}
		},
		SearchText: func(p participant.Participant, _ dataset.Dataset) []string {
			return []string{p.Name, p.Email}
		},
		Describe: func(p participant.Participant, _ dataset.Dataset) string { return p.Name },
	}
}

// RoomDescriptor configures the room list.
func RoomDescriptor() Descriptor[room.Room] {
	return Descriptor[room.Room]{
		Kind: reference.KindRoom,
		Fields: []FieldSpec{
			{Name: "name", Wire: recordstore.FieldRoomName, Type: FieldText, Required: true},
			{Name: "building", Wire: recordstore.FieldRoomBuilding, Type: FieldText},
			{Name: "capacity", Wire: recordstore.FieldRoomCapacity, Type: FieldInt, Required: true},
		},
		ID: func(r room.Room) string { return r.ID },
		ToForm: func(r room.Room) Form {
			return Form{"name": r.Name, "building": r.Building, "capacity": optionalInt(r.Capacity)}
		},
		SearchText: func(r room.Room, _ dataset.Dataset) []string {
			return []string{r.Name, r.Building}
		},
		Describe: func(r room.Room, _ dataset.Dataset) string { return r.Label() },
	}
}

// EnrollmentDescriptor configures the enrollment list. Its search and
// confirmation text use the resolved participant and course.
func EnrollmentDescriptor() Descriptor[enrollment.Enrollment] {
	return Descriptor[enrollment.Enrollment]{
		Kind: reference.KindEnrollment,
		Fields: []FieldSpec{
			{Name: "participant", Wire: recordstore.FieldEnrollmentParticipant, Type: FieldRef, RefKind: reference.KindParticipant, Required: true},
			{Name: "course", Wire: recordstore.FieldEnrollmentCourse, Type: FieldRef, RefKind: reference.KindCourse, Required: true},
			{Name: "registered_on", Wire: recordstore.FieldEnrollmentDate, Type: FieldDate, Required: true, Default: today},
			{Name: "paid", Wire: recordstore.FieldEnrollmentPaid, Type: FieldBool, Default: func(time.Time) string { return "false" }},
		},
		Dependencies: []reference.Kind{reference.KindParticipant, reference.KindCourse},
		ID:           func(e enrollment.Enrollment) string { return e.ID },
		ToForm: func(e enrollment.Enrollment) Form {
			return Form{
				"participant":   reference.RefID(e.Participant),
				"course":        reference.RefID(e.Course),
				"registered_on": recordstore.FormatDate(e.RegisteredOn),
				"paid":          strconv.FormatBool(e.Paid),
			}
		},
		SearchText: func(e enrollment.Enrollment, ds dataset.Dataset) []string {
			return []string{ds.ParticipantName(e.Participant), ds.CourseTitle(e.Course)}
		},
		Describe: func(e enrollment.Enrollment, ds dataset.Dataset) string {
			return ds.ParticipantName(e.Participant) + " / " + ds.CourseTitle(e.Course)
		},
		Toggle: &Toggle[enrollment.Enrollment]{
			Wire: recordstore.FieldEnrollmentPaid,
			Get:  func(e enrollment.Enrollment) bool { return e.Paid },
		},
	}
}
