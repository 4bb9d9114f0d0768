package dataset

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"courseadmin/internal/domain/course"
	"courseadmin/internal/domain/enrollment"
	"courseadmin/internal/domain/instructor"
	"courseadmin/internal/domain/participant"
	"courseadmin/internal/domain/reference"
	"courseadmin/internal/domain/room"
)

// Lister fetches the full list of one entity kind.
type Lister[E any] interface {
	List(ctx context.Context) ([]E, error)
}

// Sources holds one lister per entity kind. A nil lister is only an error
// when its kind is requested.
type Sources struct {
	Courses      Lister[course.Course]
	Instructors  Lister[instructor.Instructor]
	Participants Lister[participant.Participant]
	Rooms        Lister[room.Room]
	Enrollments  Lister[enrollment.Enrollment]
}

// Dataset is a snapshot of the loaded lists. Lists of kinds that were not
// requested stay nil.
type Dataset struct {
	Courses      []course.Course
	Instructors  []instructor.Instructor
	Participants []participant.Participant
	Rooms        []room.Room
	Enrollments  []enrollment.Enrollment
}

// Load fetches the requested kinds concurrently; no kinds means all five.
// PRE: src has a lister for every requested kind
// POST: Returns a complete snapshot, or the first error and an empty Dataset
func Load(ctx context.Context, src Sources, kinds ...reference.Kind) (Dataset, error) {
	if len(kinds) == 0 {
		kinds = reference.Kinds
	}
	var ds Dataset
	g, gctx := errgroup.WithContext(ctx)
	for _, k := range kinds {
		switch k {
		case reference.KindCourse:
			g.Go(func() error { return fetch(gctx, k, src.Courses, &ds.Courses) })
		case reference.KindInstructor:
			g.Go(func() error { return fetch(gctx, k, src.Instructors, &ds.Instructors) })
		case reference.KindParticipant:
			g.Go(func() error { return fetch(gctx, k, src.Participants, &ds.Participants) })
		case reference.KindRoom:
			g.Go(func() error { return fetch(gctx, k, src.Rooms, &ds.Rooms) })
		case reference.KindEnrollment:
			g.Go(func() error { return fetch(gctx, k, src.Enrollments, &ds.Enrollments) })
		default:
			return Dataset{}, fmt.Errorf("load %q: %w", k, reference.ErrUnknownKind)
		}
	}
	if err := g.Wait(); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

func fetch[E any](ctx context.Context, kind reference.Kind, l Lister[E], dst *[]E) error {
	if l == nil {
		return fmt.Errorf("load %s: no source configured", kind)
	}
	items, err := l.List(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", kind, err)
	}
	if items == nil {
		items = []E{}
	}
	*dst = items
	return nil
}

func courseID(c course.Course) string { return c.ID }
func instructorID(i instructor.Instructor) string { return i.ID }
func participantID(p participant.Participant) string { return p.ID }
func roomID(r room.Room) string { return r.ID }

// Course finds the course ref points to.
func (d Dataset) Course(ref *reference.Ref) (course.Course, bool) {
	return reference.Find(reference.RefID(ref), d.Courses, courseID)
}

// Participant finds the participant ref points to.
func (d Dataset) Participant(ref *reference.Ref) (participant.Participant, bool) {
	return reference.Find(reference.RefID(ref), d.Participants, participantID)
}

// CourseTitle resolves ref to a course title or the placeholder.
func (d Dataset) CourseTitle(ref *reference.Ref) string {
	return reference.Resolve(ref, d.Courses, courseID, func(c course.Course) string { return c.Title })
}

// InstructorName resolves ref to an instructor name or the placeholder.
func (d Dataset) InstructorName(ref *reference.Ref) string {
	return reference.Resolve(ref, d.Instructors, instructorID, func(i instructor.Instructor) string { return i.Name })
}

// ParticipantName resolves ref to a participant name or the placeholder.
func (d Dataset) ParticipantName(ref *reference.Ref) string {
	return reference.Resolve(ref, d.Participants, participantID, func(p participant.Participant) string { return p.Name })
}

// RoomName resolves ref to a room name or the placeholder.
func (d Dataset) RoomName(ref *reference.Ref) string {
	return reference.Resolve(ref, d.Rooms, roomID, func(r room.Room) string { return r.Name })
}

// Choice is one entry of a reference selection control.
type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Choices lists the selectable records of kind, sorted by label.
// Rooms carry their building in the label.
func (d Dataset) Choices(kind reference.Kind) []Choice {
	var out []Choice
	switch kind {
	case reference.KindCourse:
		for _, c := range d.Courses {
			out = append(out, Choice{ID: c.ID, Label: c.Title})
		}
	case reference.KindInstructor:
		for _, i := range d.Instructors {
			out = append(out, Choice{ID: i.ID, Label: i.Name})
		}
	case reference.KindParticipant:
		for _, p := range d.Participants {
			out = append(out, Choice{ID: p.ID, Label: p.Name})
		}
	case reference.KindRoom:
		for _, r := range d.Rooms {
			out = append(out, Choice{ID: r.ID, Label: r.Label()})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Label) < strings.ToLower(out[j].Label)
	})
	return out
}
