package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"courseadmin/internal/application/dataset"
	"courseadmin/internal/domain/course"
	"courseadmin/internal/domain/enrollment"
	"courseadmin/internal/domain/instructor"
	"courseadmin/internal/domain/participant"
	"courseadmin/internal/domain/reference"
	"courseadmin/internal/domain/room"
)

const (
	idRoomA       = "65a1b2c3d4e5f6a7b8c9d0a1"
	idRoomB       = "65a1b2c3d4e5f6a7b8c9d0a2"
	idParticipant = "65a1b2c3d4e5f6a7b8c9d0b1"
	idCourse      = "65a1b2c3d4e5f6a7b8c9d0c1"
	idEnrollment  = "65a1b2c3d4e5f6a7b8c9d0e1"
)

var errRemote = errors.New("remote unavailable")

// --- Mock store ---

type mockStore[E any] struct {
	mu      sync.Mutex
	items   []E
	idOf    func(E) string
	build   func(id string, fields map[string]any, prev *E) E
	nextID  int
	lists   int
	created []map[string]any
	updated []map[string]any
	deleted []string

	listErr   error
	createErr error
	updateErr error
	deleteErr error

	// listHook runs after the list snapshot is taken; it may block.
	listHook   func(call int)
	createHook func()
	updateHook func()
}

// List returns a copy of the stored items.
// PRE: none
// POST: Returns items or listErr
func (m *mockStore[E]) List(_ context.Context) ([]E, error) {
	m.mu.Lock()
	m.lists++
	call := m.lists
	items := append([]E(nil), m.items...)
	err := m.listErr
	hook := m.listHook
	m.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Create stores a record with a generated 24-hex id.
// PRE: fields is the encoded payload
// POST: Returns the new record or createErr
func (m *mockStore[E]) Create(_ context.Context, fields map[string]any) (E, error) {
	if m.createHook != nil {
		m.createHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero E
	if m.createErr != nil {
		return zero, m.createErr
	}
	m.created = append(m.created, fields)
	m.nextID++
	rec := m.build(fmt.Sprintf("%024x", m.nextID), fields, nil)
	m.items = append(m.items, rec)
	return rec, nil
}

// Update merges fields into the stored record.
// PRE: id exists
// POST: Returns the merged record or updateErr
func (m *mockStore[E]) Update(_ context.Context, id string, fields map[string]any) (E, error) {
	if m.updateHook != nil {
		m.updateHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero E
	if m.updateErr != nil {
		return zero, m.updateErr
	}
	for i, it := range m.items {
		if m.idOf(it) == id {
			m.updated = append(m.updated, fields)
			m.items[i] = m.build(id, fields, &it)
			return m.items[i], nil
		}
	}
	return zero, errors.New("not found")
}

// Delete removes the stored record.
// PRE: id exists
// POST: Record removed or deleteErr returned
func (m *mockStore[E]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, it := range m.items {
		if m.idOf(it) == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			m.deleted = append(m.deleted, id)
			return nil
		}
	}
	return errors.New("not found")
}

// ReferenceURL builds a fake reference URL.
// PRE: none
// POST: Returns a URL ending in id
func (m *mockStore[E]) ReferenceURL(kind reference.Kind, id string) string {
	return "https://store.test/apps/" + string(kind) + "/records/" + id
}

func (m *mockStore[E]) setItems(items []E) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
}

func intPtr(n int) *int { return &n }

func newRoomStore(rooms ...room.Room) *mockStore[room.Room] {
	return &mockStore[room.Room]{
		items: rooms,
		idOf:  func(r room.Room) string { return r.ID },
		build: func(id string, f map[string]any, prev *room.Room) room.Room {
			r := room.Room{ID: id}
			if prev != nil {
				r = *prev
			}
			if v, ok := f["raumname"].(string); ok {
				r.Name = v
			}
			if v, ok := f["gebaeude"].(string); ok {
				r.Building = v
			}
			if v, ok := f["kapazitaet"].(int); ok {
				r.Capacity = intPtr(v)
			}
			return r
		},
	}
}

func newEnrollmentStore(items ...enrollment.Enrollment) *mockStore[enrollment.Enrollment] {
	return &mockStore[enrollment.Enrollment]{
		items: items,
		idOf:  func(e enrollment.Enrollment) string { return e.ID },
		build: func(id string, f map[string]any, prev *enrollment.Enrollment) enrollment.Enrollment {
			e := enrollment.Enrollment{ID: id}
			if prev != nil {
				e = *prev
			}
			if v, ok := f["teilnehmer"].(string); ok {
				e.Participant = reference.FromURL(reference.KindParticipant, v)
			}
			if v, ok := f["kurs"].(string); ok {
				e.Course = reference.FromURL(reference.KindCourse, v)
			}
			if v, ok := f["bezahlt"].(bool); ok {
				e.Paid = v
			}
			return e
		},
	}
}

type staticLister[E any] struct{ items []E }

// List returns the seeded items.
// PRE: none
// POST: Returns the seeded items
func (s staticLister[E]) List(_ context.Context) ([]E, error) { return s.items, nil }

func enrollmentSources() dataset.Sources {
	return dataset.Sources{
		Participants: staticLister[participant.Participant]{items: []participant.Participant{{ID: idParticipant, Name: "Ada Lovelace"}}},
		Courses:      staticLister[course.Course]{items: []course.Course{{ID: idCourse, Title: "Aquarell"}}},
	}
}

var fixedNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func newRoomController(t *testing.T, store *mockStore[room.Room]) *Controller[room.Room] {
	t.Helper()
	c := New(RoomDescriptor(), Deps[room.Room]{Store: store, Now: func() time.Time { return fixedNow }})
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func newEnrollmentController(t *testing.T, store *mockStore[enrollment.Enrollment]) *Controller[enrollment.Enrollment] {
	t.Helper()
	c := New(EnrollmentDescriptor(), Deps[enrollment.Enrollment]{
		Store:   store,
		Sources: enrollmentSources(),
		Now:     func() time.Time { return fixedNow },
	})
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func paidEnrollment(paid bool) enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:           idEnrollment,
		Participant:  &reference.Ref{Kind: reference.KindParticipant, ID: idParticipant},
		Course:       &reference.Ref{Kind: reference.KindCourse, ID: idCourse},
		RegisteredOn: fixedNow,
		Paid:         paid,
	}
}

// --- Load ---

// TestLoad_InstallsOwnAndRelatedLists verifies a load brings in the dependency lists.
func TestLoad_InstallsOwnAndRelatedLists(t *testing.T) {
	c := newEnrollmentController(t, newEnrollmentStore(paidEnrollment(false)))
	if !c.Loaded() || len(c.Items()) != 1 {
		t.Fatalf("items = %v", c.Items())
	}
	rel := c.Related()
	if len(rel.Participants) != 1 || len(rel.Courses) != 1 {
		t.Errorf("related = %+v", rel)
	}
	if rel.Rooms != nil {
		t.Error("rooms are not an enrollment dependency")
	}
	if c.State() != StateIdle {
		t.Errorf("state = %s, want idle", c.State())
	}
}

// TestLoad_FailureKeepsPreviousSnapshot verifies a failed reload leaves the old list.
func TestLoad_FailureKeepsPreviousSnapshot(t *testing.T) {
	store := newRoomStore(room.Room{ID: idRoomA, Name: "Atelier"})
	c := newRoomController(t, store)

	store.listErr = errRemote
	store.setItems(nil)
	if err := c.Load(context.Background()); !errors.Is(err, errRemote) {
		t.Fatalf("err = %v, want errRemote", err)
	}
	if len(c.Items()) != 1 {
		t.Errorf("items = %v, want previous snapshot", c.Items())
	}
	if !errors.Is(c.LastError(), errRemote) {
		t.Errorf("LastError = %v", c.LastError())
	}
}

// TestLoad_StaleResultIsDiscarded verifies an older load finishing last does not overwrite a newer one.
func TestLoad_StaleResultIsDiscarded(t *testing.T) {
	store := newRoomStore(room.Room{ID: idRoomA, Name: "Old"})
	c := New(RoomDescriptor(), Deps[room.Room]{Store: store})

	release := make(chan struct{})
	started := make(chan struct{})
	store.listHook = func(call int) {
		if call == 1 {
			close(started)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() { done <- c.Load(context.Background()) }()
	<-started
	if c.State() != StateLoading {
		t.Errorf("state = %s, want loading", c.State())
	}

	store.setItems([]room.Room{{ID: idRoomB, Name: "New"}})
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Load: %v", err)
	}

	items := c.Items()
	if len(items) != 1 || items[0].Name != "New" {
		t.Errorf("items = %+v, want the newer snapshot", items)
	}
}

// TestClose_DiscardsInFlightLoad verifies a load completing after Close is dropped.
func TestClose_DiscardsInFlightLoad(t *testing.T) {
	store := newRoomStore(room.Room{ID: idRoomA, Name: "Atelier"})
	c := New(RoomDescriptor(), Deps[room.Room]{Store: store})

	release := make(chan struct{})
	started := make(chan struct{})
	store.listHook = func(int) {
		close(started)
		<-release
	}
	done := make(chan error, 1)
	go func() { done <- c.Load(context.Background()) }()
	<-started
	c.Close()
	close(release)

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if c.Loaded() || len(c.Items()) != 0 {
		t.Error("a load finishing after Close was installed")
	}
	if err := c.OpenCreate(); !errors.Is(err, ErrClosed) {
		t.Errorf("OpenCreate after Close = %v, want ErrClosed", err)
	}
}

// --- Dialog and save ---

// TestOpenCreate_Defaults verifies per-kind defaults of a new form.
func TestOpenCreate_Defaults(t *testing.T) {
	c := newEnrollmentController(t, newEnrollmentStore())
	if err := c.OpenCreate(); err != nil {
		t.Fatalf("OpenCreate: %v", err)
	}
	d, ok := c.Dialog()
	if !ok || d.Mode != DialogCreate {
		t.Fatalf("dialog = %+v, %v", d, ok)
	}
	if d.Form["registered_on"] != "2025-06-01" || d.Form["paid"] != "false" || d.Form["participant"] != "" {
		t.Errorf("form = %v", d.Form)
	}

	cc := New(CourseDescriptor(), Deps[course.Course]{Store: &mockStore[course.Course]{}})
	if err := cc.OpenCreate(); err != nil {
		t.Fatalf("course OpenCreate: %v", err)
	}
	cd, _ := cc.Dialog()
	if cd.Form["status"] != string(course.StatusPlanned) {
		t.Errorf("course status default = %q", cd.Form["status"])
	}
}

// TestSave_RequiresMandatoryFields verifies the presence gate.
func TestSave_RequiresMandatoryFields(t *testing.T) {
	store := newRoomStore()
	c := newRoomController(t, store)
	_ = c.OpenCreate()
	if c.CanSave() {
		t.Error("CanSave with an empty form")
	}
	_ = c.SetField("name", "Atelier")
	_ = c.SetField("capacity", "   ")
	if _, err := c.Save(context.Background()); !errors.Is(err, ErrIncomplete) {
		t.Errorf("err = %v, want ErrIncomplete", err)
	}
	_ = c.SetField("capacity", "12")
	if !c.CanSave() {
		t.Error("CanSave false with all required fields set")
	}
	if len(store.created) != 0 {
		t.Error("a create was sent for an incomplete form")
	}
}

// TestDescriptors_RequiredFields verifies which blank fields block a save for each kind.
func TestDescriptors_RequiredFields(t *testing.T) {
	tests := []struct {
		kind   string
		fields []FieldSpec
		want   []string
	}{
		{"courses", CourseDescriptor().Fields, []string{"start_date", "title"}},
		{"instructors", InstructorDescriptor().Fields, []string{"email", "name"}},
		{"participants", ParticipantDescriptor().Fields, []string{"email", "name"}},
		{"rooms", RoomDescriptor().Fields, []string{"capacity", "name"}},
		{"enrollments", EnrollmentDescriptor().Fields, []string{"course", "participant", "registered_on"}},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			got := missing(tt.fields, Form{"title": " ", "name": "\t"})
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("missing = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestSave_CreateEncodesAndReloads verifies payload encoding, reload and dialog close.
func TestSave_CreateEncodesAndReloads(t *testing.T) {
	store := newRoomStore()
	c := newRoomController(t, store)
	_ = c.OpenCreate()
	_ = c.SetField("name", "Atelier")
	_ = c.SetField("capacity", "12")

	rec, err := c.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	payload := store.created[0]
	if payload["raumname"] != "Atelier" || payload["kapazitaet"] != 12 {
		t.Errorf("payload = %v", payload)
	}
	if _, ok := payload["gebaeude"]; ok {
		t.Error("blank optional field was sent")
	}
	if _, open := c.Dialog(); open {
		t.Error("dialog still open after save")
	}
	if store.lists != 2 {
		t.Errorf("lists = %d, want a reload after save", store.lists)
	}
	if got, ok := c.Get(rec.ID); !ok || got.Name != "Atelier" {
		t.Errorf("created room not in reloaded list: %+v", c.Items())
	}
}

// TestSave_ReloadFailureAfterStore verifies a stored record is reported with ErrReloadFailed
// when the follow-up reload fails, and the dialog still closes.
func TestSave_ReloadFailureAfterStore(t *testing.T) {
	store := newRoomStore()
	c := newRoomController(t, store)
	_ = c.OpenCreate()
	_ = c.SetField("name", "Atelier")
	_ = c.SetField("capacity", "12")
	store.createHook = func() {
		store.mu.Lock()
		store.listErr = errRemote
		store.mu.Unlock()
	}

	rec, err := c.Save(context.Background())
	if !errors.Is(err, ErrReloadFailed) || !errors.Is(err, errRemote) {
		t.Fatalf("err = %v, want ErrReloadFailed wrapping the remote error", err)
	}
	if rec.Name != "Atelier" || len(store.created) != 1 {
		t.Errorf("rec = %+v, created = %d", rec, len(store.created))
	}
	if _, open := c.Dialog(); open {
		t.Error("dialog still open after a stored save")
	}
}

// TestSave_ReferenceAndNumberEncoding verifies selected ids become URLs and decimals accept a comma.
func TestSave_ReferenceAndNumberEncoding(t *testing.T) {
	store := &mockStore[course.Course]{
		idOf:  func(c course.Course) string { return c.ID },
		build: func(id string, _ map[string]any, _ *course.Course) course.Course { return course.Course{ID: id} },
	}
	c := New(CourseDescriptor(), Deps[course.Course]{Store: store, Sources: dataset.Sources{
		Instructors: staticLister[instructor.Instructor]{},
		Rooms:       staticLister[room.Room]{items: []room.Room{{ID: idRoomA, Name: "Atelier"}}},
	}})
	_ = c.OpenCreate()
	_ = c.SetField("title", "Aquarell")
	_ = c.SetField("start_date", "2025-04-01")
	_ = c.SetField("price", "89,50")
	_ = c.SetField("status", "active")
	_ = c.SetField("room", strings.ToUpper(idRoomA))

	if _, err := c.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(store.created) != 1 {
		t.Fatalf("created = %d, want 1", len(store.created))
	}
	p := store.created[0]
	if p["preis"] != 89.5 {
		t.Errorf("preis = %v, want 89.5", p["preis"])
	}
	if p["status"] != "aktiv" {
		t.Errorf("status = %v, want aktiv", p["status"])
	}
	if p["raum"] != "https://store.test/apps/rooms/records/"+idRoomA {
		t.Errorf("raum = %v", p["raum"])
	}
	if _, ok := p["dozent"]; ok {
		t.Error("unselected instructor was sent")
	}
}

// TestSave_InvalidNumberBlocksSave verifies malformed numbers are rejected, not coerced.
func TestSave_InvalidNumberBlocksSave(t *testing.T) {
	store := newRoomStore()
	c := newRoomController(t, store)
	_ = c.OpenCreate()
	_ = c.SetField("name", "Atelier")
	_ = c.SetField("capacity", "twelve")

	_, err := c.Save(context.Background())
	if !errors.Is(err, ErrInvalidNumber) {
		t.Fatalf("err = %v, want ErrInvalidNumber", err)
	}
	if !strings.Contains(err.Error(), "capacity") {
		t.Errorf("error %q does not name the field", err)
	}
	if len(store.created) != 0 {
		t.Error("create sent for malformed input")
	}
	if c.State() != StateDialogOpen {
		t.Errorf("state = %s, want dialog_open", c.State())
	}
}

// TestSave_InvalidReference verifies a non-identifier selection is rejected.
func TestSave_InvalidReference(t *testing.T) {
	c := newEnrollmentController(t, newEnrollmentStore())
	_ = c.OpenCreate()
	_ = c.SetField("participant", "not-an-id")
	_ = c.SetField("course", idCourse)
	if _, err := c.Save(context.Background()); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("err = %v, want ErrInvalidValue", err)
	}
}

// TestSave_RemoteFailureKeepsDialogOpen verifies the failure path clears saving and keeps the form.
func TestSave_RemoteFailureKeepsDialogOpen(t *testing.T) {
	store := newRoomStore()
	c := newRoomController(t, store)
	_ = c.OpenCreate()
	_ = c.SetField("name", "Atelier")
	_ = c.SetField("capacity", "12")
	store.createErr = errRemote

	if _, err := c.Save(context.Background()); !errors.Is(err, errRemote) {
		t.Fatalf("err = %v, want errRemote", err)
	}
	d, open := c.Dialog()
	if !open || d.Form["name"] != "Atelier" {
		t.Errorf("dialog = %+v, %v; want the form kept", d, open)
	}
	if c.State() != StateDialogOpen {
		t.Errorf("state = %s, want dialog_open", c.State())
	}
	if !errors.Is(c.LastError(), errRemote) {
		t.Errorf("LastError = %v", c.LastError())
	}
	if store.lists != 1 {
		t.Errorf("lists = %d, want no reload after a failed save", store.lists)
	}
}

// TestSave_BusyWhileSaving verifies mutations are refused while a save runs.
func TestSave_BusyWhileSaving(t *testing.T) {
	store := newRoomStore()
	c := newRoomController(t, store)
	_ = c.OpenCreate()
	_ = c.SetField("name", "Atelier")
	_ = c.SetField("capacity", "12")

	entered := make(chan struct{})
	release := make(chan struct{})
	store.createHook = func() {
		close(entered)
		<-release
	}
	done := make(chan error, 1)
	go func() {
		_, err := c.Save(context.Background())
		done <- err
	}()
	<-entered

	if c.State() != StateSaving {
		t.Errorf("state = %s, want saving", c.State())
	}
	if c.CanSave() {
		t.Error("CanSave while saving")
	}
	if err := c.SetField("name", "x"); !errors.Is(err, ErrBusy) {
		t.Errorf("SetField = %v, want ErrBusy", err)
	}
	if err := c.OpenCreate(); !errors.Is(err, ErrBusy) {
		t.Errorf("OpenCreate = %v, want ErrBusy", err)
	}
	if _, err := c.Save(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second Save = %v, want ErrBusy", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(store.created) != 1 {
		t.Errorf("created = %d, want exactly one", len(store.created))
	}
}

// TestOpenEdit_FormUsesRawIDs verifies reference fields are recovered as identifiers and edit updates the target.
func TestOpenEdit_FormUsesRawIDs(t *testing.T) {
	store := newEnrollmentStore(paidEnrollment(true))
	c := newEnrollmentController(t, store)
	if err := c.OpenEdit(idEnrollment); err != nil {
		t.Fatalf("OpenEdit: %v", err)
	}
	d, _ := c.Dialog()
	if d.Mode != DialogEdit || d.TargetID != idEnrollment {
		t.Errorf("dialog = %+v", d)
	}
	if d.Form["participant"] != idParticipant || d.Form["course"] != idCourse || d.Form["paid"] != "true" {
		t.Errorf("form = %v", d.Form)
	}

	_ = c.SetField("paid", "false")
	if _, err := c.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(store.updated) != 1 || store.updated[0]["bezahlt"] != false {
		t.Errorf("updated = %v", store.updated)
	}
	if got, _ := c.Get(idEnrollment); got.Paid {
		t.Error("paid flag not cleared after edit")
	}
}

// TestOpenEdit_UnknownRecord verifies editing an id outside the list fails.
func TestOpenEdit_UnknownRecord(t *testing.T) {
	c := newRoomController(t, newRoomStore())
	if err := c.OpenEdit(idRoomA); !errors.Is(err, ErrUnknownRecord) {
		t.Errorf("err = %v, want ErrUnknownRecord", err)
	}
	if err := c.SetField("name", "x"); !errors.Is(err, ErrNoDialog) {
		t.Errorf("SetField without dialog = %v, want ErrNoDialog", err)
	}
	if _, err := c.Save(context.Background()); !errors.Is(err, ErrNoDialog) {
		t.Errorf("Save without dialog = %v, want ErrNoDialog", err)
	}
}

// TestSetField_UnknownField verifies only descriptor fields can be edited.
func TestSetField_UnknownField(t *testing.T) {
	c := newRoomController(t, newRoomStore())
	_ = c.OpenCreate()
	if err := c.SetField("colour", "red"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("err = %v, want ErrUnknownField", err)
	}
}

// TestAfterCreate_ReceivesRecordAndRelated verifies the hook sees the created record with resolved lists.
func TestAfterCreate_ReceivesRecordAndRelated(t *testing.T) {
	store := newEnrollmentStore()
	var got enrollment.Enrollment
	var participantName string
	c := New(EnrollmentDescriptor(), Deps[enrollment.Enrollment]{
		Store:   store,
		Sources: enrollmentSources(),
		AfterCreate: func(_ context.Context, e enrollment.Enrollment, related dataset.Dataset) error {
			got = e
			participantName = related.ParticipantName(e.Participant)
			return errors.New("mail down")
		},
	})
	_ = c.Load(context.Background())
	_ = c.OpenCreate()
	_ = c.SetField("participant", idParticipant)
	_ = c.SetField("course", idCourse)

	rec, err := c.Save(context.Background())
	if err != nil {
		t.Fatalf("Save returned the hook error: %v", err)
	}
	if got.ID != rec.ID || participantName != "Ada Lovelace" {
		t.Errorf("hook got %+v / %q", got, participantName)
	}
}

// --- Delete ---

// TestDelete_ConfirmationLifecycle verifies request, replace, cancel and confirm.
func TestDelete_ConfirmationLifecycle(t *testing.T) {
	store := newRoomStore(room.Room{ID: idRoomA, Name: "A"}, room.Room{ID: idRoomB, Name: "B"})
	c := newRoomController(t, store)

	if err := c.CancelDelete(); !errors.Is(err, ErrNoDeleteTarget) {
		t.Errorf("CancelDelete = %v, want ErrNoDeleteTarget", err)
	}
	_ = c.RequestDelete(idRoomA)
	_ = c.RequestDelete(idRoomB)
	if c.DeleteTarget() != idRoomB || c.State() != StateDeleteConfirm {
		t.Errorf("target = %q, state = %s", c.DeleteTarget(), c.State())
	}
	if c.Describe(idRoomB) != "B" {
		t.Errorf("Describe = %q", c.Describe(idRoomB))
	}

	if err := c.CancelDelete(); err != nil {
		t.Fatalf("CancelDelete: %v", err)
	}
	if len(store.deleted) != 0 || c.State() != StateIdle {
		t.Error("cancel had a remote effect or left state")
	}

	_ = c.RequestDelete(idRoomA)
	if err := c.ConfirmDelete(context.Background()); err != nil {
		t.Fatalf("ConfirmDelete: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != idRoomA {
		t.Errorf("deleted = %v, want only %s", store.deleted, idRoomA)
	}
	if _, ok := c.Get(idRoomA); ok {
		t.Error("deleted room still in the reloaded list")
	}
	if c.DeleteTarget() != "" {
		t.Error("target not cleared")
	}
}

// TestDelete_FailureKeepsConfirmation verifies a failed delete stays pending.
func TestDelete_FailureKeepsConfirmation(t *testing.T) {
	store := newRoomStore(room.Room{ID: idRoomA, Name: "A"})
	c := newRoomController(t, store)
	_ = c.RequestDelete(idRoomA)
	store.deleteErr = errRemote

	if err := c.ConfirmDelete(context.Background()); !errors.Is(err, errRemote) {
		t.Fatalf("err = %v, want errRemote", err)
	}
	if c.DeleteTarget() != idRoomA || c.State() != StateDeleteConfirm {
		t.Errorf("target = %q, state = %s", c.DeleteTarget(), c.State())
	}
}

// TestDialogAndDeleteAreExclusive verifies one target at a time.
func TestDialogAndDeleteAreExclusive(t *testing.T) {
	c := newRoomController(t, newRoomStore(room.Room{ID: idRoomA, Name: "A"}))
	_ = c.OpenEdit(idRoomA)
	_ = c.RequestDelete(idRoomA)
	if _, open := c.Dialog(); open {
		t.Error("dialog still open after a delete request")
	}
	_ = c.OpenCreate()
	if c.DeleteTarget() != "" {
		t.Error("delete still pending after opening a dialog")
	}
	if err := c.CancelDialog(); err != nil {
		t.Fatalf("CancelDialog: %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %s, want idle", c.State())
	}
}

// --- Toggle and filter ---

// TestToggle_TwiceRestoresFlag verifies the paid toggle is its own inverse.
func TestToggle_TwiceRestoresFlag(t *testing.T) {
	store := newEnrollmentStore(paidEnrollment(false))
	c := newEnrollmentController(t, store)

	for i, want := range []bool{true, false} {
		if _, err := c.Toggle(context.Background(), idEnrollment); err != nil {
			t.Fatalf("Toggle %d: %v", i, err)
		}
		got, _ := c.Get(idEnrollment)
		if got.Paid != want {
			t.Errorf("after toggle %d paid = %v, want %v", i+1, got.Paid, want)
		}
	}
	for _, u := range store.updated {
		if len(u) != 1 {
			t.Errorf("toggle sent %v, want a single-field update", u)
		}
	}
	if c.State() != StateIdle {
		t.Errorf("state = %s, toggle must bypass the dialog", c.State())
	}
}

// TestToggle_BusyWhileUpdating verifies a running toggle reports saving and
// refuses other mutations, so two toggles never collapse into one flip.
func TestToggle_BusyWhileUpdating(t *testing.T) {
	store := newEnrollmentStore(paidEnrollment(false))
	c := newEnrollmentController(t, store)

	entered := make(chan struct{})
	release := make(chan struct{})
	store.updateHook = func() {
		close(entered)
		<-release
	}
	done := make(chan error, 1)
	go func() {
		_, err := c.Toggle(context.Background(), idEnrollment)
		done <- err
	}()
	<-entered

	if c.State() != StateSaving {
		t.Errorf("state = %s, want saving", c.State())
	}
	if _, err := c.Toggle(context.Background(), idEnrollment); !errors.Is(err, ErrBusy) {
		t.Errorf("second Toggle = %v, want ErrBusy", err)
	}
	if err := c.OpenEdit(idEnrollment); !errors.Is(err, ErrBusy) {
		t.Errorf("OpenEdit = %v, want ErrBusy", err)
	}
	if err := c.RequestDelete(idEnrollment); !errors.Is(err, ErrBusy) {
		t.Errorf("RequestDelete = %v, want ErrBusy", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	store.updateHook = nil
	if len(store.updated) != 1 {
		t.Errorf("updates = %v, want exactly one", store.updated)
	}
	if got, _ := c.Get(idEnrollment); !got.Paid {
		t.Error("paid not flipped")
	}
	if c.State() != StateIdle {
		t.Errorf("state = %s, want idle after the reload", c.State())
	}
	if _, err := c.Toggle(context.Background(), idEnrollment); err != nil {
		t.Fatalf("Toggle after release: %v", err)
	}
	if got, _ := c.Get(idEnrollment); got.Paid {
		t.Error("second toggle did not restore the flag")
	}
}

// TestToggle_FailureClearsBusy verifies a failed toggle leaves the controller usable.
func TestToggle_FailureClearsBusy(t *testing.T) {
	store := newEnrollmentStore(paidEnrollment(false))
	c := newEnrollmentController(t, store)
	store.updateErr = errRemote

	if _, err := c.Toggle(context.Background(), idEnrollment); !errors.Is(err, errRemote) {
		t.Fatalf("err = %v, want errRemote", err)
	}
	if c.State() != StateIdle || !errors.Is(c.LastError(), errRemote) {
		t.Errorf("state = %s, last error = %v", c.State(), c.LastError())
	}
	if err := c.OpenEdit(idEnrollment); err != nil {
		t.Errorf("OpenEdit after failed toggle: %v", err)
	}
}

// TestToggle_Unsupported verifies kinds without a toggle refuse it.
func TestToggle_Unsupported(t *testing.T) {
	c := newRoomController(t, newRoomStore(room.Room{ID: idRoomA, Name: "A"}))
	if _, err := c.Toggle(context.Background(), idRoomA); !errors.Is(err, ErrToggleUnsupported) {
		t.Errorf("err = %v, want ErrToggleUnsupported", err)
	}
}

// TestFilter verifies case-insensitive matching over per-kind search text.
func TestFilter(t *testing.T) {
	rooms := newRoomController(t, newRoomStore(
		room.Room{ID: idRoomA, Name: "Atelier", Building: "Haus B"},
		room.Room{ID: idRoomB, Name: "Studio", Building: "Haupthaus"},
	))
	enrollments := newEnrollmentController(t, newEnrollmentStore(paidEnrollment(false)))

	tests := []struct {
		name  string
		count int
	}{
		{"rooms blank", len(rooms.Filter("  "))},
		{"rooms by building", len(rooms.Filter("HAUS"))},
		{"rooms by name", len(rooms.Filter("stud"))},
		{"rooms no match", len(rooms.Filter("keller"))},
		{"enrollment by participant", len(enrollments.Filter("lovelace"))},
		{"enrollment by course", len(enrollments.Filter("aquarell"))},
		{"enrollment no match", len(enrollments.Filter("yoga"))},
	}
	want := []int{2, 2, 1, 0, 1, 1, 0}
	for i, tt := range tests {
		if tt.count != want[i] {
			t.Errorf("%s: %d matches, want %d", tt.name, tt.count, want[i])
		}
	}
}
