package web

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"courseadmin/internal/application/controller"
	"courseadmin/internal/application/dataset"
	"courseadmin/internal/application/listutil"
	"courseadmin/internal/application/projections"
	"courseadmin/internal/domain/course"
	"courseadmin/internal/domain/enrollment"
	"courseadmin/internal/domain/instructor"
	"courseadmin/internal/domain/participant"
	"courseadmin/internal/domain/reference"
	"courseadmin/internal/domain/room"
)

// listResult is the JSON answer of a list request.
type listResult struct {
	Kind    reference.Kind `json:"kind"`
	Rows    any            `json:"rows"`
	Total   int            `json:"total"` // loaded records before search and filters
	Shown   int            `json:"shown"`
	Summary any            `json:"summary,omitempty"`
	// LastError is the client-safe message of the controller's most recent
	// failed remote call, kept until a later mutation succeeds.
	LastError string `json:"last_error,omitempty"`
}

// checkResult answers whether a form could be saved as entered.
type checkResult struct {
	CanSave bool `json:"can_save"`
}

// detailResult backs an edit dialog or a delete confirmation.
type detailResult struct {
	ID          string          `json:"id"`
	Form        controller.Form `json:"form"`
	Description string          `json:"description"`
}

// page is one entity list as the HTTP layer drives it.
type page interface {
	kind() reference.Kind
	fieldNames() []string
	list(ctx context.Context, q url.Values) (listResult, error)
	detail(ctx context.Context, id string) (detailResult, error)
	check(form controller.Form) (checkResult, error)
	create(ctx context.Context, form controller.Form) (any, error)
	update(ctx context.Context, id string, form controller.Form) (any, error)
	remove(ctx context.Context, id string) error
	toggle(ctx context.Context, id string) (any, error)
	close()
}

// entityPage adapts a controller to request/response use. mu serialises the
// dialog flow of one request, since the controller holds a single dialog.
type entityPage[E, R any] struct {
	mu      sync.Mutex
	ctl     *controller.Controller[E]
	rows    func(shown, all []E, related dataset.Dataset) []R
	columns listutil.Columns[R]
	filters map[string]func(R, string) bool
	summary func(all []E) any
}

func (p *entityPage[E, R]) kind() reference.Kind {
	return p.ctl.Kind()
}

func (p *entityPage[E, R]) fieldNames() []string {
	fields := p.ctl.Descriptor().Fields
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

func (p *entityPage[E, R]) filterKeys() []string {
	keys := make([]string, 0, len(p.filters))
	for k := range p.filters {
		keys = append(keys, k)
	}
	return keys
}

// list reloads (a page view counts as a mount) and applies search, filters
// and sorting to the resolved rows.
func (p *entityPage[E, R]) list(ctx context.Context, q url.Values) (listResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ctl.Load(ctx); err != nil {
		return listResult{}, err
	}
	lp := listutil.ParseListParams(q, p.columns.Names(), p.filterKeys())

	all := p.ctl.Items()
	rows := p.rows(p.ctl.Filter(lp.Search), all, p.ctl.Related())
	for key, value := range lp.Filters {
		match := p.filters[key]
		rows = listutil.Keep(rows, func(r R) bool { return match(r, value) })
	}
	p.columns.Apply(rows, lp.SortParams)

	res := listResult{Kind: p.kind(), Rows: rows, Total: len(all), Shown: len(rows)}
	if p.summary != nil {
		res.Summary = p.summary(all)
	}
	if err := p.ctl.LastError(); err != nil {
		_, res.LastError = errorStatus(err)
	}
	return res, nil
}

func (p *entityPage[E, R]) ensureLoaded(ctx context.Context) error {
	if p.ctl.Loaded() {
		return nil
	}
	return p.ctl.Load(ctx)
}

// find looks id up, reloading once when the snapshot does not have it.
func (p *entityPage[E, R]) find(ctx context.Context, id string) (E, error) {
	if err := p.ensureLoaded(ctx); err != nil {
		var zero E
		return zero, err
	}
	if item, ok := p.ctl.Get(id); ok {
		return item, nil
	}
	if err := p.ctl.Load(ctx); err != nil {
		var zero E
		return zero, err
	}
	if item, ok := p.ctl.Get(id); ok {
		return item, nil
	}
	var zero E
	return zero, fmt.Errorf("%s %s: %w", p.kind(), id, controller.ErrUnknownRecord)
}

func (p *entityPage[E, R]) detail(ctx context.Context, id string) (detailResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	item, err := p.find(ctx, id)
	if err != nil {
		return detailResult{}, err
	}
	desc := p.ctl.Descriptor()
	return detailResult{ID: desc.ID(item), Form: desc.ToForm(item), Description: p.ctl.Describe(id)}, nil
}

// check fills a scratch create dialog with form and reports the save gate
// without any remote effect.
func (p *entityPage[E, R]) check(form controller.Form) (checkResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ctl.OpenCreate(); err != nil {
		return checkResult{}, err
	}
	defer p.ctl.CancelDialog()
	for name, value := range form {
		if err := p.ctl.SetField(name, value); err != nil {
			return checkResult{}, err
		}
	}
	return checkResult{CanSave: p.ctl.CanSave()}, nil
}

func (p *entityPage[E, R]) create(ctx context.Context, form controller.Form) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ctl.OpenCreate(); err != nil {
		return nil, err
	}
	return p.submit(ctx, form)
}

func (p *entityPage[E, R]) update(ctx context.Context, id string, form controller.Form) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.find(ctx, id); err != nil {
		return nil, err
	}
	if err := p.ctl.OpenEdit(id); err != nil {
		return nil, err
	}
	return p.submit(ctx, form)
}

// submit fills the open dialog and saves. A request is all-or-nothing, so
// a dialog still open after a failure is cancelled.
func (p *entityPage[E, R]) submit(ctx context.Context, form controller.Form) (any, error) {
	defer func() {
		if _, open := p.ctl.Dialog(); open {
			p.ctl.CancelDialog()
		}
	}()
	for name, value := range form {
		if err := p.ctl.SetField(name, value); err != nil {
			return nil, err
		}
	}
	saved, err := p.ctl.Save(ctx)
	if err != nil && !isReloadError(err) {
		return nil, err
	}
	return p.row(saved), nil
}

func (p *entityPage[E, R]) remove(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.find(ctx, id); err != nil {
		return err
	}
	if err := p.ctl.RequestDelete(id); err != nil {
		return err
	}
	err := p.ctl.ConfirmDelete(ctx)
	if p.ctl.DeleteTarget() != "" {
		p.ctl.CancelDelete()
	}
	if err != nil && !isReloadError(err) {
		return err
	}
	return nil
}

func (p *entityPage[E, R]) toggle(ctx context.Context, id string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctl.Descriptor().Toggle == nil {
		return nil, fmt.Errorf("%s: %w", p.kind(), controller.ErrToggleUnsupported)
	}
	if _, err := p.find(ctx, id); err != nil {
		return nil, err
	}
	saved, err := p.ctl.Toggle(ctx, id)
	if err != nil && !isReloadError(err) {
		return nil, err
	}
	return p.row(saved), nil
}

func (p *entityPage[E, R]) row(item E) R {
	return p.rows([]E{item}, p.ctl.Items(), p.ctl.Related())[0]
}

func (p *entityPage[E, R]) close() {
	p.ctl.Close()
}

// isReloadError reports a mutation that was stored but whose list reload
// failed; the next list request reloads anyway.
func isReloadError(err error) bool {
	return errors.Is(err, controller.ErrReloadFailed)
}

// --- Per-kind pages ---

func coursePage(ctl *controller.Controller[course.Course]) page {
	return &entityPage[course.Course, projections.CourseRow]{
		ctl: ctl,
		rows: func(shown, _ []course.Course, related dataset.Dataset) []projections.CourseRow {
			rows := projections.QueryCourseRows(shown, related)
			for i := range rows {
				rows[i].DescriptionHTML = renderMarkdown(rows[i].Description)
			}
			return rows
		},
		columns: listutil.Columns[projections.CourseRow]{
			"title":      func(r projections.CourseRow) string { return r.Title },
			"start_date": func(r projections.CourseRow) string { return r.StartDate },
			"status":     func(r projections.CourseRow) string { return string(r.Status) },
			"instructor": func(r projections.CourseRow) string { return r.Instructor },
			"room":       func(r projections.CourseRow) string { return r.Room },
		},
		filters: map[string]func(projections.CourseRow, string) bool{
			"status": func(r projections.CourseRow, v string) bool {
				st, ok := course.LookupStatus(v)
				return ok && r.Status == st
			},
		},
	}
}

func instructorPage(ctl *controller.Controller[instructor.Instructor]) page {
	return &entityPage[instructor.Instructor, projections.InstructorRow]{
		ctl: ctl,
		rows: func(shown, _ []instructor.Instructor, _ dataset.Dataset) []projections.InstructorRow {
			return projections.QueryInstructorRows(shown)
		},
		columns: listutil.Columns[projections.InstructorRow]{
			"name":    func(r projections.InstructorRow) string { return r.Name },
			"email":   func(r projections.InstructorRow) string { return r.Email },
			"subject": func(r projections.InstructorRow) string { return r.Subject },
		},
	}
}

func participantPage(ctl *controller.Controller[participant.Participant]) page {
	return &entityPage[participant.Participant, projections.ParticipantRow]{
		ctl: ctl,
		rows: func(shown, _ []participant.Participant, _ dataset.Dataset) []projections.ParticipantRow {
			return projections.QueryParticipantRows(shown)
		},
		columns: listutil.Columns[projections.ParticipantRow]{
			"name":       func(r projections.ParticipantRow) string { return r.Name },
			"email":      func(r projections.ParticipantRow) string { return r.Email },
			"birth_date": func(r projections.ParticipantRow) string { return r.BirthDate },
		},
	}
}

func roomPage(ctl *controller.Controller[room.Room]) page {
	return &entityPage[room.Room, projections.RoomRow]{
		ctl: ctl,
		rows: func(shown, all []room.Room, _ dataset.Dataset) []projections.RoomRow {
			return projections.QueryRoomRows(shown, all)
		},
		columns: listutil.Columns[projections.RoomRow]{
			"name":     func(r projections.RoomRow) string { return r.Name },
			"building": func(r projections.RoomRow) string { return r.Building },
			"capacity": func(r projections.RoomRow) string { return capacityKey(r.Capacity) },
		},
		filters: map[string]func(projections.RoomRow, string) bool{
			"band": func(r projections.RoomRow, v string) bool { return string(r.Band) == v },
		},
	}
}

// capacityKey orders capacities numerically under a text sort.
func capacityKey(n *int) string {
	if n == nil {
		return ""
	}
	return fmt.Sprintf("%012d", *n)
}

func enrollmentPage(ctl *controller.Controller[enrollment.Enrollment]) page {
	return &entityPage[enrollment.Enrollment, projections.EnrollmentRow]{
		ctl: ctl,
		rows: func(shown, _ []enrollment.Enrollment, related dataset.Dataset) []projections.EnrollmentRow {
			return projections.QueryEnrollmentRows(shown, related)
		},
		columns: listutil.Columns[projections.EnrollmentRow]{
			"participant":   func(r projections.EnrollmentRow) string { return r.Participant },
			"course":        func(r projections.EnrollmentRow) string { return r.Course },
			"registered_on": func(r projections.EnrollmentRow) string { return r.RegisteredOn },
		},
		filters: map[string]func(projections.EnrollmentRow, string) bool{
			"paid": func(r projections.EnrollmentRow, v string) bool {
				paid, err := strconv.ParseBool(v)
				return err == nil && r.Paid == paid
			},
		},
		summary: func(all []enrollment.Enrollment) any {
			return projections.SummarizeEnrollments(all)
		},
	}
}
