package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"courseadmin/internal/adapters/http/middleware"
	"courseadmin/internal/adapters/recordstore"
	"courseadmin/internal/application/controller"
	"courseadmin/internal/application/dataset"
	"courseadmin/internal/application/projections"
	"courseadmin/internal/domain/course"
	"courseadmin/internal/domain/enrollment"
	"courseadmin/internal/domain/instructor"
	"courseadmin/internal/domain/participant"
	"courseadmin/internal/domain/reference"
	"courseadmin/internal/domain/room"
)

// maxFormBytes caps create and edit bodies.
const maxFormBytes = 64 << 10

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set), preventing XSS.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// renderMarkdown renders a course description; "" stays "".
func renderMarkdown(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		slog.Warn("markdown_render_failed", "error", err)
		return ""
	}
	return buf.String()
}

// Stores holds the record store of every entity kind.
type Stores struct {
	Courses      controller.Store[course.Course]
	Instructors  controller.Store[instructor.Instructor]
	Participants controller.Store[participant.Participant]
	Rooms        controller.Store[room.Room]
	Enrollments  controller.Store[enrollment.Enrollment]
}

// Sources exposes the stores as dataset listers.
func (s Stores) Sources() dataset.Sources {
	return dataset.Sources{
		Courses:      s.Courses,
		Instructors:  s.Instructors,
		Participants: s.Participants,
		Rooms:        s.Rooms,
		Enrollments:  s.Enrollments,
	}
}

// Options configures the front-end handler.
type Options struct {
	Stores Stores
	Now    func() time.Time // optional clock

	// AfterEnrollmentCreate runs in the background after an enrollment was
	// stored; its error is only logged.
	AfterEnrollmentCreate func(ctx context.Context, created enrollment.Enrollment, related dataset.Dataset) error

	CSRFKey        []byte // 32 bytes
	SecureCookies  bool
	TrustedOrigins []string
	// RateLimitPerSecond is the per-IP budget; 0 disables the limiter.
	RateLimitPerSecond int

	Registry  *prometheus.Registry // optional; /metrics is served when set
	StaticDir string               // optional
}

// App serves the admin API. Each kind has one controller shared by all requests.
type App struct {
	pages   map[reference.Kind]page
	sources dataset.Sources
	handler http.Handler
	limiter *middleware.RateLimiter // nil when disabled
	hooks   hookRunner
}

// NewMux wires HTTP handlers for the app.
// PRE: opts.Stores has a store for every kind; len(opts.CSRFKey) == 32
// POST: Returns the app; its Handler serves /api, /healthz and /metrics
func NewMux(opts Options) *App {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sources := opts.Stores.Sources()

	a := &App{sources: sources}
	a.pages = map[reference.Kind]page{
		reference.KindCourse: coursePage(controller.New(controller.CourseDescriptor(),
			controller.Deps[course.Course]{Store: opts.Stores.Courses, Sources: sources, Now: now})),
		reference.KindInstructor: instructorPage(controller.New(controller.InstructorDescriptor(),
			controller.Deps[instructor.Instructor]{Store: opts.Stores.Instructors, Sources: sources, Now: now})),
		reference.KindParticipant: participantPage(controller.New(controller.ParticipantDescriptor(),
			controller.Deps[participant.Participant]{Store: opts.Stores.Participants, Sources: sources, Now: now})),
		reference.KindRoom: roomPage(controller.New(controller.RoomDescriptor(),
			controller.Deps[room.Room]{Store: opts.Stores.Rooms, Sources: sources, Now: now})),
		reference.KindEnrollment: enrollmentPage(controller.New(controller.EnrollmentDescriptor(),
			controller.Deps[enrollment.Enrollment]{
				Store: opts.Stores.Enrollments, Sources: sources, Now: now,
				AfterCreate: background(&a.hooks, reference.KindEnrollment,
					func(e enrollment.Enrollment) string { return e.ID }, opts.AfterEnrollmentCreate),
			})),
	}

	mux := http.NewServeMux()
	if opts.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(opts.StaticDir)))
	}
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /api/dashboard", a.handleDashboard)
	mux.HandleFunc("GET /api/{kind}", a.handleList)
	mux.HandleFunc("GET /api/{kind}/choices", a.handleChoices)
	mux.HandleFunc("GET /api/{kind}/{id}", a.handleDetail)
	mux.HandleFunc("POST /api/{kind}", a.handleCreate)
	mux.HandleFunc("POST /api/{kind}/check", a.handleCheck)
	mux.HandleFunc("PUT /api/{kind}/{id}", a.handleUpdate)
	mux.HandleFunc("DELETE /api/{kind}/{id}", a.handleDelete)
	mux.HandleFunc("POST /api/enrollments/{id}/toggle-paid", a.handleTogglePaid)

	var metrics *middleware.RequestMetrics
	if opts.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
		metrics = middleware.NewRequestMetrics(opts.Registry)
	}

	// Apply middleware: Timing -> RateLimit -> CSRF -> SecurityHeaders -> Mux
	chain := []func(http.Handler) http.Handler{
		middleware.SecurityHeaders,
		middleware.CSRF(opts.CSRFKey, opts.SecureCookies, opts.TrustedOrigins),
	}
	if opts.RateLimitPerSecond > 0 {
		a.limiter = middleware.NewRateLimiter(opts.RateLimitPerSecond, time.Second)
		chain = append(chain, middleware.RateLimit(a.limiter))
	}
	chain = append(chain, middleware.Timing(metrics))
	a.handler = middleware.Chain(middleware.MatchedRoute(mux), chain...)
	return a
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Close tears down every controller and the rate limiter, then waits for
// running after-create hooks. In-flight loads are discarded.
func (a *App) Close() {
	for _, p := range a.pages {
		p.close()
	}
	a.hooks.wait()
	if a.limiter != nil {
		a.limiter.Stop()
	}
}

// pageFor resolves the {kind} path segment, answering 404 for unknown kinds.
func (a *App) pageFor(w http.ResponseWriter, r *http.Request) (page, bool) {
	kind, err := reference.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown entity kind")
		return nil, false
	}
	return a.pages[kind], true
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDashboard handles GET /api/dashboard
func (a *App) handleDashboard(w http.ResponseWriter, r *http.Request) {
	res, err := projections.LoadDashboard(r.Context(), projections.GetDashboardDeps{Sources: a.sources})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleList handles GET /api/{kind}?q=&sort=&dir=
func (a *App) handleList(w http.ResponseWriter, r *http.Request) {
	p, ok := a.pageFor(w, r)
	if !ok {
		return
	}
	res, err := p.list(r.Context(), r.URL.Query())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleChoices handles GET /api/{kind}/choices, the options of a reference field.
func (a *App) handleChoices(w http.ResponseWriter, r *http.Request) {
	p, ok := a.pageFor(w, r)
	if !ok {
		return
	}
	ds, err := dataset.Load(r.Context(), a.sources, p.kind())
	if err != nil {
		writeErr(w, err)
		return
	}
	choices := ds.Choices(p.kind())
	if choices == nil {
		choices = []dataset.Choice{}
	}
	writeJSON(w, http.StatusOK, choices)
}

// handleDetail handles GET /api/{kind}/{id}: the edit form and the delete prompt text.
func (a *App) handleDetail(w http.ResponseWriter, r *http.Request) {
	p, ok := a.pageFor(w, r)
	if !ok {
		return
	}
	res, err := p.detail(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCreate handles POST /api/{kind}
func (a *App) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := a.pageFor(w, r)
	if !ok {
		return
	}
	form, err := readForm(w, r, p.fieldNames())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	row, err := p.create(r.Context(), form)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

// handleCheck handles POST /api/{kind}/check: whether the form would pass the save gate.
func (a *App) handleCheck(w http.ResponseWriter, r *http.Request) {
	p, ok := a.pageFor(w, r)
	if !ok {
		return
	}
	form, err := readForm(w, r, p.fieldNames())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	res, err := p.check(form)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleUpdate handles PUT /api/{kind}/{id}
func (a *App) handleUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := a.pageFor(w, r)
	if !ok {
		return
	}
	form, err := readForm(w, r, p.fieldNames())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	row, err := p.update(r.Context(), r.PathValue("id"), form)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// handleDelete handles DELETE /api/{kind}/{id}; the request is the confirmation.
func (a *App) handleDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := a.pageFor(w, r)
	if !ok {
		return
	}
	if err := p.remove(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTogglePaid handles POST /api/enrollments/{id}/toggle-paid
func (a *App) handleTogglePaid(w http.ResponseWriter, r *http.Request) {
	row, err := a.pages[reference.KindEnrollment].toggle(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// readForm reads a JSON object or a urlencoded form into a dialog form.
// Form bodies keep only the kind's field names; JSON bodies are passed as is
// so unknown names surface as errors.
func readForm(w http.ResponseWriter, r *http.Request, names []string) (controller.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return formFromValues(r.PostForm, names), nil
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	form := make(controller.Form, len(body))
	for name, v := range body {
		switch v := v.(type) {
		case nil:
			form[name] = ""
		case string:
			form[name] = v
		case json.Number:
			form[name] = v.String()
		case bool:
			form[name] = strconv.FormatBool(v)
		default:
			return nil, fmt.Errorf("field %q: unsupported value", name)
		}
	}
	return form, nil
}

func formFromValues(values url.Values, names []string) controller.Form {
	form := make(controller.Form, len(names))
	for _, name := range names {
		if vs, ok := values[name]; ok && len(vs) > 0 {
			form[name] = vs[0]
		}
	}
	return form
}

// writeErr maps controller and store errors to status codes.
func writeErr(w http.ResponseWriter, err error) {
	status, msg := errorStatus(err)
	switch status {
	case http.StatusBadGateway:
		slog.Warn("record_store_unavailable", "error", err)
	case http.StatusInternalServerError:
		slog.Error("internal_error", "error", err.Error())
	}
	writeError(w, status, msg)
}

// errorStatus returns the status code and the client-safe message for err.
// Remote and internal details are never part of the message (OWASP A05).
func errorStatus(err error) (int, string) {
	var remote *recordstore.RemoteError
	var netErr *url.Error
	switch {
	case errors.Is(err, controller.ErrIncomplete),
		errors.Is(err, controller.ErrInvalidNumber),
		errors.Is(err, controller.ErrInvalidValue),
		errors.Is(err, controller.ErrUnknownField):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, controller.ErrUnknownRecord),
		errors.Is(err, controller.ErrToggleUnsupported),
		recordstore.IsNotFound(err):
		return http.StatusNotFound, "record not found"
	case errors.Is(err, controller.ErrBusy):
		return http.StatusConflict, err.Error()
	case errors.As(err, &remote), errors.As(err, &netErr):
		return http.StatusBadGateway, "record store request failed"
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
