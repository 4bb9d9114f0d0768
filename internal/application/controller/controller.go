package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"courseadmin/internal/application/dataset"
	"courseadmin/internal/domain/reference"
)

// Controller errors
var (
	ErrIncomplete        = errors.New("required fields are missing")
	ErrInvalidNumber     = errors.New("not a valid number")
	ErrInvalidValue      = errors.New("not a valid value")
	ErrUnknownField      = errors.New("unknown form field")
	ErrNoDialog          = errors.New("no dialog is open")
	ErrNoDeleteTarget    = errors.New("no delete is pending")
	ErrBusy              = errors.New("a save or delete is in progress")
	ErrToggleUnsupported = errors.New("entity kind has no toggle")
	ErrClosed            = errors.New("controller is closed")
	ErrUnknownRecord     = errors.New("record is not in the loaded list")
	ErrReloadFailed      = errors.New("reload failed")
)

// Store is the remote collection a controller manages.
type Store[E any] interface {
	List(ctx context.Context) ([]E, error)
	Create(ctx context.Context, fields map[string]any) (E, error)
	Update(ctx context.Context, id string, fields map[string]any) (E, error)
	Delete(ctx context.Context, id string) error
	ReferenceURL(kind reference.Kind, id string) string
}

// Toggle describes the single boolean field an entity can flip in place.
type Toggle[E any] struct {
	Wire string
	Get  func(E) bool
}

// Descriptor carries everything that differs between entity kinds.
type Descriptor[E any] struct {
	Kind   reference.Kind
	Fields []FieldSpec
	// Dependencies are the kinds whose lists are loaded with this one.
	Dependencies []reference.Kind
	ID           func(E) string
	// ToForm fills an edit form; reference fields hold raw ids.
	ToForm func(E) Form
	// SearchText returns the strings a search query is matched against.
	SearchText func(E, dataset.Dataset) []string
	// Describe names a record in a delete confirmation.
	Describe func(E, dataset.Dataset) string
	Toggle   *Toggle[E]
}

// Field returns the field spec named name.
func (d Descriptor[E]) Field(name string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Deps holds the collaborators of a controller.
type Deps[E any] struct {
	Store   Store[E]
	Sources dataset.Sources // lists of Descriptor.Dependencies
	Now     func() time.Time
	// AfterCreate runs after a successful create and reload. Its error is
	// logged, never returned.
	AfterCreate func(ctx context.Context, created E, related dataset.Dataset) error
}

// State is the lifecycle position of a controller.
type State int

// States.
const (
	StateIdle State = iota
	StateLoading
	StateDialogOpen
	StateSaving
	StateDeleteConfirm
	StateDeleting
)

var stateNames = [...]string{"idle", "loading", "dialog_open", "saving", "delete_confirm", "deleting"}

// String implements fmt.Stringer.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// DialogMode tells a create dialog from an edit dialog.
type DialogMode string

// Dialog modes.
const (
	DialogCreate DialogMode = "create"
	DialogEdit   DialogMode = "edit"
)

// Dialog is a snapshot of the open dialog.
type Dialog struct {
	Mode     DialogMode
	TargetID string // edit only
	Form     Form
}

// Controller owns one entity kind's loaded list, search and mutation
// lifecycle. All methods are safe for concurrent use; remote calls are made
// without holding the lock.
type Controller[E any] struct {
	desc Descriptor[E]
	deps Deps[E]

	mu           sync.Mutex
	items        []E
	related      dataset.Dataset
	loaded       bool
	loading      int
	issued       uint64 // last load generation started
	installed    uint64 // generation of the installed snapshot
	closed       bool
	dialog       *Dialog
	saving       bool
	toggling     bool // from a toggle's update until its reload ends
	deleteTarget string
	deleting     bool
	lastErr      error
}

// New builds a controller for one kind.
// PRE: desc.ID, desc.ToForm and desc.SearchText are set; deps.Store is non-nil
// POST: Returns an idle controller with nothing loaded
func New[E any](desc Descriptor[E], deps Deps[E]) *Controller[E] {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Controller[E]{desc: desc, deps: deps}
}

// Kind returns the managed entity kind.
func (c *Controller[E]) Kind() reference.Kind {
	return c.desc.Kind
}

// Descriptor returns the kind's descriptor.
func (c *Controller[E]) Descriptor() Descriptor[E] {
	return c.desc
}

// Load fetches the own list and the dependency lists concurrently and
// installs them together. A failed load keeps the previous snapshot; a load
// finishing after a newer one was installed, or after Close, is dropped.
// PRE: none
// POST: On success Items and Related reflect the remote store
func (c *Controller[E]) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.issued++
	gen := c.issued
	c.loading++
	c.mu.Unlock()

	var items []E
	var related dataset.Dataset
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := c.deps.Store.List(gctx)
		if err != nil {
			return err
		}
		items = list
		return nil
	})
	if len(c.desc.Dependencies) > 0 {
		g.Go(func() error {
			ds, err := dataset.Load(gctx, c.deps.Sources, c.desc.Dependencies...)
			if err != nil {
				return err
			}
			related = ds
			return nil
		})
	}
	err := g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading--
	if c.closed {
		return ErrClosed
	}
	if err != nil {
		c.lastErr = err
		slog.Warn("controller_load_failed", "kind", c.desc.Kind, "error", err)
		return err
	}
	if gen < c.installed {
		slog.Debug("controller_load_stale", "kind", c.desc.Kind, "generation", gen)
		return nil
	}
	if items == nil {
		items = []E{}
	}
	c.items = items
	c.related = related
	c.installed = gen
	c.loaded = true
	slog.Debug("controller_loaded", "kind", c.desc.Kind, "count", len(items))
	return nil
}

// OpenCreate opens an empty create dialog with the kind's defaults. Any
// pending delete confirmation is dropped.
// PRE: no save or delete in progress
// POST: Dialog is open in create mode
func (c *Controller[E]) OpenCreate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkIdleLocked(); err != nil {
		return err
	}
	now := c.deps.Now()
	form := make(Form, len(c.desc.Fields))
	for _, f := range c.desc.Fields {
		if f.Default != nil {
			form[f.Name] = f.Default(now)
		} else {
			form[f.Name] = ""
		}
	}
	c.dialog = &Dialog{Mode: DialogCreate, Form: form}
	c.deleteTarget = ""
	return nil
}

// OpenEdit opens an edit dialog filled from the loaded record id.
// PRE: id is in the loaded list; no save or delete in progress
// POST: Dialog is open in edit mode targeting id
func (c *Controller[E]) OpenEdit(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkIdleLocked(); err != nil {
		return err
	}
	item, ok := c.findLocked(id)
	if !ok {
		return fmt.Errorf("%s %s: %w", c.desc.Kind, id, ErrUnknownRecord)
	}
	form := make(Form, len(c.desc.Fields))
	for _, f := range c.desc.Fields {
		form[f.Name] = ""
	}
	for k, v := range c.desc.ToForm(item) {
		form[k] = v
	}
	c.dialog = &Dialog{Mode: DialogEdit, TargetID: c.desc.ID(item), Form: form}
	c.deleteTarget = ""
	return nil
}

// SetField edits one value of the open form.
// PRE: a dialog is open and not saving; name is a field of the kind
// POST: The form holds value under name
func (c *Controller[E]) SetField(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dialog == nil {
		return ErrNoDialog
	}
	if c.saving {
		return ErrBusy
	}
	if _, ok := c.desc.Field(name); !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownField)
	}
	c.dialog.Form[name] = value
	return nil
}

// CanSave reports whether Save would be attempted: a dialog is open, no
// save is running and every required field is non-blank.
func (c *Controller[E]) CanSave() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialog != nil && !c.saving && len(missing(c.desc.Fields, c.dialog.Form)) == 0
}

// Save creates or updates the record of the open dialog, then reloads and
// closes the dialog. On a remote failure the dialog stays open.
// PRE: CanSave is true
// POST: The record is stored and the list reloaded, or the error is returned
func (c *Controller[E]) Save(ctx context.Context) (E, error) {
	var zero E

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return zero, ErrClosed
	}
	if c.dialog == nil {
		c.mu.Unlock()
		return zero, ErrNoDialog
	}
	if c.saving || c.toggling {
		c.mu.Unlock()
		return zero, ErrBusy
	}
	if names := missing(c.desc.Fields, c.dialog.Form); len(names) > 0 {
		c.mu.Unlock()
		return zero, fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(names, ", "))
	}
	payload, err := encode(c.desc.Fields, c.dialog.Form, c.deps.Store.ReferenceURL)
	if err != nil {
		c.mu.Unlock()
		return zero, err
	}
	mode, target := c.dialog.Mode, c.dialog.TargetID
	c.saving = true
	c.mu.Unlock()

	var rec E
	if mode == DialogCreate {
		rec, err = c.deps.Store.Create(ctx, payload)
	} else {
		rec, err = c.deps.Store.Update(ctx, target, payload)
	}

	c.mu.Lock()
	c.saving = false
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		slog.Warn("controller_save_failed", "kind", c.desc.Kind, "mode", mode, "error", err)
		return zero, err
	}
	c.dialog = nil
	c.lastErr = nil
	c.mu.Unlock()
	slog.Info("controller_event", "event", "record_saved", "kind", c.desc.Kind, "mode", mode, "id", c.desc.ID(rec))

	loadErr := c.Load(ctx)
	if mode == DialogCreate && c.deps.AfterCreate != nil {
		if hookErr := c.deps.AfterCreate(ctx, rec, c.Related()); hookErr != nil {
			slog.Warn("controller_after_create_failed", "kind", c.desc.Kind, "id", c.desc.ID(rec), "error", hookErr)
		}
	}
	if loadErr != nil {
		return rec, fmt.Errorf("%w after save: %w", ErrReloadFailed, loadErr)
	}
	return rec, nil
}

// CancelDialog closes the dialog without any remote effect.
// PRE: no save in progress
// POST: No dialog is open
func (c *Controller[E]) CancelDialog() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dialog == nil {
		return ErrNoDialog
	}
	if c.saving {
		return ErrBusy
	}
	c.dialog = nil
	return nil
}

// RequestDelete marks id for deletion pending confirmation. A newer request
// replaces the previous target; an open dialog is closed.
// PRE: id is in the loaded list; no save or delete in progress
// POST: The controller awaits ConfirmDelete or CancelDelete for id
func (c *Controller[E]) RequestDelete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkIdleLocked(); err != nil {
		return err
	}
	item, ok := c.findLocked(id)
	if !ok {
		return fmt.Errorf("%s %s: %w", c.desc.Kind, id, ErrUnknownRecord)
	}
	c.dialog = nil
	c.deleteTarget = c.desc.ID(item)
	return nil
}

// CancelDelete drops the pending delete without any remote effect.
// PRE: a delete is pending and not running
// POST: No delete is pending
func (c *Controller[E]) CancelDelete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteTarget == "" {
		return ErrNoDeleteTarget
	}
	if c.deleting {
		return ErrBusy
	}
	c.deleteTarget = ""
	return nil
}

// ConfirmDelete deletes the pending target and reloads. On a remote failure
// the confirmation stays pending.
// PRE: a delete is pending and not running
// POST: The record is removed and the list reloaded, or the error is returned
func (c *Controller[E]) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.deleteTarget == "" {
		c.mu.Unlock()
		return ErrNoDeleteTarget
	}
	if c.deleting || c.saving || c.toggling {
		c.mu.Unlock()
		return ErrBusy
	}
	target := c.deleteTarget
	c.deleting = true
	c.mu.Unlock()

	err := c.deps.Store.Delete(ctx, target)

	c.mu.Lock()
	c.deleting = false
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		slog.Warn("controller_delete_failed", "kind", c.desc.Kind, "id", target, "error", err)
		return err
	}
	if c.deleteTarget == target {
		c.deleteTarget = ""
	}
	c.lastErr = nil
	c.mu.Unlock()
	slog.Info("controller_event", "event", "record_deleted", "kind", c.desc.Kind, "id", target)

	if err := c.Load(ctx); err != nil {
		return fmt.Errorf("%w after delete: %w", ErrReloadFailed, err)
	}
	return nil
}

// Toggle flips the kind's boolean field of id with a single-field partial
// update and reloads. It bypasses the dialog. The controller reports saving
// during the update and refuses other mutations until the reload ends, so a
// second toggle always reads the flag the first one stored.
// PRE: the descriptor has a Toggle; id is in the loaded list; the controller is not busy
// POST: The stored flag is the negation of the loaded one
func (c *Controller[E]) Toggle(ctx context.Context, id string) (E, error) {
	var zero E
	if c.desc.Toggle == nil {
		return zero, fmt.Errorf("%s: %w", c.desc.Kind, ErrToggleUnsupported)
	}

	c.mu.Lock()
	if err := c.checkIdleLocked(); err != nil {
		c.mu.Unlock()
		return zero, err
	}
	item, ok := c.findLocked(id)
	if !ok {
		c.mu.Unlock()
		return zero, fmt.Errorf("%s %s: %w", c.desc.Kind, id, ErrUnknownRecord)
	}
	c.saving = true
	c.toggling = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.toggling = false
		c.mu.Unlock()
	}()

	next := !c.desc.Toggle.Get(item)
	rec, err := c.deps.Store.Update(ctx, c.desc.ID(item), map[string]any{c.desc.Toggle.Wire: next})

	c.mu.Lock()
	c.saving = false
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		slog.Warn("controller_toggle_failed", "kind", c.desc.Kind, "id", id, "error", err)
		return zero, err
	}
	c.lastErr = nil
	c.mu.Unlock()
	slog.Info("controller_event", "event", "record_toggled", "kind", c.desc.Kind, "id", id, "value", next)

	if err := c.Load(ctx); err != nil {
		return rec, fmt.Errorf("%w after toggle: %w", ErrReloadFailed, err)
	}
	return rec, nil
}

// Filter returns the loaded records whose search text contains query,
// ignoring case. A blank query matches everything. It never reloads.
func (c *Controller[E]) Filter(query string) []E {
	c.mu.Lock()
	items, related := c.items, c.related
	c.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]E, 0, len(items))
	for _, item := range items {
		if q == "" || matches(c.desc.SearchText(item, related), q) {
			out = append(out, item)
		}
	}
	return out
}

func matches(texts []string, q string) bool {
	for _, t := range texts {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// Items returns a copy of the loaded list.
func (c *Controller[E]) Items() []E {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]E(nil), c.items...)
}

// Get returns the loaded record id.
func (c *Controller[E]) Get(id string) (E, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findLocked(id)
}

// Related returns the dependency lists installed with the last load.
func (c *Controller[E]) Related() dataset.Dataset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.related
}

// Loaded reports whether any load has completed.
func (c *Controller[E]) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// State returns the current lifecycle position.
func (c *Controller[E]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.saving:
		return StateSaving
	case c.deleting:
		return StateDeleting
	case c.dialog != nil:
		return StateDialogOpen
	case c.deleteTarget != "":
		return StateDeleteConfirm
	case c.loading > 0:
		return StateLoading
	}
	return StateIdle
}

// Dialog returns a snapshot of the open dialog.
func (c *Controller[E]) Dialog() (Dialog, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dialog == nil {
		return Dialog{}, false
	}
	d := *c.dialog
	d.Form = d.Form.clone()
	return d, true
}

// DeleteTarget returns the id pending deletion, or "".
func (c *Controller[E]) DeleteTarget() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteTarget
}

// Describe names the record id for a confirmation prompt.
func (c *Controller[E]) Describe(id string) string {
	c.mu.Lock()
	item, ok := c.findLocked(id)
	related := c.related
	c.mu.Unlock()
	if !ok || c.desc.Describe == nil {
		return reference.Placeholder
	}
	return c.desc.Describe(item, related)
}

// LastError returns the error of the most recent failed remote call, cleared
// by the next successful mutation.
func (c *Controller[E]) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close tears the controller down. Loads completing afterwards are dropped
// and every mutation returns ErrClosed.
func (c *Controller[E]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.dialog = nil
	c.deleteTarget = ""
}

func (c *Controller[E]) checkIdleLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.saving || c.deleting || c.toggling {
		return ErrBusy
	}
	return nil
}

func (c *Controller[E]) findLocked(id string) (E, bool) {
	return reference.Find(id, c.items, c.desc.ID)
}
