// Package recordapi serves the hosted record protocol from a local store,
// so the admin tool can run and be tested without the remote service.
package recordapi

import (
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	recordStore "courseadmin/internal/adapters/storage/record"
	domain "courseadmin/internal/domain/record"
)

// PathPrefix is where the protocol is mounted; clients use {host}/rest as base URL.
const PathPrefix = "/rest"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Options configures the emulator handler.
type Options struct {
	APIKey    string           // when set, X-API-Key must match
	AccessLog io.Writer        // optional combined access log
	Now       func() time.Time // optional clock
}

// Server answers record API calls from a Store.
type Server struct {
	store  recordStore.Store
	apiKey string
	now    func() time.Time
}

// recordBody is the wire envelope of one record.
type recordBody struct {
	RecordID   string         `json:"record_id"`
	Fields     map[string]any `json:"fields"`
	CreateDate string         `json:"createdate,omitempty"`
	UpdateDate string         `json:"updatedate,omitempty"`
}

type writeBody struct {
	Fields map[string]any `json:"fields"`
}

// NewHandler returns the routed emulator.
// PRE: store is non-nil
// POST: Returns a handler serving PathPrefix/apps/{app}/records[/{id}]
func NewHandler(store recordStore.Store, opts Options) http.Handler {
	s := &Server{store: store, apiKey: opts.APIKey, now: opts.Now}
	if s.now == nil {
		s.now = time.Now
	}

	router := mux.NewRouter()
	api := router.PathPrefix(PathPrefix).Subrouter()
	api.Use(s.requireKey)

	records := "/apps/{app:[0-9a-fA-F]{24}}/records"
	record := records + "/{id:[0-9a-fA-F]{24}}"
	api.HandleFunc(records, s.handleList).Methods(http.MethodGet)
	api.HandleFunc(records, s.handleCreate).Methods(http.MethodPost)
	api.HandleFunc(record, s.handleGet).Methods(http.MethodGet)
	api.HandleFunc(record, s.handleUpdate).Methods(http.MethodPatch, http.MethodPut)
	api.HandleFunc(record, s.handleDelete).Methods(http.MethodDelete)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	var h http.Handler = router
	if opts.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(opts.AccessLog, h)
	}
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
}

// requireKey rejects calls without the configured API key.
func (s *Server) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("X-API-Key")), []byte(s.apiKey)) != 1 {
			slog.Warn("emulator_unauthorized", "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleList handles GET /apps/{app}/records
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	app := strings.ToLower(mux.Vars(r)["app"])
	recs, err := s.store.List(r.Context(), app)
	if err != nil {
		internalError(w, err)
		return
	}
	out := make([]recordBody, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toBody(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreate handles POST /apps/{app}/records
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeWrite(w, r)
	if !ok {
		return
	}
	now := s.now().UTC()
	rec := domain.Record{
		AppID:     strings.ToLower(mux.Vars(r)["app"]),
		ID:        newRecordID(),
		Fields:    map[string]any{},
		CreatedAt: now,
	}
	rec.Merge(body.Fields, now)
	if err := rec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.Save(r.Context(), rec); err != nil {
		internalError(w, err)
		return
	}
	slog.Info("emulator_event", "event", "record_created", "app_id", rec.AppID, "record_id", rec.ID)
	writeJSON(w, http.StatusOK, toBody(rec))
}

// handleGet handles GET /apps/{app}/records/{id}
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toBody(rec))
}

// handleUpdate handles PATCH (merge) and PUT (replace) on one record.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeWrite(w, r)
	if !ok {
		return
	}
	rec, ok := s.load(w, r)
	if !ok {
		return
	}
	if r.Method == http.MethodPut {
		rec.Fields = map[string]any{}
	}
	rec.Merge(body.Fields, s.now().UTC())
	if err := rec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.Save(r.Context(), rec); err != nil {
		internalError(w, err)
		return
	}
	slog.Info("emulator_event", "event", "record_updated", "app_id", rec.AppID, "record_id", rec.ID)
	writeJSON(w, http.StatusOK, toBody(rec))
}

// handleDelete handles DELETE /apps/{app}/records/{id}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	app, id := strings.ToLower(vars["app"]), strings.ToLower(vars["id"])
	err := s.store.Delete(r.Context(), app, id)
	if errors.Is(err, recordStore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	slog.Info("emulator_event", "event", "record_deleted", "app_id", app, "record_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// load fetches the record named by the path, answering 404 when absent.
func (s *Server) load(w http.ResponseWriter, r *http.Request) (domain.Record, bool) {
	vars := mux.Vars(r)
	rec, err := s.store.GetByID(r.Context(), strings.ToLower(vars["app"]), strings.ToLower(vars["id"]))
	if errors.Is(err, recordStore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return domain.Record{}, false
	}
	if err != nil {
		internalError(w, err)
		return domain.Record{}, false
	}
	return rec, true
}

func decodeWrite(w http.ResponseWriter, r *http.Request) (writeBody, bool) {
	var body writeBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return writeBody{}, false
	}
	if body.Fields == nil {
		writeError(w, http.StatusBadRequest, "fields are required")
		return writeBody{}, false
	}
	return body, true
}

// newRecordID returns 24 lowercase hex characters. Bytes 6 to 9 of a v4
// UUID carry the version and variant bits, so only the random bytes are used.
func newRecordID() string {
	u := uuid.New()
	var id [12]byte
	copy(id[:6], u[:6])
	copy(id[6:], u[10:])
	return hex.EncodeToString(id[:])
}

func toBody(rec domain.Record) recordBody {
	return recordBody{
		RecordID:   rec.ID,
		Fields:     rec.Fields,
		CreateDate: rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdateDate: rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	writeError(w, http.StatusInternalServerError, "internal server error")
}
