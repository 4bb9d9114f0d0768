package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"courseadmin/internal/domain/reference"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 32 << 20

// Fields is a (possibly partial) field mapping written to the store.
type Fields = map[string]any

// RawRecord is a record as returned by the store, before decoding.
type RawRecord struct {
	ID     string
	Fields map[string]json.RawMessage
}

// wireRecord matches both {"record_id": ...} and {"id": ...} envelopes.
type wireRecord struct {
	RecordID string                     `json:"record_id,omitempty"`
	ID       string                     `json:"id,omitempty"`
	Fields   map[string]json.RawMessage `json:"fields"`
}

func (w wireRecord) raw(fallbackID string) RawRecord {
	id := w.RecordID
	if id == "" {
		id = w.ID
	}
	if id == "" {
		id = fallbackID
	}
	fields := w.Fields
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	return RawRecord{ID: id, Fields: fields}
}

type writeBody struct {
	Fields Fields `json:"fields"`
}

// Options configures a Client.
type Options struct {
	BaseURL    string                    // e.g. https://my.example.com/rest
	APIKey     string                    // optional, sent as X-API-Key
	AppIDs     map[reference.Kind]string // namespace id per entity kind
	HTTPClient *http.Client              // optional
	Metrics    *Metrics                  // optional
}

// Client talks to the hosted record API. It never retries and never
// suppresses errors; callers decide how to surface them.
type Client struct {
	baseURL string
	apiKey  string
	apps    map[reference.Kind]string
	http    *http.Client
	metrics *Metrics
}

// NewClient validates opts and returns a client.
// PRE: opts.BaseURL is an absolute URL; every kind has a 24-hex app id
// POST: Returns a ready client or a configuration error
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("record store base URL %q must be absolute", opts.BaseURL)
	}
	apps := make(map[reference.Kind]string, len(reference.Kinds))
	for _, k := range reference.Kinds {
		id := opts.AppIDs[k]
		if !reference.IsID(id) {
			return nil, fmt.Errorf("app id for %s must be 24 hex characters, got %q", k, id)
		}
		apps[k] = strings.ToLower(id)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{baseURL: base, apiKey: opts.APIKey, apps: apps, http: hc, metrics: opts.Metrics}, nil
}

// AppID returns the namespace id of kind.
func (c *Client) AppID(kind reference.Kind) string {
	return c.apps[kind]
}

// ReferenceURL builds the URL written into a reference field.
// PRE: kind is valid; id is a record identifier
// POST: Returns {base}/apps/{app}/records/{id}
func (c *Client) ReferenceURL(kind reference.Kind, id string) string {
	return c.collectionURL(kind) + "/" + id
}

func (c *Client) collectionURL(kind reference.Kind) string {
	return c.baseURL + "/apps/" + c.apps[kind] + "/records"
}

func (c *Client) listRecords(ctx context.Context, kind reference.Kind) ([]RawRecord, error) {
	var body json.RawMessage
	if err := c.do(ctx, kind, "list", http.MethodGet, c.collectionURL(kind), nil, &body); err != nil {
		return nil, err
	}
	return decodeList(body)
}

func (c *Client) createRecord(ctx context.Context, kind reference.Kind, fields Fields) (RawRecord, error) {
	var w wireRecord
	if err := c.do(ctx, kind, "create", http.MethodPost, c.collectionURL(kind), writeBody{Fields: fields}, &w); err != nil {
		return RawRecord{}, err
	}
	rec := w.raw("")
	if rec.ID == "" {
		return RawRecord{}, fmt.Errorf("%s create: %w", kind, ErrNoRecordID)
	}
	if len(w.Fields) == 0 {
		rec.Fields = rawFields(fields)
	}
	return rec, nil
}

func (c *Client) updateRecord(ctx context.Context, kind reference.Kind, id string, fields Fields) (RawRecord, error) {
	var w wireRecord
	target := c.collectionURL(kind) + "/" + url.PathEscape(id)
	if err := c.do(ctx, kind, "update", http.MethodPatch, target, writeBody{Fields: fields}, &w); err != nil {
		return RawRecord{}, err
	}
	rec := w.raw(id)
	if len(w.Fields) == 0 {
		rec.Fields = rawFields(fields)
	}
	return rec, nil
}

func (c *Client) deleteRecord(ctx context.Context, kind reference.Kind, id string) error {
	target := c.collectionURL(kind) + "/" + url.PathEscape(id)
	return c.do(ctx, kind, "delete", http.MethodDelete, target, nil, nil)
}

// do performs one call and decodes a JSON answer into out when present.
func (c *Client) do(ctx context.Context, kind reference.Kind, op, method, target string, in, out any) error {
	start := time.Now()

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: encode request: %w", kind, op, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", kind, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observe(kind, op, "error", start)
		slog.Warn("record_request_failed", "kind", kind, "op", op, "error", err)
		return fmt.Errorf("%s %s: %w", kind, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.observe(kind, op, "error", start)
		return fmt.Errorf("%s %s: read response: %w", kind, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.observe(kind, op, "rejected", start)
		slog.Warn("record_request_rejected", "kind", kind, "op", op, "status", resp.StatusCode)
		return &RemoteError{Kind: kind, Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	c.metrics.observe(kind, op, "ok", start)
	slog.Debug("record_request", "kind", kind, "op", op, "status", resp.StatusCode,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0)

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", kind, op, err)
	}
	return nil
}

// decodeList accepts a JSON array of records or an object keyed by record id.
func decodeList(body json.RawMessage) ([]RawRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []wireRecord
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode record list: %w", err)
		}
		out := make([]RawRecord, 0, len(items))
		for _, w := range items {
			out = append(out, w.raw(""))
		}
		return out, nil
	}
	var keyed map[string]wireRecord
	if err := json.Unmarshal(trimmed, &keyed); err != nil {
		return nil, fmt.Errorf("decode record map: %w", err)
	}
	ids := make([]string, 0, len(keyed))
	for id := range keyed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]RawRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, keyed[id].raw(id))
	}
	return out, nil
}

func rawFields(fields Fields) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(fields))
	for name, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		out[name] = b
	}
	return out
}

// errorMessage pulls a human-readable message out of an error body.
func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// IsNotFound reports whether err is a not-found answer from the store.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
