package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"courseadmin/internal/domain/course"
	"courseadmin/internal/domain/reference"
)

const (
	testCourseApp     = "aaaaaaaaaaaaaaaaaaaaaa01"
	testInstructorApp = "aaaaaaaaaaaaaaaaaaaaaa02"
	testRoomApp       = "aaaaaaaaaaaaaaaaaaaaaa04"
	testCourseID      = "65a1b2c3d4e5f6a7b8c9d0e1"
	testRoomID        = "65a1b2c3d4e5f6a7b8c9d0f4"
)

func testAppIDs() map[reference.Kind]string {
	return map[reference.Kind]string{
		reference.KindCourse:      testCourseApp,
		reference.KindInstructor:  testInstructorApp,
		reference.KindParticipant: "aaaaaaaaaaaaaaaaaaaaaa03",
		reference.KindRoom:        testRoomApp,
		reference.KindEnrollment:  "aaaaaaaaaaaaaaaaaaaaaa05",
	}
}

type capturedRequest struct {
	Method string
	Path   string
	APIKey string
	Body   map[string]any
}

// newTestServer answers every call with status and body and records the request.
func newTestServer(t *testing.T, status int, body string, seen *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Method = r.Method
		seen.Path = r.URL.Path
		seen.APIKey = r.Header.Get("X-API-Key")
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &seen.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string, metrics *Metrics) *Client {
	t.Helper()
	c, err := NewClient(Options{BaseURL: baseURL + "/rest/", APIKey: "secret", AppIDs: testAppIDs(), Metrics: metrics})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

// TestNewClient_RejectsBadOptions verifies configuration errors are reported up front.
func TestNewClient_RejectsBadOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"relative base", Options{BaseURL: "/rest", AppIDs: testAppIDs()}},
		{"empty base", Options{BaseURL: "", AppIDs: testAppIDs()}},
		{"missing app ids", Options{BaseURL: "http://example.com/rest"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(tt.opts); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

// TestClient_ReferenceURL verifies reference URLs embed the kind's app id and the record id.
func TestClient_ReferenceURL(t *testing.T) {
	c := newTestClient(t, "http://example.com", nil)
	got := c.ReferenceURL(reference.KindRoom, testRoomID)
	want := "http://example.com/rest/apps/" + testRoomApp + "/records/" + testRoomID
	if got != want {
		t.Errorf("ReferenceURL = %q, want %q", got, want)
	}
	if reference.ExtractID(got) != testRoomID {
		t.Errorf("ExtractID(ReferenceURL) = %q", reference.ExtractID(got))
	}
}

// TestCollection_ListAcceptsArrayAndMap verifies both list shapes decode to the same courses.
func TestCollection_ListAcceptsArrayAndMap(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"array", `[{"record_id":"` + testCourseID + `","fields":{"titel":"Yoga","preis":"100","status":"aktiv"}}]`},
		{"keyed map", `{"` + testCourseID + `":{"fields":{"titel":"Yoga","preis":100,"status":"aktiv"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen capturedRequest
			srv := newTestServer(t, http.StatusOK, tt.body, &seen)
			courses, err := Courses(newTestClient(t, srv.URL, nil)).List(context.Background())
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if seen.Method != http.MethodGet || seen.Path != "/rest/apps/"+testCourseApp+"/records" {
				t.Errorf("request = %s %s", seen.Method, seen.Path)
			}
			if seen.APIKey != "secret" {
				t.Errorf("X-API-Key = %q, want secret", seen.APIKey)
			}
			if len(courses) != 1 {
				t.Fatalf("got %d courses, want 1", len(courses))
			}
			c := courses[0]
			if c.ID != testCourseID || c.Title != "Yoga" || c.Status != course.StatusActive {
				t.Errorf("course = %+v", c)
			}
			if c.PriceOrZero() != 100 {
				t.Errorf("price = %v, want 100", c.PriceOrZero())
			}
		})
	}
}

// TestCollection_ListEmpty verifies an empty or null body yields no records.
func TestCollection_ListEmpty(t *testing.T) {
	for _, body := range []string{"[]", "{}", "null", ""} {
		var seen capturedRequest
		srv := newTestServer(t, http.StatusOK, body, &seen)
		rooms, err := Rooms(newTestClient(t, srv.URL, nil)).List(context.Background())
		if err != nil {
			t.Fatalf("List(%q): %v", body, err)
		}
		if len(rooms) != 0 {
			t.Errorf("List(%q) returned %d rooms", body, len(rooms))
		}
	}
}

// TestCollection_CreateSendsFieldsEnvelope verifies create posts {"fields":...} and returns the new id.
func TestCollection_CreateSendsFieldsEnvelope(t *testing.T) {
	var seen capturedRequest
	srv := newTestServer(t, http.StatusCreated, `{"record_id":"`+testRoomID+`"}`, &seen)
	r, err := Rooms(newTestClient(t, srv.URL, nil)).Create(context.Background(), Fields{"raumname": "Studio", "kapazitaet": 12})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if seen.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", seen.Method)
	}
	fields, ok := seen.Body["fields"].(map[string]any)
	if !ok || fields["raumname"] != "Studio" {
		t.Errorf("body = %v", seen.Body)
	}
	if r.ID != testRoomID || r.Name != "Studio" || r.CapacityOrZero() != 12 {
		t.Errorf("room = %+v", r)
	}
}

// TestCollection_CreateWithoutID verifies a response without an id is an error.
func TestCollection_CreateWithoutID(t *testing.T) {
	var seen capturedRequest
	srv := newTestServer(t, http.StatusOK, `{"fields":{}}`, &seen)
	_, err := Rooms(newTestClient(t, srv.URL, nil)).Create(context.Background(), Fields{"raumname": "Studio"})
	if !errors.Is(err, ErrNoRecordID) {
		t.Errorf("err = %v, want ErrNoRecordID", err)
	}
}

// TestCollection_UpdateIsPartialPatch verifies update only sends the given fields.
func TestCollection_UpdateIsPartialPatch(t *testing.T) {
	var seen capturedRequest
	srv := newTestServer(t, http.StatusOK, "", &seen)
	enr, err := Enrollments(newTestClient(t, srv.URL, nil)).Update(context.Background(), testCourseID, Fields{"bezahlt": true})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if seen.Method != http.MethodPatch || !strings.HasSuffix(seen.Path, "/records/"+testCourseID) {
		t.Errorf("request = %s %s", seen.Method, seen.Path)
	}
	fields := seen.Body["fields"].(map[string]any)
	if len(fields) != 1 || fields["bezahlt"] != true {
		t.Errorf("fields = %v, want only bezahlt", fields)
	}
	if enr.ID != testCourseID || !enr.Paid {
		t.Errorf("enrollment = %+v", enr)
	}
}

// TestCollection_DeleteNotFound verifies a 404 surfaces as ErrNotFound inside a RemoteError.
func TestCollection_DeleteNotFound(t *testing.T) {
	var seen capturedRequest
	srv := newTestServer(t, http.StatusNotFound, `{"error":"no such record"}`, &seen)
	err := Courses(newTestClient(t, srv.URL, nil)).Delete(context.Background(), testCourseID)
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("err = %T, want *RemoteError", err)
	}
	if remote.StatusCode != http.StatusNotFound || remote.Message != "no such record" || remote.Op != "delete" {
		t.Errorf("remote = %+v", remote)
	}
	if seen.Method != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", seen.Method)
	}
}

// TestCollection_ServerErrorIsNotNotFound verifies other failures do not match ErrNotFound.
func TestCollection_ServerErrorIsNotNotFound(t *testing.T) {
	var seen capturedRequest
	srv := newTestServer(t, http.StatusInternalServerError, "boom", &seen)
	_, err := Instructors(newTestClient(t, srv.URL, nil)).List(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if IsNotFound(err) {
		t.Error("500 must not be reported as not found")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error %q does not carry the body", err)
	}
}

// TestClient_Metrics verifies every call is counted by outcome.
func TestClient_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	var seen capturedRequest
	ok := newTestServer(t, http.StatusOK, "[]", &seen)
	bad := newTestServer(t, http.StatusBadGateway, "", &seen)

	_, _ = Courses(newTestClient(t, ok.URL, m)).List(context.Background())
	_, _ = Courses(newTestClient(t, ok.URL, m)).List(context.Background())
	_, _ = Courses(newTestClient(t, bad.URL, m)).List(context.Background())

	if got := testutil.ToFloat64(m.requests.WithLabelValues("courses", "list", "ok")); got != 2 {
		t.Errorf("ok count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("courses", "list", "rejected")); got != 1 {
		t.Errorf("rejected count = %v, want 1", got)
	}
}
