package course_test

import (
	"testing"

	"courseadmin/internal/domain/course"
)

func ptrFloat(f float64) *float64 { return &f }

// TestParseStatus covers domain names, stored values and fallback.
func TestParseStatus(t *testing.T) {
	tests := map[string]course.Status{
		"active":    course.StatusActive,
		"aktiv":     course.StatusActive,
		" Abgesagt": course.StatusCancelled,
		"completed": course.StatusCompleted,
		"":          course.StatusPlanned,
		"unknown":   course.StatusPlanned,
	}
	for in, want := range tests {
		if got := course.ParseStatus(in); got != want {
			t.Errorf("ParseStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestLookupStatus reports unknown input instead of falling back.
func TestLookupStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   course.Status
		wantOK bool
	}{
		{"aktiv", course.StatusActive, true},
		{"Cancelled", course.StatusCancelled, true},
		{"geplant", course.StatusPlanned, true},
		{"bogus", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := course.LookupStatus(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("LookupStatus(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

// TestStatus_WireAndLabel verifies the stored value and label of each state.
func TestStatus_WireAndLabel(t *testing.T) {
	if course.StatusCompleted.WireValue() != "abgeschlossen" {
		t.Errorf("wire = %q", course.StatusCompleted.WireValue())
	}
	if course.Status("bogus").WireValue() != "geplant" {
		t.Error("unknown status should encode as planned")
	}
	if course.StatusActive.Label() != "Aktiv" {
		t.Errorf("label = %q", course.StatusActive.Label())
	}
}

// TestPriceOrZero treats an absent price as zero.
func TestPriceOrZero(t *testing.T) {
	if (course.Course{}).PriceOrZero() != 0 {
		t.Error("absent price should be 0")
	}
	if (course.Course{Price: ptrFloat(99.5)}).PriceOrZero() != 99.5 {
		t.Error("price should be returned")
	}
}
