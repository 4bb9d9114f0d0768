package projections

import (
	"context"
	"math"
	"sort"
	"time"

	"courseadmin/internal/application/dataset"
	"courseadmin/internal/domain/course"
	"courseadmin/internal/domain/enrollment"
	"courseadmin/internal/domain/room"
)

// RecentLimit is the number of enrollments in the recency feed.
const RecentLimit = 6

// ActiveCourseCount counts courses in the active state.
func ActiveCourseCount(courses []course.Course) int {
	n := 0
	for _, c := range courses {
		if c.Status == course.StatusActive {
			n++
		}
	}
	return n
}

// PaidCount counts paid enrollments.
func PaidCount(enrollments []enrollment.Enrollment) int {
	n := 0
	for _, e := range enrollments {
		if e.Paid {
			n++
		}
	}
	return n
}

// UnpaidCount counts unpaid enrollments. PaidCount + UnpaidCount is always
// the number of enrollments.
func UnpaidCount(enrollments []enrollment.Enrollment) int {
	return len(enrollments) - PaidCount(enrollments)
}

// TotalRevenue sums the price of the resolved course over paid enrollments.
// A course without a price counts as 0; an unresolved course contributes
// nothing.
// PRE: ds holds courses and enrollments
// POST: Returns a non-negative sum for non-negative prices
func TotalRevenue(ds dataset.Dataset) float64 {
	total := 0.0
	for _, e := range ds.Enrollments {
		if !e.Paid {
			continue
		}
		if c, ok := ds.Course(e.Course); ok {
			total += c.PriceOrZero()
		}
	}
	return total
}

// PayRate returns the share of paid enrollments. ok is false when there are
// no enrollments, so callers never divide by zero.
func PayRate(enrollments []enrollment.Enrollment) (rate float64, ok bool) {
	if len(enrollments) == 0 {
		return 0, false
	}
	return float64(PaidCount(enrollments)) / float64(len(enrollments)), true
}

// StatusBucket is one bar of the course status histogram.
type StatusBucket struct {
	Status course.Status `json:"status"`
	Label  string        `json:"label"`
	Count  int           `json:"count"`
	Share  float64       `json:"share"` // of all courses; 0 when there are none
}

// StatusHistogram counts courses per state in the fixed display order.
// PRE: none
// POST: Counts sum to len(courses); every share is within [0,1]
func StatusHistogram(courses []course.Course) []StatusBucket {
	counts := make(map[course.Status]int, len(course.Statuses))
	for _, c := range courses {
		counts[course.ParseStatus(string(c.Status))]++
	}
	out := make([]StatusBucket, 0, len(course.Statuses))
	for _, s := range course.Statuses {
		b := StatusBucket{Status: s, Label: s.Label(), Count: counts[s]}
		if len(courses) > 0 {
			b.Share = float64(b.Count) / float64(len(courses))
		}
		out = append(out, b)
	}
	return out
}

// RecentEnrollment is one entry of the recency feed.
type RecentEnrollment struct {
	ID           string    `json:"id"`
	Participant  string    `json:"participant"`
	Course       string    `json:"course"`
	RegisteredOn time.Time `json:"registered_on"`
	Paid         bool      `json:"paid"`
}

// RecentEnrollments returns at most n enrollments, newest registration first.
// A missing registration date sorts as the Unix epoch.
func RecentEnrollments(ds dataset.Dataset, n int) []RecentEnrollment {
	sorted := append([]enrollment.Enrollment(nil), ds.Enrollments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SortKey().After(sorted[j].SortKey())
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]RecentEnrollment, 0, len(sorted))
	for _, e := range sorted {
		out = append(out, RecentEnrollment{
			ID:           e.ID,
			Participant:  ds.ParticipantName(e.Participant),
			Course:       ds.CourseTitle(e.Course),
			RegisteredOn: e.RegisteredOn,
			Paid:         e.Paid,
		})
	}
	return out
}

// LoadBand classifies a room's relative size.
type LoadBand string

// Load bands.
const (
	BandLow    LoadBand = "low"
	BandMedium LoadBand = "medium"
	BandHigh   LoadBand = "high"
)

// Occupancy is a room's capacity relative to the largest room.
type Occupancy struct {
	RoomID   string   `json:"room_id"`
	Name     string   `json:"name"`
	Building string   `json:"building,omitempty"`
	Capacity int      `json:"capacity"`
	Ratio    float64  `json:"ratio"`
	Percent  int      `json:"percent"`
	Band     LoadBand `json:"band"`
}

// RoomOccupancy relates each room's capacity to max(capacity over rooms, 1).
// PRE: none
// POST: One entry per room in input order; ratios within [0,1] for non-negative capacities
func RoomOccupancy(rooms []room.Room) []Occupancy {
	largest := 1
	for _, r := range rooms {
		if c := r.CapacityOrZero(); c > largest {
			largest = c
		}
	}
	out := make([]Occupancy, 0, len(rooms))
	for _, r := range rooms {
		ratio := float64(r.CapacityOrZero()) / float64(largest)
		pct := int(math.Round(ratio * 100))
		out = append(out, Occupancy{
			RoomID:   r.ID,
			Name:     r.Name,
			Building: r.Building,
			Capacity: r.CapacityOrZero(),
			Ratio:    ratio,
			Percent:  pct,
			Band:     bandFor(pct),
		})
	}
	return out
}

func bandFor(pct int) LoadBand {
	switch {
	case pct <= 50:
		return BandLow
	case pct <= 80:
		return BandMedium
	}
	return BandHigh
}

// DashboardResult carries the output of the dashboard projection.
type DashboardResult struct {
	CourseCount      int `json:"course_count"`
	ActiveCourses    int `json:"active_courses"`
	InstructorCount  int `json:"instructor_count"`
	ParticipantCount int `json:"participant_count"`
	RoomCount        int `json:"room_count"`
	EnrollmentCount  int `json:"enrollment_count"`
	PaidCount        int `json:"paid_count"`
	UnpaidCount      int `json:"unpaid_count"`

	TotalRevenue float64 `json:"total_revenue"`
	// PayRate is nil when there are no enrollments.
	PayRate        *float64 `json:"pay_rate"`
	PayRatePercent *int     `json:"pay_rate_percent"`

	StatusHistogram []StatusBucket     `json:"status_histogram"`
	Recent          []RecentEnrollment `json:"recent_enrollments"`
	Occupancy       []Occupancy        `json:"room_occupancy"`
}

// QueryGetDashboard computes every dashboard figure from one snapshot.
// PRE: ds holds all five lists
// POST: Returns figures derived only from ds; no I/O
func QueryGetDashboard(ds dataset.Dataset) DashboardResult {
	res := DashboardResult{
		CourseCount:      len(ds.Courses),
		ActiveCourses:    ActiveCourseCount(ds.Courses),
		InstructorCount:  len(ds.Instructors),
		ParticipantCount: len(ds.Participants),
		RoomCount:        len(ds.Rooms),
		EnrollmentCount:  len(ds.Enrollments),
		PaidCount:        PaidCount(ds.Enrollments),
		UnpaidCount:      UnpaidCount(ds.Enrollments),
		TotalRevenue:     TotalRevenue(ds),
		StatusHistogram:  StatusHistogram(ds.Courses),
		Recent:           RecentEnrollments(ds, RecentLimit),
		Occupancy:        RoomOccupancy(ds.Rooms),
	}
	if rate, ok := PayRate(ds.Enrollments); ok {
		pct := int(math.Round(rate * 100))
		res.PayRate = &rate
		res.PayRatePercent = &pct
	}
	return res
}

// GetDashboardDeps holds dependencies for the dashboard projection.
type GetDashboardDeps struct {
	Sources dataset.Sources
}

// LoadDashboard fetches all five lists concurrently and computes the dashboard.
// PRE: deps.Sources has a lister for every kind
// POST: Returns the dashboard, or the first load error
func LoadDashboard(ctx context.Context, deps GetDashboardDeps) (DashboardResult, error) {
	ds, err := dataset.Load(ctx, deps.Sources)
	if err != nil {
		return DashboardResult{}, err
	}
	return QueryGetDashboard(ds), nil
}
