package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qrattend/internal/metrics"
	"qrattend/internal/model"
	"qrattend/internal/token"
)

var (
	// ErrStudentNotFound means the scanned id resolves to no student.
	ErrStudentNotFound = errors.New("attendance: student not found")
	// ErrActivityNotFound means the target activity does not exist.
	ErrActivityNotFound = errors.New("attendance: activity not found")
)

// Outcome is the result of a record-attendance attempt. A duplicate is a
// normal outcome, not an error.
type Outcome int

const (
	// Recorded means a new attendance record was created.
	Recorded Outcome = iota
	// AlreadyRecorded means the pair already had a record; nothing changed.
	AlreadyRecorded
)

// Ledger is the attendance store the service writes to and reports from.
type Ledger interface {
	Find(ctx context.Context, studentID, activityID int64) (*model.AttendanceRecord, error)
	Insert(ctx context.Context, studentID, activityID, scannedBy int64) (model.AttendanceRecord, error)
	ListByActivity(ctx context.Context, activityID int64) ([]model.AttendanceRecord, error)
	Filtered(ctx context.Context, f Filter) ([]model.AttendanceRecord, error)
	DailySeries(ctx context.Context, since time.Time) ([]DayCount, error)
	Count(ctx context.Context) (int64, error)
	CountByActivity(ctx context.Context, activityID int64) (int64, error)
}

// StudentDirectory resolves students. Get returns nil when unknown.
type StudentDirectory interface {
	Get(ctx context.Context, id int64) (*model.Student, error)
	Count(ctx context.Context) (int64, error)
}

// ActivityDirectory resolves activities. Get returns nil when unknown.
type ActivityDirectory interface {
	Get(ctx context.Context, id int64) (*model.Activity, error)
	Count(ctx context.Context) (int64, error)
	Recent(ctx context.Context, limit int) ([]model.Activity, error)
	OngoingAt(ctx context.Context, now time.Time) ([]model.Activity, error)
}

// StatsCache caches dashboard counters. Implementations are best-effort; a
// miss just means a database count.
type StatsCache interface {
	GetCount(ctx context.Context, key string) (int64, bool)
	SetCount(ctx context.Context, key string, n int64, ttl time.Duration)
}

// Service coordinates scan handling, the ledger, and reporting.
type Service struct {
	ledger     Ledger
	students   StudentDirectory
	activities ActivityDirectory
	cache      StatsCache
	cacheTTL   time.Duration
}

// NewService creates a service. cache may be nil.
func NewService(ledger Ledger, students StudentDirectory, activities ActivityDirectory, cache StatsCache, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Service{ledger: ledger, students: students, activities: activities, cache: cache, cacheTTL: cacheTTL}
}

// RecordAttendance records one student at one activity, at most once. The
// pre-check keeps the common duplicate path cheap; the unique index settles
// concurrent scans, with the loser surfacing as AlreadyRecorded too.
func (s *Service) RecordAttendance(ctx context.Context, studentID, activityID, scannerID int64) (Outcome, *model.AttendanceRecord, error) {
	st, err := s.students.Get(ctx, studentID)
	if err != nil {
		return 0, nil, err
	}
	if st == nil {
		return 0, nil, ErrStudentNotFound
	}
	act, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return 0, nil, err
	}
	if act == nil {
		return 0, nil, ErrActivityNotFound
	}

	existing, err := s.ledger.Find(ctx, studentID, activityID)
	if err != nil {
		return 0, nil, err
	}
	if existing != nil {
		return AlreadyRecorded, existing, nil
	}

	rec, err := s.ledger.Insert(ctx, studentID, activityID, scannerID)
	if err == ErrDuplicatePair {
		existing, ferr := s.ledger.Find(ctx, studentID, activityID)
		if ferr != nil {
			return 0, nil, ferr
		}
		return AlreadyRecorded, existing, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return Recorded, &rec, nil
}

// ScannedStudent echoes the student back to the scanning client.
type ScannedStudent struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
}

// ScanResult is the structured response to a scan submission.
type ScanResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Student *ScannedStudent `json:"student,omitempty"`
}

// Scan handles a raw scanned payload for an activity: decode, resolve, and
// record. Validation and not-found failures come back as unsuccessful
// results; the returned error is reserved for storage faults.
func (s *Service) Scan(ctx context.Context, activityID int64, rawPayload string, scannerID int64) (ScanResult, error) {
	dec, err := token.Decode(rawPayload)
	switch err {
	case nil:
	case token.ErrMissingField:
		metrics.Scans.WithLabelValues("rejected").Inc()
		return ScanResult{Message: "Student ID missing in QR code"}, nil
	default:
		metrics.Scans.WithLabelValues("rejected").Inc()
		return ScanResult{Message: "Invalid QR code format"}, nil
	}

	outcome, _, err := s.RecordAttendance(ctx, dec.ID, activityID, scannerID)
	switch err {
	case nil:
	case ErrStudentNotFound:
		metrics.Scans.WithLabelValues("rejected").Inc()
		return ScanResult{Message: "Student not found"}, nil
	case ErrActivityNotFound:
		metrics.Scans.WithLabelValues("rejected").Inc()
		return ScanResult{Message: "Activity not found"}, nil
	default:
		return ScanResult{}, err
	}

	st, err := s.students.Get(ctx, dec.ID)
	if err != nil {
		return ScanResult{}, err
	}
	echo := &ScannedStudent{ID: st.ID, Name: st.FullName(), StudentID: st.StudentID}

	if outcome == AlreadyRecorded {
		metrics.Scans.WithLabelValues("duplicate").Inc()
		return ScanResult{
			Message: fmt.Sprintf("Attendance already recorded for %s", st.FullName()),
			Student: echo,
		}, nil
	}
	metrics.Scans.WithLabelValues("recorded").Inc()
	return ScanResult{
		Success: true,
		Message: fmt.Sprintf("Attendance recorded for %s", st.FullName()),
		Student: echo,
	}, nil
}

// Rate is the attendance rate as a percentage; 0 when there are no students.
func Rate(recorded, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(recorded) / float64(total) * 100
}

// ActivityReport is the per-activity attendance view: records in scan order
// plus headline stats.
type ActivityReport struct {
	Activity      model.Activity           `json:"activity"`
	Records       []model.AttendanceRecord `json:"records"`
	TotalStudents int64                    `json:"total_students"`
	AttendedCount int64                    `json:"attended_count"`
	Rate          float64                  `json:"attendance_rate"`
}

// ReportByActivity builds the per-activity view.
func (s *Service) ReportByActivity(ctx context.Context, activityID int64) (*ActivityReport, error) {
	act, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if act == nil {
		return nil, ErrActivityNotFound
	}
	records, err := s.ledger.ListByActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	total, err := s.students.Count(ctx)
	if err != nil {
		return nil, err
	}
	attended := int64(len(records))
	return &ActivityReport{
		Activity:      *act,
		Records:       records,
		TotalStudents: total,
		AttendedCount: attended,
		Rate:          Rate(attended, total),
	}, nil
}

// RateForActivity computes the attendance rate for one activity from the
// ledger count and the current student total.
func (s *Service) RateForActivity(ctx context.Context, activityID int64) (float64, error) {
	recorded, err := s.ledger.CountByActivity(ctx, activityID)
	if err != nil {
		return 0, err
	}
	total, err := s.students.Count(ctx)
	if err != nil {
		return 0, err
	}
	return Rate(recorded, total), nil
}

// Report returns the filtered ledger rows, newest first.
func (s *Service) Report(ctx context.Context, f Filter) ([]model.AttendanceRecord, error) {
	return s.ledger.Filtered(ctx, f)
}

// Daily returns the per-day attendance counts since the given time.
func (s *Service) Daily(ctx context.Context, since time.Time) ([]DayCount, error) {
	return s.ledger.DailySeries(ctx, since)
}

// Dashboard is the summary the landing view renders.
type Dashboard struct {
	StudentCount    int64            `json:"student_count"`
	ActivityCount   int64            `json:"activity_count"`
	AttendanceCount int64            `json:"attendance_count"`
	Recent          []model.Activity `json:"recent_activities"`
	Ongoing         []model.Activity `json:"ongoing_activities"`
	Daily           []DayCount       `json:"daily_attendance"`
}

// Summary assembles the dashboard. Counts go through the stats cache; lists
// and the 7-day series always hit the database.
func (s *Service) Summary(ctx context.Context, now time.Time) (*Dashboard, error) {
	var d Dashboard
	var err error

	if d.StudentCount, err = s.cachedCount(ctx, "stats:students", s.students.Count); err != nil {
		return nil, err
	}
	if d.ActivityCount, err = s.cachedCount(ctx, "stats:activities", s.activities.Count); err != nil {
		return nil, err
	}
	if d.AttendanceCount, err = s.cachedCount(ctx, "stats:attendance", s.ledger.Count); err != nil {
		return nil, err
	}
	if d.Recent, err = s.activities.Recent(ctx, 5); err != nil {
		return nil, err
	}
	if d.Ongoing, err = s.activities.OngoingAt(ctx, now); err != nil {
		return nil, err
	}
	if d.Daily, err = s.ledger.DailySeries(ctx, now.AddDate(0, 0, -7)); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) cachedCount(ctx context.Context, key string, load func(context.Context) (int64, error)) (int64, error) {
	if s.cache != nil {
		if n, ok := s.cache.GetCount(ctx, key); ok {
			return n, nil
		}
	}
	n, err := load(ctx)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		s.cache.SetCount(ctx, key, n, s.cacheTTL)
	}
	return n, nil
}
