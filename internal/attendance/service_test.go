package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"qrattend/internal/model"
)

// In-memory fakes standing in for the Postgres repositories.

type pairKey struct{ student, activity int64 }

type fakeLedger struct {
	records map[pairKey]model.AttendanceRecord
	nextID  int64
	// blindFind simulates the losing side of a concurrent scan: the
	// pre-insert check sees nothing, the unique index still rejects.
	blindFind bool
	blinded   bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: map[pairKey]model.AttendanceRecord{}, nextID: 1}
}

func (f *fakeLedger) Find(ctx context.Context, studentID, activityID int64) (*model.AttendanceRecord, error) {
	if f.blindFind && !f.blinded {
		f.blinded = true
		return nil, nil
	}
	rec, ok := f.records[pairKey{studentID, activityID}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeLedger) Insert(ctx context.Context, studentID, activityID, scannedBy int64) (model.AttendanceRecord, error) {
	key := pairKey{studentID, activityID}
	if _, ok := f.records[key]; ok {
		return model.AttendanceRecord{}, ErrDuplicatePair
	}
	rec := model.AttendanceRecord{
		ID:         f.nextID,
		StudentID:  studentID,
		ActivityID: activityID,
		ScannedBy:  scannedBy,
		Timestamp:  time.Now().UTC(),
	}
	f.nextID++
	f.records[key] = rec
	return rec, nil
}

func (f *fakeLedger) ListByActivity(ctx context.Context, activityID int64) ([]model.AttendanceRecord, error) {
	var res []model.AttendanceRecord
	for _, rec := range f.records {
		if rec.ActivityID == activityID {
			res = append(res, rec)
		}
	}
	return res, nil
}

func (f *fakeLedger) Filtered(ctx context.Context, filter Filter) ([]model.AttendanceRecord, error) {
	return nil, nil
}

func (f *fakeLedger) DailySeries(ctx context.Context, since time.Time) ([]DayCount, error) {
	return nil, nil
}

func (f *fakeLedger) Count(ctx context.Context) (int64, error) {
	return int64(len(f.records)), nil
}

func (f *fakeLedger) CountByActivity(ctx context.Context, activityID int64) (int64, error) {
	recs, _ := f.ListByActivity(ctx, activityID)
	return int64(len(recs)), nil
}

type fakeStudents struct {
	byID map[int64]model.Student
}

func (f *fakeStudents) Get(ctx context.Context, id int64) (*model.Student, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeStudents) Count(ctx context.Context) (int64, error) {
	return int64(len(f.byID)), nil
}

type fakeActivities struct {
	byID map[int64]model.Activity
}

func (f *fakeActivities) Get(ctx context.Context, id int64) (*model.Activity, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (f *fakeActivities) Count(ctx context.Context) (int64, error) {
	return int64(len(f.byID)), nil
}

func (f *fakeActivities) Recent(ctx context.Context, limit int) ([]model.Activity, error) {
	return nil, nil
}

func (f *fakeActivities) OngoingAt(ctx context.Context, now time.Time) ([]model.Activity, error) {
	return nil, nil
}

type fakeCache struct {
	counts map[string]int64
	hits   int
	sets   int
}

func (f *fakeCache) GetCount(ctx context.Context, key string) (int64, bool) {
	n, ok := f.counts[key]
	if ok {
		f.hits++
	}
	return n, ok
}

func (f *fakeCache) SetCount(ctx context.Context, key string, n int64, ttl time.Duration) {
	f.counts[key] = n
	f.sets++
}

func newTestService(ledger *fakeLedger, students map[int64]model.Student, activities map[int64]model.Activity) *Service {
	return NewService(ledger, &fakeStudents{byID: students}, &fakeActivities{byID: activities}, nil, 0)
}

func seedStudent(id int64) model.Student {
	return model.Student{ID: id, StudentID: "S-1001", FirstName: "Amy", LastName: "Pham", Email: "amy@example.com"}
}

func seedActivity(id int64) model.Activity {
	start := time.Now().UTC().Add(-time.Hour)
	return model.Activity{ID: id, Name: "Orientation", StartTime: start, EndTime: start.Add(2 * time.Hour), IsActive: true}
}

func TestRecordAttendance_RecordedThenAlreadyRecorded(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger, map[int64]model.Student{7: seedStudent(7)}, map[int64]model.Activity{3: seedActivity(3)})
	ctx := context.Background()

	outcome, rec, err := svc.RecordAttendance(ctx, 7, 3, 1)
	if err != nil {
		t.Fatalf("first RecordAttendance: %v", err)
	}
	if outcome != Recorded {
		t.Fatalf("first outcome = %v, want Recorded", outcome)
	}
	if rec == nil || rec.StudentID != 7 || rec.ActivityID != 3 || rec.ScannedBy != 1 {
		t.Fatalf("first record = %+v", rec)
	}

	outcome, rec, err = svc.RecordAttendance(ctx, 7, 3, 2)
	if err != nil {
		t.Fatalf("second RecordAttendance: %v", err)
	}
	if outcome != AlreadyRecorded {
		t.Fatalf("second outcome = %v, want AlreadyRecorded", outcome)
	}
	if rec == nil || rec.ScannedBy != 1 {
		t.Fatalf("second call should return the original record, got %+v", rec)
	}
	if len(ledger.records) != 1 {
		t.Fatalf("ledger has %d records for the pair, want 1", len(ledger.records))
	}
}

func TestRecordAttendance_UnknownStudent(t *testing.T) {
	svc := newTestService(newFakeLedger(), map[int64]model.Student{}, map[int64]model.Activity{3: seedActivity(3)})

	_, _, err := svc.RecordAttendance(context.Background(), 99, 3, 1)
	if !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("err = %v, want ErrStudentNotFound", err)
	}
}

func TestRecordAttendance_UnknownActivity(t *testing.T) {
	svc := newTestService(newFakeLedger(), map[int64]model.Student{7: seedStudent(7)}, map[int64]model.Activity{})

	_, _, err := svc.RecordAttendance(context.Background(), 7, 99, 1)
	if !errors.Is(err, ErrActivityNotFound) {
		t.Fatalf("err = %v, want ErrActivityNotFound", err)
	}
}

func TestRecordAttendance_RaceLoserSeesAlreadyRecorded(t *testing.T) {
	// The pre-insert check misses, the unique index rejects: the caller must
	// still observe AlreadyRecorded, not an error or a second row.
	ledger := newFakeLedger()
	ledger.records[pairKey{7, 3}] = model.AttendanceRecord{ID: 1, StudentID: 7, ActivityID: 3, ScannedBy: 5}
	ledger.blindFind = true
	svc := newTestService(ledger, map[int64]model.Student{7: seedStudent(7)}, map[int64]model.Activity{3: seedActivity(3)})

	outcome, rec, err := svc.RecordAttendance(context.Background(), 7, 3, 1)
	if err != nil {
		t.Fatalf("RecordAttendance: %v", err)
	}
	if outcome != AlreadyRecorded {
		t.Fatalf("outcome = %v, want AlreadyRecorded", outcome)
	}
	if rec == nil || rec.ScannedBy != 5 {
		t.Fatalf("expected the winner's record, got %+v", rec)
	}
	if len(ledger.records) != 1 {
		t.Fatalf("ledger has %d records, want 1", len(ledger.records))
	}
}

func TestScan_RecordsAndEchoesStudent(t *testing.T) {
	svc := newTestService(newFakeLedger(), map[int64]model.Student{7: seedStudent(7)}, map[int64]model.Activity{3: seedActivity(3)})

	res, err := svc.Scan(context.Background(), 3, `{"id": 7, "name": "Amy"}`, 1)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !res.Success {
		t.Fatalf("Scan failed: %s", res.Message)
	}
	if res.Student == nil || res.Student.ID != 7 || res.Student.StudentID != "S-1001" || res.Student.Name != "Amy Pham" {
		t.Fatalf("student echo = %+v", res.Student)
	}
}

func TestScan_DuplicateIsUnsuccessfulButNotAnError(t *testing.T) {
	svc := newTestService(newFakeLedger(), map[int64]model.Student{7: seedStudent(7)}, map[int64]model.Activity{3: seedActivity(3)})
	ctx := context.Background()

	if _, err := svc.Scan(ctx, 3, `{"id": 7}`, 1); err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	res, err := svc.Scan(ctx, 3, `{"id": 7}`, 1)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if res.Success {
		t.Fatal("duplicate scan reported success")
	}
	if res.Message != "Attendance already recorded for Amy Pham" {
		t.Errorf("message = %q", res.Message)
	}
	if res.Student == nil {
		t.Error("duplicate scan should still echo the student")
	}
}

func TestScan_MalformedAndMissingPayloads(t *testing.T) {
	svc := newTestService(newFakeLedger(), map[int64]model.Student{7: seedStudent(7)}, map[int64]model.Activity{3: seedActivity(3)})
	ctx := context.Background()

	res, err := svc.Scan(ctx, 3, `not a token`, 1)
	if err != nil || res.Success {
		t.Fatalf("malformed payload: res=%+v err=%v", res, err)
	}
	if res.Message != "Invalid QR code format" {
		t.Errorf("malformed message = %q", res.Message)
	}

	res, err = svc.Scan(ctx, 3, `{"name": "Amy"}`, 1)
	if err != nil || res.Success {
		t.Fatalf("missing id payload: res=%+v err=%v", res, err)
	}
	if res.Message != "Student ID missing in QR code" {
		t.Errorf("missing-id message = %q", res.Message)
	}
}

func TestScan_UnknownStudent(t *testing.T) {
	svc := newTestService(newFakeLedger(), map[int64]model.Student{}, map[int64]model.Activity{3: seedActivity(3)})

	res, err := svc.Scan(context.Background(), 3, `{"id": 42}`, 1)
	if err != nil || res.Success {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if res.Message != "Student not found" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestRate(t *testing.T) {
	cases := []struct {
		recorded, total int64
		want            float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{2, 4, 50},
		{4, 4, 100},
		{1, 3, float64(1) / float64(3) * 100},
		{3, 8, 37.5},
	}
	for _, tc := range cases {
		if got := Rate(tc.recorded, tc.total); got != tc.want {
			t.Errorf("Rate(%d, %d) = %v, want %v", tc.recorded, tc.total, got, tc.want)
		}
	}
}

func TestReportByActivity_Stats(t *testing.T) {
	ledger := newFakeLedger()
	students := map[int64]model.Student{}
	for id := int64(1); id <= 4; id++ {
		students[id] = seedStudent(id)
	}
	svc := newTestService(ledger, students, map[int64]model.Activity{3: seedActivity(3)})
	ctx := context.Background()

	for _, sid := range []int64{1, 2} {
		if _, _, err := svc.RecordAttendance(ctx, sid, 3, 1); err != nil {
			t.Fatalf("RecordAttendance(%d): %v", sid, err)
		}
	}

	rep, err := svc.ReportByActivity(ctx, 3)
	if err != nil {
		t.Fatalf("ReportByActivity: %v", err)
	}
	if rep.TotalStudents != 4 || rep.AttendedCount != 2 {
		t.Fatalf("counts = %d/%d, want 2/4", rep.AttendedCount, rep.TotalStudents)
	}
	if rep.Rate != 50 {
		t.Errorf("rate = %v, want 50", rep.Rate)
	}
}

func TestRateForActivity(t *testing.T) {
	ledger := newFakeLedger()
	students := map[int64]model.Student{}
	for id := int64(1); id <= 4; id++ {
		students[id] = seedStudent(id)
	}
	svc := newTestService(ledger, students, map[int64]model.Activity{3: seedActivity(3)})
	ctx := context.Background()

	rate, err := svc.RateForActivity(ctx, 3)
	if err != nil {
		t.Fatalf("RateForActivity: %v", err)
	}
	if rate != 0 {
		t.Errorf("empty ledger rate = %v, want 0", rate)
	}

	for _, sid := range []int64{1, 2} {
		if _, _, err := svc.RecordAttendance(ctx, sid, 3, 1); err != nil {
			t.Fatalf("RecordAttendance(%d): %v", sid, err)
		}
	}
	rate, err = svc.RateForActivity(ctx, 3)
	if err != nil {
		t.Fatalf("RateForActivity: %v", err)
	}
	if rate != 50 {
		t.Errorf("rate = %v, want 50", rate)
	}
}

func TestReportByActivity_UnknownActivity(t *testing.T) {
	svc := newTestService(newFakeLedger(), map[int64]model.Student{}, map[int64]model.Activity{})

	if _, err := svc.ReportByActivity(context.Background(), 9); !errors.Is(err, ErrActivityNotFound) {
		t.Fatalf("err = %v, want ErrActivityNotFound", err)
	}
}

func TestSummary_CountsGoThroughCache(t *testing.T) {
	ledger := newFakeLedger()
	cache := &fakeCache{counts: map[string]int64{}}
	svc := NewService(ledger,
		&fakeStudents{byID: map[int64]model.Student{1: seedStudent(1)}},
		&fakeActivities{byID: map[int64]model.Activity{3: seedActivity(3)}},
		cache, time.Minute)
	ctx := context.Background()
	now := time.Now().UTC()

	d, err := svc.Summary(ctx, now)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if d.StudentCount != 1 || d.ActivityCount != 1 || d.AttendanceCount != 0 {
		t.Fatalf("counts = %+v", d)
	}
	if cache.sets != 3 {
		t.Errorf("first summary populated %d cache keys, want 3", cache.sets)
	}

	if _, err := svc.Summary(ctx, now); err != nil {
		t.Fatalf("second Summary: %v", err)
	}
	if cache.hits != 3 {
		t.Errorf("second summary hit cache %d times, want 3", cache.hits)
	}
}
