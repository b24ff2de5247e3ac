package model

import "time"

// Student is a registered student carrying a QR identity token.
type Student struct {
	ID          int64      `json:"id"`
	StudentID   string     `json:"student_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	QRData      string     `json:"qr_data"`
	CreatedAt   time.Time  `json:"created_at"`
}

// FullName returns the display name embedded in the student's token.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// Activity is a scannable event with a fixed time window.
type Activity struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	IsActive    bool      `json:"is_active"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// AttendanceRecord marks one student as present at one activity.
// At most one record exists per (student, activity) pair.
type AttendanceRecord struct {
	ID         int64     `json:"id"`
	StudentID  int64     `json:"student_id"`
	ActivityID int64     `json:"activity_id"`
	ScannedBy  int64     `json:"scanned_by"`
	Timestamp  time.Time `json:"timestamp"`
}

// StaffAccount is a staff login; admins additionally gate registration and deletes.
type StaffAccount struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}
