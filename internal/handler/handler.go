package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"qrattend/internal/activity"
	"qrattend/internal/attendance"
	"qrattend/internal/auth"
	"qrattend/internal/config"
	"qrattend/internal/model"
	"qrattend/internal/student"
	"qrattend/internal/token"
)

// The stores are the slices of the repositories the handlers actually call.
// The Postgres repositories satisfy them.

type StaffStore interface {
	Create(ctx context.Context, a *model.StaffAccount) error
	GetByUsername(ctx context.Context, username string) (*model.StaffAccount, error)
}

type StudentStore interface {
	List(ctx context.Context) ([]model.Student, error)
	Create(ctx context.Context, s *model.Student) error
	Get(ctx context.Context, id int64) (*model.Student, error)
	Update(ctx context.Context, s *model.Student) error
	Delete(ctx context.Context, id int64) error
	RefreshToken(ctx context.Context, id int64) (*model.Student, error)
}

type ActivityStore interface {
	List(ctx context.Context) ([]model.Activity, error)
	Create(ctx context.Context, a *model.Activity) error
	Get(ctx context.Context, id int64) (*model.Activity, error)
	Update(ctx context.Context, a model.Activity) error
	Delete(ctx context.Context, id int64) error
}

type RecordStore interface {
	Get(ctx context.Context, id int64) (*model.AttendanceRecord, error)
	ListByStudent(ctx context.Context, studentID int64) ([]model.AttendanceRecord, error)
}

// Handler carries the repositories and services behind the JSON API.
type Handler struct {
	cfg        config.App
	staff      StaffStore
	students   StudentStore
	activities ActivityStore
	records    RecordStore
	svc        *attendance.Service
}

// New creates a handler.
func New(cfg config.App, st StaffStore, students StudentStore, activities ActivityStore, records RecordStore, svc *attendance.Service) *Handler {
	return &Handler{cfg: cfg, staff: st, students: students, activities: activities, records: records, svc: svc}
}

// Register mounts all routes. Everything under /v1 except login requires a
// staff bearer token.
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/v1/auth/login", h.Login)

	g := r.Group("/v1", auth.StaffAuth(h.cfg.JWTSigningKey, h.cfg.JWTIssuer))

	g.POST("/auth/register", h.RegisterStaff)
	g.GET("/dashboard", h.Dashboard)

	g.GET("/students", h.ListStudents)
	g.POST("/students", h.CreateStudent)
	g.GET("/students/:id", h.GetStudent)
	g.PUT("/students/:id", h.UpdateStudent)
	g.DELETE("/students/:id", h.DeleteStudent)
	g.GET("/students/:id/qr", h.StudentQR)
	g.GET("/students/:id/qr.png", h.StudentQRImage)
	g.GET("/students/:id/attendance", h.StudentAttendance)

	g.GET("/activities", h.ListActivities)
	g.POST("/activities", h.CreateActivity)
	g.PUT("/activities/:id", h.UpdateActivity)
	g.DELETE("/activities/:id", h.DeleteActivity)

	g.GET("/attendance/take/:activity_id", h.TakeAttendance)
	g.POST("/attendance/scan", h.ScanAttendance)
	g.GET("/attendance/activity/:activity_id", h.ViewActivityAttendance)
	g.GET("/attendance/report", h.AttendanceReport)
	g.GET("/attendance/daily", h.DailyAttendance)
	g.GET("/attendance/records/:id", h.GetRecord)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// ---------- Auth ----------

// Login exchanges staff credentials for a token pair.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.staff.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	if account == nil || !auth.CheckPassword(account.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	tokens, err := auth.Issue(account.ID, account.Username, account.IsAdmin, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
		"is_admin":      account.IsAdmin,
	})
}

// RegisterStaff creates a staff account. Admin only.
func (h *Handler) RegisterStaff(c *gin.Context) {
	if !auth.RequireAdmin(c) {
		return
	}
	var req struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
		IsAdmin  bool   `json:"is_admin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash failed"})
		return
	}
	account := model.StaffAccount{Username: req.Username, Email: req.Email, PasswordHash: hash, IsAdmin: req.IsAdmin}
	if err := h.staff.Create(c.Request.Context(), &account); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
		return
	}
	c.JSON(http.StatusCreated, account)
}

// ---------- Dashboard ----------

// Dashboard returns summary stats, recent and ongoing activities, and the
// 7-day attendance series.
func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.svc.Summary(c.Request.Context(), time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, d)
}

// ---------- Students ----------

type studentRequest struct {
	StudentID   string `json:"student_id" binding:"required"`
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD
}

func (req studentRequest) toModel() (model.Student, error) {
	s := model.Student{
		StudentID: req.StudentID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return s, err
		}
		s.DateOfBirth = &dob
	}
	return s, nil
}

// ListStudents returns all students ordered by name.
func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.students.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// CreateStudent registers a student and issues their QR token.
func (h *Handler) CreateStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := req.toModel()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date_of_birth must be YYYY-MM-DD"})
		return
	}
	if err := h.students.Create(c.Request.Context(), &s); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "student already exists: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, s)
}

// GetStudent returns one student.
func (h *Handler) GetStudent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// UpdateStudent rewrites a student's profile and regenerates their token.
func (h *Handler) UpdateStudent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := req.toModel()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date_of_birth must be YYYY-MM-DD"})
		return
	}
	s.ID = id
	if err := h.students.Update(c.Request.Context(), &s); err != nil {
		if errors.Is(err, student.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s)
}

// DeleteStudent removes a student and their attendance records. Admin only.
func (h *Handler) DeleteStudent(c *gin.Context) {
	if !auth.RequireAdmin(c) {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.students.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, student.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		log.Printf("delete student %d failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error deleting student: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "student deleted"})
}

// StudentQR regenerates, persists, and returns a fresh token for a student.
func (h *Handler) StudentQR(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s, err := h.students.RefreshToken(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"student_id":   s.ID,
		"student_name": s.FullName(),
		"qr_data":      s.QRData,
	})
}

// StudentQRImage renders the student's current token as a QR PNG.
func (h *Handler) StudentQRImage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	size := 256
	if v := c.Query("size"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			size = parsed
		}
	}
	png, err := token.PNG(s.QRData, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr render failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// StudentAttendance returns a student's attendance history, newest first.
func (h *Handler) StudentAttendance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	records, err := h.records.ListByStudent(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": s, "records": records})
}

// ---------- Activities ----------

type activityRequest struct {
	Name        string    `json:"name" binding:"required"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
	IsActive    *bool     `json:"is_active"`
}

func (req activityRequest) toModel() model.Activity {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return model.Activity{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		IsActive:    active,
	}
}

// ListActivities returns all activities, most recent window first.
func (h *Handler) ListActivities(c *gin.Context) {
	activities, err := h.activities.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": activities})
}

// CreateActivity adds an activity owned by the calling staff member.
func (h *Handler) CreateActivity(c *gin.Context) {
	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.EndTime.After(req.StartTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be after start_time"})
		return
	}
	claims, _ := auth.FromContext(c)
	a := req.toModel()
	a.CreatedBy = claims.StaffID
	if err := h.activities.Create(c.Request.Context(), &a); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, a)
}

// UpdateActivity rewrites an activity's fields.
func (h *Handler) UpdateActivity(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.EndTime.After(req.StartTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be after start_time"})
		return
	}
	existing, err := h.activities.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "activity not found"})
		return
	}
	a := req.toModel()
	a.ID = id
	a.CreatedBy = existing.CreatedBy
	if err := h.activities.Update(c.Request.Context(), a); err != nil {
		if errors.Is(err, activity.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "activity not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, a)
}

// DeleteActivity removes an activity and its attendance records. Admin only.
func (h *Handler) DeleteActivity(c *gin.Context) {
	if !auth.RequireAdmin(c) {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.activities.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, activity.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "activity not found"})
			return
		}
		log.Printf("delete activity %d failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error deleting activity: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "activity deleted"})
}

// ---------- Attendance ----------

// TakeAttendance opens a scan session for an activity. Activities outside
// their window get a soft refusal with a redirect hint rather than an error.
func (h *Handler) TakeAttendance(c *gin.Context) {
	id, ok := pathID(c, "activity_id")
	if !ok {
		return
	}
	a, err := h.activities.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if a == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "activity not found"})
		return
	}
	if !activity.Ongoing(*a, time.Now().UTC()) {
		c.JSON(http.StatusOK, gin.H{
			"success":  false,
			"message":  "Cannot take attendance for activities that are not currently active.",
			"redirect": "/activities",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "activity": a})
}

// ScanAttendance records attendance from a scanned token payload.
func (h *Handler) ScanAttendance(c *gin.Context) {
	var req struct {
		ActivityID  int64  `json:"activity_id" binding:"required"`
		ScannedData string `json:"scanned_data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Invalid form submission"})
		return
	}
	claims, _ := auth.FromContext(c)

	res, err := h.svc.Scan(c.Request.Context(), req.ActivityID, req.ScannedData, claims.StaffID)
	if err != nil {
		log.Printf("scan failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error recording attendance"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// ViewActivityAttendance returns an activity's records in scan order with
// headline stats.
func (h *Handler) ViewActivityAttendance(c *gin.Context) {
	id, ok := pathID(c, "activity_id")
	if !ok {
		return
	}
	rep, err := h.svc.ReportByActivity(c.Request.Context(), id)
	if err != nil {
		if err == attendance.ErrActivityNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "activity not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rep)
}

// AttendanceReport returns ledger rows matching the optional filters,
// newest first. date_to is inclusive of the whole day.
func (h *Handler) AttendanceReport(c *gin.Context) {
	var f attendance.Filter
	if v := c.Query("activity_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid activity_id"})
			return
		}
		f.ActivityID = id
	}
	f.StudentExternalID = c.Query("student_id")
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{
		{"date_from", &f.DateFrom},
		{"date_to", &f.DateTo},
	} {
		if v := c.Query(q.name); v != "" {
			d, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": q.name + " must be YYYY-MM-DD"})
				return
			}
			*q.dst = &d
		}
	}

	records, err := h.svc.Report(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// DailyAttendance returns per-day scan counts since the given date
// (default: the last 7 days). Days without records are not synthesized.
func (h *Handler) DailyAttendance(c *gin.Context) {
	since := time.Now().UTC().AddDate(0, 0, -7)
	if v := c.Query("since"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be YYYY-MM-DD"})
			return
		}
		since = d
	}
	series, err := h.svc.Daily(c.Request.Context(), since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"daily": series})
}

// GetRecord returns one attendance record by id.
func (h *Handler) GetRecord(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rec, err := h.records.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
