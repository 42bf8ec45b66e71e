package dto

import (
	"time"

	"github.com/noah-isme/ukm-attendance-api/internal/models"
)

// ProofUpload is an evidence file read from a multipart request.
type ProofUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     []byte
}

// SubmitAttendanceRequest captures the member submission form.
type SubmitAttendanceRequest struct {
	Category   models.AttendanceStatus `form:"category" json:"category" validate:"required,oneof=present sick permitted"`
	TargetDate string                  `form:"target_date" json:"target_date" validate:"omitempty,datetime=2006-01-02"`
	Note       string                  `form:"note" json:"note" validate:"omitempty,max=1000"`
	Proof      *ProofUpload            `form:"-" json:"-"`
}

// SubmissionResult is returned after a successful submission.
type SubmissionResult struct {
	Record   *models.AttendanceRecord `json:"record"`
	Message  string                   `json:"message"`
	ProofURL string                   `json:"proof_url,omitempty"`
}

// CategoryOption is one selectable attendance category.
type CategoryOption struct {
	Value models.AttendanceStatus `json:"value"`
	Label string                  `json:"label"`
}

// FormOptions lists what the submission form may offer right now.
type FormOptions struct {
	IsPracticeDay    bool                      `json:"is_practice_day"`
	Categories       []CategoryOption          `json:"categories"`
	DefaultCategory  models.AttendanceStatus   `json:"default_category"`
	UpcomingSessions []models.PracticeSchedule `json:"upcoming_sessions"`
}

// FormView is the rendered state of the submission form.
type FormView struct {
	State           string                    `json:"state"`
	Category        models.AttendanceStatus   `json:"category,omitempty"`
	Reason          string                    `json:"reason,omitempty"`
	NextAllowedDate *time.Time                `json:"next_allowed_date,omitempty"`
	RequiredFields  []string                  `json:"required_fields,omitempty"`
	Eligibility     *models.EligibilityResult `json:"eligibility,omitempty"`
	Options         *FormOptions              `json:"options,omitempty"`
}

// RejectAttendanceRequest carries the mandatory rejection reason.
type RejectAttendanceRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// AttendanceListResponse pairs a listing with its summary.
type AttendanceListResponse struct {
	Date    string                    `json:"date"`
	Records []models.AttendanceRecord `json:"records"`
	Summary models.AttendanceSummary  `json:"summary"`
}

// CreateScheduleRequest defines the payload to publish a practice session.
type CreateScheduleRequest struct {
	PracticeDate string `json:"practice_date" validate:"required,datetime=2006-01-02"`
	StartTime    string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime      string `json:"end_time" validate:"required,datetime=15:04"`
}

// SetScheduleActiveRequest toggles a session.
type SetScheduleActiveRequest struct {
	Active *bool `json:"is_active" validate:"required"`
}

// RecapRequest selects the recap range.
type RecapRequest struct {
	From string `form:"from" json:"from" validate:"required,datetime=2006-01-02"`
	To   string `form:"to" json:"to" validate:"required,datetime=2006-01-02"`
}

// RecapExportRequest selects the range and file format of an export.
type RecapExportRequest struct {
	From   string `json:"from" validate:"required,datetime=2006-01-02"`
	To     string `json:"to" validate:"required,datetime=2006-01-02"`
	Format string `json:"format" validate:"omitempty,oneof=csv pdf xlsx"`
}
