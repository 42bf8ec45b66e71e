package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ukm-attendance-api/internal/dto"
	"github.com/noah-isme/ukm-attendance-api/internal/models"
	"github.com/noah-isme/ukm-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/ukm-attendance-api/pkg/errors"
)

type attendanceReviewer interface {
	FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	UpdateApproval(ctx context.Context, id string, update models.ApprovalUpdate) error
}

// ApprovalService lets secretaries review excused submissions.
type ApprovalService struct {
	records      attendanceReviewer
	events       eventPublisher
	audit        auditWriter
	metrics      *MetricsService
	logger       *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

// NewApprovalService constructs the service.
func NewApprovalService(records attendanceReviewer, events eventPublisher, audit auditWriter, metrics *MetricsService, logger *zap.Logger, storeTimeout time.Duration) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &ApprovalService{
		records:      records,
		events:       events,
		audit:        audit,
		metrics:      metrics,
		logger:       logger,
		storeTimeout: storeTimeout,
		now:          time.Now,
	}
}

// Approve accepts a pending record. The status stays as submitted.
func (s *ApprovalService) Approve(ctx context.Context, actor *models.JWTClaims, id string) (*models.AttendanceRecord, error) {
	return s.review(ctx, actor, id, models.ApprovalUpdate{State: models.ApprovalApproved}, models.AuditActionAttendanceApprove)
}

// Reject declines a pending record, turning it into an absence.
func (s *ApprovalService) Reject(ctx context.Context, actor *models.JWTClaims, id, reason string) (*models.AttendanceRecord, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	absent := models.AttendanceAbsent
	update := models.ApprovalUpdate{State: models.ApprovalRejected, Status: &absent, RejectionReason: &reason}
	return s.review(ctx, actor, id, update, models.AuditActionAttendanceReject)
}

func (s *ApprovalService) review(ctx context.Context, actor *models.JWTClaims, id string, update models.ApprovalUpdate, action string) (*models.AttendanceRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleSecretary {
		return nil, appErrors.ErrForbidden
	}
	update.ReviewedBy = actor.UserID
	update.ReviewedAt = s.now().UTC()

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.records.UpdateApproval(storeCtx, id, update); err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			return nil, s.notPending(storeCtx, id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review attendance")
	}

	record, err := s.records.FindByID(storeCtx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reviewed attendance")
	}

	s.metrics.RecordReview(update.State)
	if s.events != nil {
		s.events.Publish("attendance."+string(update.State), record)
	}
	values := fmt.Sprintf(`{"approval_state":%q,"status":%q}`, record.ApprovalState, record.Status)
	writeAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   models.AuditResourceAttendance,
		ResourceID: &record.ID,
		OldValues:  []byte(`{"approval_state":"pending"}`),
		NewValues:  []byte(values),
		UserAgent:  "approval-service",
	})
	return record, nil
}

// notPending tells a missing record apart from one that was already reviewed.
func (s *ApprovalService) notPending(ctx context.Context, id string) error {
	record, err := s.records.FindByID(ctx, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.ErrNotFound
	case err != nil:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("attendance is already %s", record.ApprovalState))
}

// List returns the records of one date, optionally only those awaiting review.
func (s *ApprovalService) List(ctx context.Context, date time.Time, pendingOnly bool) (*dto.AttendanceListResponse, error) {
	filter := models.AttendanceFilter{Date: models.CalendarDate(date, nil)}
	if pendingOnly {
		pending := models.ApprovalPending
		filter.ApprovalState = &pending
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	records, err := s.records.List(storeCtx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}

	var summary models.AttendanceSummary
	for _, r := range records {
		summary.Add(r)
	}
	return &dto.AttendanceListResponse{
		Date:    filter.Date.Format(models.DateLayout),
		Records: records,
		Summary: summary,
	}, nil
}
