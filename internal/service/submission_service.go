package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ukm-attendance-api/internal/dto"
	"github.com/noah-isme/ukm-attendance-api/internal/models"
	"github.com/noah-isme/ukm-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/ukm-attendance-api/pkg/errors"
	"github.com/noah-isme/ukm-attendance-api/pkg/storage"
)

const (
	proofFolder = "proofs"

	messagePresentRecorded  = "attendance recorded"
	messageExcusedSubmitted = "submission received and awaiting secretary approval"
)

var categoryLabels = map[models.AttendanceStatus]string{
	models.AttendancePresent:   "Present",
	models.AttendanceSick:      "Sick",
	models.AttendancePermitted: "Permitted",
}

type attendanceWriter interface {
	Create(ctx context.Context, record *models.AttendanceRecord) error
	FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	ExistsForMemberOnDate(ctx context.Context, memberID string, date time.Time) (bool, error)
	UpdateProof(ctx context.Context, id, memberID, reference string, at time.Time) error
}

type proofStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	PublicURL(ctx context.Context, reference string) (string, error)
	Delete(ctx context.Context, reference string) error
}

type submissionEligibility interface {
	eligibilityChecker
	IsPracticeDay(ctx context.Context, now time.Time) bool
	Upcoming(ctx context.Context, now time.Time, days int) ([]models.PracticeSchedule, error)
	Location() *time.Location
}

type eventPublisher interface {
	Publish(eventType string, data interface{})
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SubmissionConfig holds upload limits and record policy.
type SubmissionConfig struct {
	MaxFileSize     int64
	AllowedMIMEs    []string
	AllowDuplicates bool
	UpcomingDays    int
	StoreTimeout    time.Duration
}

// SubmissionService handles member attendance submissions.
type SubmissionService struct {
	records     attendanceWriter
	proofs      proofStore
	eligibility submissionEligibility
	cleanup     cleanupEnqueuer
	events      eventPublisher
	audit       auditWriter
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         SubmissionConfig
	mimeSet     map[string]struct{}
}

// NewSubmissionService constructs the service. cleanup, events and audit are optional.
func NewSubmissionService(records attendanceWriter, proofs proofStore, eligibility submissionEligibility, cleanup cleanupEnqueuer, events eventPublisher, audit auditWriter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg SubmissionConfig) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"image/jpeg", "image/png", "application/pdf"}
	}
	if cfg.UpcomingDays <= 0 {
		cfg.UpcomingDays = 14
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, m := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &SubmissionService{
		records:     records,
		proofs:      proofs,
		eligibility: eligibility,
		cleanup:     cleanup,
		events:      events,
		audit:       audit,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		mimeSet:     mimeSet,
	}
}

// FormOptions describes which categories the form should offer right now.
func (s *SubmissionService) FormOptions(ctx context.Context, now time.Time) dto.FormOptions {
	practiceDay := s.eligibility.IsPracticeDay(ctx, now)
	options := dto.FormOptions{IsPracticeDay: practiceDay, DefaultCategory: models.AttendancePresent}
	for _, category := range []models.AttendanceStatus{models.AttendancePresent, models.AttendanceSick, models.AttendancePermitted} {
		if category == models.AttendancePresent && !practiceDay {
			continue
		}
		options.Categories = append(options.Categories, dto.CategoryOption{Value: category, Label: categoryLabels[category]})
	}
	if !practiceDay {
		options.DefaultCategory = models.AttendancePermitted
	}

	upcoming, err := s.eligibility.Upcoming(ctx, now, s.cfg.UpcomingDays)
	if err != nil {
		upcoming = []models.PracticeSchedule{}
	}
	options.UpcomingSessions = upcoming
	return options
}

// SelectCategory runs a fresh form for category and renders it with the current options.
func (s *SubmissionService) SelectCategory(ctx context.Context, category models.AttendanceStatus, now time.Time) dto.FormView {
	form := NewSubmissionForm(s.eligibility)
	form.Select(ctx, category, now)
	view := form.View()
	options := s.FormOptions(ctx, now)
	view.Options = &options
	return view
}

// Submit validates and stores a member submission.
func (s *SubmissionService) Submit(ctx context.Context, actor *models.JWTClaims, req dto.SubmitAttendanceRequest, now time.Time) (*dto.SubmissionResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.Category.MemberSelectable() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "category cannot be submitted by members")
	}

	today := models.CalendarDate(now, s.eligibility.Location())
	record := &models.AttendanceRecord{
		MemberID:   actor.UserID,
		MemberName: actor.FullName,
		Status:     req.Category,
	}

	var contentType string
	if req.Category.Excused() {
		note := strings.TrimSpace(req.Note)
		if note == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "note is required")
		}
		var err error
		if contentType, err = s.validateProof(req.Proof); err != nil {
			return nil, err
		}
		target, err := s.parseTargetDate(req.TargetDate, today)
		if err != nil {
			return nil, err
		}
		record.TargetDate = target
		record.Note = &note
		record.ApprovalState = models.ApprovalPending
	} else {
		if req.Proof != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "proof is only accepted for sick or permission submissions")
		}
		result := s.eligibility.Check(ctx, req.Category, now)
		if !result.Open {
			return nil, appErrors.Clone(appErrors.ErrAttendanceClosed, result.Reason)
		}
		record.TargetDate = today
		record.ApprovalState = models.ApprovalApproved
	}

	if !s.cfg.AllowDuplicates {
		if err := s.ensureNotDuplicate(ctx, actor.UserID, record.TargetDate); err != nil {
			return nil, err
		}
	}

	if req.Category.Excused() {
		key := storage.ObjectKey(proofFolder, fmt.Sprintf("%s_%d%s", actor.UserID, now.UnixMilli(), proofExtension(req.Proof.Filename, contentType)))
		reference, err := s.proofs.Upload(ctx, key, req.Proof.Content, contentType)
		if err != nil {
			s.logger.Error("proof upload failed", zap.String("member_id", actor.UserID), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, appErrors.ErrUploadFailed.Message)
		}
		record.ProofReference = &reference
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	if err := s.records.Create(storeCtx, record); err != nil {
		if record.ProofReference != nil {
			scheduleProofCleanup(s.cleanup, *record.ProofReference, s.metrics, s.logger)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}

	s.metrics.RecordSubmission(record.Status)
	s.publish("attendance.submitted", record)
	s.emitAudit(ctx, actor, models.AuditActionAttendanceSubmit, record.ID, fmt.Sprintf(`{"status":%q,"target_date":%q}`, record.Status, record.TargetDate.Format(models.DateLayout)))

	result := &dto.SubmissionResult{Record: record, Message: messagePresentRecorded}
	if req.Category.Excused() {
		result.Message = messageExcusedSubmitted
		result.ProofURL = s.proofURL(ctx, *record.ProofReference)
	}
	return result, nil
}

// ReplaceProof swaps the evidence of the actor's own pending submission. The
// superseded object is removed in the background.
func (s *SubmissionService) ReplaceProof(ctx context.Context, actor *models.JWTClaims, recordID string, upload *dto.ProofUpload, now time.Time) (*dto.SubmissionResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	contentType, err := s.validateProof(upload)
	if err != nil {
		return nil, err
	}

	record, err := s.findRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	if record.MemberID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	if record.ApprovalState != models.ApprovalPending || !record.Status.Excused() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only pending sick or permission submissions accept a new proof")
	}

	key := storage.ObjectKey(proofFolder, fmt.Sprintf("%s_%d%s", actor.UserID, now.UnixMilli(), proofExtension(upload.Filename, contentType)))
	reference, err := s.proofs.Upload(ctx, key, upload.Content, contentType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, appErrors.ErrUploadFailed.Message)
	}

	if err := s.updateProof(ctx, record.ID, actor.UserID, reference, now.UTC()); err != nil {
		scheduleProofCleanup(s.cleanup, reference, s.metrics, s.logger)
		if errors.Is(err, repository.ErrNotPending) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "submission was reviewed in the meantime")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update proof")
	}

	if record.ProofReference != nil {
		scheduleProofCleanup(s.cleanup, *record.ProofReference, s.metrics, s.logger)
	}
	record.ProofReference = &reference
	record.UpdatedAt = now.UTC()
	s.emitAudit(ctx, actor, models.AuditActionProofReplace, record.ID, fmt.Sprintf(`{"proof_reference":%q}`, reference))

	return &dto.SubmissionResult{
		Record:   record,
		Message:  "proof updated",
		ProofURL: s.proofURL(ctx, reference),
	}, nil
}

func (s *SubmissionService) findRecord(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.records.FindByID(storeCtx, id)
}

func (s *SubmissionService) updateProof(ctx context.Context, id, memberID, reference string, at time.Time) error {
	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.records.UpdateProof(storeCtx, id, memberID, reference, at)
}

// ProofURL resolves the public link of a stored proof.
func (s *SubmissionService) ProofURL(ctx context.Context, reference string) string {
	return s.proofURL(ctx, reference)
}

func (s *SubmissionService) validateProof(upload *dto.ProofUpload) (string, error) {
	if upload == nil || len(upload.Content) == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "proof is required")
	}
	size := upload.Size
	if size < int64(len(upload.Content)) {
		size = int64(len(upload.Content))
	}
	if size > s.cfg.MaxFileSize {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("proof exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	declared := canonicalMediaType(declaredMediaType(upload.ContentType))
	if declared != "" {
		if _, ok := s.mimeSet[declared]; !ok {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("proof type %s is not allowed", declared))
		}
	}
	sniffed := canonicalMediaType(declaredMediaType(http.DetectContentType(upload.Content)))
	if _, ok := s.mimeSet[sniffed]; sniffed == "" || !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, "proof content is not an allowed type")
	}
	if declared != "" && declared != sniffed {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("proof declared as %s but contains %s", declared, sniffed))
	}
	return sniffed, nil
}

func (s *SubmissionService) parseTargetDate(raw string, today time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "target_date is required")
	}
	target, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "target_date must be YYYY-MM-DD")
	}
	if target.Before(today) {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "target_date cannot be in the past")
	}
	return target, nil
}

func (s *SubmissionService) ensureNotDuplicate(ctx context.Context, memberID string, date time.Time) error {
	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	exists, err := s.records.ExistsForMemberOnDate(storeCtx, memberID, date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing attendance")
	}
	if exists {
		return appErrors.ErrDuplicateRecord
	}
	return nil
}

func (s *SubmissionService) proofURL(ctx context.Context, reference string) string {
	if reference == "" {
		return ""
	}
	link, err := s.proofs.PublicURL(ctx, reference)
	if err != nil {
		s.logger.Warn("failed to resolve proof url", zap.String("reference", reference), zap.Error(err))
		return ""
	}
	return link
}

func (s *SubmissionService) publish(eventType string, data interface{}) {
	if s.events != nil {
		s.events.Publish(eventType, data)
	}
}

func (s *SubmissionService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID, values string) {
	writeAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   models.AuditResourceAttendance,
		ResourceID: &resourceID,
		NewValues:  []byte(values),
		UserAgent:  "submission-service",
	})
}

// writeAudit records log and only warns on failure.
func writeAudit(ctx context.Context, audit auditWriter, logger *zap.Logger, log *models.AuditLog) {
	if audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	if err := audit.CreateAuditLog(ctx, log); err != nil {
		logger.Warn("failed to write audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func declaredMediaType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "application/octet-stream" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(mediaType)
}

func canonicalMediaType(mediaType string) string {
	switch mediaType {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "application/x-pdf":
		return "application/pdf"
	}
	return mediaType
}

func proofExtension(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != "" {
		return ext
	}
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
