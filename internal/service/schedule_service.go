package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ukm-attendance-api/internal/dto"
	"github.com/noah-isme/ukm-attendance-api/internal/models"
	"github.com/noah-isme/ukm-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/ukm-attendance-api/pkg/errors"
)

type practiceScheduleRepository interface {
	FindByID(ctx context.Context, id string) (*models.PracticeSchedule, error)
	FindActiveInRange(ctx context.Context, from, to time.Time) ([]models.PracticeSchedule, error)
	List(ctx context.Context) ([]models.PracticeSchedule, error)
	Create(ctx context.Context, schedule *models.PracticeSchedule) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

type cacheInvalidator interface {
	InvalidateSchedules(ctx context.Context) error
}

// ScheduleConfig tunes schedule administration.
type ScheduleConfig struct {
	Location     *time.Location
	UpcomingDays int
	// StoreTimeout bounds every repository call.
	StoreTimeout time.Duration
}

// ScheduleService administers dated practice sessions.
type ScheduleService struct {
	repo      practiceScheduleRepository
	cache     cacheInvalidator
	events    eventPublisher
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ScheduleConfig
	now       func() time.Time
}

// NewScheduleService instantiates ScheduleService. cache, events and audit are optional.
func NewScheduleService(repo practiceScheduleRepository, cache cacheInvalidator, events eventPublisher, audit auditWriter, validate *validator.Validate, logger *zap.Logger, cfg ScheduleConfig) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.UpcomingDays <= 0 {
		cfg.UpcomingDays = 14
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	return &ScheduleService{
		repo:      repo,
		cache:     cache,
		events:    events,
		audit:     audit,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *ScheduleService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

func (s *ScheduleService) today() time.Time {
	return models.CalendarDate(s.now(), s.cfg.Location)
}

// List returns every schedule, ascending by date, flagged past or not.
func (s *ScheduleService) List(ctx context.Context) ([]models.ScheduleView, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	schedules, err := s.repo.List(storeCtx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	return s.views(schedules), nil
}

// Upcoming lists active sessions from today through the configured horizon.
func (s *ScheduleService) Upcoming(ctx context.Context) ([]models.ScheduleView, error) {
	today := s.today()
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	schedules, err := s.repo.FindActiveInRange(storeCtx, today, today.AddDate(0, 0, s.cfg.UpcomingDays))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list upcoming schedules")
	}
	return s.views(schedules), nil
}

// Create publishes a new active session.
func (s *ScheduleService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateScheduleRequest) (*models.ScheduleView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	date, err := time.Parse(models.DateLayout, req.PracticeDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "practice_date must be YYYY-MM-DD")
	}
	if req.StartTime >= req.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	today := s.today()
	if date.Before(today) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "practice_date cannot be in the past")
	}

	schedule := &models.PracticeSchedule{
		PracticeDate: date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Active:       true,
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.repo.Create(storeCtx, schedule); err != nil {
		if errors.Is(err, repository.ErrDuplicateSchedule) {
			return nil, appErrors.ErrScheduleExists
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}

	s.changed(ctx, actor, models.AuditActionScheduleCreate, schedule.ID, fmt.Sprintf(`{"practice_date":%q,"start_time":%q,"end_time":%q}`, schedule.DateString(), schedule.StartTime, schedule.EndTime))
	view := models.NewScheduleView(*schedule, today)
	return &view, nil
}

// SetActive toggles whether a session counts for eligibility.
func (s *ScheduleService) SetActive(ctx context.Context, actor *models.JWTClaims, id string, active bool) (*models.ScheduleView, error) {
	if err := s.setActive(ctx, id, active); err != nil {
		return nil, s.mapLookupError(err, "failed to update schedule")
	}
	schedule, err := s.findByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, "failed to load schedule")
	}
	s.changed(ctx, actor, models.AuditActionScheduleToggle, id, fmt.Sprintf(`{"is_active":%t}`, active))
	view := models.NewScheduleView(*schedule, s.today())
	return &view, nil
}

// Delete removes a session.
func (s *ScheduleService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.repo.Delete(storeCtx, id); err != nil {
		return s.mapLookupError(err, "failed to delete schedule")
	}
	s.changed(ctx, actor, models.AuditActionScheduleDelete, id, "")
	return nil
}

func (s *ScheduleService) setActive(ctx context.Context, id string, active bool) error {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.repo.SetActive(storeCtx, id, active)
}

func (s *ScheduleService) findByID(ctx context.Context, id string) (*models.PracticeSchedule, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.repo.FindByID(storeCtx, id)
}

func (s *ScheduleService) mapLookupError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.ErrNotFound
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// changed drops cached lookups so eligibility sees the mutation immediately.
func (s *ScheduleService) changed(ctx context.Context, actor *models.JWTClaims, action, id, values string) {
	if s.cache != nil {
		if err := s.cache.InvalidateSchedules(ctx); err != nil {
			s.logger.Warn("failed to invalidate schedule cache", zap.Error(err))
		}
	}
	if s.events != nil {
		s.events.Publish("schedule.changed", map[string]string{"id": id, "action": action})
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   models.AuditResourceSchedule,
		ResourceID: &id,
		UserAgent:  "schedule-service",
	}
	if actor != nil {
		log.UserID = &actor.UserID
	}
	if values != "" {
		log.NewValues = []byte(values)
	}
	writeAudit(ctx, s.audit, s.logger, log)
}

func (s *ScheduleService) views(schedules []models.PracticeSchedule) []models.ScheduleView {
	today := s.today()
	views := make([]models.ScheduleView, 0, len(schedules))
	for _, schedule := range schedules {
		views = append(views, models.NewScheduleView(schedule, today))
	}
	return views
}
