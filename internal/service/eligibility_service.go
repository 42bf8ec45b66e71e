package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ukm-attendance-api/internal/models"
)

type scheduleLookup interface {
	FindActiveByDate(ctx context.Context, date time.Time) (*models.PracticeSchedule, error)
	FindActiveInRange(ctx context.Context, from, to time.Time) ([]models.PracticeSchedule, error)
	FindNextActiveOnOrAfter(ctx context.Context, date time.Time) (*models.PracticeSchedule, error)
}

// EligibilityConfig tunes the eligibility engine.
type EligibilityConfig struct {
	Location      *time.Location
	LookaheadDays int
	StoreTimeout  time.Duration
	// FallbackOnEmptySchedule applies the static calendar when the store holds
	// no session today and none upcoming, i.e. no schedule has been published.
	FallbackOnEmptySchedule bool
}

// EligibilityService decides whether a member may submit a given category right now.
type EligibilityService struct {
	store    scheduleLookup
	calendar PracticeCalendar
	cfg      EligibilityConfig
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewEligibilityService constructs the engine.
func NewEligibilityService(store scheduleLookup, calendar PracticeCalendar, cfg EligibilityConfig, metrics *MetricsService, logger *zap.Logger) *EligibilityService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LookaheadDays <= 0 {
		cfg.LookaheadDays = 7
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{
		store:    store,
		calendar: calendar,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Location returns the zone used to derive "today".
func (s *EligibilityService) Location() *time.Location {
	return s.cfg.Location
}

// Now returns the engine clock reading.
func (s *EligibilityService) Now() time.Time {
	return s.now()
}

// Today returns the current calendar date in the engine location.
func (s *EligibilityService) Today() time.Time {
	return models.CalendarDate(s.now(), s.cfg.Location)
}

// Check evaluates category at now. It never fails: store errors and timeouts
// degrade to the static practice calendar.
func (s *EligibilityService) Check(ctx context.Context, category models.AttendanceStatus, now time.Time) models.EligibilityResult {
	var result models.EligibilityResult
	switch {
	case category.Excused():
		result = s.checkExcused(ctx, category, now)
	case category == models.AttendancePresent:
		result = s.checkPresent(ctx, now)
	default:
		result = models.EligibilityResult{
			Open:   false,
			Reason: fmt.Sprintf("%q cannot be submitted by members", category),
			Source: models.SourceSchedule,
		}
	}
	s.metrics.RecordEligibility(category, result)
	return result
}

func (s *EligibilityService) checkExcused(ctx context.Context, category models.AttendanceStatus, now time.Time) models.EligibilityResult {
	today := models.CalendarDate(now, s.cfg.Location)
	until := today.AddDate(0, 0, s.cfg.LookaheadDays)

	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	upcoming, err := s.store.FindActiveInRange(lookupCtx, today, until)
	if err != nil {
		s.storeFailed("find_active_in_range", err)
		return s.calendar.Evaluate(category, now.In(s.cfg.Location))
	}

	result := models.EligibilityResult{
		Open:                 true,
		AllowEarlySubmission: true,
		Source:               models.SourceSchedule,
	}
	if len(upcoming) == 0 {
		result.Reason = "you can submit a sick or permission notice at any time"
		return result
	}
	first := upcoming[0]
	result.Schedule = &first
	result.Reason = fmt.Sprintf("you can submit ahead of the practice on %s", first.PracticeDate.Format(humanDateLayout))
	return result
}

func (s *EligibilityService) checkPresent(ctx context.Context, now time.Time) models.EligibilityResult {
	local := now.In(s.cfg.Location)
	today := models.CalendarDate(now, s.cfg.Location)
	clock := local.Format(models.ClockLayout)

	schedule, err := s.findActiveByDate(ctx, today)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.noSessionToday(ctx, today, local)
	case err != nil:
		s.storeFailed("find_active_by_date", err)
		return s.calendar.Evaluate(models.AttendancePresent, local)
	}

	window := fmt.Sprintf("%s-%s", schedule.StartTime, schedule.EndTime)
	if clock < schedule.StartTime {
		return models.EligibilityResult{
			Open:     false,
			Reason:   fmt.Sprintf("attendance opens at %s (window %s)", schedule.StartTime, window),
			Schedule: schedule,
			Source:   models.SourceSchedule,
		}
	}
	if clock > schedule.EndTime {
		next := s.nextAfterClosedWindow(ctx, today)
		return models.EligibilityResult{
			Open:            false,
			Reason:          fmt.Sprintf("attendance closed at %s (window %s); next practice is %s", schedule.EndTime, window, next.Format(humanDateLayout)),
			NextAllowedDate: &next,
			Schedule:        schedule,
			Source:          models.SourceSchedule,
		}
	}

	return models.EligibilityResult{
		Open:     true,
		Reason:   fmt.Sprintf("attendance is open until %s", schedule.EndTime),
		Schedule: schedule,
		Source:   models.SourceSchedule,
	}
}

func (s *EligibilityService) noSessionToday(ctx context.Context, today, local time.Time) models.EligibilityResult {
	result := models.EligibilityResult{
		Open:   false,
		Reason: "there is no practice session today",
		Source: models.SourceSchedule,
	}

	next, err := s.findNextOnOrAfter(ctx, today)
	switch {
	case err == nil:
		date := next.PracticeDate
		result.NextAllowedDate = &date
		result.Reason = fmt.Sprintf("there is no practice session today; next practice is %s", date.Format(humanDateLayout))
	case errors.Is(err, sql.ErrNoRows):
		if s.cfg.FallbackOnEmptySchedule {
			s.logger.Debug("no practice schedule published, using practice calendar")
			return s.calendar.Evaluate(models.AttendancePresent, local)
		}
	default:
		s.storeFailed("find_next_active", err)
	}
	return result
}

// nextAfterClosedWindow finds the next session strictly after today. When the
// store has none, or cannot answer, the practice calendar supplies the date.
func (s *EligibilityService) nextAfterClosedWindow(ctx context.Context, today time.Time) time.Time {
	next, err := s.findNextOnOrAfter(ctx, today.AddDate(0, 0, 1))
	if err == nil {
		return next.PracticeDate
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.storeFailed("find_next_active", err)
	}
	return s.calendar.NextPracticeDate(today)
}

func (s *EligibilityService) findActiveByDate(ctx context.Context, date time.Time) (*models.PracticeSchedule, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	schedule, err := s.store.FindActiveByDate(lookupCtx, date)
	if err == nil && schedule == nil {
		return nil, sql.ErrNoRows
	}
	return schedule, err
}

func (s *EligibilityService) findNextOnOrAfter(ctx context.Context, date time.Time) (*models.PracticeSchedule, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	schedule, err := s.store.FindNextActiveOnOrAfter(lookupCtx, date)
	if err == nil && schedule == nil {
		return nil, sql.ErrNoRows
	}
	return schedule, err
}

func (s *EligibilityService) storeFailed(operation string, err error) {
	s.metrics.RecordStoreFailure(operation)
	s.logger.Warn("schedule store unavailable, degrading", zap.String("operation", operation), zap.Error(err))
}

// IsPracticeDay reports whether an active session is scheduled today. When the
// store cannot answer, the practice calendar decides.
func (s *EligibilityService) IsPracticeDay(ctx context.Context, now time.Time) bool {
	today := models.CalendarDate(now, s.cfg.Location)
	_, err := s.findActiveByDate(ctx, today)
	switch {
	case err == nil:
		return true
	case errors.Is(err, sql.ErrNoRows):
		if s.cfg.FallbackOnEmptySchedule {
			if _, nextErr := s.findNextOnOrAfter(ctx, today); errors.Is(nextErr, sql.ErrNoRows) {
				return s.calendar.IsPracticeDay(now.In(s.cfg.Location).Weekday())
			}
		}
		return false
	default:
		s.storeFailed("find_active_by_date", err)
		return s.calendar.IsPracticeDay(now.In(s.cfg.Location).Weekday())
	}
}

// Upcoming lists active sessions from today through days ahead.
func (s *EligibilityService) Upcoming(ctx context.Context, now time.Time, days int) ([]models.PracticeSchedule, error) {
	if days <= 0 {
		days = s.cfg.LookaheadDays
	}
	today := models.CalendarDate(now, s.cfg.Location)
	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	schedules, err := s.store.FindActiveInRange(lookupCtx, today, today.AddDate(0, 0, days))
	if err != nil {
		s.storeFailed("find_active_in_range", err)
		return nil, err
	}
	if schedules == nil {
		schedules = []models.PracticeSchedule{}
	}
	return schedules, nil
}
