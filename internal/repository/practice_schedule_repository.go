package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/ukm-attendance-api/internal/models"
)

// ErrDuplicateSchedule is returned when a practice date already has a schedule.
var ErrDuplicateSchedule = errors.New("practice schedule already exists")

const uniqueViolation = "23505"

const scheduleColumns = `id, practice_date, to_char(start_time, 'HH24:MI') AS start_time, to_char(end_time, 'HH24:MI') AS end_time, is_active, created_at, updated_at`

// PracticeScheduleRepository persists dated practice sessions.
type PracticeScheduleRepository struct {
	db *sqlx.DB
}

// NewPracticeScheduleRepository constructs the repository.
func NewPracticeScheduleRepository(db *sqlx.DB) *PracticeScheduleRepository {
	return &PracticeScheduleRepository{db: db}
}

// FindByID returns a schedule regardless of its active flag.
func (r *PracticeScheduleRepository) FindByID(ctx context.Context, id string) (*models.PracticeSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM practice_schedules WHERE id = $1`
	var schedule models.PracticeSchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find practice schedule: %w", err)
	}
	return &schedule, nil
}

// FindActiveByDate returns the active session held on date, or sql.ErrNoRows.
func (r *PracticeScheduleRepository) FindActiveByDate(ctx context.Context, date time.Time) (*models.PracticeSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM practice_schedules WHERE practice_date = $1 AND is_active = TRUE LIMIT 1`
	var schedule models.PracticeSchedule
	if err := r.db.GetContext(ctx, &schedule, query, date.Format(models.DateLayout)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find practice schedule by date: %w", err)
	}
	return &schedule, nil
}

// FindActiveInRange returns active sessions with from <= date <= to, ascending.
func (r *PracticeScheduleRepository) FindActiveInRange(ctx context.Context, from, to time.Time) ([]models.PracticeSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM practice_schedules WHERE is_active = TRUE AND practice_date BETWEEN $1 AND $2 ORDER BY practice_date ASC`
	var schedules []models.PracticeSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, from.Format(models.DateLayout), to.Format(models.DateLayout)); err != nil {
		return nil, fmt.Errorf("list practice schedules in range: %w", err)
	}
	return schedules, nil
}

// FindNextActiveOnOrAfter returns the earliest active session on or after date, or sql.ErrNoRows.
func (r *PracticeScheduleRepository) FindNextActiveOnOrAfter(ctx context.Context, date time.Time) (*models.PracticeSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM practice_schedules WHERE is_active = TRUE AND practice_date >= $1 ORDER BY practice_date ASC LIMIT 1`
	var schedule models.PracticeSchedule
	if err := r.db.GetContext(ctx, &schedule, query, date.Format(models.DateLayout)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find next practice schedule: %w", err)
	}
	return &schedule, nil
}

// List returns every schedule ordered by date.
func (r *PracticeScheduleRepository) List(ctx context.Context) ([]models.PracticeSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM practice_schedules ORDER BY practice_date ASC`
	var schedules []models.PracticeSchedule
	if err := r.db.SelectContext(ctx, &schedules, query); err != nil {
		return nil, fmt.Errorf("list practice schedules: %w", err)
	}
	return schedules, nil
}

// Create inserts a schedule. A duplicate date yields ErrDuplicateSchedule.
func (r *PracticeScheduleRepository) Create(ctx context.Context, schedule *models.PracticeSchedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	const query = `INSERT INTO practice_schedules (id, practice_date, start_time, end_time, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.PracticeDate.Format(models.DateLayout),
		schedule.StartTime,
		schedule.EndTime,
		schedule.Active,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateSchedule
		}
		return fmt.Errorf("create practice schedule: %w", err)
	}
	return nil
}

// SetActive toggles the active flag. Missing ids yield sql.ErrNoRows.
func (r *PracticeScheduleRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE practice_schedules SET is_active = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("toggle practice schedule: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a schedule. Missing ids yield sql.ErrNoRows.
func (r *PracticeScheduleRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM practice_schedules WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete practice schedule: %w", err)
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
