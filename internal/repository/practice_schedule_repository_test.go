package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ukm-attendance-api/internal/models"
)

var scheduleRowColumns = []string{"id", "practice_date", "start_time", "end_time", "is_active", "created_at", "updated_at"}

func TestPracticeScheduleFindActiveByDate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPracticeScheduleRepository(db)

	date := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	mock.ExpectQuery("FROM practice_schedules WHERE practice_date = \\$1 AND is_active = TRUE").
		WithArgs("2024-05-06").
		WillReturnRows(sqlmock.NewRows(scheduleRowColumns).AddRow("s-1", date, "16:00", "18:00", true, now, now))

	schedule, err := repo.FindActiveByDate(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, "s-1", schedule.ID)
	assert.Equal(t, "16:00", schedule.StartTime)
	assert.True(t, schedule.Active)

	mock.ExpectQuery("FROM practice_schedules WHERE practice_date = \\$1").
		WithArgs("2024-05-07").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindActiveByDate(context.Background(), date.AddDate(0, 0, 1))
	require.ErrorIs(t, err, sql.ErrNoRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPracticeScheduleFindActiveInRange(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPracticeScheduleRepository(db)

	from := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	mock.ExpectQuery("practice_date BETWEEN \\$1 AND \\$2 ORDER BY practice_date ASC").
		WithArgs("2024-05-06", "2024-05-20").
		WillReturnRows(sqlmock.NewRows(scheduleRowColumns).
			AddRow("s-1", from, "16:00", "18:00", true, now, now).
			AddRow("s-2", from.AddDate(0, 0, 2), "16:00", "18:00", true, now, now))

	schedules, err := repo.FindActiveInRange(context.Background(), from, from.AddDate(0, 0, 14))
	require.NoError(t, err)
	require.Len(t, schedules, 2)
	assert.Equal(t, "s-2", schedules[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPracticeScheduleCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPracticeScheduleRepository(db)

	schedule := &models.PracticeSchedule{PracticeDate: time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), StartTime: "16:00", EndTime: "18:00", Active: true}
	mock.ExpectExec("INSERT INTO practice_schedules").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Create(context.Background(), schedule))
	assert.NotEmpty(t, schedule.ID)

	mock.ExpectExec("INSERT INTO practice_schedules").
		WillReturnError(&pq.Error{Code: "23505"})
	err := repo.Create(context.Background(), &models.PracticeSchedule{PracticeDate: schedule.PracticeDate, StartTime: "16:00", EndTime: "18:00"})
	require.ErrorIs(t, err, ErrDuplicateSchedule)

	mock.ExpectExec("INSERT INTO practice_schedules").
		WillReturnError(errors.New("connection reset"))
	err = repo.Create(context.Background(), &models.PracticeSchedule{PracticeDate: schedule.PracticeDate})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicateSchedule))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPracticeScheduleToggleAndDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPracticeScheduleRepository(db)

	mock.ExpectExec("UPDATE practice_schedules SET is_active = \\$2").
		WithArgs("s-1", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetActive(context.Background(), "s-1", false))

	mock.ExpectExec("UPDATE practice_schedules SET is_active = \\$2").
		WithArgs("missing", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.SetActive(context.Background(), "missing", true), sql.ErrNoRows)

	mock.ExpectExec("DELETE FROM practice_schedules WHERE id = \\$1").
		WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "s-1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
