package models

import "time"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ClockLayout is the wire format for times of day.
const ClockLayout = "15:04"

// CalendarDate truncates t to its calendar date in loc, returned as midnight UTC
// so dates compare and persist without zone drift.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PracticeSchedule is one dated practice session with its submission window.
type PracticeSchedule struct {
	ID           string    `db:"id" json:"id"`
	PracticeDate time.Time `db:"practice_date" json:"practice_date"`
	StartTime    string    `db:"start_time" json:"start_time"`
	EndTime      string    `db:"end_time" json:"end_time"`
	Active       bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DateString renders the practice date.
func (s PracticeSchedule) DateString() string {
	return s.PracticeDate.Format(DateLayout)
}

// Contains reports whether clock ("HH:MM") lies within the inclusive window.
func (s PracticeSchedule) Contains(clock string) bool {
	return clock >= s.StartTime && clock <= s.EndTime
}

// ScheduleView decorates a schedule with read-time flags.
type ScheduleView struct {
	PracticeSchedule
	IsPast bool `json:"is_past"`
}

// NewScheduleView computes IsPast relative to today.
func NewScheduleView(s PracticeSchedule, today time.Time) ScheduleView {
	return ScheduleView{PracticeSchedule: s, IsPast: s.DateString() < today.Format(DateLayout)}
}
