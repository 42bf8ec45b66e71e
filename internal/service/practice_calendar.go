package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/ukm-attendance-api/internal/models"
)

const humanDateLayout = "Monday, 2 January 2006"

// PracticeCalendar is the static weekday/hour rule applied when the schedule
// store cannot answer. It works at hour granularity.
type PracticeCalendar struct {
	days      []time.Weekday
	openHour  int
	closeHour int
}

// NewPracticeCalendar validates the configured weekdays and "HH:MM" bounds.
func NewPracticeCalendar(days []int, openTime, closeTime string) (PracticeCalendar, error) {
	if len(days) == 0 {
		return PracticeCalendar{}, fmt.Errorf("practice calendar needs at least one weekday")
	}
	weekdays := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return PracticeCalendar{}, fmt.Errorf("invalid weekday %d", d)
		}
		weekdays = append(weekdays, time.Weekday(d))
	}
	sort.Slice(weekdays, func(i, j int) bool { return weekdays[i] < weekdays[j] })

	openHour, err := parseHour(openTime)
	if err != nil {
		return PracticeCalendar{}, fmt.Errorf("open time: %w", err)
	}
	closeHour, err := parseHour(closeTime)
	if err != nil {
		return PracticeCalendar{}, fmt.Errorf("close time: %w", err)
	}
	if openHour >= closeHour {
		return PracticeCalendar{}, fmt.Errorf("open hour %d must be before close hour %d", openHour, closeHour)
	}
	return PracticeCalendar{days: weekdays, openHour: openHour, closeHour: closeHour}, nil
}

// DefaultPracticeCalendar is Monday, Wednesday and Friday from 13:00 to 22:00.
func DefaultPracticeCalendar() PracticeCalendar {
	return PracticeCalendar{
		days:      []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		openHour:  13,
		closeHour: 22,
	}
}

func parseHour(raw string) (int, error) {
	hourPart, _, _ := strings.Cut(strings.TrimSpace(raw), ":")
	hour, err := strconv.Atoi(hourPart)
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	return hour, nil
}

// IsPracticeDay reports whether wd is a configured practice weekday.
func (c PracticeCalendar) IsPracticeDay(wd time.Weekday) bool {
	for _, d := range c.days {
		if d == wd {
			return true
		}
	}
	return false
}

// IsOpenHour reports whether hour lies in [open, close).
func (c PracticeCalendar) IsOpenHour(hour int) bool {
	return hour >= c.openHour && hour < c.closeHour
}

// NextPracticeDate returns the first practice date strictly after today.
func (c PracticeCalendar) NextPracticeDate(today time.Time) time.Time {
	return today.AddDate(0, 0, daysUntilNextPracticeDay(today.Weekday(), c.days))
}

// daysUntilNextPracticeDay picks the first configured weekday strictly greater
// than current, wrapping to the first configured weekday of the next week.
// days must be sorted and non-empty.
func daysUntilNextPracticeDay(current time.Weekday, days []time.Weekday) int {
	for _, d := range days {
		if d > current {
			return int(d - current)
		}
	}
	return int(7-current) + int(days[0])
}

func (c PracticeCalendar) hoursLabel() string {
	return fmt.Sprintf("%02d:00-%02d:00", c.openHour, c.closeHour)
}

// Evaluate applies the static rule for category at local time.
func (c PracticeCalendar) Evaluate(category models.AttendanceStatus, local time.Time) models.EligibilityResult {
	if category.Excused() {
		return models.EligibilityResult{
			Open:                 true,
			Reason:               "you can submit a sick or permission notice at any time",
			AllowEarlySubmission: true,
			Source:               models.SourceFallback,
		}
	}

	today := models.CalendarDate(local, nil)
	if !c.IsPracticeDay(local.Weekday()) {
		next := c.NextPracticeDate(today)
		return models.EligibilityResult{
			Open:            false,
			Reason:          fmt.Sprintf("today is not a practice day; next practice is %s", next.Format(humanDateLayout)),
			NextAllowedDate: &next,
			Source:          models.SourceFallback,
		}
	}

	hour := local.Hour()
	if !c.IsOpenHour(hour) {
		result := models.EligibilityResult{
			Open:   false,
			Reason: fmt.Sprintf("attendance is only open between %s", c.hoursLabel()),
			Source: models.SourceFallback,
		}
		if hour >= c.closeHour {
			next := c.NextPracticeDate(today)
			result.NextAllowedDate = &next
			result.Reason = fmt.Sprintf("attendance closed at %02d:00; next practice is %s", c.closeHour, next.Format(humanDateLayout))
		}
		return result
	}

	return models.EligibilityResult{
		Open:   true,
		Reason: "attendance is open",
		Source: models.SourceFallback,
	}
}
