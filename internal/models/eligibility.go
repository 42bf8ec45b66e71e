package models

import "time"

// EligibilitySource tells which rule produced a decision.
type EligibilitySource string

const (
	SourceSchedule EligibilitySource = "schedule"
	SourceFallback EligibilitySource = "fallback"
)

// EligibilityResult is the outcome of a single eligibility check.
type EligibilityResult struct {
	Open                 bool              `json:"open"`
	Reason               string            `json:"reason"`
	NextAllowedDate      *time.Time        `json:"next_allowed_date,omitempty"`
	AllowEarlySubmission bool              `json:"allow_early_submission"`
	Schedule             *PracticeSchedule `json:"schedule,omitempty"`
	Source               EligibilitySource `json:"source"`
}
