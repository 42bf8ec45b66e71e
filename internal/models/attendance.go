package models

import "time"

// AttendanceStatus is the closed set of attendance categories.
type AttendanceStatus string

const (
	AttendancePresent   AttendanceStatus = "present"
	AttendanceSick      AttendanceStatus = "sick"
	AttendancePermitted AttendanceStatus = "permitted"
	// AttendanceAbsent is only produced by rejection.
	AttendanceAbsent AttendanceStatus = "absent"
)

// Valid reports whether s is a known status.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceSick, AttendancePermitted, AttendanceAbsent:
		return true
	}
	return false
}

// Excused reports whether s needs evidence and secretary review.
func (s AttendanceStatus) Excused() bool {
	return s == AttendanceSick || s == AttendancePermitted
}

// MemberSelectable reports whether a member may submit s.
func (s AttendanceStatus) MemberSelectable() bool {
	return s == AttendancePresent || s.Excused()
}

// ApprovalState tracks secretary review.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"
)

// Valid reports whether a is a known approval state.
func (a ApprovalState) Valid() bool {
	return a == ApprovalPending || a == ApprovalApproved || a == ApprovalRejected
}

// AttendanceRecord is one member submission for one target date.
type AttendanceRecord struct {
	ID              string           `db:"id" json:"id"`
	MemberID        string           `db:"member_id" json:"member_id"`
	MemberName      string           `db:"member_name" json:"member_name,omitempty"`
	TargetDate      time.Time        `db:"target_date" json:"target_date"`
	Status          AttendanceStatus `db:"status" json:"status"`
	ApprovalState   ApprovalState    `db:"approval_state" json:"approval_state"`
	Note            *string          `db:"note" json:"note,omitempty"`
	ProofReference  *string          `db:"proof_reference" json:"proof_reference,omitempty"`
	RejectionReason *string          `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReviewedBy      *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceFilter narrows record listings.
type AttendanceFilter struct {
	Date          time.Time
	ApprovalState *ApprovalState
	MemberID      string
}

// ApprovalUpdate is applied only while the record is still pending.
type ApprovalUpdate struct {
	State           ApprovalState
	Status          *AttendanceStatus
	RejectionReason *string
	ReviewedBy      string
	ReviewedAt      time.Time
}

// AttendanceSummary counts the records of one listing.
type AttendanceSummary struct {
	Present   int `json:"present"`
	Sick      int `json:"sick"`
	Permitted int `json:"permitted"`
	Absent    int `json:"absent"`
	Pending   int `json:"pending"`
	Total     int `json:"total"`
}

// Add folds one record into the summary.
func (s *AttendanceSummary) Add(r AttendanceRecord) {
	s.Total++
	switch r.Status {
	case AttendancePresent:
		s.Present++
	case AttendanceSick:
		s.Sick++
	case AttendancePermitted:
		s.Permitted++
	case AttendanceAbsent:
		s.Absent++
	}
	if r.ApprovalState == ApprovalPending {
		s.Pending++
	}
}
