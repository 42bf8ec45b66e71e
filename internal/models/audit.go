package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionAttendanceSubmit  = "ATTENDANCE_SUBMIT"
	AuditActionAttendanceApprove = "ATTENDANCE_APPROVE"
	AuditActionAttendanceReject  = "ATTENDANCE_REJECT"
	AuditActionProofReplace      = "PROOF_REPLACE"
	AuditActionScheduleCreate    = "SCHEDULE_CREATE"
	AuditActionScheduleToggle    = "SCHEDULE_TOGGLE"
	AuditActionScheduleDelete    = "SCHEDULE_DELETE"
	AuditActionExport            = "RECAP_EXPORT"
)

// Audit resources.
const (
	AuditResourceAttendance = "attendance_record"
	AuditResourceSchedule   = "practice_schedule"
	AuditResourceUser       = "user"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
