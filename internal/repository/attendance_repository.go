package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ukm-attendance-api/internal/models"
)

// ErrNotPending is returned when a conditional review update finds no pending row.
var ErrNotPending = errors.New("attendance record is not pending")

const attendanceSelect = `SELECT ar.id, ar.member_id, COALESCE(u.full_name, '') AS member_name, ar.target_date, ar.status, ar.approval_state,
ar.note, ar.proof_reference, ar.rejection_reason, ar.reviewed_by, ar.reviewed_at, ar.created_at, ar.updated_at
FROM attendance_records ar
LEFT JOIN users u ON u.id = ar.member_id`

// AttendanceRepository persists member attendance submissions.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Create inserts a new record.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = record.CreatedAt

	const query = `INSERT INTO attendance_records (id, member_id, target_date, status, approval_state, note, proof_reference, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.MemberID,
		record.TargetDate.Format(models.DateLayout),
		record.Status,
		record.ApprovalState,
		record.Note,
		record.ProofReference,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create attendance record: %w", err)
	}
	return nil
}

// FindByID returns a record with its member name, or sql.ErrNoRows.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	query := attendanceSelect + ` WHERE ar.id = $1`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance record: %w", err)
	}
	return &record, nil
}

// List returns the records of one target date, newest first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	conditions := []string{"ar.target_date = $1"}
	args := []interface{}{filter.Date.Format(models.DateLayout)}

	if filter.ApprovalState != nil {
		conditions = append(conditions, fmt.Sprintf("ar.approval_state = $%d", len(args)+1))
		args = append(args, *filter.ApprovalState)
	}
	if filter.MemberID != "" {
		conditions = append(conditions, fmt.Sprintf("ar.member_id = $%d", len(args)+1))
		args = append(args, filter.MemberID)
	}

	query := attendanceSelect + " WHERE " + strings.Join(conditions, " AND ") + " ORDER BY ar.created_at DESC"
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// ExistsForMemberOnDate reports whether the member already has a non-rejected record for date.
func (r *AttendanceRepository) ExistsForMemberOnDate(ctx context.Context, memberID string, date time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM attendance_records WHERE member_id = $1 AND target_date = $2 AND approval_state <> 'rejected')`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, memberID, date.Format(models.DateLayout)); err != nil {
		return false, fmt.Errorf("check attendance record: %w", err)
	}
	return exists, nil
}

// UpdateApproval applies a review to a pending record in a single statement,
// so concurrent reviews resolve first-writer-wins. A record that is missing or
// no longer pending yields ErrNotPending.
func (r *AttendanceRepository) UpdateApproval(ctx context.Context, id string, update models.ApprovalUpdate) error {
	const query = `UPDATE attendance_records
SET approval_state = $2, status = COALESCE($3::text, status), rejection_reason = $4, reviewed_by = $5, reviewed_at = $6, updated_at = $6
WHERE id = $1 AND approval_state = 'pending'`

	var status interface{}
	if update.Status != nil {
		status = string(*update.Status)
	}
	res, err := r.db.ExecContext(ctx, query, id, update.State, status, update.RejectionReason, update.ReviewedBy, update.ReviewedAt)
	if err != nil {
		return fmt.Errorf("update attendance approval: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotPending
	}
	return nil
}

// UpdateProof swaps the evidence of a member's own pending record.
func (r *AttendanceRepository) UpdateProof(ctx context.Context, id, memberID, reference string, at time.Time) error {
	const query = `UPDATE attendance_records SET proof_reference = $3, updated_at = $4 WHERE id = $1 AND member_id = $2 AND approval_state = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, memberID, reference, at)
	if err != nil {
		return fmt.Errorf("update attendance proof: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotPending
	}
	return nil
}

// Recap counts records per active member for from <= target_date <= to.
// Members without records are included with zero counts.
func (r *AttendanceRepository) Recap(ctx context.Context, from, to time.Time) ([]models.RecapRow, error) {
	const query = `SELECT u.id AS member_id, u.full_name AS member_name,
COUNT(ar.id) FILTER (WHERE ar.status = 'present') AS present,
COUNT(ar.id) FILTER (WHERE ar.status = 'sick') AS sick,
COUNT(ar.id) FILTER (WHERE ar.status = 'permitted') AS permitted,
COUNT(ar.id) FILTER (WHERE ar.status = 'absent') AS absent
FROM users u
LEFT JOIN attendance_records ar ON ar.member_id = u.id AND ar.target_date BETWEEN $1 AND $2
WHERE u.role = $3 AND u.active = TRUE
GROUP BY u.id, u.full_name
ORDER BY u.full_name ASC`

	var rows []models.RecapRow
	if err := r.db.SelectContext(ctx, &rows, query, from.Format(models.DateLayout), to.Format(models.DateLayout), models.RoleMember); err != nil {
		return nil, fmt.Errorf("recap attendance: %w", err)
	}
	return rows, nil
}
