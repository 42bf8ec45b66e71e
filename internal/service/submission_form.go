package service

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/ukm-attendance-api/internal/dto"
	"github.com/noah-isme/ukm-attendance-api/internal/models"
)

// FormState is the lifecycle of one submission form.
type FormState string

const (
	FormIdle     FormState = "idle"
	FormChecking FormState = "checking"
	FormOpen     FormState = "open"
	FormClosed   FormState = "closed"
)

// Required inputs for an open form.
const (
	FieldProof      = "proof"
	FieldTargetDate = "target_date"
	FieldNote       = "note"
)

type eligibilityChecker interface {
	Check(ctx context.Context, category models.AttendanceStatus, now time.Time) models.EligibilityResult
}

// SubmissionForm drives Idle -> Checking -> Open|Closed. Every Select starts a
// new check, and a result that arrives after a newer Select is dropped.
type SubmissionForm struct {
	checker eligibilityChecker

	mu       sync.Mutex
	state    FormState
	category models.AttendanceStatus
	result   *models.EligibilityResult
	seq      uint64
}

// NewSubmissionForm returns an idle form.
func NewSubmissionForm(checker eligibilityChecker) *SubmissionForm {
	return &SubmissionForm{checker: checker, state: FormIdle}
}

// Select moves the form to Checking and resolves it against the eligibility engine.
func (f *SubmissionForm) Select(ctx context.Context, category models.AttendanceStatus, now time.Time) FormState {
	f.mu.Lock()
	f.seq++
	seq := f.seq
	f.state = FormChecking
	f.category = category
	f.result = nil
	f.mu.Unlock()

	result := f.checker.Check(ctx, category, now)

	f.mu.Lock()
	defer f.mu.Unlock()
	if seq != f.seq {
		return f.state
	}
	f.result = &result
	if result.Open {
		f.state = FormOpen
	} else {
		f.state = FormClosed
	}
	return f.state
}

// Reset returns the form to Idle.
func (f *SubmissionForm) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.state = FormIdle
	f.category = ""
	f.result = nil
}

// State reports the current state.
func (f *SubmissionForm) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// View renders the current state.
func (f *SubmissionForm) View() dto.FormView {
	f.mu.Lock()
	defer f.mu.Unlock()

	view := dto.FormView{State: string(f.state), Category: f.category}
	if f.result == nil {
		return view
	}
	result := *f.result
	view.Eligibility = &result
	view.Reason = result.Reason
	switch f.state {
	case FormClosed:
		view.NextAllowedDate = result.NextAllowedDate
	case FormOpen:
		view.RequiredFields = RequiredFields(f.category)
	}
	return view
}

// RequiredFields lists the inputs a category needs on submission.
func RequiredFields(category models.AttendanceStatus) []string {
	if category.Excused() {
		return []string{FieldProof, FieldTargetDate, FieldNote}
	}
	return []string{}
}
