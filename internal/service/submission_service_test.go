package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/ukm-attendance-api/internal/dto"
	"github.com/noah-isme/ukm-attendance-api/internal/models"
	"github.com/noah-isme/ukm-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/ukm-attendance-api/pkg/errors"
	"github.com/noah-isme/ukm-attendance-api/pkg/jobs"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type attendanceStoreStub struct {
	mu        sync.Mutex
	records   map[string]*models.AttendanceRecord
	seq       int
	createErr error
	updateErr error
}

func newAttendanceStoreStub() *attendanceStoreStub {
	return &attendanceStoreStub{records: make(map[string]*models.AttendanceRecord)}
}

func (s *attendanceStoreStub) Create(ctx context.Context, record *models.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.seq++
	if record.ID == "" {
		record.ID = fmt.Sprintf("att-%d", s.seq)
	}
	record.CreatedAt = time.Date(2024, 5, 1, 0, 0, s.seq, 0, time.UTC)
	record.UpdatedAt = record.CreatedAt
	stored := *record
	s.records[record.ID] = &stored
	return nil
}

func (s *attendanceStoreStub) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	found := *record
	return &found, nil
}

func (s *attendanceStoreStub) ExistsForMemberOnDate(ctx context.Context, memberID string, date time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.MemberID == memberID && r.TargetDate.Equal(date) && r.ApprovalState != models.ApprovalRejected {
			return true, nil
		}
	}
	return false, nil
}

func (s *attendanceStoreStub) UpdateProof(ctx context.Context, id, memberID, reference string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	r, ok := s.records[id]
	if !ok || r.MemberID != memberID || r.ApprovalState != models.ApprovalPending {
		return repository.ErrNotPending
	}
	r.ProofReference = &reference
	r.UpdatedAt = at
	return nil
}

func (s *attendanceStoreStub) UpdateApproval(ctx context.Context, id string, update models.ApprovalUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	r, ok := s.records[id]
	if !ok || r.ApprovalState != models.ApprovalPending {
		return repository.ErrNotPending
	}
	r.ApprovalState = update.State
	if update.Status != nil {
		r.Status = *update.Status
	}
	r.RejectionReason = update.RejectionReason
	reviewer := update.ReviewedBy
	reviewedAt := update.ReviewedAt
	r.ReviewedBy = &reviewer
	r.ReviewedAt = &reviewedAt
	r.UpdatedAt = reviewedAt
	return nil
}

func (s *attendanceStoreStub) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AttendanceRecord, 0, len(s.records))
	for _, r := range s.records {
		if !r.TargetDate.Equal(filter.Date) {
			continue
		}
		if filter.ApprovalState != nil && r.ApprovalState != *filter.ApprovalState {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *attendanceStoreStub) put(record models.AttendanceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = &record
}

func (s *attendanceStoreStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type proofStoreStub struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	uploadErr error
	delay     time.Duration
}

func newProofStoreStub() *proofStoreStub {
	return &proofStoreStub{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (p *proofStoreStub) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.uploadErr != nil {
		return "", p.uploadErr
	}
	p.objects[key] = data
	p.types[key] = contentType
	return key, nil
}

func (p *proofStoreStub) PublicURL(ctx context.Context, reference string) (string, error) {
	return "https://cdn.test/" + reference, nil
}

func (p *proofStoreStub) Delete(ctx context.Context, reference string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.objects, reference)
	return nil
}

type enqueuerStub struct {
	jobs []jobs.Job
	err  error
}

func (e *enqueuerStub) Enqueue(job jobs.Job) error {
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, job)
	return nil
}

func (e *enqueuerStub) references() []string {
	refs := make([]string, 0, len(e.jobs))
	for _, job := range e.jobs {
		refs = append(refs, job.Payload.(string))
	}
	return refs
}

type publisherStub struct {
	mu     sync.Mutex
	events []string
}

func (p *publisherStub) Publish(eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

type auditStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
	err  error
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return a.err
}

type submissionFixture struct {
	svc     *SubmissionService
	records *attendanceStoreStub
	proofs  *proofStoreStub
	cleanup *enqueuerStub
	events  *publisherStub
	audit   *auditStub
}

func newSubmissionFixture(t *testing.T, cfg SubmissionConfig, sessions ...models.PracticeSchedule) *submissionFixture {
	t.Helper()
	f := &submissionFixture{
		records: newAttendanceStoreStub(),
		proofs:  newProofStoreStub(),
		cleanup: &enqueuerStub{},
		events:  &publisherStub{},
		audit:   &auditStub{},
	}
	eligibility := newEligibility(&stubScheduleStore{sessions: sessions}, EligibilityConfig{})
	f.svc = NewSubmissionService(f.records, f.proofs, eligibility, f.cleanup, f.events, f.audit, nil, nil, nil, cfg)
	return f
}

func memberClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "member-1", FullName: "Rani Putri", Role: models.RoleMember}
}

func pngProof() *dto.ProofUpload {
	return &dto.ProofUpload{Filename: "letter.PNG", ContentType: "image/png", Size: int64(len(pngHeader)), Content: pngHeader}
}

var mondayAfternoon = time.Date(2024, 5, 6, 14, 0, 0, 0, wib)

func TestSubmitPresentInsideWindow(t *testing.T) {
	f := newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: true}, session(day(2024, 5, 6), "13:00", "17:00"))

	result, err := f.svc.Submit(context.Background(), memberClaims(), dto.SubmitAttendanceRequest{Category: models.AttendancePresent}, mondayAfternoon)
	require.NoError(t, err)
	require.Equal(t, messagePresentRecorded, result.Message)
	require.Empty(t, result.ProofURL)
	require.Equal(t, models.ApprovalApproved, result.Record.ApprovalState)
	require.True(t, day(2024, 5, 6).Equal(result.Record.TargetDate))
	require.Nil(t, result.Record.Note)
	require.Nil(t, result.Record.ProofReference)
	require.Equal(t, 1, f.records.count())
	require.Equal(t, []string{"attendance.submitted"}, f.events.events)
	require.Len(t, f.audit.logs, 1)
	require.Equal(t, models.AuditActionAttendanceSubmit, f.audit.logs[0].Action)
}

func TestSubmitPresentOutsideWindowIsRejected(t *testing.T) {
	f := newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: true}, session(day(2024, 5, 6), "13:00", "17:00"))

	_, err := f.svc.Submit(context.Background(), memberClaims(), dto.SubmitAttendanceRequest{Category: models.AttendancePresent}, time.Date(2024, 5, 6, 18, 0, 0, 0, wib))
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrAttendanceClosed))
	require.Equal(t, 0, f.records.count())
}

func TestSubmitExcusedStoresPendingRecordWithProof(t *testing.T) {
	f := newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: true})

	req := dto.SubmitAttendanceRequest{Category: models.AttendanceSick, TargetDate: "2024-05-08", Note: "  fever  ", Proof: pngProof()}
	result, err := f.svc.Submit(context.Background(), memberClaims(), req, mondayAfternoon)
	require.NoError(t, err)

	wantKey := fmt.Sprintf("proofs/member-1_%d.png", mondayAfternoon.UnixMilli())
	require.Equal(t, messageExcusedSubmitted, result.Message)
	require.Equal(t, models.ApprovalPending, result.Record.ApprovalState)
	require.Equal(t, models.AttendanceSick, result.Record.Status)
	require.True(t, day(2024, 5, 8).Equal(result.Record.TargetDate))
	require.Equal(t, "fever", *result.Record.Note)
	require.Equal(t, wantKey, *result.Record.ProofReference)
	require.Equal(t, "https://cdn.test/"+wantKey, result.ProofURL)
	require.Equal(t, "image/png", f.proofs.types[wantKey])
}

func TestSubmitExcusedValidation(t *testing.T) {
	cases := []struct {
		name string
		req  dto.SubmitAttendanceRequest
		msg  string
	}{
		{name: "missing target date", req: dto.SubmitAttendanceRequest{Category: models.AttendancePermitted, Note: "family event", Proof: pngProof()}, msg: "target_date is required"},
		{name: "past target date", req: dto.SubmitAttendanceRequest{Category: models.AttendancePermitted, TargetDate: "2024-05-03", Note: "family event", Proof: pngProof()}, msg: "cannot be in the past"},
		{name: "malformed target date", req: dto.SubmitAttendanceRequest{Category: models.AttendancePermitted, TargetDate: "08/05/2024", Note: "family event", Proof: pngProof()}},
		{name: "missing note", req: dto.SubmitAttendanceRequest{Category: models.AttendanceSick, TargetDate: "2024-05-08", Note: "   ", Proof: pngProof()}, msg: "note is required"},
		{name: "missing proof", req: dto.SubmitAttendanceRequest{Category: models.AttendanceSick, TargetDate: "2024-05-08", Note: "flu"}, msg: "proof is required"},
		{name: "absent is not selectable", req: dto.SubmitAttendanceRequest{Category: models.AttendanceAbsent}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: true})
			_, err := f.svc.Submit(context.Background(), memberClaims(), tc.req, mondayAfternoon)
			require.Error(t, err)
			require.True(t, appErrors.Is(err, appErrors.ErrValidation))
			if tc.msg != "" {
				require.Contains(t, err.Error(), tc.msg)
			}
			require.Equal(t, 0, f.records.count())
			require.Empty(t, f.proofs.objects)
		})
	}
}

func TestSubmitTodayIsAllowedForExcused(t *testing.T) {
	f := newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: true})
	req := dto.SubmitAttendanceRequest{Category: models.AttendancePermitted, TargetDate: "2024-05-06", Note: "exam", Proof: pngProof()}
	_, err := f.svc.Submit(context.Background(), memberClaims(), req, mondayAfternoon)
	require.NoError(t, err)
}

func TestSubmitProofLimits(t *testing.T) {
	f := newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: true, MaxFileSize: 8})

	req := dto.SubmitAttendanceRequest{Category: models.AttendanceSick, TargetDate: "2024-05-08", Note: "flu", Proof: pngProof()}
	_, err := f.svc.Submit(context.Background(), memberClaims(), req, mondayAfternoon)
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds 8 bytes")

	f = newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: true})
	req.Proof = &dto.ProofUpload{Filename: "virus.exe", ContentType: "application/x-msdownload", Content: []byte("MZ")}
	_, err = f.svc.Submit(context.Background(), memberClaims(), req, mondayAfternoon)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not allowed")
}

func TestSubmitSniffsMissingContentType(t *testing.T) {
	f := newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: true})
	proof := &dto.ProofUpload{Filename: "scan", Content: pngHeader}

	req := dto.SubmitAttendanceRequest{Category: models.AttendanceSick, TargetDate: "2024-05-08", Note: "flu", Proof: proof}
	result, err := f.svc.Submit(context.Background(), memberClaims(), req, mondayAfternoon)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(*result.Record.ProofReference, ".png"))
}

func TestSubmitRejectsProofWhoseContentDisagreesWithType(t *testing.T) {
	cases := []struct {
		name  string
		proof *dto.ProofUpload
	}{
		{name: "executable labelled png", proof: &dto.ProofUpload{Filename: "letter.png", ContentType: "image/png", Content: []byte("MZ\x90\x00\x03\x00\x00\x00")}},
		{name: "unlabelled executable", proof: &dto.ProofUpload{Filename: "letter", Content: []byte("MZ\x90\x00\x03\x00\x00\x00")}},
		{name: "png labelled pdf", proof: &dto.ProofUpload{Filename: "letter.pdf", ContentType: "application/pdf", Content: pngHeader}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: true})
			req := dto.SubmitAttendanceRequest{Category: models.AttendanceSick, TargetDate: "2024-05-08", Note: "flu", Proof: tc.proof}
			_, err := f.svc.Submit(context.Background(), memberClaims(), req, mondayAfternoon)
			require.True(t, appErrors.Is(err, appErrors.ErrValidation))
			require.Empty(t, f.proofs.objects)
			require.Equal(t, 0, f.records.count())
		})
	}
}

func TestSubmitPresentRejectsAttachedProof(t *testing.T) {
	f := newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: true}, session(day(2024, 5, 6), "13:00", "17:00"))

	req := dto.SubmitAttendanceRequest{Category: models.AttendancePresent, Proof: pngProof()}
	_, err := f.svc.Submit(context.Background(), memberClaims(), req, mondayAfternoon)
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
	require.Empty(t, f.proofs.objects)
	require.Equal(t, 0, f.records.count())
}

func TestSubmitUploadFailureAbortsWithoutRecord(t *testing.T) {
	f := newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: true})
	f.proofs.uploadErr = errors.New("bucket unreachable")

	req := dto.SubmitAttendanceRequest{Category: models.AttendanceSick, TargetDate: "2024-05-08", Note: "flu", Proof: pngProof()}
	_, err := f.svc.Submit(context.Background(), memberClaims(), req, mondayAfternoon)
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrUploadFailed))
	require.Equal(t, 0, f.records.count())
}

func TestSubmitStoreFailureSchedulesProofCleanup(t *testing.T) {
	f := newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: true})
	f.records.createErr = errors.New("insert failed")

	req := dto.SubmitAttendanceRequest{Category: models.AttendanceSick, TargetDate: "2024-05-08", Note: "flu", Proof: pngProof()}
	_, err := f.svc.Submit(context.Background(), memberClaims(), req, mondayAfternoon)
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrInternal))
	require.Equal(t, []string{fmt.Sprintf("proofs/member-1_%d.png", mondayAfternoon.UnixMilli())}, f.cleanup.references())
	require.Equal(t, ProofCleanupJobType, f.cleanup.jobs[0].Type)
}

func TestSubmitDuplicatePolicy(t *testing.T) {
	req := dto.SubmitAttendanceRequest{Category: models.AttendancePresent}

	allowed := newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: true}, session(day(2024, 5, 6), "13:00", "17:00"))
	for i := 0; i < 2; i++ {
		_, err := allowed.svc.Submit(context.Background(), memberClaims(), req, mondayAfternoon)
		require.NoError(t, err)
	}
	require.Equal(t, 2, allowed.records.count())

	strict := newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: false}, session(day(2024, 5, 6), "13:00", "17:00"))
	_, err := strict.svc.Submit(context.Background(), memberClaims(), req, mondayAfternoon)
	require.NoError(t, err)
	_, err = strict.svc.Submit(context.Background(), memberClaims(), req, mondayAfternoon.Add(time.Minute))
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrDuplicateRecord))
	require.Equal(t, 1, strict.records.count())
}

func TestFormOptions(t *testing.T) {
	f := newSubmissionFixture(t, SubmissionConfig{}, session(day(2024, 5, 6), "13:00", "17:00"), session(day(2024, 5, 8), "13:00", "17:00"))

	options := f.svc.FormOptions(context.Background(), mondayAfternoon)
	require.True(t, options.IsPracticeDay)
	require.Equal(t, models.AttendancePresent, options.DefaultCategory)
	require.Len(t, options.Categories, 3)
	require.Len(t, options.UpcomingSessions, 2)

	tuesday := time.Date(2024, 5, 7, 10, 0, 0, 0, wib)
	options = f.svc.FormOptions(context.Background(), tuesday)
	require.False(t, options.IsPracticeDay)
	require.Equal(t, models.AttendancePermitted, options.DefaultCategory)
	for _, c := range options.Categories {
		require.NotEqual(t, models.AttendancePresent, c.Value)
	}
	require.Len(t, options.UpcomingSessions, 1)
}

func TestSelectCategoryRendersFormState(t *testing.T) {
	f := newSubmissionFixture(t, SubmissionConfig{}, session(day(2024, 5, 6), "13:00", "17:00"), session(day(2024, 5, 8), "13:00", "17:00"))

	closed := f.svc.SelectCategory(context.Background(), models.AttendancePresent, time.Date(2024, 5, 6, 19, 0, 0, 0, wib))
	require.Equal(t, string(FormClosed), closed.State)
	require.NotNil(t, closed.NextAllowedDate)
	require.True(t, day(2024, 5, 8).Equal(*closed.NextAllowedDate))
	require.Empty(t, closed.RequiredFields)
	require.NotNil(t, closed.Options)

	open := f.svc.SelectCategory(context.Background(), models.AttendanceSick, mondayAfternoon)
	require.Equal(t, string(FormOpen), open.State)
	require.Equal(t, []string{FieldProof, FieldTargetDate, FieldNote}, open.RequiredFields)
}

func TestSubmissionFormTransitions(t *testing.T) {
	form := NewSubmissionForm(newEligibility(&stubScheduleStore{sessions: []models.PracticeSchedule{session(day(2024, 5, 6), "13:00", "17:00")}}, EligibilityConfig{}))
	require.Equal(t, FormIdle, form.State())
	require.Equal(t, string(FormIdle), form.View().State)

	require.Equal(t, FormOpen, form.Select(context.Background(), models.AttendancePresent, mondayAfternoon))
	require.Empty(t, form.View().RequiredFields)

	require.Equal(t, FormClosed, form.Select(context.Background(), models.AttendancePresent, time.Date(2024, 5, 6, 12, 0, 0, 0, wib)))
	view := form.View()
	require.Contains(t, view.Reason, "opens at 13:00")

	form.Reset()
	require.Equal(t, FormIdle, form.State())
	require.Nil(t, form.View().Eligibility)
}

func TestReplaceProof(t *testing.T) {
	f := newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: true})
	oldRef := "proofs/member-1_1.png"
	f.records.put(models.AttendanceRecord{ID: "att-x", MemberID: "member-1", Status: models.AttendanceSick, ApprovalState: models.ApprovalPending, ProofReference: &oldRef})
	f.records.put(models.AttendanceRecord{ID: "att-done", MemberID: "member-1", Status: models.AttendanceSick, ApprovalState: models.ApprovalApproved, ProofReference: &oldRef})

	result, err := f.svc.ReplaceProof(context.Background(), memberClaims(), "att-x", pngProof(), mondayAfternoon)
	require.NoError(t, err)
	newRef := fmt.Sprintf("proofs/member-1_%d.png", mondayAfternoon.UnixMilli())
	require.Equal(t, newRef, *result.Record.ProofReference)
	require.Equal(t, []string{oldRef}, f.cleanup.references())

	stored, _ := f.records.FindByID(context.Background(), "att-x")
	require.Equal(t, newRef, *stored.ProofReference)

	other := &models.JWTClaims{UserID: "member-2", Role: models.RoleMember}
	_, err = f.svc.ReplaceProof(context.Background(), other, "att-x", pngProof(), mondayAfternoon)
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.ReplaceProof(context.Background(), memberClaims(), "att-done", pngProof(), mondayAfternoon)
	require.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))

	_, err = f.svc.ReplaceProof(context.Background(), memberClaims(), "missing", pngProof(), mondayAfternoon)
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestReplaceProofSlowUploadKeepsStoreDeadline(t *testing.T) {
	f := newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: true, StoreTimeout: 50 * time.Millisecond})
	f.records.put(models.AttendanceRecord{ID: "att-x", MemberID: "member-1", Status: models.AttendanceSick, ApprovalState: models.ApprovalPending})
	f.proofs.delay = 80 * time.Millisecond

	result, err := f.svc.ReplaceProof(context.Background(), memberClaims(), "att-x", pngProof(), mondayAfternoon)
	require.NoError(t, err)
	require.NotNil(t, result.Record.ProofReference)
	require.Empty(t, f.cleanup.references())
}

func TestReplaceProofLosingRaceCleansNewUpload(t *testing.T) {
	f := newSubmissionFixture(t, SubmissionConfig{AllowDuplicates: true})
	f.records.put(models.AttendanceRecord{ID: "att-x", MemberID: "member-1", Status: models.AttendanceSick, ApprovalState: models.ApprovalPending})
	f.records.updateErr = repository.ErrNotPending

	_, err := f.svc.ReplaceProof(context.Background(), memberClaims(), "att-x", pngProof(), mondayAfternoon)
	require.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
	require.Equal(t, []string{fmt.Sprintf("proofs/member-1_%d.png", mondayAfternoon.UnixMilli())}, f.cleanup.references())
}

func TestProofCleanupHandler(t *testing.T) {
	store := newProofStoreStub()
	store.objects["proofs/a.png"] = []byte("x")
	handler := ProofCleanupHandler(store)

	require.NoError(t, handler(context.Background(), jobs.Job{ID: "1", Payload: "proofs/a.png"}))
	require.Empty(t, store.objects)
	require.Error(t, handler(context.Background(), jobs.Job{ID: "2", Payload: 42}))
}

func TestScheduleProofCleanupIgnoresEnqueueFailure(t *testing.T) {
	queue := &enqueuerStub{err: errors.New("queue is full")}
	require.NotPanics(t, func() {
		scheduleProofCleanup(queue, "proofs/a.png", nil, zap.NewNop())
	})
	require.Empty(t, queue.jobs)
}
