package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ukm-attendance-api/internal/dto"
	"github.com/noah-isme/ukm-attendance-api/internal/models"
	appErrors "github.com/noah-isme/ukm-attendance-api/pkg/errors"
	"github.com/noah-isme/ukm-attendance-api/pkg/response"
)

type eligibilityService interface {
	Check(ctx context.Context, category models.AttendanceStatus, now time.Time) models.EligibilityResult
	Now() time.Time
	Today() time.Time
}

type submissionService interface {
	SelectCategory(ctx context.Context, category models.AttendanceStatus, now time.Time) dto.FormView
	Submit(ctx context.Context, actor *models.JWTClaims, req dto.SubmitAttendanceRequest, now time.Time) (*dto.SubmissionResult, error)
	ReplaceProof(ctx context.Context, actor *models.JWTClaims, recordID string, upload *dto.ProofUpload, now time.Time) (*dto.SubmissionResult, error)
}

type approvalService interface {
	Approve(ctx context.Context, actor *models.JWTClaims, id string) (*models.AttendanceRecord, error)
	Reject(ctx context.Context, actor *models.JWTClaims, id, reason string) (*models.AttendanceRecord, error)
	List(ctx context.Context, date time.Time, pendingOnly bool) (*dto.AttendanceListResponse, error)
}

// AttendanceHandler exposes the member submission and secretary review endpoints.
type AttendanceHandler struct {
	eligibility   eligibilityService
	submissions   submissionService
	approvals     approvalService
	maxProofBytes int64
}

// NewAttendanceHandler constructs the handler. maxProofBytes caps how much of
// an uploaded proof is buffered; larger files are still reported with their
// declared size so the service can reject them.
func NewAttendanceHandler(eligibility eligibilityService, submissions submissionService, approvals approvalService, maxProofBytes int64) *AttendanceHandler {
	if maxProofBytes <= 0 {
		maxProofBytes = 5 << 20
	}
	return &AttendanceHandler{eligibility: eligibility, submissions: submissions, approvals: approvals, maxProofBytes: maxProofBytes}
}

// Eligibility godoc
// @Summary Check whether a category can be submitted now
// @Tags Attendance
// @Produce json
// @Param category query string true "present, sick or permitted"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/eligibility [get]
func (h *AttendanceHandler) Eligibility(c *gin.Context) {
	category, err := categoryQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result := h.eligibility.Check(c.Request.Context(), category, h.eligibility.Now())
	response.JSON(c, http.StatusOK, result, nil)
}

// Form godoc
// @Summary Render the submission form for a category
// @Description Runs the eligibility check and returns the form state with the selectable categories.
// @Tags Attendance
// @Produce json
// @Param category query string true "present, sick or permitted"
// @Success 200 {object} response.Envelope
// @Router /attendance/form [get]
func (h *AttendanceHandler) Form(c *gin.Context) {
	category, err := categoryQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view := h.submissions.SelectCategory(c.Request.Context(), category, h.eligibility.Now())
	response.JSON(c, http.StatusOK, view, nil)
}

// Submit godoc
// @Summary Submit attendance
// @Description Present is recorded immediately when the practice window is open. Sick and permitted require a note and a proof file and wait for secretary approval.
// @Tags Attendance
// @Accept multipart/form-data
// @Produce json
// @Param category formData string true "present, sick or permitted"
// @Param target_date formData string false "YYYY-MM-DD, required for sick and permitted"
// @Param note formData string false "Reason, required for sick and permitted"
// @Param proof formData file false "Proof image or PDF"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SubmitAttendanceRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}
	proof, err := h.readProof(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	req.Proof = proof

	result, err := h.submissions.Submit(c.Request.Context(), claims, req, h.eligibility.Now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusCreated, result.Message, result)
}

// ReplaceProof godoc
// @Summary Replace the proof of a pending submission
// @Tags Attendance
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Attendance ID"
// @Param proof formData file true "Proof image or PDF"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /attendance/{id}/proof [put]
func (h *AttendanceHandler) ReplaceProof(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	proof, err := h.readProof(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.submissions.ReplaceProof(c.Request.Context(), claims, c.Param("id"), proof, h.eligibility.Now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, result.Message, result)
}

// List godoc
// @Summary List attendance for a date
// @Tags Attendance
// @Produce json
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Param pending_only query bool false "Only records awaiting review"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	date := h.eligibility.Today()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		date = parsed
	}
	pendingOnly := false
	if raw := c.Query("pending_only"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "pending_only must be a boolean"))
			return
		}
		pendingOnly = parsed
	}

	result, err := h.approvals.List(c.Request.Context(), date, pendingOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Approve godoc
// @Summary Approve a pending excused submission
// @Tags Attendance
// @Produce json
// @Param id path string true "Attendance ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /attendance/{id}/approve [post]
func (h *AttendanceHandler) Approve(c *gin.Context) {
	record, err := h.approvals.Approve(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "attendance approved", record)
}

// Reject godoc
// @Summary Reject a pending excused submission
// @Description The record becomes absent and keeps the reason.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Attendance ID"
// @Param payload body dto.RejectAttendanceRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /attendance/{id}/reject [post]
func (h *AttendanceHandler) Reject(c *gin.Context) {
	var req dto.RejectAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection payload"))
		return
	}
	record, err := h.approvals.Reject(c.Request.Context(), claimsFromContext(c), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "attendance rejected", record)
}

func (h *AttendanceHandler) readProof(c *gin.Context) (*dto.ProofUpload, error) {
	header, err := c.FormFile("proof")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid proof upload")
	}
	return readUpload(header, h.maxProofBytes)
}

func readUpload(header *multipart.FileHeader, limit int64) (*dto.ProofUpload, error) {
	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read proof")
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read proof")
	}
	return &dto.ProofUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     content,
	}, nil
}

func categoryQuery(c *gin.Context) (models.AttendanceStatus, error) {
	category := models.AttendanceStatus(c.Query("category"))
	if !category.MemberSelectable() {
		return "", appErrors.Clone(appErrors.ErrValidation, "category must be one of present, sick, permitted")
	}
	return category, nil
}
