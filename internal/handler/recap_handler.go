package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ukm-attendance-api/internal/dto"
	"github.com/noah-isme/ukm-attendance-api/internal/models"
	"github.com/noah-isme/ukm-attendance-api/internal/service"
	appErrors "github.com/noah-isme/ukm-attendance-api/pkg/errors"
	"github.com/noah-isme/ukm-attendance-api/pkg/response"
)

type recapService interface {
	Recap(ctx context.Context, req dto.RecapRequest) (*models.RecapReport, error)
}

type exportService interface {
	Export(ctx context.Context, actor *models.JWTClaims, req dto.RecapExportRequest) (*models.RecapExport, error)
	Open(token string) (*service.ExportDownload, error)
}

// RecapHandler serves attendance recaps and their file exports.
type RecapHandler struct {
	recaps  recapService
	exports exportService
}

// NewRecapHandler constructs handler.
func NewRecapHandler(recaps recapService, exports exportService) *RecapHandler {
	return &RecapHandler{recaps: recaps, exports: exports}
}

// Recap godoc
// @Summary Per-member attendance recap
// @Tags Recap
// @Produce json
// @Param from query string true "YYYY-MM-DD"
// @Param to query string true "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/recap [get]
func (h *RecapHandler) Recap(c *gin.Context) {
	var req dto.RecapRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid recap query"))
		return
	}
	report, err := h.recaps.Recap(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Export godoc
// @Summary Export the recap as CSV, PDF or XLSX
// @Description Renders the recap and returns a signed download link.
// @Tags Recap
// @Accept json
// @Produce json
// @Param payload body dto.RecapExportRequest true "Export payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/recap/export [post]
func (h *RecapHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RecapExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	result, err := h.exports.Export(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download a recap export via signed token
// @Tags Recap
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /exports/download [get]
func (h *RecapHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.exports.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	info, err := result.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.DataFromReader(http.StatusOK, info.Size(), result.ContentType, result.File, nil)
}
