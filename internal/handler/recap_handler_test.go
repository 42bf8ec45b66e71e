package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ukm-attendance-api/internal/dto"
	"github.com/noah-isme/ukm-attendance-api/internal/models"
	"github.com/noah-isme/ukm-attendance-api/internal/service"
	appErrors "github.com/noah-isme/ukm-attendance-api/pkg/errors"
)

type recapServiceMock struct {
	report  *models.RecapReport
	err     error
	lastReq dto.RecapRequest
}

func (m *recapServiceMock) Recap(ctx context.Context, req dto.RecapRequest) (*models.RecapReport, error) {
	m.lastReq = req
	return m.report, m.err
}

type exportServiceMock struct {
	result   *models.RecapExport
	download *service.ExportDownload
	err      error
	lastReq  dto.RecapExportRequest
}

func (m *exportServiceMock) Export(ctx context.Context, actor *models.JWTClaims, req dto.RecapExportRequest) (*models.RecapExport, error) {
	m.lastReq = req
	return m.result, m.err
}

func (m *exportServiceMock) Open(token string) (*service.ExportDownload, error) {
	return m.download, m.err
}

type proofResolverMock struct {
	path string
	err  error
}

func (m proofResolverMock) Resolve(token string) (string, error) {
	return m.path, m.err
}

func TestRecapHandlerRecap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recaps := &recapServiceMock{report: &models.RecapReport{Rows: []models.RecapRow{{MemberName: "Rani Putri", Present: 2, Total: 2, Percentage: 100}}}}
	handler := NewRecapHandler(recaps, &exportServiceMock{})

	c, w := newTestContext(http.MethodGet, "/attendance/recap?from=2024-05-01&to=2024-05-31", nil, "")
	handler.Recap(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-05-01", recaps.lastReq.From)
	assert.Equal(t, "2024-05-31", recaps.lastReq.To)

	recaps.err = appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	c, w = newTestContext(http.MethodGet, "/attendance/recap?from=2024-05-31&to=2024-05-01", nil, "")
	handler.Recap(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecapHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exports := &exportServiceMock{result: &models.RecapExport{Format: "xlsx", URL: "/api/v1/exports/download?token=t"}}
	handler := NewRecapHandler(&recapServiceMock{}, exports)

	payload, _ := json.Marshal(dto.RecapExportRequest{From: "2024-05-01", To: "2024-05-31", Format: "xlsx"})
	c, w := newTestContext(http.MethodPost, "/attendance/recap/export", payload, "application/json")
	c.Set("currentUser", &models.JWTClaims{UserID: "sec-1", Role: models.RoleSecretary})
	handler.Export(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "xlsx", exports.lastReq.Format)

	c, w = newTestContext(http.MethodPost, "/attendance/recap/export", payload, "application/json")
	handler.Export(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRecapHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	file, err := os.CreateTemp(t.TempDir(), "recap*.csv")
	require.NoError(t, err)
	_, _ = file.WriteString("Member,Present\nRani Putri,2\n")
	_, _ = file.Seek(0, 0)

	exports := &exportServiceMock{download: &service.ExportDownload{
		File:        file,
		Filename:    "recap.csv",
		ContentType: "text/csv",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	handler := NewRecapHandler(&recapServiceMock{}, exports)

	c, w := newTestContext(http.MethodGet, "/exports/download?token=abc", nil, "")
	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "recap.csv")
	assert.Contains(t, w.Body.String(), "Rani Putri,2")

	c, w = newTestContext(http.MethodGet, "/exports/download", nil, "")
	handler.Download(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	exports.err = appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	c, w = newTestContext(http.MethodGet, "/exports/download?token=stale", nil, "")
	handler.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestProofHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "member-1_1714978800000.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o600))

	handler := NewProofHandler(proofResolverMock{path: path})
	c, w := newTestContext(http.MethodGet, "/proofs/download?token=ok", nil, "")
	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "member-1_1714978800000.png")

	denied := NewProofHandler(proofResolverMock{err: os.ErrPermission})
	c, w = newTestContext(http.MethodGet, "/proofs/download?token=bad", nil, "")
	denied.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
