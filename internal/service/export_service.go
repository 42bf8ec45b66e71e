package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ukm-attendance-api/internal/dto"
	"github.com/noah-isme/ukm-attendance-api/internal/models"
	appErrors "github.com/noah-isme/ukm-attendance-api/pkg/errors"
	"github.com/noah-isme/ukm-attendance-api/pkg/export"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type tokenSigner interface {
	Generate(subject, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (subject, relPath string, expiresAt time.Time, err error)
}

type recapBuilder interface {
	Recap(ctx context.Context, req dto.RecapRequest) (*models.RecapReport, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	// DownloadURL is the route redeeming export tokens.
	DownloadURL string
	ResultTTL   time.Duration
}

// ExportDownload is an opened export file.
type ExportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// ExportService renders recaps to files and hands out signed download links.
type ExportService struct {
	recaps  recapBuilder
	storage fileStorage
	signer  tokenSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(recaps recapBuilder, storage fileStorage, signer tokenSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.DownloadURL == "" {
		cfg.DownloadURL = "/api/v1/exports/download"
	}
	return &ExportService{recaps: recaps, storage: storage, signer: signer, logger: logger, cfg: cfg, now: time.Now}
}

// Export renders the recap for the requested range and format.
func (s *ExportService) Export(ctx context.Context, actor *models.JWTClaims, req dto.RecapExportRequest) (*models.RecapExport, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	renderer, err := export.NewRenderer(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	report, err := s.recaps.Recap(ctx, dto.RecapRequest{From: req.From, To: req.To})
	if err != nil {
		return nil, err
	}

	payload, err := renderer.Render(recapDataset(report))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render recap")
	}
	filename := fmt.Sprintf("recap_%s_%s_%s%s", req.From, req.To, s.now().UTC().Format("20060102_150405"), renderer.Extension())
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store recap export")
	}
	token, expiresAt, err := s.signer.Generate(actor.UserID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign recap export")
	}
	s.logger.Info("recap exported", zap.String("file", relPath), zap.String("format", string(format)), zap.String("user_id", actor.UserID))

	return &models.RecapExport{
		Format:    string(format),
		Filename:  filename,
		URL:       s.cfg.DownloadURL + "?token=" + url.QueryEscape(token),
		ExpiresAt: expiresAt,
	}, nil
}

// Open validates a download token and opens the file it grants.
func (s *ExportService) Open(token string) (*ExportDownload, error) {
	_, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	return &ExportDownload{
		File:        file,
		Filename:    filepath.Base(relPath),
		ContentType: exportContentType(relPath),
		ExpiresAt:   expiresAt,
	}, nil
}

// Cleanup removes exports older than the configured TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	removed, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return removed, err
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
	return removed, nil
}

func exportContentType(relPath string) string {
	format, err := export.ParseFormat(strings.TrimPrefix(filepath.Ext(relPath), "."))
	if err != nil {
		return "application/octet-stream"
	}
	renderer, err := export.NewRenderer(format)
	if err != nil {
		return "application/octet-stream"
	}
	return renderer.ContentType()
}

func recapDataset(report *models.RecapReport) export.Dataset {
	rows := make([]map[string]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, map[string]string{
			"member":     row.MemberName,
			"present":    fmt.Sprintf("%d", row.Present),
			"sick":       fmt.Sprintf("%d", row.Sick),
			"permitted":  fmt.Sprintf("%d", row.Permitted),
			"absent":     fmt.Sprintf("%d", row.Absent),
			"total":      fmt.Sprintf("%d", row.Total),
			"percentage": fmt.Sprintf("%.1f", row.Percentage),
		})
	}
	return export.Dataset{
		Title:    "Attendance Recap",
		Subtitle: fmt.Sprintf("%s to %s", report.From.Format(models.DateLayout), report.To.Format(models.DateLayout)),
		Columns: []export.Column{
			{Key: "member", Label: "Member"},
			{Key: "present", Label: "Present", Numeric: true},
			{Key: "sick", Label: "Sick", Numeric: true},
			{Key: "permitted", Label: "Permitted", Numeric: true},
			{Key: "absent", Label: "Absent", Numeric: true},
			{Key: "total", Label: "Total", Numeric: true},
			{Key: "percentage", Label: "Presence (%)", Numeric: true},
		},
		Rows: rows,
	}
}
