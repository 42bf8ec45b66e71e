package service

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/ukm-attendance-api/internal/dto"
	"github.com/noah-isme/ukm-attendance-api/internal/models"
	appErrors "github.com/noah-isme/ukm-attendance-api/pkg/errors"
	"github.com/noah-isme/ukm-attendance-api/pkg/storage"
)

type recapRepoStub struct {
	rows     []models.RecapRow
	err      error
	from, to time.Time
}

func (r *recapRepoStub) Recap(ctx context.Context, from, to time.Time) ([]models.RecapRow, error) {
	r.from, r.to = from, to
	if r.err != nil {
		return nil, r.err
	}
	return append([]models.RecapRow(nil), r.rows...), nil
}

func sampleRecapRows() []models.RecapRow {
	return []models.RecapRow{
		{MemberID: "m-1", MemberName: "Rani Putri", Present: 2, Sick: 1, Permitted: 0, Absent: 0},
		{MemberID: "m-2", MemberName: "Bayu", Present: 1, Sick: 0, Permitted: 1, Absent: 1},
		{MemberID: "m-3", MemberName: "Sinta"},
	}
}

func newExportServiceForTest(t *testing.T, signerNow func() time.Time) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	if signerNow != nil {
		signer = signer.WithClock(signerNow)
	}
	recaps := NewRecapService(&recapRepoStub{rows: sampleRecapRows()}, nil, nil, 0)
	svc := NewExportService(recaps, store, signer, ExportConfig{DownloadURL: "/api/v1/exports/download", ResultTTL: time.Hour}, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 5, 31, 8, 0, 0, 0, time.UTC) }
	return svc, store
}

func tokenFromURL(t *testing.T, raw string) string {
	t.Helper()
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	return parsed.Query().Get("token")
}

func TestExportServiceCSVRoundTrip(t *testing.T) {
	svc, _ := newExportServiceForTest(t, nil)

	result, err := svc.Export(context.Background(), secretaryClaims(), dto.RecapExportRequest{From: "2024-05-01", To: "2024-05-31"})
	require.NoError(t, err)
	require.Equal(t, "csv", result.Format)
	require.Equal(t, "recap_2024-05-01_2024-05-31_20240531_080000.csv", result.Filename)
	require.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/download?token="))

	download, err := svc.Open(tokenFromURL(t, result.URL))
	require.NoError(t, err)
	defer download.File.Close()
	require.Equal(t, "text/csv", download.ContentType)
	require.Equal(t, result.Filename, download.Filename)

	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	require.Contains(t, string(body), "Member,Present,Sick,Permitted,Absent,Total,Presence (%)")
	require.Contains(t, string(body), "Rani Putri,2,1,0,0,3,66.7")
	require.Contains(t, string(body), "Sinta,0,0,0,0,0,0.0")
}

func TestExportServiceFormats(t *testing.T) {
	svc, _ := newExportServiceForTest(t, nil)
	for _, format := range []string{"pdf", "xlsx"} {
		result, err := svc.Export(context.Background(), secretaryClaims(), dto.RecapExportRequest{From: "2024-05-01", To: "2024-05-31", Format: format})
		require.NoError(t, err, format)
		require.True(t, strings.HasSuffix(result.Filename, "."+format))
	}

	_, err := svc.Export(context.Background(), secretaryClaims(), dto.RecapExportRequest{From: "2024-05-01", To: "2024-05-31", Format: "docx"})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Export(context.Background(), secretaryClaims(), dto.RecapExportRequest{From: "2024-05-31", To: "2024-05-01"})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestExportServiceRejectsBadTokens(t *testing.T) {
	clock := time.Now()
	svc, _ := newExportServiceForTest(t, func() time.Time { return clock })

	result, err := svc.Export(context.Background(), secretaryClaims(), dto.RecapExportRequest{From: "2024-05-01", To: "2024-05-31"})
	require.NoError(t, err)
	token := tokenFromURL(t, result.URL)

	_, err = svc.Open(token + "00")
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	clock = clock.Add(2 * time.Hour)
	_, err = svc.Open(token)
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestExportServiceCleanup(t *testing.T) {
	svc, store := newExportServiceForTest(t, nil)

	result, err := svc.Export(context.Background(), secretaryClaims(), dto.RecapExportRequest{From: "2024-05-01", To: "2024-05-31"})
	require.NoError(t, err)

	removed, err := svc.Cleanup()
	require.NoError(t, err)
	require.Empty(t, removed)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path(result.Filename), old, old))
	removed, err = svc.Cleanup()
	require.NoError(t, err)
	require.Equal(t, []string{result.Filename}, removed)

	_, err = svc.Open(tokenFromURL(t, result.URL))
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestRecapComputesTotalsAndPercentage(t *testing.T) {
	repo := &recapRepoStub{rows: sampleRecapRows()}
	svc := NewRecapService(repo, nil, nil, 0)

	report, err := svc.Recap(context.Background(), dto.RecapRequest{From: "2024-05-01", To: "2024-05-31"})
	require.NoError(t, err)
	require.True(t, day(2024, 5, 1).Equal(repo.from))
	require.True(t, day(2024, 5, 31).Equal(repo.to))
	require.Len(t, report.Rows, 3)

	require.Equal(t, 3, report.Rows[0].Total)
	require.Equal(t, 66.7, report.Rows[0].Percentage)
	require.Equal(t, 3, report.Rows[1].Total)
	require.Equal(t, 33.3, report.Rows[1].Percentage)
	require.Zero(t, report.Rows[2].Total)
	require.Zero(t, report.Rows[2].Percentage)
}

func TestRecapValidation(t *testing.T) {
	svc := NewRecapService(&recapRepoStub{}, nil, nil, 0)

	_, err := svc.Recap(context.Background(), dto.RecapRequest{From: "2024-05-10", To: "2024-05-01"})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
	_, err = svc.Recap(context.Background(), dto.RecapRequest{From: "May 1", To: "2024-05-01"})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))

	same, err := svc.Recap(context.Background(), dto.RecapRequest{From: "2024-05-01", To: "2024-05-01"})
	require.NoError(t, err)
	require.NotNil(t, same.Rows)

	failing := NewRecapService(&recapRepoStub{err: errors.New("down")}, nil, nil, 0)
	_, err = failing.Recap(context.Background(), dto.RecapRequest{From: "2024-05-01", To: "2024-05-31"})
	require.True(t, appErrors.Is(err, appErrors.ErrInternal))
}
