package service

import (
	"context"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ukm-attendance-api/internal/dto"
	"github.com/noah-isme/ukm-attendance-api/internal/models"
	appErrors "github.com/noah-isme/ukm-attendance-api/pkg/errors"
)

type recapRepository interface {
	Recap(ctx context.Context, from, to time.Time) ([]models.RecapRow, error)
}

// RecapService aggregates attendance per member over a date range.
type RecapService struct {
	repo         recapRepository
	validator    *validator.Validate
	logger       *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

// NewRecapService constructs the service.
func NewRecapService(repo recapRepository, validate *validator.Validate, logger *zap.Logger, storeTimeout time.Duration) *RecapService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &RecapService{repo: repo, validator: validate, logger: logger, storeTimeout: storeTimeout, now: time.Now}
}

// Recap returns per-member counts for from <= target date <= to.
func (s *RecapService) Recap(ctx context.Context, req dto.RecapRequest) (*models.RecapReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recap range")
	}
	from, err := time.Parse(models.DateLayout, req.From)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD")
	}
	to, err := time.Parse(models.DateLayout, req.To)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD")
	}
	if from.After(to) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	rows, err := s.repo.Recap(storeCtx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build recap")
	}
	if rows == nil {
		rows = []models.RecapRow{}
	}
	for i := range rows {
		finishRecapRow(&rows[i])
	}
	return &models.RecapReport{From: from, To: to, Rows: rows, GeneratedAt: s.now().UTC()}, nil
}

// finishRecapRow fills Total and the presence percentage rounded to one decimal.
func finishRecapRow(row *models.RecapRow) {
	row.Total = row.Present + row.Sick + row.Permitted + row.Absent
	if row.Total == 0 {
		row.Percentage = 0
		return
	}
	row.Percentage = math.Round(float64(row.Present)/float64(row.Total)*1000) / 10
}
