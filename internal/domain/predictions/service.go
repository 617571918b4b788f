package predictions

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	paginationpkg "github.com/Fairlead-Analytics/riskserver/internal/api/pagination"
	"github.com/Fairlead-Analytics/riskserver/internal/metrics"
	"github.com/Fairlead-Analytics/riskserver/internal/scoring"
)

// ReuseWindow is how long a stored prediction stays fresh. A request for a
// company scored within the window returns the stored row instead of
// re-running the model.
const ReuseWindow = 24 * time.Hour

type Service struct {
	repo  Repository
	model *scoring.Model
	now   func() time.Time
}

func NewService(repo Repository, model *scoring.Model) *Service {
	return &Service{repo: repo, model: model, now: time.Now}
}

// Outcome distinguishes a freshly computed prediction from a reused one so
// callers can surface cache behavior without changing the payload shape.
type Outcome struct {
	Prediction *Prediction
	Reused     bool
}

// Predict returns the company's current risk assessment. A prediction
// newer than ReuseWindow is returned as-is; otherwise the model runs and
// the snapshot plus outcome are persisted as a new history row.
func (s *Service) Predict(ctx context.Context, companyID int64, ratios scoring.Ratios) (Outcome, error) {
	now := s.now().UTC()

	existing, err := s.repo.LatestForCompany(ctx, companyID, now.Add(-ReuseWindow))
	if err == nil {
		metrics.PredictionsTotal.WithLabelValues(existing.RiskLevel, "reused").Inc()
		return Outcome{Prediction: existing, Reused: true}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Outcome{}, err
	}

	result, err := s.model.Score(ratios)
	if err != nil {
		return Outcome{}, fmt.Errorf("score company %d: %w", companyID, err)
	}

	created, err := s.repo.Create(ctx, CreateParams{
		CompanyID:   companyID,
		Ratios:      ratios,
		Result:      result,
		PredictedAt: now,
	})
	if err != nil {
		return Outcome{}, err
	}
	metrics.PredictionsTotal.WithLabelValues(created.RiskLevel, "computed").Inc()
	return Outcome{Prediction: created}, nil
}

// History lists a company's predictions, newest first.
func (s *Service) History(ctx context.Context, companyID int64, pagination Pagination) (ListResult, error) {
	return s.repo.ListByCompany(ctx, companyID, pagination)
}

// RatioHistory lists a company's raw ratio snapshots, newest first.
func (s *Service) RatioHistory(ctx context.Context, companyID int64, pagination Pagination) (SnapshotListResult, error) {
	return s.repo.ListSnapshotsByCompany(ctx, companyID, pagination)
}

// ParsePagination reads limit and after from a history query string.
func ParsePagination(values url.Values) (Pagination, error) {
	return parsePagination(values, func(after string) error {
		_, err := paginationpkg.DecodeCompanyCursor(after)
		return err
	})
}

// ParseSnapshotPagination is ParsePagination for ratio history queries,
// whose cursors carry a row ID instead of a ULID.
func ParseSnapshotPagination(values url.Values) (Pagination, error) {
	return parsePagination(values, func(after string) error {
		_, err := paginationpkg.DecodeSnapshotCursor(after)
		return err
	})
}

func parsePagination(values url.Values, validateCursor func(string) error) (Pagination, error) {
	pagination := Pagination{Limit: 20}

	rawLimit := strings.TrimSpace(values.Get("limit"))
	if rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil {
			return pagination, fmt.Errorf("invalid limit: must be a number")
		}
		if parsed < 1 || parsed > 100 {
			return pagination, fmt.Errorf("invalid limit: must be between 1 and 100")
		}
		pagination.Limit = parsed
	}

	after := strings.TrimSpace(values.Get("after"))
	if after != "" {
		if err := validateCursor(after); err != nil {
			return pagination, fmt.Errorf("invalid after: must be a valid cursor")
		}
	}
	pagination.After = after

	return pagination, nil
}
