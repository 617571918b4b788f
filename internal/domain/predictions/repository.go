package predictions

import (
	"context"
	"errors"
	"time"

	"github.com/Fairlead-Analytics/riskserver/internal/scoring"
)

var ErrNotFound = errors.New("prediction not found")

// Prediction is one stored risk assessment. Rows are append-only; a company
// accumulates history rather than overwriting its latest score.
type Prediction struct {
	ID          int64
	ULID        string
	CompanyID   int64
	RiskLevel   string
	Probability float64
	Confidence  float64
	Ratios      scoring.Ratios
	PredictedAt time.Time
	CreatedAt   time.Time
}

// CreateParams carries everything the store needs to persist one scored
// snapshot: the ratio inputs and the model outcome, written atomically.
type CreateParams struct {
	CompanyID   int64
	Ratios      scoring.Ratios
	Result      scoring.Result
	PredictedAt time.Time
}

// Snapshot is one stored financial_ratios row: the raw inputs as submitted,
// without the model outcome.
type Snapshot struct {
	ID        int64
	CompanyID int64
	Ratios    scoring.Ratios
	CreatedAt time.Time
}

type Pagination struct {
	Limit int
	After string
}

type ListResult struct {
	Predictions []Prediction
	NextCursor  string
}

type SnapshotListResult struct {
	Snapshots  []Snapshot
	NextCursor string
}

type Repository interface {
	// Create persists a ratio snapshot and its prediction in one transaction.
	Create(ctx context.Context, params CreateParams) (*Prediction, error)
	// LatestForCompany returns the newest prediction at or after since, or
	// ErrNotFound when the company has none in the window.
	LatestForCompany(ctx context.Context, companyID int64, since time.Time) (*Prediction, error)
	ListByCompany(ctx context.Context, companyID int64, pagination Pagination) (ListResult, error)
	// ListSnapshotsByCompany pages through a company's raw ratio history,
	// newest first.
	ListSnapshotsByCompany(ctx context.Context, companyID int64, pagination Pagination) (SnapshotListResult, error)
}
