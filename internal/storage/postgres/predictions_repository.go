package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Fairlead-Analytics/riskserver/internal/api/pagination"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/ids"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/predictions"
	"github.com/Fairlead-Analytics/riskserver/internal/metrics"
	"github.com/Fairlead-Analytics/riskserver/internal/scoring"
)

var _ predictions.Repository = (*PredictionRepository)(nil)

const ratioColumns = `debt_to_equity_ratio, current_ratio, quick_ratio, return_on_equity,
	return_on_assets, profit_margin, interest_coverage, fixed_asset_turnover, total_debt_ebitda`

const predictionColumns = `id, ulid, company_id, risk_level, probability, confidence,
	` + ratioColumns + `, predicted_at, created_at`

// Create persists the ratio snapshot and its prediction atomically. When
// the repository is already transaction-scoped both inserts join that
// transaction; otherwise Create opens its own.
func (r *PredictionRepository) Create(ctx context.Context, params predictions.CreateParams) (*predictions.Prediction, error) {
	if r.tx != nil {
		return r.create(ctx, r.tx, params)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}

	prediction, err := r.create(ctx, tx, params)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return prediction, nil
}

func (r *PredictionRepository) create(ctx context.Context, tx pgx.Tx, params predictions.CreateParams) (_ *predictions.Prediction, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("prediction_create", start, err) }()

	predictedAt := params.PredictedAt
	if predictedAt.IsZero() {
		predictedAt = time.Now().UTC()
	}
	ratioArgs := ratioValues(params.Ratios)

	snapshotQuery := `
		INSERT INTO financial_ratios (company_id, ` + ratioColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	var snapshotID int64
	args := append([]any{params.CompanyID}, ratioArgs...)
	if err := tx.QueryRow(ctx, snapshotQuery, args...).Scan(&snapshotID); err != nil {
		return nil, fmt.Errorf("insert ratio snapshot: %w", err)
	}

	ulid, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate ulid: %w", err)
	}

	predictionQuery := `
		INSERT INTO risk_predictions (
			ulid, company_id, ratio_id, risk_level, probability, confidence,
			` + ratioColumns + `, predicted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + predictionColumns
	args = append([]any{
		ulid, params.CompanyID, snapshotID,
		params.Result.RiskLevel, params.Result.Probability, params.Result.Confidence,
	}, ratioArgs...)
	args = append(args, predictedAt)

	prediction, err := scanPrediction(tx.QueryRow(ctx, predictionQuery, args...))
	if err != nil {
		return nil, fmt.Errorf("insert prediction: %w", err)
	}
	return prediction, nil
}

func (r *PredictionRepository) LatestForCompany(ctx context.Context, companyID int64, since time.Time) (*predictions.Prediction, error) {
	query := `
		SELECT ` + predictionColumns + `
		FROM risk_predictions
		WHERE company_id = $1 AND predicted_at >= $2
		ORDER BY predicted_at DESC, id DESC
		LIMIT 1`

	prediction, err := scanPrediction(r.queryer().QueryRow(ctx, query, companyID, since))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, predictions.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest prediction for company %d: %w", companyID, err)
	}
	return prediction, nil
}

func (r *PredictionRepository) ListByCompany(ctx context.Context, companyID int64, paginationArgs predictions.Pagination) (predictions.ListResult, error) {
	limit := paginationArgs.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + predictionColumns + `
		FROM risk_predictions
		WHERE company_id = $1`
	args := []any{companyID}

	if paginationArgs.After != "" {
		cursor, err := pagination.DecodeCompanyCursor(paginationArgs.After)
		if err != nil {
			return predictions.ListResult{}, err
		}
		query += fmt.Sprintf(" AND (predicted_at, ulid) < ($%d, $%d)", len(args)+1, len(args)+2)
		args = append(args, cursor.Timestamp, cursor.ULID)
	}

	query += fmt.Sprintf(" ORDER BY predicted_at DESC, ulid DESC LIMIT $%d", len(args)+1)
	args = append(args, limit+1)

	rows, err := r.queryer().Query(ctx, query, args...)
	if err != nil {
		return predictions.ListResult{}, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	var items []predictions.Prediction
	for rows.Next() {
		prediction, err := scanPrediction(rows)
		if err != nil {
			return predictions.ListResult{}, fmt.Errorf("list predictions: %w", err)
		}
		items = append(items, *prediction)
	}
	if err := rows.Err(); err != nil {
		return predictions.ListResult{}, fmt.Errorf("list predictions: %w", err)
	}

	result := predictions.ListResult{}
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		result.NextCursor = pagination.EncodeCompanyCursor(last.PredictedAt, last.ULID)
	}
	result.Predictions = items
	return result, nil
}

func (r *PredictionRepository) ListSnapshotsByCompany(ctx context.Context, companyID int64, paginationArgs predictions.Pagination) (predictions.SnapshotListResult, error) {
	limit := paginationArgs.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, company_id, ` + ratioColumns + `, created_at
		FROM financial_ratios
		WHERE company_id = $1`
	args := []any{companyID}

	if paginationArgs.After != "" {
		cursor, err := pagination.DecodeSnapshotCursor(paginationArgs.After)
		if err != nil {
			return predictions.SnapshotListResult{}, err
		}
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)+1, len(args)+2)
		args = append(args, cursor.Timestamp, cursor.ID)
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args)+1)
	args = append(args, limit+1)

	rows, err := r.queryer().Query(ctx, query, args...)
	if err != nil {
		return predictions.SnapshotListResult{}, fmt.Errorf("list ratio snapshots: %w", err)
	}
	defer rows.Close()

	var items []predictions.Snapshot
	for rows.Next() {
		var s predictions.Snapshot
		err := rows.Scan(
			&s.ID, &s.CompanyID,
			&s.Ratios.DebtToEquity, &s.Ratios.CurrentRatio, &s.Ratios.QuickRatio,
			&s.Ratios.ReturnOnEquity, &s.Ratios.ReturnOnAssets, &s.Ratios.ProfitMargin,
			&s.Ratios.InterestCoverage, &s.Ratios.FixedAssetTurnover, &s.Ratios.TotalDebtEBITDA,
			&s.CreatedAt,
		)
		if err != nil {
			return predictions.SnapshotListResult{}, fmt.Errorf("list ratio snapshots: %w", err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return predictions.SnapshotListResult{}, fmt.Errorf("list ratio snapshots: %w", err)
	}

	result := predictions.SnapshotListResult{}
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		result.NextCursor = pagination.EncodeSnapshotCursor(last.CreatedAt, last.ID)
	}
	result.Snapshots = items
	return result, nil
}

func ratioValues(r scoring.Ratios) []any {
	return []any{
		r.DebtToEquity, r.CurrentRatio, r.QuickRatio, r.ReturnOnEquity,
		r.ReturnOnAssets, r.ProfitMargin, r.InterestCoverage, r.FixedAssetTurnover,
		r.TotalDebtEBITDA,
	}
}

func scanPrediction(row pgx.Row) (*predictions.Prediction, error) {
	var p predictions.Prediction
	err := row.Scan(
		&p.ID, &p.ULID, &p.CompanyID, &p.RiskLevel, &p.Probability, &p.Confidence,
		&p.Ratios.DebtToEquity, &p.Ratios.CurrentRatio, &p.Ratios.QuickRatio,
		&p.Ratios.ReturnOnEquity, &p.Ratios.ReturnOnAssets, &p.Ratios.ProfitMargin,
		&p.Ratios.InterestCoverage, &p.Ratios.FixedAssetTurnover, &p.Ratios.TotalDebtEBITDA,
		&p.PredictedAt, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type predictionQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *PredictionRepository) queryer() predictionQueryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}
