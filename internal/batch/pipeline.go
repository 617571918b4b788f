// Package batch runs a parsed upload through entity resolution, scoring,
// and persistence. Each record gets its own transaction so one bad row
// cannot take down the rows around it.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fairlead-Analytics/riskserver/internal/dataset"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/companies"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/predictions"
	"github.com/Fairlead-Analytics/riskserver/internal/metrics"
	"github.com/Fairlead-Analytics/riskserver/internal/scoring"
)

// MaxSummaryErrors caps the error list carried in a summary. Failures past
// the cap still count; only their messages are dropped.
const MaxSummaryErrors = 5

// FatalError marks a failure no retry can fix: the file itself is bad.
// Session and cancellation errors stay unwrapped so callers treat them as
// transient.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// Summary is the durable outcome of one batch run.
type Summary struct {
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// RecordStore is the per-record transactional surface: resolve the company
// and persist its scored snapshot, all or nothing.
type RecordStore interface {
	ResolveCompany(ctx context.Context, params companies.ResolveParams) (*companies.Company, error)
	CreatePrediction(ctx context.Context, params predictions.CreateParams) (*predictions.Prediction, error)
}

// Session is a batch's pinned database session. Record runs fn in its own
// transaction, committing on nil and rolling back on error.
type Session interface {
	Record(ctx context.Context, fn func(RecordStore) error) error
	Close()
}

// Store hands out sessions for batch runs.
type Store interface {
	Session(ctx context.Context) (Session, error)
}

// Pipeline processes staged uploads. It is safe for concurrent use; each
// Run acquires its own session.
type Pipeline struct {
	store  Store
	model  *scoring.Model
	logger zerolog.Logger
}

func NewPipeline(store Store, model *scoring.Model, logger zerolog.Logger) *Pipeline {
	return &Pipeline{store: store, model: model, logger: logger}
}

// Run processes the staged file at path and returns a summary. A non-nil
// error means the batch as a whole could not run (unreadable file, schema
// failure, no database session); per-record problems are folded into the
// summary instead. The caller owns the staged file: it must survive here
// so a retried run can read it again.
func (p *Pipeline) Run(ctx context.Context, uploadID, path string) (Summary, error) {
	logger := p.logger.With().Str("upload_id", uploadID).Logger()

	ds, err := dataset.Parse(path)
	if err != nil {
		return Summary{}, &FatalError{Err: fmt.Errorf("parse upload: %w", err)}
	}
	if err := ds.Validate(); err != nil {
		return Summary{}, &FatalError{Err: err}
	}

	session, err := p.store.Session(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("acquire session: %w", err)
	}
	defer session.Close()

	start := time.Now()
	defer func() {
		metrics.BatchRunDuration.Observe(time.Since(start).Seconds())
	}()

	summary := Summary{Processed: len(ds.Records)}
	for i, record := range ds.Records {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}
		if err := p.processRecord(ctx, session, record); err != nil {
			summary.Failed++
			metrics.BatchRecordsProcessed.WithLabelValues("failed").Inc()
			if len(summary.Errors) < MaxSummaryErrors {
				summary.Errors = append(summary.Errors, fmt.Sprintf("Record %d: %v", i+1, err))
			}
			logger.Warn().Err(err).Int("record", i+1).Msg("record failed")
			continue
		}
		summary.Succeeded++
		metrics.BatchRecordsProcessed.WithLabelValues("succeeded").Inc()
	}

	logger.Info().
		Int("processed", summary.Processed).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("batch complete")
	return summary, nil
}

func (p *Pipeline) processRecord(ctx context.Context, session Session, record dataset.Record) error {
	params, ratios, err := extract(record)
	if err != nil {
		return err
	}

	result, err := p.model.Score(ratios)
	if err != nil {
		return err
	}

	return session.Record(ctx, func(store RecordStore) error {
		company, err := store.ResolveCompany(ctx, params)
		if err != nil {
			return err
		}
		_, err = store.CreatePrediction(ctx, predictions.CreateParams{
			CompanyID: company.ID,
			Ratios:    ratios,
			Result:    result,
		})
		return err
	})
}

func extract(record dataset.Record) (companies.ResolveParams, scoring.Ratios, error) {
	params := companies.ResolveParams{
		Symbol: record.Text(dataset.ColumnSymbol),
		Name:   record.Text(dataset.ColumnName),
	}
	if params.Symbol == "" {
		return params, scoring.Ratios{}, fmt.Errorf("missing stock symbol")
	}
	if params.Name == "" {
		return params, scoring.Ratios{}, fmt.Errorf("missing company name")
	}

	marketCap, err := record.Number(dataset.ColumnMarketCap)
	if err != nil {
		return params, scoring.Ratios{}, err
	}
	params.MarketCap = marketCap
	if sector := record.Text(dataset.ColumnSector); sector != "" {
		params.Sector = &sector
	}

	ratios, err := extractRatios(record)
	if err != nil {
		return params, scoring.Ratios{}, err
	}
	return params, ratios, nil
}

func extractRatios(record dataset.Record) (scoring.Ratios, error) {
	var ratios scoring.Ratios
	for column, field := range map[string]**float64{
		dataset.ColumnDebtToEquity:       &ratios.DebtToEquity,
		dataset.ColumnCurrentRatio:       &ratios.CurrentRatio,
		dataset.ColumnQuickRatio:         &ratios.QuickRatio,
		dataset.ColumnReturnOnEquity:     &ratios.ReturnOnEquity,
		dataset.ColumnReturnOnAssets:     &ratios.ReturnOnAssets,
		dataset.ColumnProfitMargin:       &ratios.ProfitMargin,
		dataset.ColumnInterestCoverage:   &ratios.InterestCoverage,
		dataset.ColumnFixedAssetTurnover: &ratios.FixedAssetTurnover,
		dataset.ColumnTotalDebtEBITDA:    &ratios.TotalDebtEBITDA,
	} {
		value, err := record.Number(column)
		if err != nil {
			return scoring.Ratios{}, err
		}
		*field = value
	}
	return ratios, nil
}
