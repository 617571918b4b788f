package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fairlead-Analytics/riskserver/internal/batch"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/companies"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/predictions"
)

// BatchStore implements batch.Store. Each session pins one pool connection
// for the life of a batch run, so a long batch cannot starve itself by
// re-contending the pool on every record.
type BatchStore struct {
	pool *pgxpool.Pool
}

func NewBatchStore(pool *pgxpool.Pool) *BatchStore {
	return &BatchStore{pool: pool}
}

var _ batch.Store = (*BatchStore)(nil)

func (s *BatchStore) Session(ctx context.Context) (batch.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &batchSession{conn: conn}, nil
}

type batchSession struct {
	conn *pgxpool.Conn
}

// Record runs fn in its own transaction on the pinned connection. The
// commit-or-rollback boundary is what isolates one record's failure from
// its neighbors.
func (s *batchSession) Record(ctx context.Context, fn func(batch.RecordStore) error) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	if err := fn(&recordStore{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit record tx: %w", err)
	}
	return nil
}

func (s *batchSession) Close() {
	s.conn.Release()
}

type recordStore struct {
	tx pgx.Tx
}

func (s *recordStore) ResolveCompany(ctx context.Context, params companies.ResolveParams) (*companies.Company, error) {
	repo := &CompanyRepository{tx: s.tx}
	return companies.NewService(repo).Resolve(ctx, params)
}

func (s *recordStore) CreatePrediction(ctx context.Context, params predictions.CreateParams) (*predictions.Prediction, error) {
	repo := &PredictionRepository{tx: s.tx}
	return repo.Create(ctx, params)
}
