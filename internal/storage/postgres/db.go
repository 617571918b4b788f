package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fairlead-Analytics/riskserver/internal/domain/companies"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/predictions"
	"github.com/Fairlead-Analytics/riskserver/internal/storage"
)

type Repository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ storage.Repository = (*Repository)(nil)

func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Companies() companies.Repository {
	return &CompanyRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Predictions() predictions.Repository {
	return &PredictionRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Uploads() storage.UploadRepository {
	return &UploadRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, storage.Repository) error) error {
	return r.WithPgxTx(ctx, func(ctx context.Context, wrapped *Repository) error {
		return fn(ctx, wrapped)
	})
}

// WithPgxTx is WithTx with the concrete repository type, for callers that
// also need the raw transaction (transactional job enqueue).
func (r *Repository) WithPgxTx(ctx context.Context, fn func(context.Context, *Repository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	wrapped := &Repository{pool: r.pool, tx: tx}
	if err := fn(ctx, wrapped); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Tx returns the transaction backing this repository, or nil outside a
// WithTx scope.
func (r *Repository) Tx() pgx.Tx { return r.tx }

// Pool returns the underlying connection pool.
func (r *Repository) Pool() *pgxpool.Pool { return r.pool }

type CompanyRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

type PredictionRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

type UploadRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}
