package storage

import (
	"context"
	"time"

	"github.com/Fairlead-Analytics/riskserver/internal/domain/companies"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/predictions"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/uploads"
)

// Repository groups data access by domain. WithTx yields a Repository
// whose sub-repositories share one transaction.
type Repository interface {
	Companies() companies.Repository
	Predictions() predictions.Repository
	Uploads() UploadRepository

	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
}

// UploadRepository tracks batch uploads through their lifecycle. Status
// transitions are one-way: pending to running to a terminal state.
type UploadRepository interface {
	Create(ctx context.Context, params uploads.CreateParams) (*uploads.Upload, error)
	SetJobID(ctx context.Context, uploadID string, jobID int64) error
	GetByUploadID(ctx context.Context, uploadID string) (*uploads.Upload, error)
	MarkRunning(ctx context.Context, uploadID string) error
	RecordSummary(ctx context.Context, uploadID string, summary []byte) error
	RecordFailure(ctx context.Context, uploadID string, message string) error
	// ListStale returns non-terminal uploads created before the cutoff,
	// for orphaned staged-file cleanup.
	ListStale(ctx context.Context, before time.Time) ([]uploads.Upload, error)
	// DeleteTerminalBefore prunes terminal uploads older than the cutoff
	// and reports how many rows went away.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
