package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Fairlead-Analytics/riskserver/internal/domain/uploads"
	"github.com/Fairlead-Analytics/riskserver/internal/metrics"
	"github.com/Fairlead-Analytics/riskserver/internal/storage"
)

var _ storage.UploadRepository = (*UploadRepository)(nil)

// ErrUploadNotFound aliases the domain sentinel so storage callers can
// match on either name.
var ErrUploadNotFound = uploads.ErrNotFound

const uploadColumns = `id, upload_id, river_job_id, filename, staged_path, checksum,
	row_count, status, summary, error, created_at, updated_at`

func (r *UploadRepository) Create(ctx context.Context, params uploads.CreateParams) (*uploads.Upload, error) {
	query := `
		INSERT INTO batch_uploads (upload_id, filename, staged_path, checksum, row_count, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + uploadColumns

	upload, err := scanUpload(r.queryer().QueryRow(ctx, query,
		params.UploadID, params.Filename, params.StagedPath, params.Checksum,
		params.RowCount, uploads.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}
	return upload, nil
}

func (r *UploadRepository) SetJobID(ctx context.Context, uploadID string, jobID int64) error {
	query := `UPDATE batch_uploads SET river_job_id = $2, updated_at = now() WHERE upload_id = $1`
	return r.exec(ctx, "set job id", query, uploadID, jobID)
}

func (r *UploadRepository) GetByUploadID(ctx context.Context, uploadID string) (*uploads.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM batch_uploads WHERE upload_id = $1`

	upload, err := scanUpload(r.queryer().QueryRow(ctx, query, uploadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload %s: %w", uploadID, err)
	}
	return upload, nil
}

func (r *UploadRepository) MarkRunning(ctx context.Context, uploadID string) error {
	// Running is re-enterable so a retried job can reclaim its upload.
	query := `
		UPDATE batch_uploads SET status = $2, updated_at = now()
		WHERE upload_id = $1 AND status IN ($3, $2)`
	return r.exec(ctx, "mark running", query, uploadID, uploads.StatusRunning, uploads.StatusPending)
}

func (r *UploadRepository) RecordSummary(ctx context.Context, uploadID string, summary []byte) error {
	query := `
		UPDATE batch_uploads
		SET status = $2, summary = $3, error = NULL, updated_at = now()
		WHERE upload_id = $1`
	return r.exec(ctx, "record summary", query, uploadID, uploads.StatusSucceeded, summary)
}

func (r *UploadRepository) RecordFailure(ctx context.Context, uploadID string, message string) error {
	query := `
		UPDATE batch_uploads
		SET status = $2, error = $3, updated_at = now()
		WHERE upload_id = $1`
	return r.exec(ctx, "record failure", query, uploadID, uploads.StatusFailed, message)
}

func (r *UploadRepository) ListStale(ctx context.Context, before time.Time) ([]uploads.Upload, error) {
	query := `
		SELECT ` + uploadColumns + `
		FROM batch_uploads
		WHERE status IN ($1, $2) AND created_at < $3
		ORDER BY created_at`

	rows, err := r.queryer().Query(ctx, query, uploads.StatusPending, uploads.StatusRunning, before)
	if err != nil {
		return nil, fmt.Errorf("list stale uploads: %w", err)
	}
	defer rows.Close()

	var items []uploads.Upload
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("list stale uploads: %w", err)
		}
		items = append(items, *upload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stale uploads: %w", err)
	}
	return items, nil
}

func (r *UploadRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM batch_uploads
		WHERE status IN ($1, $2) AND updated_at < $3`

	tag, err := r.queryer().Exec(ctx, query, uploads.StatusSucceeded, uploads.StatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete terminal uploads: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *UploadRepository) exec(ctx context.Context, op, query string, args ...any) error {
	start := time.Now()
	tag, err := r.queryer().Exec(ctx, query, args...)
	metrics.RecordQuery("upload_"+strings.ReplaceAll(op, " ", "_"), start, err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrUploadNotFound)
	}
	return nil
}

func scanUpload(row pgx.Row) (*uploads.Upload, error) {
	var u uploads.Upload
	err := row.Scan(
		&u.ID, &u.UploadID, &u.RiverJobID, &u.Filename, &u.StagedPath, &u.Checksum,
		&u.RowCount, &u.Status, &u.Summary, &u.Error, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type uploadQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *UploadRepository) queryer() uploadQueryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}
