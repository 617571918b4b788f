package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/riverqueue/river"
	"github.com/rs/zerolog"

	"github.com/Fairlead-Analytics/riskserver/internal/batch"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/uploads"
	"github.com/Fairlead-Analytics/riskserver/internal/metrics"
	"github.com/Fairlead-Analytics/riskserver/internal/storage"
	"github.com/Fairlead-Analytics/riskserver/internal/storage/postgres"
)

// BatchPredictionArgs identifies one staged upload to process. The staged
// path and everything else lives on the batch_uploads row.
type BatchPredictionArgs struct {
	UploadID string `json:"upload_id"`
}

func (BatchPredictionArgs) Kind() string { return JobKindBatchPrediction }

func (BatchPredictionArgs) InsertOpts() river.InsertOpts {
	return InsertOptsForKind(JobKindBatchPrediction)
}

// BatchPredictionWorker drives one upload through the batch pipeline and
// records the outcome on its upload row.
type BatchPredictionWorker struct {
	river.WorkerDefaults[BatchPredictionArgs]
	Pipeline *batch.Pipeline
	Uploads  storage.UploadRepository
	Logger   zerolog.Logger
}

func (BatchPredictionWorker) Kind() string { return JobKindBatchPrediction }

func (w BatchPredictionWorker) Work(ctx context.Context, job *river.Job[BatchPredictionArgs]) error {
	if w.Pipeline == nil || w.Uploads == nil {
		return fmt.Errorf("batch prediction worker not configured")
	}
	uploadID := job.Args.UploadID
	if uploadID == "" {
		return river.JobCancel(fmt.Errorf("upload ID is required"))
	}

	upload, err := w.Uploads.GetByUploadID(ctx, uploadID)
	if errors.Is(err, postgres.ErrUploadNotFound) {
		return river.JobCancel(err)
	}
	if err != nil {
		return err
	}
	// A redelivered job for a finished upload has nothing left to do.
	if uploads.Terminal(upload.Status) {
		return nil
	}

	if err := w.Uploads.MarkRunning(ctx, uploadID); err != nil {
		return err
	}

	summary, err := w.Pipeline.Run(ctx, uploadID, upload.StagedPath)
	if err != nil {
		return w.fail(ctx, job, upload, err)
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := w.Uploads.RecordSummary(ctx, uploadID, payload); err != nil {
		return err
	}
	metrics.BatchUploadsCompleted.WithLabelValues(uploads.StatusSucceeded).Inc()
	w.removeStaged(upload)
	return nil
}

// fail routes a pipeline error: fatal file problems cancel the job with a
// recorded failure, transient ones surface to River for retry. The last
// retry also goes terminal so the upload never sticks in running.
func (w BatchPredictionWorker) fail(ctx context.Context, job *river.Job[BatchPredictionArgs], upload *uploads.Upload, runErr error) error {
	var fatal *batch.FatalError
	if errors.As(runErr, &fatal) {
		w.recordFailure(ctx, upload, runErr)
		return river.JobCancel(runErr)
	}
	if job.Attempt >= job.MaxAttempts {
		w.recordFailure(ctx, upload, runErr)
	}
	return runErr
}

func (w BatchPredictionWorker) recordFailure(ctx context.Context, upload *uploads.Upload, runErr error) {
	if err := w.Uploads.RecordFailure(ctx, upload.UploadID, runErr.Error()); err != nil {
		w.Logger.Error().Err(err).Str("upload_id", upload.UploadID).
			Msg("failed to record upload failure")
	}
	metrics.BatchUploadsCompleted.WithLabelValues(uploads.StatusFailed).Inc()
	w.removeStaged(upload)
}

func (w BatchPredictionWorker) removeStaged(upload *uploads.Upload) {
	if err := os.Remove(upload.StagedPath); err != nil && !os.IsNotExist(err) {
		w.Logger.Warn().Err(err).Str("upload_id", upload.UploadID).
			Str("path", upload.StagedPath).Msg("failed to remove staged file")
	}
}

// UploadCleanupArgs is the periodic housekeeping job.
type UploadCleanupArgs struct{}

func (UploadCleanupArgs) Kind() string { return JobKindUploadCleanup }

const (
	// DefaultFileRetention is how long an aged staged file may sit in the
	// uploads directory before the sweep considers removing it. Files
	// whose upload row is still non-terminal are exempt regardless of
	// age; a queued job still needs its input.
	DefaultFileRetention = time.Hour
	// DefaultRowRetention is how long terminal upload rows are kept.
	DefaultRowRetention = 30 * 24 * time.Hour
	// staleAfter is how long an upload may stay non-terminal before it is
	// written off as abandoned (worker crashed, job lost).
	staleAfter = 24 * time.Hour
)

// UploadCleanupWorker sweeps aged staged files, fails abandoned uploads,
// and prunes old terminal rows.
type UploadCleanupWorker struct {
	river.WorkerDefaults[UploadCleanupArgs]
	Uploads       storage.UploadRepository
	UploadsDir    string
	FileRetention time.Duration
	RowRetention  time.Duration
	Logger        zerolog.Logger
}

func (UploadCleanupWorker) Kind() string { return JobKindUploadCleanup }

func (w UploadCleanupWorker) Work(ctx context.Context, job *river.Job[UploadCleanupArgs]) error {
	if w.Uploads == nil {
		return fmt.Errorf("upload cleanup worker not configured")
	}
	fileRetention := w.FileRetention
	if fileRetention <= 0 {
		fileRetention = DefaultFileRetention
	}
	rowRetention := w.RowRetention
	if rowRetention <= 0 {
		rowRetention = DefaultRowRetention
	}
	now := time.Now().UTC()

	removed := w.sweepStagedFiles(ctx, now.Add(-fileRetention))

	abandoned, err := w.failAbandoned(ctx, now.Add(-staleAfter))
	if err != nil {
		return err
	}

	pruned, err := w.Uploads.DeleteTerminalBefore(ctx, now.Add(-rowRetention))
	if err != nil {
		return err
	}

	metrics.CleanupFilesRemoved.Add(float64(removed))
	metrics.CleanupUploadsAbandoned.Add(float64(abandoned))
	metrics.CleanupRowsPruned.Add(float64(pruned))

	if removed > 0 || abandoned > 0 || pruned > 0 {
		w.Logger.Info().
			Int("files_removed", removed).
			Int("uploads_abandoned", abandoned).
			Int64("rows_pruned", pruned).
			Msg("upload cleanup complete")
	}
	return nil
}

func (w UploadCleanupWorker) sweepStagedFiles(ctx context.Context, cutoff time.Time) int {
	if w.UploadsDir == "" {
		return 0
	}
	entries, err := os.ReadDir(w.UploadsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			w.Logger.Warn().Err(err).Str("dir", w.UploadsDir).Msg("failed to read uploads dir")
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if w.uploadActive(ctx, entry.Name()) {
			continue
		}
		path := filepath.Join(w.UploadsDir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			w.Logger.Warn().Err(err).Str("path", path).Msg("failed to remove stale staged file")
			continue
		}
		removed++
	}
	return removed
}

// uploadActive reports whether a staged file still belongs to an upload a
// worker may yet process. Staged files are named {uploadID}{ext}, so the
// file name resolves straight to its batch_uploads row. Only files whose
// row is terminal or gone are eligible for removal; on any other lookup
// error the file is kept until the next sweep.
func (w UploadCleanupWorker) uploadActive(ctx context.Context, name string) bool {
	uploadID := strings.TrimSuffix(name, filepath.Ext(name))
	upload, err := w.Uploads.GetByUploadID(ctx, uploadID)
	if errors.Is(err, uploads.ErrNotFound) {
		return false
	}
	if err != nil {
		return true
	}
	return !uploads.Terminal(upload.Status)
}

func (w UploadCleanupWorker) failAbandoned(ctx context.Context, before time.Time) (int, error) {
	stale, err := w.Uploads.ListStale(ctx, before)
	if err != nil {
		return 0, err
	}
	failed := 0
	for _, upload := range stale {
		err := w.Uploads.RecordFailure(ctx, upload.UploadID, "abandoned: no worker completed this upload")
		if err != nil {
			w.Logger.Warn().Err(err).Str("upload_id", upload.UploadID).
				Msg("failed to mark upload abandoned")
			continue
		}
		failed++
	}
	return failed, nil
}

// WorkerDeps carries everything the worker set needs.
type WorkerDeps struct {
	Pipeline      *batch.Pipeline
	Uploads       storage.UploadRepository
	UploadsDir    string
	FileRetention time.Duration
	RowRetention  time.Duration
	Logger        zerolog.Logger
}

func NewWorkers(deps WorkerDeps) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker[BatchPredictionArgs](workers, BatchPredictionWorker{
		Pipeline: deps.Pipeline,
		Uploads:  deps.Uploads,
		Logger:   deps.Logger,
	})
	river.AddWorker[UploadCleanupArgs](workers, UploadCleanupWorker{
		Uploads:       deps.Uploads,
		UploadsDir:    deps.UploadsDir,
		FileRetention: deps.FileRetention,
		RowRetention:  deps.RowRetention,
		Logger:        deps.Logger,
	})
	return workers
}
