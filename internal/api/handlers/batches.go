package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"

	"github.com/Fairlead-Analytics/riskserver/internal/api/problem"
	"github.com/Fairlead-Analytics/riskserver/internal/dataset"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/uploads"
	"github.com/Fairlead-Analytics/riskserver/internal/metrics"
)

// BatchSubmitter persists an upload row and enqueues its batch job in one
// transaction.
type BatchSubmitter interface {
	Submit(ctx context.Context, params uploads.CreateParams) (*uploads.Upload, error)
}

// JobStateReader looks up queue jobs for status reporting.
type JobStateReader interface {
	JobGet(ctx context.Context, id int64) (*rivertype.JobRow, error)
}

// UploadReader is the status endpoint's view of upload storage.
type UploadReader interface {
	GetByUploadID(ctx context.Context, uploadID string) (*uploads.Upload, error)
}

type BatchesHandler struct {
	Submitter BatchSubmitter
	Uploads   UploadReader
	Jobs      JobStateReader
	Dir       string
	Env       string
}

func NewBatchesHandler(submitter BatchSubmitter, uploadRepo UploadReader, jobs JobStateReader, dir, env string) *BatchesHandler {
	return &BatchesHandler{Submitter: submitter, Uploads: uploadRepo, Jobs: jobs, Dir: dir, Env: env}
}

type batchAcceptedResponse struct {
	UploadID string `json:"upload_id"`
	JobID    *int64 `json:"job_id"`
	Status   string `json:"status"`
	Filename string `json:"filename"`
	RowCount int    `json:"row_count"`
}

// Create accepts a multipart dataset upload, stages it, validates the
// header before anything is enqueued, and dispatches the batch job. The
// staged file is removed on every rejection path; once the job is
// enqueued the worker and the cleanup job own it.
func (h *BatchesHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Submitter == nil || h.Dir == "" {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", nil, h.Env)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeUploadTooLarge, "Upload too large", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", FilterError{Field: "file", Message: "missing multipart file field"}, h.Env)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !dataset.SupportedExtension(ext) {
		problem.Write(w, r, http.StatusUnsupportedMediaType, problem.TypeUnsupportedFormat, "Unsupported file format", FilterError{Field: "file", Message: "must be .csv or .xlsx"}, h.Env)
		return
	}

	uploadID := uuid.NewString()
	staged, checksum, size, err := h.stage(uploadID+ext, file)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeUploadTooLarge, "Upload too large", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}

	ds, err := dataset.Parse(staged)
	if err != nil {
		h.discard(r.Context(), staged)
		problem.Write(w, r, http.StatusUnprocessableEntity, problem.TypeInvalidDataset, "Unreadable dataset", err, h.Env)
		return
	}
	if err := ds.Validate(); err != nil {
		h.discard(r.Context(), staged)
		var schemaErr *dataset.SchemaError
		if errors.As(err, &schemaErr) {
			problem.Write(w, r, http.StatusUnprocessableEntity, problem.TypeInvalidDataset, "Invalid dataset", err, h.Env,
				problem.WithErrors(map[string]any{"missing_columns": schemaErr.Missing}))
			return
		}
		problem.Write(w, r, http.StatusUnprocessableEntity, problem.TypeInvalidDataset, "Invalid dataset", err, h.Env)
		return
	}

	upload, err := h.Submitter.Submit(r.Context(), uploads.CreateParams{
		UploadID:   uploadID,
		Filename:   header.Filename,
		StagedPath: staged,
		Checksum:   checksum,
		RowCount:   len(ds.Records),
	})
	if err != nil {
		h.discard(r.Context(), staged)
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeDispatchError, "Job queue unavailable", err, h.Env)
		return
	}

	// Counted only once the upload row and its job exist; a rejected
	// dataset is not a submitted upload.
	metrics.UploadsSubmitted.WithLabelValues(strings.TrimPrefix(ext, ".")).Inc()
	metrics.UploadSizeBytes.Observe(float64(size))

	writeJSON(w, http.StatusAccepted, batchAcceptedResponse{
		UploadID: upload.UploadID,
		JobID:    upload.RiverJobID,
		Status:   upload.Status,
		Filename: upload.Filename,
		RowCount: upload.RowCount,
	})
}

// stage copies the upload into the staging dir as {uuid}{ext}, hashing as
// it writes. A partial file is removed before the error returns.
func (h *BatchesHandler) stage(name string, src io.Reader) (path, checksum string, size int64, err error) {
	if err := os.MkdirAll(h.Dir, 0o755); err != nil {
		return "", "", 0, err
	}

	path = filepath.Join(h.Dir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", "", 0, err
	}

	hash := sha256.New()
	size, err = io.Copy(io.MultiWriter(out, hash), src)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", "", 0, err
	}
	return path, hex.EncodeToString(hash.Sum(nil)), size, nil
}

func (h *BatchesHandler) discard(ctx context.Context, staged string) {
	if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", staged).Msg("failed to remove rejected upload")
	}
}

type batchStatusResponse struct {
	UploadID    string          `json:"upload_id"`
	JobID       *int64          `json:"job_id,omitempty"`
	Status      string          `json:"status"`
	Filename    string          `json:"filename"`
	RowCount    int             `json:"row_count"`
	Summary     json.RawMessage `json:"summary,omitempty"`
	Error       *string         `json:"error,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Get reports batch status. Terminal uploads answer from storage; for the
// rest the queue job is the fresher source, so its state wins when it can
// be read.
func (h *BatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Uploads == nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", nil, h.Env)
		return
	}

	uploadID, err := uploadIDParam(r)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
		return
	}

	upload, err := h.Uploads.GetByUploadID(r.Context(), uploadID)
	if err != nil {
		if errors.Is(err, uploads.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}

	status := upload.Status
	if !uploads.Terminal(status) && upload.RiverJobID != nil && h.Jobs != nil {
		job, err := h.Jobs.JobGet(r.Context(), *upload.RiverJobID)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Int64("job_id", *upload.RiverJobID).Msg("job state lookup failed")
		} else {
			status = batchStatus(job.State, status)
		}
	}

	writeJSON(w, http.StatusOK, batchStatusResponse{
		UploadID:    upload.UploadID,
		JobID:       upload.RiverJobID,
		Status:      status,
		Filename:    upload.Filename,
		RowCount:    upload.RowCount,
		Summary:     upload.Summary,
		Error:       upload.Error,
		SubmittedAt: upload.CreatedAt,
		UpdatedAt:   upload.UpdatedAt,
	})
}

// batchStatus maps a queue job state onto the upload lifecycle.
func batchStatus(state rivertype.JobState, fallback string) string {
	switch state {
	case rivertype.JobStateAvailable, rivertype.JobStateScheduled, rivertype.JobStatePending, rivertype.JobStateRetryable:
		return uploads.StatusPending
	case rivertype.JobStateRunning:
		return uploads.StatusRunning
	case rivertype.JobStateCompleted:
		return uploads.StatusSucceeded
	case rivertype.JobStateCancelled, rivertype.JobStateDiscarded:
		return uploads.StatusFailed
	default:
		return fallback
	}
}
