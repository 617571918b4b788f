// Package uploads defines the lifecycle of a staged batch upload. A row in
// batch_uploads is the durable record of one submitted spreadsheet and
// outlives the staged file itself.
package uploads

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned for lookups and transitions that match no
// batch_uploads row.
var ErrNotFound = errors.New("upload not found")

// Upload statuses. Pending means accepted and queued, running means a
// worker owns it, succeeded and failed are terminal. A batch with record
// failures still succeeds; failed is reserved for runs that could not
// produce a summary at all.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Terminal reports whether a status will never change again.
func Terminal(status string) bool {
	return status == StatusSucceeded || status == StatusFailed
}

type Upload struct {
	ID         int64
	UploadID   string
	RiverJobID *int64
	Filename   string
	StagedPath string
	Checksum   string
	RowCount   int
	Status     string
	// Summary is the processing outcome as stored, present only on
	// succeeded uploads.
	Summary   json.RawMessage
	Error     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateParams describes a newly staged upload before its job is enqueued.
type CreateParams struct {
	UploadID   string
	Filename   string
	StagedPath string
	Checksum   string
	RowCount   int
}
