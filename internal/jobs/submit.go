package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/Fairlead-Analytics/riskserver/internal/domain/uploads"
	"github.com/Fairlead-Analytics/riskserver/internal/storage/postgres"
)

// Submitter creates an upload row and its batch job in one transaction, so
// an accepted upload always has a job and an enqueued job always has a row.
type Submitter struct {
	repo   *postgres.Repository
	client *river.Client[pgx.Tx]
}

func NewSubmitter(repo *postgres.Repository, client *river.Client[pgx.Tx]) *Submitter {
	return &Submitter{repo: repo, client: client}
}

func (s *Submitter) Submit(ctx context.Context, params uploads.CreateParams) (*uploads.Upload, error) {
	var upload *uploads.Upload
	err := s.repo.WithPgxTx(ctx, func(ctx context.Context, txRepo *postgres.Repository) error {
		created, err := txRepo.Uploads().Create(ctx, params)
		if err != nil {
			return err
		}

		row, err := s.client.InsertTx(ctx, txRepo.Tx(), BatchPredictionArgs{UploadID: created.UploadID}, nil)
		if err != nil {
			return fmt.Errorf("enqueue batch job: %w", err)
		}

		if err := txRepo.Uploads().SetJobID(ctx, created.UploadID, row.Job.ID); err != nil {
			return err
		}
		jobID := row.Job.ID
		created.RiverJobID = &jobID
		upload = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return upload, nil
}
