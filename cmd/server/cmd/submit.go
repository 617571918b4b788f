package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var (
	submitURL     string
	submitWait    bool
	submitTimeout int
)

var submitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Submit a batch dataset for scoring",
	Long: `Upload a CSV or XLSX spreadsheet to a running server for batch scoring.

With --wait, polls the upload status until it reaches a terminal state and
prints the processing summary.

Examples:
  riskserver submit portfolio.csv
  riskserver submit portfolio.xlsx --wait
  riskserver submit portfolio.csv --url http://risk.internal:8080 --wait`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitURL, "url", "", "server base URL (default: http://localhost:{SERVER_PORT})")
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "poll until the upload reaches a terminal state")
	submitCmd.Flags().IntVar(&submitTimeout, "timeout", 300, "wait timeout in seconds")
}

type submitResponse struct {
	UploadID string `json:"upload_id"`
	Status   string `json:"status"`
	RowCount int    `json:"row_count"`
}

type statusResponse struct {
	UploadID string          `json:"upload_id"`
	Status   string          `json:"status"`
	Summary  json.RawMessage `json:"summary,omitempty"`
	Error    *string         `json:"error,omitempty"`
}

func runSubmit(cmd *cobra.Command, args []string) error {
	baseURL := submitURL
	if baseURL == "" {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		baseURL = "http://localhost:" + port
	}

	accepted, err := uploadDataset(baseURL, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "upload accepted: %s (%d rows, status %s)\n", accepted.UploadID, accepted.RowCount, accepted.Status)

	if !submitWait {
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(submitTimeout)*time.Second)
	defer cancel()
	return waitForUpload(ctx, out, baseURL, accepted.UploadID)
}

func uploadDataset(baseURL, path string) (*submitResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = file.Close() }()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	resp, err := http.Post(baseURL+"/api/v1/predictions/batches", writer.FormDataContentType(), &body)
	if err != nil {
		return nil, fmt.Errorf("submit upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("server rejected upload (status %d): %s", resp.StatusCode, payload)
	}

	var accepted submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &accepted, nil
}

func waitForUpload(ctx context.Context, out io.Writer, baseURL, uploadID string) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for upload %s", uploadID)
		case <-ticker.C:
		}

		status, err := fetchStatus(ctx, baseURL, uploadID)
		if err != nil {
			return err
		}

		switch status.Status {
		case "succeeded":
			fmt.Fprintf(out, "upload succeeded: %s\n", status.Summary)
			return nil
		case "failed":
			message := "unknown error"
			if status.Error != nil {
				message = *status.Error
			}
			return fmt.Errorf("upload failed: %s", message)
		default:
			fmt.Fprintf(out, "status: %s\n", status.Status)
		}
	}
}

func fetchStatus(ctx context.Context, baseURL, uploadID string) (*statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1/predictions/batches/"+uploadID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status check returned %d", resp.StatusCode)
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}
