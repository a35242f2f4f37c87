// internal/ledger/ledger.go
package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github-sync-engine/internal/database"
	"github-sync-engine/internal/model"
)

// Entry describes one finished synchronization batch.
type Entry struct {
	InstallationID *int64
	JobType        string
	Status         string
	Processed      int
	ErrorsCount    int
	Details        any
	StartedAt      time.Time
}

// Ledger writes audit records for import batches. Pure persistence; records
// are write-once and consumed only by monitoring surfaces.
type Ledger struct {
	logger *slog.Logger
}

// New creates a Ledger.
func New(logger *slog.Logger) *Ledger {
	return &Ledger{logger: logger}
}

// Record writes one batch outcome. A failure to write the audit record is
// logged but never fails the batch it describes.
func (l *Ledger) Record(ctx context.Context, q database.Querier, e Entry) {
	details, err := json.Marshal(e.Details)
	if err != nil {
		details = []byte(`{}`)
	}

	_, err = q.CreateSyncJob(ctx, database.CreateSyncJobParams{
		InstallationID:        e.InstallationID,
		JobType:               e.JobType,
		Status:                e.Status,
		RepositoriesProcessed: int32(e.Processed),
		ErrorsCount:           int32(e.ErrorsCount),
		Details:               details,
		StartedAt:             e.StartedAt,
		CompletedAt:           time.Now(),
	})
	if err != nil {
		l.logger.Error("Failed to record sync job", "job_type", e.JobType, "error", err)
		return
	}
	l.logger.Info("Recorded sync job", "job_type", e.JobType, "status", e.Status,
		"repositories_processed", e.Processed, "errors_count", e.ErrorsCount)
}

// StatusFor derives the batch status from its error count.
func StatusFor(processed, errorsCount int) string {
	switch {
	case errorsCount == 0:
		return model.JobStatusCompleted
	case processed == 0:
		return model.JobStatusFailed
	default:
		return model.JobStatusCompletedWithErrors
	}
}
