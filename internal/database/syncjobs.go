// internal/database/syncjobs.go
package database

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SyncJob is a write-once audit record of one synchronization batch.
type SyncJob struct {
	ID                    int64
	InstallationID        *int64
	JobType               string
	Status                string
	RepositoriesProcessed int32
	ErrorsCount           int32
	Details               []byte
	StartedAt             time.Time
	CompletedAt           time.Time
}

const syncJobColumns = `id, installation_id, job_type, status, repositories_processed, errors_count, details, started_at, completed_at`

func scanSyncJob(row interface{ Scan(...any) error }) (SyncJob, error) {
	var j SyncJob
	err := row.Scan(&j.ID, &j.InstallationID, &j.JobType, &j.Status, &j.RepositoriesProcessed,
		&j.ErrorsCount, &j.Details, &j.StartedAt, &j.CompletedAt)
	return j, err
}

type CreateSyncJobParams struct {
	InstallationID        *int64
	JobType               string
	Status                string
	RepositoriesProcessed int32
	ErrorsCount           int32
	Details               []byte
	StartedAt             time.Time
	CompletedAt           time.Time
}

// CreateSyncJob writes a finished batch record to the ledger. Records are
// never updated afterwards.
func (q *Queries) CreateSyncJob(ctx context.Context, arg CreateSyncJobParams) (SyncJob, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO sync_jobs (installation_id, job_type, status, repositories_processed, errors_count, details, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+syncJobColumns,
		arg.InstallationID, arg.JobType, arg.Status, arg.RepositoriesProcessed,
		arg.ErrorsCount, arg.Details, arg.StartedAt, arg.CompletedAt)
	return scanSyncJob(row)
}

type ListSyncJobsParams struct {
	JobType        string
	Status         string
	InstallationID *int64
	Limit          int32
	Offset         int32
}

// ListSyncJobs returns ledger records, newest first, with optional filters.
func (q *Queries) ListSyncJobs(ctx context.Context, arg ListSyncJobsParams) ([]SyncJob, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if arg.JobType != "" {
		add("job_type = $%d", arg.JobType)
	}
	if arg.Status != "" {
		add("status = $%d", arg.Status)
	}
	if arg.InstallationID != nil {
		add("installation_id = $%d", *arg.InstallationID)
	}

	query := `SELECT ` + syncJobColumns + ` FROM sync_jobs`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, arg.Limit)
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, len(args))
	args = append(args, arg.Offset)
	query += fmt.Sprintf(` OFFSET $%d`, len(args))

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SyncJob
	for rows.Next() {
		j, err := scanSyncJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, j)
	}
	return items, rows.Err()
}
