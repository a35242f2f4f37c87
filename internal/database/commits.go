// internal/database/commits.go
package database

import (
	"context"
	"time"
)

// Commit mirrors a row of the commits table. Commits are immutable once
// created; re-import of an existing sha is a no-op.
type Commit struct {
	ID            int64
	WorkID        int64
	RepositoryID  int64
	ContributorID int64
	SHA           string
	Message       string
	URL           string
	Additions     int32
	Deletions     int32
	CommittedAt   time.Time
	CreatedAt     time.Time
}

const commitColumns = `id, work_id, repository_id, contributor_id, sha, message, url, additions, deletions, committed_at, created_at`

func scanCommit(row interface{ Scan(...any) error }) (Commit, error) {
	var c Commit
	err := row.Scan(&c.ID, &c.WorkID, &c.RepositoryID, &c.ContributorID, &c.SHA, &c.Message, &c.URL,
		&c.Additions, &c.Deletions, &c.CommittedAt, &c.CreatedAt)
	return c, err
}

type CreateCommitParams struct {
	WorkID        int64
	RepositoryID  int64
	ContributorID int64
	SHA           string
	Message       string
	URL           string
	Additions     int32
	Deletions     int32
	CommittedAt   time.Time
}

// CreateCommit inserts a commit keyed by its content hash. A concurrent
// insert of the same sha yields pgx.ErrNoRows; callers re-fetch.
func (q *Queries) CreateCommit(ctx context.Context, arg CreateCommitParams) (Commit, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO commits (work_id, repository_id, contributor_id, sha, message, url, additions, deletions, committed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (sha) DO NOTHING
		RETURNING `+commitColumns,
		arg.WorkID, arg.RepositoryID, arg.ContributorID, arg.SHA, arg.Message, arg.URL,
		arg.Additions, arg.Deletions, arg.CommittedAt)
	return scanCommit(row)
}

// GetCommitBySHA looks a commit up by its content hash.
func (q *Queries) GetCommitBySHA(ctx context.Context, sha string) (Commit, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+commitColumns+` FROM commits WHERE sha = $1`, sha)
	return scanCommit(row)
}

// GetLatestCommitDateForRepo returns the newest committed_at for a
// repository, or nil when no commits exist yet.
func (q *Queries) GetLatestCommitDateForRepo(ctx context.Context, repositoryID int64) (*time.Time, error) {
	var latest *time.Time
	err := q.db.QueryRow(ctx, `
		SELECT max(committed_at) FROM commits WHERE repository_id = $1`, repositoryID).Scan(&latest)
	return latest, err
}
