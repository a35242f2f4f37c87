// internal/database/work.go
package database

import (
	"context"
	"time"
)

// RepositoryWork links a contributor to a repository and accumulates simple
// contribution counters.
type RepositoryWork struct {
	ID            int64
	RepositoryID  int64
	ContributorID int64
	CommitCount   int32
	IssueCount    int32
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const workColumns = `id, repository_id, contributor_id, commit_count, issue_count, created_at, updated_at`

func scanWork(row interface{ Scan(...any) error }) (RepositoryWork, error) {
	var w RepositoryWork
	err := row.Scan(&w.ID, &w.RepositoryID, &w.ContributorID, &w.CommitCount, &w.IssueCount, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

type RepositoryWorkKey struct {
	RepositoryID  int64
	ContributorID int64
}

// CreateRepositoryWork inserts a relation row for a (repository, contributor)
// pair. A concurrent insert yields pgx.ErrNoRows; callers re-fetch.
func (q *Queries) CreateRepositoryWork(ctx context.Context, arg RepositoryWorkKey) (RepositoryWork, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO repository_work (repository_id, contributor_id)
		VALUES ($1, $2)
		ON CONFLICT (repository_id, contributor_id) DO NOTHING
		RETURNING `+workColumns,
		arg.RepositoryID, arg.ContributorID)
	return scanWork(row)
}

// GetRepositoryWork fetches the relation row for a (repository, contributor) pair.
func (q *Queries) GetRepositoryWork(ctx context.Context, arg RepositoryWorkKey) (RepositoryWork, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+workColumns+` FROM repository_work WHERE repository_id = $1 AND contributor_id = $2`,
		arg.RepositoryID, arg.ContributorID)
	return scanWork(row)
}

// IncrementWorkCommitCount bumps the commit counter for a relation row.
func (q *Queries) IncrementWorkCommitCount(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, `
		UPDATE repository_work SET commit_count = commit_count + 1, updated_at = now() WHERE id = $1`, id)
	return err
}

// IncrementWorkIssueCount bumps the issue counter for a relation row.
func (q *Queries) IncrementWorkIssueCount(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, `
		UPDATE repository_work SET issue_count = issue_count + 1, updated_at = now() WHERE id = $1`, id)
	return err
}
