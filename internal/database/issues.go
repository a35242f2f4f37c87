// internal/database/issues.go
package database

import (
	"context"
	"time"
)

// Issue mirrors a row of the issues table. Unlike commits, issues are
// mutable: state and timestamps are refreshed on re-import.
type Issue struct {
	ID             int64
	WorkID         int64
	RepositoryID   int64
	ContributorID  int64
	GithubIssueID  int64
	Number         int32
	Title          string
	State          string
	URL            string
	IssueCreatedAt time.Time
	IssueUpdatedAt time.Time
	ClosedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const issueColumns = `id, work_id, repository_id, contributor_id, github_issue_id, number, title, state, url, issue_created_at, issue_updated_at, closed_at, created_at, updated_at`

func scanIssue(row interface{ Scan(...any) error }) (Issue, error) {
	var i Issue
	err := row.Scan(&i.ID, &i.WorkID, &i.RepositoryID, &i.ContributorID, &i.GithubIssueID, &i.Number,
		&i.Title, &i.State, &i.URL, &i.IssueCreatedAt, &i.IssueUpdatedAt, &i.ClosedAt, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

type CreateIssueParams struct {
	WorkID         int64
	RepositoryID   int64
	ContributorID  int64
	GithubIssueID  int64
	Number         int32
	Title          string
	State          string
	URL            string
	IssueCreatedAt time.Time
	IssueUpdatedAt time.Time
	ClosedAt       *time.Time
}

// CreateIssue inserts an issue keyed by its external id. A concurrent insert
// of the same id yields pgx.ErrNoRows; callers re-fetch.
func (q *Queries) CreateIssue(ctx context.Context, arg CreateIssueParams) (Issue, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO issues (work_id, repository_id, contributor_id, github_issue_id, number, title, state, url, issue_created_at, issue_updated_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (github_issue_id) DO NOTHING
		RETURNING `+issueColumns,
		arg.WorkID, arg.RepositoryID, arg.ContributorID, arg.GithubIssueID, arg.Number,
		arg.Title, arg.State, arg.URL, arg.IssueCreatedAt, arg.IssueUpdatedAt, arg.ClosedAt)
	return scanIssue(row)
}

// GetIssueByGithubID looks an issue up by its stable external id.
func (q *Queries) GetIssueByGithubID(ctx context.Context, githubIssueID int64) (Issue, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+issueColumns+` FROM issues WHERE github_issue_id = $1`, githubIssueID)
	return scanIssue(row)
}

type UpdateIssueStateParams struct {
	GithubIssueID  int64
	Title          string
	State          string
	IssueUpdatedAt time.Time
	ClosedAt       *time.Time
}

// UpdateIssueState refreshes the mutable fields of an existing issue.
func (q *Queries) UpdateIssueState(ctx context.Context, arg UpdateIssueStateParams) (Issue, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE issues
		SET title = $2, state = $3, issue_updated_at = $4, closed_at = $5, updated_at = now()
		WHERE github_issue_id = $1
		RETURNING `+issueColumns,
		arg.GithubIssueID, arg.Title, arg.State, arg.IssueUpdatedAt, arg.ClosedAt)
	return scanIssue(row)
}
