// internal/model/models.go
package model

import "time"

// Repository is the remote view of a repository, translated from the GitHub
// API payload before it touches the database.
type Repository struct {
	GithubID    int64
	Owner       string
	Name        string
	FullName    string
	Description *string
	URL         string
	Language    *string
	Stars       int
	Forks       int
	OpenIssues  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Commit is the remote view of a single commit. Additions/Deletions are only
// populated when the full commit detail was fetched; list payloads carry no stats.
type Commit struct {
	SHA         string
	Message     string
	URL         string
	AuthorLogin string
	AuthorName  string
	AvatarURL   string
	Additions   int
	Deletions   int
	CommittedAt time.Time
}

// Issue is the remote view of an issue. Pull requests surfaced through the
// issues API are filtered out before this type is built.
type Issue struct {
	GithubID    int64
	Number      int
	Title       string
	State       string
	URL         string
	AuthorLogin string
	AvatarURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}

// Contributor is the remote view of a repository contributor.
type Contributor struct {
	Login         string
	AvatarURL     string
	ProfileURL    string
	Contributions int
}

// SyncError records one isolated per-repository failure inside a batch.
type SyncError struct {
	Repository string `json:"repository"`
	Error      string `json:"error"`
}

// SyncResult summarizes a reconciliation run across all installations.
type SyncResult struct {
	InstallationsProcessed int         `json:"installations_processed"`
	RepositoriesSynced     int         `json:"repositories_synced"`
	Errors                 []SyncError `json:"errors"`
}

// RepoSyncResult summarizes an incremental sync of a single repository.
type RepoSyncResult struct {
	Repository      string `json:"repository"`
	NewCommits      int    `json:"new_commits"`
	NewIssues       int    `json:"new_issues"`
	UpdatedIssues   int    `json:"updated_issues"`
	NewContributors int    `json:"new_contributors"`
}

// Sync job types.
const (
	JobTypeWebhook  = "webhook"
	JobTypePeriodic = "periodic"
	JobTypeManual   = "manual"
)

// Sync job statuses.
const (
	JobStatusCompleted           = "completed"
	JobStatusFailed              = "failed"
	JobStatusCompletedWithErrors = "completed_with_errors"
)
