// internal/database/querier.go
package database

import (
	"context"
	"time"
)

// Querier is the query surface consumed by the importer, webhook processor
// and scheduler. *Queries implements it; tests substitute mocks.
type Querier interface {
	CreateInstallation(ctx context.Context, arg CreateInstallationParams) (Installation, error)
	GetInstallationByInstallationID(ctx context.Context, installationID int64) (Installation, error)
	GetInstallationByID(ctx context.Context, id int64) (Installation, error)
	ListInstallations(ctx context.Context) ([]Installation, error)
	DeleteInstallation(ctx context.Context, id int64) error

	CreateRepository(ctx context.Context, arg CreateRepositoryParams) (Repository, error)
	GetRepositoryByGithubID(ctx context.Context, githubID int64) (Repository, error)
	GetRepositoryByID(ctx context.Context, id int64) (Repository, error)
	UpdateRepositoryMetadata(ctx context.Context, arg UpdateRepositoryMetadataParams) (Repository, error)
	RenameRepository(ctx context.Context, arg RenameRepositoryParams) (int64, error)
	FinalizeRepositorySync(ctx context.Context, arg FinalizeRepositorySyncParams) error
	TouchRepositorySync(ctx context.Context, id int64) error
	DeleteRepositoryByGithubID(ctx context.Context, githubID int64) (int64, error)
	ListRepositoriesByInstallation(ctx context.Context, installationID int64) ([]Repository, error)
	ListRepositoriesWithoutInstallation(ctx context.Context) ([]Repository, error)
	CountRepositoriesByInstallation(ctx context.Context, installationID int64) (int64, error)

	CreateContributor(ctx context.Context, arg CreateContributorParams) (Contributor, error)
	GetContributorByUsername(ctx context.Context, username string) (Contributor, error)

	CreateRepositoryWork(ctx context.Context, arg RepositoryWorkKey) (RepositoryWork, error)
	GetRepositoryWork(ctx context.Context, arg RepositoryWorkKey) (RepositoryWork, error)
	IncrementWorkCommitCount(ctx context.Context, id int64) error
	IncrementWorkIssueCount(ctx context.Context, id int64) error

	CreateCommit(ctx context.Context, arg CreateCommitParams) (Commit, error)
	GetCommitBySHA(ctx context.Context, sha string) (Commit, error)
	GetLatestCommitDateForRepo(ctx context.Context, repositoryID int64) (*time.Time, error)

	CreateIssue(ctx context.Context, arg CreateIssueParams) (Issue, error)
	GetIssueByGithubID(ctx context.Context, githubIssueID int64) (Issue, error)
	UpdateIssueState(ctx context.Context, arg UpdateIssueStateParams) (Issue, error)

	CreateSyncJob(ctx context.Context, arg CreateSyncJobParams) (SyncJob, error)
	ListSyncJobs(ctx context.Context, arg ListSyncJobsParams) ([]SyncJob, error)
}

var _ Querier = (*Queries)(nil)
