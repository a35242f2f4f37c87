// Package mocks provides a testify mock of the database.Querier interface,
// shared by the unit tests of the packages that consume it.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github-sync-engine/internal/database"
)

// Querier is a mock of database.Querier.
type Querier struct {
	mock.Mock
}

var _ database.Querier = (*Querier)(nil)

func (m *Querier) CreateInstallation(ctx context.Context, arg database.CreateInstallationParams) (database.Installation, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Installation), args.Error(1)
}

func (m *Querier) GetInstallationByInstallationID(ctx context.Context, installationID int64) (database.Installation, error) {
	args := m.Called(ctx, installationID)
	return args.Get(0).(database.Installation), args.Error(1)
}

func (m *Querier) GetInstallationByID(ctx context.Context, id int64) (database.Installation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(database.Installation), args.Error(1)
}

func (m *Querier) ListInstallations(ctx context.Context) ([]database.Installation, error) {
	args := m.Called(ctx)
	return args.Get(0).([]database.Installation), args.Error(1)
}

func (m *Querier) DeleteInstallation(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *Querier) CreateRepository(ctx context.Context, arg database.CreateRepositoryParams) (database.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Repository), args.Error(1)
}

func (m *Querier) GetRepositoryByGithubID(ctx context.Context, githubID int64) (database.Repository, error) {
	args := m.Called(ctx, githubID)
	return args.Get(0).(database.Repository), args.Error(1)
}

func (m *Querier) GetRepositoryByID(ctx context.Context, id int64) (database.Repository, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(database.Repository), args.Error(1)
}

func (m *Querier) UpdateRepositoryMetadata(ctx context.Context, arg database.UpdateRepositoryMetadataParams) (database.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Repository), args.Error(1)
}

func (m *Querier) RenameRepository(ctx context.Context, arg database.RenameRepositoryParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Querier) FinalizeRepositorySync(ctx context.Context, arg database.FinalizeRepositorySyncParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

func (m *Querier) TouchRepositorySync(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *Querier) DeleteRepositoryByGithubID(ctx context.Context, githubID int64) (int64, error) {
	args := m.Called(ctx, githubID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Querier) ListRepositoriesByInstallation(ctx context.Context, installationID int64) ([]database.Repository, error) {
	args := m.Called(ctx, installationID)
	return args.Get(0).([]database.Repository), args.Error(1)
}

func (m *Querier) ListRepositoriesWithoutInstallation(ctx context.Context) ([]database.Repository, error) {
	args := m.Called(ctx)
	return args.Get(0).([]database.Repository), args.Error(1)
}

func (m *Querier) CountRepositoriesByInstallation(ctx context.Context, installationID int64) (int64, error) {
	args := m.Called(ctx, installationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Querier) CreateContributor(ctx context.Context, arg database.CreateContributorParams) (database.Contributor, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Contributor), args.Error(1)
}

func (m *Querier) GetContributorByUsername(ctx context.Context, username string) (database.Contributor, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(database.Contributor), args.Error(1)
}

func (m *Querier) CreateRepositoryWork(ctx context.Context, arg database.RepositoryWorkKey) (database.RepositoryWork, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.RepositoryWork), args.Error(1)
}

func (m *Querier) GetRepositoryWork(ctx context.Context, arg database.RepositoryWorkKey) (database.RepositoryWork, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.RepositoryWork), args.Error(1)
}

func (m *Querier) IncrementWorkCommitCount(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *Querier) IncrementWorkIssueCount(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *Querier) CreateCommit(ctx context.Context, arg database.CreateCommitParams) (database.Commit, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Commit), args.Error(1)
}

func (m *Querier) GetCommitBySHA(ctx context.Context, sha string) (database.Commit, error) {
	args := m.Called(ctx, sha)
	return args.Get(0).(database.Commit), args.Error(1)
}

func (m *Querier) GetLatestCommitDateForRepo(ctx context.Context, repositoryID int64) (*time.Time, error) {
	args := m.Called(ctx, repositoryID)
	if v := args.Get(0); v != nil {
		return v.(*time.Time), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Querier) CreateIssue(ctx context.Context, arg database.CreateIssueParams) (database.Issue, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Issue), args.Error(1)
}

func (m *Querier) GetIssueByGithubID(ctx context.Context, githubIssueID int64) (database.Issue, error) {
	args := m.Called(ctx, githubIssueID)
	return args.Get(0).(database.Issue), args.Error(1)
}

func (m *Querier) UpdateIssueState(ctx context.Context, arg database.UpdateIssueStateParams) (database.Issue, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Issue), args.Error(1)
}

func (m *Querier) CreateSyncJob(ctx context.Context, arg database.CreateSyncJobParams) (database.SyncJob, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.SyncJob), args.Error(1)
}

func (m *Querier) ListSyncJobs(ctx context.Context, arg database.ListSyncJobsParams) ([]database.SyncJob, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]database.SyncJob), args.Error(1)
}

// TxRunner is a database.TxRunner that runs the function directly against the
// given Querier, with no real transaction underneath.
type TxRunner struct {
	Q database.Querier
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(q database.Querier) error) error {
	return fn(r.Q)
}
