// internal/importer/importer_test.go
package importer

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github-sync-engine/internal/database"
	"github-sync-engine/internal/database/mocks"
	"github-sync-engine/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestImporter_ImportRepository(t *testing.T) {
	ctx := context.Background()
	im := New(testLogger())
	installationID := int64(7)

	remote := &model.Repository{
		GithubID: 12345,
		Owner:    "test-owner",
		Name:     "test-repo",
		FullName: "test-owner/test-repo",
		URL:      "https://github.com/test-owner/test-repo",
		Stars:    20,
		Forks:    10,
	}

	t.Run("creates a new repository when it does not exist", func(t *testing.T) {
		mockQ := new(mocks.Querier)
		mockQ.On("GetRepositoryByGithubID", ctx, int64(12345)).Return(database.Repository{}, pgx.ErrNoRows).Once()
		expected := database.Repository{ID: 1, GithubID: 12345, FullName: "test-owner/test-repo"}
		mockQ.On("CreateRepository", ctx, mock.Anything).Return(expected, nil).Once()

		repo, created, err := im.ImportRepository(ctx, mockQ, remote, &installationID)

		assert.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, expected, repo)
		mockQ.AssertExpectations(t)
	})

	t.Run("refreshes metadata when the repository already exists", func(t *testing.T) {
		mockQ := new(mocks.Querier)
		existing := database.Repository{ID: 1, GithubID: 12345, FullName: "test-owner/test-repo"}
		mockQ.On("GetRepositoryByGithubID", ctx, int64(12345)).Return(existing, nil).Once()
		mockQ.On("UpdateRepositoryMetadata", ctx, mock.MatchedBy(func(arg database.UpdateRepositoryMetadataParams) bool {
			return arg.ID == 1 && arg.Stars == 20 && arg.Forks == 10
		})).Return(existing, nil).Once()

		_, created, err := im.ImportRepository(ctx, mockQ, remote, &installationID)

		assert.NoError(t, err)
		assert.False(t, created)
		mockQ.AssertExpectations(t)
	})

	t.Run("converges on the winner's row after losing an insert race", func(t *testing.T) {
		mockQ := new(mocks.Querier)
		winner := database.Repository{ID: 9, GithubID: 12345}
		mockQ.On("GetRepositoryByGithubID", ctx, int64(12345)).Return(database.Repository{}, pgx.ErrNoRows).Once()
		mockQ.On("CreateRepository", ctx, mock.Anything).Return(database.Repository{}, pgx.ErrNoRows).Once()
		mockQ.On("GetRepositoryByGithubID", ctx, int64(12345)).Return(winner, nil).Once()

		repo, created, err := im.ImportRepository(ctx, mockQ, remote, &installationID)

		assert.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, winner, repo)
		mockQ.AssertExpectations(t)
	})
}

func TestImporter_ImportCommit(t *testing.T) {
	ctx := context.Background()
	im := New(testLogger())
	repo := database.Repository{ID: 1, GithubID: 12345, FullName: "test-owner/test-repo"}

	commit := model.Commit{
		SHA:         "abc123",
		Message:     "fix: a bug",
		URL:         "https://github.com/test-owner/test-repo/commit/abc123",
		AuthorLogin: "tester",
		Additions:   5,
		Deletions:   2,
		CommittedAt: time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC),
	}

	t.Run("is a no-op when the sha is already imported", func(t *testing.T) {
		mockQ := new(mocks.Querier)
		existing := database.Commit{ID: 3, SHA: "abc123"}
		mockQ.On("GetCommitBySHA", ctx, "abc123").Return(existing, nil).Once()

		got, created, err := im.ImportCommit(ctx, mockQ, commit, repo)

		assert.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, existing, got)
		mockQ.AssertNotCalled(t, "CreateCommit", mock.Anything, mock.Anything)
	})

	t.Run("creates the contributor and work row lazily on first import", func(t *testing.T) {
		mockQ := new(mocks.Querier)
		mockQ.On("GetCommitBySHA", ctx, "abc123").Return(database.Commit{}, pgx.ErrNoRows).Once()
		mockQ.On("GetContributorByUsername", ctx, "tester").Return(database.Contributor{}, pgx.ErrNoRows).Once()
		contributor := database.Contributor{ID: 2, Username: "tester"}
		mockQ.On("CreateContributor", ctx, mock.MatchedBy(func(arg database.CreateContributorParams) bool {
			return arg.Username == "tester" && arg.ProfileURL == "https://github.com/tester"
		})).Return(contributor, nil).Once()
		mockQ.On("GetRepositoryWork", ctx, database.RepositoryWorkKey{RepositoryID: 1, ContributorID: 2}).
			Return(database.RepositoryWork{}, pgx.ErrNoRows).Once()
		work := database.RepositoryWork{ID: 4, RepositoryID: 1, ContributorID: 2}
		mockQ.On("CreateRepositoryWork", ctx, database.RepositoryWorkKey{RepositoryID: 1, ContributorID: 2}).
			Return(work, nil).Once()
		created := database.Commit{ID: 5, SHA: "abc123", WorkID: 4}
		mockQ.On("CreateCommit", ctx, mock.MatchedBy(func(arg database.CreateCommitParams) bool {
			return arg.SHA == "abc123" && arg.WorkID == 4 && arg.Additions == 5
		})).Return(created, nil).Once()
		mockQ.On("IncrementWorkCommitCount", ctx, int64(4)).Return(nil).Once()

		got, wasCreated, err := im.ImportCommit(ctx, mockQ, commit, repo)

		assert.NoError(t, err)
		assert.True(t, wasCreated)
		assert.Equal(t, created, got)
		mockQ.AssertExpectations(t)
	})

	t.Run("falls back to the commit author name when there is no login", func(t *testing.T) {
		mockQ := new(mocks.Querier)
		anon := commit
		anon.AuthorLogin = ""
		anon.AuthorName = "Jane Dev"

		mockQ.On("GetCommitBySHA", ctx, "abc123").Return(database.Commit{}, pgx.ErrNoRows).Once()
		contributor := database.Contributor{ID: 2, Username: "Jane Dev"}
		mockQ.On("GetContributorByUsername", ctx, "Jane Dev").Return(contributor, nil).Once()
		work := database.RepositoryWork{ID: 4}
		mockQ.On("GetRepositoryWork", ctx, mock.Anything).Return(work, nil).Once()
		mockQ.On("CreateCommit", ctx, mock.Anything).Return(database.Commit{ID: 5}, nil).Once()
		mockQ.On("IncrementWorkCommitCount", ctx, int64(4)).Return(nil).Once()

		_, created, err := im.ImportCommit(ctx, mockQ, anon, repo)

		assert.NoError(t, err)
		assert.True(t, created)
		mockQ.AssertExpectations(t)
	})

	t.Run("skips commits with no attributable author", func(t *testing.T) {
		mockQ := new(mocks.Querier)
		anon := commit
		anon.AuthorLogin = ""
		anon.AuthorName = ""
		mockQ.On("GetCommitBySHA", ctx, "abc123").Return(database.Commit{}, pgx.ErrNoRows).Once()

		_, created, err := im.ImportCommit(ctx, mockQ, anon, repo)

		assert.NoError(t, err)
		assert.False(t, created)
		mockQ.AssertNotCalled(t, "CreateCommit", mock.Anything, mock.Anything)
	})
}

func TestImporter_ImportIssue(t *testing.T) {
	ctx := context.Background()
	im := New(testLogger())
	repo := database.Repository{ID: 1, GithubID: 12345}

	issue := model.Issue{
		GithubID:    777,
		Number:      42,
		Title:       "Something is broken",
		State:       "open",
		URL:         "https://github.com/test-owner/test-repo/issues/42",
		AuthorLogin: "tester",
		CreatedAt:   time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
	}

	t.Run("updates state when the issue already exists", func(t *testing.T) {
		mockQ := new(mocks.Querier)
		closedAt := time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)
		closed := issue
		closed.State = "closed"
		closed.ClosedAt = &closedAt

		mockQ.On("GetIssueByGithubID", ctx, int64(777)).Return(database.Issue{ID: 6, GithubIssueID: 777}, nil).Once()
		mockQ.On("UpdateIssueState", ctx, mock.MatchedBy(func(arg database.UpdateIssueStateParams) bool {
			return arg.GithubIssueID == 777 && arg.State == "closed" && arg.ClosedAt != nil
		})).Return(database.Issue{ID: 6, State: "closed"}, nil).Once()

		got, created, err := im.ImportIssue(ctx, mockQ, closed, repo)

		assert.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "closed", got.State)
		mockQ.AssertNotCalled(t, "CreateIssue", mock.Anything, mock.Anything)
		mockQ.AssertExpectations(t)
	})

	t.Run("creates a new issue and bumps the work counter", func(t *testing.T) {
		mockQ := new(mocks.Querier)
		mockQ.On("GetIssueByGithubID", ctx, int64(777)).Return(database.Issue{}, pgx.ErrNoRows).Once()
		contributor := database.Contributor{ID: 2, Username: "tester"}
		mockQ.On("GetContributorByUsername", ctx, "tester").Return(contributor, nil).Once()
		work := database.RepositoryWork{ID: 4}
		mockQ.On("GetRepositoryWork", ctx, mock.Anything).Return(work, nil).Once()
		mockQ.On("CreateIssue", ctx, mock.MatchedBy(func(arg database.CreateIssueParams) bool {
			return arg.GithubIssueID == 777 && arg.Number == 42 && arg.WorkID == 4
		})).Return(database.Issue{ID: 6, GithubIssueID: 777}, nil).Once()
		mockQ.On("IncrementWorkIssueCount", ctx, int64(4)).Return(nil).Once()

		_, created, err := im.ImportIssue(ctx, mockQ, issue, repo)

		assert.NoError(t, err)
		assert.True(t, created)
		mockQ.AssertExpectations(t)
	})
}

func TestImporter_ImportContributors(t *testing.T) {
	ctx := context.Background()
	im := New(testLogger())
	repo := database.Repository{ID: 1}

	t.Run("counts only newly created contributors", func(t *testing.T) {
		mockQ := new(mocks.Querier)
		known := database.Contributor{ID: 2, Username: "known"}
		mockQ.On("GetContributorByUsername", ctx, "known").Return(known, nil).Once()
		mockQ.On("GetRepositoryWork", ctx, database.RepositoryWorkKey{RepositoryID: 1, ContributorID: 2}).
			Return(database.RepositoryWork{ID: 4}, nil).Once()

		mockQ.On("GetContributorByUsername", ctx, "fresh").Return(database.Contributor{}, pgx.ErrNoRows).Twice()
		fresh := database.Contributor{ID: 3, Username: "fresh"}
		mockQ.On("CreateContributor", ctx, mock.Anything).Return(fresh, nil).Once()
		mockQ.On("GetRepositoryWork", ctx, database.RepositoryWorkKey{RepositoryID: 1, ContributorID: 3}).
			Return(database.RepositoryWork{}, pgx.ErrNoRows).Once()
		mockQ.On("CreateRepositoryWork", ctx, database.RepositoryWorkKey{RepositoryID: 1, ContributorID: 3}).
			Return(database.RepositoryWork{ID: 5}, nil).Once()

		contribs := []model.Contributor{
			{Login: "known", Contributions: 10},
			{Login: "fresh", Contributions: 1},
			{Login: ""}, // anonymous entries are dropped
		}
		resolved, newCount, err := im.ImportContributors(ctx, mockQ, contribs, repo)

		assert.NoError(t, err)
		assert.Equal(t, 1, newCount)
		assert.Equal(t, []database.Contributor{known, fresh}, resolved)
		mockQ.AssertExpectations(t)
	})
}
