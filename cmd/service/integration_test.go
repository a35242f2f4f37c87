//go:build integration

// cmd/service/integration_test.go
package main

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github-sync-engine/internal/database"
	"github-sync-engine/internal/importer"
	"github-sync-engine/internal/ledger"
	"github-sync-engine/internal/model"
)

func setupTestDatabase(ctx context.Context, t *testing.T) (*pgxpool.Pool, func()) {
	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	m, err := migrate.New("file://../../migrations", connStr)
	require.NoError(t, err)
	err = m.Up()
	require.NoError(t, err)

	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	teardown := func() {
		dbpool.Close()
		err := pgContainer.Terminate(ctx)
		require.NoError(t, err)
	}
	return dbpool, teardown
}

func TestImportPipeline_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool, teardown := setupTestDatabase(ctx, t)
	defer teardown()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	queries := database.New(dbpool)
	store := database.NewStore(dbpool)
	im := importer.New(logger)

	remote := &model.Repository{
		GithubID: 12345,
		Owner:    "test-owner",
		Name:     "test-repo",
		FullName: "test-owner/test-repo",
		URL:      "https://github.com/test-owner/test-repo",
		Stars:    20,
		Forks:    10,
	}

	// First import creates the row, the second converges on it.
	var repo database.Repository
	err := store.WithTx(ctx, func(q database.Querier) error {
		var err error
		repo, _, err = im.ImportRepository(ctx, q, remote, nil)
		return err
	})
	require.NoError(t, err)

	remote.Stars = 25
	err = store.WithTx(ctx, func(q database.Querier) error {
		again, created, err := im.ImportRepository(ctx, q, remote, nil)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, repo.ID, again.ID)
		assert.Equal(t, int32(25), again.Stars)
		return nil
	})
	require.NoError(t, err)

	// Importing the same commit twice yields exactly one row and one counter bump.
	commit := model.Commit{
		SHA:         "abc123",
		Message:     "fix: a bug",
		URL:         "https://github.com/test-owner/test-repo/commit/abc123",
		AuthorLogin: "tester",
		Additions:   5,
		Deletions:   2,
		CommittedAt: time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC),
	}
	for i := 0; i < 2; i++ {
		err = store.WithTx(ctx, func(q database.Querier) error {
			_, _, err := im.ImportCommit(ctx, q, commit, repo)
			return err
		})
		require.NoError(t, err)
	}

	stored, err := queries.GetCommitBySHA(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "fix: a bug", stored.Message)
	assert.Equal(t, int32(5), stored.Additions)

	contributor, err := queries.GetContributorByUsername(ctx, "tester")
	require.NoError(t, err)
	work, err := queries.GetRepositoryWork(ctx, database.RepositoryWorkKey{
		RepositoryID: repo.ID, ContributorID: contributor.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), work.CommitCount)

	// Finalizing the batch advances the sync marker.
	err = store.WithTx(ctx, func(q database.Querier) error {
		return im.FinalizeSync(ctx, q, repo.ID, remote)
	})
	require.NoError(t, err)

	synced, err := queries.GetRepositoryByID(ctx, repo.ID)
	require.NoError(t, err)
	require.NotNil(t, synced.LastSyncedAt)
	assert.WithinDuration(t, time.Now(), *synced.LastSyncedAt, 10*time.Second)

	// The ledger records the batch as a write-once audit row.
	led := ledger.New(logger)
	led.Record(ctx, queries, ledger.Entry{
		JobType:   model.JobTypeManual,
		Status:    ledger.StatusFor(1, 0),
		Processed: 1,
		Details:   map[string]any{"imported": []string{"test-owner/test-repo"}},
		StartedAt: time.Now().Add(-time.Second),
	})

	jobs, err := queries.ListSyncJobs(ctx, database.ListSyncJobsParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.JobStatusCompleted, jobs[0].Status)
	assert.Equal(t, int32(1), jobs[0].RepositoriesProcessed)
}
