// internal/api/handler_test.go
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github-sync-engine/internal/database"
	"github-sync-engine/internal/database/mocks"
	apperrors "github-sync-engine/internal/errors"
	"github-sync-engine/internal/model"
)

type stubSyncRunner struct {
	syncResult   *model.SyncResult
	repoResult   *model.RepoSyncResult
	importResult map[string]any
	err          error

	syncedRepoID  int64
	importedNames []string
}

func (s *stubSyncRunner) RunPeriodicSync(ctx context.Context) (*model.SyncResult, error) {
	return s.syncResult, s.err
}

func (s *stubSyncRunner) SyncRepositoryByID(ctx context.Context, id int64) (*model.RepoSyncResult, error) {
	s.syncedRepoID = id
	return s.repoResult, s.err
}

func (s *stubSyncRunner) ImportRepositories(ctx context.Context, fullNames []string) (map[string]any, error) {
	s.importedNames = fullNames
	return s.importResult, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(q database.Querier, runner *stubSyncRunner) http.Handler {
	webhook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return NewRouter(q, runner, webhook, testLogger())
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(new(mocks.Querier), &stubSyncRunner{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestTriggerSync(t *testing.T) {
	runner := &stubSyncRunner{syncResult: &model.SyncResult{
		InstallationsProcessed: 2,
		RepositoriesSynced:     5,
	}}
	srv := newTestServer(new(mocks.Querier), runner)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sync", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.RepositoriesSynced)
}

func TestSyncRepository(t *testing.T) {
	t.Run("syncs by id", func(t *testing.T) {
		runner := &stubSyncRunner{repoResult: &model.RepoSyncResult{Repository: "test-owner/test-repo", NewCommits: 3}}
		srv := newTestServer(new(mocks.Querier), runner)

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/repositories/17/sync", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(17), runner.syncedRepoID)
	})

	t.Run("rejects a non-numeric id", func(t *testing.T) {
		srv := newTestServer(new(mocks.Querier), &stubSyncRunner{})

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/repositories/not-a-number/sync", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps unknown repositories to 404", func(t *testing.T) {
		runner := &stubSyncRunner{err: apperrors.ErrRepositoryNotFound}
		srv := newTestServer(new(mocks.Querier), runner)

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/repositories/99/sync", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("maps a missing fallback token to 409", func(t *testing.T) {
		runner := &stubSyncRunner{err: apperrors.ErrNoFallbackToken}
		srv := newTestServer(new(mocks.Querier), runner)

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/repositories/9/sync", nil))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestImportRepositories(t *testing.T) {
	t.Run("imports the requested names", func(t *testing.T) {
		runner := &stubSyncRunner{importResult: map[string]any{"imported": []string{"solo/orphan"}}}
		srv := newTestServer(new(mocks.Querier), runner)

		body := strings.NewReader(`{"repositories": ["solo/orphan"]}`)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/repositories/import", body))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"solo/orphan"}, runner.importedNames)
	})

	t.Run("rejects an empty list", func(t *testing.T) {
		srv := newTestServer(new(mocks.Querier), &stubSyncRunner{})

		body := strings.NewReader(`{"repositories": []}`)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/repositories/import", body))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a malformed body", func(t *testing.T) {
		srv := newTestServer(new(mocks.Querier), &stubSyncRunner{})

		body := strings.NewReader(`{not json`)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/repositories/import", body))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListSyncJobs(t *testing.T) {
	t.Run("passes filters through and inlines details", func(t *testing.T) {
		mockQ := new(mocks.Querier)
		jobs := []database.SyncJob{{
			ID:                    1,
			JobType:               model.JobTypePeriodic,
			Status:                model.JobStatusCompleted,
			RepositoriesProcessed: 4,
			Details:               []byte(`{"repositories_synced": 4}`),
			StartedAt:             time.Now().Add(-time.Minute),
			CompletedAt:           time.Now(),
		}}
		mockQ.On("ListSyncJobs", mock.Anything, mock.MatchedBy(func(arg database.ListSyncJobsParams) bool {
			return arg.JobType == "periodic" && arg.Status == "completed" && arg.Limit == 5 && arg.Offset == 10
		})).Return(jobs, nil).Once()

		srv := newTestServer(mockQ, &stubSyncRunner{})
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sync-jobs?type=periodic&status=completed&limit=5&offset=10", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			SyncJobs []struct {
				JobType string          `json:"job_type"`
				Details json.RawMessage `json:"details"`
			} `json:"sync_jobs"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.SyncJobs, 1)
		assert.Equal(t, "periodic", resp.SyncJobs[0].JobType)
		assert.JSONEq(t, `{"repositories_synced": 4}`, string(resp.SyncJobs[0].Details))
		mockQ.AssertExpectations(t)
	})

	t.Run("rejects an out-of-range limit", func(t *testing.T) {
		srv := newTestServer(new(mocks.Querier), &stubSyncRunner{})

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sync-jobs?limit=500", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a non-numeric installation filter", func(t *testing.T) {
		srv := newTestServer(new(mocks.Querier), &stubSyncRunner{})

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sync-jobs?installation_id=abc", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestWebhookRouteIsMounted(t *testing.T) {
	called := false
	webhook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	srv := NewRouter(new(mocks.Querier), &stubSyncRunner{}, webhook, testLogger())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}
