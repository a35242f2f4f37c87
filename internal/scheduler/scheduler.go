// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github-sync-engine/internal/database"
	"github-sync-engine/internal/errors"
	"github-sync-engine/internal/githubapp"
	"github-sync-engine/internal/importer"
	"github-sync-engine/internal/ledger"
	"github-sync-engine/internal/model"
)

const maxConcurrentRepoSyncs = 4

// Scheduler runs periodic reconciliation sweeps and serves the manual sync
// entry points. One failing repository never aborts the sweep; its error is
// collected and the run is recorded with whatever did succeed.
type Scheduler struct {
	db              database.Querier
	tx              database.TxRunner
	clients         githubapp.Factory
	importer        *importer.Importer
	ledger          *ledger.Ledger
	fallbackToken   string
	interval        time.Duration
	stalenessWindow time.Duration
	logger          *slog.Logger
}

// New creates a Scheduler.
func New(db database.Querier, tx database.TxRunner, clients githubapp.Factory, imp *importer.Importer, led *ledger.Ledger, fallbackToken string, interval, stalenessWindow time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		db:              db,
		tx:              tx,
		clients:         clients,
		importer:        imp,
		ledger:          led,
		fallbackToken:   fallbackToken,
		interval:        interval,
		stalenessWindow: stalenessWindow,
		logger:          logger,
	}
}

// Start runs reconciliation sweeps on the configured interval until the
// context is cancelled. The first sweep fires immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting periodic sync scheduler", "interval", s.interval, "staleness_window", s.stalenessWindow)

	if _, err := s.RunPeriodicSync(ctx); err != nil {
		s.logger.Error("Initial sync sweep failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping periodic sync scheduler")
			return
		case <-ticker.C:
			if _, err := s.RunPeriodicSync(ctx); err != nil {
				s.logger.Error("Sync sweep failed", "error", err)
			}
		}
	}
}

// RunPeriodicSync reconciles every tracked repository that is stale, across
// all installations plus the manually imported set, and records the sweep.
func (s *Scheduler) RunPeriodicSync(ctx context.Context) (*model.SyncResult, error) {
	startedAt := time.Now()

	installations, err := s.db.ListInstallations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing installations: %w", err)
	}

	result := &model.SyncResult{}
	var mu sync.Mutex

	for _, inst := range installations {
		if ctx.Err() != nil {
			break
		}
		repos, err := s.db.ListRepositoriesByInstallation(ctx, inst.ID)
		if err != nil {
			s.logger.Error("Failed to list repositories", "installation_id", inst.InstallationID, "error", err)
			mu.Lock()
			result.Errors = append(result.Errors, model.SyncError{
				Repository: inst.AccountLogin,
				Error:      err.Error(),
			})
			mu.Unlock()
			continue
		}
		client := s.clients.ForInstallation(inst.InstallationID)
		s.syncRepos(ctx, client, repos, result, &mu)
		result.InstallationsProcessed++
	}

	// Manually imported repositories are swept with the fallback token.
	orphans, err := s.db.ListRepositoriesWithoutInstallation(ctx)
	if err != nil {
		s.logger.Error("Failed to list manually imported repositories", "error", err)
	} else if len(orphans) > 0 {
		if s.fallbackToken == "" {
			s.logger.Warn("Skipping repositories without installation", "count", len(orphans), "reason", errors.ErrNoFallbackToken)
		} else {
			s.syncRepos(ctx, s.clients.ForToken(s.fallbackToken), orphans, result, &mu)
		}
	}

	s.ledger.Record(ctx, s.db, ledger.Entry{
		JobType:     model.JobTypePeriodic,
		Status:      ledger.StatusFor(result.RepositoriesSynced, len(result.Errors)),
		Processed:   result.RepositoriesSynced,
		ErrorsCount: len(result.Errors),
		Details:     result,
		StartedAt:   startedAt,
	})

	s.logger.Info("Sync sweep finished",
		"installations", result.InstallationsProcessed,
		"repositories_synced", result.RepositoriesSynced,
		"errors", len(result.Errors),
		"duration", time.Since(startedAt))
	return result, nil
}

// syncRepos syncs a set of repositories with bounded concurrency, skipping
// the ones synced within the staleness window.
func (s *Scheduler) syncRepos(ctx context.Context, client githubapp.API, repos []database.Repository, result *model.SyncResult, mu *sync.Mutex) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRepoSyncs)

	for _, repo := range repos {
		if repo.LastSyncedAt != nil && time.Since(*repo.LastSyncedAt) < s.stalenessWindow {
			s.logger.Debug("Skipping recently synced repository", "full_name", repo.FullName, "last_synced_at", *repo.LastSyncedAt)
			continue
		}
		repo := repo
		g.Go(func() error {
			if _, err := s.syncRepository(gctx, client, repo); err != nil {
				s.logger.Error("Repository sync failed", "full_name", repo.FullName, "error", err)
				mu.Lock()
				result.Errors = append(result.Errors, model.SyncError{
					Repository: repo.FullName,
					Error:      err.Error(),
				})
				mu.Unlock()
				return nil // isolated; the sweep continues
			}
			mu.Lock()
			result.RepositoriesSynced++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// syncRepository performs one incremental sync: refresh metadata, fetch
// commits and issues created since the last sync, import them in a single
// transaction, and advance the sync marker.
func (s *Scheduler) syncRepository(ctx context.Context, client githubapp.API, repo database.Repository) (*model.RepoSyncResult, error) {
	owner, name, err := splitFullName(repo.FullName)
	if err != nil {
		return nil, err
	}

	remote, err := client.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("fetching repository metadata: %w", err)
	}

	since, err := s.sinceFor(ctx, repo)
	if err != nil {
		return nil, err
	}

	commits, err := client.ListCommitsSince(ctx, owner, name, since)
	if err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}
	issues, err := client.ListIssuesSince(ctx, owner, name, since)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	contributors, err := client.ListContributors(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("listing contributors: %w", err)
	}

	result := &model.RepoSyncResult{Repository: repo.FullName}
	err = s.tx.WithTx(ctx, func(q database.Querier) error {
		for _, c := range commits {
			_, created, err := s.importer.ImportCommit(ctx, q, c, repo)
			if err != nil {
				return fmt.Errorf("importing commit %s: %w", c.SHA, err)
			}
			if created {
				result.NewCommits++
			}
		}
		for _, is := range issues {
			_, created, err := s.importer.ImportIssue(ctx, q, is, repo)
			if err != nil {
				return fmt.Errorf("importing issue #%d: %w", is.Number, err)
			}
			if created {
				result.NewIssues++
			} else {
				result.UpdatedIssues++
			}
		}
		_, newContribs, err := s.importer.ImportContributors(ctx, q, contributors, repo)
		if err != nil {
			return fmt.Errorf("importing contributors: %w", err)
		}
		result.NewContributors = newContribs

		return s.importer.FinalizeSync(ctx, q, repo.ID, remote)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Synced repository", "full_name", repo.FullName,
		"new_commits", result.NewCommits, "new_issues", result.NewIssues,
		"new_contributors", result.NewContributors)
	return result, nil
}

// sinceFor picks the incremental cutoff: the last sync marker when present,
// else the newest imported commit, else the zero time for a full backfill.
func (s *Scheduler) sinceFor(ctx context.Context, repo database.Repository) (time.Time, error) {
	if repo.LastSyncedAt != nil {
		return *repo.LastSyncedAt, nil
	}
	latest, err := s.db.GetLatestCommitDateForRepo(ctx, repo.ID)
	if err != nil {
		return time.Time{}, fmt.Errorf("finding latest imported commit: %w", err)
	}
	if latest != nil {
		return *latest, nil
	}
	return time.Time{}, nil
}

// SyncRepositoryByID syncs one repository on demand, regardless of staleness.
func (s *Scheduler) SyncRepositoryByID(ctx context.Context, id int64) (*model.RepoSyncResult, error) {
	repo, err := s.db.GetRepositoryByID(ctx, id)
	if goerrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.ErrRepositoryNotFound
	}
	if err != nil {
		return nil, err
	}

	client, err := s.clientFor(ctx, repo)
	if err != nil {
		return nil, err
	}
	return s.syncRepository(ctx, client, repo)
}

// ImportRepositories imports a list of "owner/name" repositories with the
// fallback token and records the batch as a manual job.
func (s *Scheduler) ImportRepositories(ctx context.Context, fullNames []string) (map[string]any, error) {
	if s.fallbackToken == "" {
		return nil, errors.ErrNoFallbackToken
	}
	startedAt := time.Now()
	client := s.clients.ForToken(s.fallbackToken)

	var imported, skipped []string
	var syncErrors []model.SyncError
	for _, fullName := range fullNames {
		owner, name, err := splitFullName(fullName)
		if err != nil {
			syncErrors = append(syncErrors, model.SyncError{Repository: fullName, Error: err.Error()})
			continue
		}
		remote, err := client.GetRepository(ctx, owner, name)
		if err != nil {
			s.logger.Error("Failed to fetch repository", "full_name", fullName, "error", err)
			syncErrors = append(syncErrors, model.SyncError{Repository: fullName, Error: err.Error()})
			continue
		}
		err = s.tx.WithTx(ctx, func(q database.Querier) error {
			_, created, err := s.importer.ImportRepository(ctx, q, remote, nil)
			if err != nil {
				return err
			}
			if created {
				imported = append(imported, remote.FullName)
			} else {
				skipped = append(skipped, remote.FullName)
			}
			return nil
		})
		if err != nil {
			s.logger.Error("Failed to import repository", "full_name", fullName, "error", err)
			syncErrors = append(syncErrors, model.SyncError{Repository: fullName, Error: err.Error()})
		}
	}

	s.ledger.Record(ctx, s.db, ledger.Entry{
		JobType:     model.JobTypeManual,
		Status:      ledger.StatusFor(len(imported), len(syncErrors)),
		Processed:   len(imported),
		ErrorsCount: len(syncErrors),
		Details: map[string]any{
			"imported": imported,
			"skipped":  skipped,
			"errors":   syncErrors,
		},
		StartedAt: startedAt,
	})

	return map[string]any{
		"imported": imported,
		"skipped":  skipped,
		"errors":   syncErrors,
	}, nil
}

// clientFor picks the right credentials for a repository: its installation's
// cached token when it has one, else the fallback token.
func (s *Scheduler) clientFor(ctx context.Context, repo database.Repository) (githubapp.API, error) {
	if repo.InstallationID != nil {
		// repo.InstallationID is the local row id; resolve the external id.
		inst, err := s.db.GetInstallationByID(ctx, *repo.InstallationID)
		if err == nil {
			return s.clients.ForInstallation(inst.InstallationID), nil
		}
		if !goerrors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}
	if s.fallbackToken == "" {
		return nil, errors.ErrNoFallbackToken
	}
	return s.clients.ForToken(s.fallbackToken), nil
}

func splitFullName(fullName string) (string, string, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return "", "", &errors.ErrInvalidRepoFormat{Repo: fullName}
	}
	return owner, name, nil
}
