// internal/webhook/processor.go
package webhook

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/jackc/pgx/v5"

	"github-sync-engine/internal/database"
	"github-sync-engine/internal/githubapp"
	"github-sync-engine/internal/importer"
	"github-sync-engine/internal/ledger"
	"github-sync-engine/internal/model"
)

// EventProcessor applies webhook events to the local store. Every handler is
// safe to re-invoke with the same payload: imports are idempotent and
// already-applied state is acknowledged, never treated as a failure.
type EventProcessor struct {
	db       database.Querier
	tx       database.TxRunner
	clients  githubapp.Factory
	importer *importer.Importer
	ledger   *ledger.Ledger
	logger   *slog.Logger
}

// NewProcessor creates an EventProcessor.
func NewProcessor(db database.Querier, tx database.TxRunner, clients githubapp.Factory, imp *importer.Importer, led *ledger.Ledger, logger *slog.Logger) *EventProcessor {
	return &EventProcessor{
		db:       db,
		tx:       tx,
		clients:  clients,
		importer: imp,
		ledger:   led,
		logger:   logger,
	}
}

// Process routes a parsed event to its handler.
func (p *EventProcessor) Process(ctx context.Context, event any) (Result, error) {
	switch e := event.(type) {
	case *github.InstallationEvent:
		return p.installation(ctx, e)
	case *github.InstallationRepositoriesEvent:
		return p.installationRepositories(ctx, e)
	case *github.RepositoryEvent:
		return p.repository(ctx, e)
	case *github.PushEvent:
		return p.push(ctx, e)
	case *github.IssuesEvent:
		return p.issues(ctx, e)
	case *github.PullRequestEvent:
		// Acknowledged but deliberately not persisted.
		p.logger.Info("Pull request event received",
			"action", e.GetAction(), "number", e.GetPullRequest().GetNumber(),
			"repository", e.GetRepo().GetFullName())
		return Result{"status": "processed", "action": e.GetAction(), "pr_number": e.GetPullRequest().GetNumber()}, nil
	case *github.PingEvent:
		return Result{"status": "ok", "message": "webhook endpoint is healthy", "zen": e.GetZen()}, nil
	default:
		return Result{"status": "ignored"}, nil
	}
}

// installation handles app install/uninstall events.
func (p *EventProcessor) installation(ctx context.Context, e *github.InstallationEvent) (Result, error) {
	installationID := e.GetInstallation().GetID()

	switch e.GetAction() {
	case "created":
		inst, err := p.ensureInstallation(ctx, e.GetInstallation())
		if err != nil {
			return nil, err
		}
		return p.bulkImport(ctx, inst)

	case "deleted":
		inst, err := p.db.GetInstallationByInstallationID(ctx, installationID)
		if errors.Is(err, pgx.ErrNoRows) {
			return Result{"status": "not_found"}, nil
		}
		if err != nil {
			return nil, err
		}
		removed, err := p.db.CountRepositoriesByInstallation(ctx, inst.ID)
		if err != nil {
			return nil, err
		}
		// Repositories go with the installation via ON DELETE CASCADE.
		if err := p.db.DeleteInstallation(ctx, inst.ID); err != nil {
			return nil, err
		}
		p.logger.Info("Installation deleted", "installation_id", installationID, "repos_removed", removed)
		return Result{"status": "deleted", "repos_removed": removed}, nil

	default:
		return Result{"status": "ignored", "action": e.GetAction()}, nil
	}
}

// bulkImport imports every repository visible to a new installation,
// error-isolated per repository, and records the batch in the ledger.
func (p *EventProcessor) bulkImport(ctx context.Context, inst database.Installation) (Result, error) {
	startedAt := time.Now()
	client := p.clients.ForInstallation(inst.InstallationID)

	repos, err := client.ListInstallationRepositories(ctx)
	if err != nil {
		p.ledger.Record(ctx, p.db, ledger.Entry{
			InstallationID: &inst.ID,
			JobType:        model.JobTypeWebhook,
			Status:         model.JobStatusFailed,
			Details:        map[string]string{"error": err.Error()},
			StartedAt:      startedAt,
		})
		return nil, err
	}

	var imported, skipped []string
	var syncErrors []model.SyncError
	for _, repo := range repos {
		err := p.tx.WithTx(ctx, func(q database.Querier) error {
			_, created, err := p.importer.ImportRepository(ctx, q, repo, &inst.ID)
			if err != nil {
				return err
			}
			if created {
				imported = append(imported, repo.FullName)
			} else {
				skipped = append(skipped, repo.FullName)
			}
			return nil
		})
		if err != nil {
			p.logger.Error("Failed to import repository", "full_name", repo.FullName, "error", err)
			syncErrors = append(syncErrors, model.SyncError{Repository: repo.FullName, Error: err.Error()})
		}
	}

	p.ledger.Record(ctx, p.db, ledger.Entry{
		InstallationID: &inst.ID,
		JobType:        model.JobTypeWebhook,
		Status:         ledger.StatusFor(len(imported), len(syncErrors)),
		Processed:      len(imported),
		ErrorsCount:    len(syncErrors),
		Details: map[string]any{
			"imported": imported,
			"skipped":  skipped,
			"errors":   syncErrors,
		},
		StartedAt: startedAt,
	})

	return Result{
		"status":   "imported",
		"imported": len(imported),
		"skipped":  len(skipped),
		"errors":   len(syncErrors),
	}, nil
}

// installationRepositories handles repositories granted to or revoked from
// an existing installation.
func (p *EventProcessor) installationRepositories(ctx context.Context, e *github.InstallationRepositoriesEvent) (Result, error) {
	inst, err := p.db.GetInstallationByInstallationID(ctx, e.GetInstallation().GetID())
	if errors.Is(err, pgx.ErrNoRows) {
		return Result{"status": "ignored", "reason": "installation not imported"}, nil
	}
	if err != nil {
		return nil, err
	}

	switch e.GetAction() {
	case "added":
		client := p.clients.ForInstallation(inst.InstallationID)
		var imported []string
		for _, added := range e.RepositoriesAdded {
			// Grant payloads are skeletal; fetch the full repository first.
			repo, err := client.GetRepositoryByID(ctx, added.GetID())
			if err != nil {
				p.logger.Error("Failed to fetch granted repository", "github_id", added.GetID(), "error", err)
				continue
			}
			err = p.tx.WithTx(ctx, func(q database.Querier) error {
				_, _, err := p.importer.ImportRepository(ctx, q, repo, &inst.ID)
				return err
			})
			if err != nil {
				p.logger.Error("Failed to import granted repository", "full_name", repo.FullName, "error", err)
				continue
			}
			imported = append(imported, repo.FullName)
		}
		return Result{"status": "added", "imported": imported}, nil

	case "removed":
		var removed []string
		for _, gone := range e.RepositoriesRemoved {
			n, err := p.db.DeleteRepositoryByGithubID(ctx, gone.GetID())
			if err != nil {
				return nil, err
			}
			if n > 0 {
				removed = append(removed, gone.GetFullName())
			}
		}
		return Result{"status": "removed", "removed": removed}, nil

	default:
		return Result{"status": "ignored", "action": e.GetAction()}, nil
	}
}

// repository handles repository lifecycle events.
func (p *EventProcessor) repository(ctx context.Context, e *github.RepositoryEvent) (Result, error) {
	repo := e.GetRepo()

	switch e.GetAction() {
	case "created":
		installationID := e.GetInstallation().GetID()
		if installationID == 0 {
			return Result{"status": "ignored", "reason": "no installation"}, nil
		}
		inst, err := p.db.GetInstallationByInstallationID(ctx, installationID)
		if errors.Is(err, pgx.ErrNoRows) {
			return Result{"status": "ignored", "reason": "installation not imported"}, nil
		}
		if err != nil {
			return nil, err
		}
		err = p.tx.WithTx(ctx, func(q database.Querier) error {
			_, _, err := p.importer.ImportRepository(ctx, q, githubapp.ToRepository(repo), &inst.ID)
			return err
		})
		if err != nil {
			return nil, err
		}
		return Result{"status": "imported", "repository": repo.GetFullName()}, nil

	case "deleted":
		n, err := p.db.DeleteRepositoryByGithubID(ctx, repo.GetID())
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return Result{"status": "not_found"}, nil
		}
		return Result{"status": "deleted", "repository": repo.GetFullName()}, nil

	case "renamed":
		n, err := p.db.RenameRepository(ctx, database.RenameRepositoryParams{
			GithubID: repo.GetID(),
			Name:     repo.GetName(),
			FullName: repo.GetFullName(),
			URL:      repo.GetHTMLURL(),
		})
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return Result{"status": "not_found"}, nil
		}
		return Result{"status": "renamed", "repository": repo.GetFullName()}, nil

	default:
		return Result{"status": "ignored", "action": e.GetAction()}, nil
	}
}

// push imports the commits carried by a push event. Push payloads omit
// per-commit stats, so each commit's full detail is fetched before import.
func (p *EventProcessor) push(ctx context.Context, e *github.PushEvent) (Result, error) {
	repo, err := p.db.GetRepositoryByGithubID(ctx, e.GetRepo().GetID())
	if errors.Is(err, pgx.ErrNoRows) {
		return Result{"status": "ignored", "reason": "repository not imported"}, nil
	}
	if err != nil {
		return nil, err
	}

	installationID := e.GetInstallation().GetID()
	if installationID == 0 {
		return Result{"status": "ignored", "reason": "no installation"}, nil
	}
	client := p.clients.ForInstallation(installationID)

	owner := e.GetRepo().GetOwner().GetLogin()
	name := e.GetRepo().GetName()

	// Fetch outside the transaction; one unfetchable commit does not sink
	// the rest of the push.
	var commits []model.Commit
	fetchErrors := 0
	for _, hc := range e.Commits {
		full, err := client.GetCommit(ctx, owner, name, hc.GetID())
		if err != nil {
			p.logger.Error("Failed to fetch commit detail", "sha", hc.GetID(), "error", err)
			fetchErrors++
			continue
		}
		commits = append(commits, *full)
	}

	newCommits := 0
	err = p.tx.WithTx(ctx, func(q database.Querier) error {
		for _, c := range commits {
			_, created, err := p.importer.ImportCommit(ctx, q, c, repo)
			if err != nil {
				return err
			}
			if created {
				newCommits++
			}
		}
		return q.TouchRepositorySync(ctx, repo.ID)
	})
	if err != nil {
		return nil, err
	}

	result := Result{"status": "processed", "new_commits": newCommits}
	if fetchErrors > 0 {
		result["fetch_errors"] = fetchErrors
	}
	return result, nil
}

// issues imports or updates the issue carried by an issues event.
func (p *EventProcessor) issues(ctx context.Context, e *github.IssuesEvent) (Result, error) {
	switch e.GetAction() {
	case "opened", "reopened", "closed":
	default:
		return Result{"status": "ignored", "action": e.GetAction()}, nil
	}

	repo, err := p.db.GetRepositoryByGithubID(ctx, e.GetRepo().GetID())
	if errors.Is(err, pgx.ErrNoRows) {
		return Result{"status": "ignored", "reason": "repository not imported"}, nil
	}
	if err != nil {
		return nil, err
	}

	var created bool
	err = p.tx.WithTx(ctx, func(q database.Querier) error {
		_, c, err := p.importer.ImportIssue(ctx, q, githubapp.ToIssue(e.GetIssue()), repo)
		created = c
		return err
	})
	if err != nil {
		return nil, err
	}

	status := "updated"
	if created {
		status = "created"
	}
	return Result{"status": status, "issue_number": e.GetIssue().GetNumber()}, nil
}

// ensureInstallation creates the installation row if it is not present yet.
func (p *EventProcessor) ensureInstallation(ctx context.Context, remote *github.Installation) (database.Installation, error) {
	inst, err := p.db.GetInstallationByInstallationID(ctx, remote.GetID())
	if err == nil {
		return inst, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Installation{}, err
	}

	inst, err = p.db.CreateInstallation(ctx, database.CreateInstallationParams{
		InstallationID:   remote.GetID(),
		AccountLogin:     remote.GetAccount().GetLogin(),
		AccountType:      remote.GetAccount().GetType(),
		AccountAvatarURL: remote.GetAccount().GetAvatarURL(),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		// Concurrent delivery of the same event created it first.
		return p.db.GetInstallationByInstallationID(ctx, remote.GetID())
	}
	return inst, err
}
