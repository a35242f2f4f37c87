// internal/importer/importer.go
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github-sync-engine/internal/database"
	"github-sync-engine/internal/model"
)

// Importer maps remote payloads onto local entities with create-or-update
// semantics keyed by stable external identifiers. Importing the same payload
// twice, concurrently or sequentially, converges to one row per identifier.
type Importer struct {
	logger *slog.Logger
}

// New creates an Importer.
func New(logger *slog.Logger) *Importer {
	return &Importer{logger: logger}
}

// ImportRepository creates or updates a repository keyed by its external id.
// Returns created=false when an existing row was refreshed in place.
func (im *Importer) ImportRepository(ctx context.Context, q database.Querier, r *model.Repository, installationID *int64) (database.Repository, bool, error) {
	existing, err := q.GetRepositoryByGithubID(ctx, r.GithubID)
	if err == nil {
		updated, err := q.UpdateRepositoryMetadata(ctx, database.UpdateRepositoryMetadataParams{
			ID:          existing.ID,
			Description: r.Description,
			Language:    r.Language,
			Stars:       int32(r.Stars),
			Forks:       int32(r.Forks),
			OpenIssues:  int32(r.OpenIssues),
		})
		return updated, false, err
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Repository{}, false, err
	}

	created, err := q.CreateRepository(ctx, database.CreateRepositoryParams{
		GithubID:       r.GithubID,
		Name:           r.Name,
		FullName:       r.FullName,
		Description:    r.Description,
		URL:            r.URL,
		Language:       r.Language,
		Stars:          int32(r.Stars),
		Forks:          int32(r.Forks),
		OpenIssues:     int32(r.OpenIssues),
		InstallationID: installationID,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost an insert race; the row exists now.
		existing, err := q.GetRepositoryByGithubID(ctx, r.GithubID)
		return existing, false, err
	}
	if err != nil {
		return database.Repository{}, false, err
	}
	im.logger.Info("Imported new repository", "full_name", created.FullName, "github_id", created.GithubID)
	return created, true, nil
}

// ImportCommit imports a single commit keyed by its content hash. Commits are
// immutable: if the hash exists the import is a no-op and created is false.
// Commits with no attributable author are skipped.
func (im *Importer) ImportCommit(ctx context.Context, q database.Querier, c model.Commit, repo database.Repository) (database.Commit, bool, error) {
	existing, err := q.GetCommitBySHA(ctx, c.SHA)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Commit{}, false, err
	}

	username := c.AuthorLogin
	if username == "" {
		username = c.AuthorName
	}
	if username == "" {
		im.logger.Debug("Skipping commit with no attributable author", "sha", c.SHA)
		return database.Commit{}, false, nil
	}

	contributor, err := im.ensureContributor(ctx, q, username, c.AvatarURL, "")
	if err != nil {
		return database.Commit{}, false, err
	}
	work, err := im.ensureWork(ctx, q, repo.ID, contributor.ID)
	if err != nil {
		return database.Commit{}, false, err
	}

	created, err := q.CreateCommit(ctx, database.CreateCommitParams{
		WorkID:        work.ID,
		RepositoryID:  repo.ID,
		ContributorID: contributor.ID,
		SHA:           c.SHA,
		Message:       c.Message,
		URL:           c.URL,
		Additions:     int32(c.Additions),
		Deletions:     int32(c.Deletions),
		CommittedAt:   c.CommittedAt,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		// A concurrent import won the race; converge on its row.
		existing, err := q.GetCommitBySHA(ctx, c.SHA)
		return existing, false, err
	}
	if err != nil {
		return database.Commit{}, false, err
	}

	if err := q.IncrementWorkCommitCount(ctx, work.ID); err != nil {
		return database.Commit{}, false, err
	}
	return created, true, nil
}

// ImportIssue imports or updates an issue keyed by its external id. Issues
// are mutable: state and timestamps are refreshed when the row exists.
func (im *Importer) ImportIssue(ctx context.Context, q database.Querier, is model.Issue, repo database.Repository) (database.Issue, bool, error) {
	_, err := q.GetIssueByGithubID(ctx, is.GithubID)
	if err == nil {
		updated, err := q.UpdateIssueState(ctx, database.UpdateIssueStateParams{
			GithubIssueID:  is.GithubID,
			Title:          is.Title,
			State:          is.State,
			IssueUpdatedAt: is.UpdatedAt,
			ClosedAt:       is.ClosedAt,
		})
		return updated, false, err
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Issue{}, false, err
	}

	if is.AuthorLogin == "" {
		im.logger.Debug("Skipping issue with no author", "github_issue_id", is.GithubID)
		return database.Issue{}, false, nil
	}
	contributor, err := im.ensureContributor(ctx, q, is.AuthorLogin, is.AvatarURL, "")
	if err != nil {
		return database.Issue{}, false, err
	}
	work, err := im.ensureWork(ctx, q, repo.ID, contributor.ID)
	if err != nil {
		return database.Issue{}, false, err
	}

	created, err := q.CreateIssue(ctx, database.CreateIssueParams{
		WorkID:         work.ID,
		RepositoryID:   repo.ID,
		ContributorID:  contributor.ID,
		GithubIssueID:  is.GithubID,
		Number:         int32(is.Number),
		Title:          is.Title,
		State:          is.State,
		URL:            is.URL,
		IssueCreatedAt: is.CreatedAt,
		IssueUpdatedAt: is.UpdatedAt,
		ClosedAt:       is.ClosedAt,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := q.GetIssueByGithubID(ctx, is.GithubID)
		return existing, false, err
	}
	if err != nil {
		return database.Issue{}, false, err
	}

	if err := q.IncrementWorkIssueCount(ctx, work.ID); err != nil {
		return database.Issue{}, false, err
	}
	return created, true, nil
}

// ImportContributors ensures contributor and relation rows exist for every
// listed contributor. Returns the resolved contributors and how many of them
// were newly created.
func (im *Importer) ImportContributors(ctx context.Context, q database.Querier, contribs []model.Contributor, repo database.Repository) ([]database.Contributor, int, error) {
	var resolved []database.Contributor
	newContributors := 0
	for _, contrib := range contribs {
		if contrib.Login == "" {
			continue
		}
		contributor, err := q.GetContributorByUsername(ctx, contrib.Login)
		if errors.Is(err, pgx.ErrNoRows) {
			newContributors++
			contributor, err = im.ensureContributor(ctx, q, contrib.Login, contrib.AvatarURL, contrib.ProfileURL)
		}
		if err != nil {
			return resolved, newContributors, err
		}
		if _, err := im.ensureWork(ctx, q, repo.ID, contributor.ID); err != nil {
			return resolved, newContributors, err
		}
		resolved = append(resolved, contributor)
	}
	return resolved, newContributors, nil
}

// FinalizeSync refreshes the repository's aggregate counters and advances
// last_synced_at in a single write at the end of an import batch.
func (im *Importer) FinalizeSync(ctx context.Context, q database.Querier, repoID int64, r *model.Repository) error {
	return q.FinalizeRepositorySync(ctx, database.FinalizeRepositorySyncParams{
		ID:         repoID,
		Stars:      int32(r.Stars),
		Forks:      int32(r.Forks),
		OpenIssues: int32(r.OpenIssues),
	})
}

// ensureContributor resolves a contributor by username, creating a minimal
// row the first time the name appears.
func (im *Importer) ensureContributor(ctx context.Context, q database.Querier, username, avatarURL, profileURL string) (database.Contributor, error) {
	contributor, err := q.GetContributorByUsername(ctx, username)
	if err == nil {
		return contributor, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Contributor{}, err
	}

	if profileURL == "" {
		profileURL = fmt.Sprintf("https://github.com/%s", username)
	}
	contributor, err = q.CreateContributor(ctx, database.CreateContributorParams{
		Username:   username,
		AvatarURL:  avatarURL,
		ProfileURL: profileURL,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return q.GetContributorByUsername(ctx, username)
	}
	return contributor, err
}

// ensureWork fetches or creates the relation row for a (repository,
// contributor) pair.
func (im *Importer) ensureWork(ctx context.Context, q database.Querier, repoID, contributorID int64) (database.RepositoryWork, error) {
	key := database.RepositoryWorkKey{RepositoryID: repoID, ContributorID: contributorID}
	work, err := q.GetRepositoryWork(ctx, key)
	if err == nil {
		return work, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.RepositoryWork{}, err
	}

	work, err = q.CreateRepositoryWork(ctx, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return q.GetRepositoryWork(ctx, key)
	}
	return work, err
}
