// internal/database/repositories.go
package database

import (
	"context"
	"time"
)

// Repository mirrors a row of the repositories table. InstallationID is nil
// for repositories imported manually, outside any installation grant.
type Repository struct {
	ID             int64
	GithubID       int64
	Name           string
	FullName       string
	Description    *string
	URL            string
	Language       *string
	Stars          int32
	Forks          int32
	OpenIssues     int32
	InstallationID *int64
	LastSyncedAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const repositoryColumns = `id, github_id, name, full_name, description, url, language, stars, forks, open_issues, installation_id, last_synced_at, created_at, updated_at`

func scanRepository(row interface{ Scan(...any) error }) (Repository, error) {
	var r Repository
	err := row.Scan(&r.ID, &r.GithubID, &r.Name, &r.FullName, &r.Description, &r.URL, &r.Language,
		&r.Stars, &r.Forks, &r.OpenIssues, &r.InstallationID, &r.LastSyncedAt, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

type CreateRepositoryParams struct {
	GithubID       int64
	Name           string
	FullName       string
	Description    *string
	URL            string
	Language       *string
	Stars          int32
	Forks          int32
	OpenIssues     int32
	InstallationID *int64
}

// CreateRepository inserts a new repository. A concurrent insert of the same
// github_id yields pgx.ErrNoRows; callers re-fetch by external id.
func (q *Queries) CreateRepository(ctx context.Context, arg CreateRepositoryParams) (Repository, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO repositories (github_id, name, full_name, description, url, language, stars, forks, open_issues, installation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (github_id) DO NOTHING
		RETURNING `+repositoryColumns,
		arg.GithubID, arg.Name, arg.FullName, arg.Description, arg.URL, arg.Language,
		arg.Stars, arg.Forks, arg.OpenIssues, arg.InstallationID)
	return scanRepository(row)
}

// GetRepositoryByGithubID looks a repository up by its stable external id.
func (q *Queries) GetRepositoryByGithubID(ctx context.Context, githubID int64) (Repository, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+repositoryColumns+` FROM repositories WHERE github_id = $1`, githubID)
	return scanRepository(row)
}

// GetRepositoryByID looks a repository up by its local primary key.
func (q *Queries) GetRepositoryByID(ctx context.Context, id int64) (Repository, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+repositoryColumns+` FROM repositories WHERE id = $1`, id)
	return scanRepository(row)
}

type UpdateRepositoryMetadataParams struct {
	ID          int64
	Description *string
	Language    *string
	Stars       int32
	Forks       int32
	OpenIssues  int32
}

// UpdateRepositoryMetadata refreshes the mutable fields of an existing row.
func (q *Queries) UpdateRepositoryMetadata(ctx context.Context, arg UpdateRepositoryMetadataParams) (Repository, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE repositories
		SET description = $2, language = $3, stars = $4, forks = $5, open_issues = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+repositoryColumns,
		arg.ID, arg.Description, arg.Language, arg.Stars, arg.Forks, arg.OpenIssues)
	return scanRepository(row)
}

type RenameRepositoryParams struct {
	GithubID int64
	Name     string
	FullName string
	URL      string
}

// RenameRepository updates naming fields after a repository rename event.
// Returns the number of rows updated (0 when the repository is unknown).
func (q *Queries) RenameRepository(ctx context.Context, arg RenameRepositoryParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE repositories SET name = $2, full_name = $3, url = $4, updated_at = now()
		WHERE github_id = $1`,
		arg.GithubID, arg.Name, arg.FullName, arg.URL)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type FinalizeRepositorySyncParams struct {
	ID         int64
	Stars      int32
	Forks      int32
	OpenIssues int32
}

// FinalizeRepositorySync refreshes aggregate counters and advances
// last_synced_at in one statement at the end of an import batch.
func (q *Queries) FinalizeRepositorySync(ctx context.Context, arg FinalizeRepositorySyncParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE repositories
		SET stars = $2, forks = $3, open_issues = $4, last_synced_at = now(), updated_at = now()
		WHERE id = $1`,
		arg.ID, arg.Stars, arg.Forks, arg.OpenIssues)
	return err
}

// TouchRepositorySync advances last_synced_at without touching counters,
// used by webhook-triggered partial imports.
func (q *Queries) TouchRepositorySync(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, `
		UPDATE repositories SET last_synced_at = now(), updated_at = now() WHERE id = $1`, id)
	return err
}

// DeleteRepositoryByGithubID removes a repository, returning the number of
// rows deleted so callers can distinguish "was never imported".
func (q *Queries) DeleteRepositoryByGithubID(ctx context.Context, githubID int64) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM repositories WHERE github_id = $1`, githubID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListRepositoriesByInstallation returns all repositories owned by one installation.
func (q *Queries) ListRepositoriesByInstallation(ctx context.Context, installationID int64) ([]Repository, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+repositoryColumns+` FROM repositories WHERE installation_id = $1 ORDER BY id`, installationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// ListRepositoriesWithoutInstallation returns manually imported repositories.
func (q *Queries) ListRepositoriesWithoutInstallation(ctx context.Context) ([]Repository, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+repositoryColumns+` FROM repositories WHERE installation_id IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// CountRepositoriesByInstallation reports how many repositories an
// installation currently owns.
func (q *Queries) CountRepositoriesByInstallation(ctx context.Context, installationID int64) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM repositories WHERE installation_id = $1`, installationID).Scan(&n)
	return n, err
}
