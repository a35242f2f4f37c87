// internal/database/contributors.go
package database

import (
	"context"
	"time"
)

// Contributor mirrors a row of the contributors table. Contributors are
// created lazily and never deleted by the sync engine.
type Contributor struct {
	ID         int64
	Username   string
	AvatarURL  string
	ProfileURL string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

const contributorColumns = `id, username, avatar_url, profile_url, created_at, updated_at`

func scanContributor(row interface{ Scan(...any) error }) (Contributor, error) {
	var c Contributor
	err := row.Scan(&c.ID, &c.Username, &c.AvatarURL, &c.ProfileURL, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

type CreateContributorParams struct {
	Username   string
	AvatarURL  string
	ProfileURL string
}

// CreateContributor inserts a contributor keyed by username. A concurrent
// insert of the same username yields pgx.ErrNoRows; callers re-fetch.
func (q *Queries) CreateContributor(ctx context.Context, arg CreateContributorParams) (Contributor, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO contributors (username, avatar_url, profile_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO NOTHING
		RETURNING `+contributorColumns,
		arg.Username, arg.AvatarURL, arg.ProfileURL)
	return scanContributor(row)
}

// GetContributorByUsername looks a contributor up by their unique username.
func (q *Queries) GetContributorByUsername(ctx context.Context, username string) (Contributor, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+contributorColumns+` FROM contributors WHERE username = $1`, username)
	return scanContributor(row)
}
