// internal/database/installations.go
package database

import (
	"context"
	"time"
)

// Installation mirrors a row of the installations table.
type Installation struct {
	ID               int64
	InstallationID   int64
	AccountLogin     string
	AccountType      string
	AccountAvatarURL string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const installationColumns = `id, installation_id, account_login, account_type, account_avatar_url, created_at, updated_at`

func scanInstallation(row interface{ Scan(...any) error }) (Installation, error) {
	var i Installation
	err := row.Scan(&i.ID, &i.InstallationID, &i.AccountLogin, &i.AccountType, &i.AccountAvatarURL, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

type CreateInstallationParams struct {
	InstallationID   int64
	AccountLogin     string
	AccountType      string
	AccountAvatarURL string
}

// CreateInstallation inserts a new installation. On a concurrent insert of
// the same external id it returns pgx.ErrNoRows; callers re-fetch.
func (q *Queries) CreateInstallation(ctx context.Context, arg CreateInstallationParams) (Installation, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO installations (installation_id, account_login, account_type, account_avatar_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (installation_id) DO NOTHING
		RETURNING `+installationColumns,
		arg.InstallationID, arg.AccountLogin, arg.AccountType, arg.AccountAvatarURL)
	return scanInstallation(row)
}

// GetInstallationByInstallationID looks an installation up by its external id.
func (q *Queries) GetInstallationByInstallationID(ctx context.Context, installationID int64) (Installation, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+installationColumns+` FROM installations WHERE installation_id = $1`,
		installationID)
	return scanInstallation(row)
}

// GetInstallationByID looks an installation up by its local primary key.
func (q *Queries) GetInstallationByID(ctx context.Context, id int64) (Installation, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+installationColumns+` FROM installations WHERE id = $1`, id)
	return scanInstallation(row)
}

// ListInstallations returns every known installation.
func (q *Queries) ListInstallations(ctx context.Context) ([]Installation, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+installationColumns+` FROM installations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Installation
	for rows.Next() {
		i, err := scanInstallation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// DeleteInstallation removes an installation row; owned repositories are
// removed by the ON DELETE CASCADE constraint.
func (q *Queries) DeleteInstallation(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM installations WHERE id = $1`, id)
	return err
}
