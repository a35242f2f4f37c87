// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// Soft not-found sentinels. An event referencing an entity we never imported
// (or already removed) is acknowledged as "ignored", not treated as a failure.
var (
	ErrInstallationNotFound = errors.New("installation not found")
	ErrRepositoryNotFound   = errors.New("repository not found")
	ErrIssueNotFound        = errors.New("issue not found")
)

// IsNotFound reports whether err is one of the soft not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInstallationNotFound) ||
		errors.Is(err, ErrRepositoryNotFound) ||
		errors.Is(err, ErrIssueNotFound)
}

// ErrNoFallbackToken is returned when a repository has no installation and no
// fallback token is configured to sync it with.
var ErrNoFallbackToken = errors.New("repository has no installation and no fallback token configured")

// ErrInvalidRepoFormat is returned when a repository string is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}
