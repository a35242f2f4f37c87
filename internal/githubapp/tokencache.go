// internal/githubapp/tokencache.go
package githubapp

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"
)

// TokenIssuer obtains a fresh installation access token from the remote
// platform. *AppAuth is the production implementation.
type TokenIssuer interface {
	IssueToken(ctx context.Context, installationID int64) (*oauth2.Token, error)
}

// TokenCache caches installation tokens in memory for the process lifetime.
// Tokens are never persisted. A single mutex guards the map; issuance is
// infrequent enough that per-key locking would not pay for itself.
type TokenCache struct {
	issuer TokenIssuer
	logger *slog.Logger

	mu     sync.Mutex
	tokens map[int64]*oauth2.Token
}

// NewTokenCache creates an empty cache backed by the given issuer.
func NewTokenCache(issuer TokenIssuer, logger *slog.Logger) *TokenCache {
	return &TokenCache{
		issuer: issuer,
		logger: logger,
		tokens: make(map[int64]*oauth2.Token),
	}
}

// Token returns a valid access token for the installation, issuing a new one
// on cache miss or expiry.
func (c *TokenCache) Token(ctx context.Context, installationID int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tok, ok := c.tokens[installationID]; ok && tok.Valid() {
		return tok.AccessToken, nil
	}

	tok, err := c.issuer.IssueToken(ctx, installationID)
	if err != nil {
		return "", err
	}
	c.tokens[installationID] = tok
	return tok.AccessToken, nil
}

// Invalidate drops the cached token for an installation, forcing the next
// Token call to issue a fresh one. Called on 401 responses to absorb tokens
// that expired between cache-check and use.
func (c *TokenCache) Invalidate(installationID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tokens[installationID]; ok {
		delete(c.tokens, installationID)
		c.logger.Warn("Invalidated cached installation token", "installation_id", installationID)
	}
}
