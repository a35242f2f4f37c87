// internal/githubapp/auth.go
package githubapp

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

const (
	// Lifetime of the signed app assertion. GitHub caps it at 10 minutes.
	appJWTLifetime = 10 * time.Minute
	// Issued-at is backdated to absorb clock skew between us and the remote.
	appJWTSkew = time.Minute

	// Installation tokens are cached for less than their remote-declared
	// lifetime so a token never expires between cache-check and use.
	tokenExpiryMargin = 5 * time.Minute
)

// AppAuth issues installation access tokens by authenticating as the GitHub
// App with a signed RS256 assertion.
type AppAuth struct {
	appID   string
	key     *rsa.PrivateKey
	apiBase string
	timeout time.Duration
	logger  *slog.Logger
}

// NewAppAuth parses the PEM private key and returns an issuer. apiBase may be
// empty for the public API.
func NewAppAuth(appID string, privateKeyPEM []byte, apiBase string, timeout time.Duration, logger *slog.Logger) (*AppAuth, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse app private key: %w", err)
	}
	return &AppAuth{
		appID:   appID,
		key:     key,
		apiBase: apiBase,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// appJWT builds the short-lived assertion used against the token-issuance endpoint.
func (a *AppAuth) appJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-appJWTSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.key)
}

// IssueToken requests a fresh installation access token. The returned token's
// expiry already includes the safety margin.
func (a *AppAuth) IssueToken(ctx context.Context, installationID int64) (*oauth2.Token, error) {
	assertion, err := a.appJWT()
	if err != nil {
		return nil, fmt.Errorf("failed to sign app assertion: %w", err)
	}

	tc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: assertion}))
	tc.Timeout = a.timeout
	gh := github.NewClient(tc)
	if a.apiBase != "" {
		gh, err = gh.WithEnterpriseURLs(a.apiBase, a.apiBase)
		if err != nil {
			return nil, err
		}
	}

	it, _, err := gh.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create installation token for %d: %w", installationID, err)
	}

	a.logger.Info("Issued new installation token", "installation_id", installationID,
		"expires_at", it.GetExpiresAt().Time)

	return &oauth2.Token{
		AccessToken: it.GetToken(),
		Expiry:      it.GetExpiresAt().Time.Add(-tokenExpiryMargin),
	}, nil
}
