// internal/githubapp/transport.go
package githubapp

import (
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// Total attempts for a single logical request when the remote answers
	// 429 or 5xx. The 401 refresh retry is counted separately.
	maxAttempts = 4

	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 10 * time.Second
)

// retryTransport injects the cached installation token into every request,
// refreshes it exactly once on 401, and retries transient failures (429/5xx)
// with exponential backoff. Other 4xx responses propagate immediately.
type retryTransport struct {
	base           http.RoundTripper
	tokens         *TokenCache
	installationID int64
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialBackoff
	bo.MaxInterval = maxBackoff

	refreshed := false
	for attempt := 1; ; attempt++ {
		r, err := cloneRequest(req)
		if err != nil {
			return nil, err
		}

		token, err := t.tokens.Token(req.Context(), t.installationID)
		if err != nil {
			return nil, err
		}
		r.Header.Set("Authorization", "Bearer "+token)

		resp, err := t.base.RoundTrip(r)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized && !refreshed:
			// The cached token may have expired between cache-check and use.
			refreshed = true
			resp.Body.Close()
			t.tokens.Invalidate(t.installationID)
			continue

		case retryable(resp.StatusCode) && attempt < maxAttempts:
			resp.Body.Close()
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(bo.NextBackOff()):
			}
			continue
		}

		return resp, nil
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// cloneRequest produces a fresh request for each attempt; a consumed body
// cannot be replayed, so requests without GetBody are not retried with one.
func cloneRequest(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.Body == nil {
		return r, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed for retry")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	r.Body = body
	return r, nil
}
