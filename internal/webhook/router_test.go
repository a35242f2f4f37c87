// internal/webhook/router_test.go
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "it's a secret to everybody"

type stubProcessor struct {
	called bool
	event  any
	result Result
	err    error
}

func (s *stubProcessor) Process(ctx context.Context, event any) (Result, error) {
	s.called = true
	s.event = event
	return s.result, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newWebhookRequest(t *testing.T, eventType string, body []byte, secret string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", eventType)
	req.Header.Set("X-GitHub-Delivery", "delivery-123")
	req.Header.Set("X-Hub-Signature-256", sign(secret, body))
	return req
}

func TestRouter_DispatchesVerifiedEvents(t *testing.T) {
	proc := &stubProcessor{result: Result{"status": "processed"}}
	router := NewRouter(testSecret, proc, testLogger())

	body := []byte(`{"action": "opened", "issue": {"id": 777, "number": 42}, "repository": {"id": 12345}}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newWebhookRequest(t, "issues", body, testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, proc.called)

	event, ok := proc.event.(*github.IssuesEvent)
	require.True(t, ok, "expected a parsed *github.IssuesEvent, got %T", proc.event)
	assert.Equal(t, "opened", event.GetAction())
	assert.Equal(t, 42, event.GetIssue().GetNumber())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, "issues", resp["event"])
}

func TestRouter_RejectsTamperedPayload(t *testing.T) {
	proc := &stubProcessor{}
	router := NewRouter(testSecret, proc, testLogger())

	body := []byte(`{"action": "opened"}`)
	req := newWebhookRequest(t, "issues", body, testSecret)
	// Flip the body after signing.
	tampered := []byte(`{"action": "deleted"}`)
	req.Body = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(tampered)).Body
	req.ContentLength = int64(len(tampered))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, proc.called, "a request with a bad signature must never reach the processor")
}

func TestRouter_RejectsWrongSecret(t *testing.T) {
	proc := &stubProcessor{}
	router := NewRouter(testSecret, proc, testLogger())

	body := []byte(`{"action": "opened"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newWebhookRequest(t, "issues", body, "some other secret"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, proc.called)
}

func TestRouter_RejectsMissingSignature(t *testing.T) {
	proc := &stubProcessor{}
	router := NewRouter(testSecret, proc, testLogger())

	body := []byte(`{"action": "opened"}`)
	req := newWebhookRequest(t, "issues", body, testSecret)
	req.Header.Del("X-Hub-Signature-256")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, proc.called)
}

func TestRouter_IgnoresUnknownEventTypes(t *testing.T) {
	proc := &stubProcessor{}
	router := NewRouter(testSecret, proc, testLogger())

	body := []byte(`{"action": "completed"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newWebhookRequest(t, "workflow_run", body, testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, proc.called, "unknown event types are acknowledged, not dispatched")

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ignored", resp["status"])
	assert.Equal(t, "workflow_run", resp["event"])
}

func TestRouter_RejectsMalformedPayload(t *testing.T) {
	proc := &stubProcessor{}
	router := NewRouter(testSecret, proc, testLogger())

	body := []byte(`{not json`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newWebhookRequest(t, "issues", body, testSecret))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, proc.called)
}

func TestRouter_ReportsProcessorFailure(t *testing.T) {
	proc := &stubProcessor{err: assert.AnError}
	router := NewRouter(testSecret, proc, testLogger())

	body := []byte(`{"action": "opened", "issue": {"number": 1}}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newWebhookRequest(t, "issues", body, testSecret))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, proc.called)
}
