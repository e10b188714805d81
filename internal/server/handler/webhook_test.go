package handler

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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/graphwarden/internal/config"
	"github.com/sevigo/graphwarden/internal/core"
)

type fakeDispatcher struct {
	dispatched []*core.GitHubEvent
	err        error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, event *core.GitHubEvent) error {
	if f.err != nil {
		return f.err
	}
	f.dispatched = append(f.dispatched, event)
	return nil
}

func signedWebhookRequest(t *testing.T, secret string, eventType string, payload []byte) *http.Request {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	req.Header.Set("X-Hub-Signature-256", sig)
	req.Header.Set("X-GitHub-Event", eventType)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func reviewCommentPayload(body string) []byte {
	payload := map[string]any{
		"action": "created",
		"issue": map[string]any{
			"number":       7,
			"title":        "Add feature",
			"body":         "",
			"pull_request": map[string]any{"url": "https://api.github.com/repos/acme/widget/pulls/7"},
		},
		"comment": map[string]any{
			"body": body,
			"user": map[string]any{"login": "reviewer1"},
		},
		"repository": map[string]any{
			"name":      "widget",
			"full_name": "acme/widget",
			"owner":     map[string]any{"login": "acme"},
		},
		"installation": map[string]any{"id": 12345},
	}
	data, _ := json.Marshal(payload)
	return data
}

func TestWebhookHandler_InvalidSignatureRejected(t *testing.T) {
	cfg := &config.Config{GitHub: config.GitHubConfig{WebhookSecret: "correct-secret"}}
	dispatcher := &fakeDispatcher{}
	h := NewWebhookHandler(cfg, dispatcher, slog.Default())

	req := signedWebhookRequest(t, "wrong-secret", "issue_comment", reviewCommentPayload("/review"))
	w := httptest.NewRecorder()
	h.Handle(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, dispatcher.dispatched)
}

func TestWebhookHandler_ValidReviewCommentDispatches(t *testing.T) {
	cfg := &config.Config{GitHub: config.GitHubConfig{WebhookSecret: "correct-secret"}}
	dispatcher := &fakeDispatcher{}
	h := NewWebhookHandler(cfg, dispatcher, slog.Default())

	req := signedWebhookRequest(t, "correct-secret", "issue_comment", reviewCommentPayload("/review"))
	w := httptest.NewRecorder()
	h.Handle(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, dispatcher.dispatched, 1)
	assert.Equal(t, "acme/widget", dispatcher.dispatched[0].RepoFullName)
	assert.Equal(t, core.FullReview, dispatcher.dispatched[0].Type)
}

func TestWebhookHandler_NonReviewCommentIgnored(t *testing.T) {
	cfg := &config.Config{GitHub: config.GitHubConfig{WebhookSecret: "correct-secret"}}
	dispatcher := &fakeDispatcher{}
	h := NewWebhookHandler(cfg, dispatcher, slog.Default())

	req := signedWebhookRequest(t, "correct-secret", "issue_comment", reviewCommentPayload("nice work!"))
	w := httptest.NewRecorder()
	h.Handle(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, dispatcher.dispatched)
}

func TestWebhookHandler_DispatchFailureSurfacesAs500(t *testing.T) {
	cfg := &config.Config{GitHub: config.GitHubConfig{WebhookSecret: "correct-secret"}}
	dispatcher := &fakeDispatcher{err: assert.AnError}
	h := NewWebhookHandler(cfg, dispatcher, slog.Default())

	req := signedWebhookRequest(t, "correct-secret", "issue_comment", reviewCommentPayload("/rereview"))
	w := httptest.NewRecorder()
	h.Handle(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookHandler_UnhandledEventTypePassesThrough(t *testing.T) {
	cfg := &config.Config{GitHub: config.GitHubConfig{WebhookSecret: "correct-secret"}}
	dispatcher := &fakeDispatcher{}
	h := NewWebhookHandler(cfg, dispatcher, slog.Default())

	payload := []byte(`{"zen":"Responsive is better than fast."}`)
	req := signedWebhookRequest(t, "correct-secret", "ping", payload)
	w := httptest.NewRecorder()
	h.Handle(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, dispatcher.dispatched)
}
