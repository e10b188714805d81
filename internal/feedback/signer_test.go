package feedback

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/graphwarden/internal/config"
	"github.com/sevigo/graphwarden/internal/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestSignedLink_RoundTripsThroughVerify(t *testing.T) {
	s := New(config.FeedbackConfig{BaseURL: "https://review.example.com/feedback", Secret: "top-secret"})
	link, err := s.SignedLink("comment-123", core.FeedbackAccepted)
	require.NoError(t, err)
	assert.Contains(t, link, "id=comment-123")
	assert.Contains(t, link, "signal=accepted")

	token := extractQueryParam(t, link, "token")
	assert.NoError(t, s.Verify("comment-123", core.FeedbackAccepted, token))
}

func TestVerify_RejectsTamperedSignal(t *testing.T) {
	s := New(config.FeedbackConfig{BaseURL: "https://x", Secret: "top-secret"})
	link, err := s.SignedLink("comment-123", core.FeedbackAccepted)
	require.NoError(t, err)
	token := extractQueryParam(t, link, "token")

	err = s.Verify("comment-123", core.FeedbackRejected, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	minted := New(config.FeedbackConfig{BaseURL: "https://x", Secret: "secret-a"})
	link, err := minted.SignedLink("comment-123", core.FeedbackAccepted)
	require.NoError(t, err)
	token := extractQueryParam(t, link, "token")

	verifier := New(config.FeedbackConfig{BaseURL: "https://x", Secret: "secret-b"})
	assert.ErrorIs(t, verifier.Verify("comment-123", core.FeedbackAccepted, token), ErrInvalidToken)
}

func TestSignedLink_DisabledWhenSecretUnset(t *testing.T) {
	s := New(config.FeedbackConfig{BaseURL: "https://x", Secret: ""})
	assert.False(t, s.Enabled())
	_, err := s.SignedLink("comment-123", core.FeedbackAccepted)
	assert.ErrorIs(t, err, ErrSignerDisabled)
}

func TestSignedLink_DisabledWhenBaseURLUnset(t *testing.T) {
	s := New(config.FeedbackConfig{BaseURL: "", Secret: "secret"})
	assert.False(t, s.Enabled())
	_, err := s.SignedLink("comment-123", core.FeedbackAccepted)
	assert.ErrorIs(t, err, ErrSignerDisabled)
}

func TestVerify_RejectsMalformedToken(t *testing.T) {
	s := New(config.FeedbackConfig{BaseURL: "https://x", Secret: "secret"})
	err := s.Verify("comment-123", core.FeedbackAccepted, "not-hex-!!")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

type fakeSignalStore struct {
	signals []core.FeedbackSignal
}

func (f *fakeSignalStore) UpsertFeedbackSignal(ctx context.Context, signal core.FeedbackSignal) error {
	f.signals = append(f.signals, signal)
	return nil
}

func TestRecorder_RecordsOnValidToken(t *testing.T) {
	signer := New(config.FeedbackConfig{BaseURL: "https://x", Secret: "secret"})
	link, err := signer.SignedLink("comment-1", core.FeedbackAccepted)
	require.NoError(t, err)
	token := extractQueryParam(t, link, "token")

	store := &fakeSignalStore{}
	rec := NewRecorder(signer, store, testLogger())

	err = rec.Record(context.Background(), "comment-1", core.FeedbackAccepted, token)
	require.NoError(t, err)
	require.Len(t, store.signals, 1)
	assert.Equal(t, core.FeedbackAccepted, store.signals[0].Signal)
}

func TestRecorder_RefusesInvalidToken(t *testing.T) {
	signer := New(config.FeedbackConfig{BaseURL: "https://x", Secret: "secret"})
	store := &fakeSignalStore{}
	rec := NewRecorder(signer, store, testLogger())

	err := rec.Record(context.Background(), "comment-1", core.FeedbackAccepted, "00")
	assert.Error(t, err)
	assert.Empty(t, store.signals)
}

func extractQueryParam(t *testing.T, rawURL, key string) string {
	t.Helper()
	_, rawQuery, found := strings.Cut(rawURL, "?")
	require.True(t, found)
	values, err := url.ParseQuery(rawQuery)
	require.NoError(t, err)
	return values.Get(key)
}
