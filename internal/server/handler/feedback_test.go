package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/graphwarden/internal/config"
	"github.com/sevigo/graphwarden/internal/core"
	"github.com/sevigo/graphwarden/internal/feedback"
)

// fakeSignalStore is a hand-written double for feedback.SignalStore,
// mirroring the interface-fake convention used in internal/feedback's own
// tests.
type fakeSignalStore struct {
	signals []core.FeedbackSignal
	err     error
}

func (f *fakeSignalStore) UpsertFeedbackSignal(_ context.Context, signal core.FeedbackSignal) error {
	if f.err != nil {
		return f.err
	}
	f.signals = append(f.signals, signal)
	return nil
}

func newTestHandler(store *fakeSignalStore) (*FeedbackHandler, *feedback.Signer) {
	signer := feedback.New(config.FeedbackConfig{BaseURL: "https://example.com/feedback", Secret: "s3cr3t"})
	rec := feedback.NewRecorder(signer, store, slog.Default())
	return NewFeedbackHandler(rec, slog.Default()), signer
}

func doFeedbackRequest(h *FeedbackHandler, url string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	h.Handle(w, req)
	return w
}

func TestFeedbackHandler_ValidTokenRecordsSignal(t *testing.T) {
	store := &fakeSignalStore{}
	h, signer := newTestHandler(store)

	link, err := signer.SignedLink("comment-1", core.FeedbackAccepted)
	require.NoError(t, err)

	w := doFeedbackRequest(h, link)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, store.signals, 1)
	assert.Equal(t, "comment-1", store.signals[0].CommentID)
	assert.Equal(t, core.FeedbackAccepted, store.signals[0].Signal)
}

func TestFeedbackHandler_TamperedTokenRejected(t *testing.T) {
	store := &fakeSignalStore{}
	h, signer := newTestHandler(store)

	link, err := signer.SignedLink("comment-1", core.FeedbackAccepted)
	require.NoError(t, err)
	tampered := link[:len(link)-1] + "0"

	w := doFeedbackRequest(h, tampered)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, store.signals)
}

func TestFeedbackHandler_MissingParamsRejected(t *testing.T) {
	store := &fakeSignalStore{}
	h, _ := newTestHandler(store)

	w := doFeedbackRequest(h, "https://example.com/feedback?id=comment-1&signal=accepted")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.signals)
}

func TestFeedbackHandler_InvalidSignalRejected(t *testing.T) {
	store := &fakeSignalStore{}
	h, signer := newTestHandler(store)
	_ = signer

	w := doFeedbackRequest(h, "https://example.com/feedback?id=comment-1&signal=maybe&token=deadbeef")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedbackHandler_StorageErrorSurfacesAs500(t *testing.T) {
	store := &fakeSignalStore{err: assert.AnError}
	h, signer := newTestHandler(store)

	link, err := signer.SignedLink("comment-1", core.FeedbackRejected)
	require.NoError(t, err)

	w := doFeedbackRequest(h, link)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	body, _ := io.ReadAll(w.Result().Body)
	assert.NotEmpty(t, body)
}
