package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sevigo/graphwarden/internal/core"
	"github.com/sevigo/graphwarden/internal/feedback"
)

// FeedbackHandler records the 👍/👎 signal a reviewer clicks on a posted
// comment's feedback link.
type FeedbackHandler struct {
	recorder *feedback.Recorder
	logger   *slog.Logger
}

// NewFeedbackHandler creates a new feedback handler backed by rec.
func NewFeedbackHandler(rec *feedback.Recorder, logger *slog.Logger) *FeedbackHandler {
	return &FeedbackHandler{recorder: rec, logger: logger}
}

// Handle processes GET /feedback?id=<commentId>&signal=<accepted|rejected>&token=<hex>.
func (h *FeedbackHandler) Handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	commentID := q.Get("id")
	signal := core.FeedbackSignalKind(q.Get("signal"))
	token := q.Get("token")

	if commentID == "" || token == "" || (signal != core.FeedbackAccepted && signal != core.FeedbackRejected) {
		http.Error(w, "missing or invalid query parameters", http.StatusBadRequest)
		return
	}

	err := h.recorder.Record(r.Context(), commentID, signal, token)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Thanks for the feedback."))
	case errors.Is(err, feedback.ErrInvalidToken), errors.Is(err, feedback.ErrSignerDisabled):
		h.logger.Warn("rejected feedback submission", "comment_id", commentID, "error", err)
		http.Error(w, "invalid or expired feedback link", http.StatusForbidden)
	default:
		h.logger.Error("failed to record feedback signal", "comment_id", commentID, "error", err)
		http.Error(w, "failed to record feedback", http.StatusInternalServerError)
	}
}
