package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevigo/graphwarden/internal/core"
)

// SignalStore is the narrow persistence contract the recorder needs;
// internal/storage implements it alongside the rest of the Store interface.
type SignalStore interface {
	UpsertFeedbackSignal(ctx context.Context, signal core.FeedbackSignal) error
}

// Recorder verifies an incoming feedback click and persists the resulting
// signal. Verification failures are refused outright; a bad actor guessing
// tokens never gets a signal recorded.
type Recorder struct {
	signer *Signer
	store  SignalStore
	logger *slog.Logger
}

func NewRecorder(signer *Signer, store SignalStore, logger *slog.Logger) *Recorder {
	return &Recorder{signer: signer, store: store, logger: logger}
}

// Record verifies (commentID, signal, token) and, on success, upserts the
// signal — the most recent click for a comment always wins over any prior
// one, per the feedback signal's own invariant.
func (r *Recorder) Record(ctx context.Context, commentID string, signal core.FeedbackSignalKind, token string) error {
	if err := r.signer.Verify(commentID, signal, token); err != nil {
		r.logger.Warn("rejected feedback token", "commentId", commentID, "signal", signal)
		return err
	}

	if err := r.store.UpsertFeedbackSignal(ctx, core.FeedbackSignal{
		CommentID: commentID,
		Signal:    signal,
		CreatedAt: time.Now(),
	}); err != nil {
		return fmt.Errorf("feedback: record: %w", err)
	}
	return nil
}
