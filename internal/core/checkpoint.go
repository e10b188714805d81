package core

import "time"

// CheckpointSentinel prefixes every checkpoint host comment so it can be
// recognised and round-tripped without colliding with ordinary comments.
const CheckpointSentinel = "AGNUSAI_CHECKPOINT"

// Checkpoint records the last commit reviewed for a pull request. It is
// persisted as a sentinel-wrapped JSON blob inside a host PR comment
// (internal/review builds and parses the wrapper).
type Checkpoint struct {
	SHA           string    `json:"sha"`
	Timestamp     time.Time `json:"timestamp"`
	FilesReviewed []string  `json:"filesReviewed"`
	CommentCount  int       `json:"commentCount"`
	Verdict       Verdict   `json:"verdict"`
}

// FeedbackSignalKind is a developer's reaction to a posted review comment.
type FeedbackSignalKind string

const (
	FeedbackAccepted FeedbackSignalKind = "accepted"
	FeedbackRejected FeedbackSignalKind = "rejected"
)

// FeedbackSignal records a 👍/👎 click against a previously posted comment.
// Signals are never deleted; the most recent one wins on conflict.
type FeedbackSignal struct {
	CommentID string              `json:"commentId"`
	Signal    FeedbackSignalKind  `json:"signal"`
	CreatedAt time.Time           `json:"createdAt"`
}
