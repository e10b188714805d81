package review

import (
	"testing"
	"time"

	"github.com/sevigo/graphwarden/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRoundTrip(t *testing.T) {
	cp := core.Checkpoint{
		SHA:           "abc123",
		Timestamp:     time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC),
		FilesReviewed: []string{"a.go", "b.go"},
		CommentCount:  2,
		Verdict:       core.VerdictComment,
	}

	body, err := RenderCheckpoint(cp, "Reviewed through commit `abc123` — 2 comment(s).")
	require.NoError(t, err)
	assert.True(t, IsCheckpointComment(body))

	got, err := ParseCheckpointComment(body)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, cp.SHA, got.SHA)
	assert.Equal(t, cp.FilesReviewed, got.FilesReviewed)
	assert.Equal(t, cp.CommentCount, got.CommentCount)
	assert.Equal(t, cp.Verdict, got.Verdict)
	assert.True(t, cp.Timestamp.Equal(got.Timestamp))
}

func TestParseCheckpointComment_NoMarkerReturnsNil(t *testing.T) {
	cp, err := ParseCheckpointComment("just a regular review comment, nothing special")
	require.NoError(t, err)
	assert.Nil(t, cp)
	assert.False(t, IsCheckpointComment("just a regular review comment, nothing special"))
}

func TestParseCheckpointComment_CorruptedJSONFallsBack(t *testing.T) {
	cp := core.Checkpoint{SHA: "deadbeef", Timestamp: time.Now()}
	body, err := RenderCheckpoint(cp, "summary")
	require.NoError(t, err)

	// Corrupt one character inside the JSON payload to simulate a mangled
	// comment; the caller is expected to treat this as malformed-checkpoint
	// (spec §7) and fall back to a full review.
	corrupted := body[:len(checkpointPrefix)+5] + "X" + body[len(checkpointPrefix)+6:]

	assert.True(t, IsCheckpointComment(corrupted))
	_, err = ParseCheckpointComment(corrupted)
	assert.Error(t, err)
}

func TestParseCheckpointComment_MissingClosingDelimiter(t *testing.T) {
	body := checkpointPrefix + `{"sha":"abc"}`
	_, err := ParseCheckpointComment(body)
	assert.Error(t, err)
}
