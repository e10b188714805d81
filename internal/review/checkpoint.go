package review

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sevigo/graphwarden/internal/core"
)

// checkpointPrefix is the exact sentinel wrapper a checkpoint comment's
// first line carries, so it can be found among a PR's other comments and
// never confused for an ordinary one.
const checkpointPrefix = "<!-- " + core.CheckpointSentinel + ": "
const checkpointSuffix = " -->"

// RenderCheckpoint builds the host comment body for a checkpoint: a single
// sentinel-wrapped JSON line followed by a human-readable summary, per
// spec §6.5. The JSON always comes first so ParseCheckpointComment can find
// it without scanning the whole body.
func RenderCheckpoint(cp core.Checkpoint, humanSummary string) (string, error) {
	encoded, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("review: encode checkpoint: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(checkpointPrefix)
	sb.Write(encoded)
	sb.WriteString(checkpointSuffix)
	sb.WriteString("\n")
	sb.WriteString(humanSummary)
	return sb.String(), nil
}

// ParseCheckpointComment finds the sentinel-wrapped JSON in body and decodes
// it. It returns (nil, nil) when body carries no checkpoint marker at all —
// that's an ordinary comment, not an error. A marker that is present but
// carries malformed JSON is the caller's signal to log a warning and fall
// back to a full review rather than silently proceeding as if no checkpoint
// existed.
func ParseCheckpointComment(body string) (*core.Checkpoint, error) {
	start := strings.Index(body, checkpointPrefix)
	if start == -1 {
		return nil, nil
	}
	rest := body[start+len(checkpointPrefix):]
	end := strings.Index(rest, checkpointSuffix)
	if end == -1 {
		return nil, fmt.Errorf("review: checkpoint marker missing closing %q", checkpointSuffix)
	}
	raw := rest[:end]

	var cp core.Checkpoint
	if err := json.Unmarshal([]byte(raw), &cp); err != nil {
		return nil, fmt.Errorf("review: decode checkpoint json: %w", err)
	}
	return &cp, nil
}

// IsCheckpointComment reports whether body carries the checkpoint sentinel,
// used to skip checkpoint comments when scanning for dismissal replies.
func IsCheckpointComment(body string) bool {
	return strings.Contains(body, checkpointPrefix)
}
