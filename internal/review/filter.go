package review

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sevigo/graphwarden/internal/core"
)

// DefaultPrecisionThreshold matches the spec's documented default; callers
// normally take this from config instead.
const DefaultPrecisionThreshold = 0.7

// ApplyPrecisionFilter drops comments whose confidence is below threshold.
// Comments without a confidence score pass through for backwards
// compatibility with models that don't emit the marker. Dropping every
// comment is not an error; callers fall back to a "no significant issues"
// summary.
func ApplyPrecisionFilter(logger *slog.Logger, comments []core.ReviewComment, threshold float64) []core.ReviewComment {
	if logger == nil {
		logger = slog.Default()
	}
	kept := make([]core.ReviewComment, 0, len(comments))
	for _, c := range comments {
		if c.HasConfidence() && *c.Confidence < threshold {
			logger.Debug("precision filter: dropping low-confidence comment",
				"path", c.Path, "line", c.Line, "confidence", *c.Confidence, "threshold", threshold)
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// DiffFileSet describes, for one PR diff, the set of touched files and the
// post-state line numbers each file actually added ('+' lines in a hunk).
// The orchestrator builds it from the PR's changed-file list and
// ValidateAndDedup consumes it.
type DiffFileSet struct {
	// Paths maps a normalised path (no leading '/') to the diff's original
	// path string, exactly as it appears in the PR's file list.
	Paths map[string]string
	// AddedLines maps a normalised path to the set of post-state line
	// numbers that are '+' lines in that file's hunks.
	AddedLines map[string]map[int]struct{}
}

// ExistingComment identifies a comment already posted on the PR, used to
// skip re-posting and to honor developer dismissals.
type ExistingComment struct {
	DedupID   string
	Dismissed bool
}

// ValidateAndDedup implements path validation and deduplication: hallucinated
// paths and line numbers are dropped, a content-addressed id is computed per
// comment, and within-response as well as cross-response duplicates are
// removed.
func ValidateAndDedup(logger *slog.Logger, comments []core.ReviewComment, diff DiffFileSet, existing []ExistingComment) []core.ReviewComment {
	if logger == nil {
		logger = slog.Default()
	}

	existingByID := make(map[string]ExistingComment, len(existing))
	for _, e := range existing {
		existingByID[e.DedupID] = e
	}

	seenInResponse := make(map[string]struct{})
	out := make([]core.ReviewComment, 0, len(comments))

	for _, c := range comments {
		normalized := strings.TrimPrefix(c.Path, "/")
		original, ok := diff.Paths[normalized]
		if !ok {
			logger.Warn("path validation: dropping comment on file not in diff", "path", c.Path)
			continue
		}

		if lines, ok := diff.AddedLines[normalized]; ok {
			if _, isAdded := lines[c.Line]; !isAdded {
				logger.Warn("path validation: dropping comment on non-added line", "path", original, "line", c.Line)
				continue
			}
		}

		c.Path = original

		key := normalized + ":" + strconv.Itoa(c.Line)
		if _, dup := seenInResponse[key]; dup {
			continue
		}
		seenInResponse[key] = struct{}{}

		id := DedupID(normalized, c.Line, c.Body)
		if _, ok := existingByID[id]; ok {
			continue
		}

		out = append(out, c)
	}

	return out
}

// DedupID computes the content-addressed dedup id described by the path
// validation rule: SHA256(path || line || body), truncated to 16 hex chars.
func DedupID(path string, line int, body string) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte(strconv.Itoa(line)))
	h.Write([]byte(body))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:16]
}
