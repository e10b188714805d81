package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sevigo/graphwarden/internal/config"
	"github.com/sevigo/graphwarden/internal/core"
	"github.com/sevigo/graphwarden/internal/llm"
	"github.com/sevigo/graphwarden/internal/review"
)

// ReviewFile runs the same prompt/generate/parse/filter pipeline runReview
// uses for a pull request diff, but over a single file's full contents
// rather than a diff against a base branch. It backs the CLI's
// full-review command, which has no pull request to diff against.
func ReviewFile(ctx context.Context, backend llm.Backend, cfg config.ReviewConfig, logger *slog.Logger, path, content string) (core.ReviewResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	prompt, err := renderPrompt(promptData{
		Diff: syntheticFileDiff(path, content),
	})
	if err != nil {
		return core.ReviewResult{}, err
	}

	raw, err := backend.Generate(ctx, prompt)
	if err != nil {
		return core.ReviewResult{}, fmt.Errorf("llm generate: %w", err)
	}

	result := review.ParseResponse(logger, raw)

	threshold := cfg.PrecisionThreshold
	if threshold <= 0 {
		threshold = review.DefaultPrecisionThreshold
	}
	result.Comments = review.ApplyPrecisionFilter(logger, result.Comments, threshold)

	if len(result.Comments) == 0 && result.Summary == "" {
		result.Summary = "No significant issues found."
	}
	return result, nil
}

// syntheticFileDiff presents an entire file as an "all lines added" unified
// diff hunk, so the prompt template and the model's line-referencing
// output format work unchanged for a full-file review.
func syntheticFileDiff(path, content string) string {
	lines := strings.Split(content, "\n")
	var b strings.Builder
	fmt.Fprintf(&b, "--- /dev/null\n+++ b/%s\n@@ -0,0 +1,%d @@\n", path, len(lines))
	for _, l := range lines {
		b.WriteString("+")
		b.WriteString(l)
		b.WriteString("\n")
	}
	return b.String()
}
