package orchestrator

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

// promptFS embeds the orchestrator's prompt templates, mirroring the
// teacher's PromptManager: prompt text lives in its own file, loaded once
// at package init rather than built up with string concatenation in code.
//
//go:embed prompts/*.prompt
var promptFS embed.FS

var reviewTemplate = template.Must(template.ParseFS(promptFS, "prompts/review.prompt"))

// promptData feeds the review.prompt template: the fixed output-format
// preamble lives in the template itself, these are the only parts that
// vary per review.
type promptData struct {
	Skills    []string
	Context   string
	Diff      string
	Truncated bool
}

// renderPrompt assembles the full LLM prompt per spec §4.6 step 4: system
// preamble with output-format and confidence instructions (fixed in the
// template), matched skill snippets, the serialized retriever context, and
// the (possibly truncated) diff.
func renderPrompt(data promptData) (string, error) {
	var buf bytes.Buffer
	if err := reviewTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("orchestrator: render prompt: %w", err)
	}
	return buf.String(), nil
}

// truncateDiff caps diff at maxSize characters, per spec's maxDiffSize
// (config.ReviewConfig.MaxDiffSize, default 50000). Truncation happens on a
// line boundary so a file's hunk header is never cut mid-line.
func truncateDiff(diff string, maxSize int) (truncated string, wasTruncated bool) {
	if maxSize <= 0 || len(diff) <= maxSize {
		return diff, false
	}
	cut := diff[:maxSize]
	if idx := lastNewline(cut); idx > 0 {
		cut = cut[:idx]
	}
	return cut, true
}

func lastNewline(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return i
		}
	}
	return -1
}
