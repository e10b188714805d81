package github

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sevigo/graphwarden/internal/core"
)

func TestFormatInlineComment(t *testing.T) {
	tests := []struct {
		name     string
		c        core.ReviewComment
		contains  []string
		excludes  []string
		wantEmpty bool
	}{
		{
			name: "code block stays outside alert",
			c: core.ReviewComment{
				Path:     "test.go",
				Line:     10,
				Severity: core.SeverityWarning,
				Body:     "Check this out:\n\n```go\nfunc hello() {\n    fmt.Println(\"hi\")\n}\n```",
			},
			contains: []string{
				"**🟡 WARNING**",
				"> [!WARNING]",
				"```go",
				"    fmt.Println",
			},
			excludes: []string{
				"> ```go",
				">     fmt.Println",
			},
		},
		{
			name: "error severity uses caution alert",
			c: core.ReviewComment{
				Path:     "test.go",
				Line:     10,
				Severity: core.SeverityError,
				Body:     "### Problem Title\n\nObservation:\nThis is bad.\n\n```go\n// code here\n```\n\n#### Recommendation\nFix it.",
			},
			contains: []string{
				"**🔴 ERROR**",
				"> [!CAUTION]",
				"> This is bad.",
			},
		},
		{
			name: "empty body returns empty string",
			c: core.ReviewComment{
				Path: "test.go", Line: 10, Severity: core.SeverityWarning, Body: "",
			},
			wantEmpty: true,
		},
		{
			name: "info severity uses note alert threshold (none rendered)",
			c: core.ReviewComment{
				Path: "test.go", Line: 5, Severity: core.SeverityInfo, Body: "Fix this",
			},
			contains: []string{"**🟢 INFO**"},
			excludes: []string{"> [!"},
		},
		{
			name: "invalid line number returns empty string",
			c: core.ReviewComment{
				Path: "test.go", Line: 0, Severity: core.SeverityWarning, Body: "Fix this",
			},
			wantEmpty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatInlineComment(tt.c)
			if tt.wantEmpty {
				assert.Empty(t, got)
			}
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			for _, e := range tt.excludes {
				assert.NotContains(t, got, e)
			}
		})
	}
}

func TestFormatReviewSummary_NoSignificantIssues(t *testing.T) {
	summary := formatReviewSummary(core.ReviewResult{Verdict: core.VerdictApprove})
	assert.Contains(t, summary, "No significant issues found.")
	assert.Contains(t, summary, VerdictIconApprove)
}

func TestFormatReviewSummary_StatsLine(t *testing.T) {
	review := core.ReviewResult{
		Verdict: core.VerdictRequestChanges,
		Summary: "found some issues",
		Comments: []core.ReviewComment{
			{Path: "a.go", Line: 1, Severity: core.SeverityError, Body: "x"},
			{Path: "b.go", Line: 2, Severity: core.SeverityWarning, Body: "y"},
		},
	}
	summary := formatReviewSummary(review)
	assert.Contains(t, summary, "1 Error")
	assert.Contains(t, summary, "1 Warning")
	assert.Contains(t, summary, VerdictIconRequestChanges)
}
