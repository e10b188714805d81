// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/go-github/v73/github"

	"github.com/sevigo/graphwarden/internal/core"
)

// Severity emojis
const (
	SeverityEmojiError   = "🔴"
	SeverityEmojiWarning = "🟡"
	SeverityEmojiInfo    = "🟢"
)

// Verdict icons
const (
	VerdictIconApprove        = "✅"
	VerdictIconRequestChanges = "🚫"
	VerdictIconComment        = "💬"
)

// StatusUpdater defines the contract for updating the status of a GitHub Check Run
// and posting comments on pull requests.
type StatusUpdater interface {
	InProgress(ctx context.Context, event *core.GitHubEvent, title, summary string) (int64, error)
	Completed(ctx context.Context, event *core.GitHubEvent, checkRunID int64, conclusion, title, summary string) error
	PostStructuredReview(ctx context.Context, event *core.GitHubEvent, review core.ReviewResult) error
	PostSimpleComment(ctx context.Context, event *core.GitHubEvent, body string) error
}

type statusUpdater struct {
	client Client
	logger *slog.Logger
}

// NewStatusUpdater creates and returns a new instance of a statusUpdater.
func NewStatusUpdater(client Client, logger *slog.Logger) StatusUpdater {
	return &statusUpdater{client: client, logger: logger}
}

// PostSimpleComment posts a single, general comment on the pull request.
func (s *statusUpdater) PostSimpleComment(ctx context.Context, event *core.GitHubEvent, body string) error {
	return s.client.CreateComment(ctx, event.RepoOwner, event.RepoName, event.PRNumber, body)
}

// InProgress creates a new GitHub Check Run with an "in_progress" status.
func (s *statusUpdater) InProgress(ctx context.Context, event *core.GitHubEvent, title, summary string) (int64, error) {
	opts := github.CreateCheckRunOptions{
		Name:    "GraphWarden Review",
		HeadSHA: event.HeadSHA,
		Status:  github.Ptr("in_progress"),
		Output: &github.CheckRunOutput{
			Title:   &title,
			Summary: &summary,
		},
	}
	checkRun, err := s.client.CreateCheckRun(ctx, event.RepoOwner, event.RepoName, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to create check run: %w", err)
	}
	return checkRun.GetID(), nil
}

// Completed updates an existing GitHub Check Run to a "completed" status.
func (s *statusUpdater) Completed(ctx context.Context, event *core.GitHubEvent, checkRunID int64, conclusion, title, summary string) error {
	now := time.Now()
	opts := github.UpdateCheckRunOptions{
		Status:      github.Ptr("completed"),
		Conclusion:  &conclusion,
		CompletedAt: &github.Timestamp{Time: now},
		Output: &github.CheckRunOutput{
			Title:   &title,
			Summary: &summary,
		},
	}
	_, err := s.client.UpdateCheckRun(ctx, event.RepoOwner, event.RepoName, checkRunID, opts)
	return err
}

// PostStructuredReview posts a new pull request review with line-specific comments.
// It adds severity badges to comments and includes a statistical summary.
func (s *statusUpdater) PostStructuredReview(ctx context.Context, event *core.GitHubEvent, review core.ReviewResult) error {
	var comments []DraftReviewComment
	for _, c := range review.Comments {
		if c.Path == "" || c.Line <= 0 || c.Body == "" {
			continue
		}
		formatted := formatInlineComment(c)
		if formatted == "" {
			continue
		}
		comments = append(comments, DraftReviewComment{
			Path:      c.Path,
			Line:      c.Line,
			StartLine: c.Line,
			Body:      formatted,
		})
	}

	formattedSummary := formatReviewSummary(review)
	return s.client.CreateReview(ctx, event.RepoOwner, event.RepoName, event.PRNumber, event.HeadSHA, formattedSummary, comments, reviewEventForVerdict(review.Verdict))
}

// reviewEventForVerdict maps the orchestrator's verdict to the GitHub
// review event that sets the corresponding host vote.
func reviewEventForVerdict(v core.Verdict) string {
	switch v {
	case core.VerdictApprove:
		return "APPROVE"
	case core.VerdictRequestChanges:
		return "REQUEST_CHANGES"
	default:
		return "COMMENT"
	}
}

// formatInlineComment generates a pull request comment with a clean, compact format.
func formatInlineComment(c core.ReviewComment) string {
	if c.Path == "" || c.Line <= 0 || strings.TrimSpace(c.Body) == "" {
		return ""
	}

	var sb strings.Builder
	lines := writeCommentHeader(&sb, c)

	prefix := ""
	if c.Severity == core.SeverityError || c.Severity == core.SeverityWarning {
		alert := SeverityAlert(c.Severity)
		fmt.Fprintf(&sb, "> [!%s]\n", alert)
		prefix = "> "
	}

	writeCommentBody(&sb, lines, prefix)

	if c.Suggestion != "" {
		sb.WriteString("\n```suggestion\n")
		code := strings.ReplaceAll(c.Suggestion, "```", "`"+""+"`"+""+"`")
		sb.WriteString(strings.TrimSpace(code))
		sb.WriteString("\n```\n")
	}

	if !strings.Contains(c.Body, "/rereview") {
		sb.WriteString("\n---\n")
		sb.WriteString("> 💡 Reply with `/rereview` to trigger a new review.")
	}

	return sb.String()
}

func writeCommentHeader(sb *strings.Builder, c core.ReviewComment) []string {
	emoji := SeverityEmoji(c.Severity)

	content := strings.TrimSpace(c.Body)
	content = strings.TrimPrefix(content, "> > ")
	content = strings.ReplaceAll(content, "\n> > ", "\n> ")
	content = strings.ReplaceAll(content, "\n> [!", "\n[! ")

	lines := strings.Split(content, "\n")

	startIdx := 0
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "###") {
		startIdx = 1
	}

	fmt.Fprintf(sb, "**%s %s**\n\n", emoji, strings.ToUpper(string(c.Severity)))

	return lines[startIdx:]
}

func writeCommentBody(sb *strings.Builder, lines []string, prefix string) {
	inCodeBlock := false

	for _, line := range lines {
		trimmedLine := strings.TrimSpace(line)

		if strings.HasPrefix(trimmedLine, "```") {
			inCodeBlock = !inCodeBlock
			sb.WriteString(line + "\n")
			continue
		}

		if inCodeBlock {
			sb.WriteString(line + "\n")
			continue
		}

		if strings.HasPrefix(trimmedLine, "####") {
			headerText := strings.TrimSpace(strings.TrimPrefix(trimmedLine, "####"))
			sb.WriteString(prefix + formatSubHeader(headerText))
			continue
		}

		if strings.HasPrefix(trimmedLine, "###") {
			continue
		}

		sb.WriteString(prefix + line + "\n")
	}
}

func formatSubHeader(headerText string) string {
	switch {
	case strings.Contains(headerText, "Suggested Fix"), strings.Contains(headerText, "Fix"):
		return "💡 **Fix:**\n"
	default:
		return "**" + headerText + "**\n"
	}
}

// formatReviewSummary generates the final review summary with a compact statistics line.
func formatReviewSummary(review core.ReviewResult) string {
	counts := map[core.Severity]int{
		core.SeverityError:   0,
		core.SeverityWarning: 0,
		core.SeverityInfo:    0,
	}
	total := 0
	for _, c := range review.Comments {
		counts[c.Severity]++
		total++
	}

	var sb strings.Builder
	sb.WriteString("## 🔍 Code Review Summary\n\n")

	if review.Verdict != "" {
		icon := verdictIcon(string(review.Verdict))
		sb.WriteString(fmt.Sprintf("### %s Verdict: %s\n\n", icon, review.Verdict))
	}

	if total == 0 {
		sb.WriteString("No significant issues found.\n\n")
	} else {
		sb.WriteString(review.Summary)
		sb.WriteString("\n\n")
	}

	if total > 0 {
		stats := buildStatsLine(counts)
		if len(stats) > 0 {
			sb.WriteString(fmt.Sprintf("*Found %d comment(s): %s*\n", total, strings.Join(stats, ", ")))
		}
	}

	return sb.String()
}

func buildStatsLine(counts map[core.Severity]int) []string {
	var stats []string
	if counts[core.SeverityError] > 0 {
		stats = append(stats, fmt.Sprintf("%s %d Error", SeverityEmojiError, counts[core.SeverityError]))
	}
	if counts[core.SeverityWarning] > 0 {
		stats = append(stats, fmt.Sprintf("%s %d Warning", SeverityEmojiWarning, counts[core.SeverityWarning]))
	}
	if counts[core.SeverityInfo] > 0 {
		stats = append(stats, fmt.Sprintf("%s %d Info", SeverityEmojiInfo, counts[core.SeverityInfo]))
	}
	return stats
}

// verdictIcon returns an icon for the given verdict using normalized exact matching.
func verdictIcon(verdict string) string {
	v := strings.ToUpper(strings.TrimSpace(verdict))
	switch v {
	case "APPROVE":
		return VerdictIconApprove
	case "REQUEST_CHANGES", "REQUEST CHANGES":
		return VerdictIconRequestChanges
	case "COMMENT":
		return VerdictIconComment
	default:
		return "📝"
	}
}

// SeverityEmoji returns an emoji for the given severity level.
func SeverityEmoji(severity core.Severity) string {
	switch severity {
	case core.SeverityError:
		return SeverityEmojiError
	case core.SeverityWarning:
		return SeverityEmojiWarning
	case core.SeverityInfo:
		return SeverityEmojiInfo
	default:
		return "⚪"
	}
}

// SeverityAlert returns the GitHub alert type for a severity level.
func SeverityAlert(severity core.Severity) string {
	switch severity {
	case core.SeverityError:
		return "CAUTION"
	case core.SeverityWarning:
		return "WARNING"
	default:
		return "NOTE"
	}
}
