// Package review implements the review orchestrator: prompt assembly,
// response parsing, the precision filter and path validation/dedup that
// turn an LLM's raw text into a set of comments safe to post.
package review

import (
	"bufio"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/sevigo/graphwarden/internal/core"
)

var (
	reFileMarker  = regexp.MustCompile(`^\[File:\s*(.+?),\s*Line:\s*(\d+)\]\s*$`)
	reConfidence  = regexp.MustCompile(`\[Confidence:\s*([01](?:\.\d+)?)\]`)
	reVerdictLine = regexp.MustCompile(`(?i)^VERDICT:\s*(approve|request_changes|comment)\s*$`)
	reSummaryLine = regexp.MustCompile(`(?i)^SUMMARY:\s*(.*)$`)
)

const summaryFallbackLen = 500

// ParseResponse parses a raw LLM response into a ReviewResult following the
// block grammar the prompt requires of the model:
//
//	SUMMARY: <text>
//	[File: <path>, Line: <N>]
//	<body including [Confidence: X.X]>
//	…
//	VERDICT: approve | request_changes | comment
//
// Parsing never fails: malformed input degrades to a best-effort result
// with warnings logged, matching the teacher's markdown parser's tolerance
// for a model that doesn't follow instructions exactly.
func ParseResponse(logger *slog.Logger, raw string) core.ReviewResult {
	if logger == nil {
		logger = slog.Default()
	}

	result := core.ReviewResult{Verdict: core.VerdictComment}

	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		haveSummary  bool
		summary      strings.Builder
		inSummary    bool
		current      *core.ReviewComment
		body         strings.Builder
		sawVerdict   bool
		sawAnyMarker bool
	)

	flushCurrent := func() {
		if current == nil {
			return
		}
		b := strings.TrimSpace(body.String())
		if b == "" {
			current = nil
			body.Reset()
			return
		}
		if m := reConfidence.FindStringSubmatch(b); m != nil {
			if f, err := strconv.ParseFloat(m[1], 64); err == nil {
				if f < 0 {
					f = 0
				}
				if f > 1 {
					f = 1
				}
				current.Confidence = &f
			}
			b = strings.TrimSpace(reConfidence.ReplaceAllString(b, ""))
		}
		current.Severity = severityFromBody(b)
		current.Body = b
		result.Comments = append(result.Comments, *current)
		current = nil
		body.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()

		if m := reFileMarker.FindStringSubmatch(line); m != nil {
			flushCurrent()
			inSummary = false
			n, err := strconv.Atoi(m[2])
			if err != nil || n < 1 {
				logger.Warn("review parser: discarding comment with invalid line number", "raw", m[2])
				current = nil
				continue
			}
			sawAnyMarker = true
			current = &core.ReviewComment{Path: strings.TrimSpace(m[1]), Line: n}
			continue
		}

		if m := reVerdictLine.FindStringSubmatch(line); m != nil {
			flushCurrent()
			inSummary = false
			sawVerdict = true
			result.Verdict = core.Verdict(strings.ToLower(m[1]))
			continue
		}

		if m := reSummaryLine.FindStringSubmatch(line); m != nil && !haveSummary {
			flushCurrent()
			haveSummary = true
			inSummary = true
			summary.WriteString(m[1])
			continue
		}

		switch {
		case current != nil:
			body.WriteString(line)
			body.WriteString("\n")
		case inSummary:
			summary.WriteString("\n")
			summary.WriteString(line)
		}
	}
	flushCurrent()

	result.Summary = strings.TrimSpace(summary.String())
	if !haveSummary {
		trimmed := strings.TrimSpace(raw)
		if len(trimmed) > summaryFallbackLen {
			trimmed = trimmed[:summaryFallbackLen]
		}
		result.Summary = trimmed
		logger.Warn("review parser: no SUMMARY: marker found, falling back to response prefix")
	}

	if !sawVerdict {
		logger.Warn("review parser: no VERDICT: marker found, defaulting to comment")
	}
	if !sawAnyMarker && looksTruncated(raw) {
		logger.Warn("review parser: no comment markers found and response appears truncated")
	}

	return result
}

// severityFromBody derives a severity from keyword presence in the comment
// body, per the required scale: "Critical" outranks "Major", everything
// else is informational.
func severityFromBody(body string) core.Severity {
	switch {
	case strings.Contains(body, "Critical"):
		return core.SeverityError
	case strings.Contains(body, "Major"):
		return core.SeverityWarning
	default:
		return core.SeverityInfo
	}
}

// looksTruncated is a cheap heuristic: a response that doesn't end with
// sentence-ending punctuation or a closing fence is likely cut off mid-token.
func looksTruncated(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	last := trimmed[len(trimmed)-1]
	switch last {
	case '.', '!', '?', '`', ')', ']':
		return false
	default:
		return true
	}
}
