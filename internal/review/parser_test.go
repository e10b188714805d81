package review

import (
	"testing"

	"github.com/sevigo/graphwarden/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse_StandardReview(t *testing.T) {
	raw := `SUMMARY: Looks mostly fine, one nil-check concern.
[File: internal/foo/bar.go, Line: 42]
Possible nil dereference here if cfg is nil. [Confidence: 0.92]
[File: internal/foo/baz.go, Line: 7]
Minor: consider renaming this variable. [Confidence: 0.80]
VERDICT: request_changes
`
	result := ParseResponse(nil, raw)

	assert.Equal(t, "Looks mostly fine, one nil-check concern.", result.Summary)
	assert.Equal(t, core.VerdictRequestChanges, result.Verdict)
	require.Len(t, result.Comments, 2)

	assert.Equal(t, "internal/foo/bar.go", result.Comments[0].Path)
	assert.Equal(t, 42, result.Comments[0].Line)
	require.NotNil(t, result.Comments[0].Confidence)
	assert.InDelta(t, 0.92, *result.Comments[0].Confidence, 0.0001)
	assert.NotContains(t, result.Comments[0].Body, "Confidence")
}

func TestParseResponse_PrecisionFilterSeedScenario(t *testing.T) {
	// Three bracketed comments at 0.92, 0.60, 0.80; default threshold 0.7;
	// exactly two survive with the [Confidence: …] suffix stripped.
	raw := `SUMMARY: three findings
[File: a.go, Line: 1]
First finding. [Confidence: 0.92]
[File: b.go, Line: 2]
Second finding, low confidence. [Confidence: 0.60]
[File: c.go, Line: 3]
Third finding. [Confidence: 0.80]
VERDICT: comment
`
	result := ParseResponse(nil, raw)
	require.Len(t, result.Comments, 3)

	filtered := ApplyPrecisionFilter(nil, result.Comments, DefaultPrecisionThreshold)
	require.Len(t, filtered, 2)
	assert.Equal(t, "a.go", filtered[0].Path)
	assert.Equal(t, "c.go", filtered[1].Path)
	for _, c := range filtered {
		assert.NotContains(t, c.Body, "Confidence")
	}
}

func TestParseResponse_MissingVerdictDefaultsToComment(t *testing.T) {
	raw := `SUMMARY: no verdict given
[File: a.go, Line: 1]
Some comment body.
`
	result := ParseResponse(nil, raw)
	assert.Equal(t, core.VerdictComment, result.Verdict)
	require.Len(t, result.Comments, 1)
}

func TestParseResponse_InvalidLineNumberDiscarded(t *testing.T) {
	raw := `SUMMARY: bad line
[File: a.go, Line: 0]
Should be dropped.
[File: b.go, Line: 5]
Should be kept.
VERDICT: comment
`
	result := ParseResponse(nil, raw)
	require.Len(t, result.Comments, 1)
	assert.Equal(t, "b.go", result.Comments[0].Path)
}

func TestParseResponse_EmptyBodyBlockSkipped(t *testing.T) {
	raw := `SUMMARY: ok
[File: a.go, Line: 1]
[File: b.go, Line: 2]
Non-empty.
VERDICT: approve
`
	result := ParseResponse(nil, raw)
	require.Len(t, result.Comments, 1)
	assert.Equal(t, "b.go", result.Comments[0].Path)
}

func TestParseResponse_NoSummaryFallsBackToPrefix(t *testing.T) {
	raw := "no summary marker at all, just prose that runs on.\nVERDICT: approve\n"
	result := ParseResponse(nil, raw)
	assert.NotEmpty(t, result.Summary)
	assert.Equal(t, core.VerdictApprove, result.Verdict)
}

func TestParseResponse_SeverityFromKeywords(t *testing.T) {
	raw := `SUMMARY: s
[File: a.go, Line: 1]
Critical: this will panic in production.
[File: b.go, Line: 2]
Major: this leaks a goroutine.
[File: c.go, Line: 3]
Just a style nit.
VERDICT: comment
`
	result := ParseResponse(nil, raw)
	require.Len(t, result.Comments, 3)
	assert.Equal(t, core.SeverityError, result.Comments[0].Severity)
	assert.Equal(t, core.SeverityWarning, result.Comments[1].Severity)
	assert.Equal(t, core.SeverityInfo, result.Comments[2].Severity)
}

func TestValidateAndDedup_DropsHallucinatedPath(t *testing.T) {
	diff := DiffFileSet{
		Paths: map[string]string{"a.go": "a.go"},
		AddedLines: map[string]map[int]struct{}{
			"a.go": {10: {}},
		},
	}
	comments := []core.ReviewComment{
		{Path: "a.go", Line: 10, Body: "fine"},
		{Path: "does/not/exist.go", Line: 1, Body: "hallucinated"},
	}
	out := ValidateAndDedup(nil, comments, diff, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "a.go", out[0].Path)
}

func TestValidateAndDedup_DropsNonAddedLine(t *testing.T) {
	diff := DiffFileSet{
		Paths:      map[string]string{"a.go": "a.go"},
		AddedLines: map[string]map[int]struct{}{"a.go": {10: {}}},
	}
	comments := []core.ReviewComment{
		{Path: "a.go", Line: 11, Body: "not an added line"},
	}
	out := ValidateAndDedup(nil, comments, diff, nil)
	assert.Empty(t, out)
}

func TestValidateAndDedup_SkipsExistingRegardlessOfDismissal(t *testing.T) {
	diff := DiffFileSet{
		Paths:      map[string]string{"a.go": "a.go"},
		AddedLines: map[string]map[int]struct{}{"a.go": {10: {}}},
	}
	body := "same body"
	id := DedupID("a.go", 10, body)

	comments := []core.ReviewComment{{Path: "a.go", Line: 10, Body: body}}

	out := ValidateAndDedup(nil, comments, diff, []ExistingComment{{DedupID: id, Dismissed: false}})
	assert.Empty(t, out, "a non-dismissed existing counterpart should suppress re-posting")

	out = ValidateAndDedup(nil, comments, diff, []ExistingComment{{DedupID: id, Dismissed: true}})
	assert.Empty(t, out, "a dismissed existing counterpart must stay suppressed, not be re-posted")
}

func TestValidateAndDedup_DropsWithinResponseDuplicate(t *testing.T) {
	diff := DiffFileSet{
		Paths:      map[string]string{"a.go": "a.go"},
		AddedLines: map[string]map[int]struct{}{"a.go": {10: {}}},
	}
	comments := []core.ReviewComment{
		{Path: "a.go", Line: 10, Body: "first"},
		{Path: "a.go", Line: 10, Body: "second, same location"},
	}
	out := ValidateAndDedup(nil, comments, diff, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "first", out[0].Body)
}
