package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_SingleHunkExample(t *testing.T) {
	old := "a\nb\nc\nd\ne\n"
	new := "a\nb\nX\nd\ne\n"

	ops := Compute(old, new, 8000)
	hunks := GroupHunks(ops)
	require.Len(t, hunks, 1)

	h := hunks[0]
	// The hunk opens with the two leading context lines "a" and "b", so both
	// sides start at line 1; the changed line itself is line 3.
	assert.Equal(t, 1, h.OldStart)
	assert.Equal(t, 1, h.NewStart)

	var adds, removes int
	for _, op := range h.Ops {
		switch op.Kind {
		case OpAdd:
			adds++
		case OpRemove:
			removes++
		}
	}
	assert.Equal(t, 1, adds)
	assert.Equal(t, 1, removes)
}

func TestCompute_NoChangesYieldsNoHunks(t *testing.T) {
	text := "a\nb\nc\n"
	ops := Compute(text, text, 8000)
	assert.Empty(t, GroupHunks(ops))
}

func TestCompute_EditDistanceFallback(t *testing.T) {
	old := strings.Repeat("old line\n", 200)
	new := strings.Repeat("new line\n", 200)

	ops := Compute(old, new, 10)
	for _, op := range ops {
		assert.NotEqual(t, OpEqual, op.Kind, "full-replacement fallback must contain no equal lines")
	}
}

func TestAnnotateForLLM_MarksAddedLines(t *testing.T) {
	old := "a\nb\nc\n"
	new := "a\nX\nc\n"
	ops := Compute(old, new, 8000)
	hunks := GroupHunks(ops)
	annotated := AnnotateForLLM(hunks)

	assert.Contains(t, annotated, "[Line 2]")
	assert.Contains(t, annotated, "@@ -")
}

func TestGroupHunks_MergesCloseChanges(t *testing.T) {
	old := "1\n2\n3\n4\n5\n6\n7\n8\n9\n"
	new := "1\nX\n3\n4\n5\nY\n7\n8\n9\n"
	ops := Compute(old, new, 8000)
	hunks := GroupHunks(ops)
	assert.Len(t, hunks, 1, "changes close enough that context windows overlap should merge into one hunk")
}
