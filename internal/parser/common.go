package parser

import (
	"regexp"
	"strings"

	"github.com/sevigo/graphwarden/internal/core"
)

// reCall matches a bare identifier immediately followed by '(' -- a call
// site in any C-family or Python-family syntax. It deliberately over-
// matches (keywords, type conversions); the graph's ResolveNames step
// silently drops edges whose target name resolves to nothing, so a few
// spurious bare-name edges cost nothing but a wasted map lookup.
var reCall = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// extractCallEdges scans body for call sites and emits one Edge per unique
// callee name, skipping the set of keywords the caller passes (language
// control-flow keywords that syntactically look like calls: if(, for(, …).
func extractCallEdges(fromID, body string, keywords map[string]bool) []core.Edge {
	seen := make(map[string]bool)
	var edges []core.Edge
	for _, m := range reCall.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if keywords[name] || seen[name] {
			continue
		}
		seen[name] = true
		edges = append(edges, core.Edge{From: fromID, To: name, Kind: core.EdgeCalls})
	}
	return edges
}

// braceBody returns the substring from openIdx (the index of the opening
// '{' in src) through its matching closing brace, inclusive. If the braces
// are unbalanced it returns the remainder of src -- a total fallback, never
// an error, consistent with the rest of this package.
func braceBody(src string, openIdx int) string {
	depth := 0
	for i := openIdx; i < len(src); i++ {
		switch src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return src[openIdx : i+1]
			}
		}
	}
	return src[openIdx:]
}

func firstIndex(src string, from int, ch byte) int {
	idx := strings.IndexByte(src[from:], ch)
	if idx < 0 {
		return -1
	}
	return from + idx
}
