package parser

import (
	"regexp"
	"strings"

	"github.com/sevigo/graphwarden/internal/core"
)

var (
	reGoFunc  = regexp.MustCompile(`(?m)^func\s+(?:\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	reGoType  = regexp.MustCompile(`(?m)^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+(struct|interface)\b`)
	reGoConst = regexp.MustCompile(`(?m)^const\s+([A-Za-z_][A-Za-z0-9_]*)\s*=`)
)

var goKeywords = map[string]bool{
	"if": true, "for": true, "switch": true, "select": true, "range": true,
	"func": true, "return": true, "defer": true, "go": true,
}

type goParser struct{}

func (goParser) Language() string { return "go" }

func (goParser) Parse(path string, content []byte) ([]core.Symbol, []core.Edge) {
	src := string(content)
	var symbols []core.Symbol
	var edges []core.Edge

	for _, m := range reGoFunc.FindAllStringSubmatchIndex(src, -1) {
		name := src[m[2]:m[3]]
		sigEnd := firstIndex(src, m[1], ')')
		if sigEnd < 0 {
			sigEnd = m[1]
		}
		signature := strings.TrimSpace(src[m[0] : sigEnd+1])
		braceIdx := firstIndex(src, m[1], '{')

		id := core.MakeSymbolID(path, name)
		symbols = append(symbols, core.Symbol{
			ID: id, FilePath: path, Name: name, QualifiedName: name,
			Kind: core.SymbolFunction, Signature: signature,
			BodyRange: lineRange(src, m[0], braceIdx),
		})

		if braceIdx >= 0 {
			body := braceBody(src, braceIdx)
			edges = append(edges, extractCallEdges(id, body, goKeywords)...)
		}
	}

	for _, m := range reGoType.FindAllStringSubmatch(src, -1) {
		name := m[1]
		kind := core.SymbolType
		if m[2] == "interface" {
			kind = core.SymbolInterface
		}
		symbols = append(symbols, core.Symbol{
			ID: core.MakeSymbolID(path, name), FilePath: path, Name: name,
			QualifiedName: name, Kind: kind, Signature: "type " + name + " " + m[2],
		})
	}

	for _, m := range reGoConst.FindAllStringSubmatch(src, -1) {
		name := m[1]
		symbols = append(symbols, core.Symbol{
			ID: core.MakeSymbolID(path, name), FilePath: path, Name: name,
			QualifiedName: name, Kind: core.SymbolConst, Signature: "const " + name,
		})
	}

	return symbols, edges
}

// lineRange converts byte offsets [start, end) into 1-based line numbers by
// counting newlines; a negative end falls back to start's line.
func lineRange(src string, start, end int) core.BodyRange {
	if end < 0 {
		end = start
	}
	startLine := 1 + strings.Count(src[:start], "\n")
	endLine := 1 + strings.Count(src[:end], "\n")
	return core.BodyRange{StartLine: startLine, EndLine: endLine}
}
