package parser

import (
	"regexp"
	"strings"

	"github.com/sevigo/graphwarden/internal/core"
)

var (
	reDefTop    = regexp.MustCompile(`(?m)^def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	reDefMethod = regexp.MustCompile(`(?m)^\s+def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	rePyClass   = regexp.MustCompile(`(?m)^class\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

var pyKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "def": true, "class": true, "except": true, "print": true,
}

type pythonParser struct{}

func (pythonParser) Language() string { return "python" }

// Parse uses indentation to find each def's body: everything up to the
// next line at or below the def's own indentation. Python has no braces,
// so this is the idiomatic total fallback for body extraction.
func (pythonParser) Parse(path string, content []byte) ([]core.Symbol, []core.Edge) {
	src := string(content)
	lines := strings.Split(src, "\n")
	var symbols []core.Symbol
	var edges []core.Edge

	for i, line := range lines {
		var m []string
		kind := core.SymbolFunction
		if m = reDefTop.FindStringSubmatch(line); m == nil {
			if m = reDefMethod.FindStringSubmatch(line); m != nil {
				kind = core.SymbolMethod
			}
		}
		if m == nil {
			continue
		}
		name := m[1]
		indent := leadingSpaces(line)
		bodyEnd := i + 1
		for bodyEnd < len(lines) {
			l := lines[bodyEnd]
			if strings.TrimSpace(l) != "" && leadingSpaces(l) <= indent {
				break
			}
			bodyEnd++
		}
		body := strings.Join(lines[i+1:bodyEnd], "\n")

		id := core.MakeSymbolID(path, name)
		symbols = append(symbols, core.Symbol{
			ID: id, FilePath: path, Name: name, QualifiedName: name,
			Kind: kind, Signature: strings.TrimSpace(line),
			BodyRange: core.BodyRange{StartLine: i + 1, EndLine: bodyEnd},
		})
		edges = append(edges, extractCallEdges(id, body, pyKeywords)...)
	}

	for _, m := range rePyClass.FindAllStringSubmatch(src, -1) {
		name := m[1]
		symbols = append(symbols, core.Symbol{
			ID: core.MakeSymbolID(path, name), FilePath: path, Name: name,
			QualifiedName: name, Kind: core.SymbolClass, Signature: "class " + name,
		})
	}

	return symbols, edges
}

func leadingSpaces(s string) int {
	n := 0
	for _, r := range s {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 8
		} else {
			break
		}
	}
	return n
}
