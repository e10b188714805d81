package parser

import (
	"regexp"

	"github.com/sevigo/graphwarden/internal/core"
)

var (
	reCSMethod = regexp.MustCompile(`(?m)^\s*(?:public|private|protected|internal|static|async|virtual|override|\s)+[\w<>\[\],\s]+\s+([A-Za-z_][A-Za-z0-9_]*)\s*\([^;{]*\)\s*\{`)
	reCSClass  = regexp.MustCompile(`(?m)^\s*(?:public|private|protected|internal|sealed|abstract|partial|\s)*class\s+([A-Za-z_][A-Za-z0-9_]*)`)
	reCSIface  = regexp.MustCompile(`(?m)^\s*(?:public|private|protected|internal|\s)*interface\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

var csharpKeywords = map[string]bool{
	"if": true, "for": true, "foreach": true, "while": true, "switch": true, "catch": true, "new": true,
}

type csharpParser struct{}

func (csharpParser) Language() string { return "csharp" }

func (csharpParser) Parse(path string, content []byte) ([]core.Symbol, []core.Edge) {
	src := string(content)
	var symbols []core.Symbol
	var edges []core.Edge

	for _, m := range reCSMethod.FindAllStringSubmatchIndex(src, -1) {
		name := src[m[2]:m[3]]
		braceIdx := m[1] - 1
		id := core.MakeSymbolID(path, name)
		symbols = append(symbols, core.Symbol{
			ID: id, FilePath: path, Name: name, QualifiedName: name,
			Kind: core.SymbolMethod, Signature: trimToLine(src, m[0]),
			BodyRange: lineRange(src, m[0], braceIdx),
		})
		edges = append(edges, extractCallEdges(id, braceBody(src, braceIdx), csharpKeywords)...)
	}
	for _, m := range reCSClass.FindAllStringSubmatch(src, -1) {
		name := m[1]
		symbols = append(symbols, core.Symbol{
			ID: core.MakeSymbolID(path, name), FilePath: path, Name: name,
			QualifiedName: name, Kind: core.SymbolClass, Signature: "class " + name,
		})
	}
	for _, m := range reCSIface.FindAllStringSubmatch(src, -1) {
		name := m[1]
		symbols = append(symbols, core.Symbol{
			ID: core.MakeSymbolID(path, name), FilePath: path, Name: name,
			QualifiedName: name, Kind: core.SymbolInterface, Signature: "interface " + name,
		})
	}

	return symbols, edges
}
