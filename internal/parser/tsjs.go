package parser

import (
	"regexp"

	"github.com/sevigo/graphwarden/internal/core"
)

var (
	reTSFunc  = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:async\s+)?function\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`)
	reTSArrow = regexp.MustCompile(`(?m)^\s*(?:export\s+)?const\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(?:async\s*)?\([^)]*\)\s*(?::[^=]+)?=>`)
	reTSClass = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:default\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	reTSIface = regexp.MustCompile(`(?m)^\s*(?:export\s+)?interface\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
)

var tsjsKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true, "function": true,
}

type tsjsParser struct{}

func (tsjsParser) Language() string { return "typescript" }

func (tsjsParser) Parse(path string, content []byte) ([]core.Symbol, []core.Edge) {
	src := string(content)
	var symbols []core.Symbol
	var edges []core.Edge

	addFunc := func(name string, start, braceIdx int, kind core.SymbolKind, sigPrefix string) {
		id := core.MakeSymbolID(path, name)
		symbols = append(symbols, core.Symbol{
			ID: id, FilePath: path, Name: name, QualifiedName: name,
			Kind: kind, Signature: sigPrefix + name,
			BodyRange: lineRange(src, start, braceIdx),
		})
		if braceIdx >= 0 {
			edges = append(edges, extractCallEdges(id, braceBody(src, braceIdx), tsjsKeywords)...)
		}
	}

	for _, m := range reTSFunc.FindAllStringSubmatchIndex(src, -1) {
		name := src[m[2]:m[3]]
		braceIdx := firstIndex(src, m[1], '{')
		addFunc(name, m[0], braceIdx, core.SymbolFunction, "function ")
	}
	for _, m := range reTSArrow.FindAllStringSubmatchIndex(src, -1) {
		name := src[m[2]:m[3]]
		braceIdx := firstIndex(src, m[1], '{')
		addFunc(name, m[0], braceIdx, core.SymbolFunction, "const ")
	}
	for _, m := range reTSClass.FindAllStringSubmatchIndex(src, -1) {
		name := src[m[2]:m[3]]
		symbols = append(symbols, core.Symbol{
			ID: core.MakeSymbolID(path, name), FilePath: path, Name: name,
			QualifiedName: name, Kind: core.SymbolClass, Signature: "class " + name,
		})
	}
	for _, m := range reTSIface.FindAllStringSubmatchIndex(src, -1) {
		name := src[m[2]:m[3]]
		symbols = append(symbols, core.Symbol{
			ID: core.MakeSymbolID(path, name), FilePath: path, Name: name,
			QualifiedName: name, Kind: core.SymbolInterface, Signature: "interface " + name,
		})
	}

	return symbols, edges
}
