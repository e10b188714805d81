package parser

import (
	"regexp"

	"github.com/sevigo/graphwarden/internal/core"
)

var (
	reJavaMethod = regexp.MustCompile(`(?m)^\s*(?:public|private|protected|static|final|synchronized|\s)+[\w<>\[\],\s]+\s+([A-Za-z_][A-Za-z0-9_]*)\s*\([^;{]*\)\s*(?:throws\s+[\w,\s]+)?\s*\{`)
	reJavaClass  = regexp.MustCompile(`(?m)^\s*(?:public|private|protected|final|abstract|\s)*class\s+([A-Za-z_][A-Za-z0-9_]*)`)
	reJavaIface  = regexp.MustCompile(`(?m)^\s*(?:public|private|protected|\s)*interface\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

var javaKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true, "new": true,
}

type javaParser struct{}

func (javaParser) Language() string { return "java" }

func (javaParser) Parse(path string, content []byte) ([]core.Symbol, []core.Edge) {
	src := string(content)
	var symbols []core.Symbol
	var edges []core.Edge

	for _, m := range reJavaMethod.FindAllStringSubmatchIndex(src, -1) {
		name := src[m[2]:m[3]]
		braceIdx := m[1] - 1
		id := core.MakeSymbolID(path, name)
		symbols = append(symbols, core.Symbol{
			ID: id, FilePath: path, Name: name, QualifiedName: name,
			Kind: core.SymbolMethod, Signature: trimToLine(src, m[0]),
			BodyRange: lineRange(src, m[0], braceIdx),
		})
		edges = append(edges, extractCallEdges(id, braceBody(src, braceIdx), javaKeywords)...)
	}
	for _, m := range reJavaClass.FindAllStringSubmatch(src, -1) {
		name := m[1]
		symbols = append(symbols, core.Symbol{
			ID: core.MakeSymbolID(path, name), FilePath: path, Name: name,
			QualifiedName: name, Kind: core.SymbolClass, Signature: "class " + name,
		})
	}
	for _, m := range reJavaIface.FindAllStringSubmatch(src, -1) {
		name := m[1]
		symbols = append(symbols, core.Symbol{
			ID: core.MakeSymbolID(path, name), FilePath: path, Name: name,
			QualifiedName: name, Kind: core.SymbolInterface, Signature: "interface " + name,
		})
	}

	return symbols, edges
}

func trimToLine(src string, offset int) string {
	end := firstIndex(src, offset, '\n')
	if end < 0 {
		return src[offset:]
	}
	return src[offset:end]
}
