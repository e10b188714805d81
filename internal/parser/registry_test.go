package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_GoFunctionsAndCalls(t *testing.T) {
	r := NewRegistry()
	src := `package main

func helper() {
	println("hi")
}

func main() {
	helper()
}
`
	symbols, edges := r.Parse("main.go", []byte(src))
	names := map[string]bool{}
	for _, s := range symbols {
		names[s.Name] = true
	}
	assert.True(t, names["helper"])
	assert.True(t, names["main"])

	foundCall := false
	for _, e := range edges {
		if e.To == "helper" {
			foundCall = true
		}
	}
	assert.True(t, foundCall, "expected an edge from main to helper")
}

func TestRegistry_UnsupportedExtensionYieldsNothing(t *testing.T) {
	r := NewRegistry()
	symbols, edges := r.Parse("README.md", []byte("# hello"))
	assert.Nil(t, symbols)
	assert.Nil(t, edges)
	assert.False(t, r.Supported("README.md"))
}

func TestRegistry_NeverPanicsOnMalformedSource(t *testing.T) {
	r := NewRegistry()
	malformed := map[string]string{
		"a.go":   "func broken( {{{ this is not valid go",
		"a.ts":   "function broken( { [[[",
		"a.py":   "def broken(:\n\tpass\nclass",
		"a.java": "public class { void m( {",
		"a.cs":   "public class { void M( {",
	}
	for path, src := range malformed {
		assert.NotPanics(t, func() {
			r.Parse(path, []byte(src))
		}, "parsing %s must never panic", path)
	}
}

func TestRegistry_PythonIndentationBody(t *testing.T) {
	r := NewRegistry()
	src := "def outer():\n    helper()\n\ndef helper():\n    pass\n"
	symbols, edges := r.Parse("mod.py", []byte(src))
	assert.Len(t, symbols, 2)

	foundCall := false
	for _, e := range edges {
		if e.To == "helper" {
			foundCall = true
		}
	}
	assert.True(t, foundCall)
}
