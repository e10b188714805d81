package retriever

import (
	"fmt"
	"strings"

	"github.com/sevigo/graphwarden/internal/core"
	"github.com/sevigo/graphwarden/internal/storage"
)

// String renders a Context as the "Codebase Context" markdown section
// described by spec §4.4: one line per symbol (qualifiedName + kind +
// signature). No token budget is applied: every symbol and example in the
// Context is listed, however long the section becomes. The LLM
// prompt is instructed to use this section without naming it, so the
// heading itself is plain markdown with no special framing.
func (c *Context) String() string {
	var b strings.Builder
	b.WriteString("## Codebase Context\n\n")

	writeSymbolSection(&b, "### Changed Symbols", c.ChangedSymbols)

	if len(c.ChangedSymbols) > 0 || c.BlastRadius.RiskScore > 0 {
		fmt.Fprintf(&b, "### Blast Radius (risk score: %d)\n", c.BlastRadius.RiskScore)
		if len(c.BlastRadius.AffectedFiles) > 0 {
			fmt.Fprintf(&b, "Affects %d file(s): %s\n", len(c.BlastRadius.AffectedFiles), strings.Join(c.BlastRadius.AffectedFiles, ", "))
		}
		b.WriteString("\n")
	}

	writeSymbolSection(&b, "### Direct Callers (1 hop)", c.BlastRadius.DirectCallers)
	writeSymbolSection(&b, "### Transitive Callers (2 hops)", c.BlastRadius.TransitiveCallers)
	writeSymbolSection(&b, "### Callees", c.Callees)
	writeSymbolSection(&b, "### Semantic Neighbors", c.SemanticNeighbors)

	writeCommentSection(&b, "### Examples your team found helpful", c.PriorExamples)
	writeCommentSection(&b, "### Examples your team found NOT helpful", c.RejectedExamples)

	return b.String()
}

func writeSymbolSection(b *strings.Builder, heading string, symbols []core.Symbol) {
	if len(symbols) == 0 {
		return
	}
	b.WriteString(heading)
	b.WriteString("\n")
	for _, s := range symbols {
		fmt.Fprintf(b, "- %s (%s): %s\n", s.QualifiedName, s.Kind, s.Signature)
	}
	b.WriteString("\n")
}

func writeCommentSection(b *strings.Builder, heading string, comments []storage.ExistingReviewComment) {
	if len(comments) == 0 {
		return
	}
	b.WriteString(heading)
	b.WriteString("\n")
	for _, c := range comments {
		fmt.Fprintf(b, "- %s:%d — %s\n", c.Path, c.Line, c.Body)
	}
	b.WriteString("\n")
}
