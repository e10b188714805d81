package retriever

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/graphwarden/internal/core"
	"github.com/sevigo/graphwarden/internal/graph"
	"github.com/sevigo/graphwarden/internal/storage"
)

// fakeGraphStore implements storage.GraphStore with just enough behaviour
// for the retriever's prior-example lookup; every other method is unused
// by these tests and panics if called.
type fakeGraphStore struct {
	rated []storage.ExistingReviewComment
}

func (f *fakeGraphStore) UpsertSymbols(context.Context, []storage.SymbolRecord) error { panic("unused") }
func (f *fakeGraphStore) UpsertEdges(context.Context, []storage.EdgeRecord) error      { panic("unused") }
func (f *fakeGraphStore) DeleteSymbolsForFile(context.Context, int64, string, string) error {
	panic("unused")
}
func (f *fakeGraphStore) GetSnapshot(context.Context, int64, string) ([]byte, error) { panic("unused") }
func (f *fakeGraphStore) PutSnapshot(context.Context, int64, string, []byte, int, int) error {
	panic("unused")
}
func (f *fakeGraphStore) UpsertEmbeddingPointer(context.Context, int64, string, string, string) error {
	panic("unused")
}
func (f *fakeGraphStore) SaveReviewComments(context.Context, string, int, []core.ReviewComment, []string) error {
	panic("unused")
}
func (f *fakeGraphStore) GetExistingComments(context.Context, string, int) ([]storage.ExistingReviewComment, error) {
	panic("unused")
}
func (f *fakeGraphStore) GetRatedComments(_ context.Context, _ string) ([]storage.ExistingReviewComment, error) {
	return f.rated, nil
}
func (f *fakeGraphStore) UpsertFeedbackSignal(context.Context, core.FeedbackSignal) error {
	panic("unused")
}

var _ storage.GraphStore = (*fakeGraphStore)(nil)

func sym(file, name string) core.Symbol {
	return core.Symbol{
		ID:            core.MakeSymbolID(file, name),
		FilePath:      file,
		Name:          name,
		QualifiedName: name,
		Kind:          core.SymbolFunction,
		Signature:     "func " + name + "()",
	}
}

func buildFixtureGraph() *graph.Graph {
	g := graph.New()
	handlerB := sym("handlers.go", "handlerB")
	utilA := sym("util.go", "utilA")
	routerE := sym("router.go", "routerE")

	g.AddSymbol(handlerB)
	g.AddSymbol(utilA)
	g.AddSymbol(routerE)
	g.AddEdge(core.Edge{From: handlerB.ID, To: utilA.ID, Kind: core.EdgeCalls})
	g.AddEdge(core.Edge{From: routerE.ID, To: handlerB.ID, Kind: core.EdgeCalls})
	g.ResolveNames()
	return g
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildContext_NoEmbedder_DegradesGracefully(t *testing.T) {
	g := buildFixtureGraph()
	store := &fakeGraphStore{}
	r := New(1, "main", "acme/repo", DepthDeep, g, store, nil, discardLogger())

	out, err := r.BuildContext(sampleDiff)
	require.NoError(t, err)

	rc, ok := out.(*Context)
	require.True(t, ok)
	assert.Len(t, rc.ChangedSymbols, 1)
	assert.Equal(t, "handlerB", rc.ChangedSymbols[0].Name)
	assert.Empty(t, rc.SemanticNeighbors, "no embedder means no semantic search")
	assert.Empty(t, rc.PriorExamples)
	assert.Empty(t, rc.RejectedExamples)
}

func TestBuildContext_CallersAndCallees(t *testing.T) {
	g := buildFixtureGraph()
	store := &fakeGraphStore{}
	r := New(1, "main", "acme/repo", DepthStandard, g, store, nil, discardLogger())

	out, err := r.BuildContext(sampleDiff)
	require.NoError(t, err)
	rc := out.(*Context)

	names := func(symbols []core.Symbol) []string {
		out := make([]string, len(symbols))
		for i, s := range symbols {
			out[i] = s.Name
		}
		return out
	}
	assert.ElementsMatch(t, []string{"routerE"}, names(rc.Callers))
	assert.ElementsMatch(t, []string{"utilA"}, names(rc.Callees))
}

func TestBuildContext_NoChangedSymbols_StillRenders(t *testing.T) {
	g := graph.New()
	store := &fakeGraphStore{}
	r := New(1, "main", "acme/repo", DepthStandard, g, store, nil, discardLogger())

	out, err := r.BuildContext("--- a/unknown.go\n+++ b/unknown.go\n@@ -1,1 +1,1 @@\n-old\n+new\n")
	require.NoError(t, err)
	rc := out.(*Context)
	assert.Empty(t, rc.ChangedSymbols)
	assert.NotPanics(t, func() { _ = rc.String() })
}

func TestContextString_RendersChangedSymbols(t *testing.T) {
	rc := &Context{
		ChangedSymbols: []core.Symbol{sym("handlers.go", "handlerB")},
		BlastRadius:    core.BlastRadius{RiskScore: 15, AffectedFiles: []string{"handlers.go"}},
	}
	rendered := rc.String()
	assert.Contains(t, rendered, "Changed Symbols")
	assert.Contains(t, rendered, "handlerB")
	assert.Contains(t, rendered, "risk score: 15")
}

func TestGraphDistance(t *testing.T) {
	hop1 := map[string]struct{}{"a": {}}
	hop2 := map[string]struct{}{"b": {}}
	assert.Equal(t, 1, graphDistance(hop1, hop2, "a"))
	assert.Equal(t, 2, graphDistance(hop1, hop2, "b"))
	assert.Equal(t, 3, graphDistance(hop1, hop2, "c"))
}
