package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/graphwarden/internal/config"
	"github.com/sevigo/graphwarden/internal/core"
	"github.com/sevigo/graphwarden/internal/graph"
	"github.com/sevigo/graphwarden/internal/parser"
	"github.com/sevigo/graphwarden/internal/storage"
)

// fakeGraphStore is a hand-written in-memory double for storage.GraphStore,
// following this repo's existing interface-fake test convention (see
// internal/feedback/signer_test.go, internal/retriever/retriever_test.go).
type fakeGraphStore struct {
	symbols       map[string][]storage.SymbolRecord // keyed by filePath
	edgeCount     int
	snapshots     map[string][]byte
	deleteErr     error
	upsertErr     error
	snapshotCalls int
}

func newFakeGraphStore() *fakeGraphStore {
	return &fakeGraphStore{
		symbols:   make(map[string][]storage.SymbolRecord),
		snapshots: make(map[string][]byte),
	}
}

func (f *fakeGraphStore) UpsertSymbols(_ context.Context, symbols []storage.SymbolRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, s := range symbols {
		f.symbols[s.FilePath] = append(f.symbols[s.FilePath], s)
	}
	return nil
}

func (f *fakeGraphStore) UpsertEdges(_ context.Context, edges []storage.EdgeRecord) error {
	f.edgeCount += len(edges)
	return nil
}

func (f *fakeGraphStore) DeleteSymbolsForFile(_ context.Context, _ int64, _ string, filePath string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.symbols, filePath)
	return nil
}

func (f *fakeGraphStore) GetSnapshot(_ context.Context, repoID int64, branch string) ([]byte, error) {
	key := snapshotKey(repoID, branch)
	data, ok := f.snapshots[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (f *fakeGraphStore) PutSnapshot(_ context.Context, repoID int64, branch string, data []byte, _, _ int) error {
	f.snapshotCalls++
	f.snapshots[snapshotKey(repoID, branch)] = data
	return nil
}

func (f *fakeGraphStore) UpsertEmbeddingPointer(_ context.Context, _ int64, _, _, _ string) error {
	return nil
}

func (f *fakeGraphStore) SaveReviewComments(_ context.Context, _ string, _ int, _ []core.ReviewComment, _ []string) error {
	return nil
}

func (f *fakeGraphStore) GetExistingComments(_ context.Context, _ string, _ int) ([]storage.ExistingReviewComment, error) {
	return nil, nil
}

func (f *fakeGraphStore) GetRatedComments(_ context.Context, _ string) ([]storage.ExistingReviewComment, error) {
	return nil, nil
}

func (f *fakeGraphStore) UpsertFeedbackSignal(_ context.Context, _ core.FeedbackSignal) error {
	return nil
}

func snapshotKey(repoID int64, branch string) string {
	return branch + ":" + string(rune(repoID))
}

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	abs := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestFull_ParsesAndPersistsSymbols(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/util.go", "package pkg\n\nfunc Helper() {\n\tother()\n}\n")
	writeFile(t, root, "pkg/caller.go", "package pkg\n\nfunc Caller() {\n\tHelper()\n}\n")

	g := graph.New()
	store := newFakeGraphStore()
	reg := parser.NewRegistry()

	ix := New(1, "main", root, g, store, nil, reg, config.IndexerConfig{EmbeddingBatchSize: 32}, nil)

	var events []Event
	ix.WithProgress(func(e Event) { events = append(events, e) })

	err := ix.Full(context.Background(), []string{"pkg/util.go", "pkg/caller.go"})
	require.NoError(t, err)

	assert.Greater(t, g.SymbolCount(), 0)
	assert.NotEmpty(t, store.symbols["pkg/util.go"])
	assert.NotEmpty(t, store.symbols["pkg/caller.go"])
	assert.Equal(t, 1, store.snapshotCalls)

	var sawDone bool
	for _, e := range events {
		if e.Stage == StageDone {
			sawDone = true
			assert.Equal(t, g.SymbolCount(), e.SymbolCount)
		}
	}
	assert.True(t, sawDone, "expected a done event")
}

func TestFull_ParseErrorSkipsFileButContinues(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/ok.go", "package pkg\n\nfunc OK() {}\n")
	// A nonexistent file triggers a read error inside parseFile, which Full
	// must treat as non-fatal (spec §4.3/§7: parse-error is scoped to one
	// file).

	g := graph.New()
	store := newFakeGraphStore()
	reg := parser.NewRegistry()
	ix := New(1, "main", root, g, store, nil, reg, config.IndexerConfig{}, nil)

	var sawErr bool
	ix.WithProgress(func(e Event) {
		if e.Err != nil {
			sawErr = true
		}
	})

	err := ix.Full(context.Background(), []string{"pkg/ok.go", "pkg/missing.go"})
	require.NoError(t, err)
	assert.True(t, sawErr)
	assert.NotEmpty(t, store.symbols["pkg/ok.go"])
	assert.Nil(t, store.symbols["pkg/missing.go"])
}

func TestSyncIncremental_RemovesDeletedFileSymbols(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/a.go", "package pkg\n\nfunc A() {}\n")

	g := graph.New()
	store := newFakeGraphStore()
	reg := parser.NewRegistry()
	ix := New(1, "main", root, g, store, nil, reg, config.IndexerConfig{}, nil)

	require.NoError(t, ix.Full(context.Background(), []string{"pkg/a.go"}))
	require.NotEmpty(t, store.symbols["pkg/a.go"])

	require.NoError(t, os.Remove(filepath.Join(root, "pkg/a.go")))

	require.NoError(t, ix.SyncIncremental([]string{"pkg/a.go"}))
	assert.Empty(t, g.SymbolsInFile("pkg/a.go"))
	assert.Nil(t, store.symbols["pkg/a.go"])
}

func TestSyncIncremental_ReparsesChangedFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/a.go", "package pkg\n\nfunc A() {}\nfunc B() {}\n")

	g := graph.New()
	store := newFakeGraphStore()
	reg := parser.NewRegistry()
	ix := New(1, "main", root, g, store, nil, reg, config.IndexerConfig{}, nil)

	require.NoError(t, ix.Full(context.Background(), []string{"pkg/a.go"}))
	require.Len(t, g.SymbolsInFile("pkg/a.go"), 2)

	writeFile(t, root, "pkg/a.go", "package pkg\n\nfunc A() {}\n")
	require.NoError(t, ix.SyncIncremental([]string{"pkg/a.go"}))
	require.Len(t, g.SymbolsInFile("pkg/a.go"), 1)
}

func TestFull_StorageErrorSurfaces(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/a.go", "package pkg\n\nfunc A() {}\n")

	g := graph.New()
	store := newFakeGraphStore()
	store.upsertErr = assert.AnError
	reg := parser.NewRegistry()
	ix := New(1, "main", root, g, store, nil, reg, config.IndexerConfig{}, nil)

	err := ix.Full(context.Background(), []string{"pkg/a.go"})
	assert.Error(t, err)
}
