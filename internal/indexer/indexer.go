// Package indexer builds and maintains the symbol dependency graph for one
// (repository, branch) pair: full indexing on first sync, and incremental
// re-indexing as commits land. It is the sole writer of graph state and of
// the symbol embeddings that back the retriever's semantic search.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sevigo/graphwarden/internal/config"
	"github.com/sevigo/graphwarden/internal/core"
	"github.com/sevigo/graphwarden/internal/embedding"
	"github.com/sevigo/graphwarden/internal/graph"
	"github.com/sevigo/graphwarden/internal/parser"
	"github.com/sevigo/graphwarden/internal/storage"
)

// Stage identifies the phase a progress Event was emitted from.
type Stage string

const (
	StageParsing   Stage = "parsing"
	StageEmbedding Stage = "embedding"
	StageDone      Stage = "done"
)

// Event reports indexing progress to callers that want to surface it (the
// CLI scan command, the terminal UI). Zero value fields are simply unused
// for a given stage.
type Event struct {
	Stage       Stage
	File        string
	Processed   int
	Total       int
	SymbolCount int
	EdgeCount   int
	Duration    time.Duration
	Err         error
}

// ProgressFunc receives indexing events. A nil ProgressFunc is valid and
// simply means nobody is watching.
type ProgressFunc func(Event)

// Indexer owns the graph and embeddings for a single (repoID, branch).
type Indexer struct {
	repoID   int64
	branch   string
	repoPath string

	graph    *graph.Graph
	store    storage.GraphStore
	embedder *embedding.Adapter
	registry *parser.Registry
	cfg      config.IndexerConfig
	logger   *slog.Logger

	progress ProgressFunc
}

// New builds an Indexer bound to one repository checkout. g is the graph
// the cache entry holds; the indexer mutates it in place.
func New(
	repoID int64,
	branch, repoPath string,
	g *graph.Graph,
	store storage.GraphStore,
	embedder *embedding.Adapter,
	registry *parser.Registry,
	cfg config.IndexerConfig,
	logger *slog.Logger,
) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		repoID:   repoID,
		branch:   branch,
		repoPath: repoPath,
		graph:    g,
		store:    store,
		embedder: embedder,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	}
}

// WithProgress attaches a progress callback and returns the indexer for
// chaining.
func (ix *Indexer) WithProgress(fn ProgressFunc) *Indexer {
	ix.progress = fn
	return ix
}

func (ix *Indexer) emit(e Event) {
	if ix.progress != nil {
		ix.progress(e)
	}
}

// Full performs a complete index: every file is parsed from scratch, the
// graph is rebuilt, every symbol is re-embedded, and the resulting graph is
// persisted as a new snapshot. Used for the first sync of a repository and
// whenever the embedder model changes underneath an existing one.
func (ix *Indexer) Full(ctx context.Context, files []string) error {
	start := time.Now()

	var allSymbols []core.Symbol
	for i, path := range files {
		symbols, edges, err := ix.parseFile(path)
		if err != nil {
			ix.logger.Warn("indexer: skipping file with parse error", "path", path, "error", err)
			ix.emit(Event{Stage: StageParsing, File: path, Processed: i + 1, Total: len(files), Err: err})
			continue
		}
		for _, s := range symbols {
			ix.graph.AddSymbol(s)
		}
		for _, e := range edges {
			ix.graph.AddEdge(e)
		}
		allSymbols = append(allSymbols, symbols...)
		ix.emit(Event{Stage: StageParsing, File: path, Processed: i + 1, Total: len(files)})
	}

	ix.graph.ResolveNames()

	if err := ix.persistGraph(ctx, allSymbols, nil); err != nil {
		return err
	}

	if err := ix.embedSymbols(ctx, allSymbols); err != nil {
		return err
	}

	if err := ix.writeSnapshot(ctx); err != nil {
		return err
	}

	symbolCount, edgeCount := ix.graph.SymbolCount(), ix.graph.EdgeCount()
	ix.emit(Event{
		Stage:       StageDone,
		SymbolCount: symbolCount,
		EdgeCount:   edgeCount,
		Duration:    time.Since(start),
	})
	return nil
}

// SyncIncremental re-indexes only the given paths: each path still present
// on disk is re-parsed and replaces its prior symbols; a path no longer
// present is removed outright. It satisfies cache.Indexer. There is no
// context parameter on that interface, so a background context with no
// deadline is used — callers that need a bound should wrap the dispatching
// job in its own timeout instead.
func (ix *Indexer) SyncIncremental(changedPaths []string) error {
	ctx := context.Background()
	start := time.Now()

	var touched []core.Symbol
	var deletedPaths []string

	for i, path := range changedPaths {
		abs := filepath.Join(ix.repoPath, path)
		if _, err := os.Stat(abs); err != nil {
			if os.IsNotExist(err) {
				ix.graph.RemoveFile(path)
				deletedPaths = append(deletedPaths, path)
				ix.emit(Event{Stage: StageParsing, File: path, Processed: i + 1, Total: len(changedPaths)})
				continue
			}
			ix.logger.Warn("indexer: skipping unreadable file", "path", path, "error", err)
			continue
		}

		ix.graph.RemoveFile(path)

		symbols, edges, err := ix.parseFile(path)
		if err != nil {
			ix.logger.Warn("indexer: skipping file with parse error", "path", path, "error", err)
			ix.emit(Event{Stage: StageParsing, File: path, Processed: i + 1, Total: len(changedPaths), Err: err})
			continue
		}
		for _, s := range symbols {
			ix.graph.AddSymbol(s)
		}
		for _, e := range edges {
			ix.graph.AddEdge(e)
		}
		touched = append(touched, symbols...)
		ix.emit(Event{Stage: StageParsing, File: path, Processed: i + 1, Total: len(changedPaths)})
	}

	ix.graph.ResolveNames()

	if err := ix.persistGraph(ctx, touched, deletedPaths); err != nil {
		return err
	}

	if err := ix.embedSymbols(ctx, touched); err != nil {
		return err
	}

	if err := ix.writeSnapshot(ctx); err != nil {
		return err
	}

	symbolCount, edgeCount := ix.graph.SymbolCount(), ix.graph.EdgeCount()
	ix.emit(Event{
		Stage:       StageDone,
		SymbolCount: symbolCount,
		EdgeCount:   edgeCount,
		Duration:    time.Since(start),
	})
	return nil
}

func (ix *Indexer) parseFile(path string) ([]core.Symbol, []core.Edge, error) {
	content, err := os.ReadFile(filepath.Join(ix.repoPath, path))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	symbols, edges := ix.registry.Parse(path, content)
	for i := range symbols {
		symbols[i].RepoID = fmt.Sprintf("%d", ix.repoID)
		symbols[i].Branch = ix.branch
	}
	return symbols, edges, nil
}

// persistGraph writes symbol/edge rows for freshly (re)parsed symbols and
// removes rows for deleted files. Storage errors are surfaced directly:
// unlike a parse or embedding failure, a write failure here means the
// durable graph and the in-memory one have diverged and callers must not
// silently proceed.
func (ix *Indexer) persistGraph(ctx context.Context, symbols []core.Symbol, deletedPaths []string) error {
	for _, path := range deletedPaths {
		if err := ix.store.DeleteSymbolsForFile(ctx, ix.repoID, ix.branch, path); err != nil {
			return fmt.Errorf("indexer: delete symbols for %s: %w", path, err)
		}
	}

	if len(symbols) == 0 {
		return nil
	}

	records := make([]storage.SymbolRecord, 0, len(symbols))
	byFile := map[string]bool{}
	for _, s := range symbols {
		byFile[s.FilePath] = true
		records = append(records, storage.SymbolRecord{
			RepositoryID: ix.repoID,
			Branch:       ix.branch,
			SymbolID:     s.ID,
			FilePath:     s.FilePath,
			Name:         s.Name,
			Kind:         string(s.Kind),
			Signature:    s.Signature,
			DocComment:   s.DocComment,
			BodyStart:    s.BodyRange.StartLine,
			BodyEnd:      s.BodyRange.EndLine,
		})
	}
	for path := range byFile {
		if err := ix.store.DeleteSymbolsForFile(ctx, ix.repoID, ix.branch, path); err != nil {
			return fmt.Errorf("indexer: clear stale symbols for %s: %w", path, err)
		}
	}
	if err := ix.store.UpsertSymbols(ctx, records); err != nil {
		return fmt.Errorf("indexer: upsert symbols: %w", err)
	}

	edgeRecords := ix.graph.EdgesForFiles(byFile)
	out := make([]storage.EdgeRecord, 0, len(edgeRecords))
	for _, e := range edgeRecords {
		out = append(out, storage.EdgeRecord{
			RepositoryID: ix.repoID,
			Branch:       ix.branch,
			FromID:       e.From,
			ToID:         e.To,
			Kind:         string(e.Kind),
		})
	}
	if len(out) > 0 {
		if err := ix.store.UpsertEdges(ctx, out); err != nil {
			return fmt.Errorf("indexer: upsert edges: %w", err)
		}
	}
	return nil
}

// embedSymbols embeds symbols in batches of cfg.EmbeddingBatchSize. A batch
// that fails to embed is logged and skipped rather than aborting the whole
// index: the graph itself is still correct, only semantic search for those
// symbols degrades until the next pass re-embeds them.
func (ix *Indexer) embedSymbols(ctx context.Context, symbols []core.Symbol) error {
	if ix.embedder == nil || len(symbols) == 0 {
		return nil
	}
	batchSize := ix.cfg.EmbeddingBatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	for start := 0; start < len(symbols); start += batchSize {
		end := start + batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		if err := ix.embedder.UpsertSymbols(ctx, ix.repoID, ix.branch, batch); err != nil {
			ix.logger.Warn("indexer: skipping embedding batch", "start", start, "size", len(batch), "error", err)
			ix.emit(Event{Stage: StageEmbedding, Processed: end, Total: len(symbols), Err: err})
			continue
		}

		for _, s := range batch {
			if err := ix.store.UpsertEmbeddingPointer(ctx, ix.repoID, ix.branch, s.ID, s.ID); err != nil {
				ix.logger.Warn("indexer: failed to record embedding pointer", "symbol", s.ID, "error", err)
			}
		}
		ix.emit(Event{Stage: StageEmbedding, Processed: end, Total: len(symbols)})
	}
	return nil
}

func (ix *Indexer) writeSnapshot(ctx context.Context) error {
	data, err := ix.graph.Serialize()
	if err != nil {
		return fmt.Errorf("indexer: serialize graph: %w", err)
	}
	symbolCount, edgeCount := ix.graph.SymbolCount(), ix.graph.EdgeCount()
	if err := ix.store.PutSnapshot(ctx, ix.repoID, ix.branch, data, symbolCount, edgeCount); err != nil {
		return fmt.Errorf("indexer: put snapshot: %w", err)
	}
	return nil
}
