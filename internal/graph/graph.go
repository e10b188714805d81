// Package graph implements the in-memory symbol dependency graph: an
// adjacency structure over core.Symbol and core.Edge supporting bounded
// BFS, blast-radius computation, per-file invalidation and durable
// snapshotting. All operations here are pure with respect to I/O; callers
// in internal/indexer and internal/storage own persistence.
package graph

import (
	"encoding/json"
	"sync"

	"github.com/sevigo/graphwarden/internal/core"
)

// Graph is a cyclic, directed adjacency structure keyed by symbol id. It is
// the single owner of a repository/branch's structural state; the teacher's
// repomanager package mutates its own state the same way —
// two owned maps, never back-references, visited-set BFS to tolerate
// cycles (mutual recursion, import cycles).
type Graph struct {
	mu sync.RWMutex

	symbols  map[string]core.Symbol
	outEdges map[string][]core.Edge
	inEdges  map[string][]core.Edge

	nameToIDs     map[string]map[string]struct{}
	fileToSymbols map[string]map[string]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		symbols:       make(map[string]core.Symbol),
		outEdges:      make(map[string][]core.Edge),
		inEdges:       make(map[string][]core.Edge),
		nameToIDs:     make(map[string]map[string]struct{}),
		fileToSymbols: make(map[string]map[string]struct{}),
	}
}

// AddSymbol upserts a symbol by id and keeps the name/file indices current.
func (g *Graph) AddSymbol(s core.Symbol) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.symbols[s.ID] = s

	if g.nameToIDs[s.Name] == nil {
		g.nameToIDs[s.Name] = make(map[string]struct{})
	}
	g.nameToIDs[s.Name][s.ID] = struct{}{}

	if g.fileToSymbols[s.FilePath] == nil {
		g.fileToSymbols[s.FilePath] = make(map[string]struct{})
	}
	g.fileToSymbols[s.FilePath][s.ID] = struct{}{}
}

// AddEdge appends e to the out/in adjacency lists. It is idempotent on
// exact duplicates (same From, To, Kind).
func (g *Graph) AddEdge(e core.Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addEdgeLocked(e)
}

func (g *Graph) addEdgeLocked(e core.Edge) {
	for _, existing := range g.outEdges[e.From] {
		if existing == e {
			return
		}
	}
	g.outEdges[e.From] = append(g.outEdges[e.From], e)
	g.inEdges[e.To] = append(g.inEdges[e.To], e)
}

// SymbolCount and EdgeCount support progress reporting (indexer "done" event).
func (g *Graph) SymbolCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.symbols)
}

func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, edges := range g.outEdges {
		n += len(edges)
	}
	return n
}

// Symbol looks up a symbol by id.
func (g *Graph) Symbol(id string) (core.Symbol, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.symbols[id]
	return s, ok
}

// SymbolsInFile returns every symbol whose FilePath equals path.
func (g *Graph) SymbolsInFile(path string) []core.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.fileToSymbols[path]
	out := make([]core.Symbol, 0, len(ids))
	for id := range ids {
		out = append(out, g.symbols[id])
	}
	return out
}

// EdgesForFiles returns every outgoing edge whose From symbol belongs to one
// of the given files, for persisting just the edges touched by a re-index.
func (g *Graph) EdgesForFiles(files map[string]bool) []core.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []core.Edge
	for path := range files {
		for id := range g.fileToSymbols[path] {
			out = append(out, g.outEdges[id]...)
		}
	}
	return out
}

// ResolveNames expands every edge whose To is a bare name into zero or more
// edges keyed by each id registered under that name. Called once at the end
// of a full index and once per incremental batch. Bare-name edges that
// resolve to nothing are discarded entirely (spec §3 Edge invariant).
func (g *Graph) ResolveNames() {
	g.mu.Lock()
	defer g.mu.Unlock()

	newOut := make(map[string][]core.Edge, len(g.outEdges))
	newIn := make(map[string][]core.Edge, len(g.inEdges))

	addResolved := func(e core.Edge) {
		for _, existing := range newOut[e.From] {
			if existing == e {
				return
			}
		}
		newOut[e.From] = append(newOut[e.From], e)
		newIn[e.To] = append(newIn[e.To], e)
	}

	for from, edges := range g.outEdges {
		for _, e := range edges {
			if _, isID := g.symbols[e.To]; isID {
				addResolved(e)
				continue
			}
			ids, ok := g.nameToIDs[e.To]
			if !ok {
				continue
			}
			for id := range ids {
				addResolved(core.Edge{From: from, To: id, Kind: e.Kind})
			}
		}
	}

	g.outEdges = newOut
	g.inEdges = newIn
}

// RemoveFile removes every symbol whose FilePath equals path, all of their
// outgoing edges, and prunes any remaining edge whose From or To referenced
// one of those ids. Name and file indices are cleaned accordingly.
func (g *Graph) RemoveFile(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := g.fileToSymbols[path]
	if len(ids) == 0 {
		return
	}
	removed := make(map[string]struct{}, len(ids))
	for id := range ids {
		removed[id] = struct{}{}
		s := g.symbols[id]
		delete(g.symbols, id)
		if names := g.nameToIDs[s.Name]; names != nil {
			delete(names, id)
			if len(names) == 0 {
				delete(g.nameToIDs, s.Name)
			}
		}
		delete(g.outEdges, id)
	}
	delete(g.fileToSymbols, path)

	for from, edges := range g.outEdges {
		filtered := edges[:0:0]
		for _, e := range edges {
			if _, gone := removed[e.To]; gone {
				continue
			}
			filtered = append(filtered, e)
		}
		if len(filtered) == 0 {
			delete(g.outEdges, from)
		} else {
			g.outEdges[from] = filtered
		}
	}

	for to, edges := range g.inEdges {
		if _, gone := removed[to]; gone {
			delete(g.inEdges, to)
			continue
		}
		filtered := edges[:0:0]
		for _, e := range edges {
			if _, gone := removed[e.From]; gone {
				continue
			}
			filtered = append(filtered, e)
		}
		if len(filtered) == 0 {
			delete(g.inEdges, to)
		} else {
			g.inEdges[to] = filtered
		}
	}
}

// GetCallers performs a bounded BFS over inEdges, returning symbols in
// discovery order excluding the seed. hops <= 0 or an absent seed yields
// an empty result (spec §4.2 BFS edge-case policy).
func (g *Graph) GetCallers(id string, hops int) []core.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.bfs(id, hops, g.inEdges, func(e core.Edge) string { return e.From })
}

// GetCallees performs a bounded BFS over outEdges.
func (g *Graph) GetCallees(id string, hops int) []core.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.bfs(id, hops, g.outEdges, func(e core.Edge) string { return e.To })
}

func (g *Graph) bfs(seed string, hops int, adjacency map[string][]core.Edge, next func(core.Edge) string) []core.Symbol {
	if hops <= 0 {
		return nil
	}
	if _, ok := g.symbols[seed]; !ok {
		return nil
	}

	visited := map[string]struct{}{seed: {}}
	frontier := []string{seed}
	var out []core.Symbol

	for depth := 0; depth < hops && len(frontier) > 0; depth++ {
		var nextFrontier []string
		for _, current := range frontier {
			for _, e := range adjacency[current] {
				id := next(e)
				if _, seen := visited[id]; seen {
					continue
				}
				visited[id] = struct{}{}
				if s, ok := g.symbols[id]; ok {
					out = append(out, s)
				}
				nextFrontier = append(nextFrontier, id)
			}
		}
		frontier = nextFrontier
	}
	return out
}

// GetBlastRadius computes, for the union of the given seed ids, the 1-hop
// ("direct") and 2-hop-but-not-1-hop ("transitive") inbound caller sets,
// deduplicated across seeds, plus affected files and a risk score.
func (g *Graph) GetBlastRadius(ids []string) core.BlastRadius {
	g.mu.RLock()
	defer g.mu.RUnlock()

	direct := make(map[string]core.Symbol)
	within2 := make(map[string]core.Symbol)

	for _, id := range ids {
		for _, s := range g.bfs(id, 1, g.inEdges, func(e core.Edge) string { return e.From }) {
			direct[s.ID] = s
		}
		for _, s := range g.bfs(id, 2, g.inEdges, func(e core.Edge) string { return e.From }) {
			within2[s.ID] = s
		}
	}

	transitive := make([]core.Symbol, 0, len(within2))
	for id, s := range within2 {
		if _, isDirect := direct[id]; !isDirect {
			transitive = append(transitive, s)
		}
	}

	directList := make([]core.Symbol, 0, len(direct))
	for _, s := range direct {
		directList = append(directList, s)
	}

	fileSet := make(map[string]struct{})
	for _, s := range directList {
		fileSet[s.FilePath] = struct{}{}
	}
	for _, s := range transitive {
		fileSet[s.FilePath] = struct{}{}
	}
	files := make([]string, 0, len(fileSet))
	for f := range fileSet {
		files = append(files, f)
	}

	return core.BlastRadius{
		DirectCallers:     directList,
		TransitiveCallers: transitive,
		AffectedFiles:     files,
		RiskScore:         core.ComputeRiskScore(len(directList), len(files)),
	}
}

// snapshot is the JSON-serialisable form of a Graph.
type snapshot struct {
	Symbols []core.Symbol `json:"symbols"`
	Edges   []core.Edge   `json:"edges"`
}

// Serialize produces a byte-exact JSON encoding of {symbols, edges}
// sufficient to rebuild every index on Deserialize.
func (g *Graph) Serialize() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := snapshot{
		Symbols: make([]core.Symbol, 0, len(g.symbols)),
		Edges:   make([]core.Edge, 0),
	}
	for _, s := range g.symbols {
		snap.Symbols = append(snap.Symbols, s)
	}
	for _, edges := range g.outEdges {
		snap.Edges = append(snap.Edges, edges...)
	}
	return json.Marshal(snap)
}

// Deserialize rebuilds a Graph from bytes produced by Serialize.
func Deserialize(data []byte) (*Graph, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	g := New()
	for _, s := range snap.Symbols {
		g.AddSymbol(s)
	}
	for _, e := range snap.Edges {
		g.AddEdge(e)
	}
	return g, nil
}
