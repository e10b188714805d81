// Package retriever assembles a review context from a raw unified diff: the
// symbols a diff touches, their structural neighbourhood in the symbol
// graph, optionally their semantic neighbours, and prior feedback-rated
// comments that look similar. The Orchestrator serialises the result into
// the prompt it sends the LLM backend.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sevigo/graphwarden/internal/core"
	"github.com/sevigo/graphwarden/internal/embedding"
	"github.com/sevigo/graphwarden/internal/graph"
	"github.com/sevigo/graphwarden/internal/storage"
)

// Depth selects how many BFS hops the retriever walks and whether it runs
// semantic search, matching internal/config.ReviewConfig.Depth.
type Depth string

const (
	DepthFast     Depth = "fast"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

// hops returns the caller-BFS depth for d. Callee BFS is always 1 hop
// regardless of depth, per spec.
func (d Depth) hops() int {
	switch d {
	case DepthFast:
		return 1
	case DepthDeep:
		return 2
	default:
		return 2
	}
}

const (
	semanticTopK  = 10
	priorExampleK = 8
	maxAccepted   = 5
	maxRejected   = 3
	diffEmbedCap  = 8000
)

// Context is the review-context bundle the orchestrator folds into its
// prompt. Fields mirror spec §4.4 exactly so String (render.go) can reproduce its
// "Codebase Context" markdown section one-to-one.
type Context struct {
	ChangedSymbols    []core.Symbol
	Callers           []core.Symbol
	Callees           []core.Symbol
	BlastRadius       core.BlastRadius
	SemanticNeighbors []core.Symbol
	PriorExamples     []storage.ExistingReviewComment
	RejectedExamples  []storage.ExistingReviewComment
}

// Retriever builds a Context for one loaded (repoId, branch) graph. It
// satisfies internal/cache.Retriever.
type Retriever struct {
	repoID       int64
	branch       string
	repoFullName string
	depth        Depth

	graph    *graph.Graph
	store    storage.GraphStore
	embedder *embedding.Adapter
	logger   *slog.Logger
}

// New builds a Retriever. embedder may be nil: semantic neighbours and
// prior/rejected examples then degrade to empty lists, same as if no rated
// comments existed yet.
func New(repoID int64, branch, repoFullName string, depth Depth, g *graph.Graph, store storage.GraphStore, embedder *embedding.Adapter, logger *slog.Logger) *Retriever {
	if g == nil || store == nil || logger == nil {
		panic("retriever: graph, store and logger are required")
	}
	return &Retriever{
		repoID:       repoID,
		branch:       branch,
		repoFullName: repoFullName,
		depth:        depth,
		graph:        g,
		store:        store,
		embedder:     embedder,
		logger:       logger,
	}
}

// BuildContext implements cache.Retriever. It never returns a nil *Context
// on success, even when the diff touches no known symbol — an empty
// Context still renders (as an empty "Codebase Context" section) so the
// orchestrator can always call String unconditionally.
func (r *Retriever) BuildContext(diff string) (any, error) {
	ctx := context.Background()

	paths := changedPaths(diff)
	changed := r.changedSymbols(paths)

	hops := r.depth.hops()
	callers := r.unionCallers(changed, hops)
	callees := r.unionCallees(changed, 1)
	blast := r.graph.GetBlastRadius(idsOf(changed))

	result := &Context{
		ChangedSymbols: changed,
		Callers:        callers,
		Callees:        callees,
		BlastRadius:    blast,
	}

	if r.depth == DepthDeep && r.embedder != nil && len(changed) > 0 {
		neighbors, err := r.semanticNeighbors(ctx, changed, callers, callees)
		if err != nil {
			r.logger.Warn("retriever: semantic neighbor search failed, continuing without it", "error", err)
		} else {
			result.SemanticNeighbors = neighbors
		}
	}

	prior, rejected, err := r.priorExamples(ctx, diff)
	if err != nil {
		r.logger.Warn("retriever: prior example search failed, continuing without it", "error", err)
	} else {
		result.PriorExamples = prior
		result.RejectedExamples = rejected
	}

	return result, nil
}

func (r *Retriever) changedSymbols(paths []string) []core.Symbol {
	var out []core.Symbol
	for _, p := range paths {
		out = append(out, r.graph.SymbolsInFile(p)...)
	}
	return out
}

func (r *Retriever) unionCallers(symbols []core.Symbol, hops int) []core.Symbol {
	seen := map[string]struct{}{}
	var out []core.Symbol
	for _, s := range symbols {
		for _, c := range r.graph.GetCallers(s.ID, hops) {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func (r *Retriever) unionCallees(symbols []core.Symbol, hops int) []core.Symbol {
	seen := map[string]struct{}{}
	var out []core.Symbol
	for _, s := range symbols {
		for _, c := range r.graph.GetCallees(s.ID, hops) {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// semanticNeighbors implements spec §4.4 step 6. The underlying vector
// store only exposes text similarity search, not raw vector averaging, so
// instead of embedding each changed symbol and averaging the vectors this
// concatenates their embedding text into one query and searches with that
// — a single combined text query stands in for the averaged vector.
func (r *Retriever) semanticNeighbors(ctx context.Context, changed, callers, callees []core.Symbol) ([]core.Symbol, error) {
	var sb strings.Builder
	for _, s := range changed {
		sb.WriteString(s.EmbeddingText())
		sb.WriteString("\n")
	}

	hits, err := r.embedder.SearchText(ctx, r.repoID, r.branch, sb.String(), semanticTopK)
	if err != nil {
		return nil, err
	}

	excluded := map[string]struct{}{}
	for _, s := range changed {
		excluded[s.ID] = struct{}{}
	}
	for _, s := range callers {
		excluded[s.ID] = struct{}{}
	}
	for _, s := range callees {
		excluded[s.ID] = struct{}{}
	}

	hop1, hop2 := r.hopSets(changed)

	type scored struct {
		symbol core.Symbol
		score  float64
	}
	var candidates []scored
	for _, h := range hits {
		if _, skip := excluded[h.SymbolID]; skip {
			continue
		}
		sym, ok := r.graph.Symbol(h.SymbolID)
		if !ok {
			continue
		}
		sim := rankToSimilarity(h.Rank)
		dist := graphDistance(hop1, hop2, h.SymbolID)
		combined := sim * (1.0 / float64(dist+1))
		candidates = append(candidates, scored{symbol: sym, score: combined})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	out := make([]core.Symbol, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.symbol)
	}
	return out, nil
}

// rankToSimilarity turns a 0-indexed search rank into a similarity-like
// score in (0,1], since the underlying store returns ranked documents, not
// a cosine distance. Rank 0 (closest) maps to 1.0 and each subsequent rank
// decays, preserving the store's own ordering through the re-rank step.
func rankToSimilarity(rank int) float64 {
	return 1.0 / float64(rank+1)
}

// hopSets computes, for a set of changed symbols, the set of ids reachable
// within 1 hop and within 2 hops (via either in- or out-edges), used to
// score semantic neighbours by graph distance without a dedicated shortest
// path primitive.
func (r *Retriever) hopSets(changed []core.Symbol) (hop1, hop2 map[string]struct{}) {
	hop1 = map[string]struct{}{}
	hop2 = map[string]struct{}{}
	for _, s := range changed {
		for _, n := range r.graph.GetCallers(s.ID, 1) {
			hop1[n.ID] = struct{}{}
		}
		for _, n := range r.graph.GetCallees(s.ID, 1) {
			hop1[n.ID] = struct{}{}
		}
		for _, n := range r.graph.GetCallers(s.ID, 2) {
			hop2[n.ID] = struct{}{}
		}
		for _, n := range r.graph.GetCallees(s.ID, 2) {
			hop2[n.ID] = struct{}{}
		}
	}
	return hop1, hop2
}

func graphDistance(hop1, hop2 map[string]struct{}, id string) int {
	if _, ok := hop1[id]; ok {
		return 1
	}
	if _, ok := hop2[id]; ok {
		return 2
	}
	return 3
}

// priorExamples implements spec §4.4 step 7: embed the diff (capped at
// 8000 characters) and find previously posted comments that look similar,
// split into accepted and rejected examples by their feedback signal.
func (r *Retriever) priorExamples(ctx context.Context, diff string) (accepted, rejected []storage.ExistingReviewComment, err error) {
	if r.embedder == nil {
		return nil, nil, nil
	}

	query := diff
	if len(query) > diffEmbedCap {
		query = query[:diffEmbedCap]
	}

	neighbors, err := r.embedder.SearchComments(ctx, r.repoID, query, priorExampleK)
	if err != nil {
		return nil, nil, err
	}
	if len(neighbors) == 0 {
		return nil, nil, nil
	}

	rated, err := r.store.GetRatedComments(ctx, r.repoFullName)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]storage.ExistingReviewComment, len(rated))
	for _, c := range rated {
		byID[c.DedupID] = c
	}

	for _, n := range neighbors {
		c, ok := byID[n.SymbolID]
		if !ok || c.Signal == nil {
			continue
		}
		switch *c.Signal {
		case "accepted":
			if len(accepted) < maxAccepted {
				accepted = append(accepted, stripFeedbackArtifacts(c))
			}
		case "rejected":
			if len(rejected) < maxRejected {
				rejected = append(rejected, stripFeedbackArtifacts(c))
			}
		}
	}
	return accepted, rejected, nil
}

// stripFeedbackArtifacts removes the 👍/👎 feedback-link markup appended to
// a posted comment's body before it's replayed to the LLM as an example.
func stripFeedbackArtifacts(c storage.ExistingReviewComment) storage.ExistingReviewComment {
	if idx := strings.Index(c.Body, "\n\n---\n"); idx != -1 {
		c.Body = c.Body[:idx]
	}
	return c
}

func idsOf(symbols []core.Symbol) []string {
	ids := make([]string, len(symbols))
	for i, s := range symbols {
		ids[i] = s.ID
	}
	return ids
}

var _ fmt.Stringer = (*Context)(nil)
