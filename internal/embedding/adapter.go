// Package embedding adapts the text-oriented goframe vector store
// (internal/storage.VectorStore, backed by Qdrant) to the symbol-keyed
// embed/search/upsert contract the indexer and retriever need. The
// underlying store only exposes AddDocuments/SimilaritySearch over
// schema.Document{PageContent, Metadata} and collection names — there is no
// raw-vector upsert or search, and no cosine score on the returned
// documents. This adapter keeps one Qdrant collection per (repoId, branch),
// stores the symbol id and file path as metadata, and uses a document's
// rank in the similarity result (rather than a fabricated score) as its
// ordering signal for the retriever's re-ranking step.
package embedding

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sevigo/goframe/embeddings"
	"github.com/sevigo/goframe/schema"

	"github.com/sevigo/graphwarden/internal/core"
	"github.com/sevigo/graphwarden/internal/storage"
)

// Neighbor is a semantic search hit: the matched symbol id and its rank
// position (0 = closest) in the similarity search result.
type Neighbor struct {
	SymbolID string
	FilePath string
	Rank     int
}

// Adapter embeds and indexes symbol text for one repository+branch pair.
type Adapter struct {
	store    storage.VectorStore
	embedder embeddings.Embedder
}

// New builds an Adapter over a shared VectorStore and Embedder. The
// embedder is only consulted indirectly: VectorStore.AddDocuments and
// SimilaritySearch invoke it internally via the goframe qdrant client.
func New(store storage.VectorStore, embedder embeddings.Embedder) *Adapter {
	return &Adapter{store: store, embedder: embedder}
}

// CollectionName derives the Qdrant collection for one repo+branch,
// mirroring the sanitisation repomanager already applies to collection
// names derived from free-form strings.
func CollectionName(repoID int64, branch string) string {
	safeBranch := sanitize(branch)
	return fmt.Sprintf("graph-%d-%s", repoID, safeBranch)
}

func sanitize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// UpsertSymbols embeds each symbol's EmbeddingText and upserts it into the
// repo+branch collection. AddDocuments is qdrant's upsert path: documents
// sharing an id overwrite the prior embedding, so re-indexing a changed
// symbol is just calling this again with its current text.
func (a *Adapter) UpsertSymbols(ctx context.Context, repoID int64, branch string, symbols []core.Symbol) error {
	if len(symbols) == 0 {
		return nil
	}
	collection := CollectionName(repoID, branch)
	docs := make([]schema.Document, 0, len(symbols))
	for _, s := range symbols {
		docs = append(docs, schema.Document{
			PageContent: s.EmbeddingText(),
			Metadata: map[string]any{
				"symbolId": s.ID,
				"filePath": s.FilePath,
				"repoId":   strconv.FormatInt(repoID, 10),
				"branch":   branch,
			},
		})
	}
	if err := a.store.AddDocuments(ctx, collection, docs); err != nil {
		return fmt.Errorf("embedding: upsert %d symbols: %w", len(symbols), err)
	}
	return nil
}

// SearchText finds the topK symbols whose embedding text is closest to
// query within one repo+branch collection.
func (a *Adapter) SearchText(ctx context.Context, repoID int64, branch, query string, topK int) ([]Neighbor, error) {
	if topK <= 0 {
		return nil, nil
	}
	collection := CollectionName(repoID, branch)
	docs, err := a.store.SimilaritySearch(ctx, collection, query, topK)
	if err != nil {
		return nil, fmt.Errorf("embedding: search: %w", err)
	}
	neighbors := make([]Neighbor, 0, len(docs))
	for rank, d := range docs {
		symbolID, _ := d.Metadata["symbolId"].(string)
		filePath, _ := d.Metadata["filePath"].(string)
		if symbolID == "" {
			continue
		}
		neighbors = append(neighbors, Neighbor{SymbolID: symbolID, FilePath: filePath, Rank: rank})
	}
	return neighbors, nil
}

// CommentsCollectionName names the shared prior-comment embedding space for
// one repository. Unlike symbol embeddings it is not branch-scoped: a
// comment posted on one branch's PR is still a useful example on another.
func CommentsCollectionName(repoID int64) string {
	return fmt.Sprintf("graph-%d-comments", repoID)
}

// UpsertComment embeds one posted review comment's body, keyed by its
// dedup id, into the repo's shared comment collection. Called by the
// feedback recorder once a comment is posted, so later reviews can find it
// as a prior example.
func (a *Adapter) UpsertComment(ctx context.Context, repoID int64, dedupID, body string) error {
	collection := CommentsCollectionName(repoID)
	doc := schema.Document{
		PageContent: body,
		Metadata: map[string]any{
			"symbolId": dedupID,
			"repoId":   strconv.FormatInt(repoID, 10),
		},
	}
	if err := a.store.AddDocuments(ctx, collection, []schema.Document{doc}); err != nil {
		return fmt.Errorf("embedding: upsert comment: %w", err)
	}
	return nil
}

// SearchComments finds the topK previously posted comments whose body is
// closest to query, across all branches of one repository. The returned
// Neighbor.SymbolID holds the comment's dedup id, not a symbol id.
func (a *Adapter) SearchComments(ctx context.Context, repoID int64, query string, topK int) ([]Neighbor, error) {
	if topK <= 0 {
		return nil, nil
	}
	collection := CommentsCollectionName(repoID)
	docs, err := a.store.SimilaritySearch(ctx, collection, query, topK)
	if err != nil {
		return nil, fmt.Errorf("embedding: search comments: %w", err)
	}
	neighbors := make([]Neighbor, 0, len(docs))
	for rank, d := range docs {
		dedupID, _ := d.Metadata["symbolId"].(string)
		if dedupID == "" {
			continue
		}
		neighbors = append(neighbors, Neighbor{SymbolID: dedupID, Rank: rank})
	}
	return neighbors, nil
}

// DeleteCollection drops every embedding for a repo+branch, used when a
// branch is deleted or the embedder model changes and every vector is
// stale.
func (a *Adapter) DeleteCollection(ctx context.Context, repoID int64, branch string) error {
	collection := CollectionName(repoID, branch)
	if err := a.store.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("embedding: delete collection %s: %w", collection, err)
	}
	return nil
}
