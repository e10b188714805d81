package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/goframe/embeddings"
	"github.com/sevigo/goframe/llms/gemini"
	"github.com/sevigo/goframe/llms/ollama"

	"github.com/sevigo/graphwarden/internal/config"
)

// NewEmbedder selects an embedding provider per cfg.AI.EmbedderProvider. The
// indexer uses it to embed symbol signatures in batches of
// cfg.Indexer.EmbeddingBatchSize; the retriever's deep mode uses it to embed
// the diff query for semantic neighbor search.
func NewEmbedder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (embeddings.Embedder, error) {
	switch cfg.AI.EmbedderProvider {
	case "gemini":
		model, err := gemini.New(ctx,
			gemini.WithEmbeddingModel(cfg.AI.EmbedderModel),
			gemini.WithAPIKey(cfg.AI.GeminiAPIKey),
		)
		if err != nil {
			return nil, fmt.Errorf("embedder: gemini: %w", err)
		}
		return embeddings.NewEmbedder(model)
	case "ollama":
		model, err := ollama.New(
			ollama.WithServerURL(cfg.AI.OllamaHost),
			ollama.WithHTTPClient(newOllamaHTTPClient()),
			ollama.WithModel(cfg.AI.EmbedderModel),
			ollama.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("embedder: ollama: %w", err)
		}
		return embeddings.NewEmbedder(model)
	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s", cfg.AI.EmbedderProvider)
	}
}
