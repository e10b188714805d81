// Package llm wraps the goframe model providers behind the narrow
// generation and tokenization contracts the review orchestrator and
// retriever depend on.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sevigo/goframe/llms"
	"github.com/sevigo/goframe/llms/gemini"
	"github.com/sevigo/goframe/llms/ollama"

	"github.com/sevigo/graphwarden/internal/config"
)

// Backend generates a single completion for a prompt. It is the review
// orchestrator's sole dependency on a concrete model provider.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type modelBackend struct {
	model   llms.Model
	timeout time.Duration
}

// NewBackend selects a provider per cfg.AI.LLMProvider, matching the
// provider-switch idiom used to build the generator model.
func NewBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Backend, error) {
	model, err := newGeneratorModel(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &modelBackend{model: model, timeout: 2 * time.Minute}, nil
}

func newGeneratorModel(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llms.Model, error) {
	switch cfg.AI.LLMProvider {
	case "gemini":
		if cfg.AI.GeminiAPIKey == "" {
			return nil, fmt.Errorf("ai.gemini_api_key is not set for gemini provider")
		}
		return gemini.New(ctx,
			gemini.WithModel(cfg.AI.GeneratorModel),
			gemini.WithAPIKey(cfg.AI.GeminiAPIKey),
		)
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(cfg.AI.OllamaHost),
			ollama.WithHTTPClient(newOllamaHTTPClient()),
			ollama.WithModel(cfg.AI.GeneratorModel),
			ollama.WithLogger(logger),
		)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.AI.LLMProvider)
	}
}

// Generate invokes the model with a hard wall-clock timeout so a single
// stuck review job can't wedge the worker pool. The goroutine is left to
// finish in the background on timeout rather than blocked on; its result
// lands in the one-slot buffered channel, which nobody reads after a
// timeout, so the send never blocks.
func (b *modelBackend) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		text, err := b.model.Call(ctx, prompt)
		resultCh <- result{text, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return "", fmt.Errorf("llm backend: generate: %w", r.err)
		}
		return r.text, nil
	case <-ctx.Done():
		return "", fmt.Errorf("llm backend: generate: %w", ctx.Err())
	}
}

func newOllamaHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: 15 * time.Minute}
}
