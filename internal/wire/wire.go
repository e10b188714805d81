//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"github.com/sevigo/graphwarden/internal/app"
	"github.com/sevigo/graphwarden/internal/config"
)

// InitializeApp wires the full dependency graph for the server binary.
// app.NewApp owns the concrete construction of every component (storage,
// graph cache, llm backend/embedder, orchestrator, dispatcher, server); this
// file exists only to document the provider set `go generate` (wire) would
// read. wire_gen.go is hand-maintained rather than generated.
func InitializeApp(ctx context.Context) (*app.App, func(), error) {
	wire.Build(
		app.NewApp,
		config.LoadConfig,
		provideLoggerConfig,
		provideLogWriter,
		provideDefaultSlogLogger,
	)
	return &app.App{}, nil, nil
}
