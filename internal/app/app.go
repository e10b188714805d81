// Package app initializes and orchestrates the main components of the GraphWarden application.
// It wires together the configuration, server, and other services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sevigo/graphwarden/internal/cache"
	"github.com/sevigo/graphwarden/internal/config"
	"github.com/sevigo/graphwarden/internal/core"
	"github.com/sevigo/graphwarden/internal/db"
	"github.com/sevigo/graphwarden/internal/embedding"
	"github.com/sevigo/graphwarden/internal/feedback"
	"github.com/sevigo/graphwarden/internal/gitutil"
	"github.com/sevigo/graphwarden/internal/jobs"
	"github.com/sevigo/graphwarden/internal/llm"
	"github.com/sevigo/graphwarden/internal/orchestrator"
	"github.com/sevigo/graphwarden/internal/parser"
	"github.com/sevigo/graphwarden/internal/repomanager"
	"github.com/sevigo/graphwarden/internal/server"
	"github.com/sevigo/graphwarden/internal/storage"
)

// App holds the main application components. The CLI and terminal UI use
// the exported fields directly (e.g. to drive an ad hoc Indexer run or
// invoke the orchestrator's Job interface outside of the HTTP dispatcher);
// the server binary only needs Start/Stop.
type App struct {
	Store          storage.Store
	GraphStore     storage.GraphStore
	VectorStore    storage.VectorStore
	RepoMgr        repomanager.RepoManager
	Cache          *cache.Cache
	GitClient      *gitutil.Client
	Embedder       *embedding.Adapter
	ParserRegistry *parser.Registry
	Backend        llm.Backend
	Signer         *feedback.Signer
	ReviewJob      core.Job
	Cfg            *config.Config

	logger     *slog.Logger
	server     *server.Server
	dispatcher core.JobDispatcher
}

// NewApp sets up the application with all its dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, func(), error) {
	logger.Info("initializing GraphWarden application",
		"llm_provider", cfg.AI.LLMProvider,
		"embedder_provider", cfg.AI.EmbedderProvider,
		"generator_model", cfg.AI.GeneratorModel,
		"embedder_model", cfg.AI.EmbedderModel,
		"max_workers", cfg.Server.MaxWorkers,
		"repo_path", cfg.Storage.RepoPath,
	)

	dbConn, dbCleanup, err := initDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(dbConn.DB)
	graphStore, ok := store.(storage.GraphStore)
	if !ok {
		dbCleanup()
		return nil, nil, errors.New("storage: configured store does not implement GraphStore")
	}

	gitClient := gitutil.NewClient(logger.With("component", "gitutil"))

	backend, err := llm.NewBackend(ctx, cfg, logger)
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to create llm backend: %w", err)
	}
	embedder, err := llm.NewEmbedder(ctx, cfg, logger)
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	vectorStore := storage.NewQdrantVectorStore(cfg.Storage.QdrantHost, embedder, logger)
	embeddingAdapter := embedding.New(vectorStore, embedder)

	repoManager := repomanager.New(cfg, store, vectorStore, gitClient, logger)
	parserRegistry := parser.NewRegistry()
	graphCache := cache.New()

	signer := feedback.New(cfg.Feedback)
	feedbackRecorder := feedback.NewRecorder(signer, graphStore, logger)

	reviewJob := orchestrator.New(cfg, store, graphStore, graphCache, embeddingAdapter, parserRegistry, backend, signer, logger)

	// TODO(follow-up): Initialize and start the repository cleanup service (janitor).
	// This service will periodically scan for and delete old/unused repositories
	// and their associated Qdrant collections to manage long-term resource usage.

	dispatcher := jobs.NewDispatcher(reviewJob, cfg.Server.MaxWorkers, logger)
	httpServer := server.NewServer(ctx, cfg, dispatcher, feedbackRecorder, logger)

	logger.Info("GraphWarden application initialized successfully")
	return &App{
			Store:          store,
			GraphStore:     graphStore,
			VectorStore:    vectorStore,
			RepoMgr:        repoManager,
			Cache:          graphCache,
			GitClient:      gitClient,
			Embedder:       embeddingAdapter,
			ParserRegistry: parserRegistry,
			Backend:        backend,
			Signer:         signer,
			ReviewJob:      reviewJob,
			logger:         logger,
			server:         httpServer,
			dispatcher:     dispatcher,
			Cfg:            cfg,
		}, func() {
			dbCleanup()
		}, nil
}

// Start runs the HTTP server.
func (a *App) Start() error {
	a.logger.Info("starting GraphWarden",
		"server_port", a.Cfg.Server.Port,
		"max_workers", a.Cfg.Server.MaxWorkers)

	if err := a.server.Start(); err != nil {
		a.logger.Error("failed to start HTTP server", "error", err)
		return err
	}
	return nil
}

// Stop shuts down the application cleanly.
func (a *App) Stop() error {
	var shutdownErr error
	a.logger.Info("shutting down GraphWarden services")

	// Stop the job dispatcher, allowing in-flight jobs to finish.
	a.dispatcher.Stop()

	// Stop the HTTP server to prevent new incoming requests.
	if a.server != nil {
		if serverErr := a.server.Stop(); serverErr != nil {
			a.logger.Error("error during HTTP server shutdown", "error", serverErr)
			shutdownErr = errors.Join(shutdownErr, serverErr)
		}
	}

	if shutdownErr != nil {
		a.logger.Error("GraphWarden stopped with errors", "error", shutdownErr)
	} else {
		a.logger.Info("GraphWarden stopped successfully")
	}
	return shutdownErr
}

// initDatabase connects to the DB; NewDatabase applies pending migrations itself.
func initDatabase(cfg *config.DBConfig) (*db.DB, func(), error) {
	dbConn, cleanup, err := db.NewDatabase(cfg)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to connect to database: %w", err)
	}
	return dbConn, cleanup, nil
}
