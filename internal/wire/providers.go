package wire

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/wire"

	"github.com/sevigo/graphwarden/internal/app"
	"github.com/sevigo/graphwarden/internal/config"
	"github.com/sevigo/graphwarden/internal/logger"
)

// AppSet is the provider set an actual `wire` run would consume. Every
// component below app.NewApp itself (storage, graph cache, llm backend,
// orchestrator, dispatcher, server) is constructed inside NewApp, since the
// graph-aware pipeline's wiring is too interdependent (cache entries close
// over the indexer/retriever pair for their own repo+branch) to express as
// flat wire providers.
var AppSet = wire.NewSet(
	app.NewApp,
	config.LoadConfig,
	provideLoggerConfig,
	provideLogWriter,
	provideDefaultSlogLogger,
)

func provideLoggerConfig(cfg *config.Config) logger.Config {
	return cfg.Logging
}

func provideLogWriter(cfg *config.Config) io.Writer {
	switch cfg.Logging.Output {
	case "stderr":
		return os.Stderr
	case "file":
		f, _ := os.OpenFile("graphwarden.log", os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		return f
	default:
		return os.Stdout
	}
}

func provideDefaultSlogLogger(loggerConfig logger.Config, writer io.Writer) *slog.Logger {
	l := logger.NewLogger(loggerConfig, writer)
	slog.SetDefault(l)
	return l
}
