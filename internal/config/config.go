package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sevigo/graphwarden/internal/logger"
	"github.com/spf13/viper"
)

const (
	llmProviderGemini = "gemini"
)

// Config represents the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	AI       AIConfig       `mapstructure:"ai"`
	Database DBConfig       `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  logger.Config  `mapstructure:"logging"`
	Features FeaturesConfig `mapstructure:"features"`
	Review   ReviewConfig   `mapstructure:"review"`
	Graph    GraphConfig    `mapstructure:"graph"`
	Feedback FeedbackConfig `mapstructure:"feedback"`
	Indexer  IndexerConfig  `mapstructure:"indexer"`
}

// ReviewConfig governs the review orchestrator's prompt assembly and
// precision filter (spec §4.6).
type ReviewConfig struct {
	MaxDiffSize        int     `mapstructure:"max_diff_size"`
	PrecisionThreshold float64 `mapstructure:"precision_threshold"`
	// Depth is one of "fast", "standard" or "deep" and controls how many
	// BFS hops the retriever walks and whether it runs semantic search.
	Depth string `mapstructure:"depth"`
}

// GraphConfig governs which files the symbol graph ignores during indexing.
type GraphConfig struct {
	IgnoredDirs     []string `mapstructure:"ignored_dirs"`
	IgnoredPatterns []string `mapstructure:"ignored_patterns"`
}

// FeedbackConfig governs the HMAC-signed accept/reject links appended to
// posted comments.
type FeedbackConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Secret  string `mapstructure:"secret"`
}

// IndexerConfig governs batch sizes and the diff engine's fallback bound.
type IndexerConfig struct {
	EmbeddingBatchSize     int `mapstructure:"embedding_batch_size"`
	MyersEditDistanceLimit int `mapstructure:"myers_edit_distance_limit"`
}

type ServerConfig struct {
	Port             string `mapstructure:"port"`
	MaxWorkers       int    `mapstructure:"max_workers"`
	FastAPIServerURL string `mapstructure:"fastapi_server_url"`
	SharedSecret     string `mapstructure:"shared_secret"`
	Theme            string `mapstructure:"theme"`
}

type GitHubConfig struct {
	AppID          int64  `mapstructure:"app_id"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
	Token          string `mapstructure:"token"` // For CLI or preload
}

type AIConfig struct {
	LLMProvider          string `mapstructure:"llm_provider"`
	EmbedderProvider     string `mapstructure:"embedder_provider"`
	OllamaHost           string `mapstructure:"ollama_host"`
	GeminiAPIKey         string `mapstructure:"gemini_api_key"`
	GeneratorModel       string `mapstructure:"generator_model"`
	EmbedderModel        string `mapstructure:"embedder_model"`
	EmbedderTask         string `mapstructure:"embedder_task_description"`
	MaxConcurrentReviews int    `mapstructure:"max_concurrent_reviews"`
}

func (c *AIConfig) Validate() error {
	if strings.TrimSpace(c.LLMProvider) == "" {
		return errors.New("ai.llm_provider is required")
	}
	if strings.TrimSpace(c.EmbedderProvider) == "" {
		return errors.New("ai.embedder_provider is required")
	}
	return nil
}

type StorageConfig struct {
	QdrantHost string `mapstructure:"qdrant_host"`
	RepoPath   string `mapstructure:"repo_path"`
}

type FeaturesConfig struct {
	EnableBinaryQuantization bool `mapstructure:"enable_binary_quantization"`
	EnableGraphAnalysis      bool `mapstructure:"enable_graph_analysis"`
}

type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// LoadConfig loads the configuration using Viper with the hierarchy:
// Flags (handled by caller) > Env Vars > Config File > Defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Set Defaults
	setDefaults(v)

	// 2. Read Config File
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
	v.AddConfigPath(".")      // optionally look for config in the working directory
	v.AddConfigPath("$HOME/.graphwarden")

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			// Config file was found but another error occurred (e.g., syntax error)
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		slog.Info("No config file found, using defaults and environment variables")
	} else {
		slog.Info("Loaded configuration", "file", v.ConfigFileUsed())
	}

	// 3. Environment Variables (Automatic mapping)
	// Map env vars like SERVER_PORT to server.port
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Unmarshal
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Post-process / construct derived values if needed (e.g., DSN)
	// (Note: DSN construction logic moved to where it's used or handled here if purely config-derived)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.max_workers", 5)
	v.SetDefault("server.fastapi_server_url", "http://127.0.0.1:8000")

	// GitHub
	v.SetDefault("github.private_key_path", "keys/graphwarden-app.private-key.pem")
	v.SetDefault("github.token", "")

	// AI
	v.SetDefault("ai.llm_provider", "ollama")
	v.SetDefault("ai.embedder_provider", "ollama")
	v.SetDefault("ai.ollama_host", "http://localhost:11434")
	v.SetDefault("ai.embedder_model", "nomic-embed-text")
	v.SetDefault("ai.embedder_task_description", "search_document")
	v.SetDefault("ai.max_concurrent_reviews", 5)

	// Review
	v.SetDefault("review.max_diff_size", 50000)
	v.SetDefault("review.precision_threshold", 0.7)
	v.SetDefault("review.depth", "standard")

	// Graph
	v.SetDefault("graph.ignored_dirs", []string{
		".git", "node_modules", "vendor", "dist", "build",
		".next", "__pycache__", "coverage", ".turbo", "target",
	})
	v.SetDefault("graph.ignored_patterns", []string{"*.min.js", "*.pb.go", "*_generated.go"})

	// Feedback
	v.SetDefault("feedback.base_url", "")
	v.SetDefault("feedback.secret", "")

	// Indexer
	v.SetDefault("indexer.embedding_batch_size", 32)
	v.SetDefault("indexer.myers_edit_distance_limit", 8000)

	// Storage
	v.SetDefault("storage.qdrant_host", "localhost:6334")
	v.SetDefault("storage.repo_path", "./data/repos")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	// Database
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "graphwarden")
	v.SetDefault("database.username", "postgres")
	// Password has no default
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "5m")

	// Features
	v.SetDefault("features.enable_binary_quantization", true)
	v.SetDefault("features.enable_graph_analysis", true)
}

func (c *Config) ValidateForServer() error {
	if c.GitHub.AppID == 0 {
		return errors.New("github.app_id is required")
	}
	if c.GitHub.WebhookSecret == "" {
		return errors.New("github.webhook_secret is required")
	}
	if _, err := os.Stat(c.GitHub.PrivateKeyPath); os.IsNotExist(err) {
		return fmt.Errorf("github private key not found at path: %s", c.GitHub.PrivateKeyPath)
	}
	if (c.AI.LLMProvider == llmProviderGemini || c.AI.EmbedderProvider == llmProviderGemini) && c.AI.GeminiAPIKey == "" {
		return errors.New("ai.gemini_api_key is required for gemini provider")
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai config invalid: %w", err)
	}
	return nil
}

func (c *Config) ValidateForCLI() error {
	if (c.AI.LLMProvider == llmProviderGemini || c.AI.EmbedderProvider == llmProviderGemini) && c.AI.GeminiAPIKey == "" {
		return errors.New("ai.gemini_api_key is required for gemini provider")
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai config invalid: %w", err)
	}
	return nil
}

func (db *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host,
		db.Port,
		db.Username,
		db.Password,
		db.Database,
		db.SSLMode,
	)
}
