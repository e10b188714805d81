package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/sevigo/graphwarden/internal/app"
	"github.com/sevigo/graphwarden/internal/core"
	"github.com/sevigo/graphwarden/internal/graph"
	"github.com/sevigo/graphwarden/internal/indexer"
	"github.com/sevigo/graphwarden/internal/repomanager"
	"github.com/sevigo/graphwarden/internal/storage"
	"github.com/sevigo/graphwarden/internal/wire"
)

func initializeAppCmd() tea.Cmd {
	return func() tea.Msg {
		app, cleanup, err := wire.InitializeApp(context.Background())
		if err != nil {
			return appInitializedMsg{err: err}
		}

		if err := app.Cfg.ValidateForCLI(); err != nil {
			cleanup()
			return appInitializedMsg{err: fmt.Errorf("cli configuration validation failed: %w", err)}
		}

		return appInitializedMsg{app: app}
	}
}

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParsing  = errors.New("config parsing failed")
)

// loadRepoConfig loads and parses the .graphwarden.yml file from a repository path.
func loadRepoConfig(repoPath string) (*core.RepoConfig, error) {
	configPath := filepath.Join(repoPath, ".graphwarden.yml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return core.DefaultRepoConfig(), ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read .graphwarden.yml: %w", err)
	}
	config := core.DefaultRepoConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigParsing, err)
	}
	return config, nil
}

func scanRepoCmd(app *app.App, path, repoFullName string, force bool) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		updateResult, err := app.RepoMgr.ScanLocalRepo(ctx, path, repoFullName, force)
		if err != nil {
			return errorMsg{err}
		}

		if _, err := loadRepoConfig(updateResult.RepoPath); err != nil {
			if os.IsNotExist(err) || errors.Is(err, ErrConfigNotFound) {
				slog.Info("no .graphwarden.yml found, using defaults", "repo", updateResult.RepoFullName)
			} else {
				slog.Warn("failed to parse .graphwarden.yml, using defaults", "error", err, "repo", updateResult.RepoFullName)
			}
		}

		repoRecord, err := app.RepoMgr.GetRepoRecord(ctx, updateResult.RepoFullName)
		if err != nil {
			return errorMsg{err}
		}
		collectionName := repoRecord.QdrantCollectionName

		branch := "HEAD"
		if repoObj, openErr := app.GitClient.Open(updateResult.RepoPath); openErr == nil {
			if head, headErr := repoObj.Head(); headErr == nil && head.Name().IsBranch() {
				branch = head.Name().Short()
			}
		}

		switch {
		case updateResult.IsInitialClone:
			ix := indexer.New(repoRecord.ID, branch, updateResult.RepoPath, graph.New(), app.GraphStore, app.Embedder, app.ParserRegistry, app.Cfg.Indexer, slog.Default())
			err = ix.Full(ctx, updateResult.FilesToAddOrUpdate)
		case len(updateResult.FilesToAddOrUpdate) > 0 || len(updateResult.FilesToDelete) > 0:
			g := graph.New()
			if snapshot, snapErr := app.GraphStore.GetSnapshot(ctx, repoRecord.ID, branch); snapErr == nil && len(snapshot) > 0 {
				if loaded, loadErr := graph.Deserialize(snapshot); loadErr == nil {
					g = loaded
				}
			}
			ix := indexer.New(repoRecord.ID, branch, updateResult.RepoPath, g, app.GraphStore, app.Embedder, app.ParserRegistry, app.Cfg.Indexer, slog.Default())
			changed := append(append([]string{}, updateResult.FilesToAddOrUpdate...), updateResult.FilesToDelete...)
			err = ix.SyncIncremental(changed)
		}
		if err != nil {
			return errorMsg{err}
		}
		if err := app.RepoMgr.UpdateRepoSHA(ctx, updateResult.RepoFullName, updateResult.HeadSHA); err != nil {
			return errorMsg{err}
		}
		return scanCompleteMsg{
			repoPath:       path,
			repoFullName:   updateResult.RepoFullName,
			collectionName: collectionName,
		}
	}
}

func addRepoCmd(app *app.App, fullName, path string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		existingRepo, err := app.Store.GetRepositoryByFullName(ctx, fullName)
		if err != nil {
			return repoAddedMsg{err: fmt.Errorf("failed to check for existing repository: %w", err)}
		}
		if existingRepo != nil {
			return repoAddedMsg{err: fmt.Errorf("repository '%s' is already registered", fullName)}
		}
		collectionName := repomanager.GenerateCollectionName(fullName, app.Cfg.AI.EmbedderModel)
		newRepo := &storage.Repository{
			FullName:             fullName,
			ClonePath:            path,
			QdrantCollectionName: collectionName,
			EmbedderModelName:    app.Cfg.AI.EmbedderModel,
		}
		if err := app.Store.CreateRepository(ctx, newRepo); err != nil {
			return repoAddedMsg{err: fmt.Errorf("failed to create repository record: %w", err)}
		}
		return repoAddedMsg{repoFullName: fullName, repoPath: path}
	}
}

func loadReposCmd(app *app.App) tea.Cmd {
	return func() tea.Msg {
		repos, err := app.Store.GetAllRepositories(context.Background())
		return reposLoadedMsg{repos: repos, err: err}
	}
}
