// File: ./internal/repomanager/manager.go
// Package repomanager handles the persistent cloning and updating of Git repositories.
package repomanager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/sevigo/graphwarden/internal/config"
	"github.com/sevigo/graphwarden/internal/core"
	"github.com/sevigo/graphwarden/internal/gitutil"
	"github.com/sevigo/graphwarden/internal/storage"
)

// manager implements RepoManager.
type manager struct {
	cfg         *config.Config
	store       storage.Store
	vectorStore storage.VectorStore
	gitClient   *gitutil.Client
	logger      *slog.Logger
	repoMux     sync.Map // To lock operations on a per-repository basis
}

// RepoManager defines the contract for a service that manages local repository clones.
type RepoManager interface {
	// SyncRepo ensures a repository is cloned and up-to-date with the given SHA.
	// It returns the local path and lists of files that have changed since the last indexed SHA.
	SyncRepo(ctx context.Context, event *core.GitHubEvent, token string) (*core.UpdateResult, error)

	// ScanLocalRepo indexes a repository already present on disk (no GitHub
	// event, no clone): the CLI `scan` command's entry point.
	ScanLocalRepo(ctx context.Context, repoPath, repoFullName string, force bool) (*core.UpdateResult, error)

	// GetRepoRecord retrieves the repository's state from the database.
	GetRepoRecord(ctx context.Context, repoFullName string) (*storage.Repository, error)

	// UpdateRepoSHA updates the last indexed SHA for a repository.
	UpdateRepoSHA(ctx context.Context, repoFullName, newSHA string) error
}

// New creates a new RepoManager.
func New(cfg *config.Config, store storage.Store, vectorStore storage.VectorStore, gitClient *gitutil.Client, logger *slog.Logger) RepoManager {
	return &manager{
		cfg:         cfg,
		store:       store,
		vectorStore: vectorStore,
		gitClient:   gitClient,
		logger:      logger,
	}
}

// SyncRepo delegates to the per-repository-locked sync implementation in
// sync.go, using a mutex keyed by repo full name to prevent two concurrent
// reviews of the same repository from cloning or fetching at once.
func (m *manager) SyncRepo(ctx context.Context, event *core.GitHubEvent, token string) (*core.UpdateResult, error) {
	val, _ := m.repoMux.LoadOrStore(event.RepoFullName, &sync.Mutex{})
	mux := val.(*sync.Mutex)
	mux.Lock()
	defer mux.Unlock()

	return m.syncRepo(ctx, event, token)
}

// ScanLocalRepo delegates to scanLocalRepo (scan.go), the resumable local
// scan path used by the CLI when no GitHub token/webhook is involved.
func (m *manager) ScanLocalRepo(ctx context.Context, repoPath, repoFullName string, force bool) (*core.UpdateResult, error) {
	val, _ := m.repoMux.LoadOrStore(repoPath, &sync.Mutex{})
	mux := val.(*sync.Mutex)
	mux.Lock()
	defer mux.Unlock()

	return m.scanLocalRepo(ctx, repoPath, repoFullName, force)
}

// GetRepoRecord retrieves a repository's state from the database.
func (m *manager) GetRepoRecord(ctx context.Context, repoFullName string) (*storage.Repository, error) {
	return m.store.GetRepositoryByFullName(ctx, repoFullName)
}

// UpdateRepoSHA updates the last indexed SHA for a repository after a successful sync.
func (m *manager) UpdateRepoSHA(ctx context.Context, repoFullName, newSHA string) error {
	repo, err := m.store.GetRepositoryByFullName(ctx, repoFullName)
	if err != nil {
		return fmt.Errorf("failed to get repo for SHA update: %w", err)
	}
	if repo == nil {
		return fmt.Errorf("cannot update SHA for non-existent repo: %s", repoFullName)
	}
	repo.LastIndexedSHA = newSHA
	return m.store.UpdateRepository(ctx, repo)
}

// listRepoFiles walks repoPath, skipping directories named in
// cfg.Graph.IgnoredDirs (".git" is always skipped, even if the config is
// zero-valued) and files matching cfg.Graph.IgnoredPatterns, so a full index
// doesn't parse vendored or generated trees.
func (m *manager) listRepoFiles(repoPath string) ([]string, error) {
	ignoredDirs := map[string]bool{".git": true}
	var ignoredPatterns []string
	if m.cfg != nil {
		for _, d := range m.cfg.Graph.IgnoredDirs {
			ignoredDirs[d] = true
		}
		ignoredPatterns = m.cfg.Graph.IgnoredPatterns
	}

	var files []string
	err := filepath.WalkDir(repoPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != repoPath && ignoredDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if matchesIgnoredPattern(d.Name(), ignoredPatterns) {
			return nil
		}
		relPath, err := filepath.Rel(repoPath, path)
		if err != nil {
			return err
		}
		files = append(files, relPath)
		return nil
	})
	return files, err
}

// matchesIgnoredPattern reports whether name matches any of the given
// filepath.Match glob patterns (e.g. "*.min.js", "*_generated.go").
func matchesIgnoredPattern(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := filepath.Match(p, name); ok && err == nil {
			return true
		}
	}
	return false
}
