package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sevigo/graphwarden/internal/graph"
	"github.com/sevigo/graphwarden/internal/indexer"
	"github.com/sevigo/graphwarden/internal/wire"
)

var (
	repoFullName string
	forceScan    bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a local git repository.",
	Long:  `Scans a local git repository at the given path, updating the vector store with any changes.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		repoPath := args[0]
		slog.Info("Scanning local repository", "path", repoPath, "force", forceScan)

		// Use a context with a timeout for robustness in a long-running CLI command.
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()

		app, cleanup, err := wire.InitializeApp(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer cleanup()

		// 1. Scan the local repo to get the list of changed files.
		// The `forceScan` flag will ensure this result comes back with IsInitialClone=true
		// if a full re-index is needed.
		updateResult, err := app.RepoMgr.ScanLocalRepo(ctx, repoPath, repoFullName, forceScan)
		if err != nil {
			return fmt.Errorf("failed to scan local repository: %w", err)
		}
		slog.Info("Local repository scan complete", "repo", updateResult.RepoFullName, "head_sha", updateResult.HeadSHA)

		// 2. Get repository record to find its ID and branch.
		repoRecord, err := app.RepoMgr.GetRepoRecord(ctx, updateResult.RepoFullName)
		if err != nil {
			return fmt.Errorf("failed to retrieve repository record: %w", err)
		}
		if repoRecord == nil {
			return fmt.Errorf("repository record is unexpectedly nil for %s", updateResult.RepoFullName)
		}

		branch := "HEAD"
		if repoObj, openErr := app.GitClient.Open(updateResult.RepoPath); openErr == nil {
			if head, headErr := repoObj.Head(); headErr == nil && head.Name().IsBranch() {
				branch = head.Name().Short()
			}
		}

		// 3. Build or update the symbol graph and embeddings for the changed files.
		slog.Info("Updating symbol graph", "repo", updateResult.RepoFullName, "branch", branch, "is_full_scan", updateResult.IsInitialClone)
		switch {
		case updateResult.IsInitialClone:
			slog.Info("Performing initial full indexing")
			ix := indexer.New(repoRecord.ID, branch, updateResult.RepoPath, graph.New(), app.GraphStore, app.Embedder, app.ParserRegistry, app.Cfg.Indexer, slog.Default())
			err = ix.Full(ctx, updateResult.FilesToAddOrUpdate)
		case len(updateResult.FilesToAddOrUpdate) > 0 || len(updateResult.FilesToDelete) > 0:
			slog.Info("Performing incremental indexing",
				"add_or_update", len(updateResult.FilesToAddOrUpdate),
				"delete", len(updateResult.FilesToDelete),
			)
			g := graph.New()
			if snapshot, snapErr := app.GraphStore.GetSnapshot(ctx, repoRecord.ID, branch); snapErr == nil && len(snapshot) > 0 {
				if loaded, loadErr := graph.Deserialize(snapshot); loadErr == nil {
					g = loaded
				} else {
					slog.Warn("failed to deserialize existing graph snapshot, rebuilding from empty graph", "error", loadErr)
				}
			}
			ix := indexer.New(repoRecord.ID, branch, updateResult.RepoPath, g, app.GraphStore, app.Embedder, app.ParserRegistry, app.Cfg.Indexer, slog.Default())
			changed := append(append([]string{}, updateResult.FilesToAddOrUpdate...), updateResult.FilesToDelete...)
			err = ix.SyncIncremental(changed)
		default:
			slog.Info("No file changes detected, skipping vector store update.")
		}
		if err != nil {
			return fmt.Errorf("failed to update symbol graph: %w", err)
		}

		// 5. Update the last indexed SHA in the database to the new HEAD SHA.
		// This is the *only* place this should happen to ensure data consistency.
		slog.Info("Updating last indexed SHA in database", "sha", updateResult.HeadSHA)
		if err := app.RepoMgr.UpdateRepoSHA(ctx, updateResult.RepoFullName, updateResult.HeadSHA); err != nil {
			return fmt.Errorf("CRITICAL: vector store updated but failed to update SHA in database: %w", err)
		}

		slog.Info("Successfully scanned local repository and updated symbol graph.")
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	scanCmd.Flags().StringVar(&repoFullName, "repo-full-name", "", "The full name of the repository (e.g. owner/repo)")
	scanCmd.Flags().BoolVar(&forceScan, "force", false, "Force a full re-scan and re-indexing of the repository, ignoring the last indexed state.")
	rootCmd.AddCommand(scanCmd)
}
