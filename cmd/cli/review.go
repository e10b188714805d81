package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/graphwarden/internal/app"
	"github.com/sevigo/graphwarden/internal/core"
	"github.com/sevigo/graphwarden/internal/github"
	"github.com/sevigo/graphwarden/internal/gitutil"
	"github.com/sevigo/graphwarden/internal/graph"
	"github.com/sevigo/graphwarden/internal/indexer"
	"github.com/sevigo/graphwarden/internal/storage"
	"github.com/sevigo/graphwarden/internal/wire"
)

var verbose bool

// Color definitions
var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	infoColor    = color.New(color.FgWhite)
	dimColor     = color.New(color.FgHiBlack)
	boldColor    = color.New(color.Bold)
)

var reviewCmd = &cobra.Command{
	Use:   "review [pr-url]",
	Short: "Run a graph-aware code review for a GitHub Pull Request",
	Long: `Run a graph-aware code review for a GitHub Pull Request.

The review command syncs the repository, brings its symbol graph up to
date, and runs the same review orchestrator the webhook path uses. The
review summary and inline comments are posted directly to the pull
request; this command reports progress and the final outcome.

Examples:
  warden-cli review https://github.com/owner/repo/pull/123
  warden-cli review --verbose https://github.com/owner/repo/pull/123`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	reviewCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output with timing information")
	rootCmd.AddCommand(reviewCmd)
}

// stepTimer tracks timing for verbose output
type stepTimer struct {
	stepNum    int
	totalSteps int
	start      time.Time
	verbose    bool
}

func newStepTimer(totalSteps int, verbose bool) *stepTimer {
	return &stepTimer{
		stepNum:    0,
		totalSteps: totalSteps,
		verbose:    verbose,
	}
}

func (t *stepTimer) step(name string) {
	t.stepNum++
	t.start = time.Now()
	if t.verbose {
		titleColor.Printf("\nStep %d/%d: %s...\n", t.stepNum, t.totalSteps, name)
	} else {
		fmt.Printf("%s...\n", name)
	}
}

func (t *stepTimer) done(details ...string) {
	if t.verbose {
		elapsed := time.Since(t.start).Round(time.Millisecond)
		successColor.Printf("   done (%s)\n", elapsed)
		for _, d := range details {
			dimColor.Printf("   - %s\n", d)
		}
	}
}

func (t *stepTimer) info(format string, args ...any) {
	if t.verbose {
		dimColor.Printf("   - "+format+"\n", args...)
	}
}

func runReview(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	prURL := args[0]

	timer := newStepTimer(5, verbose)
	overallStart := time.Now()

	titleColor.Println("GraphWarden - PR Review")
	dimColor.Printf("   Target: %s\n\n", prURL)

	// 1. Initialize Application
	timer.step("Initializing application")
	appInstance, cleanup, err := wire.InitializeApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w\n\nTip: Check that your config.yaml exists and is valid", err)
	}
	defer cleanup()
	timer.done()

	// 2. Parse URL and fetch PR metadata
	timer.step("Fetching PR metadata")
	owner, repoName, prNumber, err := gitutil.ParsePullRequestURL(prURL)
	if err != nil {
		return fmt.Errorf("invalid PR URL: %w\n\nExpected format: https://github.com/owner/repo/pull/123", err)
	}

	if appInstance.Cfg.GitHub.Token == "" {
		return fmt.Errorf("GITHUB_TOKEN is not set\n\nTip: Set the GITHUB_TOKEN environment variable")
	}
	ghClient := github.NewPATClient(ctx, appInstance.Cfg.GitHub.Token, slog.Default())

	pr, err := ghClient.GetPullRequest(ctx, owner, repoName, prNumber)
	if err != nil {
		return fmt.Errorf("failed to fetch PR: %w\n\nTip: Check that the PR exists and your token has access", err)
	}

	timer.info("PR #%d: %s", pr.GetNumber(), pr.GetTitle())
	timer.info("Head SHA: %s", truncateSHA(pr.GetHead().GetSHA()))
	timer.info("Language: %s", pr.GetBase().GetRepo().GetLanguage())
	timer.done()

	event := &core.GitHubEvent{
		Type:         core.FullReview,
		RepoOwner:    owner,
		RepoName:     repoName,
		RepoFullName: fmt.Sprintf("%s/%s", owner, repoName),
		PRNumber:     prNumber,
		PRTitle:      pr.GetTitle(),
		PRBody:       pr.GetBody(),
		RepoCloneURL: pr.GetBase().GetRepo().GetCloneURL(),
		HeadSHA:      pr.GetHead().GetSHA(),
		Language:     pr.GetBase().GetRepo().GetLanguage(),
	}

	// 3. Sync Repository
	timer.step("Syncing repository")
	syncResult, err := appInstance.RepoMgr.SyncRepo(ctx, event, appInstance.Cfg.GitHub.Token)
	if err != nil {
		return fmt.Errorf("failed to sync repo: %w\n\nTip: Check network connectivity and disk space", err)
	}
	timer.info("Path: %s", syncResult.RepoPath)
	if syncResult.IsInitialClone {
		timer.info("Initial clone completed")
	} else if len(syncResult.FilesToAddOrUpdate) > 0 {
		timer.info("Files changed: %d", len(syncResult.FilesToAddOrUpdate))
	}
	timer.done()

	// 3.1 Fetch Repo Record
	repo, err := appInstance.RepoMgr.GetRepoRecord(ctx, event.RepoFullName)
	if err != nil {
		return fmt.Errorf("failed to get repo record: %w", err)
	}
	if repo == nil {
		return fmt.Errorf("repository record not found after sync")
	}

	// 4. Indexing
	timer.step("Updating symbol graph")
	if err := handleIndexing(ctx, appInstance, syncResult, repo, pr.GetBase().GetRef(), timer); err != nil {
		return err
	}
	timer.done()

	// 5. Run the review orchestrator. It posts the summary and inline
	// comments to the pull request itself; there is nothing further for
	// the CLI to render locally.
	timer.step("Running review")
	if err := appInstance.ReviewJob.Run(ctx, event); err != nil {
		return fmt.Errorf("failed to run review: %w\n\nTip: Check that the LLM service is running", err)
	}
	timer.done()

	if verbose {
		dimColor.Printf("\nTotal time: %s\n", time.Since(overallStart).Round(time.Millisecond))
	}

	successColor.Printf("\nReview posted to %s\n", prURL)
	return nil
}

// handleIndexing brings the repository's symbol graph up to date before the
// orchestrator runs, mirroring what the scan command does for a standalone
// local checkout.
func handleIndexing(ctx context.Context, a *app.App, syncResult *core.UpdateResult, repo *storage.Repository, branch string, timer *stepTimer) error {
	if branch == "" {
		branch = "HEAD"
	}

	switch {
	case syncResult.IsInitialClone:
		timer.info("Performing initial full indexing")
		ix := indexer.New(repo.ID, branch, syncResult.RepoPath, graph.New(), a.GraphStore, a.Embedder, a.ParserRegistry, a.Cfg.Indexer, slog.Default())
		if err := ix.Full(ctx, syncResult.FilesToAddOrUpdate); err != nil {
			return fmt.Errorf("failed to build symbol graph: %w", err)
		}
	case len(syncResult.FilesToAddOrUpdate) > 0 || len(syncResult.FilesToDelete) > 0:
		timer.info("Incremental update: %d added/modified, %d deleted",
			len(syncResult.FilesToAddOrUpdate), len(syncResult.FilesToDelete))
		g := graph.New()
		if snapshot, snapErr := a.GraphStore.GetSnapshot(ctx, repo.ID, branch); snapErr == nil && len(snapshot) > 0 {
			if loaded, loadErr := graph.Deserialize(snapshot); loadErr == nil {
				g = loaded
			}
		}
		ix := indexer.New(repo.ID, branch, syncResult.RepoPath, g, a.GraphStore, a.Embedder, a.ParserRegistry, a.Cfg.Indexer, slog.Default())
		changed := append(append([]string{}, syncResult.FilesToAddOrUpdate...), syncResult.FilesToDelete...)
		if err := ix.SyncIncremental(changed); err != nil {
			return fmt.Errorf("failed to update symbol graph: %w", err)
		}
	default:
		timer.info("Symbol graph up to date, skipping")
	}
	return nil
}

func truncateSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
