// Package orchestrator implements the review orchestrator: the component
// that turns a "/review" or "/rereview" comment into a posted pull request
// review. It ties together the VCS adapter, the retriever, the LLM
// backend, and the response parser/filter/validator pipeline.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sevigo/graphwarden/internal/cache"
	"github.com/sevigo/graphwarden/internal/config"
	"github.com/sevigo/graphwarden/internal/core"
	"github.com/sevigo/graphwarden/internal/embedding"
	"github.com/sevigo/graphwarden/internal/feedback"
	"github.com/sevigo/graphwarden/internal/github"
	"github.com/sevigo/graphwarden/internal/graph"
	"github.com/sevigo/graphwarden/internal/indexer"
	"github.com/sevigo/graphwarden/internal/jobs"
	"github.com/sevigo/graphwarden/internal/llm"
	"github.com/sevigo/graphwarden/internal/parser"
	"github.com/sevigo/graphwarden/internal/retriever"
	"github.com/sevigo/graphwarden/internal/review"
	"github.com/sevigo/graphwarden/internal/storage"
)

// errNoNewCommits is returned by runReview when an incremental re-review
// finds the checkpoint already at HEAD; Run reports it as a "neutral" check
// run and returns nil.
var errNoNewCommits = errors.New("orchestrator: no new commits since last checkpoint")

// Orchestrator implements core.Job, running the full spec §4.6 review flow
// for a single dispatched GitHubEvent.
type Orchestrator struct {
	cfg            *config.Config
	store          storage.Store
	graphStore     storage.GraphStore
	cache          *cache.Cache
	embedder       *embedding.Adapter
	parserRegistry *parser.Registry
	backend        llm.Backend
	signer         *feedback.Signer
	logger         *slog.Logger
}

// New builds an Orchestrator. It satisfies core.Job so it can be passed
// directly to jobs.NewDispatcher.
func New(
	cfg *config.Config,
	store storage.Store,
	graphStore storage.GraphStore,
	c *cache.Cache,
	embedder *embedding.Adapter,
	registry *parser.Registry,
	backend llm.Backend,
	signer *feedback.Signer,
	logger *slog.Logger,
) core.Job {
	return &Orchestrator{
		cfg:            cfg,
		store:          store,
		graphStore:     graphStore,
		cache:          c,
		embedder:       embedder,
		parserRegistry: registry,
		backend:        backend,
		signer:         signer,
		logger:         logger,
	}
}

// Run routes a dispatched event to the non-incremental or incremental
// review flow and handles all GitHub status reporting around it.
func (o *Orchestrator) Run(ctx context.Context, event *core.GitHubEvent) error {
	client, _, err := o.resolveClient(ctx, event)
	if err != nil {
		return fmt.Errorf("orchestrator: resolve github client: %w", err)
	}
	statusUpdater := github.NewStatusUpdater(client, o.logger)

	checkRunID, err := statusUpdater.InProgress(ctx, event, "GraphWarden Review", "Analyzing pull request…")
	if err != nil {
		o.logger.Warn("orchestrator: failed to post in-progress status, continuing anyway", "error", err)
	}

	runErr := o.runReview(ctx, client, statusUpdater, event)
	if runErr != nil {
		if errors.Is(runErr, errNoNewCommits) {
			_ = statusUpdater.Completed(ctx, event, checkRunID, "neutral", "No new commits", "Nothing to review since the last checkpoint.")
			return nil
		}
		_ = statusUpdater.Completed(ctx, event, checkRunID, "failure", "Review failed", runErr.Error())
		return runErr
	}

	if err := statusUpdater.Completed(ctx, event, checkRunID, "success", "Review complete", "GraphWarden finished reviewing this pull request."); err != nil {
		o.logger.Warn("orchestrator: failed to post completed status", "error", err)
	}
	return nil
}

// runReview implements spec §4.6: metadata + diff + files, skills, context,
// prompt, generation, parse, filter, validate, post.
func (o *Orchestrator) runReview(ctx context.Context, client github.Client, statusUpdater github.StatusUpdater, event *core.GitHubEvent) error {
	pr, err := client.GetPullRequest(ctx, event.RepoOwner, event.RepoName, event.PRNumber)
	if err != nil {
		return fmt.Errorf("get pull request: %w", err)
	}
	baseSHA := pr.GetBase().GetSHA()
	headSHA := pr.GetHead().GetSHA()
	baseBranch := pr.GetBase().GetRef()
	if headSHA != "" {
		event.HeadSHA = headSHA
	}

	var rawDiff string
	incremental := event.Type == core.ReReview
	var checkpoint *core.Checkpoint

	if incremental {
		checkpoint, err = o.findCheckpoint(ctx, client, event)
		if err != nil {
			o.logger.Warn("orchestrator: malformed checkpoint, falling back to full review", "error", err)
			checkpoint = nil
		}
	}

	switch {
	case incremental && checkpoint != nil && checkpoint.SHA == headSHA:
		return errNoNewCommits
	case incremental && checkpoint != nil:
		rawDiff, err = client.GetDiffSince(ctx, event.RepoOwner, event.RepoName, event.PRNumber, checkpoint.SHA)
	default:
		rawDiff, err = client.GetPullRequestDiff(ctx, event.RepoOwner, event.RepoName, event.PRNumber)
	}
	if err != nil {
		return fmt.Errorf("get diff: %w", err)
	}

	files, err := client.GetChangedFiles(ctx, event.RepoOwner, event.RepoName, event.PRNumber)
	if err != nil {
		return fmt.Errorf("get changed files: %w", err)
	}
	changedFilenames := make([]string, len(files))
	for i, f := range files {
		changedFilenames[i] = f.Filename
	}

	repoConfig, repoErr := config.LoadRepoConfig(o.localRepoPath(event))
	if repoErr != nil && !errors.Is(repoErr, config.ErrConfigNotFound) {
		o.logger.Warn("orchestrator: failed to load repo config, using defaults", "error", repoErr)
	}
	_ = repoConfig // loaded only so a load failure is logged; its custom instructions and exclusions are not applied in this flow

	skills, err := review.LoadSkills(o.localRepoPath(event))
	if err != nil {
		o.logger.Warn("orchestrator: failed to load skills, continuing without them", "error", err)
	}
	matched := review.MatchingSkills(skills, changedFilenames)
	skillBodies := make([]string, len(matched))
	for i, s := range matched {
		skillBodies[i] = s.Body
	}

	contextStr := o.buildContextString(ctx, event, baseBranch, rawDiff)

	annotatedDiff := o.buildAnnotatedDiff(ctx, client, event.RepoOwner, event.RepoName, baseSHA, headSHA, files)
	if strings.TrimSpace(annotatedDiff) == "" {
		annotatedDiff = rawDiff
	}
	truncatedDiff, wasTruncated := truncateDiff(annotatedDiff, o.cfg.Review.MaxDiffSize)

	prompt, err := renderPrompt(promptData{
		Skills:    skillBodies,
		Context:   contextStr,
		Diff:      truncatedDiff,
		Truncated: wasTruncated,
	})
	if err != nil {
		return err
	}

	raw, err := o.backend.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("llm generate: %w", err)
	}

	result := review.ParseResponse(o.logger, raw)

	threshold := o.cfg.Review.PrecisionThreshold
	if threshold <= 0 {
		threshold = review.DefaultPrecisionThreshold
	}
	result.Comments = review.ApplyPrecisionFilter(o.logger, result.Comments, threshold)
	result.Comments = jobs.FilterNonCodeSuggestions(o.logger, result.Comments)

	diffSet := o.buildDiffFileSet(files)
	existing, err := o.existingComments(ctx, event.RepoFullName, event.PRNumber)
	if err != nil {
		o.logger.Warn("orchestrator: failed to load existing comments for dedup, continuing without them", "error", err)
	}
	result.Comments = review.ValidateAndDedup(o.logger, result.Comments, diffSet, existing)

	if len(result.Comments) == 0 && result.Summary == "" {
		result.Summary = "No significant issues found."
	}

	if err := statusUpdater.PostStructuredReview(ctx, event, result); err != nil {
		return fmt.Errorf("post review: %w", err)
	}

	o.persistReview(ctx, event, result)

	if err := o.upsertCheckpoint(ctx, client, event, headSHA, changedFilenames, result); err != nil {
		o.logger.Warn("orchestrator: failed to post checkpoint comment", "error", err)
	}

	return nil
}

func (o *Orchestrator) localRepoPath(event *core.GitHubEvent) string {
	rec, err := o.store.GetRepositoryByFullName(context.Background(), event.RepoFullName)
	if err != nil || rec == nil {
		return ""
	}
	return rec.ClonePath
}

// buildContextString resolves the (repoId, branch) graph cache entry for
// this repository, if one has been indexed, and serializes the retriever's
// context. A repository with no indexed graph yet degrades silently to an
// empty context string, per spec: the review still runs as a flat-diff
// review rather than failing.
func (o *Orchestrator) buildContextString(ctx context.Context, event *core.GitHubEvent, branch, rawDiff string) string {
	rec, err := o.store.GetRepositoryByFullName(ctx, event.RepoFullName)
	if err != nil || rec == nil {
		return ""
	}

	entry, ok := o.loadCacheEntry(ctx, rec.ID, branch, event.RepoFullName)
	if !ok {
		return ""
	}

	entry.RLock()
	defer entry.RUnlock()

	result, err := entry.Retriever.BuildContext(rawDiff)
	if err != nil {
		o.logger.Warn("orchestrator: retriever failed, continuing without context", "error", err)
		return ""
	}
	stringer, ok := result.(fmt.Stringer)
	if !ok {
		return ""
	}
	return stringer.String()
}

func (o *Orchestrator) loadCacheEntry(ctx context.Context, repoID int64, branch, repoFullName string) (*cache.Entry, bool) {
	if entry, ok := o.cache.Get(repoID, branch); ok {
		return entry, true
	}
	snapshot, err := o.graphStore.GetSnapshot(ctx, repoID, branch)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			o.logger.Warn("orchestrator: failed to load graph snapshot", "error", err)
		}
		return nil, false
	}

	entry, err := o.cache.GetOrLoad(repoID, branch, func() (*cache.Entry, error) {
		g, err := graph.Deserialize(snapshot)
		if err != nil {
			return nil, err
		}
		depth := retriever.Depth(o.cfg.Review.Depth)
		rt := retriever.New(repoID, branch, repoFullName, depth, g, o.graphStore, o.embedder, o.logger)
		ix := indexer.New(repoID, branch, "", g, o.graphStore, o.embedder, o.parserRegistry, o.cfg.Indexer, o.logger)
		return &cache.Entry{Graph: g, Indexer: ix, Retriever: rt, Store: o.store}, nil
	})
	if err != nil {
		o.logger.Warn("orchestrator: failed to build cache entry from snapshot", "error", err)
		return nil, false
	}
	return entry, true
}

// buildDiffFileSet derives the path-normalisation map and per-file added
// line sets directly from the GitHub changed-files list, reusing the
// per-file patch each already carries rather than re-deriving it from the
// combined unified diff.
func (o *Orchestrator) buildDiffFileSet(files []github.ChangedFile) review.DiffFileSet {
	set := review.DiffFileSet{
		Paths:      make(map[string]string, len(files)),
		AddedLines: make(map[string]map[int]struct{}, len(files)),
	}
	for _, f := range files {
		normalized := strings.TrimPrefix(f.Filename, "/")
		set.Paths[normalized] = f.Filename
		set.AddedLines[normalized] = github.ParseValidLinesFromPatch(f.Patch, o.logger)
	}
	return set
}

// existingComments loads previously posted comments for dedup, treating a
// comment whose feedback signal is "rejected" as dismissed — the only
// verifiable signal this system has for "the team didn't want this
// comment", since posted comments aren't correlated back to GitHub comment
// ids for reply scanning.
func (o *Orchestrator) existingComments(ctx context.Context, repoFullName string, prNumber int) ([]review.ExistingComment, error) {
	rows, err := o.graphStore.GetExistingComments(ctx, repoFullName, prNumber)
	if err != nil {
		return nil, err
	}
	out := make([]review.ExistingComment, 0, len(rows))
	for _, r := range rows {
		dismissed := r.Signal != nil && *r.Signal == string(core.FeedbackRejected)
		out = append(out, review.ExistingComment{DedupID: r.DedupID, Dismissed: dismissed})
	}
	return out, nil
}

func (o *Orchestrator) persistReview(ctx context.Context, event *core.GitHubEvent, result core.ReviewResult) {
	dedupIDs := make([]string, len(result.Comments))
	for i, c := range result.Comments {
		dedupIDs[i] = review.DedupID(c.Path, c.Line, c.Body)
	}
	if err := o.graphStore.SaveReviewComments(ctx, event.RepoFullName, event.PRNumber, result.Comments, dedupIDs); err != nil {
		o.logger.Error("orchestrator: failed to persist review comments", "error", err)
	}

	var body strings.Builder
	body.WriteString(result.Summary)
	if err := o.store.SaveReview(ctx, &core.Review{
		RepoFullName:  event.RepoFullName,
		PRNumber:      event.PRNumber,
		HeadSHA:       event.HeadSHA,
		ReviewContent: body.String(),
	}); err != nil {
		o.logger.Error("orchestrator: failed to persist review row", "error", err)
	}

	if o.embedder != nil {
		rec, err := o.store.GetRepositoryByFullName(ctx, event.RepoFullName)
		if err == nil && rec != nil {
			for i, c := range result.Comments {
				if err := o.embedder.UpsertComment(ctx, rec.ID, dedupIDs[i], c.Body); err != nil {
					o.logger.Warn("orchestrator: failed to embed posted comment", "error", err)
				}
			}
		}
	}
}

// findCheckpoint scans a pull request's conversation comments for the most
// recent checkpoint sentinel, newest first. A comment carrying the sentinel
// but invalid JSON is a parse error the caller must treat as "fall back to
// full review", not "no checkpoint".
func (o *Orchestrator) findCheckpoint(ctx context.Context, client github.Client, event *core.GitHubEvent) (*core.Checkpoint, error) {
	comments, err := client.ListIssueComments(ctx, event.RepoOwner, event.RepoName, event.PRNumber)
	if err != nil {
		return nil, fmt.Errorf("list issue comments: %w", err)
	}
	for i := len(comments) - 1; i >= 0; i-- {
		body := comments[i].GetBody()
		if !review.IsCheckpointComment(body) {
			continue
		}
		return review.ParseCheckpointComment(body)
	}
	return nil, nil
}

func (o *Orchestrator) upsertCheckpoint(ctx context.Context, client github.Client, event *core.GitHubEvent, headSHA string, filesReviewed []string, result core.ReviewResult) error {
	cp := core.Checkpoint{
		SHA:           headSHA,
		Timestamp:     time.Now(),
		FilesReviewed: filesReviewed,
		CommentCount:  len(result.Comments),
		Verdict:       result.Verdict,
	}
	humanSummary := fmt.Sprintf("Reviewed through commit `%s` — %d comment(s), verdict: %s.", shortSHA(headSHA), len(result.Comments), result.Verdict)
	body, err := review.RenderCheckpoint(cp, humanSummary)
	if err != nil {
		return err
	}
	return client.CreateComment(ctx, event.RepoOwner, event.RepoName, event.PRNumber, body)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// resolveClient builds a GitHub client for the event: an installation
// client when the event carries an installation id (webhook-driven), or a
// personal-access-token client for CLI-driven events that set none.
func (o *Orchestrator) resolveClient(ctx context.Context, event *core.GitHubEvent) (github.Client, string, error) {
	if event.InstallationID > 0 {
		return github.CreateInstallationClient(ctx, o.cfg, event.InstallationID, o.logger)
	}
	if o.cfg.GitHub.Token == "" {
		return nil, "", fmt.Errorf("no installation id on event and no GitHub token configured")
	}
	return github.NewPATClient(ctx, o.cfg.GitHub.Token, o.logger), o.cfg.GitHub.Token, nil
}
