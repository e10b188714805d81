// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"
)

// ChangedFile holds the filename, patch data and inferred language for a
// single file included in a pull request.
type ChangedFile struct {
	Filename string
	Patch    string
	Language string
}

// DraftReviewComment represents a single comment to be posted as part of a
// review. StartLine equals Line for single-line comments; it only differs
// for multi-line suggestions, which this adapter does not currently emit,
// but the field is carried so the GitHub API shape stays exact.
type DraftReviewComment struct {
	Path      string
	Line      int
	StartLine int
	Body      string
}

// Client defines a set of operations for interacting with the GitHub API,
// focusing on pull requests, comments, and check runs. This is the VCS
// Adapter's GitHub implementation.
//
//go:generate mockgen -destination=../../mocks/mock_github_client.go -package=mocks . Client
type Client interface {
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	GetPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error)
	// GetDiffSince restricts the diff to commits landed after sinceSHA,
	// for the incremental re-review flow (spec §4.6 incremental).
	GetDiffSince(ctx context.Context, owner, repo string, number int, sinceSHA string) (string, error)
	GetChangedFiles(ctx context.Context, owner, repo string, number int) ([]ChangedFile, error)
	GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
	CreateComment(ctx context.Context, owner, repo string, number int, body string) error
	// ListIssueComments returns every top-level conversation comment on a
	// pull request (PRs are issues for this endpoint), oldest first. The
	// orchestrator scans these for the most recent checkpoint sentinel and
	// for dismissal replies to previously posted inline comments.
	ListIssueComments(ctx context.Context, owner, repo string, number int) ([]*github.IssueComment, error)
	CreateReview(ctx context.Context, owner, repo string, number int, headSHA, body string, comments []DraftReviewComment, event string) error
	CreateCheckRun(ctx context.Context, owner, repo string, opts github.CreateCheckRunOptions) (*github.CheckRun, error)
	UpdateCheckRun(ctx context.Context, owner, repo string, checkRunID int64, opts github.UpdateCheckRunOptions) (*github.CheckRun, error)
}

type gitHubClient struct {
	client *github.Client
	logger *slog.Logger
}

// NewGitHubClient wraps the official go-github client to provide a focused,
// testable interface for application-specific GitHub operations.
func NewGitHubClient(client *github.Client, logger *slog.Logger) Client {
	return &gitHubClient{client: client, logger: logger}
}

// NewPATClient creates a new GitHub client authenticated with a Personal Access Token (PAT).
// This is useful for CLI tools or local development where an App installation is not available.
func NewPATClient(ctx context.Context, token string, logger *slog.Logger) Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)
	return &gitHubClient{client: client, logger: logger}
}

// CreateReview creates a new pull request review with a summary,
// line-specific comments, and a host vote ("APPROVE", "REQUEST_CHANGES" or
// "COMMENT") corresponding to the orchestrator's verdict.
func (g *gitHubClient) CreateReview(ctx context.Context, owner, repo string, number int, headSHA, body string, comments []DraftReviewComment, event string) error {
	var ghComments []*github.DraftReviewComment
	for _, c := range comments {
		ghComments = append(ghComments, &github.DraftReviewComment{
			Path: &c.Path,
			Line: &c.Line,
			Body: &c.Body,
		})
	}

	if event == "" {
		event = "COMMENT"
	}

	reviewRequest := &github.PullRequestReviewRequest{
		CommitID: &headSHA,
		Body:     &body,
		Event:    &event,
		Comments: ghComments,
	}

	_, _, err := g.client.PullRequests.CreateReview(ctx, owner, repo, number, reviewRequest)
	if err != nil {
		g.logger.Error("failed to create pull request review", "owner", owner, "repo", repo, "pr", number, "error", err)
	}
	return err
}

// GetPullRequest retrieves a single pull request by its number.
func (g *gitHubClient) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	pr, _, err := g.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		g.logger.Error("failed to get pull request", "owner", owner, "repo", repo, "pr", number, "error", err)
		return nil, err
	}
	return pr, nil
}

// GetPullRequestDiff retrieves the diff of a pull request as a string.
func (g *gitHubClient) GetPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	diff, _, err := g.client.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{
		Type: github.Diff,
	})
	if err != nil {
		g.logger.Error("failed to get pull request diff", "owner", owner, "repo", repo, "pr", number, "error", err)
		return "", err
	}
	return diff, nil
}

// GetDiffSince synthesises a unified diff restricted to commits landed
// since sinceSHA, by comparing it against the PR's current head and
// stitching each changed file's patch back into standard "--- a/…"/"+++
// b/…" hunk form. go-github's compare API returns per-file patches, not a
// single unified diff string the way GetRaw does for a whole PR, so this
// reassembles one in the same shape internal/retriever already parses.
func (g *gitHubClient) GetDiffSince(ctx context.Context, owner, repo string, number int, sinceSHA string) (string, error) {
	pr, err := g.GetPullRequest(ctx, owner, repo, number)
	if err != nil {
		return "", err
	}
	headSHA := pr.GetHead().GetSHA()
	if headSHA == "" {
		return "", fmt.Errorf("github: pull request %d/%s/%s has no head sha", number, owner, repo)
	}

	comparison, _, err := g.client.Repositories.CompareCommits(ctx, owner, repo, sinceSHA, headSHA, nil)
	if err != nil {
		g.logger.Error("failed to compare commits", "owner", owner, "repo", repo, "since", sinceSHA, "head", headSHA, "error", err)
		return "", err
	}

	var sb strings.Builder
	for _, f := range comparison.Files {
		if f.Patch == nil {
			continue
		}
		name := f.GetFilename()
		fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n%s\n", name, name, f.GetPatch())
	}
	return sb.String(), nil
}

// GetChangedFiles retrieves the list of files modified in a pull request,
// with each file's programming language inferred from its extension.
// It handles pagination automatically to ensure all files are fetched
// from the GitHub API, which returns a maximum of 100 files per page.
func (g *gitHubClient) GetChangedFiles(ctx context.Context, owner, repo string, number int) ([]ChangedFile, error) {
	var allFiles []ChangedFile
	opts := &github.ListOptions{PerPage: 100}

	for {
		files, resp, err := g.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			g.logger.Error("failed to list files for pull request", "owner", owner, "repo", repo, "pr", number, "error", err)
			return nil, err
		}

		for _, file := range files {
			patch := ""
			if file.Patch != nil {
				patch = *file.Patch
			}
			allFiles = append(allFiles, ChangedFile{
				Filename: *file.Filename,
				Patch:    patch,
				Language: InferLanguage(*file.Filename),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allFiles, nil
}

// GetFileContent fetches one file's raw bytes at a commit. A 404 (file
// absent at that ref, e.g. deleted or renamed away) is not fatal: it
// returns an empty slice and a nil error, since callers use this to enrich
// context opportunistically rather than as a required input.
func (g *gitHubClient) GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	content, _, resp, err := g.client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, nil
		}
		g.logger.Warn("failed to get file content", "owner", owner, "repo", repo, "path", path, "ref", ref, "error", err)
		return nil, err
	}
	if content == nil {
		return nil, nil
	}
	decoded, err := content.GetContent()
	if err != nil {
		return nil, fmt.Errorf("github: decode file content for %s: %w", path, err)
	}
	return []byte(decoded), nil
}

// CreateComment creates a new comment on a pull request.
func (g *gitHubClient) CreateComment(ctx context.Context, owner, repo string, number int, body string) error {
	comment := &github.IssueComment{Body: &body}
	_, _, err := g.client.Issues.CreateComment(ctx, owner, repo, number, comment)
	if err != nil {
		g.logger.Error("failed to create comment", "owner", owner, "repo", repo, "pr", number, "error", err)
	}
	return err
}

// ListIssueComments fetches every comment on a pull request's conversation
// tab, paginating the same way GetChangedFiles does.
func (g *gitHubClient) ListIssueComments(ctx context.Context, owner, repo string, number int) ([]*github.IssueComment, error) {
	var all []*github.IssueComment
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		comments, resp, err := g.client.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			g.logger.Error("failed to list issue comments", "owner", owner, "repo", repo, "pr", number, "error", err)
			return nil, err
		}
		all = append(all, comments...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// CreateCheckRun creates a new check run.
func (g *gitHubClient) CreateCheckRun(ctx context.Context, owner, repo string, opts github.CreateCheckRunOptions) (*github.CheckRun, error) {
	checkRun, _, err := g.client.Checks.CreateCheckRun(ctx, owner, repo, opts)
	if err != nil {
		g.logger.Error("failed to create check run", "owner", owner, "repo", repo, "error", err)
		return nil, err
	}
	return checkRun, nil
}

// UpdateCheckRun updates an existing check run.
func (g *gitHubClient) UpdateCheckRun(ctx context.Context, owner, repo string, checkRunID int64, opts github.UpdateCheckRunOptions) (*github.CheckRun, error) {
	checkRun, _, err := g.client.Checks.UpdateCheckRun(ctx, owner, repo, checkRunID, opts)
	if err != nil {
		g.logger.Error("failed to update check run", "owner", owner, "repo", repo, "checkRunID", checkRunID, "error", err)
	}
	return checkRun, err
}

// InferLanguage maps a file extension to a coarse language label, used by
// GetChangedFiles to annotate the changed-file list per spec §6.1.
func InferLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx":
		return "javascript"
	case ".py":
		return "python"
	case ".java":
		return "java"
	case ".rb":
		return "ruby"
	case ".rs":
		return "rust"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".hpp":
		return "cpp"
	case ".md":
		return "markdown"
	case ".yml", ".yaml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return ""
	}
}
