package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sevigo/graphwarden/internal/diff"
	"github.com/sevigo/graphwarden/internal/github"
)

// buildAnnotatedDiff renders the diff text that actually goes into the LLM
// prompt. GitHub's raw unified diff (used to build the retriever's context,
// since that's the format internal/retriever already parses) carries
// pre-image line numbers in its hunk headers, which models routinely
// misread when citing a line to comment on. This instead recomputes each
// changed file's edit script locally with the Myers diff engine and renders
// it with internal/diff.AnnotateForLLM, which stamps every added line with
// its exact post-state line number.
//
// Files whose content can't be fetched (fetch error, too large, binary)
// fall back to their raw GitHub patch so the prompt still carries some
// signal for that file rather than silently dropping it.
func (o *Orchestrator) buildAnnotatedDiff(ctx context.Context, client github.Client, owner, repo, baseSHA, headSHA string, files []github.ChangedFile) string {
	var sb strings.Builder
	for _, f := range files {
		rendered, ok := o.annotateFile(ctx, client, owner, repo, baseSHA, headSHA, f)
		if !ok {
			if f.Patch != "" {
				fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n%s\n", f.Filename, f.Filename, f.Patch)
			}
			continue
		}
		sb.WriteString(rendered)
	}
	return sb.String()
}

func (o *Orchestrator) annotateFile(ctx context.Context, client github.Client, owner, repo, baseSHA, headSHA string, f github.ChangedFile) (string, bool) {
	oldBytes, err := client.GetFileContent(ctx, owner, repo, f.Filename, baseSHA)
	if err != nil {
		o.logger.Warn("orchestrator: failed to fetch base file content, falling back to raw patch", "file", f.Filename, "error", err)
		return "", false
	}
	newBytes, err := client.GetFileContent(ctx, owner, repo, f.Filename, headSHA)
	if err != nil {
		o.logger.Warn("orchestrator: failed to fetch head file content, falling back to raw patch", "file", f.Filename, "error", err)
		return "", false
	}

	ops := diff.Compute(string(oldBytes), string(newBytes), o.cfg.Indexer.MyersEditDistanceLimit)
	hunks := diff.GroupHunks(ops)
	if len(hunks) == 0 {
		return "", false
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", f.Filename, f.Filename)
	sb.WriteString(diff.AnnotateForLLM(hunks))
	return sb.String(), true
}
