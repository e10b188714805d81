// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"fmt"
	"strings"

	"github.com/google/go-github/v73/github"
)

// EventType distinguishes a first-time review request from a follow-up
// re-review triggered by a developer reply.
type EventType int

const (
	FullReview EventType = iota
	ReReview
)

// GitHubEvent represents a simplified, internal view of a GitHub webhook event.
type GitHubEvent struct {
	Type EventType

	// Repository details
	RepoOwner    string
	RepoName     string
	RepoFullName string
	RepoCloneURL string
	Language     string

	PRNumber int
	PRTitle  string
	PRBody   string
	HeadSHA  string

	Commenter      string
	InstallationID int64
}

// EventFromIssueComment transforms a raw GitHub IssueCommentEvent into the application's
// internal GitHubEvent representation. It acts as an anti-corruption layer, ensuring
// that the incoming webhook payload is valid and contains all necessary data before
// it's processed by a job. It specifically filters for comments on a pull request that are
// a "/review" command (a full review) or a "/rereview" command (an incremental re-review).
func EventFromIssueComment(event *github.IssueCommentEvent) (*GitHubEvent, error) {
	if !event.GetIssue().IsPullRequest() {
		return nil, fmt.Errorf("comment is not on a pull request")
	}

	trimmed := strings.TrimSpace(event.GetComment().GetBody())
	var eventType EventType
	switch {
	case strings.EqualFold(trimmed, "/review"):
		eventType = FullReview
	case strings.EqualFold(trimmed, "/rereview"):
		eventType = ReReview
	default:
		return nil, fmt.Errorf("comment is not a review command")
	}

	repo := event.GetRepo()
	if repo == nil || repo.GetOwner() == nil || repo.GetOwner().GetLogin() == "" || repo.GetName() == "" {
		return nil, fmt.Errorf("repository or owner information is missing from the event")
	}

	prNumber := event.GetIssue().GetNumber()
	if prNumber <= 0 {
		return nil, fmt.Errorf("invalid pull request number: %d", prNumber)
	}

	if event.GetComment().GetUser() == nil || event.GetComment().GetUser().GetLogin() == "" {
		return nil, fmt.Errorf("commenter information is missing from the event")
	}

	if event.GetInstallation() == nil || event.GetInstallation().GetID() == 0 {
		return nil, fmt.Errorf("installation ID is missing from the event")
	}

	return &GitHubEvent{
		Type:           eventType,
		RepoOwner:      repo.GetOwner().GetLogin(),
		RepoName:       repo.GetName(),
		RepoFullName:   repo.GetFullName(),
		RepoCloneURL:   repo.GetCloneURL(),
		Language:       repo.GetLanguage(),
		InstallationID: event.GetInstallation().GetID(),
		PRNumber:       prNumber,
		PRTitle:        event.GetIssue().GetTitle(),
		PRBody:         event.GetIssue().GetBody(),
		Commenter:      event.GetComment().GetUser().GetLogin(),
	}, nil
}
