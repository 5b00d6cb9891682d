// Package ghsource implements capability.IssueSource against the real
// GitHub API, grounded on nickmisasi-mattermost-plugin-cursor's
// server/ghclient package: the same NewClient(token) constructor shape and
// context-first method signatures, narrowed to the single read this
// module needs (SPEC_FULL.md §1.1, §3.4). Neither the engine nor
// cmd/fleetctl imports this package; it is a standalone IssueSource.
package ghsource

import (
	"context"
	"fmt"

	"github.com/google/go-github/v68/github"

	"github.com/boshu2/agentfleet/internal/capability"
	"github.com/boshu2/agentfleet/internal/types"
)

// Source wraps a go-github client scoped to a single owner/repo.
type Source struct {
	gh    *github.Client
	owner string
	repo  string
}

var _ capability.IssueSource = (*Source)(nil)

// New builds a Source authenticated with token against owner/repo. Returns
// nil if token is empty, matching the teacher's NewClient nil-on-no-token
// convention.
func New(token, owner, repo string) *Source {
	if token == "" {
		return nil
	}
	return &Source{
		gh:    github.NewClient(nil).WithAuthToken(token),
		owner: owner,
		repo:  repo,
	}
}

// NewWithClient builds a Source from an already-constructed *github.Client,
// for tests that point it at an httptest server.
func NewWithClient(gh *github.Client, owner, repo string) *Source {
	return &Source{gh: gh, owner: owner, repo: repo}
}

// Get fetches issue number and maps it to the engine's persisted
// GitHubIssue shape (SPEC_FULL.md §1.1).
func (s *Source) Get(ctx context.Context, number int) (*types.GitHubIssue, error) {
	issue, _, err := s.gh.Issues.Get(ctx, s.owner, s.repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetch issue %d: %w", number, err)
	}
	return fromGitHub(issue), nil
}

func fromGitHub(issue *github.Issue) *types.GitHubIssue {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	assignee := ""
	if issue.Assignee != nil {
		assignee = issue.Assignee.GetLogin()
	}
	return &types.GitHubIssue{
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		Body:      issue.GetBody(),
		State:     issue.GetState(),
		Labels:    labels,
		Assignee:  assignee,
		URL:       issue.GetHTMLURL(),
		UpdatedAt: issue.GetUpdatedAt().Time,
	}
}
