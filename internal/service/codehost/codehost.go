package codehost

import (
	"context"
	"fmt"
	"time"

	"github.com/hongdnn/leadsync/core/config"
	"github.com/hongdnn/leadsync/internal/model"
)

// Client is the code-host surface the workflows consume. GitHub and
// GitLab implementations are selected by configuration; owner/repo is
// the GitLab project path when the GitLab host is active.
type Client interface {
	ListCommitsSince(ctx context.Context, owner, repo string, since time.Time, limit int) ([]model.Commit, error)
	GetCommit(ctx context.Context, owner, repo, sha string) (*model.Commit, error)
	ListPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]model.FileChange, error)
	ListPullRequestCommits(ctx context.Context, owner, repo string, number int) ([]model.Commit, error)
	CompareCommits(ctx context.Context, owner, repo, base, head string) ([]model.FileChange, error)
	GetRawPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error)
	UpdatePullRequestBody(ctx context.Context, owner, repo string, number int, body string) error
	CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) error
	ListMergedPullRequestsSince(ctx context.Context, owner, repo string, since time.Time) ([]PullRequest, error)
	SearchFiles(ctx context.Context, owner, repo, query string, limit int) ([]string, error)
}

// PullRequest is a merged pull request surfaced by the done-ticket scan.
type PullRequest struct {
	MergedAt time.Time
	Title    string
	Body     string
	HTMLURL  string
	Number   int
}

// New selects the configured code host implementation.
func New(cfg config.Config) (Client, error) {
	switch cfg.CodeHost {
	case config.CodeHostGitHub:
		return NewGitHubClient(cfg.GitHub.Token), nil
	case config.CodeHostGitLab:
		return NewGitLabClient(cfg.GitLab.BaseURL, cfg.GitLab.Token)
	default:
		return nil, fmt.Errorf("unsupported code host: %s", cfg.CodeHost)
	}
}
