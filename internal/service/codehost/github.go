package codehost

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/hongdnn/leadsync/internal/connector/httpclient"
	"github.com/hongdnn/leadsync/internal/model"
)

const githubAPIBaseURL = "https://api.github.com"

// GitHubClient talks to the GitHub REST API v3.
type GitHubClient struct {
	http *httpclient.Client
}

// NewGitHubClient creates a GitHub client. The token may be empty for
// public repositories, though rate limits make that impractical.
func NewGitHubClient(token string) *GitHubClient {
	return &GitHubClient{
		http: httpclient.New(githubAPIBaseURL, token,
			httpclient.WithHeader("Accept", "application/vnd.github+json"),
			httpclient.WithHeader("X-GitHub-Api-Version", "2022-11-28"),
		),
	}
}

type githubFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Patch     string `json:"patch"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

type githubCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"commit"`
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
	Files []githubFile `json:"files"`
}

type githubPull struct {
	MergedAt *time.Time `json:"merged_at"`
	Title    string     `json:"title"`
	Body     string     `json:"body"`
	HTMLURL  string     `json:"html_url"`
	Number   int        `json:"number"`
}

func (g *GitHubClient) ListCommitsSince(ctx context.Context, owner, repo string, since time.Time, limit int) ([]model.Commit, error) {
	if limit <= 0 {
		limit = 30
	}
	if limit > 100 {
		limit = 100
	}
	query := url.Values{
		"since":    {since.UTC().Format(time.RFC3339)},
		"per_page": {strconv.Itoa(limit)},
	}
	var raw []githubCommit
	path := fmt.Sprintf("/repos/%s/%s/commits", owner, repo)
	if err := g.http.GetJSON(ctx, path, query, &raw); err != nil {
		return nil, fmt.Errorf("listing commits for %s/%s: %w", owner, repo, err)
	}
	commits := make([]model.Commit, 0, len(raw))
	for _, c := range raw {
		commits = append(commits, c.toModel())
	}
	return commits, nil
}

func (g *GitHubClient) GetCommit(ctx context.Context, owner, repo, sha string) (*model.Commit, error) {
	var raw githubCommit
	path := fmt.Sprintf("/repos/%s/%s/commits/%s", owner, repo, sha)
	if err := g.http.GetJSON(ctx, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("fetching commit %s: %w", sha, err)
	}
	commit := raw.toModel()
	return &commit, nil
}

func (g *GitHubClient) ListPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]model.FileChange, error) {
	var raw []githubFile
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files", owner, repo, number)
	if err := g.http.GetJSON(ctx, path, url.Values{"per_page": {"100"}}, &raw); err != nil {
		return nil, fmt.Errorf("listing files for PR #%d: %w", number, err)
	}
	return toFileChanges(raw), nil
}

func (g *GitHubClient) ListPullRequestCommits(ctx context.Context, owner, repo string, number int) ([]model.Commit, error) {
	var raw []githubCommit
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/commits", owner, repo, number)
	if err := g.http.GetJSON(ctx, path, url.Values{"per_page": {"100"}}, &raw); err != nil {
		return nil, fmt.Errorf("listing commits for PR #%d: %w", number, err)
	}
	commits := make([]model.Commit, 0, len(raw))
	for _, c := range raw {
		commits = append(commits, c.toModel())
	}
	return commits, nil
}

func (g *GitHubClient) CompareCommits(ctx context.Context, owner, repo, base, head string) ([]model.FileChange, error) {
	var raw struct {
		Files []githubFile `json:"files"`
	}
	path := fmt.Sprintf("/repos/%s/%s/compare/%s...%s", owner, repo, base, head)
	if err := g.http.GetJSON(ctx, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("comparing %s...%s: %w", base, head, err)
	}
	return toFileChanges(raw.Files), nil
}

// GetRawPullRequestDiff fetches the unified diff from github.com rather
// than the API host; the .diff endpoint lives on the web domain.
func (g *GitHubClient) GetRawPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	diffURL := fmt.Sprintf("https://github.com/%s/%s/pull/%d.diff", owner, repo, number)
	diff, err := g.http.GetText(ctx, diffURL, "text/plain")
	if err != nil {
		return "", fmt.Errorf("fetching raw diff for PR #%d: %w", number, err)
	}
	return diff, nil
}

func (g *GitHubClient) UpdatePullRequestBody(ctx context.Context, owner, repo string, number int, body string) error {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
	payload := map[string]string{"body": body}
	if err := g.http.PatchJSON(ctx, path, payload, nil); err != nil {
		return fmt.Errorf("updating body of PR #%d: %w", number, err)
	}
	return nil
}

// CreateIssueComment posts a comment on a PR through the issues API,
// which covers pull requests as well.
func (g *GitHubClient) CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, number)
	payload := map[string]string{"body": body}
	if err := g.http.PostJSON(ctx, path, payload, nil); err != nil {
		return fmt.Errorf("commenting on PR #%d: %w", number, err)
	}
	return nil
}

func (g *GitHubClient) ListMergedPullRequestsSince(ctx context.Context, owner, repo string, since time.Time) ([]PullRequest, error) {
	query := url.Values{
		"state":     {"closed"},
		"sort":      {"updated"},
		"direction": {"desc"},
		"per_page":  {"50"},
	}
	var raw []githubPull
	path := fmt.Sprintf("/repos/%s/%s/pulls", owner, repo)
	if err := g.http.GetJSON(ctx, path, query, &raw); err != nil {
		return nil, fmt.Errorf("listing merged PRs for %s/%s: %w", owner, repo, err)
	}
	merged := make([]PullRequest, 0, len(raw))
	for _, pr := range raw {
		if pr.MergedAt == nil || pr.MergedAt.Before(since) {
			continue
		}
		merged = append(merged, PullRequest{
			Number:   pr.Number,
			Title:    pr.Title,
			Body:     pr.Body,
			HTMLURL:  pr.HTMLURL,
			MergedAt: *pr.MergedAt,
		})
	}
	return merged, nil
}

func (g *GitHubClient) SearchFiles(ctx context.Context, owner, repo, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	values := url.Values{
		"q":        {fmt.Sprintf("%s repo:%s/%s", query, owner, repo)},
		"per_page": {strconv.Itoa(limit)},
	}
	var raw struct {
		Items []struct {
			Path string `json:"path"`
		} `json:"items"`
	}
	if err := g.http.GetJSON(ctx, "/search/code", values, &raw); err != nil {
		return nil, fmt.Errorf("searching code in %s/%s: %w", owner, repo, err)
	}
	paths := make([]string, 0, len(raw.Items))
	for _, item := range raw.Items {
		paths = append(paths, item.Path)
	}
	return paths, nil
}

func (c githubCommit) toModel() model.Commit {
	author := c.Commit.Author.Name
	if author == "" && c.Author != nil {
		author = c.Author.Login
	}
	if author == "" {
		author = "unknown"
	}
	return model.Commit{
		SHA:     c.SHA,
		Author:  author,
		Message: c.Commit.Message,
		Files:   toFileChanges(c.Files),
	}
}

func toFileChanges(raw []githubFile) []model.FileChange {
	changes := make([]model.FileChange, 0, len(raw))
	for _, f := range raw {
		changes = append(changes, model.FileChange{
			Filename:  f.Filename,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Patch:     f.Patch,
		})
	}
	return changes
}
