package codehost

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hongdnn/leadsync/internal/model"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLabClient talks to the GitLab REST API v4. Owner and repo map onto
// the project path "owner/repo".
type GitLabClient struct {
	client *gitlab.Client
}

func NewGitLabClient(baseURL, token string) (*GitLabClient, error) {
	var client *gitlab.Client
	var err error
	if baseURL == "" {
		client, err = gitlab.NewClient(token)
	} else {
		apiURL := strings.TrimSuffix(baseURL, "/") + "/api/v4"
		client, err = gitlab.NewClient(token, gitlab.WithBaseURL(apiURL))
	}
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &GitLabClient{client: client}, nil
}

func (g *GitLabClient) ListCommitsSince(ctx context.Context, owner, repo string, since time.Time, limit int) ([]model.Commit, error) {
	if limit <= 0 {
		limit = 30
	}
	if limit > 100 {
		limit = 100
	}
	raw, _, err := g.client.Commits.ListCommits(
		projectPath(owner, repo),
		&gitlab.ListCommitsOptions{
			ListOptions: gitlab.ListOptions{PerPage: limit},
			Since:       gitlab.Ptr(since.UTC()),
		},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("listing commits from gitlab: %w", err)
	}
	commits := make([]model.Commit, 0, len(raw))
	for _, c := range raw {
		if c == nil {
			continue
		}
		commits = append(commits, model.Commit{
			SHA:     c.ID,
			Author:  c.AuthorName,
			Message: c.Message,
		})
	}
	return commits, nil
}

func (g *GitLabClient) GetCommit(ctx context.Context, owner, repo, sha string) (*model.Commit, error) {
	pid := projectPath(owner, repo)
	raw, _, err := g.client.Commits.GetCommit(pid, sha, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching commit from gitlab: %w", err)
	}
	diffs, _, err := g.client.Commits.GetCommitDiff(
		pid, sha,
		&gitlab.GetCommitDiffOptions{ListOptions: gitlab.ListOptions{PerPage: 100}},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching commit diff from gitlab: %w", err)
	}
	return &model.Commit{
		SHA:     raw.ID,
		Author:  raw.AuthorName,
		Message: raw.Message,
		Files:   diffsToFileChanges(diffs),
	}, nil
}

func (g *GitLabClient) ListPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]model.FileChange, error) {
	raw, _, err := g.client.MergeRequests.ListMergeRequestDiffs(
		projectPath(owner, repo), number,
		&gitlab.ListMergeRequestDiffsOptions{ListOptions: gitlab.ListOptions{PerPage: 100}},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("listing diffs for MR !%d: %w", number, err)
	}
	changes := make([]model.FileChange, 0, len(raw))
	for _, d := range raw {
		if d == nil {
			continue
		}
		additions, deletions := countPatchLines(d.Diff)
		changes = append(changes, model.FileChange{
			Filename:  diffPath(d.NewPath, d.OldPath),
			Status:    diffStatus(d.NewFile, d.RenamedFile, d.DeletedFile),
			Additions: additions,
			Deletions: deletions,
			Patch:     d.Diff,
		})
	}
	return changes, nil
}

func (g *GitLabClient) ListPullRequestCommits(ctx context.Context, owner, repo string, number int) ([]model.Commit, error) {
	raw, _, err := g.client.MergeRequests.GetMergeRequestCommits(
		projectPath(owner, repo), number,
		&gitlab.GetMergeRequestCommitsOptions{PerPage: 100},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("listing commits for MR !%d: %w", number, err)
	}
	commits := make([]model.Commit, 0, len(raw))
	for _, c := range raw {
		if c == nil {
			continue
		}
		commits = append(commits, model.Commit{
			SHA:     c.ID,
			Author:  c.AuthorName,
			Message: c.Message,
		})
	}
	return commits, nil
}

func (g *GitLabClient) CompareCommits(ctx context.Context, owner, repo, base, head string) ([]model.FileChange, error) {
	compare, _, err := g.client.Repositories.Compare(
		projectPath(owner, repo),
		&gitlab.CompareOptions{From: gitlab.Ptr(base), To: gitlab.Ptr(head)},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("comparing %s...%s on gitlab: %w", base, head, err)
	}
	return diffsToFileChanges(compare.Diffs), nil
}

// GetRawPullRequestDiff reassembles a git-style unified diff from the MR
// diff list, since GitLab has no single raw-diff download endpoint.
func (g *GitLabClient) GetRawPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	changes, err := g.ListPullRequestFiles(ctx, owner, repo, number)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, change := range changes {
		oldPath, newPath := change.Filename, change.Filename
		fmt.Fprintf(&sb, "diff --git a/%s b/%s\n", oldPath, newPath)
		switch change.Status {
		case "added":
			sb.WriteString("new file mode 100644\n")
			fmt.Fprintf(&sb, "--- /dev/null\n+++ b/%s\n", newPath)
		case "removed":
			sb.WriteString("deleted file mode 100644\n")
			fmt.Fprintf(&sb, "--- a/%s\n+++ /dev/null\n", oldPath)
		default:
			fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", oldPath, newPath)
		}
		sb.WriteString(change.Patch)
		if !strings.HasSuffix(change.Patch, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func (g *GitLabClient) UpdatePullRequestBody(ctx context.Context, owner, repo string, number int, body string) error {
	_, _, err := g.client.MergeRequests.UpdateMergeRequest(
		projectPath(owner, repo), number,
		&gitlab.UpdateMergeRequestOptions{Description: gitlab.Ptr(body)},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("updating description of MR !%d: %w", number, err)
	}
	return nil
}

func (g *GitLabClient) CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) error {
	_, _, err := g.client.Notes.CreateMergeRequestNote(
		projectPath(owner, repo), number,
		&gitlab.CreateMergeRequestNoteOptions{Body: gitlab.Ptr(body)},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("commenting on MR !%d: %w", number, err)
	}
	return nil
}

func (g *GitLabClient) ListMergedPullRequestsSince(ctx context.Context, owner, repo string, since time.Time) ([]PullRequest, error) {
	raw, _, err := g.client.MergeRequests.ListProjectMergeRequests(
		projectPath(owner, repo),
		&gitlab.ListProjectMergeRequestsOptions{
			ListOptions:  gitlab.ListOptions{PerPage: 50},
			State:        gitlab.Ptr("merged"),
			UpdatedAfter: gitlab.Ptr(since.UTC()),
		},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("listing merged MRs from gitlab: %w", err)
	}
	merged := make([]PullRequest, 0, len(raw))
	for _, mr := range raw {
		if mr == nil || mr.MergedAt == nil || mr.MergedAt.Before(since) {
			continue
		}
		merged = append(merged, PullRequest{
			Number:   mr.IID,
			Title:    mr.Title,
			Body:     mr.Description,
			HTMLURL:  mr.WebURL,
			MergedAt: *mr.MergedAt,
		})
	}
	return merged, nil
}

func (g *GitLabClient) SearchFiles(ctx context.Context, owner, repo, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	blobs, _, err := g.client.Search.BlobsByProject(
		projectPath(owner, repo), query,
		&gitlab.SearchOptions{ListOptions: gitlab.ListOptions{PerPage: limit}},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("searching blobs on gitlab: %w", err)
	}
	seen := make(map[string]bool)
	var paths []string
	for _, b := range blobs {
		if b == nil {
			continue
		}
		path := b.Path
		if path == "" {
			path = b.Filename
		}
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
		if len(paths) >= limit {
			break
		}
	}
	return paths, nil
}

func projectPath(owner, repo string) string {
	return owner + "/" + repo
}

func diffsToFileChanges(diffs []*gitlab.Diff) []model.FileChange {
	changes := make([]model.FileChange, 0, len(diffs))
	for _, d := range diffs {
		if d == nil {
			continue
		}
		additions, deletions := countPatchLines(d.Diff)
		changes = append(changes, model.FileChange{
			Filename:  diffPath(d.NewPath, d.OldPath),
			Status:    diffStatus(d.NewFile, d.RenamedFile, d.DeletedFile),
			Additions: additions,
			Deletions: deletions,
			Patch:     d.Diff,
		})
	}
	return changes
}

func diffPath(newPath, oldPath string) string {
	if newPath != "" {
		return newPath
	}
	return oldPath
}

// diffStatus maps GitLab diff flags onto the GitHub status vocabulary
// the file categorizer expects.
func diffStatus(newFile, renamed, deleted bool) string {
	switch {
	case newFile:
		return "added"
	case deleted:
		return "removed"
	case renamed:
		return "renamed"
	default:
		return "modified"
	}
}

// countPatchLines tallies additions and deletions from raw hunk text.
// GitLab diff payloads carry no per-file counters, unlike GitHub's.
func countPatchLines(patch string) (additions, deletions int) {
	for _, line := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			additions++
		case strings.HasPrefix(line, "-"):
			deletions++
		}
	}
	return additions, deletions
}
