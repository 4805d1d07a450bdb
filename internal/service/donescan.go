package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hongdnn/leadsync/common"
	"github.com/hongdnn/leadsync/common/llm"
	"github.com/hongdnn/leadsync/core/config"
	"github.com/hongdnn/leadsync/internal/mapper"
	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/service/codehost"
	"github.com/hongdnn/leadsync/internal/service/issue_tracker"
)

const (
	doneScanMarker       = "<!-- leadsync:wf6 -->"
	doneScanWindow       = 24 * time.Hour
	doneScanCommitLimit  = 100
	doneScanFileFallback = 5
	noMatchesMarker      = "NO_MATCHES_FOUND"
	noMatchesSummary     = "IMPLEMENTATION_SUMMARY: No matching commits, PRs, or relevant files found for this ticket.\nFILES_CHANGED: none"
)

// DoneScanService answers "where did this ticket land in the code" for
// tickets that just moved to a done status: it scans recent commits and
// merged PRs for the ticket key, summarizes the findings, and posts a
// marker-guarded comment on the ticket.
type DoneScanService interface {
	Run(ctx context.Context, payload map[string]any) (*model.RunResult, error)
}

type doneScanService struct {
	cfg      config.Config
	llm      llm.Client
	tracker  issue_tracker.IssueTrackerService
	code     codehost.Client
	recorder *Recorder
	logger   *slog.Logger
}

func NewDoneScanService(
	cfg config.Config,
	llmClient llm.Client,
	tracker issue_tracker.IssueTrackerService,
	code codehost.Client,
	recorder *Recorder,
	logger *slog.Logger,
) DoneScanService {
	if logger == nil {
		logger = slog.Default()
	}
	return &doneScanService{
		cfg:      cfg,
		llm:      llmClient,
		tracker:  tracker,
		code:     code,
		recorder: recorder,
		logger:   logger,
	}
}

func (s *doneScanService) Run(ctx context.Context, payload map[string]any) (*model.RunResult, error) {
	issue := mapper.ParseIssueContext(payload)
	if !s.cfg.GitHub.HasRepoTarget() {
		return nil, ErrMissingRepoTarget
	}
	repoOwner := s.cfg.GitHub.RepoOwner
	repoName := s.cfg.GitHub.RepoName

	run := llm.NewFallback(s.llm, s.cfg.LLM.Model, s.cfg.LLM.FallbackModel, s.logger)

	scanText := s.scanImplementation(ctx, repoOwner, repoName, issue)

	summaryText := noMatchesSummary
	if scanText != noMatchesMarker {
		generated, err := run.Generate(ctx, llm.Request{
			Model:        s.cfg.LLM.Model,
			SystemPrompt: doneScanSystemPrompt,
			UserPrompt:   buildDoneScanSummarizePrompt(issue.Key, issue.Summary, scanText),
		})
		if err != nil {
			return nil, fmt.Errorf("summarize implementation scan: %w", err)
		}
		summaryText = generated
	}

	commentStatus, err := s.postScanComment(ctx, issue.Key, summaryText)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "done scan completed",
		"ticket", issue.Key,
		"comment", commentStatus,
		"model", run.Model())

	s.persistRun(ctx, issue, summaryText, commentStatus)

	return &model.RunResult{Raw: summaryText, Model: run.Model()}, nil
}

// scanImplementation looks for the ticket key in recent commit messages
// and merged PR titles/bodies, then falls back to a code search on the
// ticket summary. Each source degrades to the next on failure.
func (s *doneScanService) scanImplementation(ctx context.Context, owner, repo string, issue model.IssueContext) string {
	since := time.Now().UTC().Add(-doneScanWindow)
	var lines []string

	commits, err := s.code.ListCommitsSince(ctx, owner, repo, since, doneScanCommitLimit)
	if err != nil {
		s.logger.WarnContext(ctx, "commit scan failed",
			"ticket", issue.Key,
			"error", err)
	}
	for _, commit := range commits {
		if !strings.Contains(commit.Message, issue.Key) {
			continue
		}
		files := commit.Files
		if detail, err := s.code.GetCommit(ctx, owner, repo, commit.SHA); err == nil {
			files = detail.Files
		}
		lines = append(lines, fmt.Sprintf("COMMIT: %s | MSG: %s | FILES: %s",
			commit.SHA,
			common.NormalizeWhitespace(commit.Message),
			fileNamesCSV(files)))
	}

	prs, err := s.code.ListMergedPullRequestsSince(ctx, owner, repo, since)
	if err != nil {
		s.logger.WarnContext(ctx, "merged pr scan failed",
			"ticket", issue.Key,
			"error", err)
	}
	for _, pr := range prs {
		if !strings.Contains(pr.Title, issue.Key) && !strings.Contains(pr.Body, issue.Key) {
			continue
		}
		var files []model.FileChange
		if listed, err := s.code.ListPullRequestFiles(ctx, owner, repo, pr.Number); err == nil {
			files = listed
		}
		lines = append(lines, fmt.Sprintf("PR: #%d | TITLE: %s | FILES: %s",
			pr.Number, pr.Title, fileNamesCSV(files)))
	}

	if len(lines) == 0 {
		lines = s.fileFallback(ctx, owner, repo, issue)
	}
	if len(lines) == 0 {
		return noMatchesMarker
	}
	return strings.Join(lines, "\n")
}

func (s *doneScanService) fileFallback(ctx context.Context, owner, repo string, issue model.IssueContext) []string {
	query := strings.TrimSpace(issue.Summary)
	if query == "" {
		return nil
	}
	paths, err := s.code.SearchFiles(ctx, owner, repo, query, doneScanFileFallback)
	if err != nil {
		s.logger.WarnContext(ctx, "file search fallback failed",
			"ticket", issue.Key,
			"error", err)
		return nil
	}
	var lines []string
	for _, path := range paths {
		lines = append(lines, fmt.Sprintf("REPO_FILE: %s | DESCRIPTION: name matches ticket keywords", path))
	}
	return lines
}

// postScanComment posts the summary comment unless the issue already
// carries the scan marker. A failed duplicate check proceeds with the
// post.
func (s *doneScanService) postScanComment(ctx context.Context, issueKey, summaryText string) (string, error) {
	issue, err := s.tracker.FetchIssue(ctx, issueKey)
	if err != nil {
		s.logger.WarnContext(ctx, "duplicate-scan check failed; proceeding",
			"ticket", issueKey,
			"error", err)
	} else if strings.Contains(issue.Raw, doneScanMarker) {
		return "skipped:duplicate", nil
	}
	body := fmt.Sprintf("%s\nImplementation scan for %s:\n%s", doneScanMarker, issueKey, summaryText)
	if err := s.tracker.AddComment(ctx, issueKey, body); err != nil {
		return "", fmt.Errorf("add done-scan comment: %w", err)
	}
	return "posted", nil
}

func (s *doneScanService) persistRun(ctx context.Context, issue model.IssueContext, summaryText, commentStatus string) {
	if !s.recorder.Enabled() {
		return
	}
	s.recorder.RecordEvent(ctx, &model.Event{
		EventType:  model.EventTypeDoneScanCompleted,
		Workflow:   model.WorkflowDoneScan,
		TicketKey:  &issue.Key,
		ProjectKey: optionalString(issue.ProjectKey),
		Label:      optionalString(issue.PrimaryLabel),
		Component:  optionalString(issue.PrimaryComponent),
		Payload: jsonPayload(map[string]any{
			"summary_text":   summaryText,
			"comment_status": commentStatus,
		}),
	})
}

func fileNamesCSV(files []model.FileChange) string {
	if len(files) == 0 {
		return "none"
	}
	names := make([]string, 0, len(files))
	for _, file := range files {
		names = append(names, file.Filename)
	}
	return strings.Join(names, ", ")
}

func buildDoneScanSummarizePrompt(issueKey, summary, scanText string) string {
	return fmt.Sprintf(
		"Read the scanner's findings about ticket %s (%s).\n\n"+
			"Steps:\n"+
			"- Map the found files and changes to the ticket requirements.\n"+
			"- Identify the key areas of the codebase that were modified or that contain relevant functionality.\n"+
			"- If findings came from commits/PRs, summarize what was changed.\n"+
			"- If findings came from the file-based fallback (REPO_FILE entries), describe "+
			"which files likely contain the implemented functionality and what they do.\n"+
			"- Produce a plain-text implementation summary (no markdown).\n\n"+
			"Output format:\n"+
			"IMPLEMENTATION_SUMMARY: <2-3 sentences describing what was implemented or where the functionality lives>\n"+
			"FILES_CHANGED: <file1>, <file2>, ...\n\n"+
			"Scanner findings:\n%s\n",
		issueKey, summary, scanText)
}

const doneScanSystemPrompt = `You are the implementation summarizer for completed tickets. You distill code change findings into clear implementation summaries.`
