package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/hongdnn/leadsync/common"
	"github.com/hongdnn/leadsync/internal/service/issue_tracker"
)

const (
	maxHistoryLines = 4
	maxKeyFileLines = 4
	maxSectionLines = 4
)

// CleanLines normalizes multiline text into compact plain-text lines:
// bullet prefixes and backticks stripped, whitespace collapsed, capped
// at limit.
func CleanLines(text string, limit int) []string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
			line = strings.TrimSpace(line[2:])
		}
		line = strings.Trim(line, "`")
		line = common.NormalizeWhitespace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) >= limit {
			break
		}
	}
	return lines
}

// ExtractPromptSection returns the trimmed body between a heading and
// the next "## " heading, or "" when the heading is absent.
func ExtractPromptSection(markdown, heading string) string {
	idx := strings.Index(markdown, heading+"\n")
	if idx < 0 {
		return ""
	}
	body := markdown[idx+len(heading)+1:]
	if end := strings.Index(body, "\n## "); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// WritebackParams carries everything the deterministic tracker
// write-back renders from.
type WritebackParams struct {
	IssueKey         string
	Summary          string
	SameLabelHistory string
	PromptMarkdown   string
	KeyFilesMarkdown string
	RepoOwner        string
	RepoName         string
}

// BuildCommentText renders the plain-text progress comment posted back
// to the ticket.
func BuildCommentText(params WritebackParams) string {
	historyLines := CleanLines(params.SameLabelHistory, maxHistoryLines)
	keyFileLines := CleanLines(params.KeyFilesMarkdown, maxKeyFileLines)
	lines := []string{"Previous same-label progress:"}
	lines = appendOrFallback(lines, historyLines, "No completed same-label tickets found.")
	lines = append(lines,
		"Recommended implementation path for current task:",
		fmt.Sprintf("Target repository: %s/%s.", params.RepoOwner, params.RepoName),
		fmt.Sprintf("Issue scope: %s - %s", params.IssueKey, summaryOrDefault(params.Summary)),
	)
	lines = appendOrFallback(lines, keyFileLines, "No key files were identified.")
	lines = append(lines, "Validate behavior with focused tests before marking done.")
	return strings.Join(lines, "\n")
}

// BuildDescriptionText renders the plain-text description update from
// the final prompt artifact's sections.
func BuildDescriptionText(params WritebackParams) string {
	constraints := CleanLines(ExtractPromptSection(params.PromptMarkdown, "## Constraints"), maxSectionLines)
	outputs := CleanLines(ExtractPromptSection(params.PromptMarkdown, "## Expected Output"), maxSectionLines)
	keyFiles := CleanLines(params.KeyFilesMarkdown, maxKeyFileLines)
	lines := []string{
		fmt.Sprintf("Technical implementation guidance for %s: %s", params.IssueKey, summaryOrDefault(params.Summary)),
		fmt.Sprintf("Repository target: %s/%s.", params.RepoOwner, params.RepoName),
		"Key files to inspect first:",
	}
	lines = appendOrFallback(lines, keyFiles, "No key files were identified.")
	lines = append(lines, "Constraints:")
	lines = appendOrFallback(lines, constraints, "Respect existing Jira scope and repository patterns.")
	lines = append(lines, "Expected output:")
	lines = appendOrFallback(lines, outputs, "Code changes, tests, and docs updates where needed.")
	lines = append(lines, "See the attached prompt file for full implementation rules and team preferences.")
	return strings.Join(lines, "\n")
}

// ApplyWriteback pushes the description update and then the comment.
// Both writes are required; either failure aborts the run.
func ApplyWriteback(ctx context.Context, tracker issue_tracker.IssueTrackerService, params WritebackParams) error {
	if err := tracker.UpdateDescription(ctx, params.IssueKey, BuildDescriptionText(params)); err != nil {
		return fmt.Errorf("update issue description: %w", err)
	}
	if err := tracker.AddComment(ctx, params.IssueKey, BuildCommentText(params)); err != nil {
		return fmt.Errorf("add issue comment: %w", err)
	}
	return nil
}

func appendOrFallback(lines, items []string, fallback string) []string {
	if len(items) == 0 {
		return append(lines, fallback)
	}
	return append(lines, items...)
}

func summaryOrDefault(summary string) string {
	if summary == "" {
		summary = "No summary provided."
	}
	return strings.TrimSpace(summary)
}
