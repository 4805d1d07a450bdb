package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hongdnn/leadsync/common"
)

var requiredPromptSections = []string{
	"## Task",
	"## Context",
	"## Key Files",
	"## Constraints",
	"## Implementation Rules",
	"## Expected Output",
}

// HasRequiredPromptSections reports whether markdown carries every
// heading the prompt artifact contract requires.
func HasRequiredPromptSections(markdown string) bool {
	for _, section := range requiredPromptSections {
		if !strings.Contains(markdown, section) {
			return false
		}
	}
	return true
}

// PromptArtifactParams carries the pieces that assemble a ticket
// enrichment prompt artifact.
type PromptArtifactParams struct {
	ReasonerText     string
	IssueKey         string
	Summary          string
	GatheredContext  string
	KeyFilesMarkdown string
	RulesetContent   string
}

// NormalizePromptMarkdown returns the reasoner output verbatim when it
// already carries every required section, otherwise assembles a
// deterministic fallback document from the run's inputs.
func NormalizePromptMarkdown(params PromptArtifactParams) string {
	if params.ReasonerText != "" && HasRequiredPromptSections(params.ReasonerText) {
		return strings.TrimSpace(params.ReasonerText) + "\n"
	}
	summaryText := strings.TrimSpace(params.Summary)
	if summaryText == "" {
		summaryText = "No summary provided."
	}
	contextText := strings.TrimSpace(params.GatheredContext)
	if contextText == "" {
		contextText = "No additional context gathered."
	}
	rulesText := strings.TrimSpace(params.RulesetContent)
	if rulesText == "" {
		rulesText = "- No ruleset content found; use backend defaults."
	}
	expectedOutput := strings.TrimSpace(params.ReasonerText)
	if expectedOutput == "" {
		expectedOutput = "Provide an implementation-ready prompt."
	}
	constraintsText := "- Stay aligned with Jira scope and linked context.\n" +
		"- Keep output paste-ready for the assignee.\n" +
		"- Follow repository standards and existing patterns."
	return "## Task\n" +
		fmt.Sprintf("- Ticket: %s\n", params.IssueKey) +
		fmt.Sprintf("- Summary: %s\n\n", summaryText) +
		"## Context\n" +
		contextText + "\n\n" +
		"## Key Files\n" +
		params.KeyFilesMarkdown + "\n\n" +
		"## Constraints\n" +
		constraintsText + "\n\n" +
		"## Implementation Rules\n" +
		rulesText + "\n\n" +
		"## Expected Output\n" +
		expectedOutput + "\n"
}

// WritePromptFile persists the prompt artifact under
// {artifactDir}/workflow1 and returns the absolute path.
func WritePromptFile(artifactDir, issueKey, markdown string) (string, error) {
	dir := filepath.Join(artifactDir, "workflow1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("prompt-%s.md", common.SafeFileKey(issueKey)))
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return "", fmt.Errorf("write prompt artifact: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}
