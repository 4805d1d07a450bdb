package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hongdnn/leadsync/common"
	"github.com/hongdnn/leadsync/common/llm"
	"github.com/hongdnn/leadsync/core/config"
	"github.com/hongdnn/leadsync/internal/mapper"
	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/service/codehost"
)

const (
	prDetailsMarkerStart = "<!-- leadsync:pr-details:start -->"
	prDetailsMarkerEnd   = "<!-- leadsync:pr-details:end -->"
	ruleEngineModel      = "rule-engine"
	maxPRFileLines       = 15
	diffContextMaxChars  = 16000
)

var prProcessActions = map[string]bool{
	"opened":           true,
	"reopened":         true,
	"synchronize":      true,
	"edited":           true,
	"ready_for_review": true,
}

var prCategoryOrder = []string{"Backend", "Frontend", "Database", "Testing", "Documentation"}

// AISections is the schema-typed model output that can replace the
// deterministic Summary, Implementation Details, and Suggested
// Validation sections of the PR block.
type AISections struct {
	Summary               string   `json:"summary" jsonschema_description:"One-sentence factual summary of the change"`
	ImplementationDetails []string `json:"implementation_details" jsonschema_description:"Bullet lines describing what the diffs actually change"`
	SuggestedValidation   []string `json:"suggested_validation" jsonschema_description:"Bullet lines describing how to validate the change"`
}

var prSectionsSchema = llm.GenerateSchema[AISections]()

// PRDescribeService maintains a managed details block inside pull
// request descriptions, regenerated from the changed files on every
// qualifying webhook action.
type PRDescribeService interface {
	Run(ctx context.Context, payload map[string]any) (*model.RunResult, error)
}

type prDescribeService struct {
	cfg    config.Config
	llm    llm.Client
	code   codehost.Client
	logger *slog.Logger
}

func NewPRDescribeService(cfg config.Config, llmClient llm.Client, code codehost.Client, logger *slog.Logger) PRDescribeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &prDescribeService{cfg: cfg, llm: llmClient, code: code, logger: logger}
}

func (s *prDescribeService) Run(ctx context.Context, payload map[string]any) (*model.RunResult, error) {
	pr := mapper.ParsePRContext(payload)
	if !prProcessActions[pr.Action] {
		return &model.RunResult{
			Raw:   fmt.Sprintf("skipped: unsupported action '%s'", pr.Action),
			Model: ruleEngineModel,
		}, nil
	}
	if pr.Number == 0 || pr.Owner == "" || pr.Repo == "" {
		return &model.RunResult{Raw: "skipped: missing pull request metadata", Model: ruleEngineModel}, nil
	}

	files := s.listPRFiles(ctx, pr)

	var ai *AISections
	if s.cfg.PR.AISections {
		sections, err := s.generateAISections(ctx, pr.TicketKey, pr.Title, files)
		if err != nil {
			s.logger.WarnContext(ctx, "model-written pr sections failed; using deterministic renderer",
				"pr", pr.Number,
				"error", err)
		} else {
			ai = sections
		}
	}

	block := RenderPRDetails(pr.TicketKey, pr.Title, files, ai)
	updatedBody := UpsertPRDetailsBlock(pr.Body, block)
	if err := s.code.UpdatePullRequestBody(ctx, pr.Owner, pr.Repo, pr.Number, updatedBody); err != nil {
		return nil, fmt.Errorf("update pull request body: %w", err)
	}

	ticket := pr.TicketKey
	if ticket == "" {
		ticket = "no-ticket-key"
	}
	return &model.RunResult{
		Raw: fmt.Sprintf("updated: PR #%d (%s) auto-details action=%s files=%d",
			pr.Number, ticket, pr.Action, len(files)),
		Model: ruleEngineModel,
	}, nil
}

// listPRFiles discovers changed files through a cascade of sources,
// each consulted only when the previous one produced nothing: file
// listing, commit compare, per-commit file lists, raw diff parse.
// Every failure degrades to the next source.
func (s *prDescribeService) listPRFiles(ctx context.Context, pr model.PRContext) []model.FileChange {
	files, err := s.code.ListPullRequestFiles(ctx, pr.Owner, pr.Repo, pr.Number)
	if err != nil {
		s.logger.WarnContext(ctx, "pull request file listing failed",
			"pr", pr.Number,
			"error", err)
	}
	if merged := mergeFilesByPath(files); len(merged) > 0 {
		return merged
	}

	if pr.BaseSHA != "" && pr.HeadSHA != "" {
		compared, err := s.code.CompareCommits(ctx, pr.Owner, pr.Repo, pr.BaseSHA, pr.HeadSHA)
		if err != nil {
			s.logger.WarnContext(ctx, "commit compare failed",
				"pr", pr.Number,
				"error", err)
		}
		if merged := mergeFilesByPath(compared); len(merged) > 0 {
			return merged
		}
	}

	commits, err := s.code.ListPullRequestCommits(ctx, pr.Owner, pr.Repo, pr.Number)
	if err != nil {
		s.logger.WarnContext(ctx, "pull request commit listing failed",
			"pr", pr.Number,
			"error", err)
	}
	var all []model.FileChange
	for _, commit := range commits {
		detail, err := s.code.GetCommit(ctx, pr.Owner, pr.Repo, commit.SHA)
		if err != nil {
			continue
		}
		all = append(all, detail.Files...)
	}
	if merged := mergeFilesByPath(all); len(merged) > 0 {
		return merged
	}

	diffText, err := s.code.GetRawPullRequestDiff(ctx, pr.Owner, pr.Repo, pr.Number)
	if err != nil {
		s.logger.WarnContext(ctx, "raw diff fetch failed",
			"pr", pr.Number,
			"error", err)
		return nil
	}
	return ParseUnifiedDiff(diffText)
}

func (s *prDescribeService) generateAISections(ctx context.Context, ticketKey, prTitle string, files []model.FileChange) (*AISections, error) {
	diffContext := buildDiffContext(files, diffContextMaxChars)
	if diffContext == "" {
		return nil, errors.New("no diff context available")
	}
	run := llm.NewFallback(s.llm, s.cfg.LLM.Model, s.cfg.LLM.FallbackModel, s.logger)
	var sections AISections
	if _, err := run.ChatSchema(ctx, llm.SchemaRequest{
		Model:        s.cfg.LLM.Model,
		SystemPrompt: prWriterSystemPrompt,
		UserPrompt:   buildPRWriterPrompt(ticketKey, prTitle, diffContext),
		SchemaName:   "pr_sections",
		Schema:       prSectionsSchema,
		Temperature:  llm.Temp(0.2),
	}, &sections); err != nil {
		return nil, err
	}

	sections.Summary = strings.TrimSpace(sections.Summary)
	if sections.Summary == "" {
		return nil, errors.New("model output missing summary")
	}
	sections.ImplementationDetails = normalizeSectionLines(sections.ImplementationDetails)
	if len(sections.ImplementationDetails) == 0 {
		return nil, errors.New("model output missing implementation details")
	}
	sections.SuggestedValidation = normalizeSectionLines(sections.SuggestedValidation)
	if len(sections.SuggestedValidation) == 0 {
		sections.SuggestedValidation = []string{"Run relevant unit/integration tests for touched modules."}
	}
	return &sections, nil
}

// RenderPRDetails renders the marker-delimited details block. When ai
// is set its sections replace the deterministic summary, implementation
// details, and validation hints; file listing and context stay
// rule-derived either way.
func RenderPRDetails(ticketKey, prTitle string, files []model.FileChange, ai *AISections) string {
	grouped := groupFilesByCategory(files)
	var touched []string
	for _, name := range prCategoryOrder {
		if len(grouped[name]) > 0 {
			touched = append(touched, name)
		}
	}
	areasLine := strings.Join(touched, ", ")
	if areasLine == "" {
		areasLine = "Backend"
	}
	summary := common.FirstNonBlank([]string{prTitle, ticketKey, "PR update"})

	implementationLines := []string{
		fmt.Sprintf("- This PR focuses on: %s.", summary),
		fmt.Sprintf("- Main code areas changed: %s.", areasLine),
		"- Changes were inferred directly from the modified files list.",
	}
	var testingHints []string
	if len(grouped["Testing"]) > 0 {
		testingHints = append(testingHints, "- Includes test file changes; run unit/integration suite for touched modules.")
	} else {
		testingHints = append(testingHints, "- No test files detected in this PR; validate if tests should be added.")
	}
	if len(grouped["Database"]) > 0 {
		testingHints = append(testingHints, "- Database-related changes detected; verify migrations and backward compatibility.")
	}
	if len(grouped["Frontend"]) > 0 {
		testingHints = append(testingHints, "- Frontend changes detected; verify UI behavior manually in staging.")
	}

	if ai != nil {
		summary = ai.Summary
		implementationLines = bulletLines(ai.ImplementationDetails)
		testingHints = bulletLines(ai.SuggestedValidation)
	}

	ticketLine := ticketKey
	if ticketLine == "" {
		ticketLine = "not detected from branch/title/body"
	}
	return prDetailsMarkerStart + "\n" +
		"## Summary\n" +
		summary + "\n\n" +
		"## Context\n" +
		fmt.Sprintf("- Ticket key: %s\n", ticketLine) +
		"- Auto-generated from code changes.\n\n" +
		"## Implementation Details\n" +
		strings.Join(implementationLines, "\n") + "\n\n" +
		"## Files Changed\n" +
		renderFileLines(files) + "\n\n" +
		"## Suggested Validation\n" +
		strings.Join(testingHints, "\n") + "\n" +
		prDetailsMarkerEnd
}

// UpsertPRDetailsBlock replaces an existing marker block in place,
// keeping everything outside the markers, and appends when no block
// exists yet.
func UpsertPRDetailsBlock(existingBody, block string) string {
	body := strings.TrimSpace(existingBody)
	start := strings.Index(body, prDetailsMarkerStart)
	end := strings.Index(body, prDetailsMarkerEnd)
	if start >= 0 && end >= 0 {
		end += len(prDetailsMarkerEnd)
		before := strings.TrimRight(body[:start], " \t\r\n")
		after := strings.TrimLeft(body[end:], " \t\r\n")
		return strings.TrimSpace(before + "\n\n" + block + "\n\n" + after)
	}
	if body == "" {
		return block
	}
	return body + "\n\n" + block
}

func categoryForPath(path string) string {
	lowered := strings.ToLower(path)
	switch {
	case containsAny(lowered, "test", "spec", "__tests__"):
		return "Testing"
	case containsAny(lowered, "ui/", "frontend", "web/", "components/", "pages/"):
		return "Frontend"
	case containsAny(lowered, "db/", "database", "migration", "schema", "sql"):
		return "Database"
	case containsAny(lowered, "docs/", "readme", ".md"):
		return "Documentation"
	default:
		return "Backend"
	}
}

func groupFilesByCategory(files []model.FileChange) map[string][]model.FileChange {
	grouped := make(map[string][]model.FileChange, len(prCategoryOrder))
	for _, file := range files {
		category := categoryForPath(file.Filename)
		grouped[category] = append(grouped[category], file)
	}
	return grouped
}

func renderFileLines(files []model.FileChange) string {
	if len(files) == 0 {
		return "- No changed files detected from webhook tooling."
	}
	var lines []string
	for i, file := range files {
		if i >= maxPRFileLines {
			break
		}
		filename := file.Filename
		if filename == "" {
			filename = "unknown"
		}
		status := file.Status
		if status == "" {
			status = "modified"
		}
		lines = append(lines, fmt.Sprintf("- `%s` (%s, +%d/-%d)", filename, status, file.Additions, file.Deletions))
	}
	if remaining := len(files) - maxPRFileLines; remaining > 0 {
		lines = append(lines, fmt.Sprintf("- ... and %d more files", remaining))
	}
	return strings.Join(lines, "\n")
}

func buildDiffContext(files []model.FileChange, maxChars int) string {
	var sections []string
	consumed := 0
	for _, file := range files {
		filename := file.Filename
		if filename == "" {
			filename = "unknown"
		}
		status := file.Status
		if status == "" {
			status = "modified"
		}
		body := strings.TrimSpace(file.Patch)
		if body == "" {
			body = "(patch unavailable)"
		}
		chunk := fmt.Sprintf("FILE: %s (%s, +%d/-%d)\n%s\n", filename, status, file.Additions, file.Deletions, body)
		if consumed+len(chunk) > maxChars {
			break
		}
		sections = append(sections, chunk)
		consumed += len(chunk)
	}
	return strings.TrimSpace(strings.Join(sections, "\n"))
}

func buildPRWriterPrompt(ticketKey, prTitle, diffContext string) string {
	key := ticketKey
	if key == "" {
		key = "N/A"
	}
	title := prTitle
	if title == "" {
		title = "N/A"
	}
	return fmt.Sprintf(
		"Generate PR sections using ONLY the diff context below.\n"+
			"Do not invent architecture not present in diffs.\n\n"+
			"Ticket key: %s\n"+
			"PR title: %s\n\n"+
			"Diff context:\n%s\n",
		key, title, diffContext)
}

func normalizeSectionLines(values []string) []string {
	var lines []string
	for _, value := range values {
		if line := strings.TrimSpace(value); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func bulletLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if !strings.HasPrefix(line, "- ") {
			line = "- " + line
		}
		out = append(out, line)
	}
	return out
}

func containsAny(value string, tokens ...string) bool {
	for _, token := range tokens {
		if strings.Contains(value, token) {
			return true
		}
	}
	return false
}

const prWriterSystemPrompt = `You are a senior reviewer who writes concise, factual pull request descriptions based only on the provided code changes.`
