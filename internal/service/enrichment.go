package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hongdnn/leadsync/common"
	"github.com/hongdnn/leadsync/common/llm"
	"github.com/hongdnn/leadsync/core/config"
	"github.com/hongdnn/leadsync/internal/mapper"
	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/service/issue_tracker"
)

const enrichmentHistoryLimit = 10

// EnrichmentService runs the ticket enrichment workflow: it turns an
// inbound issue webhook into an implementation prompt artifact attached
// to the ticket, plus a deterministic description update and comment.
type EnrichmentService interface {
	Run(ctx context.Context, payload map[string]any) (*model.RunResult, error)
}

type enrichmentService struct {
	cfg      config.Config
	llm      llm.Client
	tracker  issue_tracker.IssueTrackerService
	history  HistoryService
	prefs    PreferenceService
	memory   MemoryQueryService
	recorder *Recorder
	logger   *slog.Logger
}

func NewEnrichmentService(
	cfg config.Config,
	llmClient llm.Client,
	tracker issue_tracker.IssueTrackerService,
	history HistoryService,
	prefs PreferenceService,
	memory MemoryQueryService,
	recorder *Recorder,
	logger *slog.Logger,
) EnrichmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &enrichmentService{
		cfg:      cfg,
		llm:      llmClient,
		tracker:  tracker,
		history:  history,
		prefs:    prefs,
		memory:   memory,
		recorder: recorder,
		logger:   logger,
	}
}

func (s *enrichmentService) Run(ctx context.Context, payload map[string]any) (*model.RunResult, error) {
	issue := mapper.ParseIssueContext(payload)
	if !s.cfg.GitHub.HasRepoTarget() {
		return nil, ErrMissingRepoTarget
	}
	repoOwner := s.cfg.GitHub.RepoOwner
	repoName := s.cfg.GitHub.RepoName

	rulesetFile := SelectRulesetFile(issue.Labels, issue.Components)
	rulesetContent := LoadRulesetContent(rulesetFile)
	category := s.prefs.ResolveCategory(issue.Labels, issue.Components)
	teamPreferences, err := s.prefs.LoadForCategory(ctx, category)
	if err != nil {
		return nil, err
	}

	sameLabelHistory := s.history.SameLabelProgressContext(ctx, issue.ProjectKey, issue.PrimaryLabel, issue.Key, enrichmentHistoryLimit)
	contextText := commonIssueContext(issue) + "Same-label history context:\n" + sameLabelHistory + "\n"

	generalRules := ""
	if s.recorder.Enabled() {
		generalRules, err = s.memory.LeaderRulesText(ctx, "")
		if err != nil {
			s.logger.WarnContext(ctx, "leader rules unavailable for enrichment run",
				"ticket_key", issue.Key,
				"error", err)
			generalRules = ""
		}
	}

	run := llm.NewFallback(s.llm, s.cfg.LLM.Model, s.cfg.LLM.FallbackModel, s.logger)

	gathered, err := run.Generate(ctx, llm.Request{
		SystemPrompt: gathererSystemPrompt,
		UserPrompt:   buildGatherPrompt(contextText, repoOwner, repoName),
	})
	if err != nil {
		return nil, fmt.Errorf("gather issue context: %w", err)
	}

	keyFiles := ParseKeyFiles(gathered)
	if len(keyFiles) == 0 {
		s.logger.WarnContext(ctx, "gatherer output carried no key-file lines",
			"ticket_key", issue.Key)
	}
	keyFilesMarkdown := RenderKeyFilesMarkdown(keyFiles)

	reasoned, err := run.Generate(ctx, llm.Request{
		SystemPrompt: reasonerSystemPrompt,
		UserPrompt: buildReasonPrompt(reasonPromptParams{
			RulesetFile:        rulesetFile,
			RulesetContent:     rulesetContent,
			PreferenceCategory: category,
			TeamPreferences:    teamPreferences,
			CommonContext:      contextText,
			GeneralRules:       generalRules,
			Gathered:           gathered,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("reason implementation prompt: %w", err)
	}

	promptMarkdown := NormalizePromptMarkdown(PromptArtifactParams{
		ReasonerText:     reasoned,
		IssueKey:         issue.Key,
		Summary:          issue.Summary,
		GatheredContext:  gathered,
		KeyFilesMarkdown: keyFilesMarkdown,
		RulesetContent:   rulesetContent,
	})

	promptPath, err := WritePromptFile(s.cfg.ArtifactDir, issue.Key, promptMarkdown)
	if err != nil {
		return nil, err
	}
	filename := fmt.Sprintf("prompt-%s.md", common.SafeFileKey(issue.Key))
	if err := s.tracker.AttachFile(ctx, issue.Key, filename, []byte(promptMarkdown)); err != nil {
		return nil, fmt.Errorf("attach prompt artifact: %w", err)
	}

	if err := ApplyWriteback(ctx, s.tracker, WritebackParams{
		IssueKey:         issue.Key,
		Summary:          issue.Summary,
		SameLabelHistory: sameLabelHistory,
		PromptMarkdown:   promptMarkdown,
		KeyFilesMarkdown: keyFilesMarkdown,
		RepoOwner:        repoOwner,
		RepoName:         repoName,
	}); err != nil {
		return nil, err
	}

	s.persistRun(ctx, enrichmentRunRecord{
		Issue:            issue,
		Category:         category,
		UsedModel:        run.Model(),
		PromptPath:       promptPath,
		Reasoned:         reasoned,
		SameLabelHistory: sameLabelHistory,
		Gathered:         gathered,
		KeyFilesMarkdown: keyFilesMarkdown,
		KeyFileCount:     len(keyFiles),
		RepoOwner:        repoOwner,
		RepoName:         repoName,
	})

	return &model.RunResult{Raw: promptMarkdown, Model: run.Model()}, nil
}

type enrichmentRunRecord struct {
	Issue            model.IssueContext
	Category         model.PreferenceCategory
	UsedModel        string
	PromptPath       string
	Reasoned         string
	SameLabelHistory string
	Gathered         string
	KeyFilesMarkdown string
	KeyFileCount     int
	RepoOwner        string
	RepoName         string
}

func (s *enrichmentService) persistRun(ctx context.Context, rec enrichmentRunRecord) {
	if !s.recorder.Enabled() {
		return
	}
	issue := rec.Issue
	s.recorder.RecordEvent(ctx, &model.Event{
		EventType:  model.EventTypeTicketEnrichmentRun,
		Workflow:   model.WorkflowTicketEnrichment,
		TicketKey:  &issue.Key,
		ProjectKey: optionalString(issue.ProjectKey),
		Label:      optionalString(issue.PrimaryLabel),
		Component:  optionalString(issue.PrimaryComponent),
		Payload: jsonPayload(map[string]any{
			"preference_category": string(rec.Category),
			"model":               rec.UsedModel,
			"prompt_file":         rec.PromptPath,
			"repo_owner":          rec.RepoOwner,
			"repo_name":           rec.RepoName,
			"key_file_count":      rec.KeyFileCount,
		}),
	})

	summary := issue.Summary
	if summary == "" {
		summary = fmt.Sprintf("Technical guidance prepared for %s", issue.Key)
	}
	decision := rec.Reasoned
	if decision == "" {
		decision = "No explicit decision text captured."
	}
	rulesApplied := string(rec.Category)
	s.recorder.RecordMemoryItem(ctx, &model.MemoryItem{
		Workflow:     model.WorkflowTicketEnrichment,
		ItemType:     model.MemoryItemTypeTicketEnrichment,
		TicketKey:    &issue.Key,
		ProjectKey:   optionalString(issue.ProjectKey),
		Label:        optionalString(issue.PrimaryLabel),
		Component:    optionalString(issue.PrimaryComponent),
		Summary:      summary,
		Decision:     &decision,
		RulesApplied: &rulesApplied,
		Context: jsonPayload(map[string]any{
			"same_label_history": rec.SameLabelHistory,
			"gathered_context":   rec.Gathered,
			"key_files_markdown": rec.KeyFilesMarkdown,
		}),
	})
}

// commonIssueContext renders the issue block shared by both enrichment
// prompts.
func commonIssueContext(issue model.IssueContext) string {
	description := issue.Description
	if description == "" {
		description = "No description provided."
	}
	primaryLabel := issue.PrimaryLabel
	if primaryLabel == "" {
		primaryLabel = "N/A"
	}
	return fmt.Sprintf("Issue key: %s\n", issue.Key) +
		fmt.Sprintf("Summary: %s\n", issue.Summary) +
		fmt.Sprintf("Description: %s\n", description) +
		fmt.Sprintf("Labels: %v\n", issue.Labels) +
		fmt.Sprintf("Primary label: %s\n", primaryLabel) +
		fmt.Sprintf("Assignee: %s\n", issue.Assignee) +
		fmt.Sprintf("Project: %s\n", issue.ProjectKey) +
		fmt.Sprintf("Components: %v\n", issue.Components)
}

func buildGatherPrompt(commonContext, repoOwner, repoName string) string {
	return "Gather context for this issue.\n" +
		commonContext + "\n" +
		"Rules:\n" +
		fmt.Sprintf("- GitHub repository target: %s/%s\n", repoOwner, repoName) +
		"- Focus on code and files relevant to summary, description, labels, and components.\n" +
		"- Include recent commits as supporting signal only.\n" +
		"Required output:\n" +
		"1) Relevant linked/recent Jira issue summary\n" +
		"2) Last 24h main-branch commits related to this issue scope (if found)\n" +
		"3) Risks/constraints discovered\n" +
		"4) Summary of previous progress from the latest 10 completed same-label tickets\n" +
		"5) 3-8 source files or modules likely impacted as strict lines in this exact format:\n" +
		"   KEY_FILE: <path> | WHY: <one-line rationale> | CONFIDENCE: <high|medium|low>\n"
}

type reasonPromptParams struct {
	RulesetFile        string
	RulesetContent     string
	PreferenceCategory model.PreferenceCategory
	TeamPreferences    string
	CommonContext      string
	GeneralRules       string
	Gathered           string
}

func buildReasonPrompt(params reasonPromptParams) string {
	generalRulesBlock := ""
	if params.GeneralRules != "" {
		generalRulesBlock = fmt.Sprintf("Apply these general leader rules to ALL tickets:\n%s\n", params.GeneralRules)
	}
	return "From gathered context, generate:\n" +
		"1) One markdown document with these exact sections in order:\n" +
		"   - ## Task\n" +
		"   - ## Context\n" +
		"   - ## Key Files\n" +
		"   - ## Constraints\n" +
		"   - ## Implementation Rules\n" +
		"   - ## Expected Output\n" +
		"2) In the Context section, include a concise summary of previous same-label completed " +
		"work so the assignee sees what has already been completed in this development phase.\n" +
		"3) In the Key Files section, include exactly the key files from gatherer output with path, why, and confidence.\n" +
		generalRulesBlock +
		fmt.Sprintf("4) Apply rules from selected ruleset '%s':\n%s\n", params.RulesetFile, params.RulesetContent) +
		fmt.Sprintf("5) Apply team preference guidance from Google Docs category '%s':\n%s\n", params.PreferenceCategory, params.TeamPreferences) +
		"6) Add implementation output checklist (code/tests/docs)\n" +
		"7) Keep tone technical and execution-oriented. Avoid broad ticket summaries.\n" +
		params.CommonContext +
		"\nGathered context:\n" + params.Gathered + "\n"
}

const (
	gathererSystemPrompt = "You are the context gatherer for ticket enrichment. " +
		"You collect issue-tracker and repository context needed to implement the issue correctly, " +
		"working only from the inputs provided in the request."

	reasonerSystemPrompt = "You are the intent reasoner for ticket enrichment. " +
		"You map labels to rulesets and produce a copy-paste-ready engineering prompt."
)
