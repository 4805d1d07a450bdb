package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hongdnn/leadsync/common"
	"github.com/hongdnn/leadsync/common/llm"
	"github.com/hongdnn/leadsync/core/config"
	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/service/chat"
	"github.com/hongdnn/leadsync/internal/service/issue_tracker"
)

const slackHistoryLimit = 10

// SlackQAParams carries one developer question. ThreadTS and ChannelID
// come from the slash-command form when present; an empty ChannelID
// falls back to the configured digest channel.
type SlackQAParams struct {
	TicketKey string
	Question  string
	ThreadTS  string
	ChannelID string
}

// SlackQAService answers a developer question about a ticket in the
// channel it was asked from. The answer style depends on the classified
// question type: progress report, opinionated recommendation, or plain
// ticket facts.
type SlackQAService interface {
	Run(ctx context.Context, params SlackQAParams) (*model.RunResult, error)
}

type slackQAService struct {
	cfg      config.Config
	llm      llm.Client
	tracker  issue_tracker.IssueTrackerService
	history  HistoryService
	prefs    PreferenceService
	memory   MemoryQueryService
	chat     chat.Service
	recorder *Recorder
	logger   *slog.Logger
}

func NewSlackQAService(
	cfg config.Config,
	llmClient llm.Client,
	tracker issue_tracker.IssueTrackerService,
	history HistoryService,
	prefs PreferenceService,
	memory MemoryQueryService,
	chatService chat.Service,
	recorder *Recorder,
	logger *slog.Logger,
) SlackQAService {
	if logger == nil {
		logger = slog.Default()
	}
	return &slackQAService{
		cfg:      cfg,
		llm:      llmClient,
		tracker:  tracker,
		history:  history,
		prefs:    prefs,
		memory:   memory,
		chat:     chatService,
		recorder: recorder,
		logger:   logger,
	}
}

// ParseSlackText splits a slash-command text into ticket key and
// question. The question keeps its original spacing.
func ParseSlackText(text string) (ticketKey, question string) {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 2)
	if len(parts) < 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func (s *slackQAService) Run(ctx context.Context, params SlackQAParams) (*model.RunResult, error) {
	channelID := params.ChannelID
	if channelID == "" {
		channelID = s.cfg.Slack.ChannelID
	}
	if channelID == "" {
		return nil, Preconditionf("Missing required env var: SLACK_CHANNEL_ID")
	}

	var issue *issue_tracker.Issue
	var projectKey, primaryLabel, primaryComponent string
	fetched, err := s.tracker.FetchIssue(ctx, params.TicketKey)
	if err != nil {
		s.logger.WarnContext(ctx, "ticket fetch failed; answering without ticket facts",
			"ticket", params.TicketKey,
			"error", err)
	} else {
		issue = fetched
		projectKey = strings.TrimSpace(issue.ProjectKey)
		primaryLabel = common.FirstNonBlank(issue.Labels)
		primaryComponent = common.FirstNonBlank(issue.Components)
	}

	var labels, components []string
	if primaryLabel != "" {
		labels = []string{primaryLabel}
	}
	if primaryComponent != "" {
		components = []string{primaryComponent}
	}
	category := s.prefs.ResolveCategory(labels, components)
	teamPreferences, err := s.prefs.LoadForCategory(ctx, category)
	if err != nil {
		return nil, err
	}

	sameLabelHistory := s.history.SameLabelProgressContext(ctx, projectKey, primaryLabel, params.TicketKey, slackHistoryLimit)

	memoryContext := "Memory context unavailable for this run."
	if s.recorder.Enabled() {
		rendered, err := s.memory.SlackMemoryContext(ctx, MemoryContextParams{
			TicketKey:  params.TicketKey,
			ProjectKey: projectKey,
			Label:      primaryLabel,
			Component:  optionalString(primaryComponent),
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "memory context build failed; using fallback text",
				"ticket", params.TicketKey,
				"error", err)
		} else {
			memoryContext = rendered
		}
	}

	run := llm.NewFallback(s.llm, s.cfg.LLM.Model, s.cfg.LLM.FallbackModel, s.logger)

	classified, err := run.Generate(ctx, llm.Request{
		Model:        s.cfg.LLM.Model,
		SystemPrompt: slackRetrieverSystemPrompt,
		UserPrompt:   buildSlackClassifyPrompt(params.TicketKey, params.Question, issue, sameLabelHistory, memoryContext, primaryLabel),
	})
	if err != nil {
		return nil, fmt.Errorf("classify slack question: %w", err)
	}
	questionType := ParseQuestionType(classified)

	answer, err := run.Generate(ctx, llm.Request{
		Model:        s.cfg.LLM.Model,
		SystemPrompt: slackReasonerSystemPrompt,
		UserPrompt:   buildSlackAnswerPrompt(params.Question, classified, questionType, category, teamPreferences),
	})
	if err != nil {
		return nil, fmt.Errorf("answer slack question: %w", err)
	}

	message := fmt.Sprintf("[%s] LeadSync summary:\n%s", params.TicketKey, answer)
	if err := s.chat.PostMessage(ctx, chat.PostMessageParams{
		Channel:  channelID,
		Text:     message,
		ThreadTS: params.ThreadTS,
	}); err != nil {
		return nil, fmt.Errorf("post slack answer: %w", err)
	}

	s.persistRun(ctx, slackQARunRecord{
		Params:           params,
		ProjectKey:       projectKey,
		PrimaryLabel:     primaryLabel,
		PrimaryComponent: primaryComponent,
		Category:         category,
		Answer:           answer,
		ChannelID:        channelID,
	})

	return &model.RunResult{Raw: message, Model: run.Model()}, nil
}

// ParseQuestionType reads the QUESTION_TYPE marker on the first line of
// retriever output. Anything unrecognized answers as GENERAL.
func ParseQuestionType(text string) model.QuestionType {
	firstLine := text
	if idx := strings.Index(text, "\n"); idx >= 0 {
		firstLine = text[:idx]
	}
	rest, found := strings.CutPrefix(strings.TrimSpace(firstLine), "QUESTION_TYPE:")
	if !found {
		return model.QuestionTypeGeneral
	}
	switch strings.ToUpper(strings.TrimSpace(rest)) {
	case string(model.QuestionTypeProgress):
		return model.QuestionTypeProgress
	case string(model.QuestionTypeImplementation):
		return model.QuestionTypeImplementation
	case string(model.QuestionTypeGeneral):
		return model.QuestionTypeGeneral
	default:
		return model.QuestionTypeGeneral
	}
}

func renderIssueFacts(issue *issue_tracker.Issue) string {
	if issue == nil {
		return "Ticket details unavailable."
	}
	description := issue.Description
	if description == "" {
		description = "No description provided."
	}
	return fmt.Sprintf("Summary: %s\nStatus: %s\nAssignee: %s\nLabels: %s\nDescription: %s",
		issue.Summary,
		issue.Status,
		issue.Assignee,
		strings.Join(issue.Labels, ", "),
		description,
	)
}

func buildSlackClassifyPrompt(ticketKey, question string, issue *issue_tracker.Issue, sameLabelHistory, memoryContext, primaryLabel string) string {
	label := primaryLabel
	if label == "" {
		label = "N/A"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %s details:\n%s\n\n", ticketKey, renderIssueFacts(issue))
	fmt.Fprintf(&b, "Developer question: %s\n", question)
	b.WriteString("Classify the developer question using this rule:\n" +
		"  PROGRESS: asks what has already been completed previously for this same label/category,\n" +
		"  asks about phase progress, or asks what similar prior tickets already delivered.\n" +
		"  IMPLEMENTATION: asks HOW to do something, WHICH approach to take, SHOULD I use X or Y.\n" +
		"  GENERAL: asks WHAT the ticket is about, WHO is assigned, due/status/description details.\n" +
		"Output the classification as the FIRST line exactly as QUESTION_TYPE: PROGRESS,\n" +
		"QUESTION_TYPE: IMPLEMENTATION, or QUESTION_TYPE: GENERAL.\n" +
		"After the first line, output structured ticket context relevant to the question.\n\n")
	fmt.Fprintf(&b, "Same-label prior progress context:\n%s\n", sameLabelHistory)
	fmt.Fprintf(&b, "Stored workflow memory context:\n%s\n", memoryContext)
	b.WriteString("- Use memory context to reference prior decisions and previous Q&A when relevant.\n")
	fmt.Fprintf(&b, "Current ticket primary label: %s", label)
	return b.String()
}

func buildSlackAnswerPrompt(question, classified string, questionType model.QuestionType, category model.PreferenceCategory, teamPreferences string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	b.WriteString("Retriever output:\n" + classified + "\n\n")
	switch questionType {
	case model.QuestionTypeProgress:
		b.WriteString("Answer as a progress report:\n" +
			"- Start with this exact line: 'Here is summary of previous progress related to tasks with the same label:'.\n" +
			"- Provide 3-6 bullets with completed ticket keys and what was completed earlier.\n" +
			"- End with one short line: 'What this means now: ...'.\n" +
			"- Do NOT include meta/system wording (e.g., 'ticket enriched', 'ready for development').\n")
	case model.QuestionTypeImplementation:
		b.WriteString("Apply the following tech lead guidance to give an opinionated recommendation:\n")
		fmt.Fprintf(&b, "- Category: %s\n---\n%s\n---\n", category, teamPreferences)
		b.WriteString("- Return direct recommendation in 2-4 sentences with one bullet list of key tradeoffs.\n" +
			"- Mention tradeoffs when they matter.\n")
	default:
		b.WriteString("Answer factually:\n" +
			"- Return only factual information from the ticket in 1-2 sentences.\n" +
			"- Do NOT reference or apply any tech lead preferences.\n" +
			"- Do NOT give implementation opinions.\n")
	}
	return b.String()
}

type slackQARunRecord struct {
	Params           SlackQAParams
	ProjectKey       string
	PrimaryLabel     string
	PrimaryComponent string
	Category         model.PreferenceCategory
	Answer           string
	ChannelID        string
}

func (s *slackQAService) persistRun(ctx context.Context, rec slackQARunRecord) {
	if !s.recorder.Enabled() {
		return
	}
	ticketKey := rec.Params.TicketKey
	s.recorder.RecordEvent(ctx, &model.Event{
		EventType:  model.EventTypeSlackQuestionAnswered,
		Workflow:   model.WorkflowSlackQA,
		TicketKey:  &ticketKey,
		ProjectKey: optionalString(rec.ProjectKey),
		Label:      optionalString(rec.PrimaryLabel),
		Component:  optionalString(rec.PrimaryComponent),
		Payload: jsonPayload(map[string]any{
			"question":   rec.Params.Question,
			"answer":     rec.Answer,
			"thread_ts":  optionalString(rec.Params.ThreadTS),
			"channel_id": rec.ChannelID,
		}),
	})

	summary := rec.Answer
	if summary == "" {
		summary = "No answer captured."
	}
	rulesApplied := fmt.Sprintf("googledocs-%s + same-label-history", rec.Category)
	s.recorder.RecordMemoryItem(ctx, &model.MemoryItem{
		Workflow:     model.WorkflowSlackQA,
		ItemType:     model.MemoryItemTypeSlackQA,
		TicketKey:    &ticketKey,
		ProjectKey:   optionalString(rec.ProjectKey),
		Label:        optionalString(rec.PrimaryLabel),
		Component:    optionalString(rec.PrimaryComponent),
		Summary:      summary,
		RulesApplied: &rulesApplied,
		Context: jsonPayload(map[string]any{
			"question":   rec.Params.Question,
			"thread_ts":  rec.Params.ThreadTS,
			"channel_id": rec.ChannelID,
		}),
	})
}

const slackRetrieverSystemPrompt = `You are the context retriever for developer questions. You collect concrete ticket facts before reasoning and classify the question type.`

const slackReasonerSystemPrompt = `You are the solution reasoner for developer questions. You suggest concrete solutions and cite relevant project constraints.`
