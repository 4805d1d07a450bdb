package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/store"
)

const (
	ticketMemoryLimit = 10
	digestSignalDays  = 3
	digestSignalLimit = 10
	similarQALimit    = 5
	memoryTimeLayout  = time.RFC3339
	noMemoryLine      = "- None."
)

// MemoryContextParams narrows the Slack memory bundle. Label gates the
// similar Q&A section: without one there is nothing to match on.
type MemoryContextParams struct {
	TicketKey  string
	ProjectKey string
	Label      string
	Component  *string
	RepoKey    *string
	TeamKey    *string
}

// MemoryQueryService builds read queries against the memory store for
// prompt injection. SlackMemoryContext is the composite entry point the
// Q&A workflow uses; the rest are the primitives it composes.
type MemoryQueryService interface {
	TicketMemory(ctx context.Context, ticketKey string, limit int) ([]model.MemoryItem, error)
	RecentDigestAreas(ctx context.Context, limit int) ([]model.MemoryItem, error)
	SimilarQA(ctx context.Context, params store.SimilarQAParams) ([]model.MemoryItem, error)
	LeaderRules(ctx context.Context, category string) ([]model.MemoryItem, error)
	SlackMemoryContext(ctx context.Context, params MemoryContextParams) (string, error)
	LeaderRulesText(ctx context.Context, category string) (string, error)
}

type memoryQueryService struct {
	stores *store.Stores
}

func NewMemoryQueryService(stores *store.Stores) MemoryQueryService {
	return &memoryQueryService{stores: stores}
}

func (s *memoryQueryService) TicketMemory(ctx context.Context, ticketKey string, limit int) ([]model.MemoryItem, error) {
	if limit <= 0 {
		limit = ticketMemoryLimit
	}
	return s.stores.MemoryItems().ListByTicket(ctx, ticketKey, limit)
}

func (s *memoryQueryService) RecentDigestAreas(ctx context.Context, limit int) ([]model.MemoryItem, error) {
	if limit <= 0 {
		limit = digestSignalLimit
	}
	return s.stores.MemoryItems().ListDigestAreas(ctx, store.DigestAreaParams{
		Since: time.Now().UTC().AddDate(0, 0, -digestSignalDays),
		Limit: limit,
	})
}

func (s *memoryQueryService) SimilarQA(ctx context.Context, params store.SimilarQAParams) ([]model.MemoryItem, error) {
	if params.Limit <= 0 {
		params.Limit = similarQALimit
	}
	return s.stores.MemoryItems().ListSimilarQA(ctx, params)
}

func (s *memoryQueryService) LeaderRules(ctx context.Context, category string) ([]model.MemoryItem, error) {
	return s.stores.MemoryItems().ListLeaderRules(ctx, category)
}

// SlackMemoryContext renders the three memory sections into one plain
// text block for prompt injection.
func (s *memoryQueryService) SlackMemoryContext(ctx context.Context, params MemoryContextParams) (string, error) {
	ticketItems, err := s.TicketMemory(ctx, params.TicketKey, ticketMemoryLimit)
	if err != nil {
		return "", fmt.Errorf("querying ticket memory: %w", err)
	}

	digestParams := store.DigestAreaParams{
		Since: time.Now().UTC().AddDate(0, 0, -digestSignalDays),
		Limit: digestSignalLimit,
	}
	if params.ProjectKey != "" {
		projectKey := params.ProjectKey
		digestParams.ProjectKey = &projectKey
	}
	digestParams.RepoKey = params.RepoKey
	digestParams.TeamKey = params.TeamKey
	digestItems, err := s.stores.MemoryItems().ListDigestAreas(ctx, digestParams)
	if err != nil {
		return "", fmt.Errorf("querying digest signals: %w", err)
	}

	var similarItems []model.MemoryItem
	if params.Label != "" {
		similarItems, err = s.SimilarQA(ctx, store.SimilarQAParams{
			Label:            params.Label,
			Component:        params.Component,
			ExcludeTicketKey: params.TicketKey,
			Limit:            similarQALimit,
		})
		if err != nil {
			return "", fmt.Errorf("querying similar q&a: %w", err)
		}
	}

	lines := []string{"Memory Context", "Ticket Memory:"}
	if len(ticketItems) > 0 {
		for _, item := range ticketItems {
			decision := valueOr(item.Decision, "No decision captured.")
			lines = append(lines, fmt.Sprintf("- %s | %s | Decision: %s",
				item.CreatedAt.UTC().Format(memoryTimeLayout), item.Summary, decision))
		}
	} else {
		lines = append(lines, noMemoryLine)
	}

	lines = append(lines, "Recent Digest Signals:")
	if len(digestItems) > 0 {
		for _, item := range digestItems {
			decision := valueOr(item.Decision, "No follow-up noted.")
			lines = append(lines, fmt.Sprintf("- %s | %s | Follow-up: %s",
				item.CreatedAt.UTC().Format(memoryTimeLayout), item.Summary, decision))
		}
	} else {
		lines = append(lines, noMemoryLine)
	}

	lines = append(lines, "Similar Q&A:")
	if len(similarItems) > 0 {
		for _, item := range similarItems {
			suffix := ""
			if question := contextQuestion(item.Context); question != "" {
				suffix = " | Q: " + question
			}
			lines = append(lines, fmt.Sprintf("- %s | %s%s",
				valueOr(item.TicketKey, ""), item.Summary, suffix))
		}
	} else {
		lines = append(lines, noMemoryLine)
	}

	return strings.Join(lines, "\n"), nil
}

// LeaderRulesText renders stored leader rules for prompt injection,
// most recent first. Returns "" when no rules exist.
func (s *memoryQueryService) LeaderRulesText(ctx context.Context, category string) (string, error) {
	rules, err := s.LeaderRules(ctx, category)
	if err != nil {
		return "", fmt.Errorf("querying leader rules: %w", err)
	}
	if len(rules) == 0 {
		return "", nil
	}
	lines := []string{"General Leader Rules:"}
	for _, rule := range rules {
		lines = append(lines, "- "+rule.Summary)
	}
	return strings.Join(lines, "\n"), nil
}

func contextQuestion(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var decoded struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return ""
	}
	return decoded.Question
}

func valueOr(p *string, fallback string) string {
	if p != nil && *p != "" {
		return *p
	}
	return fallback
}
