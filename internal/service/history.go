package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hongdnn/leadsync/common"
	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/service/issue_tracker"
)

const (
	defaultHistoryLimit = 10
	excerptMaxChars     = 220
)

var historySearchFields = []string{"summary", "description", "status", "resolutiondate", "labels"}

// HistoryService looks up completed same-label tickets as precedent
// context. Lookups degrade to explanatory text instead of failing: a
// missing history section must never abort an enrichment run.
type HistoryService interface {
	SameLabelProgressContext(ctx context.Context, projectKey, label, excludeIssueKey string, limit int) string
}

type historyService struct {
	tracker issue_tracker.IssueTrackerService
	logger  *slog.Logger
}

func NewHistoryService(tracker issue_tracker.IssueTrackerService, logger *slog.Logger) HistoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &historyService{tracker: tracker, logger: logger}
}

// EscapeJQLValue escapes a string for quoted JQL value interpolation.
func EscapeJQLValue(value string) string {
	return strings.ReplaceAll(strings.ReplaceAll(value, `\`, `\\`), `"`, `\"`)
}

// BuildSameLabelDoneJQL selects completed same-label issues by
// resolution recency, excluding the asking ticket.
func BuildSameLabelDoneJQL(projectKey, label, excludeIssueKey string) string {
	return fmt.Sprintf(
		`project = "%s" AND labels = "%s" AND statusCategory = Done AND key != "%s" ORDER BY resolutiondate DESC`,
		EscapeJQLValue(projectKey),
		EscapeJQLValue(label),
		EscapeJQLValue(excludeIssueKey),
	)
}

func (s *historyService) SameLabelProgressContext(ctx context.Context, projectKey, label, excludeIssueKey string, limit int) string {
	if projectKey == "" || label == "" {
		return "No comparable label history available."
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	jql := BuildSameLabelDoneJQL(projectKey, label, excludeIssueKey)
	raw, err := s.tracker.SearchIssues(ctx, jql, limit, historySearchFields)
	if err != nil {
		s.logger.ErrorContext(ctx, "same-label history search failed",
			"ticket", excludeIssueKey,
			"error", err)
		return fmt.Sprintf("History retrieval unavailable: %v", err)
	}
	tickets := ParseHistoryTickets(raw, limit)
	if len(tickets) == 0 {
		return "No completed same-label tickets found."
	}
	lines := []string{fmt.Sprintf("Same-label completed tickets (latest %d):", len(tickets))}
	for _, ticket := range tickets {
		resolved := ticket.ResolutionDate
		if resolved == "" {
			resolved = "unknown-resolution-date"
		}
		summary := ticket.Summary
		if summary == "" {
			summary = "No summary"
		}
		lines = append(lines, fmt.Sprintf("- %s [%s] (%s): %s | Completed details: %s",
			ticket.Key, ticket.Status, resolved, summary, ticket.DescriptionExcerpt))
	}
	return strings.Join(lines, "\n")
}

// ParseHistoryTickets parses search results into compact history rows.
// The response envelope varies across tracker editions: the issue list
// may be the payload itself or sit under issues/data/result/response,
// possibly nested one level deeper.
func ParseHistoryTickets(raw json.RawMessage, limit int) []model.HistoryTicket {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}
	var rows []model.HistoryTicket
	for _, issue := range extractIssueList(decoded) {
		fields, _ := issue["fields"].(map[string]any)
		status := "Done"
		if statusMap, ok := fields["status"].(map[string]any); ok {
			if name, ok := statusMap["name"].(string); ok && strings.TrimSpace(name) != "" {
				status = strings.TrimSpace(name)
			}
		}
		key, _ := issue["key"].(string)
		summary, _ := fields["summary"].(string)
		resolutionDate, _ := fields["resolutiondate"].(string)
		rows = append(rows, model.HistoryTicket{
			Key:                key,
			Summary:            strings.TrimSpace(summary),
			DescriptionExcerpt: DescriptionExcerpt(fields["description"]),
			Status:             status,
			ResolutionDate:     strings.TrimSpace(resolutionDate),
		})
		if len(rows) >= limit {
			break
		}
	}
	kept := rows[:0]
	for _, row := range rows {
		if row.Key != "" {
			kept = append(kept, row)
		}
	}
	return kept
}

// DescriptionExcerpt builds a one-line excerpt from a description
// payload, capped at 220 characters.
func DescriptionExcerpt(value any) string {
	plain := common.NormalizeWhitespace(common.ExtractText(value))
	if plain == "" {
		return "No implementation notes provided."
	}
	if len(plain) <= excerptMaxChars {
		return plain
	}
	return strings.TrimRight(plain[:excerptMaxChars-3], " ") + "..."
}

func extractIssueList(result any) []map[string]any {
	if list, ok := result.([]any); ok {
		return onlyMaps(list)
	}
	payload, _ := result.(map[string]any)
	for _, key := range []string{"issues", "data", "result", "response"} {
		candidate, ok := payload[key]
		if !ok {
			continue
		}
		if list, ok := candidate.([]any); ok {
			return onlyMaps(list)
		}
		if nested, ok := candidate.(map[string]any); ok {
			if list, ok := nested["issues"].([]any); ok {
				return onlyMaps(list)
			}
		}
	}
	return nil
}

func onlyMaps(list []any) []map[string]any {
	maps := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			maps = append(maps, m)
		}
	}
	return maps
}
