package issue_tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hongdnn/leadsync/common"
	"github.com/hongdnn/leadsync/core/config"
	"github.com/hongdnn/leadsync/internal/connector/httpclient"
)

type jiraIssueTrackerService struct {
	http *httpclient.Client
}

// NewJiraIssueTrackerService creates a tracker backed by the Jira cloud
// REST API v3, authenticated with an email/API-token pair.
func NewJiraIssueTrackerService(cfg config.JiraConfig) IssueTrackerService {
	return &jiraIssueTrackerService{
		http: httpclient.New(cfg.BaseURL, "",
			httpclient.WithBasicAuth(cfg.Email, cfg.APIToken),
			httpclient.WithHeader("X-Atlassian-Token", "no-check"),
		),
	}
}

type jiraIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string          `json:"summary"`
		Description json.RawMessage `json:"description"`
		Labels      []string        `json:"labels"`
		Components  []struct {
			Name string `json:"name"`
		} `json:"components"`
		Assignee *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Project struct {
			Key string `json:"key"`
		} `json:"project"`
		Status struct {
			Name           string `json:"name"`
			StatusCategory struct {
				Key  string `json:"key"`
				Name string `json:"name"`
			} `json:"statusCategory"`
		} `json:"status"`
		ResolutionDate string `json:"resolutiondate"`
	} `json:"fields"`
}

func (s *jiraIssueTrackerService) FetchIssue(ctx context.Context, key string) (*Issue, error) {
	var raw json.RawMessage
	path := "/rest/api/3/issue/" + url.PathEscape(key)
	if err := s.http.GetJSON(ctx, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("fetching issue %s from jira: %w", key, err)
	}

	var wire jiraIssue
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decoding issue %s: %w", key, err)
	}
	return mapIssue(wire, raw), nil
}

func (s *jiraIssueTrackerService) SearchIssues(ctx context.Context, jql string, maxResults int, fields []string) (json.RawMessage, error) {
	query := url.Values{
		"jql":        {jql},
		"maxResults": {strconv.Itoa(maxResults)},
	}
	if len(fields) > 0 {
		query.Set("fields", strings.Join(fields, ","))
	}
	var raw json.RawMessage
	if err := s.http.GetJSON(ctx, "/rest/api/3/search", query, &raw); err != nil {
		return nil, fmt.Errorf("searching jira issues: %w", err)
	}
	return raw, nil
}

func (s *jiraIssueTrackerService) AddComment(ctx context.Context, key, text string) error {
	path := "/rest/api/3/issue/" + url.PathEscape(key) + "/comment"
	payload := map[string]any{"body": textToDocument(text)}
	if err := s.http.PostJSON(ctx, path, payload, nil); err != nil {
		return fmt.Errorf("adding comment to %s: %w", key, err)
	}
	return nil
}

func (s *jiraIssueTrackerService) UpdateDescription(ctx context.Context, key, text string) error {
	path := "/rest/api/3/issue/" + url.PathEscape(key)
	payload := map[string]any{
		"fields": map[string]any{"description": textToDocument(text)},
	}
	if err := s.http.PutJSON(ctx, path, payload, nil); err != nil {
		return fmt.Errorf("updating description of %s: %w", key, err)
	}
	return nil
}

func (s *jiraIssueTrackerService) ListTransitions(ctx context.Context, key string) ([]Transition, error) {
	path := "/rest/api/3/issue/" + url.PathEscape(key) + "/transitions"
	var wire struct {
		Transitions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"transitions"`
	}
	if err := s.http.GetJSON(ctx, path, nil, &wire); err != nil {
		return nil, fmt.Errorf("listing transitions for %s: %w", key, err)
	}
	transitions := make([]Transition, 0, len(wire.Transitions))
	for _, t := range wire.Transitions {
		transitions = append(transitions, Transition{ID: t.ID, Name: t.Name})
	}
	return transitions, nil
}

func (s *jiraIssueTrackerService) TransitionIssue(ctx context.Context, key, transitionID string) error {
	path := "/rest/api/3/issue/" + url.PathEscape(key) + "/transitions"
	payload := map[string]any{
		"transition": map[string]any{"id": transitionID},
	}
	if err := s.http.PostJSON(ctx, path, payload, nil); err != nil {
		return fmt.Errorf("transitioning %s: %w", key, err)
	}
	return nil
}

func (s *jiraIssueTrackerService) AttachFile(ctx context.Context, key, filename string, content []byte) error {
	path := "/rest/api/3/issue/" + url.PathEscape(key) + "/attachments"
	if err := s.http.PostFile(ctx, path, filename, content, nil); err != nil {
		return fmt.Errorf("attaching %s to %s: %w", filename, key, err)
	}
	return nil
}

func mapIssue(wire jiraIssue, raw json.RawMessage) *Issue {
	issue := &Issue{
		Key:            wire.Key,
		Summary:        wire.Fields.Summary,
		Description:    documentToText(wire.Fields.Description),
		Status:         wire.Fields.Status.Name,
		StatusCategory: wire.Fields.Status.StatusCategory.Key,
		ResolutionDate: wire.Fields.ResolutionDate,
		ProjectKey:     wire.Fields.Project.Key,
		Labels:         wire.Fields.Labels,
		Raw:            string(raw),
	}
	if wire.Fields.Assignee != nil {
		issue.Assignee = wire.Fields.Assignee.DisplayName
	}
	for _, c := range wire.Fields.Components {
		if name := strings.TrimSpace(c.Name); name != "" {
			issue.Components = append(issue.Components, name)
		}
	}
	return issue
}

// documentToText flattens an Atlassian document format description into
// plain text. Server editions return a bare string instead of a node
// tree, so both shapes are accepted.
func documentToText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return ""
	}
	return common.ExtractText(tree)
}

// textToDocument wraps plain text in a minimal Atlassian document, one
// paragraph per line.
func textToDocument(text string) map[string]any {
	lines := strings.Split(text, "\n")
	content := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		paragraph := map[string]any{"type": "paragraph"}
		if line != "" {
			paragraph["content"] = []map[string]any{
				{"type": "text", "text": line},
			}
		}
		content = append(content, paragraph)
	}
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": content,
	}
}
