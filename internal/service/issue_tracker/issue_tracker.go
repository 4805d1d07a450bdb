package issue_tracker

import (
	"context"
	"encoding/json"
)

// Issue is the tracker's view of a ticket. Raw carries the undecoded
// response body so callers can run marker and duplicate-link checks
// against everything the tracker returned, comments included.
type Issue struct {
	Key            string
	Summary        string
	Description    string
	Status         string
	StatusCategory string
	ResolutionDate string
	Assignee       string
	ProjectKey     string
	Labels         []string
	Components     []string
	Raw            string
}

type Transition struct {
	ID   string
	Name string
}

type IssueTrackerService interface {
	FetchIssue(ctx context.Context, key string) (*Issue, error)
	// SearchIssues returns the raw search envelope; response shapes vary
	// across tracker editions, so callers parse tolerantly.
	SearchIssues(ctx context.Context, jql string, maxResults int, fields []string) (json.RawMessage, error)
	AddComment(ctx context.Context, key, text string) error
	UpdateDescription(ctx context.Context, key, text string) error
	ListTransitions(ctx context.Context, key string) ([]Transition, error)
	TransitionIssue(ctx context.Context, key, transitionID string) error
	AttachFile(ctx context.Context, key, filename string, content []byte) error
}
