package model

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventTypeTicketEnrichmentRun   EventType = "ticket_enrichment_run"
	EventTypeGithubCommitBatch     EventType = "github_commit_batch"
	EventTypeDailyDigestPosted     EventType = "daily_digest_posted"
	EventTypeSlackQuestionAnswered EventType = "slack_question_answered"
	EventTypeDoneScanCompleted     EventType = "done_scan_completed"
)

type Workflow string

const (
	WorkflowTicketEnrichment Workflow = "workflow1"
	WorkflowDigest           Workflow = "workflow2"
	WorkflowSlackQA          Workflow = "workflow3"
	WorkflowPRDescription    Workflow = "workflow4"
	WorkflowPRLink           Workflow = "workflow5"
	WorkflowDoneScan         Workflow = "workflow6"
	WorkflowSlackPrefs       Workflow = "slack_prefs"
)

// Event is one append-only audit row. Rows are never updated or deleted.
type Event struct {
	CreatedAt  time.Time       `json:"created_at"`
	EventType  EventType       `json:"event_type"`
	Workflow   Workflow        `json:"workflow"`
	Payload    json.RawMessage `json:"payload"`
	TicketKey  *string         `json:"ticket_key,omitempty"`
	ProjectKey *string         `json:"project_key,omitempty"`
	Label      *string         `json:"label,omitempty"`
	Component  *string         `json:"component,omitempty"`
	ID         int64           `json:"id"`
}
