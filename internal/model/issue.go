package model

// IssueContext is the normalized view of a tracker webhook payload.
// Field extraction is tolerant: payloads from cloud and server editions
// nest the issue differently and the parser accepts all observed shapes.
type IssueContext struct {
	Key              string   `json:"key"`
	Summary          string   `json:"summary"`
	Description      string   `json:"description"`
	Labels           []string `json:"labels,omitempty"`
	Components       []string `json:"components,omitempty"`
	PrimaryLabel     string   `json:"primary_label,omitempty"`
	PrimaryComponent string   `json:"primary_component,omitempty"`
	Assignee         string   `json:"assignee"`
	ProjectKey       string   `json:"project_key,omitempty"`
	Status           string   `json:"status,omitempty"`
	StatusCategory   string   `json:"status_category,omitempty"`
}

// HistoryTicket is one completed same-label ticket used as precedent
// context when preparing guidance for a new ticket.
type HistoryTicket struct {
	Key                string `json:"key"`
	Summary            string `json:"summary"`
	DescriptionExcerpt string `json:"description_excerpt"`
	Status             string `json:"status"`
	ResolutionDate     string `json:"resolution_date,omitempty"`
}

// KeyFile is one suggested source file with rationale and confidence.
type KeyFile struct {
	Path       string `json:"path"`
	Why        string `json:"why"`
	Confidence string `json:"confidence"`
}

type QuestionType string

const (
	QuestionTypeImplementation QuestionType = "IMPLEMENTATION"
	QuestionTypeGeneral        QuestionType = "GENERAL"
	QuestionTypeProgress       QuestionType = "PROGRESS"
)

type PreferenceCategory string

const (
	PreferenceCategoryFrontend PreferenceCategory = "frontend"
	PreferenceCategoryBackend  PreferenceCategory = "backend"
	PreferenceCategoryDatabase PreferenceCategory = "database"
)

// RunResult is the normalized outcome every workflow run returns: the raw
// result text plus the model that actually produced it (which may differ
// from the configured model after fallback).
type RunResult struct {
	Raw   string `json:"raw"`
	Model string `json:"model"`
}
