package model

import (
	"encoding/json"
	"time"
)

type MemoryItemType string

const (
	MemoryItemTypeTicketEnrichment MemoryItemType = "ticket_enrichment"
	MemoryItemTypeDigestArea       MemoryItemType = "daily_digest_area"
	MemoryItemTypeSlackQA          MemoryItemType = "slack_qa"
	MemoryItemTypeLeaderRule       MemoryItemType = "leader_rule"
)

// MemoryItem is one curated memory row queried back into later prompts.
type MemoryItem struct {
	CreatedAt    time.Time       `json:"created_at"`
	Workflow     Workflow        `json:"workflow"`
	ItemType     MemoryItemType  `json:"item_type"`
	Summary      string          `json:"summary"`
	TicketKey    *string         `json:"ticket_key,omitempty"`
	ProjectKey   *string         `json:"project_key,omitempty"`
	Label        *string         `json:"label,omitempty"`
	Component    *string         `json:"component,omitempty"`
	RepoKey      *string         `json:"repo_key,omitempty"`
	TeamKey      *string         `json:"team_key,omitempty"`
	Decision     *string         `json:"decision,omitempty"`
	RulesApplied *string         `json:"rules_applied,omitempty"`
	Context      json.RawMessage `json:"context,omitempty"`
	ID           int64           `json:"id"`
}

// IdempotencyLock is a permanent once-only marker. (Workflow, LockKey) is
// unique at the storage layer; acquisition is a bare insert.
type IdempotencyLock struct {
	CreatedAt time.Time `json:"created_at"`
	Workflow  Workflow  `json:"workflow"`
	LockKey   string    `json:"lock_key"`
	ID        int64     `json:"id"`
}
