package store

import (
	"context"
	"errors"
	"time"

	"github.com/hongdnn/leadsync/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// EventStore defines the contract for append-only audit event access.
// Events are insert-only; there is no update or delete surface.
type EventStore interface {
	Create(ctx context.Context, event *model.Event) (*model.Event, error)
	GetByID(ctx context.Context, id int64) (*model.Event, error)
	ListByTicket(ctx context.Context, ticketKey string, limit int) ([]model.Event, error)
	ListByWorkflow(ctx context.Context, workflow model.Workflow, limit int) ([]model.Event, error)
}

// SimilarQAParams selects recent answered questions matching a ticket's
// label (and component when present), excluding the asking ticket itself.
type SimilarQAParams struct {
	Label            string
	Component        *string
	ExcludeTicketKey string
	Limit            int
}

// DigestAreaParams selects recent digest area items inside a cutoff window
// with optional project/repo/team narrowing.
type DigestAreaParams struct {
	Since      time.Time
	ProjectKey *string
	RepoKey    *string
	TeamKey    *string
	Limit      int
}

// MemoryItemStore defines the contract for curated memory access.
type MemoryItemStore interface {
	Create(ctx context.Context, item *model.MemoryItem) (*model.MemoryItem, error)
	GetByID(ctx context.Context, id int64) (*model.MemoryItem, error)
	ListByTicket(ctx context.Context, ticketKey string, limit int) ([]model.MemoryItem, error)
	ListDigestAreas(ctx context.Context, params DigestAreaParams) ([]model.MemoryItem, error)
	ListSimilarQA(ctx context.Context, params SimilarQAParams) ([]model.MemoryItem, error)
	ListLeaderRules(ctx context.Context, category string) ([]model.MemoryItem, error)
}

// LockStore defines the contract for once-only run markers. Acquire relies
// on the UNIQUE(workflow, lock_key) constraint, never on check-then-act.
type LockStore interface {
	Acquire(ctx context.Context, workflow model.Workflow, lockKey string) (bool, error)
	GetByKey(ctx context.Context, workflow model.Workflow, lockKey string) (*model.IdempotencyLock, error)
}
