package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hongdnn/leadsync/internal/model"
	"github.com/hongdnn/leadsync/internal/store"
)

// Recorder is the best-effort persistence facade every workflow shares.
// Event and memory writes log failures and move on; a broken audit trail
// must never fail a run that already performed its external writes.
type Recorder struct {
	stores  *store.Stores
	logger  *slog.Logger
	enabled bool
}

func NewRecorder(stores *store.Stores, enabled bool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		stores:  stores,
		logger:  logger,
		enabled: enabled,
	}
}

func (r *Recorder) Enabled() bool {
	return r.enabled && r.stores != nil
}

func (r *Recorder) RecordEvent(ctx context.Context, event *model.Event) {
	if !r.Enabled() {
		return
	}
	if _, err := r.stores.Events().Create(ctx, event); err != nil {
		r.logger.ErrorContext(ctx, "recording event failed",
			"event_type", event.EventType,
			"workflow", event.Workflow,
			"error", err)
	}
}

func (r *Recorder) RecordMemoryItem(ctx context.Context, item *model.MemoryItem) {
	if !r.Enabled() {
		return
	}
	if _, err := r.stores.MemoryItems().Create(ctx, item); err != nil {
		r.logger.ErrorContext(ctx, "recording memory item failed",
			"item_type", item.ItemType,
			"workflow", item.Workflow,
			"error", err)
	}
}

// AcquireLock reports whether this run owns the lock key. Unlike the
// record methods, errors surface to the caller; the lock-error policy
// (proceed or skip) belongs to the workflow.
func (r *Recorder) AcquireLock(ctx context.Context, workflow model.Workflow, lockKey string) (bool, error) {
	return r.stores.Locks().Acquire(ctx, workflow, lockKey)
}

// jsonPayload marshals an event payload, degrading to "{}" so a
// marshal failure cannot break best-effort recording.
func jsonPayload(payload map[string]any) json.RawMessage {
	raw, err := json.Marshal(payload)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}

// optionalString maps "" to nil for nullable record columns.
func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
