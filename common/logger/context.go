package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, so workflow handlers stamp the ticket/run
// once and every log statement below them carries it.
type LogFields struct {
	TicketKey *string // Jira ticket key (e.g. "LEADS-123")
	RunID     *string // Snowflake run ID assigned per workflow invocation
	Workflow  *string // Workflow identifier (e.g. "workflow1", "slack_prefs")
	PRNumber  *int64  // Pull request number for code-host workflows
	EventType *string // Recorded event type (e.g. "ticket_enrichment_run")
	Component string  // Component name (e.g. "leadsync.digest.runner")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'new'.
func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.TicketKey != nil {
		result.TicketKey = new.TicketKey
	}
	if new.RunID != nil {
		result.RunID = new.RunID
	}
	if new.Workflow != nil {
		result.Workflow = new.Workflow
	}
	if new.PRNumber != nil {
		result.PRNumber = new.PRNumber
	}
	if new.EventType != nil {
		result.EventType = new.EventType
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{TicketKey: logger.Ptr(key)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like prompts or error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
