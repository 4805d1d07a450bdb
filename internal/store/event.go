package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/hongdnn/leadsync/internal/model"
)

type eventStore struct {
	db *sql.DB
}

func newEventStore(db *sql.DB) EventStore {
	return &eventStore{db: db}
}

func (s *eventStore) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	payload := event.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	createdAt := utcNow()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (
			event_type, workflow, ticket_key, project_key, label, component, payload_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(event.EventType),
		string(event.Workflow),
		nullableString(event.TicketKey),
		nullableString(event.ProjectKey),
		nullableString(event.Label),
		nullableString(event.Component),
		string(payload),
		createdAt,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	created := *event
	created.ID = id
	created.Payload = payload
	created.CreatedAt = parseTime(createdAt)
	return &created, nil
}

func (s *eventStore) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, event_type, workflow, ticket_key, project_key, label, component, payload_json, created_at
		FROM events WHERE id = ?`, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return event, nil
}

func (s *eventStore) ListByTicket(ctx context.Context, ticketKey string, limit int) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, workflow, ticket_key, project_key, label, component, payload_json, created_at
		FROM events WHERE ticket_key = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		ticketKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (s *eventStore) ListByWorkflow(ctx context.Context, workflow model.Workflow, limit int) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, workflow, ticket_key, project_key, label, component, payload_json, created_at
		FROM events WHERE workflow = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		string(workflow), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var (
		event      model.Event
		eventType  string
		workflow   string
		ticketKey  sql.NullString
		projectKey sql.NullString
		label      sql.NullString
		component  sql.NullString
		payload    string
		createdAt  string
	)
	if err := row.Scan(&event.ID, &eventType, &workflow, &ticketKey, &projectKey, &label, &component, &payload, &createdAt); err != nil {
		return nil, err
	}
	event.EventType = model.EventType(eventType)
	event.Workflow = model.Workflow(workflow)
	event.TicketKey = stringPtr(ticketKey)
	event.ProjectKey = stringPtr(projectKey)
	event.Label = stringPtr(label)
	event.Component = stringPtr(component)
	event.Payload = json.RawMessage(payload)
	event.CreatedAt = parseTime(createdAt)
	return &event, nil
}

func collectEvents(rows *sql.Rows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}
