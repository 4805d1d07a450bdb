package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/hongdnn/leadsync/internal/model"
)

type memoryItemStore struct {
	db *sql.DB
}

func newMemoryItemStore(db *sql.DB) MemoryItemStore {
	return &memoryItemStore{db: db}
}

const memoryItemColumns = `id, workflow, item_type, ticket_key, project_key, label, component,
	repo_key, team_key, summary, decision, rules_applied, context_json, created_at`

func (s *memoryItemStore) Create(ctx context.Context, item *model.MemoryItem) (*model.MemoryItem, error) {
	contextJSON := item.Context
	if len(contextJSON) == 0 {
		contextJSON = json.RawMessage("{}")
	}
	createdAt := utcNow()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_items (
			workflow, item_type, ticket_key, project_key, label, component,
			repo_key, team_key, summary, decision, rules_applied, context_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(item.Workflow),
		string(item.ItemType),
		nullableString(item.TicketKey),
		nullableString(item.ProjectKey),
		nullableString(item.Label),
		nullableString(item.Component),
		nullableString(item.RepoKey),
		nullableString(item.TeamKey),
		item.Summary,
		nullableString(item.Decision),
		nullableString(item.RulesApplied),
		string(contextJSON),
		createdAt,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	created := *item
	created.ID = id
	created.Context = contextJSON
	created.CreatedAt = parseTime(createdAt)
	return &created, nil
}

func (s *memoryItemStore) GetByID(ctx context.Context, id int64) (*model.MemoryItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryItemColumns+` FROM memory_items WHERE id = ?`, id)
	item, err := scanMemoryItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *memoryItemStore) ListByTicket(ctx context.Context, ticketKey string, limit int) ([]model.MemoryItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryItemColumns+` FROM memory_items
		WHERE ticket_key = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		ticketKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemoryItems(rows)
}

func (s *memoryItemStore) ListDigestAreas(ctx context.Context, params DigestAreaParams) ([]model.MemoryItem, error) {
	clauses := []string{
		`SELECT ` + memoryItemColumns + ` FROM memory_items`,
		`WHERE item_type = ? AND created_at >= ?`,
	}
	args := []any{string(model.MemoryItemTypeDigestArea), formatTime(params.Since)}
	if params.ProjectKey != nil {
		clauses = append(clauses, `AND project_key = ?`)
		args = append(args, *params.ProjectKey)
	}
	if params.RepoKey != nil {
		clauses = append(clauses, `AND repo_key = ?`)
		args = append(args, *params.RepoKey)
	}
	if params.TeamKey != nil {
		clauses = append(clauses, `AND team_key = ?`)
		args = append(args, *params.TeamKey)
	}
	clauses = append(clauses, `ORDER BY created_at DESC, id DESC LIMIT ?`)
	args = append(args, params.Limit)

	rows, err := s.db.QueryContext(ctx, strings.Join(clauses, " "), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemoryItems(rows)
}

func (s *memoryItemStore) ListSimilarQA(ctx context.Context, params SimilarQAParams) ([]model.MemoryItem, error) {
	clauses := []string{
		`SELECT ` + memoryItemColumns + ` FROM memory_items`,
		`WHERE item_type = ? AND label = ?`,
	}
	args := []any{string(model.MemoryItemTypeSlackQA), params.Label}
	if params.Component != nil {
		clauses = append(clauses, `AND component = ?`)
		args = append(args, *params.Component)
	}
	clauses = append(clauses, `AND COALESCE(ticket_key, '') != ?`)
	args = append(args, params.ExcludeTicketKey)
	clauses = append(clauses, `ORDER BY created_at DESC, id DESC LIMIT ?`)
	args = append(args, params.Limit)

	rows, err := s.db.QueryContext(ctx, strings.Join(clauses, " "), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemoryItems(rows)
}

func (s *memoryItemStore) ListLeaderRules(ctx context.Context, category string) ([]model.MemoryItem, error) {
	clauses := []string{
		`SELECT ` + memoryItemColumns + ` FROM memory_items`,
		`WHERE item_type = ?`,
	}
	args := []any{string(model.MemoryItemTypeLeaderRule)}
	if category != "" {
		clauses = append(clauses, `AND label = ?`)
		args = append(args, category)
	}
	clauses = append(clauses, `ORDER BY created_at DESC, id DESC`)

	rows, err := s.db.QueryContext(ctx, strings.Join(clauses, " "), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemoryItems(rows)
}

func scanMemoryItem(row rowScanner) (*model.MemoryItem, error) {
	var (
		item         model.MemoryItem
		workflow     string
		itemType     string
		ticketKey    sql.NullString
		projectKey   sql.NullString
		label        sql.NullString
		component    sql.NullString
		repoKey      sql.NullString
		teamKey      sql.NullString
		decision     sql.NullString
		rulesApplied sql.NullString
		contextJSON  sql.NullString
		createdAt    string
	)
	err := row.Scan(&item.ID, &workflow, &itemType, &ticketKey, &projectKey, &label, &component,
		&repoKey, &teamKey, &item.Summary, &decision, &rulesApplied, &contextJSON, &createdAt)
	if err != nil {
		return nil, err
	}
	item.Workflow = model.Workflow(workflow)
	item.ItemType = model.MemoryItemType(itemType)
	item.TicketKey = stringPtr(ticketKey)
	item.ProjectKey = stringPtr(projectKey)
	item.Label = stringPtr(label)
	item.Component = stringPtr(component)
	item.RepoKey = stringPtr(repoKey)
	item.TeamKey = stringPtr(teamKey)
	item.Decision = stringPtr(decision)
	item.RulesApplied = stringPtr(rulesApplied)
	if contextJSON.Valid && contextJSON.String != "" {
		item.Context = json.RawMessage(contextJSON.String)
	}
	item.CreatedAt = parseTime(createdAt)
	return &item, nil
}

func collectMemoryItems(rows *sql.Rows) ([]model.MemoryItem, error) {
	var items []model.MemoryItem
	for rows.Next() {
		item, err := scanMemoryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
