package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hongdnn/leadsync/internal/model"
)

type lockStore struct {
	db *sql.DB
}

func newLockStore(db *sql.DB) LockStore {
	return &lockStore{db: db}
}

// Acquire inserts the lock row and reports whether this caller won.
// A uniqueness violation is the "already ran" signal, not an error.
func (s *lockStore) Acquire(ctx context.Context, workflow model.Workflow, lockKey string) (bool, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_locks (workflow, lock_key, created_at)
		VALUES (?, ?, ?)`,
		string(workflow), lockKey, utcNow())
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *lockStore) GetByKey(ctx context.Context, workflow model.Workflow, lockKey string) (*model.IdempotencyLock, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workflow, lock_key, created_at FROM idempotency_locks
		WHERE workflow = ? AND lock_key = ?`,
		string(workflow), lockKey)

	var (
		lock      model.IdempotencyLock
		wf        string
		createdAt string
	)
	if err := row.Scan(&lock.ID, &wf, &lock.LockKey, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	lock.Workflow = model.Workflow(wf)
	lock.CreatedAt = parseTime(createdAt)
	return &lock, nil
}
