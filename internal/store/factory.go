package store

import (
	"database/sql"
)

type Stores struct {
	db *sql.DB
}

func NewStores(db *sql.DB) *Stores {
	return &Stores{db: db}
}

func (s *Stores) Events() EventStore {
	return newEventStore(s.db)
}

func (s *Stores) MemoryItems() MemoryItemStore {
	return newMemoryItemStore(s.db)
}

func (s *Stores) Locks() LockStore {
	return newLockStore(s.db)
}
