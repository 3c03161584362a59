// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

// Package memory provides in-process implementations of the auth stores.
// They enforce the same uniqueness rules as the PostgreSQL schema and are
// used to exercise the managers without a database.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/credentia/credentia/internal/auth"
)

// DB is the shared state behind the memory stores. Stored values are never
// mutated in place: every write stores a fresh copy, so a shallow map clone is
// a complete snapshot.
type DB struct {
	mu            sync.Mutex
	users         map[ulid.ULID]*auth.User
	confirmations map[ulid.ULID]*auth.EmailConfirmation
	recoveries    map[ulid.ULID]*auth.PasswordRecovery
	sessions      map[ulid.ULID]*auth.Session
}

// NewDB creates an empty DB.
func NewDB() *DB {
	return &DB{
		users:         make(map[ulid.ULID]*auth.User),
		confirmations: make(map[ulid.ULID]*auth.EmailConfirmation),
		recoveries:    make(map[ulid.ULID]*auth.PasswordRecovery),
		sessions:      make(map[ulid.ULID]*auth.Session),
	}
}

// Users returns a UserDirectory over db.
func (db *DB) Users() *UserDirectory { return &UserDirectory{db: db} }

// Codes returns a CodeStore over db.
func (db *DB) Codes() *CodeStore { return &CodeStore{db: db} }

// Sessions returns a SessionStore over db.
func (db *DB) Sessions() *SessionStore { return &SessionStore{db: db} }

// Transactor returns a Transactor over db.
func (db *DB) Transactor() *Transactor { return &Transactor{db: db} }

type txKey struct{}

// lock acquires db.mu unless ctx belongs to a transaction that already holds it.
func (db *DB) lock(ctx context.Context) (unlock func()) {
	if owner, ok := ctx.Value(txKey{}).(*DB); ok && owner == db {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

type snapshot struct {
	users         map[ulid.ULID]*auth.User
	confirmations map[ulid.ULID]*auth.EmailConfirmation
	recoveries    map[ulid.ULID]*auth.PasswordRecovery
	sessions      map[ulid.ULID]*auth.Session
}

func (db *DB) snapshot() snapshot {
	return snapshot{
		users:         maps.Clone(db.users),
		confirmations: maps.Clone(db.confirmations),
		recoveries:    maps.Clone(db.recoveries),
		sessions:      maps.Clone(db.sessions),
	}
}

func (db *DB) restore(s snapshot) {
	db.users = s.users
	db.confirmations = s.confirmations
	db.recoveries = s.recoveries
	db.sessions = s.sessions
}

// Transactor implements auth.Transactor by holding the DB lock for the whole
// of fn and restoring a snapshot when fn fails. Store calls must use the
// context passed to fn, from the same goroutine.
type Transactor struct {
	db *DB
}

// InTransaction runs fn atomically with respect to every other store call.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, ok := ctx.Value(txKey{}).(*DB); ok && owner == t.db {
		return fn(ctx)
	}

	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	before := t.db.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, t.db)); err != nil {
		t.db.restore(before)
		return err
	}
	return nil
}

var _ auth.Transactor = (*Transactor)(nil)
