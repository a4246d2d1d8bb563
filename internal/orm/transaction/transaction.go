// Package transaction runs groups of queries in one database
// transaction, so that reads such as a count and a page agree.
package transaction

import (
	"context"
	"database/sql"
	"fmt"
)

// IsolationLevel represents the transaction isolation level
type IsolationLevel int

const (
	// ReadCommitted is the driver default, read committed on PostgreSQL
	ReadCommitted IsolationLevel = iota
	// RepeatableRead gives every query of the transaction one snapshot
	RepeatableRead
	// Serializable provides full isolation
	Serializable
)

// String returns the string representation of the isolation level
func (l IsolationLevel) String() string {
	switch l {
	case RepeatableRead:
		return "REPEATABLE READ"
	case Serializable:
		return "SERIALIZABLE"
	default:
		return "READ COMMITTED"
	}
}

// ToSQLOptions converts IsolationLevel to sql.TxOptions
func (l IsolationLevel) ToSQLOptions(readOnly bool) *sql.TxOptions {
	var level sql.IsolationLevel
	switch l {
	case RepeatableRead:
		level = sql.LevelRepeatableRead
	case Serializable:
		level = sql.LevelSerializable
	default:
		level = sql.LevelDefault
	}
	return &sql.TxOptions{Isolation: level, ReadOnly: readOnly}
}

// Manager manages database transactions
type Manager struct {
	db *sql.DB
	// ReadLevel is the isolation level of ReadOnly transactions
	ReadLevel IsolationLevel
}

// NewManager creates a new transaction manager
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db, ReadLevel: RepeatableRead}
}

// DB returns the underlying database connection
func (m *Manager) DB() *sql.DB {
	return m.db
}

// WithTransaction executes fn within a transaction. It commits when fn
// succeeds and rolls back when fn fails or panics.
func (m *Manager) WithTransaction(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReadOnly executes fn within a read-only transaction at ReadLevel
func (m *Manager) ReadOnly(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return m.WithTransaction(ctx, m.ReadLevel.ToSQLOptions(true), fn)
}
