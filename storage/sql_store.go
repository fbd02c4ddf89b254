package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect selects the placeholder and upsert syntax for the slots table.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// Schema for the slot table. One row per logical document.
const Schema = `
CREATE TABLE IF NOT EXISTS state_slots (
	key TEXT PRIMARY KEY,
	doc TEXT NOT NULL
);
`

// SQLBackend stores slots in a single state_slots table over database/sql.
type SQLBackend struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLBackend creates a backend over an open connection.
func NewSQLBackend(db *sql.DB, dialect Dialect) (*SQLBackend, error) {
	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	return &SQLBackend{db: db, dialect: dialect}, nil
}

// EnsureSchema creates the slot table if it does not exist.
func (b *SQLBackend) EnsureSchema(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, Schema)
	return err
}

func (b *SQLBackend) Load(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT doc FROM state_slots WHERE key = $1`
	if b.dialect == DialectSQLite {
		query = `SELECT doc FROM state_slots WHERE key = ?`
	}

	var doc []byte
	if err := b.db.QueryRowContext(ctx, query, key).Scan(&doc); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (b *SQLBackend) Store(ctx context.Context, key string, doc []byte) error {
	query := `
		INSERT INTO state_slots (key, doc)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc
	`
	if b.dialect == DialectSQLite {
		query = `
		INSERT INTO state_slots (key, doc)
		VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc
	`
	}

	_, err := b.db.ExecContext(ctx, query, key, doc)
	return err
}

func (b *SQLBackend) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM state_slots WHERE key = $1`
	if b.dialect == DialectSQLite {
		query = `DELETE FROM state_slots WHERE key = ?`
	}

	_, err := b.db.ExecContext(ctx, query, key)
	return err
}

var _ Backend = (*SQLBackend)(nil)
