package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/cart-sync/internal/port"
)

const (
	createKVTable = `
		CREATE TABLE IF NOT EXISTS kv_store (
			k          VARCHAR(191) NOT NULL PRIMARY KEY,
			v          MEDIUMBLOB   NOT NULL,
			updated_at DATETIME     NOT NULL
		)`

	selectKV = `SELECT v FROM kv_store WHERE k = ?`

	upsertKV = `
		INSERT INTO kv_store (k, v, updated_at)
		VALUES (?, ?, NOW())
		ON DUPLICATE KEY UPDATE v = VALUES(v), updated_at = NOW()`
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// EnsureSchema creates the kv_store table if it does not exist yet.
func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createKVTable); err != nil {
		return fmt.Errorf("create kv_store: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := m.db.QueryRowContext(ctx, selectKV, key).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query kv: %w", err)
	}

	return data, nil
}

func (m *MySQLAdapter) Set(ctx context.Context, key string, value []byte) error {
	if _, err := m.db.ExecContext(ctx, upsertKV, key, value); err != nil {
		return fmt.Errorf("upsert kv: %w", err)
	}
	return nil
}
