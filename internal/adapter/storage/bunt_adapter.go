package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/buntdb"

	"github.com/rl1809/cart-sync/internal/port"
)

// BuntAdapter keeps blobs in an embedded buntdb file on the device.
type BuntAdapter struct {
	db *buntdb.DB
}

// OpenBuntAdapter opens (or creates) the database at path and fsyncs every
// write. Use ":memory:" for a throwaway store.
func OpenBuntAdapter(path string) (*BuntAdapter, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open buntdb %s: %w", path, err)
	}

	var cfg buntdb.Config
	if err := db.ReadConfig(&cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("read buntdb config: %w", err)
	}
	cfg.SyncPolicy = buntdb.Always
	if err := db.SetConfig(cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("set buntdb config: %w", err)
	}

	return &BuntAdapter{db: db}, nil
}

func (b *BuntAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := b.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		data = []byte(v)
		return nil
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("buntdb get %s: %w", key, err)
	}

	return data, nil
}

func (b *BuntAdapter) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(value), nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("buntdb set %s: %w", key, err)
	}
	return nil
}

func (b *BuntAdapter) Close() error {
	return b.db.Close()
}
