package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rl1809/cart-sync/internal/port"
)

var errWriteFailed = errors.New("disk full")

// Mock KVStore
type mockKV struct {
	mu       sync.Mutex
	data     map[string][]byte
	getErr   error
	failSets int // upcoming Sets that fail, -1 fails forever
	setCalls int
	started  chan struct{} // signalled when a Set begins
	gate     chan struct{} // Set blocks until closed
}

func newMockKV() *mockKV {
	return &mockKV{data: make(map[string][]byte)}
}

func (m *mockKV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, port.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *mockKV) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.setCalls++
	started, gate := m.started, m.gate
	m.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSets != 0 {
		if m.failSets > 0 {
			m.failSets--
		}
		return errWriteFailed
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *mockKV) stored(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.data[key])
}

func (m *mockKV) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCalls
}
