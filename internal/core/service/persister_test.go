package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rl1809/cart-sync/internal/core/domain"
)

func TestPersist_WritesEveryMutation(t *testing.T) {
	kv := newMockKV()
	store := openStore(t, kv)
	ctx := context.Background()

	store.AddToCart(ctx, shoe)
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	want := `[{"id":"p1","title":"Shoe","image_url":"x","price":10,"quantity":1}]`
	if got := kv.stored(DefaultStorageKey); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	st := store.SyncStatus()
	if !st.InSync() || st.PersistedRevision != 1 {
		t.Errorf("expected in sync at revision 1, got %+v", st)
	}
	if st.LastWriteAt.IsZero() {
		t.Error("expected LastWriteAt to be set")
	}
}

func TestPersist_RetriesUntilSuccess(t *testing.T) {
	kv := newMockKV()
	kv.failSets = 2
	store := openStore(t, kv, WithWriteRetries(5))
	ctx := context.Background()

	store.AddToCart(ctx, shoe)
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	if kv.calls() != 3 {
		t.Errorf("expected 3 write attempts, got %d", kv.calls())
	}
	if st := store.SyncStatus(); st.LastError != nil {
		t.Errorf("expected no error after recovery, got %v", st.LastError)
	}
}

func TestPersist_FailureKeepsInMemoryState(t *testing.T) {
	kv := newMockKV()
	kv.failSets = -1
	store := openStore(t, kv, WithWriteRetries(2))
	ctx := context.Background()

	// The mutation itself never reports the write failure
	if err := store.AddToCart(ctx, shoe); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	err := store.Flush(ctx)
	if !errors.Is(err, errWriteFailed) {
		t.Fatalf("expected flush to report write failure, got %v", err)
	}

	if got := quantityOf(store.Products(), "p1"); got != 1 {
		t.Errorf("expected in-memory state kept, got quantity %d", got)
	}

	st := store.SyncStatus()
	if st.InSync() {
		t.Errorf("expected out of sync, got %+v", st)
	}
	if !errors.Is(st.LastError, errWriteFailed) {
		t.Errorf("expected LastError disk full, got %v", st.LastError)
	}
	if kv.calls() != 2 {
		t.Errorf("expected 2 attempts, got %d", kv.calls())
	}
}

func TestPersist_NextMutationRecovers(t *testing.T) {
	kv := newMockKV()
	kv.failSets = 1
	store := openStore(t, kv, WithWriteRetries(1))
	ctx := context.Background()

	store.AddToCart(ctx, shoe)
	if err := store.Flush(ctx); err == nil {
		t.Fatal("expected first flush to fail")
	}

	store.Increment(ctx, "p1")
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("expected second flush to succeed, got %v", err)
	}

	got, err := domain.DecodeCart([]byte(kv.stored(DefaultStorageKey)))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(got) != 1 || got[0].Quantity != 2 {
		t.Errorf("expected p1 x2 persisted, got %+v", got)
	}
	if !store.SyncStatus().InSync() {
		t.Errorf("expected in sync, got %+v", store.SyncStatus())
	}
}

func TestPersist_CoalescesWrites(t *testing.T) {
	kv := newMockKV()
	kv.started = make(chan struct{}, 1)
	kv.gate = make(chan struct{})
	store := openStore(t, kv)
	ctx := context.Background()

	store.AddToCart(ctx, shoe)

	// Wait for the first write to be in flight
	select {
	case <-kv.started:
	case <-time.After(time.Second):
		t.Fatal("first write never started")
	}

	for i := 0; i < 10; i++ {
		if err := store.Increment(ctx, "p1"); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
	}
	close(kv.gate)

	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	if kv.calls() != 2 {
		t.Errorf("expected 2 writes (in-flight + latest), got %d", kv.calls())
	}
	got, _ := domain.DecodeCart([]byte(kv.stored(DefaultStorageKey)))
	if len(got) != 1 || got[0].Quantity != 11 {
		t.Errorf("expected p1 x11 persisted, got %+v", got)
	}
}

func TestFlush_RespectsContext(t *testing.T) {
	kv := newMockKV()
	kv.gate = make(chan struct{})
	store := openStore(t, kv)
	defer close(kv.gate)

	store.AddToCart(context.Background(), shoe)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := store.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestClose_WritesPendingSnapshot(t *testing.T) {
	kv := newMockKV()
	store, err := Open(context.Background(), kv)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	ctx := context.Background()
	store.AddToCart(ctx, shoe)
	store.Increment(ctx, "p1")

	if err := store.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	got, _ := domain.DecodeCart([]byte(kv.stored(DefaultStorageKey)))
	if len(got) != 1 || got[0].Quantity != 2 {
		t.Errorf("expected p1 x2 persisted on close, got %+v", got)
	}
}

func TestClose_GivesUpWhenContextEnds(t *testing.T) {
	kv := newMockKV()
	kv.failSets = -1
	store, err := Open(context.Background(), kv,
		WithWriteRetries(1000),
		WithRetryBackoff(50*time.Millisecond, time.Second),
	)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	store.AddToCart(context.Background(), shoe)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := store.Close(ctx); err == nil {
		t.Fatal("expected close to report the unsaved cart")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected close to return promptly, took %s", elapsed)
	}
}
