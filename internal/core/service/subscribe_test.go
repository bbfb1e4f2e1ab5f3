package service

import (
	"context"
	"testing"
	"time"
)

func TestSubscribe_ReceivesLatestSnapshot(t *testing.T) {
	store := openStore(t, newMockKV())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := store.Subscribe(ctx)

	store.AddToCart(ctx, shoe)
	store.Increment(ctx, "p1")
	store.Increment(ctx, "p1")

	// Deliveries coalesce, so read until the newest revision shows up
	deadline := time.After(time.Second)
	for {
		select {
		case snap := <-updates:
			if snap.Revision < 3 {
				continue
			}
			if snap.Revision != 3 || len(snap.Items) != 1 || snap.Items[0].Quantity != 3 {
				t.Fatalf("unexpected snapshot: %+v", snap)
			}
			return
		case <-deadline:
			t.Fatal("never received revision 3")
		}
	}
}

func TestSubscribe_ClosedOnCancel(t *testing.T) {
	store := openStore(t, newMockKV())
	ctx, cancel := context.WithCancel(context.Background())

	updates := store.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-updates:
		if ok {
			t.Fatal("expected channel closed without a delivery")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestSubscribe_ClosedOnStoreClose(t *testing.T) {
	store := openStore(t, newMockKV())

	updates := store.Subscribe(context.Background())
	if err := store.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if _, ok := <-updates; ok {
		t.Fatal("expected channel closed")
	}

	// Subscribing after close yields a closed channel
	if _, ok := <-store.Subscribe(context.Background()); ok {
		t.Fatal("expected closed channel after close")
	}
}
