package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/cart-sync/internal/adapter/storage"
	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/core/service"
	"github.com/rl1809/cart-sync/internal/platform/logger"
)

const (
	productCount  = 5
	totalRequests = 1000
	storageKey    = "stress::cart"
)

func main() {
	ctx := context.Background()

	log, err := logger.New("dev")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	path := os.Getenv("CART_BUNT_PATH")
	if path == "" {
		path = ":memory:"
	}
	kv, err := storage.OpenBuntAdapter(path)
	if err != nil {
		log.Fatal("failed to open buntdb", "path", path, "error", err)
	}
	defer kv.Close()

	store, err := service.Open(ctx, kv, service.WithStorageKey(storageKey), service.WithLogger(log))
	if err != nil {
		log.Fatal("failed to open cart store", "error", err)
	}

	// Seed products
	ids := make([]string, productCount)
	for i := range ids {
		ids[i] = uuid.NewString()
		if err := store.AddToCart(ctx, domain.Product{ID: ids[i], Title: fmt.Sprintf("product-%d", i), Price: 1}); err != nil {
			log.Fatal("failed to seed cart", "error", err)
		}
	}

	// Spawn concurrent mutations: increments spread over all products, plus
	// increments of an unknown id that must not change anything
	var noops atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		g.Go(func() error {
			if i%10 == 9 {
				noops.Add(1)
				return store.Increment(gctx, "unknown-"+uuid.NewString())
			}
			return store.Increment(gctx, ids[i%productCount])
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatal("mutation failed", "error", err)
	}
	elapsed := time.Since(start)

	if err := store.Flush(ctx); err != nil {
		log.Error("flush failed", "error", err)
	}

	applied := totalRequests - int(noops.Load())
	want := productCount + applied
	got := store.Count()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Products:         %d\n", productCount)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("No-op Requests:   %d\n", noops.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Printf("Revision:         %d\n", store.SyncStatus().Revision)
	fmt.Println("==========================================")

	if got == want {
		fmt.Printf("PASS: cart holds %d units, no lost updates\n", got)
	} else {
		fmt.Printf("FAIL: expected %d units, got %d\n", want, got)
	}

	// Verify the persisted copy matches memory
	data, err := kv.Get(ctx, storageKey)
	if err != nil {
		log.Fatal("failed to read persisted cart", "error", err)
	}
	persisted, err := domain.DecodeCart(data)
	if err != nil {
		log.Fatal("failed to decode persisted cart", "error", err)
	}

	if persisted.Count() == got {
		fmt.Println("PASS: persisted cart matches memory")
	} else {
		fmt.Printf("FAIL: persisted %d units, memory %d\n", persisted.Count(), got)
	}

	if err := store.Close(ctx); err != nil {
		log.Error("close failed", "error", err)
	}
}
