package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/platform/logger"
	"github.com/rl1809/cart-sync/internal/port"
)

var (
	ErrClosed       = errors.New("cart store closed")
	ErrItemNotFound = errors.New("item not in cart")
	ErrCorruptState = errors.New("corrupt persisted cart")

	ErrInvalidProduct = domain.ErrInvalidProduct
)

// Snapshot is one published state of the cart. Items must be treated as
// read-only; it may be shared with other readers.
type Snapshot struct {
	Items    domain.Cart
	Revision uint64
}

type mutation func(domain.Cart) (next domain.Cart, changed bool, err error)

type command struct {
	fn   mutation
	done chan error
}

// CartStore owns the cart of one device. All mutations go through a single
// goroutine in arrival order; reads see the last published snapshot.
type CartStore struct {
	key       string
	log       *logger.Logger
	current   atomic.Pointer[Snapshot]
	commands  chan command
	persister *persister

	mu     sync.Mutex
	closed bool
	subs   map[*subscriber]struct{}

	quit     chan struct{}
	loopDone chan struct{}
}

// Open loads the cart stored under the configured key and starts the store.
// A missing key yields an empty cart. An undecodable blob is logged as
// ErrCorruptState and also yields an empty cart. Any other read error is
// returned and no store is created.
func Open(ctx context.Context, kv port.KVStore, opts ...Option) (*CartStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	initial, corrupt, err := load(ctx, kv, o.key, o.log)
	if err != nil {
		return nil, err
	}

	s := &CartStore{
		key:       o.key,
		log:       o.log,
		commands:  make(chan command),
		persister: newPersister(kv, o, corrupt),
		subs:      make(map[*subscriber]struct{}),
		quit:      make(chan struct{}),
		loopDone:  make(chan struct{}),
	}
	s.current.Store(&Snapshot{Items: initial})

	go s.run()
	go s.persister.run()

	o.log.Info("cart store opened", "key", o.key, "items", len(initial))
	return s, nil
}

// load reports corrupt when the stored blob could not be decoded and was
// replaced by an empty cart.
func load(ctx context.Context, kv port.KVStore, key string, log *logger.Logger) (cart domain.Cart, corrupt bool, err error) {
	data, err := kv.Get(ctx, key)
	if errors.Is(err, port.ErrNotFound) {
		return domain.Cart{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load cart: %w", err)
	}

	cart, err = domain.DecodeCart(data)
	if err != nil {
		log.Error("discarding persisted cart", "key", key, "error", fmt.Errorf("%w: %v", ErrCorruptState, err))
		return domain.Cart{}, true, nil
	}

	cart, dropped := domain.Sanitize(cart)
	if dropped > 0 {
		log.Warn("dropped invalid cart entries", "key", key, "dropped", dropped)
	}
	return cart, false, nil
}

func (s *CartStore) run() {
	defer close(s.loopDone)
	for {
		select {
		case cmd := <-s.commands:
			cmd.done <- s.apply(cmd.fn)
		case <-s.quit:
			return
		}
	}
}

func (s *CartStore) apply(fn mutation) error {
	cur := s.current.Load()

	next, changed, err := fn(cur.Items)
	if err != nil || !changed {
		return err
	}

	snap := &Snapshot{Items: next, Revision: cur.Revision + 1}
	s.current.Store(snap)
	s.persister.enqueue(*snap)
	s.notify(*snap)

	s.log.Debug("cart updated", "revision", snap.Revision, "items", len(next))
	return nil
}

// submit hands fn to the command loop and waits until it has been applied.
// If ctx ends after the command was queued, the mutation still happens.
func (s *CartStore) submit(ctx context.Context, fn mutation) error {
	cmd := command{fn: fn, done: make(chan error, 1)}

	select {
	case s.commands <- cmd:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddToCart puts p in the cart with quantity 1. If an item with the same id is
// already there, its quantity is incremented and p's other fields are ignored.
// A product without an id or with a negative or non-finite price is rejected
// with ErrInvalidProduct.
func (s *CartStore) AddToCart(ctx context.Context, p domain.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.submit(ctx, func(c domain.Cart) (domain.Cart, bool, error) {
		next, ok := c.Add(p)
		return next, ok, nil
	})
}

// Increment is a no-op for an unknown id.
func (s *CartStore) Increment(ctx context.Context, id string) error {
	return s.submit(ctx, func(c domain.Cart) (domain.Cart, bool, error) {
		next, ok := c.Increment(id)
		return next, ok, nil
	})
}

// Decrement lowers the quantity of id by one and removes the item when it
// reaches zero. An unknown id returns ErrItemNotFound and changes nothing.
func (s *CartStore) Decrement(ctx context.Context, id string) error {
	return s.submit(ctx, func(c domain.Cart) (domain.Cart, bool, error) {
		next, ok := c.Decrement(id)
		if !ok {
			return c, false, fmt.Errorf("decrement %q: %w", id, ErrItemNotFound)
		}
		return next, true, nil
	})
}

// Products returns a copy of the current list.
func (s *CartStore) Products() []domain.LineItem {
	return s.current.Load().Items.Clone()
}

func (s *CartStore) Snapshot() Snapshot {
	cur := s.current.Load()
	return Snapshot{Items: cur.Items.Clone(), Revision: cur.Revision}
}

func (s *CartStore) Total() float64 {
	return s.current.Load().Items.Total()
}

func (s *CartStore) Count() int {
	return s.current.Load().Items.Count()
}

func (s *CartStore) IsEmpty() bool {
	return len(s.current.Load().Items) == 0
}

func (s *CartStore) SyncStatus() SyncStatus {
	st := s.persister.status()
	st.Revision = s.current.Load().Revision
	return st
}

// Flush waits until the current revision has been written. It returns the
// write error if the persister gave up on that revision.
func (s *CartStore) Flush(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.persister.wait(ctx, s.current.Load().Revision)
}

// Close stops the store and writes the last snapshot. If ctx ends first the
// pending write is abandoned and an error is returned.
func (s *CartStore) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	close(s.quit)
	for sub := range s.subs {
		delete(s.subs, sub)
		close(sub.ch)
	}
	s.mu.Unlock()

	<-s.loopDone

	err := s.persister.close(ctx)
	if err != nil {
		s.log.Error("cart store closed with unsaved changes", "key", s.key, "error", err)
		return err
	}
	s.log.Info("cart store closed", "key", s.key)
	return nil
}

func (s *CartStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
