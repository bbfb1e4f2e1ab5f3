package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/platform/logger"
	"github.com/rl1809/cart-sync/internal/port"
)

var errSuperseded = errors.New("snapshot superseded")

type SyncStatus struct {
	Revision          uint64 // latest published revision
	PersistedRevision uint64 // latest revision known to be in storage
	LastError         error  // error of the last abandoned write, nil after a success
	LastWriteAt       time.Time

	// StorageCorrupt is set when Open discarded an undecodable blob and no
	// write has replaced it yet.
	StorageCorrupt bool
}

func (st SyncStatus) InSync() bool {
	return !st.StorageCorrupt && st.PersistedRevision >= st.Revision
}

// persister writes cart snapshots in the background. Only the newest pending
// snapshot is kept: each write stores the whole cart, so older ones are moot.
type persister struct {
	kv      port.KVStore
	key     string
	log     *logger.Logger
	tries   uint
	timeout time.Duration
	initial time.Duration
	max     time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}

	mu          sync.Mutex
	pending     *Snapshot
	latest      uint64
	persisted   uint64
	failed      uint64
	lastErr     error
	lastWriteAt time.Time
	corrupt     bool
	changed     chan struct{}
}

func newPersister(kv port.KVStore, o options, corrupt bool) *persister {
	ctx, cancel := context.WithCancel(context.Background())
	return &persister{
		kv:      kv,
		key:     o.key,
		log:     o.log,
		tries:   o.writeRetries,
		timeout: o.writeTimeout,
		initial: o.retryInitial,
		max:     o.retryMax,
		ctx:     ctx,
		cancel:  cancel,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		changed: make(chan struct{}),
		corrupt: corrupt,
	}
}

func (p *persister) enqueue(snap Snapshot) {
	p.mu.Lock()
	if snap.Revision > p.latest {
		p.latest = snap.Revision
		p.pending = &snap
	}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.drain()
		case <-p.stop:
			p.drain()
			return
		}
	}
}

func (p *persister) drain() {
	for {
		p.mu.Lock()
		snap := p.pending
		p.pending = nil
		p.mu.Unlock()

		if snap == nil {
			return
		}
		p.write(*snap)
	}
}

func (p *persister) write(snap Snapshot) {
	data, err := domain.EncodeCart(snap.Items)
	if err != nil {
		p.finish(snap.Revision, err)
		return
	}

	_, err = backoff.Retry(p.ctx, func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
		defer cancel()

		if err := p.kv.Set(ctx, p.key, data); err != nil {
			if p.superseded(snap.Revision) {
				return struct{}{}, backoff.Permanent(errSuperseded)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(p.newBackOff()),
		backoff.WithMaxTries(p.tries),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.log.Warn("cart write failed, retrying", "key", p.key, "revision", snap.Revision, "retry_in", next, "error", err)
		}),
	)
	if errors.Is(err, errSuperseded) {
		p.log.Debug("cart write superseded", "key", p.key, "revision", snap.Revision)
		return
	}
	p.finish(snap.Revision, err)
}

func (p *persister) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initial
	b.MaxInterval = p.max
	return b
}

func (p *persister) superseded(revision uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil && p.pending.Revision > revision
}

func (p *persister) finish(revision uint64, err error) {
	p.mu.Lock()
	if err != nil {
		p.failed = revision
		p.lastErr = err
	} else {
		if revision > p.persisted {
			p.persisted = revision
		}
		p.lastErr = nil
		p.lastWriteAt = time.Now()
		p.corrupt = false
	}
	close(p.changed)
	p.changed = make(chan struct{})
	p.mu.Unlock()

	if err != nil {
		p.log.Error("cart write abandoned", "key", p.key, "revision", revision, "error", err)
		return
	}
	p.log.Debug("cart persisted", "key", p.key, "revision", revision)
}

func (p *persister) status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return SyncStatus{
		PersistedRevision: p.persisted,
		LastError:         p.lastErr,
		LastWriteAt:       p.lastWriteAt,
		StorageCorrupt:    p.corrupt,
	}
}

func (p *persister) wait(ctx context.Context, revision uint64) error {
	for {
		p.mu.Lock()
		persisted, failed, lastErr, changed := p.persisted, p.failed, p.lastErr, p.changed
		p.mu.Unlock()

		if persisted >= revision {
			return nil
		}
		if failed >= revision && lastErr != nil {
			return fmt.Errorf("flush revision %d: %w", revision, lastErr)
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *persister) close(ctx context.Context) error {
	close(p.stop)

	select {
	case <-p.done:
	case <-ctx.Done():
		p.cancel()
		<-p.done
	}
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.persisted >= p.latest {
		return nil
	}
	if p.lastErr != nil {
		return fmt.Errorf("final cart write: %w", p.lastErr)
	}
	return fmt.Errorf("final cart write: %w", ctx.Err())
}
