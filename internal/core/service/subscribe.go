package service

import "context"

type subscriber struct {
	ch chan Snapshot
}

// Subscribe delivers a snapshot after every change to the cart. Deliveries
// coalesce: a slow reader only ever sees the newest state. The channel is
// closed when ctx ends or the store is closed.
func (s *CartStore) Subscribe(ctx context.Context) <-chan Snapshot {
	sub := &subscriber{ch: make(chan Snapshot, 1)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(sub.ch)
		return sub.ch
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.quit:
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[sub]; ok {
			delete(s.subs, sub)
			close(sub.ch)
		}
	}()

	return sub.ch
}

// notify runs on the command loop only, so it is the sole sender on every
// subscriber channel.
func (s *CartStore) notify(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subs {
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- Snapshot{Items: snap.Items.Clone(), Revision: snap.Revision}
	}
}
