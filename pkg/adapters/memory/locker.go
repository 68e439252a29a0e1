package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/xplanning/pkg/ports"
)

type heldLock struct {
	released chan struct{}
	timer    *time.Timer
}

// Locker implements ports.DistributedLocker for a single process.
// Locks expire after their TTL like their Redis counterpart.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*heldLock
}

// NewLocker creates an in-process locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*heldLock)}
}

// Lock blocks until key is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	for {
		l.mu.Lock()
		held, busy := l.locks[key]
		if !busy {
			h := &heldLock{released: make(chan struct{})}
			l.locks[key] = h
			if ttl > 0 {
				h.timer = time.AfterFunc(ttl, func() { l.release(key, h) })
			}
			l.mu.Unlock()
			return func(context.Context) error {
				l.release(key, h)
				return nil
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-held.released:
		}
	}
}

// release frees key if h still holds it. Releasing twice is a no-op.
func (l *Locker) release(key string, h *heldLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks[key] != h {
		return
	}
	delete(l.locks, key)
	if h.timer != nil {
		h.timer.Stop()
	}
	close(h.released)
}
