package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cache is a string keyed store. Implementations are safe for concurrent
// use; a miss is never an error.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// DeletePrefix returns how many keys it removed.
	DeletePrefix(prefix string) int
	Size() int
}

// Cleaner is a cache that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

type named struct {
	name string
	c    Cleaner
}

// Manager sweeps expired entries from the registered caches on a ticker.
type Manager struct {
	mu     sync.Mutex
	caches []named
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Register adds a cache under a name used in logs.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, named{name: name, c: c})
}

// StartCleanup sweeps every interval until Stop. A second call is a no-op.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, interval, m.done)
}

func (m *Manager) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.CleanNow()
		case <-ctx.Done():
			return
		}
	}
}

// CleanNow runs one sweep and returns the number of entries removed.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	caches := append([]named(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, n := range caches {
		if removed := n.c.CleanExpired(); removed > 0 {
			m.logger.Debug("Expired cache entries removed", "cache", n.name, "count", removed)
			total += removed
		}
	}
	return total
}

// Stop ends the sweep started by StartCleanup and waits for it.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
