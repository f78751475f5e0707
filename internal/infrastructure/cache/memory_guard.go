package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/catalogsync/internal/domain/integration"
)

const sweepInterval = 5 * time.Minute

// MemoryTitleGuard keeps titles in a map swept periodically of expired
// entries
type MemoryTitleGuard struct {
	mu      sync.Mutex
	entries map[string]guardEntry
	now     func() time.Time

	stop context.CancelFunc
	done chan struct{}
}

type guardEntry struct {
	product integration.ProductSummary
	expires time.Time
}

var _ integration.TitleGuard = (*MemoryTitleGuard)(nil)

// NewMemoryTitleGuard creates the guard and starts its sweeper
func NewMemoryTitleGuard() *MemoryTitleGuard {
	return newMemoryTitleGuard(time.Now, sweepInterval)
}

func newMemoryTitleGuard(now func() time.Time, every time.Duration) *MemoryTitleGuard {
	ctx, stop := context.WithCancel(context.Background())
	g := &MemoryTitleGuard{
		entries: make(map[string]guardEntry),
		now:     now,
		stop:    stop,
		done:    make(chan struct{}),
	}
	go g.sweepEvery(ctx, every)
	return g
}

// Seen returns the product remembered for title while it is unexpired
func (g *MemoryTitleGuard) Seen(_ context.Context, title string) (*integration.ProductSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.live(title)
	if !ok {
		return nil, nil
	}
	product := entry.product
	return &product, nil
}

// Remember records product under title for ttl unless the title is already
// remembered
func (g *MemoryTitleGuard) Remember(_ context.Context, title string, product integration.ProductSummary, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.live(title); ok {
		return false, nil
	}
	g.entries[title] = guardEntry{product: product, expires: g.now().Add(ttl)}
	return true, nil
}

func (g *MemoryTitleGuard) live(title string) (guardEntry, bool) {
	entry, ok := g.entries[title]
	if !ok || !g.now().Before(entry.expires) {
		return guardEntry{}, false
	}
	return entry, true
}

// Len counts remembered titles, expired ones included until swept
func (g *MemoryTitleGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Close stops the sweeper. It may be called more than once.
func (g *MemoryTitleGuard) Close() error {
	g.stop()
	<-g.done
	return nil
}

func (g *MemoryTitleGuard) sweepEvery(ctx context.Context, every time.Duration) {
	defer close(g.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

func (g *MemoryTitleGuard) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for title, entry := range g.entries {
		if !now.Before(entry.expires) {
			delete(g.entries, title)
		}
	}
}
