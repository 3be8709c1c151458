package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/sampark/pkg/dialog"
)

// DefaultPendingTTL bounds how long a placement waits for its answer webhook.
const DefaultPendingTTL = 10 * time.Minute

type pendingSeed struct {
	seed    dialog.Seed
	created time.Time
}

// Pending correlates outbound placements with answer webhooks that may arrive
// before the provider's call id is known to the store.
type Pending struct {
	mu    sync.Mutex
	seeds map[string]pendingSeed
	ttl   time.Duration
	now   func() time.Time
}

func NewPending(ttl time.Duration) *Pending {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &Pending{seeds: make(map[string]pendingSeed), ttl: ttl, now: time.Now}
}

// Expect registers seed and returns the correlation ref to embed in webhook URLs.
func (p *Pending) Expect(seed dialog.Seed) string {
	ref := uuid.NewString()
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range p.seeds {
		if now.Sub(v.created) > p.ttl {
			delete(p.seeds, k)
		}
	}
	p.seeds[ref] = pendingSeed{seed: seed, created: now}
	return ref
}

// Take removes and returns the seed for ref.
func (p *Pending) Take(ref string) (dialog.Seed, bool) {
	if ref == "" {
		return dialog.Seed{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.seeds[ref]
	if !ok {
		return dialog.Seed{}, false
	}
	delete(p.seeds, ref)
	return v.seed, true
}

// Drop forgets ref.
func (p *Pending) Drop(ref string) {
	p.mu.Lock()
	delete(p.seeds, ref)
	p.mu.Unlock()
}

func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seeds)
}
