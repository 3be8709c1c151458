package campaign

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/sampark/pkg/errorsx"
)

// MemoryRepository keeps campaigns in process. It backs deployments without a
// database and the tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	campaigns map[string]Campaign
	now       func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{campaigns: make(map[string]Campaign), now: time.Now}
}

func (m *MemoryRepository) Create(ctx context.Context, c Campaign) (Campaign, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[c.ID]; ok {
		return Campaign{}, errorsx.Errorf(errorsx.ReasonValidation, "campaign %s already exists", c.ID)
	}
	m.campaigns[c.ID] = c
	return c, nil
}

func (m *MemoryRepository) Get(ctx context.Context, id string) (Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return Campaign{}, errorsx.NotFound("campaign not found")
	}
	return c, nil
}
