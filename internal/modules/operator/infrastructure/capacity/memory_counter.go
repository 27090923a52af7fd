package capacity

import (
	"context"
	"sync"

	domain "ilpotaxi/internal/modules/operator/domain/capacity"
)

// memoryCounter backs the counter with in-process sets. Used by tests and by
// single-node deployments without Redis.
type memoryCounter struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

func NewMemoryCounter() domain.Counter {
	return &memoryCounter{sets: make(map[string]map[string]struct{})}
}

func (c *memoryCounter) Increment(_ context.Context, operatorUuid, conversationUuid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := c.sets[operatorUuid]
	if set == nil {
		set = make(map[string]struct{})
		c.sets[operatorUuid] = set
	}
	set[conversationUuid] = struct{}{}
	return nil
}

func (c *memoryCounter) Decrement(_ context.Context, operatorUuid, conversationUuid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set := c.sets[operatorUuid]; set != nil {
		delete(set, conversationUuid)
		if len(set) == 0 {
			delete(c.sets, operatorUuid)
		}
	}
	return nil
}

func (c *memoryCounter) ListActive(_ context.Context, operatorUuid string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set := c.sets[operatorUuid]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out, nil
}

func (c *memoryCounter) ActiveCount(_ context.Context, operatorUuid string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sets[operatorUuid]), nil
}
