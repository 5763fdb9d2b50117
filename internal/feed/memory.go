package feed

import (
	"context"
	"sync"

	"hap/queue-service/internal/models"
)

// MemoryFeed holds the slot in process memory. Used in development and tests.
type MemoryFeed struct {
	mu      sync.RWMutex
	record  models.CallRecord
	present bool
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{}
}

func (f *MemoryFeed) Publish(ctx context.Context, record models.CallRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record = record
	f.present = true
	return nil
}

func (f *MemoryFeed) Current(ctx context.Context) (models.CallRecord, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.present {
		return models.CallRecord{}, false, nil
	}
	return f.record, true, nil
}
