package numerator

import (
	"context"
	"sync"
)

// MockAllocator is a test implementation of Allocator.
// Without AllocateFunc it counts per key in memory.
type MockAllocator struct {
	AllocateFunc func(ctx context.Context, key Key) (int64, error)

	mu   sync.Mutex
	last map[Key]int64
}

// Allocate implements Allocator.
func (m *MockAllocator) Allocate(ctx context.Context, key Key) (int64, error) {
	if m.AllocateFunc != nil {
		return m.AllocateFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		m.last = make(map[Key]int64)
	}
	m.last[key]++
	return m.last[key], nil
}

var _ Allocator = (*MockAllocator)(nil)
