package ledger

import (
	"context"
	"sync"
)

// MemoryStore 以内存方式保存流水，超过容量时丢弃最旧的记录。
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []Entry
	ids      map[string]struct{}
	capacity int
}

// NewMemoryStore 创建 MemoryStore，capacity <= 0 表示不限制。
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{ids: make(map[string]struct{}), capacity: capacity}
}

// Append 实现 Store 接口。
func (m *MemoryStore) Append(_ context.Context, entry Entry) error {
	if err := entry.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[entry.ID]; ok {
		return ErrEntryConflict
	}
	m.entries = append(m.entries, entry)
	m.ids[entry.ID] = struct{}{}
	if m.capacity > 0 && len(m.entries) > m.capacity {
		drop := len(m.entries) - m.capacity
		for _, old := range m.entries[:drop] {
			delete(m.ids, old.ID)
		}
		m.entries = append([]Entry(nil), m.entries[drop:]...)
	}
	return nil
}

// List 实现 Store 接口。
func (m *MemoryStore) List(ctx context.Context, opts ...ListOption) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	options := buildListOptions(opts)
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Entry, 0, min(options.Limit, len(m.entries)))
	n := len(m.entries)
	for i := 0; i < n && len(result) < options.Limit; i++ {
		idx := n - 1 - i
		if options.Order == SortOldestFirst {
			idx = i
		}
		if e := m.entries[idx]; options.matches(e) {
			result = append(result, e)
		}
	}
	return result, nil
}

// Close 实现 Store 接口。
func (m *MemoryStore) Close() error { return nil }
