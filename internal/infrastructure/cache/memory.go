package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/corpusqa/corpusqa/internal/core/domain"
)

const defaultMaxEntries = 1024

// Memory is a mutex-guarded LRU with per-entry expiry. It backs deployments
// without Redis; entries never outlive the process.
type Memory struct {
	mu         sync.Mutex
	maxEntries int
	items      map[string]*memoryEntry
	order      *list.List
	now        func() time.Time
}

type memoryEntry struct {
	signature string
	answer    domain.Answer
	expires   time.Time
	element   *list.Element
}

func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Memory{
		maxEntries: maxEntries,
		items:      make(map[string]*memoryEntry, maxEntries),
		order:      list.New(),
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, signature string) (domain.Answer, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.items[signature]
	if !ok {
		return domain.Answer{}, false, nil
	}
	if !ent.expires.IsZero() && !m.now().Before(ent.expires) {
		m.remove(ent)
		return domain.Answer{}, false, nil
	}
	m.order.MoveToFront(ent.element)
	return ent.answer, true, nil
}

func (m *Memory) Put(_ context.Context, signature string, answer domain.Answer, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ent, ok := m.items[signature]; ok {
		ent.answer = answer
		ent.expires = m.expiry(ttl)
		m.order.MoveToFront(ent.element)
		return nil
	}

	if len(m.items) >= m.maxEntries {
		m.evictOldest()
	}

	elem := m.order.PushFront(signature)
	m.items[signature] = &memoryEntry{
		signature: signature,
		answer:    answer,
		expires:   m.expiry(ttl),
		element:   elem,
	}
	return nil
}

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *Memory) evictOldest() {
	elem := m.order.Back()
	if elem == nil {
		return
	}
	if ent, ok := m.items[elem.Value.(string)]; ok {
		m.remove(ent)
	}
}

func (m *Memory) remove(ent *memoryEntry) {
	if ent.element != nil {
		m.order.Remove(ent.element)
	}
	delete(m.items, ent.signature)
}
