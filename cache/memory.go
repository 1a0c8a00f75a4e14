package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory implements Backend with an in-process sync.Map
type Memory struct {
	data            sync.Map
	maxSize         int
	cleanupInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemory creates an in-memory cache. Entries past their TTL are
// dropped lazily on read and swept every cleanupInterval; when the
// cache grows past maxSize the soonest-expiring entries are evicted.
func NewMemory(maxSize int, cleanupInterval time.Duration) *Memory {
	m := &Memory{
		maxSize:         maxSize,
		cleanupInterval: cleanupInterval,
		stopCh:          make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, ok := m.data.Load(key)
	if !ok {
		return nil, false, nil
	}
	entry := val.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		m.data.Delete(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.data.Store(key, &memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.data.Delete(key)
	return nil
}

func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	return nil
}

func (m *Memory) cleanupLoop() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *Memory) cleanup() {
	now := time.Now()
	var live []struct {
		key       string
		expiresAt time.Time
	}

	m.data.Range(func(key, value interface{}) bool {
		k := key.(string)
		entry := value.(*memoryEntry)
		if now.After(entry.expiresAt) {
			m.data.Delete(k)
			return true
		}
		live = append(live, struct {
			key       string
			expiresAt time.Time
		}{k, entry.expiresAt})
		return true
	})

	if m.maxSize <= 0 || len(live) <= m.maxSize {
		return
	}

	// Over capacity: evict the entries closest to expiry
	sort.Slice(live, func(i, j int) bool {
		return live[i].expiresAt.Before(live[j].expiresAt)
	})
	for _, entry := range live[:len(live)-m.maxSize] {
		m.data.Delete(entry.key)
	}
}
