package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	value   string
	expires time.Time
	hasTTL  bool
}

func (e memoryEntry) expired(now time.Time) bool {
	return e.hasTTL && now.After(e.expires)
}

type memoryZSet struct {
	scores map[string]float64
}

// MemoryStore is an in-process Store implementation, including the
// integer-counter and sorted-set primitives the moderation core requires. It is safe for
// concurrent use and is the backend used by unit tests and by single-process
// or dry-run deployments that have no Redis available.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string]memoryEntry
	zsets map[string]*memoryZSet
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  make(map[string]memoryEntry),
		zsets: make(map[string]*memoryZSet),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.data[key]
	if !ok || e.expired(time.Now()) {
		delete(m.data, key)
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = m.entryWithTTL(value, ttl)
	return nil
}

func (m *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.data[key]; ok && !e.expired(time.Now()) {
		return false, nil
	}
	m.data[key] = m.entryWithTTL(value, ttl)
	return true, nil
}

func (m *MemoryStore) entryWithTTL(value string, ttl time.Duration) memoryEntry {
	if ttl <= 0 {
		return memoryEntry{value: value}
	}
	return memoryEntry{value: value, expires: time.Now().Add(ttl), hasTTL: true}
}

func (m *MemoryStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	delete(m.zsets, key)
	return nil
}

func (m *MemoryStore) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current int64
	if e, ok := m.data[key]; ok && !e.expired(time.Now()) {
		current = parseInt64(e.value)
	}
	current += delta
	existing := m.data[key]
	existing.value = formatInt64(current)
	m.data[key] = existing
	return current, nil
}

func (m *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.data[key]
	if !ok {
		return nil
	}
	e.hasTTL = true
	e.expires = time.Now().Add(ttl)
	m.data[key] = e
	return nil
}

func (m *MemoryStore) ZAdd(_ context.Context, key string, members ...ZMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	z, ok := m.zsets[key]
	if !ok {
		z = &memoryZSet{scores: make(map[string]float64)}
		m.zsets[key] = z
	}
	for _, mem := range members {
		z.scores[mem.Member] = mem.Score
	}
	return nil
}

func (m *MemoryStore) ZRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	z, ok := m.zsets[key]
	if !ok {
		return nil, nil
	}
	members := make([]string, 0, len(z.scores))
	for mem := range z.scores {
		members = append(members, mem)
	}
	sort.Slice(members, func(i, j int) bool {
		if z.scores[members[i]] == z.scores[members[j]] {
			return members[i] < members[j]
		}
		return z.scores[members[i]] < z.scores[members[j]]
	})

	n := int64(len(members))
	start, stop = normalizeRange(start, stop, n)
	if start > stop || start >= n {
		return []string{}, nil
	}
	return members[start : stop+1], nil
}

func (m *MemoryStore) ZRemRangeByScore(_ context.Context, key string, min, max float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	z, ok := m.zsets[key]
	if !ok {
		return nil
	}
	for mem, score := range z.scores {
		if score >= min && score <= max {
			delete(z.scores, mem)
		}
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func normalizeRange(start, stop, n int64) (int64, int64) {
	if start < 0 {
		start = n + start
		if start < 0 {
			start = 0
		}
	}
	if stop < 0 {
		stop = n + stop
	}
	if stop >= n {
		stop = n - 1
	}
	return start, stop
}

func parseInt64(s string) int64 {
	var neg bool
	var n int64
	for i, r := range s {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int64(r-'0')
	}
	if neg {
		n = -n
	}
	return n
}

func formatInt64(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
