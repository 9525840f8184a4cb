package kv

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is the in-process Store + SortedSet engine. Expiry is lazy:
// entries are dropped when touched after their deadline.
type Memory struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	data   map[string]entry
	hashes map[string]map[string]string
	zsets  map[string]map[string]int64
}

// NewMemory creates an engine on the real clock.
func NewMemory() *Memory {
	return NewMemoryWithClock(clockwork.NewRealClock())
}

// NewMemoryWithClock creates an engine with an injected clock, used by tests.
func NewMemoryWithClock(clock clockwork.Clock) *Memory {
	return &Memory{
		clock:  clock,
		data:   make(map[string]entry),
		hashes: make(map[string]map[string]string),
		zsets:  make(map[string]map[string]int64),
	}
}

func (m *Memory) get(key string) (entry, bool) {
	e, ok := m.data[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(m.clock.Now()) {
		delete(m.data, key)
		return entry{}, false
	}
	return e, true
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(key)
	return e.value, ok
}

func (m *Memory) Set(key, value string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = m.newEntry(value, ttl)
}

func (m *Memory) SetNX(key, value string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.get(key); ok {
		return false
	}
	m.data[key] = m.newEntry(value, ttl)
	return true
}

func (m *Memory) newEntry(value string, ttl time.Duration) entry {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = m.clock.Now().Add(ttl)
	}
	return e
}

func (m *Memory) Del(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.get(key)
	delete(m.data, key)
	return ok
}

func (m *Memory) CompareAndDelete(key, expect string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(key)
	if !ok || e.value != expect {
		return false
	}
	delete(m.data, key)
	return true
}

func (m *Memory) Exists(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.get(key)
	return ok
}

func (m *Memory) Incr(key string, delta int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _ := m.get(key)
	n, _ := strconv.ParseInt(e.value, 10, 64)
	n += delta
	e.value = strconv.FormatInt(n, 10)
	m.data[key] = e
	return n
}

func (m *Memory) Expire(key string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(key)
	if !ok {
		return false
	}
	if ttl > 0 {
		e.expiresAt = m.clock.Now().Add(ttl)
	} else {
		e.expiresAt = time.Time{}
	}
	m.data[key] = e
	return true
}

func (m *Memory) HSet(key, field, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	h[field] = value
}

func (m *Memory) HGet(key, field string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.hashes[key][field]
	return v, ok
}

func (m *Memory) HGetAll(key string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out
}

func (m *Memory) HIncr(key, field string, delta int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	n, _ := strconv.ParseInt(h[field], 10, 64)
	n += delta
	h[field] = strconv.FormatInt(n, 10)
	return n
}

func (m *Memory) ZAdd(key string, score int64, member string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zsets[key]
	if !ok {
		z = make(map[string]int64)
		m.zsets[key] = z
	}
	_, existed := z[member]
	z[member] = score
	return !existed
}

func (m *Memory) ZRem(key string, members ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	z := m.zsets[key]
	removed := 0
	for _, member := range members {
		if _, ok := z[member]; ok {
			delete(z, member)
			removed++
		}
	}
	return removed
}

func (m *Memory) ZRangeByScore(key string, min, max int64, limit int) []ScoredMember {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ScoredMember
	for member, score := range m.zsets[key] {
		if score >= min && score <= max {
			out = append(out, ScoredMember{Member: member, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *Memory) ZPopMin(key string) (ScoredMember, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z := m.zsets[key]
	if len(z) == 0 {
		return ScoredMember{}, false
	}
	best := ScoredMember{}
	first := true
	for member, score := range z {
		if first || score < best.Score || (score == best.Score && member < best.Member) {
			best = ScoredMember{Member: member, Score: score}
			first = false
		}
	}
	delete(z, best.Member)
	return best, true
}

func (m *Memory) ZCard(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.zsets[key])
}

func (m *Memory) ZScore(key string, member string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	score, ok := m.zsets[key][member]
	return score, ok
}

func (m *Memory) ZRemRangeByScore(key string, min, max int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	z := m.zsets[key]
	removed := 0
	for member, score := range z {
		if score >= min && score <= max {
			delete(z, member)
			removed++
		}
	}
	return removed
}

var (
	_ Store     = (*Memory)(nil)
	_ SortedSet = (*Memory)(nil)
)
