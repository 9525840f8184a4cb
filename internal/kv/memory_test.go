package kv

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetWithTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemoryWithClock(clock)

	m.Set("k", "v", 5*time.Second)
	v, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	clock.Advance(6 * time.Second)
	_, ok = m.Get("k")
	assert.False(t, ok, "expired key should be gone")
}

func TestSetNXRespectsExisting(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemoryWithClock(clock)

	require.True(t, m.SetNX("lock", "a", time.Second))
	assert.False(t, m.SetNX("lock", "b", time.Second))

	clock.Advance(2 * time.Second)
	assert.True(t, m.SetNX("lock", "b", time.Second), "expired key is absent")
}

func TestCompareAndDelete(t *testing.T) {
	m := NewMemory()
	m.Set("lock", "token-1", 0)

	assert.False(t, m.CompareAndDelete("lock", "token-2"))
	assert.True(t, m.Exists("lock"))
	assert.True(t, m.CompareAndDelete("lock", "token-1"))
	assert.False(t, m.Exists("lock"))
}

func TestIncrAndHashOps(t *testing.T) {
	m := NewMemory()

	assert.Equal(t, int64(3), m.Incr("counter", 3))
	assert.Equal(t, int64(5), m.Incr("counter", 2))

	m.HSet("h", "a", "1")
	assert.Equal(t, int64(4), m.HIncr("h", "a", 3))
	v, ok := m.HGet("h", "a")
	require.True(t, ok)
	assert.Equal(t, "4", v)
	assert.Len(t, m.HGetAll("h"), 1)
}

func TestSortedSetOrdering(t *testing.T) {
	m := NewMemory()

	assert.True(t, m.ZAdd("z", 300, "c"))
	assert.True(t, m.ZAdd("z", 100, "a"))
	assert.True(t, m.ZAdd("z", 200, "b"))
	assert.False(t, m.ZAdd("z", 150, "a"), "upsert of existing member")

	got := m.ZRangeByScore("z", 0, 1000, 0)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Member)
	assert.Equal(t, int64(150), got[0].Score)
	assert.Equal(t, "b", got[1].Member)
	assert.Equal(t, "c", got[2].Member)

	got = m.ZRangeByScore("z", 0, 1000, 2)
	assert.Len(t, got, 2)
}

func TestZPopMin(t *testing.T) {
	m := NewMemory()
	m.ZAdd("z", 200, "b")
	m.ZAdd("z", 100, "a")

	first, ok := m.ZPopMin("z")
	require.True(t, ok)
	assert.Equal(t, "a", first.Member)

	second, ok := m.ZPopMin("z")
	require.True(t, ok)
	assert.Equal(t, "b", second.Member)

	_, ok = m.ZPopMin("z")
	assert.False(t, ok)
}

func TestZRemRangeByScore(t *testing.T) {
	m := NewMemory()
	m.ZAdd("z", 100, "a")
	m.ZAdd("z", 200, "b")
	m.ZAdd("z", 300, "c")

	assert.Equal(t, 2, m.ZRemRangeByScore("z", 0, 250))
	assert.Equal(t, 1, m.ZCard("z"))
	score, ok := m.ZScore("z", "c")
	require.True(t, ok)
	assert.Equal(t, int64(300), score)
}
