package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func TestEntryFresh(t *testing.T) {
	fetched := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	e := Entry[int]{Value: 1, FetchedAt: fetched, TTL: 300 * time.Second}

	assert.True(t, e.Fresh(fetched))
	assert.True(t, e.Fresh(fetched.Add(299*time.Second)))
	assert.False(t, e.Fresh(fetched.Add(300*time.Second)))
	assert.Equal(t, fetched.Add(5*time.Minute), e.ExpiresAt())
}

func TestLRUCacheExpiry(t *testing.T) {
	clock := newClock()
	c := NewLRUCache[string](4, 5*time.Minute, WithClock(clock.Now))

	c.Set("https://example.com/a.xlsx", "wb")
	e, ok := c.Lookup("https://example.com/a.xlsx")
	require.True(t, ok)
	assert.Equal(t, clock.Now(), e.FetchedAt)
	assert.Equal(t, 5*time.Minute, e.TTL)

	clock.Advance(4 * time.Minute)
	v, ok := c.Get("https://example.com/a.xlsx")
	assert.True(t, ok)
	assert.Equal(t, "wb", v)

	clock.Advance(time.Minute)
	_, ok = c.Get("https://example.com/a.xlsx")
	assert.False(t, ok)
	assert.Zero(t, c.Size(), "stale entry is dropped on access")
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used key is evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCacheDeleteAndPurge(t *testing.T) {
	c := NewLRUCache[int](4, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	assert.Equal(t, 1, c.Size())
	c.Purge()
	assert.Zero(t, c.Size())
}

func TestManagerCleanNow(t *testing.T) {
	clock := newClock()
	c := NewLRUCache[int](8, time.Minute, WithClock(clock.Now))
	c.Set("a", 1)
	c.Set("b", 2)
	clock.Advance(30 * time.Second)
	c.Set("c", 3)
	clock.Advance(45 * time.Second)

	m := NewManager(nil)
	m.Register(c)
	assert.Equal(t, 2, m.CleanNow())
	assert.Equal(t, 1, c.Size())

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
