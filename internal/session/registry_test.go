package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/umd/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T, opts Options) (*Registry, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry(opts)
	r.now = clock.Now
	t.Cleanup(r.Close)
	return r, clock
}

func TestOpenSeedsFreshSession(t *testing.T) {
	r, _ := newTestRegistry(t, Options{IdleTTL: time.Hour})

	ws, created := r.Open("")
	require.True(t, created)
	assert.NotEmpty(t, ws.ID)
	assert.Equal(t, domain.SeedUsers(), ws.Users.List())
	assert.Equal(t, "John Doe", ws.Settings.Get().Profile.Name)

	again, created := r.Open(ws.ID)
	assert.False(t, created)
	assert.Same(t, ws, again)
	assert.Equal(t, 1, r.Len())
}

func TestSessionsAreIsolated(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	a, _ := r.Open("")
	b, _ := r.Open("")

	a.Users.DeleteUser(1)
	assert.Equal(t, 4, a.Users.Len())
	assert.Equal(t, 5, b.Users.Len())
}

func TestExpiredSessionRestartsFromSeed(t *testing.T) {
	var evicted []string
	r, clock := newTestRegistry(t, Options{IdleTTL: time.Minute, OnEvict: func(id string) { evicted = append(evicted, id) }})

	ws, _ := r.Open("")
	ws.Users.DeleteUser(1)
	clock.Advance(2 * time.Minute)

	_, ok := r.Lookup(ws.ID)
	assert.False(t, ok)

	fresh, created := r.Open(ws.ID)
	require.True(t, created)
	assert.NotEqual(t, ws.ID, fresh.ID)
	assert.Equal(t, 5, fresh.Users.Len())
	assert.Equal(t, []string{ws.ID}, evicted)
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	r, clock := newTestRegistry(t, Options{IdleTTL: time.Minute})
	idle, _ := r.Open("")
	clock.Advance(30 * time.Second)
	active, _ := r.Open("")
	clock.Advance(45 * time.Second)

	assert.Equal(t, 1, r.sweep(clock.Now()))
	_, ok := r.Lookup(idle.ID)
	assert.False(t, ok)
	_, ok = r.Lookup(active.ID)
	assert.True(t, ok)
}

func TestMaxSessionsEvictsOldest(t *testing.T) {
	r, clock := newTestRegistry(t, Options{MaxSessions: 2})
	first, _ := r.Open("")
	clock.Advance(time.Second)
	second, _ := r.Open("")
	clock.Advance(time.Second)
	r.Open(first.ID)
	clock.Advance(time.Second)
	third, _ := r.Open("")

	assert.Equal(t, 2, r.Len())
	_, ok := r.Lookup(second.ID)
	assert.False(t, ok, "least recently used session is evicted")
	_, ok = r.Lookup(first.ID)
	assert.True(t, ok)
	_, ok = r.Lookup(third.ID)
	assert.True(t, ok)
}

func TestEnd(t *testing.T) {
	var evicted []string
	r, _ := newTestRegistry(t, Options{OnEvict: func(id string) { evicted = append(evicted, id) }})
	ws, _ := r.Open("")
	r.End(ws.ID)
	r.End("unknown")

	assert.Zero(t, r.Len())
	assert.Equal(t, []string{ws.ID}, evicted)
}
