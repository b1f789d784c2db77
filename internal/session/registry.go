package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/splax/umd/internal/domain"
	"github.com/splax/umd/internal/notify"
	"github.com/splax/umd/internal/repository/memory"
)

const sweepInterval = time.Minute

// Workspace is the in-memory state owned by one browser session.
type Workspace struct {
	ID        string
	Users     *memory.UserStore
	Settings  *memory.SettingsStore
	Toasts    *notify.Outbox
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

// LastSeen reports when the session was last used.
func (w *Workspace) LastSeen() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// Options tunes a Registry.
type Options struct {
	IdleTTL     time.Duration
	MaxSessions int
	OutboxSize  int
	// OnEvict is called outside the registry lock for every ended session.
	OnEvict func(id string)
}

// Registry owns every live workspace keyed by session id.
type Registry struct {
	mu         sync.Mutex
	workspaces map[string]*Workspace
	opts       Options
	now        func() time.Time
	stopCh     chan struct{}
	once       sync.Once
}

// NewRegistry creates a registry and starts its idle sweep loop.
func NewRegistry(opts Options) *Registry {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = time.Hour
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = 20
	}
	r := &Registry{
		workspaces: make(map[string]*Workspace),
		opts:       opts,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// Open returns the live workspace for id, or starts a new seeded session
// when id is empty, unknown or expired. created reports the latter.
func (r *Registry) Open(id string) (ws *Workspace, created bool) {
	now := r.now()
	var evicted []string
	r.mu.Lock()
	if existing, ok := r.workspaces[id]; ok && id != "" {
		if now.Sub(existing.LastSeen()) <= r.opts.IdleTTL {
			existing.touch(now)
			r.mu.Unlock()
			return existing, false
		}
		delete(r.workspaces, id)
		evicted = append(evicted, id)
	}
	if r.opts.MaxSessions > 0 {
		for len(r.workspaces) >= r.opts.MaxSessions {
			evicted = append(evicted, r.evictOldestLocked())
		}
	}
	ws = newWorkspace(uuid.NewString(), now, r.opts.OutboxSize)
	r.workspaces[ws.ID] = ws
	r.mu.Unlock()

	r.notifyEvicted(evicted)
	return ws, true
}

// Lookup returns a live workspace without creating one.
func (r *Registry) Lookup(id string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[id]
	if !ok || r.now().Sub(ws.LastSeen()) > r.opts.IdleTTL {
		return nil, false
	}
	return ws, true
}

// End discards the workspace for id. Unknown ids are ignored.
func (r *Registry) End(id string) {
	r.mu.Lock()
	_, ok := r.workspaces[id]
	delete(r.workspaces, id)
	r.mu.Unlock()
	if ok {
		r.notifyEvicted([]string{id})
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Close stops the sweep loop.
func (r *Registry) Close() {
	r.once.Do(func() {
		close(r.stopCh)
	})
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweep(r.now())
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) sweep(now time.Time) int {
	var evicted []string
	r.mu.Lock()
	for id, ws := range r.workspaces {
		if now.Sub(ws.LastSeen()) > r.opts.IdleTTL {
			delete(r.workspaces, id)
			evicted = append(evicted, id)
		}
	}
	r.mu.Unlock()
	r.notifyEvicted(evicted)
	return len(evicted)
}

func (r *Registry) evictOldestLocked() string {
	var oldestID string
	var oldest time.Time
	for id, ws := range r.workspaces {
		seen := ws.LastSeen()
		if oldestID == "" || seen.Before(oldest) {
			oldestID, oldest = id, seen
		}
	}
	delete(r.workspaces, oldestID)
	return oldestID
}

func (r *Registry) notifyEvicted(ids []string) {
	if r.opts.OnEvict == nil {
		return
	}
	for _, id := range ids {
		r.opts.OnEvict(id)
	}
}

func newWorkspace(id string, now time.Time, outboxSize int) *Workspace {
	return &Workspace{
		ID:        id,
		Users:     memory.NewUserStore(domain.SeedUsers()),
		Settings:  memory.NewSettingsStore(domain.DefaultSettings()),
		Toasts:    notify.NewOutbox(outboxSize),
		CreatedAt: now,
		lastSeen:  now,
	}
}
