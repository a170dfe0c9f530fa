package cart

import (
	"context"
	"sync"
	"time"

	"storefront/internal/identity"
	"storefront/internal/session"

	"github.com/rs/zerolog"
)

type entry struct {
	store    *Store
	tokens   *identity.TokenHolder
	lastSeen time.Time
}

// Registry owns one Store per visitor and disposes stores left idle.
type Registry struct {
	sessions session.Backend
	deps     Deps
	idle     time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry creates a registry. deps supplies the shared collaborators;
// identity and storage are built per visitor from sessions.
func NewRegistry(sessions session.Backend, deps Deps, idle time.Duration) *Registry {
	return &Registry{
		sessions: sessions,
		deps:     deps,
		idle:     idle,
		logger:   deps.Logger.With().Str("component", "cart-registry").Logger(),
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
}

// Acquire returns the visitor's store, refreshing its bearer token and
// reconciling a login or logout since the previous request.
func (r *Registry) Acquire(ctx context.Context, visitorID, token string) *Store {
	r.mu.Lock()
	e, ok := r.entries[visitorID]
	if !ok {
		storage := r.sessions.Scope(visitorID)
		tokens := identity.NewTokenHolder(token)
		deps := r.deps
		deps.Storage = storage
		deps.Identity = identity.NewProvider(tokens, storage, r.deps.Logger)
		deps.Logger = r.deps.Logger.With().Str("visitor_id", visitorID).Logger()
		e = &entry{store: NewStore(deps), tokens: tokens}
		r.entries[visitorID] = e
	}
	e.tokens.Set(token)
	e.lastSeen = r.now()
	store := e.store
	r.mu.Unlock()

	store.SetLoggedIn(ctx, store.IsAuthenticated())
	return store
}

// Sweep disposes stores unused for longer than the idle limit and returns
// how many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	var stale []*Store
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.store)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Dispose()
	}
	if len(stale) > 0 {
		r.logger.Debug().Int("disposed", len(stale)).Msg("swept idle cart stores")
	}
	return len(stale)
}

// Len returns the number of live stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Run sweeps on every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
