package cart

import (
	"context"
	"testing"
	"time"

	"storefront/internal/session"
	"storefront/internal/transform"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(api *fakeBackend) *Registry {
	logger := zerolog.Nop()
	return NewRegistry(session.NewMemoryBackend(), Deps{
		API:         api,
		Coupons:     new(MockValidator),
		Transformer: transform.New("", logger),
		Logger:      logger,
	}, 10*time.Minute)
}

func TestRegistry_Acquire(t *testing.T) {
	api := newFakeBackend()
	r := newTestRegistry(api)
	ctx := context.Background()

	first := r.Acquire(ctx, "visitor-1", "")
	again := r.Acquire(ctx, "visitor-1", "")
	other := r.Acquire(ctx, "visitor-2", "")

	assert.Same(t, first, again)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_Acquire_IsolatesVisitors(t *testing.T) {
	api := newFakeBackend()
	r := newTestRegistry(api)
	ctx := context.Background()

	a := r.Acquire(ctx, "visitor-a", "")
	b := r.Acquire(ctx, "visitor-b", "")
	require.NoError(t, a.AddToCart(ctx, AddItemInput{ProductID: "prod-2", Price: 50, Quantity: 1}))
	b.InitializeCart(ctx)

	assert.Len(t, a.Snapshot().Items, 1)
	assert.Empty(t, b.Snapshot().Items)
}

func TestRegistry_Acquire_TracksLogin(t *testing.T) {
	api := newFakeBackend()
	r := newTestRegistry(api)
	ctx := context.Background()

	store := r.Acquire(ctx, "visitor-1", "")
	assert.False(t, store.Snapshot().IsLoggedIn)

	store = r.Acquire(ctx, "visitor-1", "tok")
	assert.True(t, store.Snapshot().IsLoggedIn)
	assert.True(t, store.IsAuthenticated())

	store = r.Acquire(ctx, "visitor-1", "")
	assert.False(t, store.Snapshot().IsLoggedIn)
}

func TestRegistry_Sweep(t *testing.T) {
	api := newFakeBackend()
	r := newTestRegistry(api)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	stale := r.Acquire(ctx, "stale", "")
	now = now.Add(8 * time.Minute)
	r.Acquire(ctx, "fresh", "")
	now = now.Add(5 * time.Minute)

	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())
	assert.ErrorIs(t, stale.ClearCart(ctx), ErrDisposed)

	replacement := r.Acquire(ctx, "stale", "")
	assert.NotSame(t, stale, replacement)
}

func TestRegistry_LoginAfterSweepMerges(t *testing.T) {
	api := newFakeBackend()
	r := newTestRegistry(api)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	anon := r.Acquire(ctx, "visitor-1", "")
	require.NoError(t, anon.AddToCart(ctx, AddItemInput{ProductID: "prod-2", Price: 50, Quantity: 1}))
	now = now.Add(time.Hour)
	require.Equal(t, 1, r.Sweep())

	store := r.Acquire(ctx, "visitor-1", "tok")
	store.InitializeCart(ctx)

	snap := store.Snapshot()
	assert.True(t, snap.IsLoggedIn)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "prod-2", snap.Items[0].ProductID)

	gets := api.callsFor("get")
	merge := gets[len(gets)-1]
	assert.Equal(t, "tok", merge.creds.Token)
	assert.NotEmpty(t, merge.creds.SessionID)
}

func TestRegistry_Run_StopsOnCancel(t *testing.T) {
	r := newTestRegistry(newFakeBackend())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
