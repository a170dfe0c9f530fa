package repository

import (
	"context"
	"testing"
	"time"

	"storefront/internal/session"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL testcontainer and returns a connection pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func newTestRepository(t *testing.T, ttl time.Duration) *sessionRepository {
	pool := setupTestDB(t)
	repo := NewSessionRepository(pool, ttl, zerolog.Nop()).(*sessionRepository)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func TestSessionRepository_Storage(t *testing.T) {
	repo := newTestRepository(t, time.Hour)
	ctx := context.Background()
	s := repo.Scope("visitor-1")

	_, ok, err := s.Get(ctx, session.KeyDeliveryType)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, session.KeyDeliveryType, "home"))
	require.NoError(t, s.Set(ctx, session.KeyDeliveryType, "company"))

	v, ok, err := s.Get(ctx, session.KeyDeliveryType)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "company", v)

	// namespaces are isolated
	_, ok, err = repo.Scope("visitor-2").Get(ctx, session.KeyDeliveryType)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Remove(ctx, session.KeyDeliveryType))
	require.NoError(t, s.Remove(ctx, session.KeyDeliveryType))
	_, ok, err = s.Get(ctx, session.KeyDeliveryType)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionRepository_JSON(t *testing.T) {
	repo := newTestRepository(t, 0)
	ctx := context.Background()
	s := repo.Scope("visitor-1")

	type coupon struct {
		Code     string  `json:"code"`
		Discount float64 `json:"discount"`
	}
	require.NoError(t, session.SetJSON(ctx, s, session.KeyAppliedCoupon, coupon{Code: "SAVE10", Discount: 10}))

	var got coupon
	require.NoError(t, session.GetJSON(ctx, s, session.KeyAppliedCoupon, &got))
	assert.Equal(t, "SAVE10", got.Code)

	require.NoError(t, s.Set(ctx, session.KeyAppliedCoupon, "{not json"))
	err := session.GetJSON(ctx, s, session.KeyAppliedCoupon, &got)
	assert.ErrorIs(t, err, session.ErrCorrupt)
}

func TestSessionRepository_Expiry(t *testing.T) {
	repo := newTestRepository(t, 30*time.Minute)
	ctx := context.Background()
	clock := time.Now()
	repo.now = func() time.Time { return clock }

	s := repo.Scope("visitor-1")
	require.NoError(t, s.Set(ctx, session.KeyDeliveryType, "home"))

	clock = clock.Add(20 * time.Minute)
	require.NoError(t, s.Set(ctx, session.KeyDeliveryAddress, "Riyadh"))

	// writing a sibling key slid the expiry of the whole namespace
	clock = clock.Add(20 * time.Minute)
	v, ok, err := s.Get(ctx, session.KeyDeliveryType)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "home", v)

	// reading slid it again
	clock = clock.Add(25 * time.Minute)
	_, ok, err = s.Get(ctx, session.KeyDeliveryAddress)
	require.NoError(t, err)
	assert.True(t, ok)

	clock = clock.Add(time.Hour)
	_, ok, err = s.Get(ctx, session.KeyDeliveryType)
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}
