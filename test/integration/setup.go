package integration

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/backend"
	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/coupon"
	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/payment"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"
	"storefront/internal/transform"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
}

// SetupTestDB starts a PostgreSQL container and opens a pool through
// database.NewPool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	pool, err := database.NewPool(ctx, config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "testuser",
		Password:        "testpass",
		Database:        "testdb",
		MaxConnections:  10,
		MinConnections:  1,
		MaxConnLifetime: 300,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return &TestDB{Container: container, Pool: pool}
}

// TestServer is the BFF wired the way cmd/api wires it, backed by postgres
// session storage and a fake storefront backend.
type TestServer struct {
	Server   *httptest.Server
	Backend  *FakeBackend
	Registry *cart.Registry
}

// SetupTestServer starts the BFF over the given database.
func SetupTestServer(t *testing.T, db *TestDB) *TestServer {
	t.Helper()
	logger := zerolog.Nop()

	sessions := repository.NewSessionRepository(db.Pool, time.Hour, logger)
	if err := sessions.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("failed to create session schema: %v", err)
	}

	fake := NewFakeBackend(t)
	api := backend.NewClient(
		config.BackendConfig{BaseURL: fake.Server.URL, TimeoutSeconds: 5},
		config.BreakerConfig{MaxFailures: 5, OpenTimeoutSeconds: 30},
		logger,
	)
	transformer := transform.New("https://cdn.example.com", logger)

	registry := cart.NewRegistry(sessions, cart.Deps{
		API:         api,
		Coupons:     coupon.NewValidator(api, logger),
		Transformer: transformer,
		Logger:      logger,
	}, time.Millisecond) // stores are only swept when a test calls Sweep

	productService := service.NewProductService(api, transformer, logger)
	stores := handler.RegistrySource(registry)
	mux := router.New(router.Handlers{
		Cart:    handler.NewCartHandler(stores, productService, logger),
		Order:   handler.NewOrderHandler(stores, service.NewOrderService(api, logger), logger),
		Product: handler.NewProductHandler(productService, logger),
		Payment: handler.NewPaymentHandler(stores, payment.NewClient(config.PaymentConfig{
			BaseURL:  fake.Server.URL,
			Currency: "SAR",
		}, 5*time.Second, logger), logger),
	}, config.CookieConfig{Visitor: "sf_visitor", Token: "token", Locale: "NEXT_LOCALE"}, logger)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &TestServer{Server: server, Backend: fake, Registry: registry}
}

// CountSessionEntries counts stored entries of a visitor, optionally
// restricted to one key.
func CountSessionEntries(t *testing.T, pool *pgxpool.Pool, namespace, key string) int {
	t.Helper()

	query := `SELECT COUNT(*) FROM session_entries WHERE namespace = $1 AND ($2 = '' OR key = $2)`
	var n int
	if err := pool.QueryRow(context.Background(), query, namespace, key).Scan(&n); err != nil {
		t.Fatalf("failed to count session entries: %v", err)
	}
	return n
}
