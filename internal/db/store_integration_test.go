//go:build integration

package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/glaciersoft/snowgate/internal/models"
	wire "github.com/glaciersoft/snowgate/pkg/models"
)

var testDB *DB

func TestMain(m *testing.M) {
	if !dockerAvailable() {
		fmt.Println("Docker is not available, skipping integration tests")
		os.Exit(0)
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("snowgate_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to get connection string: %v", err)
	}

	logger := zerolog.New(zerolog.NewConsoleWriter())
	cfg := DefaultConfig(connStr)
	cfg.MaxConns = 10
	cfg.MinConns = 1

	testDB, err = New(ctx, cfg, logger)
	if err != nil {
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := testDB.Migrate(ctx); err != nil {
		testDB.Close()
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to run migrations: %v", err)
	}

	code := m.Run()

	testDB.Close()
	pgContainer.Terminate(ctx)

	os.Exit(code)
}

// dockerAvailable returns true if a Docker daemon is reachable.
func dockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

// setupTestDB returns the shared test database after cleaning all tables.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	cleanTables(t, testDB)
	return testDB
}

// cleanTables truncates all user tables between tests for isolation.
func cleanTables(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	_, err := db.Pool.Exec(ctx, `
		DO $$ DECLARE r RECORD;
		BEGIN
			FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename != 'schema_migrations') LOOP
				EXECUTE 'TRUNCATE TABLE ' || quote_ident(r.tablename) || ' CASCADE';
			END LOOP;
		END $$;
	`)
	require.NoError(t, err)
}

// createTestCustomer creates and persists a customer with the given seat totals.
func createTestCustomer(t *testing.T, db *DB, org string, devSeats, stakeSeats int) *models.Customer {
	t.Helper()
	customer := models.NewCustomer(org, org+" Inc", "enterprise", devSeats, stakeSeats,
		time.Now().Add(365*24*time.Hour))
	require.NoError(t, db.CreateCustomer(context.Background(), customer))
	return customer
}

func openReq(customer *models.Customer, userHash string, role wire.Role) *wire.OpenSessionRequest {
	return &wire.OpenSessionRequest{
		Customer: customer.Org,
		UserHash: userHash,
		Role:     role,
		Peer:     "10.0.0.1",
		Client:   "snowgate-test/1.0",
	}
}

func TestCustomerCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	customer := createTestCustomer(t, db, "acme", 5, 20)

	byOrg, err := db.GetCustomerByOrg(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, customer.ID, byOrg.ID)
	assert.Equal(t, 5, byOrg.DeveloperSeats)
	assert.Equal(t, 20, byOrg.StakeholderSeats)

	byID, err := db.GetCustomerByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", byID.Org)

	require.NoError(t, db.UpdateCustomerSeats(ctx, customer.ID, 10, 40))
	updated, err := db.GetCustomerByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.DeveloperSeats)

	_, err = db.GetCustomerByOrg(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.UpdateCustomerSeats(ctx, uuid.New(), 1, 1), ErrNotFound)
}

func TestAdmitConnectionWithinBudget(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	customer := createTestCustomer(t, db, "acme", 2, 1)

	first, err := db.AdmitConnection(ctx, customer, openReq(customer, "user-1", wire.RoleDeveloper))
	require.NoError(t, err)
	assert.True(t, first.Admitted)
	assert.False(t, first.Reconnect)
	assert.Equal(t, 1, first.ActiveCount)

	second, err := db.AdmitConnection(ctx, customer, openReq(customer, "user-2", wire.RoleDeveloper))
	require.NoError(t, err)
	assert.True(t, second.Admitted)
	assert.Equal(t, 2, second.ActiveCount)

	third, err := db.AdmitConnection(ctx, customer, openReq(customer, "user-3", wire.RoleDeveloper))
	require.NoError(t, err)
	assert.False(t, third.Admitted)
	assert.Equal(t, RejectionSeatsExhausted, third.Reason)
	assert.Equal(t, 2, third.SeatLimit)
	assert.Equal(t, 2, third.ActiveCount)

	// Stakeholder budget is independent of the developer budget.
	stake, err := db.AdmitConnection(ctx, customer, openReq(customer, "user-3", wire.RoleStakeholder))
	require.NoError(t, err)
	assert.True(t, stake.Admitted)
}

func TestAdmitConnectionReconnect(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	customer := createTestCustomer(t, db, "acme", 1, 1)

	first, err := db.AdmitConnection(ctx, customer, openReq(customer, "user-1", wire.RoleDeveloper))
	require.NoError(t, err)
	require.True(t, first.Admitted)

	// Same identity again: admitted as a reconnect without consuming a
	// second seat, under a new connection id.
	again, err := db.AdmitConnection(ctx, customer, openReq(customer, "user-1", wire.RoleDeveloper))
	require.NoError(t, err)
	assert.True(t, again.Admitted)
	assert.True(t, again.Reconnect)
	assert.NotEqual(t, first.ConnectionID, again.ConnectionID)
	assert.Equal(t, 1, again.ActiveCount)

	count, err := db.CountActiveConnections(ctx, customer.ID, wire.RoleDeveloper)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The old connection id was replaced, not kept alongside.
	_, err = db.GetConnectionByID(ctx, first.ConnectionID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdmitConnectionUnlimited(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	customer := createTestCustomer(t, db, "acme", wire.UnlimitedSeats, wire.UnlimitedSeats)

	for i := 0; i < 25; i++ {
		decision, err := db.AdmitConnection(ctx, customer, openReq(customer, fmt.Sprintf("user-%d", i), wire.RoleDeveloper))
		require.NoError(t, err)
		assert.True(t, decision.Admitted)
	}
}

func TestAdmitConnectionLastSeatRace(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	customer := createTestCustomer(t, db, "acme", 1, 1)

	const contenders = 8
	var wg sync.WaitGroup
	decisions := make([]*models.AdmissionDecision, contenders)
	errs := make([]error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := openReq(customer, fmt.Sprintf("user-%d", i), wire.RoleDeveloper)
			decisions[i], errs[i] = db.AdmitConnection(ctx, customer, req)
		}(i)
	}
	wg.Wait()

	admitted := 0
	for i := 0; i < contenders; i++ {
		require.NoError(t, errs[i])
		if decisions[i].Admitted {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted, "exactly one contender may win the last seat")

	count, err := db.CountActiveConnections(ctx, customer.ID, wire.RoleDeveloper)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTouchAndReleaseConnection(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	customer := createTestCustomer(t, db, "acme", 5, 5)

	decision, err := db.AdmitConnection(ctx, customer, openReq(customer, "user-1", wire.RoleDeveloper))
	require.NoError(t, err)

	later := time.Now().Add(time.Minute)
	conn, err := db.TouchConnection(ctx, decision.ConnectionID, later)
	require.NoError(t, err)
	assert.WithinDuration(t, later, conn.LastHeartbeat, time.Second)

	released, err := db.ReleaseConnection(ctx, decision.ConnectionID)
	require.NoError(t, err)
	require.NotNil(t, released)
	assert.Equal(t, "user-1", released.UserHash)

	// Idempotent: releasing again is a no-op, and heartbeats now miss.
	released, err = db.ReleaseConnection(ctx, decision.ConnectionID)
	require.NoError(t, err)
	assert.Nil(t, released)

	_, err = db.TouchConnection(ctx, decision.ConnectionID, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStaleConnectionSweepQueries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	customer := createTestCustomer(t, db, "acme", 5, 5)

	stale, err := db.AdmitConnection(ctx, customer, openReq(customer, "stale-user", wire.RoleDeveloper))
	require.NoError(t, err)
	fresh, err := db.AdmitConnection(ctx, customer, openReq(customer, "fresh-user", wire.RoleDeveloper))
	require.NoError(t, err)

	// Age the first connection past the cutoff.
	_, err = db.Pool.Exec(ctx,
		`UPDATE active_connections SET last_heartbeat = NOW() - INTERVAL '5 minutes' WHERE id = $1`,
		stale.ConnectionID)
	require.NoError(t, err)

	cutoff := time.Now().Add(-75 * time.Second)
	listed, err := db.ListStaleConnections(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, stale.ConnectionID, listed[0].ID)

	removed, err := db.DeleteStaleConnection(ctx, stale.ConnectionID, cutoff)
	require.NoError(t, err)
	assert.True(t, removed)

	// A fresh connection must survive a delete attempt with the same cutoff.
	removed, err = db.DeleteStaleConnection(ctx, fresh.ConnectionID, cutoff)
	require.NoError(t, err)
	assert.False(t, removed)

	count, err := db.CountActiveConnections(ctx, customer.ID, wire.RoleDeveloper)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConnectionEventsAudit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	customer := createTestCustomer(t, db, "acme", 1, 1)

	admitted, err := db.AdmitConnection(ctx, customer, openReq(customer, "user-1", wire.RoleDeveloper))
	require.NoError(t, err)
	require.True(t, admitted.Admitted)

	rejected, err := db.AdmitConnection(ctx, customer, openReq(customer, "user-2", wire.RoleDeveloper))
	require.NoError(t, err)
	require.False(t, rejected.Admitted)

	events, err := db.ListConnectionEvents(ctx, EventFilter{CustomerID: customer.ID})
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first: the rejection, then the admission.
	assert.Equal(t, models.EventRejected, events[0].Type)
	assert.Equal(t, 1, events[0].SeatLimit)
	assert.Equal(t, 1, events[0].ActiveCount)
	assert.Nil(t, events[0].ConnectionID)

	assert.Equal(t, models.EventConnect, events[1].Type)
	require.NotNil(t, events[1].ConnectionID)
	assert.Equal(t, admitted.ConnectionID, *events[1].ConnectionID)

	onlyRejected, err := db.ListConnectionEvents(ctx, EventFilter{
		CustomerID: customer.ID,
		Type:       models.EventRejected,
	})
	require.NoError(t, err)
	require.Len(t, onlyRejected, 1)

	n, err := db.CountRejections(ctx, customer.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
