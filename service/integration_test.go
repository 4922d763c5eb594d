package service

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"

	"github.com/parleyhq/parley/postgres"
	"github.com/parleyhq/parley/postgres/migrator"
	"github.com/parleyhq/parley/types"
)

var (
	testDB       *pgxpool.Pool
	testPostgres *postgres.Postgres
)

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	var skipIntegration bool
	flag.BoolVar(&skipIntegration, "skip-integration", false, "Skip integration tests docker setup")
	flag.Parse()

	if skipIntegration || testing.Short() {
		return m.Run()
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		fmt.Printf("could not create docker pool: %v\n", err)
		return 1
	}

	var cleanup func() error
	testDB, cleanup, err = setupTestDB(pool)
	if err != nil {
		fmt.Printf("could not setup test db: %v\n", err)
		return 1
	}
	testPostgres = postgres.New(testDB)

	if err := migrator.Migrate(context.Background(), testDB, postgres.MigrationsFS); err != nil {
		fmt.Printf("could not migrate schema: %v\n", err)
		return 1
	}

	defer func() {
		if err := cleanup(); err != nil {
			fmt.Printf("could not cleanup postgres container: %v\n", err)
		}
	}()

	return m.Run()
}

func setupTestDB(pool *dockertest.Pool) (*pgxpool.Pool, func() error, error) {
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_DB=parley",
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create postgres resource: %w", err)
	}

	var db *pgxpool.Pool
	err = pool.Retry(func() (err error) {
		hostPort := resource.GetHostPort("5432/tcp")
		db, err = pgxpool.New(context.Background(), "postgresql://postgres:postgres@"+hostPort+"/parley?sslmode=disable")
		if err != nil {
			return fmt.Errorf("could not open db: %w", err)
		}

		// do not close db

		if err = db.Ping(context.Background()); err != nil {
			return fmt.Errorf("could not ping db: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return db, func() error {
		return pool.Purge(resource)
	}, nil
}

// testBroadcaster records everything the service pushes out.
type testBroadcaster struct {
	mu    sync.Mutex
	rooms []roomBroadcast
	users []userBroadcast
}

type roomBroadcast struct {
	Room  string
	Event types.Event
}

type userBroadcast struct {
	UserID string
	Event  types.Event
}

func (b *testBroadcaster) ToRoom(room string, ev types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms = append(b.rooms, roomBroadcast{Room: room, Event: ev})
}

func (b *testBroadcaster) ToUser(userID string, ev types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = append(b.users, userBroadcast{UserID: userID, Event: ev})
}

func (b *testBroadcaster) userEvents(userID string) []types.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []types.Event
	for _, u := range b.users {
		if u.UserID == userID {
			out = append(out, u.Event)
		}
	}
	return out
}

func testService(t *testing.T) (*Service, *testBroadcaster) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}

	broadcaster := &testBroadcaster{}
	svc := New(&Config{
		Postgres:          testPostgres,
		Broadcaster:       broadcaster,
		BaseCtx:           context.Background(),
		BackgroundTimeout: 10 * time.Second,
	})
	t.Cleanup(func() {
		_ = svc.Close()
		for err := range svc.Errs() {
			t.Errorf("service background error: %v", err)
		}
	})

	return svc, broadcaster
}
