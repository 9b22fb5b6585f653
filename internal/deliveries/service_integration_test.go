package deliveries_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heraldbot/herald/internal/deliveries"
	"github.com/heraldbot/herald/internal/users"
)

func setupIntegrationTest(t *testing.T) (*deliveries.Service, *users.Service, func()) {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("skip integration test: TEST_POSTGRES_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("skip integration test: cannot connect to database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skip integration test: database ping failed: %v", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return deliveries.NewService(log, pool), users.NewService(log, pool), func() { pool.Close() }
}

func createTestUser(t *testing.T, svc *users.Service) users.User {
	t.Helper()
	user, err := svc.GetOrCreate(context.Background(), time.Now().UnixNano(), "delivery-test")
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func TestIntegrationRecordOncePerPair(t *testing.T) {
	deliverySvc, userSvc, cleanup := setupIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, userSvc)

	first, err := deliverySvc.Record(ctx, user.ID, "prompt-1-name", "trigger phrase", "the message")
	if err != nil {
		t.Fatalf("first Record failed: %v", err)
	}
	if first.PromptName != "prompt-1-name" || first.Trigger != "trigger phrase" || first.Message != "the message" {
		t.Errorf("unexpected record: %+v", first)
	}

	_, err = deliverySvc.Record(ctx, user.ID, "prompt-1-name", "trigger phrase", "the message")
	if !errors.Is(err, deliveries.ErrAlreadyDelivered) {
		t.Fatalf("expected ErrAlreadyDelivered, got %v", err)
	}

	records, err := deliverySvc.ListFor(ctx, user.ID, "prompt-1-name")
	if err != nil {
		t.Fatalf("ListFor failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected exactly one record, got %d", len(records))
	}

	delivered, err := deliverySvc.Delivered(ctx, user.ID, "prompt-1-name")
	if err != nil {
		t.Fatalf("Delivered failed: %v", err)
	}
	if !delivered {
		t.Error("Delivered = false, want true")
	}
}

func TestIntegrationRecordConcurrentSamePair(t *testing.T) {
	deliverySvc, userSvc, cleanup := setupIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, userSvc)

	const workers = 8
	var wg sync.WaitGroup
	var successes, suppressed int64
	var mu sync.Mutex
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := deliverySvc.Record(ctx, user.ID, "race-prompt", "phrase", "message")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, deliveries.ErrAlreadyDelivered):
				suppressed++
			default:
				t.Errorf("unexpected Record error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if suppressed != workers-1 {
		t.Errorf("suppressed = %d, want %d", suppressed, workers-1)
	}
}

func TestIntegrationDistinctPromptsAndUsers(t *testing.T) {
	deliverySvc, userSvc, cleanup := setupIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	alice := createTestUser(t, userSvc)
	bob := createTestUser(t, userSvc)

	if _, err := deliverySvc.Record(ctx, alice.ID, "prompt-a", "p", "m"); err != nil {
		t.Fatalf("alice prompt-a: %v", err)
	}
	if _, err := deliverySvc.Record(ctx, alice.ID, "prompt-b", "p", "m"); err != nil {
		t.Fatalf("alice prompt-b: %v", err)
	}
	if _, err := deliverySvc.Record(ctx, bob.ID, "prompt-a", "p", "m"); err != nil {
		t.Fatalf("bob prompt-a: %v", err)
	}

	delivered, err := deliverySvc.Delivered(ctx, bob.ID, "prompt-b")
	if err != nil {
		t.Fatalf("Delivered: %v", err)
	}
	if delivered {
		t.Error("bob should not have prompt-b; one user's state leaked into another's")
	}
}
