package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vantari/taskweave/internal/dedupe"
	"github.com/vantari/taskweave/internal/history"
	"github.com/vantari/taskweave/internal/task"
)

// Package-level shared state — set by TestMain, used by all subtests.
var (
	testLogger   *zap.Logger
	testStore    *history.Store
	testRedisURL string
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	testLogger, _ = zap.NewDevelopment()

	pgDSN, pgCleanup, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres: %v\n", err)
		os.Exit(1)
	}
	defer pgCleanup()

	testStore, err = history.New(pgDSN, testLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "history store: %v\n", err)
		os.Exit(1)
	}
	defer testStore.Close()

	if err := testStore.Migrate(ctx, "../../migrations"); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	redisURL, redisCleanup, err := startRedis(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer redisCleanup()
	testRedisURL = redisURL

	os.Exit(m.Run())
}

func TestThreadLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("FindOrCreateIsIdempotent", func(t *testing.T) {
		first, err := testStore.FindOrCreateThread(ctx, "slack", "C100", "1700000000.000100")
		if err != nil {
			t.Fatalf("create thread: %v", err)
		}
		second, err := testStore.FindOrCreateThread(ctx, "slack", "C100", "1700000000.000100")
		if err != nil {
			t.Fatalf("find thread: %v", err)
		}
		if first != second {
			t.Errorf("same thread key resolved to %s and %s", first, second)
		}

		other, err := testStore.FindOrCreateThread(ctx, "discord", "C100", "1700000000.000100")
		if err != nil {
			t.Fatalf("create thread on other platform: %v", err)
		}
		if other == first {
			t.Error("threads on different platforms should not collide")
		}
	})

	t.Run("MessagesComeBackInOrder", func(t *testing.T) {
		threadID, err := testStore.FindOrCreateThread(ctx, "rest", "C200", "t-order")
		if err != nil {
			t.Fatalf("create thread: %v", err)
		}
		for i := 1; i <= 5; i++ {
			err := testStore.AppendMessage(ctx, threadID, task.ContextMessage{
				Role:   "user",
				Author: "tester",
				Text:   fmt.Sprintf("message %d", i),
			})
			if err != nil {
				t.Fatalf("append message %d: %v", i, err)
			}
		}

		msgs, err := testStore.RecentMessages(ctx, threadID, 10)
		if err != nil {
			t.Fatalf("recent messages: %v", err)
		}
		if len(msgs) != 5 {
			t.Fatalf("got %d messages, want 5", len(msgs))
		}
		if msgs[0].Text != "message 1" || msgs[4].Text != "message 5" {
			t.Errorf("messages out of order: first=%q last=%q", msgs[0].Text, msgs[4].Text)
		}
	})

	t.Run("LimitKeepsLatest", func(t *testing.T) {
		threadID, err := testStore.FindOrCreateThread(ctx, "rest", "C200", "t-limit")
		if err != nil {
			t.Fatalf("create thread: %v", err)
		}
		for i := 1; i <= 8; i++ {
			err := testStore.AppendMessage(ctx, threadID, task.ContextMessage{
				Role: "user", Author: "tester", Text: fmt.Sprintf("m%d", i),
			})
			if err != nil {
				t.Fatalf("append: %v", err)
			}
		}

		msgs, err := testStore.RecentMessages(ctx, threadID, 3)
		if err != nil {
			t.Fatalf("recent messages: %v", err)
		}
		if len(msgs) != 3 {
			t.Fatalf("got %d messages, want 3", len(msgs))
		}
		if msgs[0].Text != "m6" || msgs[2].Text != "m8" {
			t.Errorf("window wrong: first=%q last=%q", msgs[0].Text, msgs[2].Text)
		}
	})
}

func TestEventDeduplication(t *testing.T) {
	ctx := context.Background()

	d, err := dedupe.New(testRedisURL, time.Minute, testLogger)
	if err != nil {
		t.Fatalf("create deduper: %v", err)
	}
	defer d.Close()

	key := "slack:C1:1700000000.000200"
	first, err := d.Claim(ctx, key)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !first {
		t.Fatal("first claim should win")
	}

	second, err := d.Claim(ctx, key)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second {
		t.Error("second claim for the same event should be rejected")
	}

	other, err := d.Claim(ctx, "slack:C1:1700000000.000300")
	if err != nil {
		t.Fatalf("other claim: %v", err)
	}
	if !other {
		t.Error("a different event should claim successfully")
	}
}
