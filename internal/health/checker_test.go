package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/tokenstore"
	storegomock "github.com/sandeepkv93/auth-token-lifecycle/internal/tokenstore/gomock"
	"go.uber.org/mock/gomock"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type mockChecker struct {
	result CheckResult
}

func (m mockChecker) Check(context.Context) CheckResult {
	return m.result
}

func TestProbeRunnerReady(t *testing.T) {
	runner := NewProbeRunner(200*time.Millisecond, 0,
		mockChecker{result: CheckResult{Name: "db", Healthy: true}},
		mockChecker{result: CheckResult{Name: "redis", Healthy: true}},
	)
	ready, results := runner.Ready(context.Background())
	if !ready {
		t.Fatal("expected ready")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestProbeRunnerUnready(t *testing.T) {
	runner := NewProbeRunner(200*time.Millisecond, 0,
		mockChecker{result: CheckResult{Name: "db", Healthy: true}},
		mockChecker{result: CheckResult{Name: "redis", Healthy: false, Error: errors.New("down").Error()}},
	)
	ready, results := runner.Ready(context.Background())
	if ready {
		t.Fatal("expected unready")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestProbeRunnerStartupGrace(t *testing.T) {
	runner := NewProbeRunner(200*time.Millisecond, 2*time.Second,
		mockChecker{result: CheckResult{Name: "db", Healthy: true}},
	)
	ready, results := runner.Ready(context.Background())
	if ready {
		t.Fatal("expected unready during grace period")
	}
	if len(results) != 1 || results[0].Name != "startup_grace" {
		t.Fatalf("unexpected grace results: %+v", results)
	}

	runner.now = func() time.Time { return runner.startedAt.Add(3 * time.Second) }
	if ready, _ := runner.Ready(context.Background()); !ready {
		t.Fatal("expected ready once the grace period has passed")
	}
}

func TestProbeRunnerSkipsNilCheckers(t *testing.T) {
	runner := NewProbeRunner(0, 0, NewDBChecker(nil), NewRedisChecker(nil), NewMongoChecker(nil), NewTokenStoreChecker(nil))
	ready, results := runner.Ready(context.Background())
	if !ready || len(results) != 0 {
		t.Fatalf("expected no checks, got ready=%v results=%+v", ready, results)
	}
}

func TestDependencyCheckers(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:health_checker?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	runner := NewProbeRunner(time.Second, 0,
		NewDBChecker(db),
		NewRedisChecker(client),
		NewTokenStoreChecker(tokenstore.NewMemoryStore()),
	)
	ready, results := runner.Ready(context.Background())
	if !ready {
		t.Fatalf("expected ready, got %+v", results)
	}

	mr.Close()
	if res := NewRedisChecker(client).Check(context.Background()); res.Healthy || res.Error == "" {
		t.Fatalf("expected redis check to fail after shutdown, got %+v", res)
	}
}

func TestTokenStoreCheckerReportsUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := storegomock.NewMockStore(ctrl)
	store.EXPECT().Exists(gomock.Any(), probeToken).Return(false, tokenstore.ErrUnavailable)

	res := NewTokenStoreChecker(store).Check(context.Background())
	if res.Healthy || res.Name != "token_store" {
		t.Fatalf("expected unhealthy token store, got %+v", res)
	}
}
