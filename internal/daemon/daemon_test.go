package daemon_test

import (
	"context"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"copyengine/internal/api"
	"copyengine/internal/config"
	"copyengine/internal/daemon"
	"copyengine/internal/logging"
	"copyengine/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config, opts ...daemon.Option) *daemon.Daemon {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestNewRequiresConfigAndStore(t *testing.T) {
	if _, err := daemon.New(nil, nil, nil); err == nil {
		t.Fatal("expected error without config and store")
	}
}

func TestServeAnswersUntilCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx, listener) }()

	client, err := api.NewClient(listener.Addr().String())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Status != "ok" {
		t.Fatalf("unexpected health: %+v", health)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if _, err := client.Health(context.Background()); err == nil {
		t.Fatal("expected server to be closed")
	}
}

func TestRunRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	held := flock.New(cfg.LockPath())
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	t.Cleanup(func() { _ = held.Unlock() })

	d := newDaemon(t, cfg)
	err = d.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestRunReleasesLockOnShutdown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("expected lock to be free after shutdown: ok=%v err=%v", ok, err)
	}
	_ = lock.Unlock()
}

func TestHandlerServesHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fixed := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	d := newDaemon(t, cfg, daemon.WithClock(func() time.Time { return fixed }))
	t.Cleanup(func() { _ = d.Close() })

	rec := serve(t, d.Handler(), http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	want := `{"status":"ok","now":"2026-03-01T08:30:00.000Z"}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Fatalf("health body = %s, want %s", got, want)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected a request id header")
	}
}
