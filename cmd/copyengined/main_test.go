package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"copyengine/internal/logging"
	"copyengine/internal/testsupport"
)

func TestBootstrapWiresStoreAndDaemon(t *testing.T) {
	for _, driver := range []string{"memory", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			cfg.Store.Driver = driver

			d, store, err := bootstrap(cfg, logging.NewNop())
			if err != nil {
				t.Fatalf("bootstrap: %v", err)
			}
			t.Cleanup(func() {
				_ = d.Close()
				_ = store.Close()
			})

			rec := httptest.NewRecorder()
			d.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected healthz 200, got %d", rec.Code)
			}
		})
	}
}

func TestBootstrapRejectsUnknownDriver(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Store.Driver = "postgres"
	if _, _, err := bootstrap(cfg, logging.NewNop()); err == nil {
		t.Fatal("expected error for unknown store driver")
	}
}
