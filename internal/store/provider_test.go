package store_test

import (
	"context"
	"testing"

	"github.com/rahulvdm/auction-engine/internal/clock"
	"github.com/rahulvdm/auction-engine/internal/config"
	"github.com/rahulvdm/auction-engine/internal/store"
)

func TestOpenUnknownDriver(t *testing.T) {
	cfg := config.Defaults().Database
	cfg.Driver = "not-registered"

	if _, err := store.Open(context.Background(), cfg, clock.Real{}); err == nil {
		t.Fatal("Open succeeded with an unregistered driver")
	}
}

func TestOpenDispatchesToRegisteredDriver(t *testing.T) {
	called := false
	store.Register("test-driver", func(context.Context, config.DatabaseConfig, clock.Clock) (*store.Repositories, error) {
		called = true
		return &store.Repositories{}, nil
	})

	cfg := config.Defaults().Database
	cfg.Driver = "test-driver"
	if _, err := store.Open(context.Background(), cfg, clock.Real{}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !called {
		t.Error("registered driver was not invoked")
	}
}
