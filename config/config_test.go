package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.CancelWindow != 12*time.Hour {
		t.Errorf("Expected cancel window 12h, got %s", cfg.CancelWindow)
	}
	if cfg.ReturnWindow != 72*time.Hour {
		t.Errorf("Expected return window 72h, got %s", cfg.ReturnWindow)
	}
	if !cfg.StockFloorGuard {
		t.Error("Expected stock floor guard to be enabled by default")
	}
	if cfg.Gateway.Currency != "INR" {
		t.Errorf("Expected currency INR, got %s", cfg.Gateway.Currency)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CANCEL_WINDOW", "6h")
	t.Setenv("STOCK_FLOOR_GUARD", "false")
	t.Setenv("DB_MAX_OPEN_CONNS", "50")
	t.Setenv("RETURN_WINDOW", "not-a-duration")

	cfg := Load()

	if cfg.CancelWindow != 6*time.Hour {
		t.Errorf("Expected cancel window 6h, got %s", cfg.CancelWindow)
	}
	if cfg.StockFloorGuard {
		t.Error("Expected stock floor guard to be disabled")
	}
	if cfg.Database.MaxOpenConns != 50 {
		t.Errorf("Expected 50 max open conns, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.ReturnWindow != 72*time.Hour {
		t.Errorf("Expected invalid duration to fall back to 72h, got %s", cfg.ReturnWindow)
	}
}
