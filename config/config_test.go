package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("want port 8080, got %s", cfg.Port)
	}
	if cfg.StoreDriver != StoreDriverFile {
		t.Errorf("want store driver file, got %s", cfg.StoreDriver)
	}
	if cfg.RelockInterval != 7500*time.Millisecond {
		t.Errorf("want relock interval 7.5s, got %s", cfg.RelockInterval)
	}
	if cfg.FactoryTime != 1648016868 {
		t.Errorf("want factory time 1648016868, got %d", cfg.FactoryTime)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:lock.db")
	t.Setenv("RELOCK_INTERVAL", "3s")
	t.Setenv("LOG_TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StoreDriver != StoreDriverSQLite {
		t.Errorf("want sqlite, got %s", cfg.StoreDriver)
	}
	if cfg.RelockInterval != 3*time.Second {
		t.Errorf("want 3s, got %s", cfg.RelockInterval)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location failed: %v", err)
	}
	if loc != time.UTC {
		t.Errorf("want UTC, got %s", loc)
	}
}

func TestLoad_DatabaseDriverRequiresURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when DATABASE_URL is missing")
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "redis")

	if _, err := Load(); err == nil {
		t.Error("expected error for unknown driver")
	}
}
