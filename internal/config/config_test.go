package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_ADDR", "")
	t.Setenv("DB_MAX_OPEN_CONNS", "")
	t.Setenv("DB_MAX_IDLE_CONNS", "")

	cfg := Load()
	if cfg.Addr != ":8787" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.DBMaxOpenConns != 20 || cfg.DBMaxIdleConns != 10 {
		t.Errorf("pool limits = %d/%d", cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	}
}

func TestGetenvInt(t *testing.T) {
	t.Setenv("TEST_POOL_SIZE", "7")
	if got := getenvInt("TEST_POOL_SIZE", 20); got != 7 {
		t.Errorf("got %d, want 7", got)
	}

	t.Setenv("TEST_POOL_SIZE", "not a number")
	if got := getenvInt("TEST_POOL_SIZE", 20); got != 20 {
		t.Errorf("garbage must fall back, got %d", got)
	}

	t.Setenv("TEST_POOL_SIZE", "0")
	if got := getenvInt("TEST_POOL_SIZE", 20); got != 20 {
		t.Errorf("non-positive must fall back, got %d", got)
	}

	if got := getenvInt("TEST_POOL_SIZE_UNSET", 20); got != 20 {
		t.Errorf("unset must fall back, got %d", got)
	}
}
