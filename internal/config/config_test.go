package config

import "testing"

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8081" {
		t.Fatalf("expected default port 8081, got %q", cfg.Port)
	}
	if cfg.IdleGraceMillis != 60000 {
		t.Fatalf("expected default idle grace 60000ms, got %d", cfg.IdleGraceMillis)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("expected replica fanout disabled by default, got addr %q", cfg.RedisAddr)
	}
}

func TestLoadReadsOverridesFromEnvironment(t *testing.T) {
	t.Setenv("COLLABHUB_PORT", "9090")
	t.Setenv("HISTORY_HARD_CAP", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("expected overridden port 9090, got %q", cfg.Port)
	}
	if cfg.HistoryHardCap != 50 {
		t.Fatalf("expected overridden history hard cap 50, got %d", cfg.HistoryHardCap)
	}
}
