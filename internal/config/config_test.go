package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Seed != 42042 {
		t.Fatalf("seed = %d", cfg.Seed)
	}
	if cfg.DriftSeed != cfg.Seed {
		t.Fatalf("drift seed = %d, want fallback to %d", cfg.DriftSeed, cfg.Seed)
	}
	if cfg.DriftMode != "off" || cfg.Branch != "main" {
		t.Fatalf("mode=%s branch=%s", cfg.DriftMode, cfg.Branch)
	}
	if len(cfg.Monitors) != 1 || cfg.Monitors[0] != "tool_aware" {
		t.Fatalf("monitors = %v", cfg.Monitors)
	}
	if cfg.FaultScale != 1.0 {
		t.Fatalf("fault scale = %v", cfg.FaultScale)
	}
}

func TestLoadJSONCWithComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vei.jsonc")
	body := `{
		// simulation seed
		"seed": 123,
		"drift_mode": "fast",
		"alias_packs": ["xero"], // vendor-style erp names
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Seed != 123 || cfg.DriftMode != "fast" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.DriftSeed != 123 {
		t.Fatalf("drift seed = %d, want main seed", cfg.DriftSeed)
	}
	if len(cfg.AliasPacks) != 1 || cfg.AliasPacks[0] != "xero" {
		t.Fatalf("alias packs = %v", cfg.AliasPacks)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vei.jsonc")
	if err := os.WriteFile(path, []byte(`{"seed": 7, "monitors": ["tool_aware"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VEI_SEED", "99")
	t.Setenv("VEI_MONITORS", "tool_aware,custom")
	t.Setenv("VEI_POLICY_PROMOTE", "usage.repetition:error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Seed != 99 {
		t.Fatalf("seed = %d, want env override", cfg.Seed)
	}
	if len(cfg.Monitors) != 2 {
		t.Fatalf("monitors = %v", cfg.Monitors)
	}
	if cfg.Promotions != "usage.repetition:error" {
		t.Fatalf("promotions = %q", cfg.Promotions)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load("/nonexistent/vei.jsonc"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
