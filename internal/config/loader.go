package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/tailscale/hujson"
)

// Load reads an optional JSONC config file, applies VEI_* environment
// overrides on top, then fills defaults. An empty path loads environment
// and defaults only.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		std, err := hujson.Standardize(data)
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if err := json.Unmarshal(std, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// applyEnv overrides file values from VEI_* variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("VEI_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Seed = uint32(n)
		}
	}
	if v := os.Getenv("VEI_ARTIFACTS_DIR"); v != "" {
		cfg.ArtifactsDir = v
	}
	if v := os.Getenv("VEI_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("VEI_BRANCH"); v != "" {
		cfg.Branch = v
	}
	if v := os.Getenv("VEI_SCENARIO"); v != "" {
		cfg.ScenarioPath = v
	}
	if v := os.Getenv("VEI_SCENARIO_PACK"); v != "" {
		cfg.ScenarioPack = v
	}
	if v := os.Getenv("VEI_SCENARIO_RANDOM"); v != "" {
		cfg.RandomScenario = v == "1" || v == "true"
	}
	if v := os.Getenv("VEI_DRIFT_MODE"); v != "" {
		cfg.DriftMode = v
	}
	if v := os.Getenv("VEI_DRIFT_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.DriftSeed = uint32(n)
		}
	}
	if v := os.Getenv("VEI_MONITORS"); v != "" {
		cfg.Monitors = splitCSV(v)
	}
	if v := os.Getenv("VEI_ALIAS_PACKS"); v != "" {
		cfg.AliasPacks = splitCSV(v)
	}
	if v := os.Getenv("VEI_ERP_ERROR_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ERPErrorRate = f
		}
	}
	if v := os.Getenv("VEI_CRM_ERROR_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.CRMErrorRate = f
		}
	}
	if v := os.Getenv("VEI_FAULT_SCALE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.FaultScale = f
		}
	}
	if v := os.Getenv("VEI_POLICY_PROMOTE"); v != "" {
		cfg.Promotions = v
	}
	if v := os.Getenv("VEI_STREAM_ENDPOINT"); v != "" {
		cfg.StreamEndpoint = v
	}
	if v := os.Getenv("VEI_DENY_TOOLS"); v != "" {
		cfg.DenyTools = splitCSV(v)
	}
}
