// Package config builds the single simulation configuration record. It is
// constructed once at startup from defaults, an optional JSONC file and
// VEI_* environment overrides, then passed explicitly to the router.
package config

import (
	"strings"
)

// Config is the full set of simulation knobs.
type Config struct {
	Seed           uint32   `json:"seed"`
	ArtifactsDir   string   `json:"artifacts_dir"`
	StateDir       string   `json:"state_dir"`
	Branch         string   `json:"branch"`
	ScenarioPath   string   `json:"scenario_path"`
	ScenarioPack   string   `json:"scenario_pack"`
	RandomScenario bool     `json:"random_scenario"`
	DriftMode      string   `json:"drift_mode"`
	DriftSeed      uint32   `json:"drift_seed"`
	Monitors       []string `json:"monitors"`
	AliasPacks     []string `json:"alias_packs"`
	ERPErrorRate   float64  `json:"erp_error_rate"`
	CRMErrorRate   float64  `json:"crm_error_rate"`
	FaultScale     float64  `json:"fault_scale"`
	Promotions     string   `json:"policy_promotions"` // "code:severity,..."
	StreamEndpoint string   `json:"stream_endpoint"`
	DenyTools      []string `json:"deny_tools"`
}

// Default returns the baseline configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in zero-value fields.
func applyDefaults(cfg *Config) {
	if cfg.Seed == 0 {
		cfg.Seed = 42042
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.DriftMode == "" {
		cfg.DriftMode = "off"
	}
	if cfg.DriftSeed == 0 {
		cfg.DriftSeed = cfg.Seed
	}
	if cfg.Monitors == nil {
		cfg.Monitors = []string{"tool_aware"}
	}
	if cfg.FaultScale == 0 {
		cfg.FaultScale = 1.0
	}
}

// splitCSV splits a comma-separated list, dropping empty items.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
