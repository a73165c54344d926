package config

import (
	"encoding/json"
	"testing"
)

func TestDefaultSettingsParse(t *testing.T) {
	var cfg Config
	if err := json.Unmarshal(defaultConfig, &cfg); err != nil {
		t.Fatalf("unmarshal embedded defaults: %v", err)
	}

	if err := validateRules(cfg); err != nil {
		t.Fatalf("default rules invalid: %v", err)
	}

	rule, ok := cfg.Rules["brute_force"]
	if !ok {
		t.Fatal("brute_force rule missing from defaults")
	}
	if rule.Threshold != 9 || rule.WindowSeconds != 600 {
		t.Fatalf("brute_force rule = %+v, want threshold 9 window 600", rule)
	}
	if rule.Severity != "high" || !rule.AutoBlock {
		t.Fatalf("brute_force rule = %+v, want high severity auto-block", rule)
	}

	if cfg.Rules["payload_injection"].Severity != "critical" {
		t.Fatalf("payload_injection severity = %q, want critical", cfg.Rules["payload_injection"].Severity)
	}
}

func TestValidateRulesRejectsZeroes(t *testing.T) {
	cfg := Config{Rules: map[string]Rule{
		"brute_force": {Threshold: 0, WindowSeconds: 600},
	}}
	if err := validateRules(cfg); err == nil {
		t.Fatal("expected error for zero threshold")
	}

	cfg.Rules["brute_force"] = Rule{Threshold: 9, WindowSeconds: 0}
	if err := validateRules(cfg); err == nil {
		t.Fatal("expected error for zero window")
	}
}

func TestTimerDuration(t *testing.T) {
	timer := Timer{Hours: 6, Minutes: 30}
	if got := timer.Duration(); got.Minutes() != 390 {
		t.Fatalf("Duration = %v, want 6h30m", got)
	}
}
