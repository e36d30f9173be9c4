package config

import (
    "os"
    "path/filepath"
    "testing"
)

func TestDefaultPassesValidation(t *testing.T) {
    cfg := Default()
    if err := cfg.validate(); err != nil {
        t.Fatalf("Default() failed validation: %v", err)
    }
}

func TestLoadWithNoFileReturnsDefaults(t *testing.T) {
    cfg, err := Load("")
    if err != nil {
        t.Fatalf("Load(\"\"): %v", err)
    }
    if cfg.AppName != "meshnode" {
        t.Fatalf("AppName = %q, want %q", cfg.AppName, "meshnode")
    }
    if len(cfg.Transports) != 1 || cfg.Transports[0].Kind != "neighbor" {
        t.Fatalf("unexpected default transports: %#v", cfg.Transports)
    }
}

func TestLoadReadsYAMLFile(t *testing.T) {
    dir := t.TempDir()
    path := filepath.Join(dir, "meshnode.yaml")
    yaml := []byte(`
app_name: test-node
display_name: Tester
log:
  level: debug
transports:
  - kind: directip
    listen: [":4433"]
    dial:
      - address: "10.0.0.2:4433"
        mesh_id: "pk:ed25519:abc"
`)
    if err := os.WriteFile(path, yaml, 0o644); err != nil {
        t.Fatalf("write config file: %v", err)
    }

    cfg, err := Load(path)
    if err != nil {
        t.Fatalf("Load(%q): %v", path, err)
    }
    if cfg.AppName != "test-node" || cfg.DisplayName != "Tester" {
        t.Fatalf("unexpected identity fields: %#v", cfg)
    }
    if cfg.Log.Level != "debug" {
        t.Fatalf("Log.Level = %q, want debug", cfg.Log.Level)
    }
    if len(cfg.Transports) != 1 || cfg.Transports[0].Kind != "directip" {
        t.Fatalf("unexpected transports: %#v", cfg.Transports)
    }
    if len(cfg.Transports[0].Dial) != 1 || cfg.Transports[0].Dial[0].MeshID != "pk:ed25519:abc" {
        t.Fatalf("unexpected dial targets: %#v", cfg.Transports[0].Dial)
    }
}

func TestValidateRejectsUnknownTransportKind(t *testing.T) {
    cfg := Default()
    cfg.Transports = []TransportConfig{{Kind: "carrier-pigeon"}}
    if err := cfg.validate(); err == nil {
        t.Fatal("expected validation error for unknown transport kind")
    }
}

func TestValidateRejectsNonPositiveRetentionWindows(t *testing.T) {
    cfg := Default()
    cfg.Retention.SweepInterval = 0
    if err := cfg.validate(); err == nil {
        t.Fatal("expected validation error for zero sweep_interval")
    }
}

func TestValidateNormalizesTransportKindCase(t *testing.T) {
    cfg := Default()
    cfg.Transports = []TransportConfig{{Kind: "  NEIGHBOR  "}}
    if err := cfg.validate(); err != nil {
        t.Fatalf("validate: %v", err)
    }
    if cfg.Transports[0].Kind != "neighbor" {
        t.Fatalf("Kind = %q, want normalized %q", cfg.Transports[0].Kind, "neighbor")
    }
}

func TestDefaultRetentionWindowsArePositive(t *testing.T) {
    cfg := Default()
    if cfg.Retention.ReplayWindow <= 0 || cfg.Retention.PersistenceWindow <= 0 || cfg.Retention.SweepInterval <= 0 || cfg.Retention.LostThreshold <= 0 {
        t.Fatalf("expected positive retention windows, got %#v", cfg.Retention)
    }
    if cfg.Retention.PersistenceWindow < cfg.Retention.ReplayWindow {
        t.Fatalf("persistence window (%s) shorter than replay window (%s)", cfg.Retention.PersistenceWindow, cfg.Retention.ReplayWindow)
    }
}

func TestValidateRejectsNonPositiveLostThreshold(t *testing.T) {
    cfg := Default()
    cfg.Retention.LostThreshold = 0
    if err := cfg.validate(); err == nil {
        t.Fatal("expected validation error for zero lost_threshold")
    }
}
