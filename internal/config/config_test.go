package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if len(cfg.Endpoints) == 0 {
		t.Error("default endpoints empty")
	}
	if cfg.SessionHeader != "X-Session-Id" {
		t.Errorf("session header = %q", cfg.SessionHeader)
	}
	if cfg.RequestLog.Enabled {
		t.Error("request log enabled by default")
	}
	if cfg.DebugAPI.Enabled {
		t.Error("debug api enabled by default")
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.Endpoints) == 0 {
		t.Error("defaults not applied for missing file")
	}
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolgate.yaml")
	data := `
endpoints:
  - "/custom/endpoint"
session-header: "X-My-Session"
request-log:
  enabled: true
  path: "/tmp/reqs.log"
debug-api:
  enabled: true
  addr: "127.0.0.1:9999"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.Endpoints) != 1 || cfg.Endpoints[0] != "/custom/endpoint" {
		t.Errorf("endpoints = %v", cfg.Endpoints)
	}
	if cfg.SessionHeader != "X-My-Session" {
		t.Errorf("session header = %q", cfg.SessionHeader)
	}
	if !cfg.RequestLog.Enabled || cfg.RequestLog.Path != "/tmp/reqs.log" {
		t.Errorf("request log = %+v", cfg.RequestLog)
	}
	if !cfg.DebugAPI.Enabled || cfg.DebugAPI.Addr != "127.0.0.1:9999" {
		t.Errorf("debug api = %+v", cfg.DebugAPI)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("endpoints: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted invalid YAML")
	}
}
