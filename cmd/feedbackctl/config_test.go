package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("FEEDBACKCTL_CONFIG", filepath.Join(t.TempDir(), "none.yaml"))
	if err := loadConfig(); err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg.Address != "http://127.0.0.1:8080" || cfg.Token != "" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadConfigCorruptFileReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("address: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FEEDBACKCTL_CONFIG", path)

	err := loadConfig()
	if err == nil || !strings.Contains(err.Error(), "parsing") {
		t.Fatalf("expected a parse error, got %v", err)
	}
	if cfg.Address != "http://127.0.0.1:8080" {
		t.Errorf("corrupt file must leave defaults, got %+v", cfg)
	}
}

func TestSaveThenLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	t.Setenv("FEEDBACKCTL_CONFIG", path)

	cfg = CLIConfig{Address: "https://feedback.example.com", Token: "tok", Format: "json"}
	if err := saveConfig(); err != nil {
		t.Fatalf("saveConfig: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	cfg = CLIConfig{}
	if err := loadConfig(); err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Address != "https://feedback.example.com" || cfg.Token != "tok" || cfg.Format != "json" {
		t.Errorf("round trip lost fields: %+v", cfg)
	}
}
