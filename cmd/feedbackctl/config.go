package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CLIConfig is what `feedbackctl login` and `token --save` persist.
type CLIConfig struct {
	Address   string `yaml:"address"`
	Token     string `yaml:"token"`
	TLSCACert string `yaml:"tls_ca_cert"`
	// Format is the default for --format.
	Format string `yaml:"format,omitempty"`
}

var cfg CLIConfig

func defaultCLIConfig() CLIConfig {
	return CLIConfig{Address: "http://127.0.0.1:8080"}
}

// configPath returns $FEEDBACKCTL_CONFIG or ~/.feedbackctl/config.yaml.
func configPath() string {
	if v := os.Getenv("FEEDBACKCTL_CONFIG"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".feedbackctl", "config.yaml")
}

// loadConfig reads the CLI config. A missing file leaves the defaults; an
// unreadable or corrupt one also leaves the defaults but is reported.
func loadConfig() error {
	cfg = defaultCLIConfig()
	path := configPath()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	var loaded CLIConfig
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if loaded.Address == "" {
		loaded.Address = cfg.Address
	}
	cfg = loaded
	return nil
}

// saveConfig persists the CLI config with owner-only permissions; it holds a bearer token.
func saveConfig() error {
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
