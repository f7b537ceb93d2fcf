package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sampleConfig struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (c *sampleConfig) Validate() error {
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "name: ansuz\nport: 8080\n")
	var cfg sampleConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "ansuz" || cfg.Port != 8080 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_CONFIG_NAME", "from-env")
	path := writeConfig(t, "name: ${TEST_CONFIG_NAME}\nport: 1\n")
	var cfg sampleConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "from-env" {
		t.Errorf("name = %q", cfg.Name)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, "name: bad\nport: 0\n")
	var cfg sampleConfig
	if err := Load(path, &cfg); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadWithDefaults_MissingFile(t *testing.T) {
	fallback := writeConfig(t, "name: fallback\nport: 2\n")
	var cfg sampleConfig
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"), fallback, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "fallback" {
		t.Errorf("name = %q", cfg.Name)
	}

	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"), "", &cfg); err == nil {
		t.Error("expected error with no fallback file")
	}
}
