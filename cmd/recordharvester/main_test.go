package main

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/mpetrenko/RecordHarvester/internal/config"
)

func TestGenerateTemplateIsValidConfig(t *testing.T) {
	text, err := generateTemplate()
	if err != nil {
		t.Fatalf("generateTemplate() error = %v", err)
	}

	var cfg config.RunConfig
	if err := yaml.Unmarshal([]byte(text), &cfg); err != nil {
		t.Fatalf("template is not valid YAML: %v", err)
	}
	if cfg.Name == "" {
		t.Error("template has no name")
	}
	if cfg.Parse.BlockSelector == "" {
		t.Error("template has no block selector")
	}
	if len(cfg.Parse.Fields) == 0 {
		t.Error("template has no field selectors")
	}
}

func TestValidateConfigFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	text, err := generateTemplate()
	if err != nil {
		t.Fatalf("generateTemplate() error = %v", err)
	}
	if err := os.WriteFile(good, []byte(text), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := validateConfig(good); err != nil {
		t.Errorf("validateConfig(template) error = %v", err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("name: broken\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := validateConfig(bad); err == nil {
		t.Error("validateConfig(incomplete) = nil, want error")
	}

	if err := validateConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("validateConfig(missing file) = nil, want error")
	}
}

func TestHasFlag(t *testing.T) {
	orig := os.Args
	defer func() { os.Args = orig }()

	os.Args = []string{"recordharvester", "run", "cfg.yaml", "--verbose"}
	if !hasFlag("--verbose") {
		t.Error("hasFlag(--verbose) = false")
	}
	if hasFlag("-v") {
		t.Error("hasFlag(-v) = true, flag not present")
	}
}
