package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mpetrenko/RecordHarvester/pkg/records"
)

const minimalYAML = `
name: test-harvest
seeds:
  - https://example.com/county/cities/springfield
parse:
  block_selector: "div.property"
  fields:
    - name: owners
      selector: "span.owners"
    - name: address
      selector: "span.address"
output:
  format: csv
  file: out.csv
`

func TestLoadFromBytesAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes() error = %v", err)
	}

	if cfg.Request.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want default 4", cfg.Request.MaxConcurrency)
	}
	if cfg.Request.RetryLimit != 3 {
		t.Errorf("RetryLimit = %d, want default 3", cfg.Request.RetryLimit)
	}
	if cfg.Request.RateLimit != 1.0 {
		t.Errorf("RateLimit = %v, want default 1.0", cfg.Request.RateLimit)
	}
	if cfg.Request.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want default 45s", cfg.Request.Timeout)
	}
	if cfg.Discovery.PageParam != "page" {
		t.Errorf("PageParam = %q, want default page", cfg.Discovery.PageParam)
	}
	if cfg.ProgressInterval != 2*time.Second {
		t.Errorf("ProgressInterval = %v, want default 2s", cfg.ProgressInterval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default info", cfg.LogLevel)
	}
}

func TestLoadFromBytesRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "empty",
			yaml: "",
			want: "cannot be empty",
		},
		{
			name: "no seeds",
			yaml: `
name: x
parse:
  block_selector: "div"
  fields:
    - name: owners
      selector: "span"
output:
  format: csv
  file: out.csv
`,
			want: "seed",
		},
		{
			name: "no block selector",
			yaml: `
name: x
seeds: ["https://example.com"]
parse:
  fields:
    - name: owners
      selector: "span"
output:
  format: csv
  file: out.csv
`,
			want: "block_selector",
		},
		{
			name: "duplicate field names",
			yaml: `
name: x
seeds: ["https://example.com"]
parse:
  block_selector: "div"
  fields:
    - name: owners
      selector: "a"
    - name: owners
      selector: "b"
output:
  format: csv
  file: out.csv
`,
			want: "duplicate",
		},
		{
			name: "bad output format",
			yaml: `
name: x
seeds: ["https://example.com"]
parse:
  block_selector: "div"
  fields:
    - name: owners
      selector: "span"
output:
  format: parquet
  file: out.parquet
`,
			want: "unsupported output format",
		},
		{
			name: "database without connection string",
			yaml: `
name: x
seeds: ["https://example.com"]
parse:
  block_selector: "div"
  fields:
    - name: owners
      selector: "span"
output:
  format: postgres
  table: records
`,
			want: "connection_string",
		},
		{
			name: "bad link pattern",
			yaml: `
name: x
seeds: ["https://example.com"]
discovery:
  link_patterns: ["[unclosed"]
parse:
  block_selector: "div"
  fields:
    - name: owners
      selector: "span"
output:
  format: csv
  file: out.csv
`,
			want: "link pattern",
		},
		{
			name: "unknown dedup key field",
			yaml: `
name: x
seeds: ["https://example.com"]
dedup:
  key_fields: ["owner_shoe_size"]
parse:
  block_selector: "div"
  fields:
    - name: owners
      selector: "span"
output:
  format: csv
  file: out.csv
`,
			want: "dedup key field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			if err == nil {
				t.Fatal("LoadFromBytes() = nil error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestEnvironmentVariableExpansion(t *testing.T) {
	t.Setenv("HARVEST_CONN", "postgres://user:secret@db/records")

	yaml := `
name: env-test
seeds: ["https://example.com"]
parse:
  block_selector: "div"
  fields:
    - name: owners
      selector: "span"
output:
  format: postgres
  connection_string: "${HARVEST_CONN}"
  table: "${HARVEST_TABLE:-records}"
`
	cfg, err := LoadFromBytes([]byte(yaml))
	if err != nil {
		t.Fatalf("LoadFromBytes() error = %v", err)
	}
	if cfg.Output.ConnectionString != "postgres://user:secret@db/records" {
		t.Errorf("ConnectionString = %q", cfg.Output.ConnectionString)
	}
	if cfg.Output.Table != "records" {
		t.Errorf("Table = %q, want fallback default", cfg.Output.Table)
	}
}

func TestValidSeedsDropsMalformed(t *testing.T) {
	cfg := &RunConfig{
		Seeds: []string{
			"https://example.com/a",
			"not a url at all",
			"relative/path",
			"https://example.com/b",
		},
	}
	seeds, dropped := cfg.ValidSeeds()
	if len(seeds) != 2 || dropped != 2 {
		t.Fatalf("seeds = %v dropped = %d", seeds, dropped)
	}
	if seeds[0] != "https://example.com/a" || seeds[1] != "https://example.com/b" {
		t.Errorf("seed order not preserved: %v", seeds)
	}
}

func TestLoadFromFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")

	if err := SaveToFile(GenerateTemplate(), path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Name != "property-records" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if len(cfg.Parse.Fields) == 0 {
		t.Error("template lost its field selectors")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestDedupKeyFieldsAcceptSchemaFields(t *testing.T) {
	d := DedupConfig{KeyFields: []string{records.FieldCurrentOwners, records.FieldStreet}}
	if err := d.validate(); err != nil {
		t.Errorf("validate() error = %v", err)
	}
}

func TestMonitoringDefaultAddress(t *testing.T) {
	yaml := minimalYAML + `
monitoring:
  enabled: true
`
	cfg, err := LoadFromBytes([]byte(yaml))
	if err != nil {
		t.Fatalf("LoadFromBytes() error = %v", err)
	}
	if cfg.Monitoring.ListenAddress != ":9090" {
		t.Errorf("ListenAddress = %q, want default :9090", cfg.Monitoring.ListenAddress)
	}
}

func TestExpandEnvMissingVarBecomesEmpty(t *testing.T) {
	os.Unsetenv("HARVEST_NOT_SET_ANYWHERE")
	out := expandEnvironmentVariables("value: ${HARVEST_NOT_SET_ANYWHERE}")
	if out != "value: " {
		t.Errorf("expanded = %q", out)
	}
}
