package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads a run configuration from a YAML file.
func LoadFromFile(filename string) (*RunConfig, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration filename cannot be empty")
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", filename)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads a run configuration from YAML bytes.
func LoadFromBytes(data []byte) (*RunConfig, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("configuration data cannot be empty")
	}

	expanded := expandEnvironmentVariables(string(data))

	var cfg RunConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads a run configuration from an io.Reader.
func LoadFromReader(reader io.Reader) (*RunConfig, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from reader: %w", err)
	}

	return LoadFromBytes(data)
}

// envVarPattern matches ${VAR} and ${VAR:-default} references.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandEnvironmentVariables substitutes ${VAR} and ${VAR:-default}
// references with values from the process environment.
func expandEnvironmentVariables(data string) string {
	return envVarPattern.ReplaceAllStringFunc(data, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if value, ok := os.LookupEnv(groups[1]); ok {
			return value
		}
		return groups[2]
	})
}

// applyDefaults fills in missing configuration values.
func applyDefaults(cfg *RunConfig) {
	if cfg.Request.MaxConcurrency <= 0 {
		cfg.Request.MaxConcurrency = 4
	}
	if cfg.Request.RetryLimit <= 0 {
		cfg.Request.RetryLimit = 3
	}
	if cfg.Request.BackoffBase <= 0 {
		cfg.Request.BackoffBase = time.Second
	}
	if cfg.Request.Timeout <= 0 {
		cfg.Request.Timeout = 45 * time.Second
	}
	if cfg.Request.RateLimit <= 0 {
		// The target site tolerates roughly one request per second of
		// sustained traffic before throttling.
		cfg.Request.RateLimit = 1.0
	}
	if cfg.Request.RateBurst <= 0 {
		cfg.Request.RateBurst = 3
	}
	if cfg.Discovery.PageParam == "" {
		cfg.Discovery.PageParam = "page"
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 2 * time.Second
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Output.Sheet == "" {
		cfg.Output.Sheet = "Records"
	}
	if cfg.Monitoring.Enabled && cfg.Monitoring.ListenAddress == "" {
		cfg.Monitoring.ListenAddress = ":9090"
	}
}

// SaveToFile writes a run configuration to a YAML file.
func SaveToFile(cfg *RunConfig, filename string) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	return nil
}

// GenerateTemplate returns a starter configuration for the property-record
// page-template family.
func GenerateTemplate() *RunConfig {
	cfg := &RunConfig{
		Name:        "property-records",
		Description: "Harvest owner and sale records from county property pages",
		Seeds: []string{
			"https://example.com/county/cities/springfield",
		},
		Request: RequestConfig{
			MaxConcurrency: 4,
			RetryLimit:     3,
			BackoffBase:    time.Second,
			Timeout:        45 * time.Second,
			RateLimit:      1.0,
			RateBurst:      3,
		},
		Discovery: DiscoveryConfig{
			FollowNext: true,
			PageParam:  "page",
			LinkPatterns: []string{
				`^/county/cities/[^/]+/streets/[^/]+/?$`,
				`^/county/[^/]+/property/\d+/[^/]+/?$`,
			},
			MaxPages: 0,
		},
		Parse: ParseConfig{
			BlockSelector: "section#property-info",
			Fields: []FieldSelector{
				{Name: "owners", Selector: ".info-data"},
				{Name: "address", Selector: ".main-title h2"},
				{Name: "sale_date", Selector: "p.sale-date"},
				{Name: "sale_price", Selector: "p.sale-price"},
				{Name: "buyer", Selector: ".sale-people .sale-buyer"},
				{Name: "seller", Selector: ".sale-people .sale-seller"},
			},
		},
		Output: OutputConfig{
			Format: "csv",
			File:   "records.csv",
		},
		ProgressInterval: 2 * time.Second,
		LogLevel:         "info",
	}
	applyDefaults(cfg)
	return cfg
}
