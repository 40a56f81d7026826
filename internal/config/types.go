// Package config provides configuration types and loading for harvest runs.
// A run configuration names the seed URLs, the request and pagination
// behavior, the block/field selectors for the target page-template family,
// the deduplication identity fields, and the export destination.
package config

import (
	"time"
)

// RunConfig is the top-level configuration for one harvesting run.
type RunConfig struct {
	// Name identifies this configuration
	Name string `yaml:"name" json:"name"`

	// Description provides human-readable information about this config
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Seeds is the ordered list of starting URLs. Must be well-formed
	// absolute URLs; an empty or entirely malformed list is fatal.
	Seeds []string `yaml:"seeds" json:"seeds"`

	// Request controls fetching behavior
	Request RequestConfig `yaml:"request" json:"request"`

	// Discovery controls pagination and link following
	Discovery DiscoveryConfig `yaml:"discovery,omitempty" json:"discovery,omitempty"`

	// Parse locates record blocks and their fields within a page
	Parse ParseConfig `yaml:"parse" json:"parse"`

	// Dedup configures identity-key computation
	Dedup DedupConfig `yaml:"dedup,omitempty" json:"dedup,omitempty"`

	// Output configures the export sink
	Output OutputConfig `yaml:"output" json:"output"`

	// Monitoring configures the metrics/progress HTTP surface
	Monitoring MonitoringConfig `yaml:"monitoring,omitempty" json:"monitoring,omitempty"`

	// ProgressInterval is how often progress snapshots are emitted
	ProgressInterval time.Duration `yaml:"progress_interval,omitempty" json:"progress_interval,omitempty"`

	// LogLevel sets the structured log verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level,omitempty" json:"log_level,omitempty"`
}

// RequestConfig defines HTTP fetching behavior.
type RequestConfig struct {
	// MaxConcurrency bounds the number of in-flight fetches
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`

	// RetryLimit is the attempt ceiling for transient failures
	RetryLimit int `yaml:"retry_limit" json:"retry_limit"`

	// BackoffBase is the base delay for exponential backoff
	BackoffBase time.Duration `yaml:"backoff_base" json:"backoff_base"`

	// Timeout applies per fetch attempt, not per run
	Timeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// RateLimit is the sustained request rate in requests per second,
	// shared across all targets of the run
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`

	// RateBurst is the burst allowance of the shared limiter
	RateBurst int `yaml:"rate_burst" json:"rate_burst"`

	// UserAgents rotate per request; defaults are provided when empty
	UserAgents []string `yaml:"user_agents,omitempty" json:"user_agents,omitempty"`

	// Headers are sent with every request
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// Render fetches pages through a headless browser instead of plain
	// HTTP, for templates that only materialize under JavaScript
	Render bool `yaml:"render,omitempty" json:"render,omitempty"`
}

// DiscoveryConfig controls how new fetch targets are discovered from pages.
type DiscoveryConfig struct {
	// FollowNext follows rel=next and ?page=N style pagination links
	FollowNext bool `yaml:"follow_next" json:"follow_next"`

	// PageParam is the query parameter used by numbered pagination
	PageParam string `yaml:"page_param,omitempty" json:"page_param,omitempty"`

	// LinkPatterns are anchored regular expressions over href values;
	// matching links are enqueued as new targets
	LinkPatterns []string `yaml:"link_patterns,omitempty" json:"link_patterns,omitempty"`

	// MaxPages caps the total pages fetched in a run (0 = unlimited)
	MaxPages int `yaml:"max_pages,omitempty" json:"max_pages,omitempty"`
}

// ParseConfig locates candidate record blocks within a page.
type ParseConfig struct {
	// BlockSelector is the CSS selector identifying one candidate record
	BlockSelector string `yaml:"block_selector" json:"block_selector"`

	// Fields are extracted per block, in declaration order
	Fields []FieldSelector `yaml:"fields" json:"fields"`
}

// FieldSelector maps a raw field name to a CSS selector within a block.
type FieldSelector struct {
	// Name of the raw field as seen by the entity extractor
	Name string `yaml:"name" json:"name"`

	// Selector is the CSS selector, evaluated relative to the block
	Selector string `yaml:"selector" json:"selector"`

	// Attribute extracts an attribute value instead of text content
	Attribute string `yaml:"attribute,omitempty" json:"attribute,omitempty"`
}

// DedupConfig configures identity-key computation.
type DedupConfig struct {
	// KeyFields are the normalized-record fields hashed into the
	// IdentityKey. Defaults to full name + address.
	KeyFields []string `yaml:"key_fields,omitempty" json:"key_fields,omitempty"`
}

// OutputConfig configures the export sink.
type OutputConfig struct {
	// Format selects the sink: csv, jsonl, excel, sqlite, postgres,
	// mysql, mongodb
	Format string `yaml:"format" json:"format"`

	// File is the destination path for file-based formats
	File string `yaml:"file,omitempty" json:"file,omitempty"`

	// ConnectionString for database-backed sinks. Environment variables
	// are expanded, so secrets can stay out of the file.
	ConnectionString string `yaml:"connection_string,omitempty" json:"connection_string,omitempty"`

	// Table (or collection) name for database-backed sinks
	Table string `yaml:"table,omitempty" json:"table,omitempty"`

	// Database name, used by MongoDB
	Database string `yaml:"database,omitempty" json:"database,omitempty"`

	// Sheet name for Excel output
	Sheet string `yaml:"sheet,omitempty" json:"sheet,omitempty"`
}

// MonitoringConfig configures the observability HTTP server.
type MonitoringConfig struct {
	// Enabled starts the HTTP server when true
	Enabled bool `yaml:"enabled" json:"enabled"`

	// ListenAddress for the metrics/progress server
	ListenAddress string `yaml:"listen_address,omitempty" json:"listen_address,omitempty"`
}
