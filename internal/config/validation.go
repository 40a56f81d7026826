package config

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/mpetrenko/RecordHarvester/pkg/records"
)

var validFormats = map[string]bool{
	"csv":      true,
	"jsonl":    true,
	"excel":    true,
	"sqlite":   true,
	"postgres": true,
	"mysql":    true,
	"mongodb":  true,
}

var fileBackedFormats = map[string]bool{
	"csv":    true,
	"jsonl":  true,
	"excel":  true,
	"sqlite": true,
}

// Validate checks the configuration for structural errors. Seed URLs that
// are individually malformed are tolerated here (the orchestrator skips
// them); only an empty seed list is rejected outright.
func (cfg *RunConfig) Validate() error {
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(cfg.Seeds) == 0 {
		return fmt.Errorf("at least one seed URL is required")
	}

	if err := cfg.Parse.validate(); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if err := cfg.Discovery.validate(); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	if err := cfg.Dedup.validate(); err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	if err := cfg.Output.validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	return nil
}

// ValidSeeds returns the well-formed absolute seed URLs in order. The
// second value reports how many were dropped as malformed.
func (cfg *RunConfig) ValidSeeds() ([]string, int) {
	var seeds []string
	dropped := 0
	for _, seed := range cfg.Seeds {
		u, err := url.Parse(seed)
		if err != nil || !u.IsAbs() || u.Host == "" {
			dropped++
			continue
		}
		seeds = append(seeds, seed)
	}
	return seeds, dropped
}

func (p *ParseConfig) validate() error {
	if p.BlockSelector == "" {
		return fmt.Errorf("block_selector is required")
	}
	if len(p.Fields) == 0 {
		return fmt.Errorf("at least one field selector is required")
	}
	seen := make(map[string]bool, len(p.Fields))
	for i, f := range p.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		if f.Selector == "" {
			return fmt.Errorf("field %q: selector is required", f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("field %q: duplicate field name", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

func (d *DiscoveryConfig) validate() error {
	for _, pattern := range d.LinkPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid link pattern %q: %w", pattern, err)
		}
	}
	if d.MaxPages < 0 {
		return fmt.Errorf("max_pages cannot be negative")
	}
	return nil
}

func (d *DedupConfig) validate() error {
	for _, name := range d.KeyFields {
		found := false
		for _, known := range records.MergeableFields {
			if name == known {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown dedup key field: %s", name)
		}
	}
	return nil
}

func (o *OutputConfig) validate() error {
	if o.Format == "" {
		return fmt.Errorf("format is required")
	}
	if !validFormats[o.Format] {
		return fmt.Errorf("unsupported output format: %s", o.Format)
	}
	if fileBackedFormats[o.Format] && o.File == "" {
		return fmt.Errorf("file is required for %s output", o.Format)
	}
	switch o.Format {
	case "postgres", "mysql", "mongodb":
		if o.ConnectionString == "" {
			return fmt.Errorf("connection_string is required for %s output", o.Format)
		}
	}
	switch o.Format {
	case "sqlite", "postgres", "mysql", "mongodb":
		if o.Table == "" {
			return fmt.Errorf("table is required for %s output", o.Format)
		}
	}
	if o.Format == "mongodb" && o.Database == "" {
		return fmt.Errorf("database is required for mongodb output")
	}
	return nil
}
