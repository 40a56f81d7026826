package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mpetrenko/RecordHarvester/internal/browser"
	"github.com/mpetrenko/RecordHarvester/internal/config"
	"github.com/mpetrenko/RecordHarvester/internal/dedup"
	"github.com/mpetrenko/RecordHarvester/internal/extract"
	"github.com/mpetrenko/RecordHarvester/internal/fetcher"
	"github.com/mpetrenko/RecordHarvester/internal/logging"
	"github.com/mpetrenko/RecordHarvester/internal/monitoring"
	"github.com/mpetrenko/RecordHarvester/internal/output"
	"github.com/mpetrenko/RecordHarvester/internal/parser"
	"github.com/mpetrenko/RecordHarvester/internal/pipeline"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch command := os.Args[1]; command {
	case "run":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: config file required")
			fmt.Fprintln(os.Stderr, "Usage: recordharvester run <config.yaml>")
			os.Exit(1)
		}
		if err := runHarvest(os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "validate":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: config file required")
			fmt.Fprintln(os.Stderr, "Usage: recordharvester validate <config.yaml>")
			os.Exit(1)
		}
		if err := validateConfig(os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration file %q is valid\n", os.Args[2])

	case "template":
		template, err := generateTemplate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(template)

	case "version", "--version":
		printVersion()

	case "help", "--help", "-h":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", command)
		printUsage()
		os.Exit(1)
	}
}

// runHarvest loads the configuration, assembles the pipeline and runs it
// to completion. SIGINT and SIGTERM trigger a cooperative drain; a second
// signal aborts.
func runHarvest(configFile string) error {
	cfg, err := config.LoadFromFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger, err := logging.Install(cfg.LogLevel, hasFlag("-v") || hasFlag("--verbose"))
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting harvest",
		zap.String("name", cfg.Name),
		zap.Int("seeds", len(cfg.Seeds)),
		zap.String("output", cfg.Output.Format),
	)

	pageParser, err := parser.New(cfg.Parse, cfg.Discovery)
	if err != nil {
		return fmt.Errorf("failed to build parser: %w", err)
	}

	var pageFetcher fetcher.PageFetcher
	if cfg.Request.Render {
		renderer, err := browser.NewRenderer(cfg.Request, logger)
		if err != nil {
			return fmt.Errorf("failed to start renderer: %w", err)
		}
		defer renderer.Close()
		pageFetcher = renderer
	} else {
		pageFetcher = fetcher.New(cfg.Request, logger)
	}

	sink, err := output.New(cfg.Output, logger)
	if err != nil {
		return fmt.Errorf("failed to open output sink: %w", err)
	}
	defer sink.Close()

	metrics := monitoring.NewMetrics()
	orchestrator := pipeline.New(
		cfg,
		pageFetcher,
		pageParser,
		extract.New(logger),
		dedup.New(cfg.Dedup, logger),
		sink,
		metrics,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Monitoring.Enabled {
		server := monitoring.NewServer(cfg.Monitoring, metrics, func() interface{} {
			return orchestrator.Snapshot()
		}, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("monitoring server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		<-signals
		logger.Info("shutdown signal received, draining")
		orchestrator.Stop()
		<-signals
		logger.Warn("second signal received, aborting")
		cancel()
	}()

	go func() {
		for snapshot := range orchestrator.Progress() {
			logger.Info("progress",
				zap.String("state", snapshot.State),
				zap.Int("pages_fetched", snapshot.PagesFetched),
				zap.Int("queue_depth", snapshot.QueueDepth),
				zap.Int("records_extracted", snapshot.RecordsExtracted),
				zap.Int("identities", snapshot.Identities),
			)
		}
	}()

	if err := orchestrator.Run(ctx); err != nil {
		return fmt.Errorf("harvest failed: %w", err)
	}

	fmt.Printf("Harvest complete. %d records written.\n", orchestrator.Snapshot().RecordsWritten)
	return nil
}

// validateConfig loads and validates a configuration file.
func validateConfig(configFile string) error {
	cfg, err := config.LoadFromFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if _, dropped := cfg.ValidSeeds(); dropped > 0 {
		fmt.Printf("Warning: %d malformed seed URL(s) will be skipped\n", dropped)
	}
	return nil
}

// generateTemplate renders a starter configuration as YAML.
func generateTemplate() (string, error) {
	template := config.GenerateTemplate()
	data, err := yaml.Marshal(template)
	if err != nil {
		return "", fmt.Errorf("failed to marshal template: %w", err)
	}
	return string(data), nil
}

// hasFlag checks if a flag is present in command line arguments.
func hasFlag(flag string) bool {
	for _, arg := range os.Args {
		if arg == flag {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Println("RecordHarvester - Structured Record Harvesting Pipeline")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  recordharvester run <config.yaml>        Run a harvest with the given configuration")
	fmt.Println("  recordharvester validate <config.yaml>   Validate a configuration file")
	fmt.Println("  recordharvester template                 Generate a starter configuration")
	fmt.Println("  recordharvester version                  Show version information")
	fmt.Println("  recordharvester help                     Show this help message")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -v, --verbose                            Enable verbose logging")
}

func printVersion() {
	fmt.Printf("RecordHarvester %s\n", version)
	fmt.Printf("Build time: %s\n", buildTime)
	fmt.Printf("Git commit: %s\n", gitCommit)
}
