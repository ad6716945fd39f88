package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/engrave-prep-mcp/internal/config"
	"github.com/ironsheep/engrave-prep-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const logLevelEnv = "ENGRAVE_MCP_LOG_LEVEL"

func main() {
	showVersion := flag.Bool("version", false, "Print version information")
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	logLevel := flag.String("log-level", "", "Log level (trace, debug, info, warn, error). Overrides "+logLevelEnv+" and the config file")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("engrave-prep-mcp %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "engrave-prep-mcp: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	level := cfg.LogLevel
	if env := os.Getenv(logLevelEnv); env != "" {
		level = env
	}
	if *logLevel != "" {
		level = *logLevel
	}

	logger, err := initLogger(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engrave-prep-mcp: %v\n", err)
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{
		"version":  Version,
		"built":    BuildTime,
		"commit":   GitCommit,
		"config":   *configPath,
		"debounce": cfg.Debounce,
	}).Info("Starting engrave-prep MCP server")

	server.Version = Version
	srv := server.New(cfg, logger)
	defer srv.Close()

	if err := srv.Run(); err != nil {
		logger.WithError(err).Fatal("Server error")
	}
	logger.Info("Input closed, shutting down")
}

// initLogger writes to stderr; stdout is reserved for the MCP protocol.
func initLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(lvl)
	if lvl >= logrus.DebugLevel {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	return logger, nil
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "engrave-prep-mcp - MCP server that prepares photos for laser engraving")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: engrave-prep-mcp [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	flag.PrintDefaults()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Environment variables:")
	fmt.Fprintf(out, "  %s=debug    Enable debug logging\n", logLevelEnv)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "This server communicates via MCP protocol over stdin/stdout.")
	fmt.Fprintln(out, "Configure it in your MCP client.")
}
