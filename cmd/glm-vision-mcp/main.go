package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/glm-vision-mcp/internal/config"
	"github.com/ironsheep/glm-vision-mcp/internal/imaging"
	"github.com/ironsheep/glm-vision-mcp/internal/logging"
	"github.com/ironsheep/glm-vision-mcp/internal/server"
	"github.com/ironsheep/glm-vision-mcp/internal/vision"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("glm-vision-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	// stdout is reserved for the MCP protocol
	log.SetOutput(os.Stderr)

	if err := run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.Info("starting glm-vision-mcp",
		"version", Version, "build_time", BuildTime, "commit", GitCommit)
	logger.Debug("configuration", "settings", cfg.Summary())

	validator := imaging.NewValidator(cfg.MaxImageSize)
	validator.MaxPixels = cfg.MaxImagePixels
	transcoder := imaging.NewTranscoder(validator, cfg.MaxImageDimension, cfg.ImageQuality)

	// A failed client leaves the server running; every call then reports
	// that the vision client is not initialized.
	var analyzer server.Analyzer
	client, err := vision.NewClient(cfg, logger.Logger)
	if err != nil {
		logger.Error("vision client unavailable", "error", err)
	} else {
		analyzer = client
		logger.Info("vision client ready", "model", client.Model(), "api_base", cfg.APIBase)
	}

	inv := server.NewInvoker(validator, transcoder, analyzer, logger.Logger)
	srv := server.New(inv, server.Options{
		Version:            Version,
		MaxConcurrentCalls: cfg.MaxConcurrentCalls,
		Logger:             logger.Logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

func printHelp() {
	fmt.Println("glm-vision-mcp - MCP server for image analysis with GLM vision models")
	fmt.Println()
	fmt.Println("Usage: glm-vision-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  GLM_API_KEY              API key for the vision service (required)")
	fmt.Printf("  GLM_API_BASE             API base URL (default %s)\n", config.DefaultAPIBase)
	fmt.Printf("  GLM_IMAGE_MODEL          Vision model (default %s)\n", config.DefaultImageModel)
	fmt.Printf("  GLM_REQUEST_TIMEOUT      Per-call timeout (default %s, 0 disables)\n", config.DefaultRequestTimeout)
	fmt.Printf("  MAX_IMAGE_SIZE_MB        Largest accepted file (default %d)\n", config.DefaultMaxImageSizeMB)
	fmt.Printf("  MAX_IMAGE_PIXELS         Largest accepted width*height (default %d)\n", config.DefaultMaxImagePixels)
	fmt.Printf("  MAX_IMAGE_DIMENSION      Longest side after resizing (default %d)\n", config.DefaultMaxImageDimension)
	fmt.Printf("  IMAGE_QUALITY            JPEG quality 1-100 (default %d)\n", config.DefaultImageQuality)
	fmt.Printf("  MAX_CONCURRENT_CALLS     Tool calls run at once (default %d)\n", config.DefaultMaxConcurrentCalls)
	fmt.Println("  LOG_LEVEL=debug          Enable debug logging")
	fmt.Println("  LOG_FILE                 Also append logs to this file")
	fmt.Println("  REQUIRE_ENV_VARS=false   Load .env files before reading the environment")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}
