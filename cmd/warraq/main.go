// Package main is the Warraq CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/warraq/warraq/internal/answer"
	"github.com/warraq/warraq/internal/config"
	"github.com/warraq/warraq/internal/embedding"
	"github.com/warraq/warraq/internal/extract"
	"github.com/warraq/warraq/internal/indexer"
	"github.com/warraq/warraq/internal/server"
	"github.com/warraq/warraq/internal/storage"
	"github.com/warraq/warraq/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/warraq/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "version", "--version", "-v":
		fmt.Printf("warraq version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	// API keys may live in a local .env during development.
	_ = godotenv.Load()

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(
		components.Store,
		components.Builder,
		components.Answerer,
		components.Extractor,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// Components holds initialized services.
type Components struct {
	Store     *storage.SQLiteStore
	Embedder  embedding.Embedder
	Builder   *indexer.Builder
	Answerer  *answer.Answerer
	Extractor *extract.Extractor
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var embedder embedding.Embedder
	openaiEmbedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     os.Getenv(cfg.Embedding.APIKeyEnv),
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		// Fall back to the deterministic mock so the service still runs
		// without a key (development only; retrieval quality is degraded).
		logger.Warn("embedding client unavailable, falling back to mock", zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embedder = openaiEmbedder
	}

	var generator answer.Generator
	openaiGenerator, err := answer.NewOpenAIGenerator(answer.OpenAIConfig{
		BaseURL: cfg.Answer.BaseURL,
		APIKey:  os.Getenv(cfg.Answer.APIKeyEnv),
		Model:   cfg.Answer.Model,
		Timeout: time.Duration(cfg.Answer.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		logger.Warn("answer client unavailable, falling back to mock", zap.Error(err))
		generator = answer.NewMockGenerator()
	} else {
		generator = openaiGenerator
	}

	builderOpts := []indexer.BuilderOption{}
	answererOpts := []answer.AnswererOption{}
	if debug {
		builderOpts = append(builderOpts, indexer.WithLogger(logger))
		answererOpts = append(answererOpts, answer.WithLogger(logger))
	}
	builder := indexer.NewBuilder(
		embedder,
		cfg.Search.ChunkSize,
		cfg.Search.ChunkOverlap,
		cfg.Storage.IndexPath,
		builderOpts...,
	)
	answerer := answer.NewAnswerer(embedder, generator, cfg.Search.TopK, answererOpts...)

	return &Components{
		Store:     store,
		Embedder:  embedder,
		Builder:   builder,
		Answerer:  answerer,
		Extractor: extract.NewExtractor(),
	}, nil
}

func printUsage() {
	fmt.Println(`warraq - Document question answering over uploaded files

Usage:
  warraq server [flags]    Start the HTTP server
  warraq version           Show version
  warraq help              Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/warraq/config.yaml)
  --debug            Enable debug logging

The server expects an OpenAI-compatible API key in the environment variable
named by embedding.api_key_env / answer.api_key_env (default OPENAI_API_KEY).
A local .env file is loaded if present.

Endpoints:
  POST /upload      Upload documents (multipart "files") and rebuild the index
  POST /ask         Ask a question: {"query": "..."}
  POST /login       {"username", "password"}
  POST /register    {"username", "password", "role"}
  GET  /users       List registered users
  GET  /documents   List uploaded files
  GET  /health      Health check`)
}
