// Package main is the entry point for the PicStash image storage server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/picstash/picstash/internal/config"
	"github.com/picstash/picstash/internal/index"
	"github.com/picstash/picstash/internal/logging"
	"github.com/picstash/picstash/internal/metrics"
	"github.com/picstash/picstash/internal/server"
	"github.com/picstash/picstash/internal/storage"
)

func main() {
	configPath := flag.String("config", "picstash.yaml", "path to configuration file")
	port := flag.Int("port", 0, "override listening port (default: from config or 3001)")
	host := flag.String("host", "", "override listening host (default: from config or 0.0.0.0)")
	domain := flag.String("domain", "", "override public base URL used in object URLs")
	apiKey := flag.String("api-key", "", "override the upload/delete API key")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (default: from config or info)")
	logFormat := flag.String("log-format", "", "log format: text, json (default: from config or text)")
	shutdownTimeout := flag.Int("shutdown-timeout", 0, "graceful shutdown timeout in seconds (default: from config or 30)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Command-line flags override config file values.
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *domain != "" {
		cfg.Server.Domain = *domain
	}
	if *apiKey != "" {
		cfg.Auth.APIKey = *apiKey
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if *shutdownTimeout != 0 {
		cfg.Server.ShutdownTimeout = *shutdownTimeout
	}

	// Initialize structured logging.
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	if cfg.InsecureAPIKey() {
		slog.Warn("auth.api_key is still the shipped placeholder; set a real secret before exposing this server")
	}

	if cfg.Observability.Metrics {
		metrics.Register()
	}

	ctx := context.Background()

	backend, err := buildBackend(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize storage backend: %v\n", err)
		os.Exit(1)
	}

	// Namespace directories are created up front so first uploads never race
	// on anything slower than MkdirAll.
	for _, ns := range cfg.Namespaces {
		if err := backend.EnsureNamespace(ctx, ns); err != nil {
			fmt.Fprintf(os.Stderr, "failed to prepare namespace %q: %v\n", ns, err)
			os.Exit(1)
		}
	}

	idx, err := buildIndex(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize upload index: %v\n", err)
		os.Exit(1)
	}
	if idx != nil {
		defer idx.Close()
		// Crash-only recovery: rebuild the advisory index from what storage
		// actually holds, on every boot.
		reconcileIndex(ctx, backend, idx, cfg.Namespaces)
	}

	srv, err := server.New(cfg,
		server.WithBackend(backend),
		server.WithIndex(idx),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create server: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	// Start the server in a goroutine so we can handle shutdown signals.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("PicStash listening", "addr", addr, "domain", cfg.Server.Domain, "namespaces", cfg.Namespaces)
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// SIGTERM/SIGINT handler: stop accepting connections, wait for in-flight
	// requests with a timeout, then exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Received signal, shutting down", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown error", "error", err)
		}
		slog.Info("Server stopped")

	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}
}

// buildBackend constructs the configured storage backend.
func buildBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "memory":
		slog.Info("Storage backend initialized", "backend", "memory")
		return storage.NewMemoryBackend(), nil

	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
		b, err := storage.NewSQLiteBackend(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage backend initialized", "backend", "sqlite", "path", cfg.Storage.SQLite.Path)
		return b, nil

	case "s3":
		s3cfg := cfg.Storage.S3
		if s3cfg.Bucket == "" {
			return nil, fmt.Errorf("storage.s3.bucket is required when backend is 's3'")
		}
		b, err := storage.NewS3Backend(ctx, storage.S3Options{
			Bucket:          s3cfg.Bucket,
			Region:          s3cfg.Region,
			Prefix:          s3cfg.Prefix,
			EndpointURL:     s3cfg.EndpointURL,
			UsePathStyle:    s3cfg.UsePathStyle,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("Storage backend initialized", "backend", "s3", "bucket", s3cfg.Bucket, "region", s3cfg.Region, "prefix", s3cfg.Prefix)
		return b, nil

	case "gcs":
		gcsCfg := cfg.Storage.GCS
		if gcsCfg.Bucket == "" {
			return nil, fmt.Errorf("storage.gcs.bucket is required when backend is 'gcs'")
		}
		b, err := storage.NewGCSBackend(ctx, gcsCfg.Bucket, gcsCfg.Project, gcsCfg.Prefix)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage backend initialized", "backend", "gcs", "bucket", gcsCfg.Bucket, "project", gcsCfg.Project, "prefix", gcsCfg.Prefix)
		return b, nil

	case "azure":
		azCfg := cfg.Storage.Azure
		if azCfg.Container == "" {
			return nil, fmt.Errorf("storage.azure.container is required when backend is 'azure'")
		}
		accountURL := azCfg.AccountURL
		if accountURL == "" {
			if azCfg.Account == "" {
				return nil, fmt.Errorf("storage.azure.account or storage.azure.account_url is required when backend is 'azure'")
			}
			accountURL = fmt.Sprintf("https://%s.blob.core.windows.net", azCfg.Account)
		}
		b, err := storage.NewAzureBackend(ctx, azCfg.Container, accountURL, azCfg.Prefix)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage backend initialized", "backend", "azure", "container", azCfg.Container, "account", accountURL, "prefix", azCfg.Prefix)
		return b, nil

	default:
		b, err := storage.NewLocalBackend(cfg.Storage.Local.RootDir)
		if err != nil {
			return nil, err
		}
		// Crash-only recovery: clean orphan temp files from incomplete writes.
		if err := b.CleanTempFiles(); err != nil {
			slog.Warn("Failed to clean temp files", "error", err)
		}
		slog.Info("Storage backend initialized", "backend", "local", "root", cfg.Storage.Local.RootDir)
		return b, nil
	}
}

// buildIndex constructs the configured upload index, or nil when disabled.
func buildIndex(cfg *config.Config) (index.Store, error) {
	switch cfg.Index.Engine {
	case "none":
		return nil, nil
	case "memory":
		return index.NewMemoryStore(), nil
	default:
		return index.NewSQLiteStore(cfg.Index.SQLite.Path)
	}
}

// reconcileIndex rebuilds the advisory index from a storage listing. Index
// failures are logged and ignored; the backend stays authoritative.
func reconcileIndex(ctx context.Context, backend storage.Backend, idx index.Store, namespaces []string) {
	for _, ns := range namespaces {
		names, err := backend.List(ctx, ns)
		if err != nil {
			slog.Warn("Failed to list namespace for index reconciliation", "namespace", ns, "error", err)
			continue
		}
		if err := idx.ReplaceNamespace(ctx, ns, names); err != nil {
			slog.Warn("Failed to reconcile upload index", "namespace", ns, "error", err)
			continue
		}
		slog.Info("Upload index reconciled", "namespace", ns, "objects", len(names))
	}
}
