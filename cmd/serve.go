package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hlsproxy/work/auth"
	"hlsproxy/work/config"
	"hlsproxy/work/handlers"
	"hlsproxy/work/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Options{Level: cfg.LogLevel, LogFile: cfg.LogFile})
	defer logger.Sync()

	sp, gateway, err := buildProxy(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := gateway.Close(); err != nil {
			logger.Error("{cmd/serve - runServe} failed to close cache: %v", err)
		}
	}()

	if cfg.Password == "" {
		logger.Warn("{cmd/serve - runServe} PASSWORD is not set, every proxy request will be rejected")
	}

	router := handlers.NewRouter(sp, auth.New(cfg.Password, cfg.AuthMaxAge))
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Starting HLS Proxy %s", Version)
	logger.Info("Server configuration:")
	logger.Info("  - Listen Address: %s", cfg.ListenAddr)
	logger.Info("  - Cache Backend: %s", cfg.CacheBackend)
	logger.Info("  - Cache TTL: %s", cfg.CacheTTL())
	logger.Info("  - Max. Recursion: %d", cfg.MaxRecursion)
	logger.Info("  - User Agents: %d", len(cfg.UserAgents))
	logger.Info("  - Upstream Retries: %d", cfg.UpstreamMaxRetries)
	logger.Info("  - Upstream Rate Limit: %d req/sec per host", cfg.UpstreamRateLimit)
	logger.Info("  - Gzip Enabled: %v", cfg.Gzip)
	logger.Info("  - Log Level: %s", cfg.LogLevel)
	logger.Info("  - URL Obfuscation: %v", cfg.ObfuscateUrls)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("{cmd/serve - runServe} shutdown requested, draining for up to %s", cfg.ShutdownGraceDuration)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGraceDuration)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("{cmd/serve - runServe} graceful shutdown failed: %v", err)
		return err
	}

	logger.Info("{cmd/serve - runServe} server stopped")
	return nil
}
