package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hlsproxy/work/cache"
	"hlsproxy/work/client"
	"hlsproxy/work/config"
	"hlsproxy/work/proxy"
)

// Version is overridden at build time with -ldflags.
var Version = "v0.1.0"

var configPath string

// rootCmd runs the proxy server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "hlsproxy",
	Short: "HLS reverse proxy that rewrites playlists to route every request through itself",
	Long: `hlsproxy fetches HLS playlists from arbitrary origins, rewrites every key, map and
segment reference to point back at the proxy, and collapses master playlists to their
highest-bandwidth variant. Upstream bodies and resolved variants are cached.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute runs the root command. It is called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (environment variables override it)")
	rootCmd.AddCommand(serveCmd, resolveCmd)
}

// buildProxy wires the cache, fetcher and pipeline from cfg. The returned
// gateway must be closed to flush pending cache writes.
func buildProxy(cfg *config.Config) (*proxy.HLSProxy, *cache.Gateway, error) {
	backend, err := cache.NewBackend(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache backend: %w", err)
	}

	gateway, err := cache.NewGateway(backend, cfg.CacheTTL(), cfg.CacheWriteWorkers)
	if err != nil {
		if backend != nil {
			backend.Close()
		}
		return nil, nil, fmt.Errorf("failed to create cache worker pool: %w", err)
	}

	fetcher := client.New(client.OptionsFromConfig(cfg))
	return proxy.New(cfg, fetcher, gateway), gateway, nil
}
