package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"hlsproxy/work/config"
	"hlsproxy/work/logger"
	"hlsproxy/work/urlcodec"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [URL]",
	Short: "Run one URL through the proxy pipeline and print the result",
	Long: `resolve fetches a URL the way the proxy would, without the HTTP server or
authorization, and prints the rewritten playlist (or the verbatim body for
non-playlist content) to stdout. Logs go to stderr.`,
	Example: `  # Show what a player would receive for a master playlist
  hlsproxy resolve https://example.com/live/master.m3u8`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	target := args[0]
	if !urlcodec.IsAbsolute(target) {
		return fmt.Errorf("URL must start with http:// or https://")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Options{Level: cfg.LogLevel, LogFile: cfg.LogFile, Stderr: true})
	defer logger.Sync()

	sp, gateway, err := buildProxy(cfg)
	if err != nil {
		return err
	}
	defer gateway.Close()

	resp, err := sp.Handle(cmd.Context(), target, http.Header{})
	if err != nil {
		return err
	}

	if !resp.Playlist {
		logger.Info("{cmd/resolve - runResolve} %s is not a playlist (type: %s)", target, resp.ContentType)
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), resp.Body)
	return err
}
