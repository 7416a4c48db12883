// Command webhookpush is the relay's single binary entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	serverrun "github.com/SalindaGunarathna/WebhookPush/internal/cmd/server"
	cfgpkg "github.com/SalindaGunarathna/WebhookPush/internal/config"
	pebblestore "github.com/SalindaGunarathna/WebhookPush/internal/storage/pebble"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "webhookpush",
		Short: "Zero-storage webhook-to-WebPush relay",
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the relay",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			bindAddr, _ := cmd.Flags().GetString("bind")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfgpkg.FromEnv(&cfg)

			if dataDir != "" {
				cfg.DBPath = filepath.Join(dataDir, "subscriptions.db")
				cfg.QueueDBPath = filepath.Join(dataDir, "queue.db")
			}
			if bindAddr != "" {
				cfg.BindAddr = bindAddr
			}
			if fsyncMode != "" {
				cfg.FsyncMode = fsyncMode
			}
			if fsyncIntervalMs > 0 {
				cfg.FsyncIntervalMs = fsyncIntervalMs
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			mode := pebblestore.FsyncModeAlways
			switch cfg.FsyncMode {
			case "", "always":
				mode = pebblestore.FsyncModeAlways
			case "interval":
				mode = pebblestore.FsyncModeInterval
			case "never":
				mode = pebblestore.FsyncModeNever
			default:
				return fmt.Errorf("invalid fsync mode %q; use always|interval|never", cfg.FsyncMode)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return serverrun.Run(ctx, serverrun.Options{Fsync: mode, Config: cfg})
		},
	}
	serverStartCmd.Flags().String("config", "", "Path to a JSON config file layered on top of built-in defaults")
	serverStartCmd.Flags().String("data-dir", "", "Directory to place the subscription and queue Pebble databases in (overrides DB_PATH/QUEUE_DB_PATH)")
	serverStartCmd.Flags().String("bind", "", "HTTP bind address, e.g. 0.0.0.0:3000")
	serverStartCmd.Flags().String("fsync", "", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().Int("fsync-interval-ms", 0, "Group-commit window in ms when --fsync=interval")
	serverStartCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", "", "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
