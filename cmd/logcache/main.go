package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/logcache/internal/cmd/client"
	serverrun "github.com/rzbill/logcache/internal/cmd/server"
	cfgpkg "github.com/rzbill/logcache/internal/config"
	logpkg "github.com/rzbill/logcache/pkg/log"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Respect LMC_LOG_LEVEL for CLI output
	level := os.Getenv("LMC_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := clientcmd.NewRoot(apiURL)
	rootCmd.Short = "logcache: named append-only log cache"
	rootCmd.Long = "logcache keeps per-service logs in memory, serves them over a line protocol and persists them on demand."
	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the logcache server (line protocol, admin HTTP and gRPC health)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.ListenAddr, _ = flags.GetString("listen")
			}
			if flags.Changed("http") {
				cfg.AdminHTTPAddr, _ = flags.GetString("http")
			}
			if flags.Changed("grpc") {
				cfg.GRPCAddr, _ = flags.GetString("grpc")
			}
			if flags.Changed("data-dir") {
				cfg.DataDir, _ = flags.GetString("data-dir")
			}
			if flags.Changed("log-dir") {
				cfg.LogDir, _ = flags.GetString("log-dir")
			}
			if flags.Changed("max-services") {
				cfg.MaxServices, _ = flags.GetInt("max-services")
			}
			if flags.Changed("tracing") {
				cfg.Tracing, _ = flags.GetBool("tracing")
			}
			if v, _ := flags.GetString("log-level"); v != "" {
				_ = os.Setenv("LMC_LOG_LEVEL", v)
			}
			if v, _ := flags.GetString("log-format"); v != "" {
				_ = os.Setenv("LMC_LOG_FORMAT", v)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	f := serverStartCmd.Flags()
	f.String("config", os.Getenv("LMC_CONFIG"), "Config file (.json, .yaml or .yml)")
	f.String("listen", ":5555", "Line-protocol listen address")
	f.String("http", ":8080", "Admin HTTP listen address (empty disables)")
	f.String("grpc", ":50051", "gRPC health listen address (empty disables)")
	f.String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	f.String("log-dir", "", "Directory for service files (default <data-dir>/logs)")
	f.Int("max-services", 64, "Maximum number of cached services")
	f.Bool("tracing", false, "Export traces to stdout")
	f.String("log-level", os.Getenv("LMC_LOG_LEVEL"), "Log level: debug|info|warn|error")
	f.String("log-format", os.Getenv("LMC_LOG_FORMAT"), "Log format: text|json (default text)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("LMC_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
