// Package cli implements the shipper command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/shipper"
	"github.com/meigma/shipper/cmd/shipper/cli/config"
	"github.com/meigma/shipper/internal/transport"
)

// Build information set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "shipper",
	Short: "Publish CI build artifacts",
	Long: `Shipper publishes a compiled build after a CI run.

It compresses the build output directory into one archive and uploads it to
the configured providers: GitHub release pages, file hosts, IPFS pinning
services, private relays, OCI registries and S3-compatible storage. The
aggregated result is printed to stdout as JSON.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $XDG_CONFIG_HOME/shipper/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose debug logging")
	rootCmd.PersistentFlags().String("progress", "auto", "Progress output (auto, tty, plain)")
	//nolint:errcheck // flag is defined above
	viper.BindPFlag("progress", rootCmd.PersistentFlags().Lookup("progress"))
	//nolint:errcheck // flag is defined above
	rootCmd.RegisterFlagCompletionFunc("progress", completeProgressModes)
	rootCmd.Version = version
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
	}
	return err
}

// initConfig reads the config file, if any, and binds the environment.
func initConfig() error {
	if err := config.Setup(viper.GetViper()); err != nil {
		return err
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// newLogger returns the stderr logger. Info and above by default, debug
// with --verbose.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// signalContext returns a context that is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// formatError converts shipper errors to user-friendly messages naming the
// stage that failed.
func formatError(err error) string {
	if err == nil {
		return ""
	}

	var statusErr *transport.StatusError
	switch {
	case errors.Is(err, shipper.ErrNoRelease):
		return "Error: cannot determine release (set GITHUB_REF or GITHUB_SHA)"
	case errors.Is(err, shipper.ErrNoSecret):
		return "Error: early release requires an encryption secret (set SHIPPER_SECRET)"
	case errors.Is(err, shipper.ErrRegistryExhausted):
		return fmt.Sprintf("Error: release page: %v", err)
	case errors.Is(err, shipper.ErrUnauthorized):
		return fmt.Sprintf("Error: authentication failed (check your credentials): %v", err)
	case errors.Is(err, shipper.ErrUnknownProvider):
		return fmt.Sprintf("Error: config: %v", err)
	case errors.As(err, &statusErr):
		return fmt.Sprintf("Error: remote returned %d: %v", statusErr.StatusCode, err)
	case errors.Is(err, context.Canceled):
		return "Error: operation canceled"
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
