// Roost is a terminal dashboard for a poultry-house controller.
//
// It polls the controller's state endpoint, shows the automation flag and
// each device, and sends toggle commands. While automation is on, manual
// device control is locked.
//
// Usage:
//
//	roost [command] [flags]
//
// Running without a command opens the dashboard.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/roost/internal/app"
	"github.com/five82/roost/internal/version"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "roost: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "roost",
	Short: "Poultry-house controller dashboard",
	Long: `A terminal dashboard for a poultry-house controller.

Shows the automation flag and every device (belt, fan, light, feeder and
water pump), keeps them in sync with the controller, and sends toggle
commands. Manual device control is locked while automation is on.`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Run(cmd.Context(), options())
	},
}

// Global flags
var (
	configPath    string
	controllerURL string
	pollInterval  time.Duration
	logLevel      string
)

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/roost/config.toml)")
	rootCmd.PersistentFlags().StringVar(&controllerURL, "controller", "", "controller address, overrides controller_url")
	rootCmd.PersistentFlags().DurationVar(&pollInterval, "poll", 0, "poll interval, overrides poll_interval")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func options() app.Options {
	return app.Options{
		ConfigPath:    configPath,
		ControllerURL: controllerURL,
		PollInterval:  pollInterval,
		LogLevel:      logLevel,
	}
}
