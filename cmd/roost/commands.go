package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/five82/roost/internal/app"
	"github.com/five82/roost/internal/state"
)

// Command flags
var (
	statusJSON bool
	logLines   int
	logMin     string
)

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print a JSON object instead of text")
	logsCmd.Flags().IntVarP(&logLines, "lines", "n", 50, "number of entries to print (0 for all)")
	logsCmd.Flags().StringVar(&logMin, "level", "", "only entries at or above this level")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(logsCmd)
}

// statusCmd prints one controller snapshot
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current controller state",
	Example: `  # Human-readable
  roost status

  # For scripts
  roost status --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Status(cmd.Context(), options(), os.Stdout, statusJSON)
	},
}

// toggleCmd sends one command through the sync engine
var toggleCmd = &cobra.Command{
	Use:   "toggle <target> <on|off>",
	Short: "Switch a device or automation on or off",
	Long: `Switch a device or the automation flag.

Targets: automation, belt, fan, light, feeder, water.

Device commands are refused while automation is on. Enabling automation
switches every device off afterwards.`,
	Example: `  roost toggle fan on
  roost toggle automation off`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := state.ParseTarget(args[0])
		if err != nil {
			return err
		}
		desired, err := app.ParseSwitch(args[1])
		if err != nil {
			return err
		}
		return app.Toggle(cmd.Context(), options(), target, desired, os.Stdout)
	},
}

// logsCmd prints the end of the dashboard's log file
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print recent entries from the roost log file",
	Example: `  roost logs
  roost logs -n 200 --level warn`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Logs(options(), logLines, logMin, os.Stdout)
	},
}
