// Package cli implements the mountfs command-line interface.
// Built with cobra:
// - One storage command line per invocation, or a shell reading many
// - Destructive actions ask for y/n confirmation
// - A scheduled factory reset is applied before any command runs
package cli

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose   bool
	quiet     bool
	configDir string
	dataDir   string
)

// rootCmd is the base command for mountfs.
var rootCmd = &cobra.Command{
	Use:   "mountfs",
	Short: "Command line for mounted storage",
	Long: `mountfs is a command line front end for mounted storage.

Paths start with a mount prefix:
  /int   internal storage
  /ext   external card
  /any   external card when present, internal storage otherwise

Run "mountfs storage" without arguments for the list of storage commands.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return RunPendingReset(cmd.Context())
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if engine == nil {
			return nil
		}
		return engine.Close()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress prompts and notices")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "Directory holding the .env file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Override MOUNTFS_DATA_DIR")

	storageCmd.Flags().SetInterspersed(false)

	rootCmd.AddCommand(storageCmd)
	rootCmd.AddCommand(factoryResetCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(mountsCmd)
}

var storageCmd = &cobra.Command{
	Use:   "storage <cmd> <path> [<args>]",
	Short: "Run one storage command",
	Long: `Run one storage command against the mounts, for example:

  mountfs storage list /ext
  mountfs storage read_chunks /int/log.txt 64
  mountfs storage copy "/ext/my file.txt" /int/copy.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunStorage(cmd.Context(), args)
	},
}

var factoryResetCmd = &cobra.Command{
	Use:   "factory_reset",
	Short: "Wipe internal storage after a restart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunFactoryReset(cmd.Context())
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Read storage and factory_reset lines from stdin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunShell(cmd.Context())
	},
}

var mountsCmd = &cobra.Command{
	Use:   "mounts",
	Short: "List configured mounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunMounts(cmd.Context())
	},
}
