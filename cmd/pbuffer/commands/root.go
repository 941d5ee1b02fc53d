package commands

import (
	"log/slog"

	"github.com/FerroO2000/pbuffer"
	"github.com/spf13/cobra"
)

const appName = "pbuffer"

// Build information, set at link time.
var (
	version = "dev"
	commit  = "none"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Bounded producer/consumer buffer playground",
	Long: `pbuffer - Runs producers and consumers against a shared bounded buffer.

The buffer is guarded either by a mutex with two condition variables (condvar)
or by a pair of counting semaphores (semaphore). Every producer inserts distinct
items, consumers take them out, and the final report states whether each item
was delivered exactly once.

Examples:
  # Run with the defaults
  pbuffer run

  # Semaphore buffer of capacity 1 with timed operations
  pbuffer run --strategy semaphore --capacity 1 --mode timed --timeout 10ms

  # Load the session from a file, overriding the number of producers
  pbuffer run -f session.yaml --producers 8
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command returns the root cobra command.
func Command() *cobra.Command {
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func initLogging() {
	if verbose {
		pbuffer.SetLogLevel(slog.LevelDebug)
	}
}
