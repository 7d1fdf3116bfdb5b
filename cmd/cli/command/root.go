package command

// root.go defines the root command for the framechat client.
// set up the global flags here.

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	noColor  bool   // disable colored rendering
	logLevel string // level for connection diagnostics on stderr
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "framechat",
	Short: "framechat - terminal client for the framechat server",
	Long: `framechat connects to a framechat server, registers a display name and
broadcasts every line typed on stdin to everyone in the room.

Use "framechat connect <host> <port>" to join a server.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err) // Print error to standard error
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "error", "diagnostic log level (debug, info, warn, error)")
	rootCmd.SilenceErrors = true
}
