// Command flashsim replays generated or recorded request traces
// against sharded cache policies.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flashsim [command] (flags)",
	Short: "segmented flash cache simulator",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		initZipfCmd(),
		initReplayCmd(),
	)
	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
