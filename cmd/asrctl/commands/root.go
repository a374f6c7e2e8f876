package commands

import (
	"github.com/spf13/cobra"

	"ai-speech-asr-service/internal/config"
	"ai-speech-asr-service/internal/observability/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "asrctl",
	Short:         "Debugging tool for the speech ASR service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "info"
		if verbose {
			level = "debug"
		}
		logging.Init(logging.Config{Level: level, Format: "console"})
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(healthCmd)
}

// loadConfig returns the service configuration without validating topics,
// which only the publish command needs.
func loadConfig() *config.Configuration {
	return config.Load()
}
