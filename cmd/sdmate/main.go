package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chadiek/sd-mate/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "sdmate",
	Short:         "Timed system design interview practice against a reference article",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newPracticeCmd())
	rootCmd.AddCommand(newArticlesCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sdmate: %v\n", err)
		os.Exit(1)
	}
}

// overrides are flags shared by the commands that run a controller.
type overrides struct {
	backend  string
	voice    bool
	logLevel string
}

func (o *overrides) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.backend, "backend", "", "conversational backend base URL (overrides BACKEND_URL)")
	flags.BoolVar(&o.voice, "voice", false, "start with voice mode on (overrides VOICE_MODE)")
	flags.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
}

func (o *overrides) apply(cmd *cobra.Command, cfg *config.Config) {
	if o.backend != "" {
		cfg.BackendURL = o.backend
	}
	if cmd.Flags().Changed("voice") {
		cfg.VoiceMode = o.voice
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
}
