package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	noColor   bool
)

var rootCmd = &cobra.Command{
	Use:           "botctl",
	Short:         "Talk to a running campus assistant server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultServer := os.Getenv("BOTCTL_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8000"
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "base URL of the assistant server")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")

	rootCmd.AddCommand(askCmd, feedbackCmd, forwardCmd, historyCmd, healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
