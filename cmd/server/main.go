package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "tasknest",
		Short:   "tasknest - tasks, todos and recurring items on one calendar",
		Version: Version,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("TASKNEST_CONFIG"), "YAML config file (optional)")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(notifyNowCmd(&configPath))
	rootCmd.AddCommand(projectCmd(&configPath))
	rootCmd.AddCommand(seedCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
