package main

import (
	"fmt"
	"github.com/joho/godotenv"
	"github.com/medcircle/medresident/cmd/cli/play"
	"github.com/medcircle/medresident/cmd/cli/scenarios"
	"github.com/spf13/cobra"
	"os"
)

func init() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	rootCmd.AddGroup(scenarios.Group)
	rootCmd.AddCommand(scenarios.List, scenarios.Show, scenarios.Validate)
	rootCmd.AddGroup(play.Group)
	rootCmd.AddCommand(play.Play)
}

var rootCmd = &cobra.Command{
	Use:  "medresident-cli",
	Long: `Command line utilities for MedRESIDENT clinical decision simulations`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
