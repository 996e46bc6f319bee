package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	apiURL  string
	token   string
	output  string
	rootCmd = &cobra.Command{
		Use:   "gateway-cli",
		Short: "AI gateway CLI tool",
		Long:  "Command line interface for the AI completion gateway",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "http://localhost:8081", "API server URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("GATEWAY_TOKEN"), "API bearer token")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "json", "Output format (json or yaml)")

	rootCmd.AddCommand(statusCmd, configCmd, chatCmd, streamCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}
