package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"pharmabot/internal/config"
	"pharmabot/internal/logger"
)

var version = "1.0.0"

// cfg is set by Execute before any command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pharmabot",
	Short: "Pharmabot - read prescription images into patient and medication tables",
	Long: `Pharmabot extracts the text of a prescription image with OCR, asks a hosted
language model to lay it out as patient information and medications, and renders
the result as tables, JSON or a spreadsheet. A question box forwards free-form
questions to the same model.

Run "pharmabot serve" for the web page, or use the scan, ocr, parse and ask
commands from the terminal.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Debug().
			Str("version", version).
			Msg("Pharmabot CLI executed")

		fmt.Println("Welcome to Pharmabot!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

// Execute runs the root command with the loaded configuration.
func Execute(c *config.Config) {
	log := logger.WithComponent("cmd")
	cfg = c

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
