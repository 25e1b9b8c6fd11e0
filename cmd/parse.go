package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"pharmabot/internal/logger"
	"pharmabot/internal/prescription"
	"pharmabot/internal/render"
)

var parseCmd = &cobra.Command{
	Use:   "parse [reply-file]",
	Short: "Parse a saved model reply into a prescription record",
	Long: `Parse text in the "Patient Information:" / "Medications:" layout and render
the record. Reads the file argument, or stdin when it is omitted or "-".

No OCR and no model call is made, so no credentials are needed.`,
	Example: `  # Render a saved reply as tables
  pharmabot parse reply.txt

  # Convert to JSON from stdin
  cat reply.txt | pharmabot parse --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringP("format", "f", render.FormatTable, "Output format: table, json, xlsx, text")
	parseCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runParse(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("parse")

	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	if !validFormat(format) {
		return fmt.Errorf("unknown format %q (want one of %v)", format, render.Formats)
	}

	var input io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open reply file: %w", err)
		}
		defer f.Close()
		input = f
	}

	text, err := io.ReadAll(input)
	if err != nil {
		return fmt.Errorf("failed to read reply: %w", err)
	}

	record := prescription.Parse(string(text))
	log.Debug().
		Int("patient_fields", record.Patient.Len()).
		Int("medications", len(record.Medications)).
		Msg("Reply parsed")

	var out bytes.Buffer
	if err := render.Write(&out, format, record); err != nil {
		return fmt.Errorf("failed to render record: %w", err)
	}
	return writeOutput(out.Bytes(), outputPath, log)
}
