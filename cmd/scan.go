package cmd

import (
	"bytes"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"pharmabot/internal/logger"
	"pharmabot/internal/ocr"
	"pharmabot/internal/prescription"
	"pharmabot/internal/render"
)

var scanCmd = &cobra.Command{
	Use:   "scan [image-file]",
	Short: "Read a prescription image into patient and medication tables",
	Long: `Run the full pipeline on a prescription image: OCR, the structured-layout
prompt, the model call and the parser. The record is printed as tables by
default.

Output formats:
  table - patient and medication tables (default)
  json  - the record with labels in reading order
  xlsx  - a workbook with "Patient Information" and "Medications" sheets
  text  - the record re-serialised in the layout the model was asked for

Requires GOOGLE_API_KEY (LLM_PROVIDER=gemini) or OPENAI_API_KEY (LLM_PROVIDER=openai).`,
	Example: `  # Print tables
  pharmabot scan prescription.jpg

  # Save a spreadsheet
  pharmabot scan prescription.jpg --format xlsx -o prescription.xlsx

  # Show the OCR text and the raw model reply as well
  pharmabot scan prescription.jpg --show-text --show-completion`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("format", "f", render.FormatTable, "Output format: table, json, xlsx, text")
	scanCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	scanCmd.Flags().Duration("timeout", 2*time.Minute, "Processing timeout")
	scanCmd.Flags().Bool("show-text", false, "Print the extracted text before the record")
	scanCmd.Flags().Bool("show-completion", false, "Print the model reply before the record")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan")

	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	showText, _ := cmd.Flags().GetBool("show-text")
	showCompletion, _ := cmd.Flags().GetBool("show-completion")

	if !validFormat(format) {
		return fmt.Errorf("unknown format %q (want one of %v)", format, render.Formats)
	}

	completer, err := createCompletionClient(log)
	if err != nil {
		return err
	}

	imageFile, err := openImage(args[0], log)
	if err != nil {
		return err
	}
	defer imageFile.Close()

	ctx, cancel := createContextWithTimeout(timeout, log)
	defer cancel()

	engine := createOCREngine()
	defer engine.Close()
	analyzer := prescription.NewAnalyzer(ocr.NewImageOCRService(engine), completer)

	log.Info().
		Str("file", args[0]).
		Str("engine", engine.Name()).
		Str("model", completer.Model()).
		Msg("Analyzing prescription")

	analysis, err := analyzer.Analyze(ctx, imageFile)
	if err != nil {
		return handleAnalysisError(err, log)
	}

	var out bytes.Buffer
	if showText {
		fmt.Fprintf(&out, "Extracted text:\n%s\n\n", analysis.ExtractedText)
	}
	if showCompletion {
		fmt.Fprintf(&out, "Model reply:\n%s\n\n", analysis.Completion)
	}
	if err := render.Write(&out, format, analysis.Record); err != nil {
		return fmt.Errorf("failed to render record: %w", err)
	}
	return writeOutput(out.Bytes(), outputPath, log)
}

func validFormat(format string) bool {
	for _, f := range render.Formats {
		if format == f {
			return true
		}
	}
	return false
}
