package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"pharmabot/internal/logger"
	"pharmabot/internal/ocr"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [image-file]",
	Short: "Extract the text of a prescription image",
	Long: `Run OCR on a prescription image and print the recognised text.

Recognised lines are joined with single spaces, which is the text the scan
command sends to the model. The engine is selected with OCR_BACKEND:

  tesseract  - local recognition, needs libtesseract and the OCR_LANGUAGE pack (default)
  vision     - Google Cloud Vision document text detection
  documentai - Google Document AI OCR processor

Cloud engines read GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS;
documentai also needs GOOGLE_CLOUD_PROJECT and DOCUMENT_AI_PROCESSOR_ID.`,
	Example: `  # Print the text of a photo
  pharmabot ocr prescription.jpg

  # Include metadata and output as JSON
  pharmabot ocr prescription.png --metadata --json -o result.json

  # Use Google Cloud Vision for this run
  OCR_BACKEND=vision pharmabot ocr prescription.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

// OCROutput represents the JSON output structure when --json flag is used
type OCROutput struct {
	Text               string    `json:"text"`
	Engine             string    `json:"engine,omitempty"`
	Fragments          int       `json:"fragments,omitempty"`
	Confidence         float32   `json:"confidence,omitempty"`
	Width              int       `json:"width,omitempty"`
	Height             int       `json:"height,omitempty"`
	ProcessedAt        time.Time `json:"processed_at,omitempty"`
	ProcessingDuration string    `json:"processing_duration,omitempty"`
	FileName           string    `json:"file_name"`
	FileSize           int64     `json:"file_size"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().BoolP("metadata", "m", false, "Include metadata in output")
	ocrCmd.Flags().Bool("json", false, "Output as JSON")
	ocrCmd.Flags().Duration("timeout", 2*time.Minute, "Processing timeout")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	outputPath, _ := cmd.Flags().GetString("output")
	includeMetadata, _ := cmd.Flags().GetBool("metadata")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	imagePath := args[0]

	log.Info().
		Str("file", imagePath).
		Str("engine", cfg.OCRBackend).
		Bool("metadata", includeMetadata).
		Bool("json", jsonOutput).
		Dur("timeout", timeout).
		Msg("Starting OCR processing")

	fileInfo, err := validateImageFile(imagePath, log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeout, log)
	defer cancel()

	engine := createOCREngine()
	defer engine.Close()
	ocrService := ocr.NewImageOCRService(engine)

	imageFile, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("failed to open image file: %w", err)
	}
	defer imageFile.Close()

	result, err := ocrService.ExtractTextWithMetadata(ctx, imageFile)
	if err != nil {
		return handleOCRError(err, log)
	}

	data, err := formatOCRResult(result, fileInfo, jsonOutput, includeMetadata)
	if err != nil {
		return err
	}
	return writeOutput(data, outputPath, log)
}

// formatOCRResult renders the result as JSON or text
func formatOCRResult(result *ocr.OCRResult, fileInfo os.FileInfo, jsonOutput, includeMetadata bool) ([]byte, error) {
	if jsonOutput {
		out := OCROutput{
			Text:     result.Text,
			FileName: filepath.Base(fileInfo.Name()),
			FileSize: fileInfo.Size(),
		}
		if includeMetadata {
			out.Engine = result.Engine
			out.Fragments = result.Fragments
			out.Confidence = result.Confidence
			out.Width = result.Width
			out.Height = result.Height
			out.ProcessedAt = result.ProcessedAt
			out.ProcessingDuration = result.ProcessingDuration.String()
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to create JSON output: %w", err)
		}
		return append(data, '\n'), nil
	}

	var output strings.Builder
	if includeMetadata {
		output.WriteString(fmt.Sprintf("=== OCR Results for %s ===\n", filepath.Base(fileInfo.Name())))
		output.WriteString(fmt.Sprintf("File size: %d bytes\n", fileInfo.Size()))
		output.WriteString(fmt.Sprintf("Image: %dx%d\n", result.Width, result.Height))
		output.WriteString(fmt.Sprintf("Engine: %s (%d fragments)\n", result.Engine, result.Fragments))
		if result.Confidence > 0 {
			output.WriteString(fmt.Sprintf("Confidence: %.1f%%\n", result.Confidence*100))
		}
		output.WriteString(fmt.Sprintf("Processing time: %v\n", result.ProcessingDuration))
		output.WriteString("\n=== Extracted Text ===\n\n")
	}
	output.WriteString(result.Text)
	output.WriteString("\n")
	return []byte(output.String()), nil
}

// openImage validates and opens an image for the pipeline commands
func openImage(imagePath string, log zerolog.Logger) (*os.File, error) {
	if _, err := validateImageFile(imagePath, log); err != nil {
		return nil, err
	}
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	return f, nil
}
