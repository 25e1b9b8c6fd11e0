package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"pharmabot/internal/llm"
	"pharmabot/internal/ocr"
	"pharmabot/internal/prescription"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// validateImageFile checks if the file exists, is readable, and is small enough
func validateImageFile(imagePath string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(imagePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().
				Str("file", imagePath).
				Msg("Image file not found")
			return nil, fmt.Errorf("image file not found: %s", imagePath)
		}
		if os.IsPermission(err) {
			log.Error().
				Str("file", imagePath).
				Msg("Permission denied accessing image file")
			return nil, fmt.Errorf("permission denied accessing image file: %s", imagePath)
		}
		return nil, fmt.Errorf("error accessing image file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("path is not a regular file: %s", imagePath)
	}

	ext := strings.ToLower(filepath.Ext(imagePath))
	known := false
	for _, e := range imageExtensions {
		if ext == e {
			known = true
		}
	}
	if !known {
		log.Warn().
			Str("file", imagePath).
			Msg("File does not have an image extension")
	}

	if fileInfo.Size() == 0 {
		return nil, fmt.Errorf("image file is empty: %s", imagePath)
	}
	if fileInfo.Size() > ocr.MaxImageSizeBytes {
		log.Error().
			Str("file", imagePath).
			Int64("size", fileInfo.Size()).
			Int("max_size", ocr.MaxImageSizeBytes).
			Msg("Image file exceeds maximum size limit")
		return nil, fmt.Errorf("image file too large (%d bytes). Maximum size is %d bytes (20MB)",
			fileInfo.Size(), ocr.MaxImageSizeBytes)
	}

	return fileInfo, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling processing")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// createOCREngine returns the configured engine; construction is deferred to first use.
func createOCREngine() *ocr.LazyEngine {
	return ocr.NewLazyEngineFromConfig(cfg.GetOCRConfig())
}

// createCompletionClient checks credentials and builds the model client
func createCompletionClient(log zerolog.Logger) (*llm.Client, error) {
	if err := cfg.RequireCompletionCredentials(); err != nil {
		log.Error().Err(err).Str("provider", cfg.LLMProvider).Msg("Model credentials not configured")
		return nil, fmt.Errorf("model credentials not configured. Please set one of:\n\n"+
			"1. GOOGLE_API_KEY for LLM_PROVIDER=gemini (default)\n"+
			"2. OPENAI_API_KEY for LLM_PROVIDER=openai\n\n"+
			"You can put them in a .env file next to the binary: %w", err)
	}

	client, err := llm.NewClient(cfg.GetLLMConfig())
	if err != nil {
		log.Error().Err(err).Msg("Failed to create model client")
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	log.Debug().
		Str("provider", client.Provider()).
		Str("model", client.Model()).
		Msg("Model client created")
	return client, nil
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled), errors.Is(err, ocr.ErrContextCanceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("image is too large (maximum 20MB). Try a smaller or compressed photo")
	case errors.Is(err, ocr.ErrInvalidImage):
		return fmt.Errorf("invalid or unsupported image. Use a JPEG or PNG photo of the prescription")
	case errors.Is(err, ocr.ErrEmptyDocument):
		return fmt.Errorf("%s", prescription.NoTextWarning)
	case errors.Is(err, ocr.ErrUnknownEngine), errors.Is(err, ocr.ErrInvalidConfiguration):
		return fmt.Errorf("OCR engine is not configured correctly (OCR_BACKEND=%s): %w", cfg.OCRBackend, err)
	case errors.Is(err, ocr.ErrMissingCredentials),
		strings.Contains(errStr, "Unauthenticated"),
		strings.Contains(errStr, "invalid_grant"),
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Please check your credentials:\n\n"+
			"1. Set GOOGLE_APPLICATION_CREDENTIALS to your service account JSON file path\n"+
			"2. Or set GOOGLE_CREDENTIALS with inline JSON credentials\n"+
			"3. Or use OCR_BACKEND=tesseract for local recognition\n\n"+
			"Original error: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure your service account may call the %s API", cfg.OCRBackend)
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "quota"):
		return fmt.Errorf("OCR API quota exceeded. Check your project quotas in the Google Cloud Console")
	case errors.Is(err, ocr.ErrOCRFailed):
		return fmt.Errorf("OCR processing failed. This may be due to network issues or a missing tesseract language pack: %w", err)
	default:
		return fmt.Errorf("OCR processing failed: %w", err)
	}
}

// handleAnalysisError translates pipeline errors by stage
func handleAnalysisError(err error, log zerolog.Logger) error {
	switch {
	case errors.Is(err, prescription.ErrNoTextExtracted):
		log.Warn().Msg(prescription.NoTextWarning)
		return fmt.Errorf("%s", prescription.NoTextWarning)
	case prescription.StageOf(err) == prescription.StageOCR:
		return handleOCRError(err, log)
	}

	log.Error().Err(err).Msg("Model request failed")

	errStr := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("model request timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("model request was canceled")
	case errors.Is(err, llm.ErrNoChoices):
		return fmt.Errorf("the model returned an empty answer. Please try again")
	case strings.Contains(errStr, "401") || strings.Contains(errStr, "API key"):
		return fmt.Errorf("the model rejected the API key. Check GOOGLE_API_KEY or OPENAI_API_KEY: %w", err)
	case strings.Contains(errStr, "429") || strings.Contains(strings.ToLower(errStr), "quota"):
		return fmt.Errorf("model quota exceeded. Wait a moment or raise LLM_MAX_RETRIES: %w", err)
	case prescription.StageOf(err) == prescription.StageChat:
		return fmt.Errorf("%s (%w)", prescription.ChatFallbackReply, err)
	default:
		return fmt.Errorf("error getting structured data from the model: %w", err)
	}
}

// writeOutput writes data to path, or stdout when path is empty
func writeOutput(data []byte, outputPath string, log zerolog.Logger) error {
	if outputPath == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(data)).
		Msg("Results written to file")
	return nil
}
