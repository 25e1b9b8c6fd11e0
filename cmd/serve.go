package cmd

import (
	"github.com/spf13/cobra"
	"pharmabot/internal/logger"
	"pharmabot/internal/ocr"
	"pharmabot/internal/prescription"
	"pharmabot/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Pharmabot web page and JSON API",
	Long: `Start the HTTP server: an upload form for prescription images with the
resulting tables, a question box, and a JSON API under /api/v1.

The OCR engine is created on the first upload and shared by all requests.`,
	Example: `  pharmabot serve
  pharmabot serve --port 8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("port", "", "Listen port (default: PORT or 8501)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	// missing credentials are fatal before the server accepts requests
	completer, err := createCompletionClient(log)
	if err != nil {
		return err
	}

	engine := createOCREngine()
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close OCR engine")
		}
	}()

	analyzer := prescription.NewAnalyzer(ocr.NewImageOCRService(engine), completer)
	server := web.NewServer(analyzer, web.Options{
		Address:        cfg.Address(),
		BodyLimit:      cfg.BodyLimit,
		RequestTimeout: cfg.RequestTimeout,
	})

	log.Info().
		Str("addr", cfg.Address()).
		Str("ocr_engine", engine.Name()).
		Str("model", completer.Model()).
		Msg("Pharmabot ready")

	return server.Run()
}
