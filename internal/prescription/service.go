package prescription

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"pharmabot/internal/llm"
	"pharmabot/internal/logger"
	"pharmabot/internal/ocr"
	"pharmabot/pkg/models"
)

// Analysis is the outcome of one pipeline run.
type Analysis struct {
	ID            string                    `json:"id"`
	ExtractedText string                    `json:"extracted_text"`
	OCR           *ocr.OCRResult            `json:"ocr,omitempty"`
	Prompt        string                    `json:"-"`
	Completion    string                    `json:"completion"`
	Record        models.PrescriptionRecord `json:"record"`
	Duration      time.Duration             `json:"duration"`
}

// Analyzer runs images or text through OCR, the model and the parser.
type Analyzer interface {
	// Analyze reads an image and returns its structured record.
	Analyze(ctx context.Context, image io.Reader) (*Analysis, error)

	// AnalyzeText skips OCR and starts from already extracted text.
	AnalyzeText(ctx context.Context, text string) (*Analysis, error)

	// Ask forwards a free-form question to the model.
	Ask(ctx context.Context, question string) (string, error)
}

// DefaultAnalyzer implements Analyzer.
type DefaultAnalyzer struct {
	ocrService ocr.OCRService
	completer  llm.Completer
	log        zerolog.Logger
}

// NewAnalyzer creates an analyzer with explicit collaborators. ocrService may
// be nil when only AnalyzeText and Ask are used.
func NewAnalyzer(ocrService ocr.OCRService, completer llm.Completer) *DefaultAnalyzer {
	return &DefaultAnalyzer{
		ocrService: ocrService,
		completer:  completer,
		log:        logger.WithComponent("prescription"),
	}
}

// Analyze reads an image and returns its structured record.
func (a *DefaultAnalyzer) Analyze(ctx context.Context, image io.Reader) (*Analysis, error) {
	start := time.Now()
	id := uuid.NewString()
	log := a.log.With().Str("analysis_id", id).Logger()

	if a.ocrService == nil {
		return nil, &AnalysisError{Stage: StageOCR, Err: ocr.ErrInvalidConfiguration}
	}

	result, err := a.ocrService.ExtractTextWithMetadata(ctx, image)
	if err != nil {
		if errors.Is(err, ocr.ErrEmptyDocument) {
			log.Warn().Msg(NoTextWarning)
			return nil, ErrNoTextExtracted
		}
		log.Error().Err(err).Msg("Text extraction failed")
		return nil, &AnalysisError{Stage: StageOCR, Err: err}
	}

	analysis, err := a.analyze(ctx, id, result.Text)
	if err != nil {
		return nil, err
	}
	analysis.OCR = result
	analysis.Duration = time.Since(start)

	log.Info().
		Str("engine", result.Engine).
		Int("patient_fields", analysis.Record.Patient.Len()).
		Int("medications", len(analysis.Record.Medications)).
		Dur("duration", analysis.Duration).
		Msg("Prescription analyzed")

	return analysis, nil
}

// AnalyzeText skips OCR and starts from already extracted text.
func (a *DefaultAnalyzer) AnalyzeText(ctx context.Context, text string) (*Analysis, error) {
	start := time.Now()
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoTextExtracted
	}

	analysis, err := a.analyze(ctx, uuid.NewString(), strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}
	analysis.Duration = time.Since(start)
	return analysis, nil
}

func (a *DefaultAnalyzer) analyze(ctx context.Context, id, text string) (*Analysis, error) {
	prompt := BuildPrompt(text)

	completion, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		a.log.Error().Err(err).Str("analysis_id", id).Msg("Error getting structured data from model")
		return nil, &AnalysisError{Stage: StageCompletion, Err: err}
	}

	record := Parse(completion)
	if record.IsEmpty() {
		a.log.Warn().
			Str("analysis_id", id).
			Int("completion_length", len(completion)).
			Msg("Model reply did not contain the requested layout")
	}

	return &Analysis{
		ID:            id,
		ExtractedText: text,
		Prompt:        prompt,
		Completion:    completion,
		Record:        record,
	}, nil
}

// Ask forwards a free-form question to the model. There is no chat memory:
// every question is sent on its own.
func (a *DefaultAnalyzer) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}

	answer, err := a.completer.Complete(ctx, question)
	if err != nil {
		a.log.Error().Err(err).Msg("Error in chatbot response")
		return "", &AnalysisError{Stage: StageChat, Err: err}
	}
	return answer, nil
}
