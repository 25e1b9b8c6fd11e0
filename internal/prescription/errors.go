package prescription

import (
	"errors"
	"fmt"
)

// User facing messages.
const (
	NoTextWarning     = "No text could be extracted from the image."
	ChatFallbackReply = "Sorry, I couldn't process that question."
)

// Pipeline stages reported by AnalysisError.
const (
	StageOCR        = "ocr"
	StageCompletion = "completion"
	StageChat       = "chat"
)

var (
	// ErrNoTextExtracted is returned when OCR finds no text in the image.
	ErrNoTextExtracted = errors.New("no text could be extracted from the image")

	// ErrEmptyQuestion is returned by Ask for blank questions.
	ErrEmptyQuestion = errors.New("question is empty")
)

// AnalysisError reports which collaborator failed.
type AnalysisError struct {
	Stage string
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("prescription: %s stage failed: %v", e.Stage, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage of an AnalysisError in err's chain, or "".
func StageOf(err error) string {
	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return analysisErr.Stage
	}
	return ""
}
