package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey is returned when the provider's API key is not configured.
	ErrMissingAPIKey = errors.New("missing LLM API key: set GOOGLE_API_KEY (gemini) or OPENAI_API_KEY (openai)")

	// ErrUnknownProvider is returned for an LLM_PROVIDER value no client answers to.
	ErrUnknownProvider = errors.New("unknown LLM provider")

	// ErrNoChoices is returned when the model answers without any choice.
	ErrNoChoices = errors.New("no response choices from model")

	// ErrCompletionFailed is returned when every attempt failed.
	ErrCompletionFailed = errors.New("completion failed")
)

// CompletionError wraps errors with the operation that produced them.
type CompletionError struct {
	Op      string
	Err     error
	Details string
}

func (e *CompletionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("llm: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("llm: %s failed: %v", e.Op, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// WrapCompletionError wraps err as a CompletionError if it isn't already one.
func WrapCompletionError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var completionErr *CompletionError
	if errors.As(err, &completionErr) {
		return err
	}
	return &CompletionError{Op: op, Err: err, Details: details}
}
