package prescription

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"pharmabot/internal/ocr"
)

type fakeOCR struct {
	text string
	err  error
}

func (f *fakeOCR) ExtractText(ctx context.Context, r io.Reader) (string, error) {
	result, err := f.ExtractTextWithMetadata(ctx, r)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

func (f *fakeOCR) ExtractTextWithMetadata(ctx context.Context, r io.Reader) (*ocr.OCRResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ocr.OCRResult{Text: f.text, Engine: "fake"}, nil
}

type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func TestAnalyze(t *testing.T) {
	completer := &fakeCompleter{reply: wellFormedReply}
	analyzer := NewAnalyzer(&fakeOCR{text: "Jane Doe Amoxicillin 500mg"}, completer)

	analysis, err := analyzer.Analyze(context.Background(), strings.NewReader("image"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(completer.prompts) != 1 {
		t.Fatalf("got %d completion calls, want 1", len(completer.prompts))
	}
	if want := BuildPrompt("Jane Doe Amoxicillin 500mg"); completer.prompts[0] != want {
		t.Errorf("prompt mismatch:\n got %q\nwant %q", completer.prompts[0], want)
	}
	if !analysis.Record.Equal(Parse(wellFormedReply)) {
		t.Errorf("record does not match parsed completion")
	}
	if analysis.ExtractedText != "Jane Doe Amoxicillin 500mg" {
		t.Errorf("got extracted text %q", analysis.ExtractedText)
	}
	if analysis.OCR == nil || analysis.OCR.Engine != "fake" {
		t.Errorf("OCR metadata missing: %+v", analysis.OCR)
	}
	if analysis.ID == "" {
		t.Error("analysis ID not set")
	}
}

func TestAnalyzeNoText(t *testing.T) {
	completer := &fakeCompleter{}
	analyzer := NewAnalyzer(&fakeOCR{err: ocr.WrapOCRError("ExtractTextWithMetadata", ocr.ErrEmptyDocument, "")}, completer)

	_, err := analyzer.Analyze(context.Background(), strings.NewReader("image"))
	if !errors.Is(err, ErrNoTextExtracted) {
		t.Errorf("got %v, want ErrNoTextExtracted", err)
	}
	if len(completer.prompts) != 0 {
		t.Error("model called without extracted text")
	}
}

func TestAnalyzeOCRFailure(t *testing.T) {
	completer := &fakeCompleter{}
	analyzer := NewAnalyzer(&fakeOCR{err: ocr.ErrInvalidImage}, completer)

	_, err := analyzer.Analyze(context.Background(), strings.NewReader("image"))
	if StageOf(err) != StageOCR {
		t.Errorf("got stage %q, want %q (err %v)", StageOf(err), StageOCR, err)
	}
	if !errors.Is(err, ocr.ErrInvalidImage) {
		t.Errorf("got %v, want ErrInvalidImage in chain", err)
	}
	if len(completer.prompts) != 0 {
		t.Error("model called after OCR failure")
	}
}

func TestAnalyzeCompletionFailureProducesNoRecord(t *testing.T) {
	boom := errors.New("quota exceeded")
	analyzer := NewAnalyzer(&fakeOCR{text: "text"}, &fakeCompleter{err: boom})

	analysis, err := analyzer.Analyze(context.Background(), strings.NewReader("image"))
	if analysis != nil {
		t.Errorf("got analysis %+v, want nil", analysis)
	}
	if StageOf(err) != StageCompletion || !errors.Is(err, boom) {
		t.Errorf("got %v, want completion stage error wrapping %v", err, boom)
	}
}

func TestAnalyzeUnstructuredReply(t *testing.T) {
	analyzer := NewAnalyzer(&fakeOCR{text: "text"}, &fakeCompleter{reply: "I cannot read this."})

	analysis, err := analyzer.Analyze(context.Background(), strings.NewReader("image"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !analysis.Record.IsEmpty() {
		t.Errorf("expected an empty record")
	}
}

func TestAnalyzeText(t *testing.T) {
	completer := &fakeCompleter{reply: wellFormedReply}
	analyzer := NewAnalyzer(nil, completer)

	if _, err := analyzer.AnalyzeText(context.Background(), " \n "); !errors.Is(err, ErrNoTextExtracted) {
		t.Errorf("got %v, want ErrNoTextExtracted", err)
	}

	analysis, err := analyzer.AnalyzeText(context.Background(), "  Rx: Amoxicillin  ")
	if err != nil {
		t.Fatalf("AnalyzeText: %v", err)
	}
	if analysis.ExtractedText != "Rx: Amoxicillin" {
		t.Errorf("got %q", analysis.ExtractedText)
	}
	if len(analysis.Record.Medications) != 2 {
		t.Errorf("got %d medications, want 2", len(analysis.Record.Medications))
	}
}

func TestAnalyzeWithoutOCRService(t *testing.T) {
	_, err := NewAnalyzer(nil, &fakeCompleter{}).Analyze(context.Background(), strings.NewReader("x"))
	if StageOf(err) != StageOCR {
		t.Errorf("got %v, want OCR stage error", err)
	}
}

func TestAsk(t *testing.T) {
	completer := &fakeCompleter{reply: "Take it with food."}
	analyzer := NewAnalyzer(nil, completer)

	answer, err := analyzer.Ask(context.Background(), "How should I take ibuprofen?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "Take it with food." {
		t.Errorf("got %q", answer)
	}
	if completer.prompts[0] != "How should I take ibuprofen?" {
		t.Errorf("question was not forwarded verbatim: %q", completer.prompts[0])
	}

	if _, err := analyzer.Ask(context.Background(), "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("got %v, want ErrEmptyQuestion", err)
	}
}

func TestAskFailure(t *testing.T) {
	analyzer := NewAnalyzer(nil, &fakeCompleter{err: errors.New("offline")})
	_, err := analyzer.Ask(context.Background(), "hello")
	if StageOf(err) != StageChat {
		t.Errorf("got %v, want chat stage error", err)
	}
}
