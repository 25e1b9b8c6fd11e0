package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Supported OCR_BACKEND values.
const (
	BackendTesseract  = "tesseract"
	BackendVision     = "vision"
	BackendDocumentAI = "documentai"
)

// Backends lists the engine names NewEngine accepts.
var Backends = []string{BackendTesseract, BackendVision, BackendDocumentAI}

// EngineConfig selects and configures an engine.
type EngineConfig struct {
	Backend    string
	Languages  []string // tesseract languages ("eng") or Vision language hints ("en")
	DocumentAI DocumentAIConfig
}

// NewEngine constructs the engine named by cfg.Backend.
func NewEngine(ctx context.Context, cfg EngineConfig) (Engine, error) {
	const op = "NewEngine"

	var (
		engine Engine
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendTesseract:
		engine, err = NewTesseractEngine(cfg.Languages...)
	case BackendVision:
		engine, err = NewVisionEngine(ctx, visionHints(cfg.Languages)...)
	case BackendDocumentAI:
		engine, err = NewDocumentAIEngine(ctx, cfg.DocumentAI)
	default:
		return nil, WrapOCRError(op, ErrUnknownEngine, fmt.Sprintf("%q (want one of %s)", cfg.Backend, strings.Join(Backends, ", ")))
	}
	if err != nil {
		// avoid handing out a typed nil
		return nil, err
	}
	return engine, nil
}

// visionHints maps tesseract language codes to the BCP-47 hints Vision expects.
func visionHints(languages []string) []string {
	var hints []string
	for _, lang := range languages {
		switch lang {
		case "eng":
			hints = append(hints, "en")
		case "deu":
			hints = append(hints, "de")
		case "fra":
			hints = append(hints, "fr")
		case "spa":
			hints = append(hints, "es")
		case "hin":
			hints = append(hints, "hi")
		default:
			hints = append(hints, lang)
		}
	}
	return hints
}

// LazyEngine constructs its engine on first use and shares it afterwards.
// Concurrent first use constructs the engine once; a failed construction is
// retried on the next call.
type LazyEngine struct {
	name    string
	factory func(ctx context.Context) (Engine, error)

	mu     sync.Mutex
	engine Engine
}

// NewLazyEngine wraps factory; name is reported before the engine exists.
func NewLazyEngine(name string, factory func(ctx context.Context) (Engine, error)) *LazyEngine {
	return &LazyEngine{name: name, factory: factory}
}

// NewLazyEngineFromConfig defers NewEngine(cfg) until first use.
func NewLazyEngineFromConfig(cfg EngineConfig) *LazyEngine {
	name := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if name == "" {
		name = BackendTesseract
	}
	return NewLazyEngine(name, func(ctx context.Context) (Engine, error) {
		return NewEngine(ctx, cfg)
	})
}

// Get returns the shared engine, constructing it if needed.
func (l *LazyEngine) Get(ctx context.Context) (Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.engine != nil {
		return l.engine, nil
	}

	// Cloud clients dial lazily but keep the construction context; detach it
	// from request cancellation.
	initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	engine, err := l.factory(initCtx)
	if err != nil {
		return nil, err
	}
	l.engine = engine
	return engine, nil
}

// Name identifies the backend.
func (l *LazyEngine) Name() string {
	return l.name
}

// Recognize delegates to the shared engine.
func (l *LazyEngine) Recognize(ctx context.Context, png []byte) ([]Fragment, error) {
	engine, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return engine.Recognize(ctx, png)
}

// Close closes the engine if it was constructed.
func (l *LazyEngine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.engine == nil {
		return nil
	}
	err := l.engine.Close()
	l.engine = nil
	return err
}
