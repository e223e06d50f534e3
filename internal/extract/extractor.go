package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/freightdoc/internal/llm"
)

const (
	modelTemperature = 0.0
	modelMaxTokens   = 800
	defaultTimeout   = 30 * time.Second
)

// Extractor produces shipment records. With a nil generator every
// extraction uses the pattern library.
type Extractor struct {
	gen     llm.Generator
	timeout time.Duration
	log     *slog.Logger
}

func New(gen llm.Generator, timeout time.Duration, log *slog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{gen: gen, timeout: timeout, log: log}
}

// Extract never fails: a missing or failing model degrades to the pattern
// library and the failure is recorded in the notes.
func (e *Extractor) Extract(ctx context.Context, text string) Record {
	if e.gen == nil {
		return e.patterns(text)
	}

	s, err := e.model(ctx, text)
	if err == nil {
		return newRecord(s, MethodModel, fmt.Sprintf("model-based (%s)", e.gen.Model()))
	}
	e.log.Warn("model extraction failed, using patterns", "error", err)
	return e.patterns(text, "Model extraction failed: "+llm.Truncate(err.Error(), 200))
}

func (e *Extractor) model(ctx context.Context, text string) (Shipment, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.gen.Generate(ctx, llm.Request{
		System:      ExtractionPrompt,
		Prompt:      BuildPrompt(text),
		Temperature: modelTemperature,
		MaxTokens:   modelMaxTokens,
	})
	if err != nil {
		return Shipment{}, fmt.Errorf("generate: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return Shipment{}, errors.New("empty model response")
	}
	return parseModelOutput(out)
}

func (e *Extractor) patterns(text string, notes ...string) Record {
	s := extractPatterns(text)
	e.log.Debug("pattern extraction", "fields_found", s.Found())
	return newRecord(s, MethodPattern, "pattern-based", notes...)
}
