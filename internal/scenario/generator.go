package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/go-scene-voice/internal/telemetry"
)

// DefaultTemperature is the sampling temperature for script generation.
const DefaultTemperature = 0.8

// Request is one structured text generation call.
type Request struct {
	System      string
	Prompt      string
	Schema      map[string]any
	Temperature float64
}

// TextGenerator returns the raw JSON text produced for a request. Failures
// the caller can act on should be returned as *GenerationError.
type TextGenerator interface {
	GenerateJSON(ctx context.Context, req Request) (string, error)
}

// Generator builds prompts from configs and parses the resulting scripts.
type Generator struct {
	gen         TextGenerator
	temperature float64
	logger      *slog.Logger
	metrics     *telemetry.Metrics
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithTemperature overrides DefaultTemperature.
func WithTemperature(t float64) GeneratorOption {
	return func(g *Generator) { g.temperature = t }
}

// WithGeneratorLogger sets the logger.
func WithGeneratorLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// WithGeneratorMetrics records generation outcomes.
func WithGeneratorMetrics(m *telemetry.Metrics) GeneratorOption {
	return func(g *Generator) { g.metrics = m }
}

// NewGenerator wraps a text backend.
func NewGenerator(gen TextGenerator, opts ...GeneratorOption) *Generator {
	g := &Generator{
		gen:         gen,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate validates cfg, requests the script for cfg.Part and parses it.
// Backend failures are returned as *GenerationError.
func (g *Generator) Generate(ctx context.Context, cfg Config) (*Script, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	req := Request{
		System:      SystemInstruction,
		Prompt:      BuildPrompt(cfg),
		Schema:      Schema(),
		Temperature: g.temperature,
	}
	g.logger.Info("generating script", "part", cfg.Part, "participants", len(cfg.Participants), "acts", len(cfg.Acts))

	raw, err := g.gen.GenerateJSON(ctx, req)
	if err != nil {
		gerr := classify(ctx, err)
		g.metrics.GenerationDone(ctx, gerr.Kind.String())
		g.logger.Warn("script generation failed", "part", cfg.Part, "kind", gerr.Kind.String(), "error", err)
		return nil, gerr
	}

	script, err := ParseScript(raw)
	if err != nil {
		var gerr *GenerationError
		if errors.As(err, &gerr) {
			g.metrics.GenerationDone(ctx, gerr.Kind.String())
		}
		return nil, err
	}

	g.metrics.GenerationDone(ctx, "ok")
	g.logger.Info("script generated",
		"part", cfg.Part,
		"phases", len(script.Phases),
		"words", script.WordCount(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return script, nil
}

// GenerateBoth generates part 1 and then part 2. Part 2 is only requested
// once part 1 succeeded.
func (g *Generator) GenerateBoth(ctx context.Context, cfg Config) ([2]*Script, error) {
	var out [2]*Script
	for part := 1; part <= 2; part++ {
		s, err := g.Generate(ctx, cfg.WithPart(part))
		if err != nil {
			return out, fmt.Errorf("part %d: %w", part, err)
		}
		out[part-1] = s
	}
	return out, nil
}

func classify(ctx context.Context, err error) *GenerationError {
	var gerr *GenerationError
	if errors.As(err, &gerr) {
		return gerr
	}
	if ctx.Err() != nil {
		return NewGenerationError(KindUnavailable, fmt.Errorf("request cancelled: %w", err))
	}
	return NewGenerationError(KindUnavailable, err)
}
