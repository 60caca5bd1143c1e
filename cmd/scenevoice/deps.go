package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/go-scene-voice/internal/config"
	"github.com/example/go-scene-voice/internal/gemini"
	"github.com/example/go-scene-voice/internal/history"
	"github.com/example/go-scene-voice/internal/scenario"
	"github.com/example/go-scene-voice/internal/speech"
	"github.com/example/go-scene-voice/internal/synth"
	"github.com/example/go-scene-voice/internal/telemetry"
	"github.com/example/go-scene-voice/internal/voice"
)

// newTextGenerator and newSpeaker are swapped out by tests.
var newTextGenerator = func(cfg config.Config, log *slog.Logger) scenario.TextGenerator {
	return newGeminiClient(cfg, log)
}

var newSpeaker = buildSpeaker

func newGeminiClient(cfg config.Config, log *slog.Logger) *gemini.Client {
	return gemini.New(cfg.Gemini.APIKey,
		gemini.WithBaseURL(cfg.Gemini.BaseURL),
		gemini.WithTextModel(cfg.Gemini.TextModel),
		gemini.WithSpeechModel(cfg.Gemini.SpeechModel),
		gemini.WithLogger(log),
	)
}

// buildSpeaker returns the speech backend named by cfg.TTS.Backend and a
// release func for any resources it holds.
func buildSpeaker(ctx context.Context, cfg config.Config, catalog *voice.Catalog, log *slog.Logger) (synth.Speaker, func() error, error) {
	noop := func() error { return nil }

	switch cfg.TTS.Backend {
	case config.BackendGemini:
		return newGeminiClient(cfg, log), noop, nil
	case config.BackendCloud:
		sp, err := speech.NewCloudSpeaker(ctx,
			speech.WithLanguageCode(cfg.TTS.LanguageCode),
			speech.WithCloudSampleRate(cfg.TTS.SampleRate),
			speech.WithCloudLogger(log),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("cloud speech backend: %w", err)
		}
		return sp, sp.Close, nil
	case config.BackendLocal:
		if err := speech.Preflight(cfg.TTS.CLIPath); err != nil {
			return nil, nil, fmt.Errorf("local speech backend: %w", err)
		}
		sp := speech.NewLocalSpeaker(speech.LocalConfig{
			ExecutablePath: cfg.TTS.CLIPath,
			Quiet:          cfg.TTS.Quiet,
			Concurrency:    cfg.TTS.Concurrency,
			LogWriter:      os.Stderr,
			Catalog:        catalog,
			Logger:         log,
		})
		return sp, noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend %q", cfg.TTS.Backend)
	}
}

// deps holds everything a command needs, built lazily from config.
type deps struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *telemetry.Metrics

	catalog *voice.Catalog
	history *history.Store
	closers []func() error
}

func newDeps(ctx context.Context, cfg config.Config, metrics *telemetry.Metrics) (*deps, error) {
	catalog, err := voice.Load(cfg.TTS.VoiceManifest)
	if err != nil {
		return nil, err
	}
	d := &deps{
		cfg:     cfg,
		log:     slog.Default(),
		metrics: metrics,
		catalog: catalog,
	}
	if cfg.History.Enabled {
		store, err := history.Open(ctx, cfg.History.Path, d.log)
		if err != nil {
			return nil, err
		}
		d.history = store
		d.closers = append(d.closers, store.Close)
	}
	return d, nil
}

func (d *deps) generator() *scenario.Generator {
	return scenario.NewGenerator(newTextGenerator(d.cfg, d.log),
		scenario.WithTemperature(d.cfg.Gemini.Temperature),
		scenario.WithGeneratorLogger(d.log),
		scenario.WithGeneratorMetrics(d.metrics),
	)
}

func (d *deps) synthesizer(ctx context.Context, extra ...synth.Option) (*synth.Orchestrator, error) {
	sp, release, err := newSpeaker(ctx, d.cfg, d.catalog, d.log)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, release)

	opts := []synth.Option{
		synth.WithMaxChunkLength(d.cfg.TTS.MaxChunkChars),
		synth.WithChunkTimeout(d.cfg.TTS.ChunkTimeout),
		synth.WithRetries(d.cfg.TTS.Retries),
		synth.WithRateLimit(d.cfg.TTS.RatePerSecond),
		synth.WithSampleRate(d.cfg.TTS.SampleRate),
		synth.WithLogger(d.log),
		synth.WithMetrics(d.metrics, d.cfg.TTS.Backend),
	}
	return synth.New(sp, append(opts, extra...)...), nil
}

// record saves sess when history is enabled and logs failures.
func (d *deps) record(ctx context.Context, sess history.Session) (history.Session, bool) {
	if d.history == nil {
		return sess, false
	}
	saved, err := d.history.Save(ctx, sess)
	if err != nil {
		d.log.Warn("history save failed", "error", err)
		return sess, false
	}
	if d.cfg.History.Keep > 0 {
		if _, err := d.history.Prune(ctx, d.cfg.History.Keep); err != nil {
			d.log.Warn("history prune failed", "error", err)
		}
	}
	return saved, true
}

func (d *deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
