package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	pockettts "github.com/cwbudde/go-call-pocket-tts"

	"github.com/example/go-scene-voice/internal/audio"
	"github.com/example/go-scene-voice/internal/synth"
	"github.com/example/go-scene-voice/internal/voice"
)

// LocalGenerator is the subset of *pockettts.Client used here.
type LocalGenerator interface {
	Generate(ctx context.Context, text string) (*pockettts.WAVResult, error)
}

// GeneratorFactory builds a generator bound to one pocket-tts voice.
type GeneratorFactory func(localVoice string) LocalGenerator

// LocalConfig configures a LocalSpeaker.
type LocalConfig struct {
	// ExecutablePath overrides the pocket-tts binary; empty uses PATH.
	ExecutablePath string
	Quiet          bool
	// Concurrency caps subprocesses per voice; zero means unlimited.
	Concurrency int
	LogWriter   io.Writer
	Catalog     *voice.Catalog
	Logger      *slog.Logger
	// Factory replaces the pocket-tts client, mostly for tests.
	Factory GeneratorFactory
}

// LocalSpeaker runs the pocket-tts CLI as a subprocess per chunk.
type LocalSpeaker struct {
	catalog *voice.Catalog
	factory GeneratorFactory
	logger  *slog.Logger

	mu      sync.Mutex
	clients map[string]LocalGenerator
}

var _ synth.Speaker = (*LocalSpeaker)(nil)

// NewLocalSpeaker returns a speaker using cfg.
func NewLocalSpeaker(cfg LocalConfig) *LocalSpeaker {
	s := &LocalSpeaker{
		catalog: cfg.Catalog,
		factory: cfg.Factory,
		logger:  cfg.Logger,
		clients: make(map[string]LocalGenerator),
	}
	if s.catalog == nil {
		s.catalog = voice.Default()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.factory == nil {
		s.factory = func(localVoice string) LocalGenerator {
			return pockettts.NewClient(pockettts.Options{
				Voice:          localVoice,
				ExecutablePath: cfg.ExecutablePath,
				Quiet:          cfg.Quiet,
				Concurrency:    cfg.Concurrency,
				LogWriter:      cfg.LogWriter,
			})
		}
	}
	return s
}

// Preflight checks the pocket-tts executable can be resolved.
func Preflight(executablePath string) error {
	return pockettts.Preflight(executablePath)
}

// Speak implements synth.Speaker.
func (s *LocalSpeaker) Speak(ctx context.Context, text, voiceID string) ([]byte, error) {
	localVoice, err := s.catalog.LocalVoice(voiceID)
	if err != nil {
		return nil, permanent(err)
	}

	res, err := s.client(localVoice).Generate(ctx, text)
	if err != nil {
		var notFound *pockettts.ErrExecutableNotFound
		if errors.As(err, &notFound) {
			return nil, permanent(fmt.Errorf("local tts requires the pocket-tts CLI: %w", err))
		}
		return nil, fmt.Errorf("local tts: %w", err)
	}

	if res == nil || len(res.Data) == 0 {
		return nil, fmt.Errorf("local tts: %w", synth.ErrChunkBlocked)
	}

	s.logger.Debug("local tts chunk",
		"voice", localVoice,
		"sample_rate", res.SampleRate,
		"bytes", len(res.Data),
	)

	return pcmFromWAV(res.Data, audio.DefaultSampleRate)
}

func (s *LocalSpeaker) client(localVoice string) LocalGenerator {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[localVoice]
	if !ok {
		c = s.factory(localVoice)
		s.clients[localVoice] = c
	}
	return c
}
