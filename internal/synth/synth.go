// Package synth turns a full script into one audio buffer by splitting it
// into chunks, synthesizing each chunk in order and splicing the results.
//
// A chunk that fails is skipped; only a batch where every chunk fails is an
// error. Chunks are dispatched strictly one after another so the output order
// always matches the text without a reordering step.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/example/go-scene-voice/internal/audio"
	"github.com/example/go-scene-voice/internal/telemetry"
	"github.com/example/go-scene-voice/internal/text"
)

const (
	// DefaultMaxChunkLength keeps voice responses stable on hosted TTS.
	DefaultMaxChunkLength = 1000
	DefaultChunkTimeout   = 60 * time.Second
	DefaultRetries        = 2
)

var (
	// ErrAllChunksFailed is matched by every *SynthesisError.
	ErrAllChunksFailed = errors.New("all chunks failed or were blocked")
	// ErrChunkBlocked marks a chunk for which the service returned no audio.
	ErrChunkBlocked = errors.New("chunk blocked: no audio returned")
)

// Speaker synthesizes one chunk of text into raw mono PCM16LE samples.
type Speaker interface {
	Speak(ctx context.Context, text, voice string) ([]byte, error)
}

// SpeakerFunc adapts a function to Speaker.
type SpeakerFunc func(ctx context.Context, text, voice string) ([]byte, error)

func (f SpeakerFunc) Speak(ctx context.Context, text, voice string) ([]byte, error) {
	return f(ctx, text, voice)
}

// ProgressFunc is called after each chunk, successful or not.
type ProgressFunc func(done, total int)

// ChunkFailure records why one chunk was skipped.
type ChunkFailure struct {
	Index int // zero-based
	Err   error
}

// SynthesisError is returned when no chunk produced audio.
type SynthesisError struct {
	Chunks   int
	Failures []ChunkFailure
}

func (e *SynthesisError) Error() string {
	if e.Chunks == 0 {
		return "synthesis failed: no text to synthesize"
	}
	if len(e.Failures) > 0 {
		return fmt.Sprintf("synthesis failed: all %d chunks failed (first: %v)", e.Chunks, e.Failures[0].Err)
	}
	return fmt.Sprintf("synthesis failed: all %d chunks failed", e.Chunks)
}

// Unwrap exposes ErrAllChunksFailed and every chunk error.
func (e *SynthesisError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	errs = append(errs, ErrAllChunksFailed)
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Result is the assembled audio of a synthesis batch.
type Result struct {
	Buffer   *audio.Buffer
	Chunks   int
	Skipped  int
	Failures []ChunkFailure
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxChunkLength sets the chunk size in characters.
func WithMaxChunkLength(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxChunkLength = n
		}
	}
}

// WithChunkTimeout bounds each speaker call.
func WithChunkTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.chunkTimeout = d
		}
	}
}

// WithRetries sets how many times a transient chunk failure is retried.
func WithRetries(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// WithRateLimit caps speaker calls per second. Zero or less means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(o *Orchestrator) {
		if perSecond > 0 {
			o.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			o.limiter = rate.NewLimiter(rate.Inf, 1)
		}
	}
}

// WithBackOff replaces the retry policy. The factory is called once per chunk.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(o *Orchestrator) { o.newBackOff = f }
}

// WithSampleRate sets the rate PCM from the speaker is decoded at.
func WithSampleRate(hz int) Option {
	return func(o *Orchestrator) {
		if hz > 0 {
			o.sampleRate = hz
		}
	}
}

// WithProgress registers a per-chunk callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics records chunk and batch outcomes under the given backend label.
func WithMetrics(m *telemetry.Metrics, backend string) Option {
	return func(o *Orchestrator) {
		o.metrics = m
		o.backend = backend
	}
}

// Orchestrator runs synthesis batches against a Speaker.
type Orchestrator struct {
	speaker        Speaker
	maxChunkLength int
	chunkTimeout   time.Duration
	retries        int
	sampleRate     int
	limiter        *rate.Limiter
	newBackOff     func() backoff.BackOff
	progress       ProgressFunc
	logger         *slog.Logger
	metrics        *telemetry.Metrics
	backend        string
}

// New returns an orchestrator with default chunking, timeout and retries.
func New(speaker Speaker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		speaker:        speaker,
		maxChunkLength: DefaultMaxChunkLength,
		chunkTimeout:   DefaultChunkTimeout,
		retries:        DefaultRetries,
		sampleRate:     audio.DefaultSampleRate,
		limiter:        rate.NewLimiter(rate.Inf, 1),
		newBackOff:     defaultBackOff,
		logger:         slog.Default(),
		backend:        "unknown",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

// Synthesize speaks fullText with voice. Cancelling ctx aborts the batch
// before the next chunk and returns the context error with no result.
func (o *Orchestrator) Synthesize(ctx context.Context, fullText, voice string) (*Result, error) {
	start := time.Now()
	chunks := text.Split(fullText, o.maxChunkLength)
	total := len(chunks)

	o.logger.Info("synthesis started",
		"chunks", total,
		"chars", utf8.RuneCountInString(fullText),
		"voice", voice,
		"backend", o.backend,
	)

	buffers := make([]*audio.Buffer, 0, total)
	var failures []ChunkFailure

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			o.metrics.SynthesisDone(ctx, o.backend, "cancelled", time.Since(start), 0)
			return nil, fmt.Errorf("synthesis cancelled before chunk %d/%d: %w", i+1, total, err)
		}

		chunkStart := time.Now()
		buf, err := o.synthesizeChunk(ctx, chunk, voice)
		switch {
		case err != nil && ctx.Err() != nil:
			o.metrics.SynthesisDone(ctx, o.backend, "cancelled", time.Since(start), 0)
			return nil, fmt.Errorf("synthesis cancelled during chunk %d/%d: %w", i+1, total, ctx.Err())
		case err != nil:
			outcome := "failed"
			if errors.Is(err, ErrChunkBlocked) {
				outcome = "blocked"
			}
			o.metrics.ChunkDone(ctx, o.backend, outcome, time.Since(chunkStart))
			o.logger.Warn("chunk skipped", "chunk", i+1, "total", total, "error", err)
			failures = append(failures, ChunkFailure{Index: i, Err: err})
		default:
			o.metrics.ChunkDone(ctx, o.backend, "ok", time.Since(chunkStart))
			o.logger.Debug("chunk synthesized", "chunk", i+1, "total", total, "seconds", buf.Seconds())
			buffers = append(buffers, buf)
		}

		if o.progress != nil {
			o.progress(i+1, total)
		}
	}

	if len(buffers) == 0 {
		o.metrics.SynthesisDone(ctx, o.backend, "failed", time.Since(start), 0)
		return nil, &SynthesisError{Chunks: total, Failures: failures}
	}

	out := audio.Concat(buffers...)
	outcome := "ok"
	if len(failures) > 0 {
		outcome = "partial"
	}
	o.metrics.SynthesisDone(ctx, o.backend, outcome, time.Since(start), out.Duration())
	o.logger.Info("synthesis finished",
		"chunks", total,
		"skipped", len(failures),
		"audio_seconds", out.Seconds(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	return &Result{
		Buffer:   out,
		Chunks:   total,
		Skipped:  len(failures),
		Failures: failures,
	}, nil
}

func (o *Orchestrator) synthesizeChunk(ctx context.Context, chunk, voice string) (*audio.Buffer, error) {
	op := func() (*audio.Buffer, error) {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		callCtx, cancel := context.WithTimeout(ctx, o.chunkTimeout)
		defer cancel()

		pcm, err := o.speaker.Speak(callCtx, chunk, voice)
		if err != nil {
			if !retryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		buf, err := audio.DecodePCM16(pcm, o.sampleRate, audio.DefaultChannels)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if buf.Frames() == 0 {
			return nil, backoff.Permanent(ErrChunkBlocked)
		}
		return buf, nil
	}

	buf, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(o.newBackOff()),
		backoff.WithMaxTries(uint(o.retries+1)),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return buf, err
}

// retryable reports whether a speaker error is worth another attempt. Blocked
// chunks never are; errors that classify themselves via Temporary() are
// trusted; everything else is retried.
func retryable(err error) bool {
	if errors.Is(err, ErrChunkBlocked) {
		return false
	}
	var t interface{ Temporary() bool }
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return true
}
