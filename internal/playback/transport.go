// Package playback drives a seekable, pausable transport over a decoded
// audio buffer. Offsets are derived from a monotonic clock and an anchor
// recorded when output starts, so position tracking never depends on how
// far the audio device has actually read.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/go-scene-voice/internal/audio"
)

// DefaultRestartThreshold is how close to the end a stopped or paused
// transport must be for Play to start over from the beginning.
const DefaultRestartThreshold = 100 * time.Millisecond

// ErrClosed is returned by operations on a closed Transport.
var ErrClosed = errors.New("playback: transport closed")

// State is the transport's play state.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is a snapshot of the transport for the presentation layer.
type Status struct {
	State    State
	Offset   time.Duration
	Duration time.Duration
}

// Clock is a monotonic time source.
type Clock interface {
	Now() time.Duration
}

// SystemClock reads the process monotonic clock.
type SystemClock struct {
	base time.Time
}

// NewSystemClock returns a clock whose zero is the moment of the call.
func NewSystemClock() *SystemClock {
	return &SystemClock{base: time.Now()}
}

// Now returns the monotonic time elapsed since the clock was created.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.base)
}

// Output renders a buffer to an audio device.
type Output interface {
	// Start begins rendering buf from offset, replacing anything playing.
	Start(buf *audio.Buffer, offset time.Duration) error
	// Stop halts rendering. Stopping an idle output is a no-op.
	Stop() error
	// Close releases the device.
	Close() error
}

// OutputFactory opens an Output suitable for buf.
type OutputFactory func(buf *audio.Buffer) (Output, error)

// Option configures a Transport.
type Option func(*Transport)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(t *Transport) { t.clock = c }
}

// WithOutputFactory replaces the oto-backed output.
func WithOutputFactory(f OutputFactory) Option {
	return func(t *Transport) { t.newOutput = f }
}

// WithRestartThreshold overrides DefaultRestartThreshold.
func WithRestartThreshold(d time.Duration) Option {
	return func(t *Transport) { t.restartThreshold = d }
}

// WithLogger sets the logger for output failures.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// Transport plays a single buffer. Idle → Playing ⇄ Paused → Idle.
//
// The output is opened on the first Play and reused until Close. All methods
// are safe for concurrent use.
type Transport struct {
	mu sync.Mutex

	buf      *audio.Buffer
	duration time.Duration

	clock            Clock
	newOutput        OutputFactory
	restartThreshold time.Duration
	logger           *slog.Logger

	out    Output
	state  State
	stored time.Duration
	anchor time.Duration
	closed bool
}

// New creates an idle transport at offset zero.
func New(buf *audio.Buffer, opts ...Option) *Transport {
	t := &Transport{
		buf:              buf,
		duration:         buf.Duration(),
		clock:            NewSystemClock(),
		newOutput:        NewOtoOutput,
		restartThreshold: DefaultRestartThreshold,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Duration is the length of the buffer.
func (t *Transport) Duration() time.Duration { return t.duration }

// Play starts or resumes output from the stored offset. It is a no-op while
// already playing. A transport parked at the end starts over from zero.
func (t *Transport) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.state == StatePlaying {
		return nil
	}
	if t.duration-t.stored <= t.restartThreshold {
		t.stored = 0
	}
	return t.startLocked()
}

// Pause freezes the offset and stops output. It is a no-op unless playing.
func (t *Transport) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.state != StatePlaying {
		return nil
	}
	t.stored = t.offsetLocked()
	t.state = StatePaused
	return t.stopOutputLocked()
}

// Seek moves the offset to target, clamped to [0, Duration]. The play state
// is unchanged; a playing transport restarts output at the new offset. If
// that restart fails the transport is left paused at the target.
func (t *Transport) Seek(target time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	t.stored = t.clamp(target)
	if t.state != StatePlaying {
		return nil
	}
	err := t.stopOutputLocked()
	if err == nil {
		err = t.startLocked()
	}
	if err != nil {
		// Output is not advancing; park at the target.
		t.state = StatePaused
		return err
	}
	return nil
}

// Poll advances the transport and detects completion. Once the derived
// offset reaches the end, output stops, the stored offset resets to zero and
// the transport goes idle; the returned status reports the full duration.
func (t *Transport) Poll() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePlaying {
		return t.statusLocked()
	}
	cur := t.stored + (t.clock.Now() - t.anchor)
	if cur < t.duration {
		return Status{State: StatePlaying, Offset: cur, Duration: t.duration}
	}

	if err := t.stopOutputLocked(); err != nil {
		t.logger.Warn("stopping output at end of buffer", "error", err)
	}
	t.stored = 0
	t.state = StateIdle
	return Status{State: StateIdle, Offset: t.duration, Duration: t.duration}
}

// Status reports the current state and offset without advancing.
func (t *Transport) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

// Offset reports the playback position. It never exceeds Duration.
func (t *Transport) Offset() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offsetLocked()
}

// State reports the current play state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stop halts output and rewinds to zero.
func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	var err error
	if t.state == StatePlaying {
		err = t.stopOutputLocked()
	}
	t.state = StateIdle
	t.stored = 0
	return err
}

// Close stops playback and releases the output. Closing twice is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.state = StateIdle
	t.stored = 0
	if t.out == nil {
		return nil
	}
	err := t.out.Close()
	t.out = nil
	if err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// Run polls the transport every interval and streams each status. The
// channel is closed when ctx is done or when the transport is found idle,
// which includes reaching the end of the buffer.
func (t *Transport) Run(ctx context.Context, interval time.Duration) <-chan Status {
	ch := make(chan Status, 1)
	go func() {
		defer close(ch)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			st := t.Poll()
			select {
			case ch <- st:
			case <-ctx.Done():
				return
			}
			if st.State == StateIdle {
				return
			}
		}
	}()
	return ch
}

func (t *Transport) startLocked() error {
	if t.out == nil {
		out, err := t.newOutput(t.buf)
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		t.out = out
	}
	if err := t.out.Start(t.buf, t.stored); err != nil {
		return fmt.Errorf("start output: %w", err)
	}
	t.anchor = t.clock.Now()
	t.state = StatePlaying
	return nil
}

func (t *Transport) stopOutputLocked() error {
	if t.out == nil {
		return nil
	}
	if err := t.out.Stop(); err != nil {
		return fmt.Errorf("stop output: %w", err)
	}
	return nil
}

func (t *Transport) offsetLocked() time.Duration {
	if t.state != StatePlaying {
		return t.stored
	}
	return t.clamp(t.stored + (t.clock.Now() - t.anchor))
}

func (t *Transport) statusLocked() Status {
	return Status{State: t.state, Offset: t.offsetLocked(), Duration: t.duration}
}

func (t *Transport) clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > t.duration {
		return t.duration
	}
	return d
}

// FormatOffset renders d as m:ss, truncating fractional seconds.
func FormatOffset(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
