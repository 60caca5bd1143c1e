// Package progress estimates how far along a synthesis batch is from the
// size of the text and the time since it started.
package progress

import (
	"context"
	"math"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

const (
	// MinEstimate is the floor for any estimate.
	MinEstimate = 20 * time.Second
	// CharsPerSecond is the assumed synthesis throughput.
	CharsPerSecond = 20
	// MaxPendingPercent caps the percentage until Done is called.
	MaxPendingPercent = 99
)

// Clock is a monotonic time source.
type Clock interface {
	Now() time.Duration
}

type systemClock struct{ base time.Time }

func (c systemClock) Now() time.Duration { return time.Since(c.base) }

// Snapshot is one derived progress reading.
type Snapshot struct {
	Percent   int
	Elapsed   time.Duration
	Remaining time.Duration
	Done      bool
}

// Estimate returns the expected synthesis time for a text of chars runes:
// max(20s, ceil(chars/20) s).
func Estimate(chars int) time.Duration {
	secs := math.Ceil(float64(chars) / CharsPerSecond)
	est := time.Duration(secs) * time.Second
	if est < MinEstimate {
		return MinEstimate
	}
	return est
}

// Estimator derives progress from an immutable start anchor. Snapshot and
// Done may be called from different goroutines.
type Estimator struct {
	clock    Clock
	start    time.Duration
	estimate time.Duration
	done     atomic.Bool
}

// New starts an estimator for text using the system clock.
func New(text string) *Estimator {
	return NewWithClock(text, systemClock{base: time.Now()})
}

// NewWithClock starts an estimator anchored at clock.Now().
func NewWithClock(text string, clock Clock) *Estimator {
	return &Estimator{
		clock:    clock,
		start:    clock.Now(),
		estimate: Estimate(utf8.RuneCountInString(text)),
	}
}

// Estimate is the expected total duration.
func (e *Estimator) Estimate() time.Duration { return e.estimate }

// Done marks the work finished; later snapshots report 100%.
func (e *Estimator) Done() { e.done.Store(true) }

// Snapshot reads the clock and derives the current progress.
func (e *Estimator) Snapshot() Snapshot {
	elapsed := e.clock.Now() - e.start
	if e.done.Load() {
		return Snapshot{Percent: 100, Elapsed: elapsed, Done: true}
	}

	pct := int(float64(elapsed) / float64(e.estimate) * 100)
	pct = min(max(pct, 0), MaxPendingPercent)

	remaining := time.Duration(math.Ceil((e.estimate - elapsed).Seconds())) * time.Second
	return Snapshot{
		Percent:   pct,
		Elapsed:   elapsed,
		Remaining: max(remaining, 0),
	}
}

// Watch emits a snapshot every interval until ctx is done. The channel is
// closed when Watch returns.
func (e *Estimator) Watch(ctx context.Context, interval time.Duration) <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case ch <- e.Snapshot():
				default:
				}
			}
		}
	}()
	return ch
}
