package playback

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/example/go-scene-voice/internal/audio"
)

// oto allows a single context per process; it is created on first use and
// shared by every OtoOutput.
var (
	otoOnce     sync.Once
	otoCtx      *oto.Context
	otoErr      error
	otoRate     int
	otoChannels int
)

func otoContext(sampleRate, channels int) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("create oto context: %w", err)
			return
		}
		<-ready
		otoCtx, otoRate, otoChannels = ctx, sampleRate, channels
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if sampleRate != otoRate || channels != otoChannels {
		return nil, fmt.Errorf("oto context is %d Hz/%d ch, buffer is %d Hz/%d ch",
			otoRate, otoChannels, sampleRate, channels)
	}
	if err := otoCtx.Resume(); err != nil {
		return nil, fmt.Errorf("resume oto context: %w", err)
	}
	return otoCtx, nil
}

// OtoOutput plays buffers through the system audio device.
type OtoOutput struct {
	mu     sync.Mutex
	ctx    *oto.Context
	player *oto.Player
	// pcm backs the player's reader and must outlive playback.
	pcm []byte
}

// NewOtoOutput is the default OutputFactory.
func NewOtoOutput(buf *audio.Buffer) (Output, error) {
	ctx, err := otoContext(buf.SampleRate, buf.NumChannels())
	if err != nil {
		return nil, err
	}
	return &OtoOutput{ctx: ctx}, nil
}

// Start replaces any current player with one reading buf from offset.
func (o *OtoOutput) Start(buf *audio.Buffer, offset time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.stopLocked(); err != nil {
		return err
	}
	o.pcm = audio.EncodePCM16(buf, buf.FrameAt(offset))
	o.player = o.ctx.NewPlayer(bytes.NewReader(o.pcm))
	o.player.Play()
	return nil
}

// Stop pauses and discards the current player.
func (o *OtoOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopLocked()
}

func (o *OtoOutput) stopLocked() error {
	if o.player == nil {
		return nil
	}
	o.player.Pause()
	err := o.player.Close()
	o.player = nil
	o.pcm = nil
	if err != nil {
		return fmt.Errorf("close oto player: %w", err)
	}
	return nil
}

// Close stops playback and suspends the shared context so the device is
// released until the next output is opened.
func (o *OtoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.stopLocked(); err != nil {
		return err
	}
	if err := o.ctx.Suspend(); err != nil {
		return fmt.Errorf("suspend oto context: %w", err)
	}
	return nil
}
