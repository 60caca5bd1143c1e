// Package audio holds the decoded sample buffer used across scenevoice and
// the codecs that move it in and out of raw PCM and WAV bytes.
package audio

import (
	"fmt"
	"time"

	goaudio "github.com/go-audio/audio"
)

// Output format of every speech backend.
const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1
	BitDepth          = 16
)

// Buffer is a decoded, multi-channel audio buffer. Samples are normalized
// floats nominally in [-1, 1]. All channels have the same length.
//
// A Buffer is treated as immutable once constructed; nothing in this package
// writes to a buffer it did not just allocate.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// NewBuffer allocates a zeroed buffer with the given shape.
func NewBuffer(sampleRate, channels, frames int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channel count %d", ErrInvalidFormat, channels)
	}
	if frames < 0 {
		frames = 0
	}
	data := make([][]float32, channels)
	for ch := range data {
		data[ch] = make([]float32, frames)
	}
	return &Buffer{SampleRate: sampleRate, Channels: data}, nil
}

// Silence returns a one-frame mono buffer at DefaultSampleRate.
func Silence() *Buffer {
	return &Buffer{
		SampleRate: DefaultSampleRate,
		Channels:   [][]float32{make([]float32, 1)},
	}
}

// NumChannels reports the channel count.
func (b *Buffer) NumChannels() int {
	if b == nil {
		return 0
	}
	return len(b.Channels)
}

// Frames reports the per-channel sample count.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Seconds is frames / sampleRate.
func (b *Buffer) Seconds() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Duration is Seconds expressed as a time.Duration, truncated to the nanosecond.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.Seconds() * float64(time.Second))
}

// FrameAt converts a playback offset to a frame index clamped to [0, Frames()].
func (b *Buffer) FrameAt(offset time.Duration) int {
	if b == nil || offset <= 0 {
		return 0
	}
	frame := int(offset.Seconds() * float64(b.SampleRate))
	if n := b.Frames(); frame > n {
		return n
	}
	return frame
}

// Interleaved returns samples ordered frame by frame, channels interleaved,
// starting at the given frame.
func (b *Buffer) Interleaved(fromFrame int) []float32 {
	frames := b.Frames()
	if fromFrame < 0 {
		fromFrame = 0
	}
	if fromFrame >= frames {
		return []float32{}
	}
	chans := b.NumChannels()
	out := make([]float32, 0, (frames-fromFrame)*chans)
	for i := fromFrame; i < frames; i++ {
		for ch := 0; ch < chans; ch++ {
			out = append(out, b.Channels[ch][i])
		}
	}
	return out
}

// FromFloat32Buffer de-interleaves a go-audio buffer, such as the one the
// WAV decoder returns. A trailing partial frame is dropped.
func FromFloat32Buffer(src *goaudio.Float32Buffer) (*Buffer, error) {
	if src == nil || src.Format == nil {
		return nil, fmt.Errorf("%w: missing format", ErrInvalidFormat)
	}
	chans := src.Format.NumChannels
	out, err := NewBuffer(src.Format.SampleRate, chans, len(src.Data)/max(chans, 1))
	if err != nil {
		return nil, err
	}
	frames := out.Frames()
	for i := 0; i < frames; i++ {
		for ch := 0; ch < chans; ch++ {
			out.Channels[ch][i] = src.Data[i*chans+ch]
		}
	}
	return out, nil
}
