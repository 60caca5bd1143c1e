package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFormat is wrapped by every DecodeError caused by a bad shape
// (non-positive channel count or sample rate).
var ErrInvalidFormat = errors.New("invalid audio format")

// DecodeError reports raw audio that could not be turned into a Buffer.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("audio decode %s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodePCM16 converts signed 16-bit little-endian interleaved samples into a
// Buffer. Each sample is normalized as int16/32768.
//
// Empty input yields a zero-frame buffer and no error. A trailing partial
// frame (or odd trailing byte) is discarded.
func DecodePCM16(raw []byte, sampleRate, channels int) (*Buffer, error) {
	if channels <= 0 {
		return nil, &DecodeError{Op: "pcm16", Err: fmt.Errorf("%w: channel count %d", ErrInvalidFormat, channels)}
	}
	if sampleRate <= 0 {
		return nil, &DecodeError{Op: "pcm16", Err: fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, sampleRate)}
	}

	samples := len(raw) / 2
	frames := samples / channels

	buf, err := NewBuffer(sampleRate, channels, frames)
	if err != nil {
		return nil, &DecodeError{Op: "pcm16", Err: err}
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			pos := (i*channels + ch) * 2
			v := int16(binary.LittleEndian.Uint16(raw[pos : pos+2]))
			buf.Channels[ch][i] = float32(v) / 32768.0
		}
	}
	return buf, nil
}

// DecodeBase64PCM decodes a standard base64 payload and then DecodePCM16.
func DecodeBase64PCM(data string, sampleRate, channels int) (*Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil, &DecodeError{Op: "base64", Err: err}
	}
	return DecodePCM16(raw, sampleRate, channels)
}

// Quantize maps a normalized sample to int16. The input is clamped to
// [-1, 1]; negative values scale by 32768 and non-negative values by 32767 so
// that +1.0 does not overflow.
func Quantize(s float32) int16 {
	v := float64(s)
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	if v < 0 {
		return int16(v * 32768)
	}
	return int16(v * 32767)
}

// EncodePCM16 writes the buffer from fromFrame onward as little-endian 16-bit
// samples, channels interleaved per frame.
func EncodePCM16(b *Buffer, fromFrame int) []byte {
	frames := b.Frames()
	if fromFrame < 0 {
		fromFrame = 0
	}
	if fromFrame >= frames {
		return []byte{}
	}
	chans := b.NumChannels()
	out := make([]byte, (frames-fromFrame)*chans*2)
	pos := 0
	for i := fromFrame; i < frames; i++ {
		for ch := 0; ch < chans; ch++ {
			binary.LittleEndian.PutUint16(out[pos:], uint16(Quantize(b.Channels[ch][i])))
			pos += 2
		}
	}
	return out
}
