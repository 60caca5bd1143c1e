package testutil

import (
	"encoding/binary"
	"testing"

	"github.com/example/go-scene-voice/internal/audio"
)

// AssertValidWAV fails tb unless data is a 16-bit PCM WAV file with the given
// sample rate and channel count, a consistent RIFF size and byte rate, and at
// least one full frame.
func AssertValidWAV(tb testing.TB, data []byte, sampleRate, channels int) {
	tb.Helper()

	pcm, format, err := audio.PCMFromWAV(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
		return
	}
	if riff := binary.LittleEndian.Uint32(data[4:8]); int(riff) != len(data)-8 {
		tb.Fatalf("WAV: RIFF size %d does not match file length %d", riff, len(data))
	}
	if len(data) >= 36 {
		if tag := binary.LittleEndian.Uint16(data[20:22]); tag != 1 {
			tb.Fatalf("WAV: format tag %d; want 1 (PCM)", tag)
		}
		if rate := binary.LittleEndian.Uint32(data[28:32]); int(rate) != sampleRate*channels*2 {
			tb.Fatalf("WAV: byte rate %d; want %d", rate, sampleRate*channels*2)
		}
	}
	if format.SampleRate != sampleRate || format.Channels != channels {
		tb.Fatalf("WAV: %d Hz/%d ch; want %d Hz/%d ch", format.SampleRate, format.Channels, sampleRate, channels)
	}
	if len(pcm) < channels*2 {
		tb.Fatalf("WAV: data chunk holds %d bytes, less than one frame", len(pcm))
	}
}

// AssertWAVDurationApprox fails tb unless the audio in data lasts between
// minSec and maxSec at the given rate and channel count.
func AssertWAVDurationApprox(tb testing.TB, data []byte, sampleRate, channels int, minSec, maxSec float64) {
	tb.Helper()

	pcm, _, err := audio.PCMFromWAV(data)
	if err != nil {
		tb.Fatalf("WAV duration check: %v", err)
		return
	}
	secs := float64(len(pcm)/(2*channels)) / float64(sampleRate)
	if secs < minSec || secs > maxSec {
		tb.Fatalf("WAV lasts %.3fs; want within [%.3fs, %.3fs]", secs, minSec, maxSec)
	}
}
