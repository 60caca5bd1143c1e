// Package speech adapts WAV-returning text-to-speech backends to the raw
// PCM contract of synth.Speaker.
package speech

import (
	"fmt"

	"github.com/example/go-scene-voice/internal/audio"
)

// permanentError marks a backend failure that retrying will not fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string   { return e.err.Error() }
func (e *permanentError) Unwrap() error   { return e.err }
func (e *permanentError) Temporary() bool { return false }

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// pcmFromWAV strips the container and checks the stream matches the
// orchestrator's decode format. Payloads without a RIFF header are passed
// through as raw PCM.
func pcmFromWAV(data []byte, sampleRate int) ([]byte, error) {
	if len(data) < 4 || string(data[:4]) != "RIFF" {
		return data, nil
	}

	pcm, format, err := audio.PCMFromWAV(data)
	if err != nil {
		return nil, permanent(err)
	}

	if format.SampleRate != sampleRate || format.Channels != audio.DefaultChannels {
		return nil, permanent(fmt.Errorf("%w: got %d Hz x%d, want %d Hz mono",
			audio.ErrFormatMismatch, format.SampleRate, format.Channels, sampleRate))
	}
	return pcm, nil
}
