package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

// ErrFormatMismatch is returned when a WAV payload does not carry 16-bit PCM.
var ErrFormatMismatch = errors.New("WAV format mismatch")

// Format describes the PCM layout of a WAV container.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DecodeWAV decodes a 16-bit PCM WAV file of any rate and channel count.
func DecodeWAV(data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Op: "wav", Err: errors.New("empty WAV input")}
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, &DecodeError{Op: "wav", Err: errors.New("invalid WAV file")}
	}
	if dec.BitDepth != BitDepth {
		return nil, &DecodeError{Op: "wav", Err: fmt.Errorf("%w: bit depth %d, want %d", ErrFormatMismatch, dec.BitDepth, BitDepth)}
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, &DecodeError{Op: "wav", Err: fmt.Errorf("reading PCM data: %w", err)}
	}

	// The decoder reports the header values; prefer them over the buffer's
	// format, which older files sometimes leave zeroed.
	pcm.Format = &goaudio.Format{SampleRate: int(dec.SampleRate), NumChannels: int(dec.NumChans)}
	out, err := FromFloat32Buffer(pcm)
	if err != nil {
		return nil, &DecodeError{Op: "wav", Err: err}
	}
	return out, nil
}

// PCMFromWAV returns the raw bytes of the "data" chunk of a PCM WAV file
// together with its format. The bytes are not copied.
func PCMFromWAV(data []byte) ([]byte, Format, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, Format{}, &DecodeError{Op: "wav", Err: errors.New("missing RIFF/WAVE header")}
	}

	var (
		format  Format
		haveFmt bool
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return nil, Format{}, &DecodeError{Op: "wav", Err: errors.New("truncated fmt chunk")}
			}
			format = Format{
				Channels:   int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
				SampleRate: int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				BitDepth:   int(binary.LittleEndian.Uint16(data[body+14 : body+16])),
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, Format{}, &DecodeError{Op: "wav", Err: errors.New("data chunk before fmt chunk")}
			}
			if format.BitDepth != BitDepth {
				return nil, Format{}, &DecodeError{Op: "wav", Err: fmt.Errorf("%w: bit depth %d, want %d", ErrFormatMismatch, format.BitDepth, BitDepth)}
			}
			end := body + size
			// Streaming writers leave the size at 0xFFFFFFFF.
			if end > len(data) || end < body {
				end = len(data)
			}
			return data[body:end], format, nil
		}

		offset = body + size
		if size%2 != 0 {
			offset++
		}
	}
	return nil, Format{}, &DecodeError{Op: "wav", Err: errors.New("data chunk not found")}
}
