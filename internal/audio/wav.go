package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// MIMEType is the content type of EncodeWAV output.
const MIMEType = "audio/wav"

// HeaderSize is the length of the canonical RIFF/WAVE header written by
// EncodeWAV.
const HeaderSize = 44

// EncodeWAV serializes the buffer as a canonical 16-bit PCM WAV file.
// Identical input always produces identical bytes. A nil buffer encodes as
// Silence().
func EncodeWAV(b *Buffer) []byte {
	if b == nil {
		b = Silence()
	}
	var buf bytes.Buffer
	buf.Grow(HeaderSize + b.Frames()*b.NumChannels()*2)
	_, _ = WriteWAV(&buf, b)
	return buf.Bytes()
}

// WriteWAV writes the header followed by interleaved samples to w. A nil
// buffer is written as Silence().
func WriteWAV(w io.Writer, b *Buffer) (int64, error) {
	if b == nil {
		b = Silence()
	}
	hdr := wavHeader(b)
	n, err := w.Write(hdr[:])
	if err != nil {
		return int64(n), fmt.Errorf("write wav header: %w", err)
	}
	m, err := w.Write(EncodePCM16(b, 0))
	total := int64(n + m)
	if err != nil {
		return total, fmt.Errorf("write wav samples: %w", err)
	}
	return total, nil
}

func wavHeader(b *Buffer) [HeaderSize]byte {
	channels := b.NumChannels()
	sampleRate := b.SampleRate
	dataSize := b.Frames() * channels * 2

	var hdr [HeaderSize]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(HeaderSize+dataSize-8))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(sampleRate*2*channels))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(hdr[34:36], BitDepth)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(dataSize))
	return hdr
}

// DownloadName builds the timestamped file name offered for a download,
// e.g. "session_1760400000000.wav".
func DownloadName(prefix string, t time.Time) string {
	if prefix == "" {
		prefix = "session"
	}
	return fmt.Sprintf("%s_%d.wav", prefix, t.UnixMilli())
}
