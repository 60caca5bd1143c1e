package audio

import (
	"errors"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
)

func TestNewBuffer(t *testing.T) {
	b, err := NewBuffer(24000, 2, 100)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	if b.NumChannels() != 2 || b.Frames() != 100 {
		t.Errorf("shape = %dch x %d; want 2ch x 100", b.NumChannels(), b.Frames())
	}

	if _, err := NewBuffer(0, 1, 10); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("NewBuffer(rate 0) err = %v; want ErrInvalidFormat", err)
	}
	if _, err := NewBuffer(24000, 0, 10); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("NewBuffer(channels 0) err = %v; want ErrInvalidFormat", err)
	}
}

func TestBufferDuration(t *testing.T) {
	b, _ := NewBuffer(24000, 1, 36000)
	if b.Seconds() != 1.5 {
		t.Errorf("Seconds = %v; want 1.5", b.Seconds())
	}
	if b.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration = %v; want 1.5s", b.Duration())
	}

	var nilBuf *Buffer
	if nilBuf.Seconds() != 0 || nilBuf.Frames() != 0 {
		t.Error("nil buffer should report zero length")
	}
}

func TestBufferFrameAt(t *testing.T) {
	b, _ := NewBuffer(1000, 1, 500)

	tests := []struct {
		offset time.Duration
		want   int
	}{
		{-time.Second, 0},
		{0, 0},
		{100 * time.Millisecond, 100},
		{500 * time.Millisecond, 500},
		{2 * time.Second, 500},
	}
	for _, tt := range tests {
		if got := b.FrameAt(tt.offset); got != tt.want {
			t.Errorf("FrameAt(%v) = %d; want %d", tt.offset, got, tt.want)
		}
	}
}

func TestBufferInterleaved(t *testing.T) {
	b := makeBuffer(8000, []float32{1, 2, 3}, []float32{-1, -2, -3})

	got := b.Interleaved(1)
	want := []float32{2, -2, 3, -3}
	if len(got) != len(want) {
		t.Fatalf("len = %d; want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %v; want %v", i, got[i], want[i])
		}
	}
	if len(b.Interleaved(10)) != 0 {
		t.Error("Interleaved past the end should be empty")
	}
}

func TestFromFloat32Buffer(t *testing.T) {
	src := &goaudio.Float32Buffer{
		Data:   []float32{0.1, 0.3, 0.2, 0.4, 0.5},
		Format: &goaudio.Format{SampleRate: 22050, NumChannels: 2},
	}

	got, err := FromFloat32Buffer(src)
	if err != nil {
		t.Fatalf("FromFloat32Buffer: %v", err)
	}
	want := makeBuffer(22050, []float32{0.1, 0.2}, []float32{0.3, 0.4})
	if !equalBuffers(want, got) {
		t.Errorf("channels = %v; want %v", got.Channels, want.Channels)
	}

	if _, err := FromFloat32Buffer(nil); err == nil {
		t.Error("FromFloat32Buffer(nil) should fail")
	}
	if _, err := FromFloat32Buffer(&goaudio.Float32Buffer{Data: []float32{0}}); err == nil {
		t.Error("FromFloat32Buffer without format should fail")
	}
}
