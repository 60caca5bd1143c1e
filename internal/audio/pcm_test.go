package audio

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestQuantize(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32768},
		{0.5, 16383},
		{-0.5, -16384},
		{2, 32767},
		{-3, -32768},
	}
	for _, tt := range tests {
		if got := Quantize(tt.in); got != tt.want {
			t.Errorf("Quantize(%v) = %d; want %d", tt.in, got, tt.want)
		}
	}
}

func TestDecodePCM16(t *testing.T) {
	// -32768, 32767, 0, 16384
	raw := []byte{0x00, 0x80, 0xff, 0x7f, 0x00, 0x00, 0x00, 0x40}

	buf, err := DecodePCM16(raw, 24000, 1)
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	want := []float32{-1, 32767.0 / 32768.0, 0, 0.5}
	if buf.Frames() != len(want) {
		t.Fatalf("Frames = %d; want %d", buf.Frames(), len(want))
	}
	for i, w := range want {
		if got := buf.Channels[0][i]; got != w {
			t.Errorf("sample[%d] = %v; want %v", i, got, w)
		}
	}
}

func TestDecodePCM16_Stereo(t *testing.T) {
	// L=16384 R=-16384, L=0 R=16384, trailing L sample without a partner.
	raw := []byte{0x00, 0x40, 0x00, 0xc0, 0x00, 0x00, 0x00, 0x40, 0x00, 0x40}

	buf, err := DecodePCM16(raw, 48000, 2)
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	if buf.Frames() != 2 {
		t.Fatalf("Frames = %d; want 2", buf.Frames())
	}
	if buf.Channels[0][0] != 0.5 || buf.Channels[1][0] != -0.5 {
		t.Errorf("frame 0 = (%v, %v); want (0.5, -0.5)", buf.Channels[0][0], buf.Channels[1][0])
	}
	if buf.Channels[0][1] != 0 || buf.Channels[1][1] != 0.5 {
		t.Errorf("frame 1 = (%v, %v); want (0, 0.5)", buf.Channels[0][1], buf.Channels[1][1])
	}
}

func TestDecodePCM16_EdgeCases(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		buf, err := DecodePCM16(nil, 24000, 1)
		if err != nil {
			t.Fatalf("DecodePCM16(nil): %v", err)
		}
		if buf.Frames() != 0 {
			t.Errorf("Frames = %d; want 0", buf.Frames())
		}
		if buf.Seconds() != 0 {
			t.Errorf("Seconds = %v; want 0", buf.Seconds())
		}
	})

	t.Run("odd trailing byte", func(t *testing.T) {
		buf, err := DecodePCM16([]byte{0x00, 0x40, 0x7f}, 24000, 1)
		if err != nil {
			t.Fatalf("DecodePCM16: %v", err)
		}
		if buf.Frames() != 1 {
			t.Errorf("Frames = %d; want 1", buf.Frames())
		}
	})

	for _, tt := range []struct {
		name       string
		sampleRate int
		channels   int
	}{
		{"zero channels", 24000, 0},
		{"negative channels", 24000, -2},
		{"zero sample rate", 0, 1},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePCM16([]byte{0, 0}, tt.sampleRate, tt.channels)
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("expected *DecodeError, got %v", err)
			}
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("expected ErrInvalidFormat in chain, got %v", err)
			}
		})
	}
}

func TestDecodeBase64PCM(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{0x00, 0x40, 0x00, 0xc0})

	buf, err := DecodeBase64PCM(payload+"\n", 24000, 1)
	if err != nil {
		t.Fatalf("DecodeBase64PCM: %v", err)
	}
	if buf.Frames() != 2 {
		t.Fatalf("Frames = %d; want 2", buf.Frames())
	}
	if buf.Channels[0][0] != 0.5 || buf.Channels[0][1] != -0.5 {
		t.Errorf("samples = %v; want [0.5 -0.5]", buf.Channels[0])
	}
}

func TestDecodeBase64PCM_Malformed(t *testing.T) {
	_, err := DecodeBase64PCM("!!not base64!!", 24000, 1)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
	if decErr.Op != "base64" {
		t.Errorf("Op = %q; want %q", decErr.Op, "base64")
	}
}

func TestEncodePCM16_FromFrame(t *testing.T) {
	b := makeBuffer(24000, []float32{0, 0.5, -0.5})

	if got := len(EncodePCM16(b, 0)); got != 6 {
		t.Errorf("len(from 0) = %d; want 6", got)
	}
	if got := len(EncodePCM16(b, 2)); got != 2 {
		t.Errorf("len(from 2) = %d; want 2", got)
	}
	if got := len(EncodePCM16(b, 3)); got != 0 {
		t.Errorf("len(from end) = %d; want 0", got)
	}
	if got := len(EncodePCM16(b, -5)); got != 6 {
		t.Errorf("len(from -5) = %d; want 6", got)
	}
}
