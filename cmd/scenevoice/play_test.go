package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/go-scene-voice/internal/audio"
	"github.com/example/go-scene-voice/internal/playback"
)

type fakeOutput struct {
	mu     sync.Mutex
	starts []time.Duration
	stops  int
	closed bool
}

func (o *fakeOutput) Start(_ *audio.Buffer, offset time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.starts = append(o.starts, offset)
	return nil
}

func (o *fakeOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stops++
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

type manualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *manualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

func newTestTransport(t *testing.T, seconds int) (*playback.Transport, *fakeOutput, *manualClock) {
	t.Helper()
	buf, err := audio.NewBuffer(1000, 1, seconds*1000)
	if err != nil {
		t.Fatal(err)
	}
	out := &fakeOutput{}
	clock := &manualClock{}
	tr := playback.New(buf,
		playback.WithClock(clock),
		playback.WithOutputFactory(func(*audio.Buffer) (playback.Output, error) { return out, nil }),
	)
	t.Cleanup(func() { _ = tr.Close() })
	return tr, out, clock
}

func TestApplyKey(t *testing.T) {
	tr, out, clock := newTestTransport(t, 60)

	steps := []struct {
		key        string
		advance    time.Duration
		wantState  playback.State
		wantOffset time.Duration
		wantQuit   bool
	}{
		{key: "p", wantState: playback.StatePlaying, wantOffset: 0},
		{key: "f", advance: 5 * time.Second, wantState: playback.StatePlaying, wantOffset: 15 * time.Second},
		{key: "", advance: 2 * time.Second, wantState: playback.StatePaused, wantOffset: 17 * time.Second},
		{key: "b", wantState: playback.StatePaused, wantOffset: 7 * time.Second},
		{key: "b", wantState: playback.StatePaused, wantOffset: 0},
		{key: "g 0:45", wantState: playback.StatePaused, wantOffset: 45 * time.Second},
		{key: "g 90", wantState: playback.StatePaused, wantOffset: 60 * time.Second},
		{key: "r", wantState: playback.StatePaused, wantOffset: 0},
		{key: "q", wantState: playback.StateIdle, wantOffset: 0, wantQuit: true},
	}
	for _, st := range steps {
		clock.advance(st.advance)
		quit, err := applyKey(tr, st.key)
		if err != nil {
			t.Fatalf("applyKey(%q) error: %v", st.key, err)
		}
		if quit != st.wantQuit {
			t.Errorf("applyKey(%q) quit = %v; want %v", st.key, quit, st.wantQuit)
		}
		if got := tr.State(); got != st.wantState {
			t.Errorf("after %q: State = %v; want %v", st.key, got, st.wantState)
		}
		if got := tr.Offset(); got != st.wantOffset {
			t.Errorf("after %q: Offset = %v; want %v", st.key, got, st.wantOffset)
		}
	}
	if len(out.starts) < 2 {
		t.Errorf("output starts = %v; want play and seek restarts", out.starts)
	}
}

func TestApplyKey_Invalid(t *testing.T) {
	tr, _, _ := newTestTransport(t, 5)
	for _, key := range []string{"x", "g", "g 1:75", "g -3"} {
		if _, err := applyKey(tr, key); err == nil {
			t.Errorf("applyKey(%q) error = nil; want error", key)
		}
	}
}

func TestParseOffset(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"0:00", 0, false},
		{"1:05", 65 * time.Second, false},
		{"12:59", 12*time.Minute + 59*time.Second, false},
		{"42", 42 * time.Second, false},
		{"1:60", 0, true},
		{"a:10", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseOffset(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseOffset(%q) error = %v; wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseOffset(%q) = %v; want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeAudioFile(t *testing.T) {
	// Two frames: 0.5 and -0.5.
	pcm := []byte{0x00, 0x40, 0x00, 0xc0}
	wavBuf, err := audio.DecodePCM16(pcm, 16000, 1)
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}

	tests := []struct {
		name     string
		path     string
		data     []byte
		wantRate int
	}{
		{"wav by header", "take.bin", audio.EncodeWAV(wavBuf), 16000},
		{"raw pcm", "take.pcm", pcm, audio.DefaultSampleRate},
		{"base64 payload", "take.b64", []byte(base64.StdEncoding.EncodeToString(pcm) + "\n"), audio.DefaultSampleRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := decodeAudioFile(tt.path, tt.data)
			if err != nil {
				t.Fatalf("decodeAudioFile: %v", err)
			}
			if buf.SampleRate != tt.wantRate || buf.Frames() != 2 {
				t.Fatalf("buffer = %d Hz x %d frames; want %d Hz x 2", buf.SampleRate, buf.Frames(), tt.wantRate)
			}
			if d0, d1 := buf.Channels[0][0]-0.5, buf.Channels[0][1]+0.5; d0 < -1e-3 || d0 > 1e-3 || d1 < -1e-3 || d1 > 1e-3 {
				t.Errorf("samples = %v; want [0.5 -0.5]", buf.Channels[0])
			}
		})
	}

	if _, err := decodeAudioFile("take.b64", []byte("!!not base64!!")); err == nil {
		t.Error("malformed base64 should fail")
	}
}

func TestPlayBuffer_QuitKey(t *testing.T) {
	out := &fakeOutput{}
	orig := newOutput
	t.Cleanup(func() { newOutput = orig })
	newOutput = func(*audio.Buffer) (playback.Output, error) { return out, nil }

	buf, err := audio.NewBuffer(1000, 1, 60000)
	if err != nil {
		t.Fatal(err)
	}

	var w bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- playBuffer(context.Background(), buf, strings.NewReader("q\n"), &w) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("playBuffer: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("playBuffer did not return after q")
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	if len(out.starts) != 1 || !out.closed {
		t.Errorf("starts = %v, closed = %v; want one start and a closed output", out.starts, out.closed)
	}
	if !strings.Contains(w.String(), "keys:") {
		t.Errorf("output = %q; want key help", w.String())
	}
}

func TestPlayBuffer_ContextCancel(t *testing.T) {
	orig := newOutput
	t.Cleanup(func() { newOutput = orig })
	newOutput = func(*audio.Buffer) (playback.Output, error) { return &fakeOutput{}, nil }

	buf, err := audio.NewBuffer(1000, 1, 60000)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	defer pw.Close()

	done := make(chan error, 1)
	go func() { done <- playBuffer(ctx, buf, pr, &bytes.Buffer{}) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("playBuffer: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("playBuffer did not return after cancel")
	}
}
