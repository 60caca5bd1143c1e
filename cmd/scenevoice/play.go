package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-scene-voice/internal/audio"
	"github.com/example/go-scene-voice/internal/playback"
)

// seekStep is the jump applied by the f and b keys.
const seekStep = 10 * time.Second

// newOutput opens the audio device; tests replace it.
var newOutput playback.OutputFactory = playback.NewOtoOutput

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play a WAV file or a saved PCM payload with pause and seek controls",
		Long: `Play audio with pause and seek controls.

WAV files are detected by their RIFF header. Other files are read as a
24 kHz mono 16-bit PCM payload: raw bytes for a .pcm file, base64 text
(as returned inline by the Gemini API) for anything else.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			buf, err := decodeAudioFile(args[0], data)
			if err != nil {
				return err
			}
			return playBuffer(cmd.Context(), buf, cmd.InOrStdin(), cmd.ErrOrStderr())
		},
	}
	return cmd
}

// decodeAudioFile picks the decoder for a play argument.
func decodeAudioFile(path string, data []byte) (*audio.Buffer, error) {
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return audio.DecodeWAV(data)
	case strings.EqualFold(filepath.Ext(path), ".pcm"):
		return audio.DecodePCM16(data, audio.DefaultSampleRate, audio.DefaultChannels)
	default:
		return audio.DecodeBase64PCM(string(data), audio.DefaultSampleRate, audio.DefaultChannels)
	}
}

// playBuffer plays buf until it ends, ctx is done or the user quits. Each
// input line is one command: p (play/pause), f/b (seek ±10s), g m:ss (go
// to), r (restart), q (quit).
func playBuffer(ctx context.Context, buf *audio.Buffer, in io.Reader, w io.Writer) error {
	t := playback.New(buf, playback.WithOutputFactory(newOutput))
	defer func() { _ = t.Close() }()

	if err := t.Play(); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, "keys: p play/pause, f/b ±10s, g m:ss seek, r restart, q quit")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	statuses := t.Run(ctx, 200*time.Millisecond)
	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-statuses:
			if !ok {
				_, _ = fmt.Fprintln(w)
				return nil
			}
			printStatus(w, st)
		case line := <-lines:
			quit, err := applyKey(t, line)
			if err != nil {
				_, _ = colourWarning.Fprintf(w, "\n%v\n", err)
			}
			if quit {
				_, _ = fmt.Fprintln(w)
				return nil
			}
			printStatus(w, t.Status())
		}
	}
}

// applyKey runs one playback command and reports whether to quit.
func applyKey(t *playback.Transport, line string) (bool, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		fields = []string{"p"}
	}

	switch fields[0] {
	case "q", "quit":
		return true, t.Stop()
	case "p", "pause", "play":
		if t.State() == playback.StatePlaying {
			return false, t.Pause()
		}
		return false, t.Play()
	case "f":
		return false, t.Seek(t.Offset() + seekStep)
	case "b":
		return false, t.Seek(t.Offset() - seekStep)
	case "r":
		return false, t.Seek(0)
	case "g":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: g m:ss")
		}
		d, err := parseOffset(fields[1])
		if err != nil {
			return false, err
		}
		return false, t.Seek(d)
	default:
		return false, fmt.Errorf("unknown key %q", fields[0])
	}
}

// parseOffset accepts m:ss or plain seconds.
func parseOffset(s string) (time.Duration, error) {
	mins, secs, found := strings.Cut(s, ":")
	if !found {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid offset %q", s)
		}
		return time.Duration(n) * time.Second, nil
	}
	m, err := strconv.Atoi(mins)
	if err != nil || m < 0 {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	sec, err := strconv.Atoi(secs)
	if err != nil || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	return time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

func printStatus(w io.Writer, st playback.Status) {
	mark := "▶"
	if st.State != playback.StatePlaying {
		mark = "⏸"
	}
	_, _ = fmt.Fprintf(w, "\r%s %s / %s ", mark, playback.FormatOffset(st.Offset), playback.FormatOffset(st.Duration))
}
