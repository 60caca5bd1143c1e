package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/example/go-scene-voice/internal/audio"
	"github.com/example/go-scene-voice/internal/config"
	"github.com/example/go-scene-voice/internal/history"
	"github.com/example/go-scene-voice/internal/progress"
	"github.com/example/go-scene-voice/internal/scenario"
	"github.com/example/go-scene-voice/internal/synth"
	textpkg "github.com/example/go-scene-voice/internal/text"
)

type speakOptions struct {
	Text          string
	ScriptFile    string
	SessionID     string
	SpeakerGender string
	Out           string
	Play          bool
	Quiet         bool
}

// now is the clock used for download names.
var now = time.Now

func newSpeakCmd() *cobra.Command {
	var opts speakOptions

	cmd := &cobra.Command{
		Use:   "speak",
		Short: "Narrate a script or text to a WAV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			return runSpeakCommand(cmd.Context(), cfg, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.Text, "text", "", "Text to narrate (if no other source is given, read from stdin)")
	cmd.Flags().StringVar(&opts.ScriptFile, "script", "", "Script JSON written by 'generate --out'")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "Narrate the script of a saved history session")
	cmd.Flags().StringVar(&opts.SpeakerGender, "speaker-gender", "", "Narrator gender used to pick the default voice")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Output WAV path ('-' for stdout); default is a timestamped file in the output dir")
	cmd.Flags().BoolVar(&opts.Play, "play", false, "Play the audio after rendering")
	cmd.Flags().BoolVar(&opts.Quiet, "quiet", false, "Suppress the progress display")

	return cmd
}

func runSpeakCommand(ctx context.Context, cfg config.Config, opts speakOptions, stdin io.Reader, stdout, stderr io.Writer) error {
	d, err := newDeps(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	src, err := resolveSpeechSource(ctx, d, opts, stdin)
	if err != nil {
		return err
	}
	if src.text, err = textpkg.Normalize(src.text); err != nil {
		return err
	}

	gender := src.gender
	if opts.SpeakerGender != "" {
		if gender, err = scenario.ParseGender(opts.SpeakerGender); err != nil {
			return err
		}
	}
	voiceID := src.voice
	if voiceID == "" {
		voiceID = cfg.TTS.Voice
	}
	v, err := d.catalog.ForGender(voiceID, gender)
	if err != nil {
		return err
	}

	est := progress.New(src.text)
	var extra []synth.Option
	stopProgress := func() {}
	if !opts.Quiet {
		stopProgress = showProgress(ctx, est, stderr)
		extra = append(extra, synth.WithProgress(func(done, total int) {
			d.log.Debug("chunk progress", "done", done, "total", total)
		}))
	}

	orch, err := d.synthesizer(ctx, extra...)
	if err != nil {
		stopProgress()
		return err
	}
	res, err := orch.Synthesize(ctx, src.text, v.ID)
	est.Done()
	stopProgress()
	if err != nil {
		return describeSynthesisError(err)
	}

	wav := audio.EncodeWAV(res.Buffer)
	path, err := writeSpeechOutput(cfg, opts.Out, wav, stdout)
	if err != nil {
		return err
	}

	if path != "" {
		_, _ = colourSuccess.Fprintf(stderr, "wrote %s (%s, %s, voice %s)\n",
			path, humanize.Bytes(uint64(len(wav))), res.Buffer.Duration().Round(time.Second), v.ID)
	}
	if res.Skipped > 0 {
		_, _ = colourWarning.Fprintf(stderr, "warning: %d of %d chunks were skipped\n", res.Skipped, res.Chunks)
	}

	if src.session != nil && path != "" {
		sess := *src.session
		sess.AudioPath = path
		sess.Voice = v.ID
		sess.Skipped = res.Skipped
		d.record(ctx, sess)
	}

	if opts.Play {
		return playBuffer(ctx, res.Buffer, stdin, stderr)
	}
	return nil
}

type speechSource struct {
	text    string
	voice   string
	gender  scenario.Gender
	session *history.Session
}

func resolveSpeechSource(ctx context.Context, d *deps, opts speakOptions, stdin io.Reader) (speechSource, error) {
	set := 0
	for _, s := range []string{opts.Text, opts.ScriptFile, opts.SessionID} {
		if s != "" {
			set++
		}
	}
	if set > 1 {
		return speechSource{}, errors.New("use only one of --text, --script or --session")
	}

	switch {
	case opts.SessionID != "":
		if d.history == nil {
			return speechSource{}, errors.New("--session requires history to be enabled")
		}
		sess, err := d.history.Get(ctx, opts.SessionID)
		if err != nil {
			return speechSource{}, err
		}
		if sess.Script == nil || strings.TrimSpace(sess.Script.Script) == "" {
			return speechSource{}, fmt.Errorf("session %s has no script", sess.ID)
		}
		return speechSource{
			text:    sess.Script.Script,
			voice:   sess.Config.Voice,
			gender:  sess.Config.SpeakerGender,
			session: &sess,
		}, nil
	case opts.ScriptFile != "":
		data, err := os.ReadFile(opts.ScriptFile)
		if err != nil {
			return speechSource{}, fmt.Errorf("read script: %w", err)
		}
		txt, err := scriptText(data)
		if err != nil {
			return speechSource{}, err
		}
		return speechSource{text: txt}, nil
	case opts.Text != "":
		return speechSource{text: strings.TrimSpace(opts.Text)}, nil
	default:
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return speechSource{}, fmt.Errorf("read stdin: %w", err)
		}
		txt := strings.TrimSpace(string(raw))
		if txt == "" {
			return speechSource{}, errors.New("no text to narrate")
		}
		return speechSource{text: txt}, nil
	}
}

// scriptText accepts either the parts array written by generate or a single
// script object, and joins the spoken text of every part.
func scriptText(data []byte) (string, error) {
	var parts []generatedPart
	if err := json.Unmarshal(data, &parts); err == nil {
		var texts []string
		for _, p := range parts {
			if p.Script != nil && strings.TrimSpace(p.Script.Script) != "" {
				texts = append(texts, strings.TrimSpace(p.Script.Script))
			}
		}
		if len(texts) == 0 {
			return "", errors.New("script file has no spoken text")
		}
		return strings.Join(texts, "\n\n"), nil
	}

	s, err := scenario.ParseScript(string(data))
	if err != nil {
		return "", err
	}
	return s.Script, nil
}

func describeSynthesisError(err error) error {
	var synthErr *synth.SynthesisError
	if errors.As(err, &synthErr) {
		return fmt.Errorf("no audio produced (%d chunks failed): %w", len(synthErr.Failures), err)
	}
	return err
}

// writeSpeechOutput returns the written path, or "" when wav went to stdout.
func writeSpeechOutput(cfg config.Config, out string, wav []byte, stdout io.Writer) (string, error) {
	if out == "-" {
		_, err := stdout.Write(wav)
		return "", err
	}
	if out == "" {
		if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
		out = filepath.Join(cfg.Output.Dir, audio.DownloadName(cfg.Output.Prefix, now()))
	}
	if err := os.WriteFile(out, wav, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	return out, nil
}

// showProgress renders the estimate on one terminal line until the returned
// stop func is called.
func showProgress(ctx context.Context, est *progress.Estimator, w io.Writer) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range est.Watch(ctx, 250*time.Millisecond) {
			_, _ = fmt.Fprintf(w, "\rnarrating %3d%%  ~%s left ", snap.Percent, snap.Remaining.Round(time.Second))
		}
	}()
	return func() {
		cancel()
		<-done
		_, _ = fmt.Fprint(w, "\r\033[K")
	}
}
