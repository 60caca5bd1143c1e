package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-scene-voice/internal/config"
	"github.com/example/go-scene-voice/internal/history"
	"github.com/example/go-scene-voice/internal/scenario"
)

type generateOptions struct {
	Preset        string
	Part          int
	Transcript    string
	SpeakerGender string
	Words         string
	Out           string
}

type generatedPart struct {
	SessionID string           `json:"sessionId,omitempty"`
	Part      int              `json:"part"`
	Script    *scenario.Script `json:"script"`
}

func newGenerateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a session script from a scenario preset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			return runGenerateCommand(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Preset, "preset", "", "Scenario preset YAML (participants, acts, tone, ...)")
	cmd.Flags().IntVar(&opts.Part, "part", 0, "Part to generate (1 or 2); 0 generates both in order")
	cmd.Flags().StringVar(&opts.Transcript, "transcript", "", "Voice-input transcript JSON to append to custom words")
	cmd.Flags().StringVar(&opts.SpeakerGender, "speaker-gender", "", "Narrator gender (male|female)")
	cmd.Flags().StringVar(&opts.Words, "words", "", "Custom words to weave into the script")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the generated parts as JSON to this path ('-' for stdout)")
	_ = cmd.MarkFlagRequired("preset")

	return cmd
}

func runGenerateCommand(ctx context.Context, cfg config.Config, opts generateOptions, stdout io.Writer) error {
	sc, err := buildScenario(cfg, opts)
	if err != nil {
		return err
	}

	d, err := newDeps(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	gen := d.generator()

	var parts []generatedPart
	if opts.Part == 0 {
		both, err := gen.GenerateBoth(ctx, sc)
		for i, s := range both {
			if s != nil {
				parts = append(parts, generatedPart{Part: i + 1, Script: s})
			}
		}
		if err != nil && len(parts) == 0 {
			return describeGenerationError(err)
		}
		if err != nil {
			_, _ = colourWarning.Fprintf(stdout, "warning: %s\n", scenario.UserMessage(err))
		}
	} else {
		s, err := gen.Generate(ctx, sc.WithPart(opts.Part))
		if err != nil {
			return describeGenerationError(err)
		}
		parts = append(parts, generatedPart{Part: opts.Part, Script: s})
	}

	for i := range parts {
		sess, ok := d.record(ctx, history.Session{
			Config: sc.WithPart(parts[i].Part),
			Script: parts[i].Script,
			Voice:  sc.Voice,
		})
		if ok {
			parts[i].SessionID = sess.ID
		}
	}

	if opts.Out != "" {
		return writeGeneratedJSON(opts.Out, parts, stdout)
	}
	for _, p := range parts {
		printScript(stdout, p)
	}
	return nil
}

// buildScenario merges the preset with command-line overrides and defaults.
func buildScenario(cfg config.Config, opts generateOptions) (scenario.Config, error) {
	if opts.Preset == "" {
		return scenario.Config{}, errors.New("--preset is required")
	}
	if opts.Part < 0 || opts.Part > 2 {
		return scenario.Config{}, fmt.Errorf("--part must be 0, 1 or 2, got %d", opts.Part)
	}

	sc, err := scenario.LoadPreset(opts.Preset)
	if err != nil {
		return scenario.Config{}, err
	}
	if opts.SpeakerGender != "" {
		g, err := scenario.ParseGender(opts.SpeakerGender)
		if err != nil {
			return scenario.Config{}, err
		}
		sc.SpeakerGender = g
	}
	if opts.Words != "" {
		sc.CustomWords = strings.TrimSpace(sc.CustomWords + " " + opts.Words)
	}
	if opts.Transcript != "" {
		data, err := os.ReadFile(opts.Transcript)
		if err != nil {
			return scenario.Config{}, fmt.Errorf("read transcript: %w", err)
		}
		tr, err := scenario.ParseTranscript(data)
		if err != nil {
			return scenario.Config{}, err
		}
		if sc, err = sc.WithTranscript(tr); err != nil {
			return scenario.Config{}, err
		}
	}
	if sc.Voice == "" && cfg.TTS.Voice != "" {
		sc.Voice = cfg.TTS.Voice
	}

	sc = sc.WithDefaults()
	if err := sc.Validate(); err != nil {
		return scenario.Config{}, err
	}
	return sc, nil
}

func describeGenerationError(err error) error {
	var genErr *scenario.GenerationError
	if errors.As(err, &genErr) {
		return fmt.Errorf("%s: %w", genErr.Message(), err)
	}
	return err
}

func writeGeneratedJSON(path string, parts []generatedPart, stdout io.Writer) error {
	data, err := json.MarshalIndent(parts, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	_, _ = colourSuccess.Fprintf(stdout, "wrote %d part(s) to %s\n", len(parts), path)
	return nil
}

func printScript(w io.Writer, p generatedPart) {
	_, _ = colourTitle.Fprintf(w, "Part %d", p.Part)
	if p.SessionID != "" {
		_, _ = fmt.Fprintf(w, "  (session %s)", p.SessionID)
	}
	_, _ = fmt.Fprintln(w)

	for i, ph := range p.Script.Phases {
		_, _ = colourPhase.Fprintf(w, "\n%d. %s", i+1, ph.Title)
		if ph.Duration != "" {
			_, _ = fmt.Fprintf(w, " [%s]", ph.Duration)
		}
		_, _ = fmt.Fprintln(w)
		printField(w, "Pose", ph.Pose)
		printField(w, "Inventory", ph.Inventory)
		printField(w, "Action", ph.Action)
		printField(w, "Line", ph.HighlightLine)
		printField(w, "Senses", ph.SensoryNotes)
	}

	_, _ = colourTitle.Fprintf(w, "\nScript (%d words)\n", p.Script.WordCount())
	_, _ = fmt.Fprintln(w, p.Script.Script)
	_, _ = fmt.Fprintln(w)
}

func printField(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	_, _ = colourLabel.Fprintf(w, "   %s: ", label)
	_, _ = fmt.Fprintln(w, value)
}
