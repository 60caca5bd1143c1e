package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/example/go-scene-voice/internal/audio"
	"github.com/example/go-scene-voice/internal/config"
	"github.com/example/go-scene-voice/internal/scenario"
	"github.com/example/go-scene-voice/internal/voice"
)

func newVoicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List and preview narrator voices",
	}
	cmd.AddCommand(newVoicesListCmd())
	cmd.AddCommand(newVoicesPreviewCmd())
	return cmd
}

func newVoicesListCmd() *cobra.Command {
	var gender string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List voices in the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			catalog, err := voice.Load(cfg.TTS.VoiceManifest)
			if err != nil {
				return err
			}
			voices := catalog.List()
			if gender != "" {
				g, err := scenario.ParseGender(gender)
				if err != nil {
					return err
				}
				voices = catalog.ByGender(g)
			}
			return printVoices(cmd.OutOrStdout(), cfg, voices)
		},
	}
	cmd.Flags().StringVar(&gender, "gender", "", "Only list voices of this gender (male|female)")
	return cmd
}

func printVoices(w io.Writer, cfg config.Config, voices []voice.Voice) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tGENDER\tBACKEND NAME\tDESCRIPTION")
	for _, v := range voices {
		name := v.ID
		switch cfg.TTS.Backend {
		case config.BackendCloud:
			name = voice.CloudName(cfg.TTS.LanguageCode, v.ID)
		case config.BackendLocal:
			name = v.Local
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, v.Gender, name, v.Description)
	}
	return tw.Flush()
}

func newVoicesPreviewCmd() *cobra.Command {
	var (
		out  string
		play bool
	)

	cmd := &cobra.Command{
		Use:   "preview <voice>",
		Short: "Narrate a short sample with a voice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			buf, err := previewVoice(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}
			if out != "" {
				wav := audio.EncodeWAV(buf)
				path, err := writeSpeechOutput(cfg, out, wav, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				if path != "" {
					_, _ = colourSuccess.Fprintf(cmd.ErrOrStderr(), "wrote %s (%s)\n", path, humanize.Bytes(uint64(len(wav))))
				}
			}
			if play || out == "" {
				return playBuffer(cmd.Context(), buf, cmd.InOrStdin(), cmd.ErrOrStderr())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Save the sample as WAV instead of only playing it")
	cmd.Flags().BoolVar(&play, "play", false, "Play the sample even when --out is set")
	return cmd
}

// previewVoice synthesizes the gender-appropriate sample line for id.
func previewVoice(ctx context.Context, cfg config.Config, id string) (*audio.Buffer, error) {
	d, err := newDeps(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = d.Close() }()

	v, err := d.catalog.Lookup(id)
	if err != nil {
		return nil, err
	}
	orch, err := d.synthesizer(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	res, err := orch.Synthesize(ctx, voice.PreviewText(v.Gender), v.ID)
	if err != nil {
		return nil, describeSynthesisError(err)
	}
	return res.Buffer, nil
}
