package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-scene-voice/internal/config"
	"github.com/example/go-scene-voice/internal/doctor"
	"github.com/example/go-scene-voice/internal/speech"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check API keys, speech backend and local paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			return runDoctor(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	return cmd
}

func runDoctor(cfg config.Config, stdout, stderr io.Writer) error {
	_, _ = fmt.Fprintf(stdout, "backend: %s\n", cfg.TTS.Backend)

	dcfg := doctor.Config{
		APIKey:           cfg.Gemini.APIKey,
		Backend:          cfg.TTS.Backend,
		CloudCredentials: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		VoiceManifest:    cfg.TTS.VoiceManifest,
		OutputDir:        cfg.Output.Dir,
	}
	if cfg.TTS.Backend == config.BackendLocal {
		dcfg.PocketTTS = func() error { return speech.Preflight(cfg.TTS.CLIPath) }
		dcfg.PythonVersion = probePythonVersion
	}
	if cfg.History.Enabled {
		dcfg.HistoryPath = cfg.History.Path
	}

	result := doctor.Run(dcfg, stdout)
	if result.Failed() {
		for _, f := range result.Failures() {
			_, _ = colourError.Fprintf(stderr, "FAIL: %s\n", f)
		}
		return errors.New("doctor checks failed")
	}

	_, _ = colourSuccess.Fprintln(stdout, "doctor checks passed")
	return nil
}

// probePythonVersion tries python3 then python and returns the version string.
func probePythonVersion() (string, error) {
	for _, bin := range []string{"python3", "python"} {
		out, err := exec.CommandContext(context.Background(), bin, "--version").Output()
		if err != nil {
			continue
		}
		// Output is e.g. "Python 3.11.4\n"
		raw := strings.TrimPrefix(strings.TrimSpace(string(out)), "Python ")
		if raw != "" {
			return raw, nil
		}
	}
	return "", errors.New("python3/python not found on PATH")
}
