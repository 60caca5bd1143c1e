package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/example/go-scene-voice/internal/config"
	"github.com/example/go-scene-voice/internal/scenario"
	"github.com/example/go-scene-voice/internal/synth"
	"github.com/example/go-scene-voice/internal/voice"
)

const testScriptJSON = `{"phases":[{"title":"Arrival","duration":"5 min","pose":"standing","action":"greet"}],"script":"Welcome. Breathe in slowly."}`

const testPreset = `participants:
  - name: Alex
    gender: male
acts:
  - slow dance
speaker_gender: male
`

// testConfig returns defaults with every path under a temp dir.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Gemini.APIKey = "test-key"
	cfg.TTS.RatePerSecond = 0
	cfg.TTS.Retries = 0
	cfg.History.Path = filepath.Join(dir, "history.db")
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.Prefix = "scene"
	return cfg
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

type stubText struct {
	mu       sync.Mutex
	requests []scenario.Request
	reply    string
	err      error
}

func (s *stubText) GenerateJSON(_ context.Context, req scenario.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.reply, s.err
}

func stubTextGenerator(t *testing.T, gen *stubText) {
	t.Helper()
	orig := newTextGenerator
	t.Cleanup(func() { newTextGenerator = orig })
	newTextGenerator = func(config.Config, *slog.Logger) scenario.TextGenerator { return gen }
}

type spokenChunk struct {
	Text  string
	Voice string
}

// stubSpeaker installs a speaker returning frames of silence per chunk and
// records what it was asked to say.
func stubSpeaker(t *testing.T, frames int) *[]spokenChunk {
	t.Helper()
	var (
		mu     sync.Mutex
		spoken []spokenChunk
	)
	orig := newSpeaker
	t.Cleanup(func() { newSpeaker = orig })
	newSpeaker = func(context.Context, config.Config, *voice.Catalog, *slog.Logger) (synth.Speaker, func() error, error) {
		sp := synth.SpeakerFunc(func(_ context.Context, text, v string) ([]byte, error) {
			mu.Lock()
			spoken = append(spoken, spokenChunk{Text: text, Voice: v})
			mu.Unlock()
			return make([]byte, frames*2), nil
		})
		return sp, func() error { return nil }, nil
	}
	return &spoken
}
