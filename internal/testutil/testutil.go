// Package testutil provides shared skip helpers for integration tests and
// assertions on rendered audio.
//
// Each Require helper calls t.Skip with a clear human-readable reason when the
// named prerequisite is absent, so integration tests remain runnable in
// partial environments without failing noisily.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    testutil.RequireAPIKey(t)
//	    ...
//	}
package testutil

import (
	"os"
	"os/exec"
	"testing"
)

// RequirePocketTTS skips the test if the pocket-tts binary is not found in
// PATH or the path given by the SCENEVOICE_TTS_CLI_PATH environment variable.
func RequirePocketTTS(tb testing.TB) {
	tb.Helper()

	exe := os.Getenv("SCENEVOICE_TTS_CLI_PATH")
	if exe == "" {
		exe = "pocket-tts"
	}

	_, err := exec.LookPath(exe)
	if err != nil {
		tb.Skipf("pocket-tts binary not available (%q not in PATH); set SCENEVOICE_TTS_CLI_PATH to override", exe)
	}
}

// RequireAPIKey skips the test unless a Gemini API key is configured and
// returns it.
func RequireAPIKey(tb testing.TB) string {
	tb.Helper()

	for _, env := range []string{"SCENEVOICE_GEMINI_API_KEY", "GEMINI_API_KEY"} {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}

	tb.Skip("no Gemini API key; set GEMINI_API_KEY to run live API tests")
	return ""
}

// RequireAudioOutput skips the test unless SCENEVOICE_AUDIO_TESTS is set.
// Opening a sound device in CI either fails or plays noise on a shared host.
func RequireAudioOutput(tb testing.TB) {
	tb.Helper()

	if os.Getenv("SCENEVOICE_AUDIO_TESTS") == "" {
		tb.Skip("audio output tests disabled; set SCENEVOICE_AUDIO_TESTS=1 to enable")
	}
}
