package doctor_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-scene-voice/internal/doctor"
)

func localConfig(t *testing.T) doctor.Config {
	t.Helper()
	dir := t.TempDir()
	return doctor.Config{
		APIKey:        "test-key-1234",
		Backend:       "local",
		PocketTTS:     func() error { return nil },
		PythonVersion: func() (string, error) { return "3.11.4", nil },
		OutputDir:     filepath.Join(dir, "out"),
		HistoryPath:   filepath.Join(dir, "data", "history.db"),
	}
}

func TestRun_AllChecksPass(t *testing.T) {
	var out strings.Builder
	res := doctor.Run(localConfig(t), &out)

	if res.Failed() {
		t.Fatalf("Failed() = true; want false; failures: %v\noutput:\n%s", res.Failures(), out.String())
	}
	if strings.Contains(out.String(), doctor.FailMark) {
		t.Errorf("output contains %q:\n%s", doctor.FailMark, out.String())
	}
}

func TestRun_APIKeyMissingFails(t *testing.T) {
	cfg := localConfig(t)
	cfg.APIKey = "  "

	var out strings.Builder
	res := doctor.Run(cfg, &out)

	if !res.Failed() {
		t.Fatal("Failed() = false; want true when the API key is missing")
	}
	if !hasFailureContaining(res.Failures(), "api key") {
		t.Errorf("failures = %v; want one mentioning api key", res.Failures())
	}
}

func TestRun_APIKeyIsMasked(t *testing.T) {
	cfg := localConfig(t)
	cfg.APIKey = "secret-abcd"

	var out strings.Builder
	doctor.Run(cfg, &out)

	if strings.Contains(out.String(), "secret") {
		t.Errorf("output leaks the key:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "****abcd") {
		t.Errorf("output = %q; want masked key suffix", out.String())
	}
}

func TestRun_PocketTTSMissingFails(t *testing.T) {
	cfg := localConfig(t)
	cfg.PocketTTS = func() error { return errBinaryNotFound }

	var out strings.Builder
	res := doctor.Run(cfg, &out)

	if !res.Failed() {
		t.Fatal("Failed() = false; want true when pocket-tts is missing")
	}
	if !hasFailureContaining(res.Failures(), "pocket-tts") {
		t.Errorf("failures = %v; want one mentioning pocket-tts", res.Failures())
	}
}

func TestRun_PythonRange(t *testing.T) {
	tests := []struct {
		ver      string
		wantFail bool
	}{
		{"3.9.18", true},
		{"3.10.0", false},
		{"3.14.2", false},
		{"3.15.0", true},
		{"2.7.18", true},
	}
	for _, tt := range tests {
		t.Run(tt.ver, func(t *testing.T) {
			cfg := localConfig(t)
			cfg.PythonVersion = func() (string, error) { return tt.ver, nil }

			var out strings.Builder
			res := doctor.Run(cfg, &out)
			got := hasFailureContaining(res.Failures(), "python")
			if got != tt.wantFail {
				t.Errorf("python failure = %v; want %v; failures: %v", got, tt.wantFail, res.Failures())
			}
		})
	}
}

func TestRun_RemoteBackendSkipsLocalChecks(t *testing.T) {
	for _, backend := range []string{"gemini", "cloud", ""} {
		t.Run(backend, func(t *testing.T) {
			cfg := localConfig(t)
			cfg.Backend = backend
			cfg.PocketTTS = func() error { return errBinaryNotFound }
			cfg.PythonVersion = func() (string, error) { return "", errBinaryNotFound }

			var out strings.Builder
			res := doctor.Run(cfg, &out)
			if res.Failed() {
				t.Errorf("Failed() = true; want false for backend %q: %v", backend, res.Failures())
			}
			if strings.Contains(out.String(), "pocket-tts") {
				t.Errorf("output mentions pocket-tts for backend %q:\n%s", backend, out.String())
			}
		})
	}
}

func TestRun_CloudCredentials(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(creds, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		wantFail bool
	}{
		{"application default", "", false},
		{"present", creds, false},
		{"missing", filepath.Join(dir, "nope.json"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := localConfig(t)
			cfg.Backend = "cloud"
			cfg.CloudCredentials = tt.path

			var out strings.Builder
			res := doctor.Run(cfg, &out)
			if got := hasFailureContaining(res.Failures(), "cloud credentials"); got != tt.wantFail {
				t.Errorf("credential failure = %v; want %v; failures: %v", got, tt.wantFail, res.Failures())
			}
		})
	}
}

func TestRun_VoiceManifest(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "voices.json")
	if err := os.WriteFile(good, []byte(`{"voices":[{"id":"Kore","gender":"female"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := localConfig(t)
	cfg.VoiceManifest = good
	var out strings.Builder
	if res := doctor.Run(cfg, &out); res.Failed() {
		t.Fatalf("Failed() = true for valid manifest: %v", res.Failures())
	}
	if !strings.Contains(out.String(), "1 voices") {
		t.Errorf("output = %q; want voice count", out.String())
	}

	cfg.VoiceManifest = filepath.Join(dir, "missing.json")
	out.Reset()
	res := doctor.Run(cfg, &out)
	if !hasFailureContaining(res.Failures(), "voice manifest") {
		t.Errorf("failures = %v; want voice manifest failure", res.Failures())
	}
}

func TestRun_OutputDirNotWritable(t *testing.T) {
	dir := t.TempDir()
	// A regular file where a directory is expected cannot be created.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := localConfig(t)
	cfg.OutputDir = filepath.Join(blocker, "out")

	var out strings.Builder
	res := doctor.Run(cfg, &out)
	if !hasFailureContaining(res.Failures(), "output dir") {
		t.Errorf("failures = %v; want output dir failure", res.Failures())
	}
	if !strings.Contains(out.String(), doctor.FailMark) {
		t.Errorf("output missing %q:\n%s", doctor.FailMark, out.String())
	}
}

func TestRun_HistoryDisabledSkipsCheck(t *testing.T) {
	cfg := localConfig(t)
	cfg.HistoryPath = ""

	var out strings.Builder
	doctor.Run(cfg, &out)
	if strings.Contains(out.String(), "history") {
		t.Errorf("output mentions history with an empty path:\n%s", out.String())
	}
}

func TestResult_AddFailure(t *testing.T) {
	var res doctor.Result
	res.AddFailure("server: unreachable")
	if !res.Failed() {
		t.Fatal("Failed() = false after AddFailure")
	}
	got := res.Failures()
	got[0] = "mutated"
	if res.Failures()[0] != "server: unreachable" {
		t.Errorf("Failures() exposes internal slice")
	}
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

var errBinaryNotFound = sentinelError("binary not found")

func hasFailureContaining(failures []string, substr string) bool {
	substr = strings.ToLower(substr)
	for _, f := range failures {
		if strings.Contains(strings.ToLower(f), substr) {
			return true
		}
	}
	return false
}
