// Package doctor provides environment preflight checks for scenevoice.
package doctor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/example/go-scene-voice/internal/voice"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// APIKey is the configured Gemini key; script generation always needs it.
	APIKey string
	// Backend is the normalized speech backend (gemini|cloud|local).
	Backend string
	// PocketTTS resolves the pocket-tts executable (local backend only).
	PocketTTS func() error
	// PythonVersion returns the Python version string (e.g. "3.11.4"); nil skips the check.
	PythonVersion VersionFunc
	// CloudCredentials is GOOGLE_APPLICATION_CREDENTIALS (cloud backend only).
	// Empty means application default credentials from the environment.
	CloudCredentials string
	// VoiceManifest is an optional voice catalog to load.
	VoiceManifest string
	// OutputDir must be creatable and writable.
	OutputDir string
	// HistoryPath is checked when non-empty.
	HistoryPath string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- Gemini API key ---------------------------------------------------
	if strings.TrimSpace(cfg.APIKey) == "" {
		res.fail("gemini api key: not set")
		fmt.Fprintf(w, "%s gemini api key: not set (use --api-key or GEMINI_API_KEY)\n", FailMark)
	} else {
		fmt.Fprintf(w, "%s gemini api key: set (%s)\n", PassMark, maskKey(cfg.APIKey))
	}

	// ---- speech backend ---------------------------------------------------
	switch cfg.Backend {
	case "local":
		checkLocal(cfg, w, &res)
	case "cloud":
		checkCloud(cfg, w, &res)
	default:
		fmt.Fprintf(w, "%s speech backend: %s\n", PassMark, backendName(cfg.Backend))
	}

	// ---- voice catalog ----------------------------------------------------
	if cfg.VoiceManifest != "" {
		cat, err := voice.Load(cfg.VoiceManifest)
		if err != nil {
			res.fail(fmt.Sprintf("voice manifest %q: %v", cfg.VoiceManifest, err))
			fmt.Fprintf(w, "%s voice manifest %s: %v\n", FailMark, cfg.VoiceManifest, err)
		} else {
			fmt.Fprintf(w, "%s voice manifest: %d voices\n", PassMark, len(cat.List()))
		}
	}

	// ---- output directory -------------------------------------------------
	if cfg.OutputDir != "" {
		if err := checkWritableDir(cfg.OutputDir); err != nil {
			res.fail(fmt.Sprintf("output dir %q: %v", cfg.OutputDir, err))
			fmt.Fprintf(w, "%s output dir %s: %v\n", FailMark, cfg.OutputDir, err)
		} else {
			fmt.Fprintf(w, "%s output dir: %s\n", PassMark, cfg.OutputDir)
		}
	}

	// ---- history database -------------------------------------------------
	if cfg.HistoryPath != "" {
		if err := checkWritableDir(filepath.Dir(cfg.HistoryPath)); err != nil {
			res.fail(fmt.Sprintf("history path %q: %v", cfg.HistoryPath, err))
			fmt.Fprintf(w, "%s history path %s: %v\n", FailMark, cfg.HistoryPath, err)
		} else {
			fmt.Fprintf(w, "%s history path: %s\n", PassMark, cfg.HistoryPath)
		}
	}

	return res
}

func checkLocal(cfg Config, w io.Writer, res *Result) {
	if cfg.PocketTTS != nil {
		if err := cfg.PocketTTS(); err != nil {
			res.fail(fmt.Sprintf("pocket-tts binary: %v", err))
			fmt.Fprintf(w, "%s pocket-tts binary: not found (%v)\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s pocket-tts binary: found\n", PassMark)
		}
	}

	if cfg.PythonVersion == nil {
		fmt.Fprintf(w, "%s python version: skipped\n", PassMark)
		return
	}
	pyVer, err := cfg.PythonVersion()
	if err != nil {
		res.fail(fmt.Sprintf("python version: %v", err))
		fmt.Fprintf(w, "%s python version: not found (%v)\n", FailMark, err)
	} else if pyErr := checkPythonVersion(pyVer); pyErr != nil {
		res.fail(fmt.Sprintf("python version: %v", pyErr))
		fmt.Fprintf(w, "%s python version %s: %v\n", FailMark, pyVer, pyErr)
	} else {
		fmt.Fprintf(w, "%s python version: %s\n", PassMark, pyVer)
	}
}

func checkCloud(cfg Config, w io.Writer, res *Result) {
	if cfg.CloudCredentials == "" {
		fmt.Fprintf(w, "%s cloud credentials: application default\n", PassMark)
		return
	}
	if _, err := os.Stat(cfg.CloudCredentials); err != nil {
		res.fail(fmt.Sprintf("cloud credentials %q: %v", cfg.CloudCredentials, err))
		fmt.Fprintf(w, "%s cloud credentials %s: not found\n", FailMark, cfg.CloudCredentials)
		return
	}
	fmt.Fprintf(w, "%s cloud credentials: %s\n", PassMark, cfg.CloudCredentials)
}

func backendName(b string) string {
	if b == "" {
		return "gemini"
	}
	return b
}

func maskKey(k string) string {
	k = strings.TrimSpace(k)
	if len(k) <= 4 {
		return "****"
	}
	return "****" + k[len(k)-4:]
}

// checkWritableDir creates dir if needed and probes it with a temp file.
func checkWritableDir(dir string) error {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".scenevoice-doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// checkPythonVersion returns an error if ver is outside [3.10, 3.15).
// ver is expected to be a string like "3.11.4".
func checkPythonVersion(ver string) error {
	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}
	if major != 3 {
		return fmt.Errorf("requires Python 3, got %d", major)
	}
	if minor < 10 {
		return fmt.Errorf("requires Python >=3.10, got 3.%d", minor)
	}
	if minor >= 15 {
		return fmt.Errorf("requires Python <3.15, got 3.%d", minor)
	}
	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(strings.TrimSpace(ver), ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}
	return major, minor, nil
}
