package config

import (
	"fmt"
	"strings"
)

// Speech backends.
const (
	BackendGemini = "gemini" // Gemini TTS over the Generative Language API
	BackendCloud  = "cloud"  // Google Cloud Text-to-Speech
	BackendLocal  = "local"  // pocket-tts subprocess
)

var backendAliases = map[string]string{
	"":             BackendGemini,
	BackendGemini:  BackendGemini,
	"google":       BackendGemini,
	BackendCloud:   BackendCloud,
	"gcp":          BackendCloud,
	"google-cloud": BackendCloud,
	BackendLocal:   BackendLocal,
	"pocket-tts":   BackendLocal,
	"cli":          BackendLocal,
}

// NormalizeBackend maps a configured backend name or alias to one of the
// Backend constants. An empty name selects BackendGemini.
func NormalizeBackend(raw string) (string, error) {
	if b, ok := backendAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return b, nil
	}
	return "", fmt.Errorf("invalid backend %q (expected %s|%s|%s)", raw, BackendGemini, BackendCloud, BackendLocal)
}
