// Package voice holds the catalog of narrator voices offered to the user.
package voice

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/example/go-scene-voice/internal/scenario"
)

// ErrUnknownVoice is returned by Lookup for an id not in the catalog.
var ErrUnknownVoice = errors.New("unknown voice")

// Voice is one narrator voice. ID is the prebuilt voice name understood by
// the speech API; Local optionally names the pocket-tts voice (a built-in
// name or a .safetensors path relative to the manifest) used by the local
// backend.
type Voice struct {
	ID          string          `json:"id"`
	Gender      scenario.Gender `json:"gender"`
	Description string          `json:"description,omitempty"`
	Local       string          `json:"local,omitempty"`
	License     string          `json:"license,omitempty"`
}

type voiceManifest struct {
	Voices []Voice `json:"voices"`
}

var builtin = []Voice{
	{ID: "Charon", Gender: scenario.Male, Description: "Informative, low", Local: "marius"},
	{ID: "Fenrir", Gender: scenario.Male, Description: "Excitable, warm", Local: "javert"},
	{ID: "Puck", Gender: scenario.Male, Description: "Upbeat, mid", Local: "jean"},
	{ID: "Orus", Gender: scenario.Male, Description: "Firm, deep", Local: "marius"},
	{ID: "Kore", Gender: scenario.Female, Description: "Firm, mid", Local: "alba"},
	{ID: "Aoede", Gender: scenario.Female, Description: "Breezy, light", Local: "fantine"},
	{ID: "Zephyr", Gender: scenario.Female, Description: "Bright, high", Local: "cosette"},
	{ID: "Leda", Gender: scenario.Female, Description: "Youthful, soft", Local: "eponine"},
}

// Catalog is an ordered, read-only set of voices.
type Catalog struct {
	baseDir string
	voices  []Voice
	byID    map[string]Voice
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := newCatalog("", builtin)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a JSON manifest of the form {"voices":[...]}. An empty path
// yields the built-in catalog.
func Load(manifestPath string) (*Catalog, error) {
	if manifestPath == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read voice manifest: %w", err)
	}

	var manifest voiceManifest

	err = json.Unmarshal(data, &manifest)
	if err != nil {
		return nil, fmt.Errorf("decode voice manifest: %w", err)
	}

	if len(manifest.Voices) == 0 {
		return nil, errors.New("voice manifest lists no voices")
	}

	return newCatalog(filepath.Dir(manifestPath), manifest.Voices)
}

func newCatalog(baseDir string, voices []Voice) (*Catalog, error) {
	c := &Catalog{
		baseDir: baseDir,
		voices:  make([]Voice, 0, len(voices)),
		byID:    make(map[string]Voice, len(voices)),
	}

	for _, v := range voices {
		if v.ID == "" {
			return nil, errors.New("voice manifest contains empty id")
		}

		g, err := scenario.ParseGender(string(v.Gender))
		if err != nil {
			return nil, fmt.Errorf("voice %q: %w", v.ID, err)
		}
		v.Gender = g

		key := strings.ToLower(v.ID)
		if _, exists := c.byID[key]; exists {
			return nil, fmt.Errorf("duplicate voice id %q", v.ID)
		}

		c.byID[key] = v
		c.voices = append(c.voices, v)
	}

	return c, nil
}

// List returns the voices in catalog order.
func (c *Catalog) List() []Voice {
	return slices.Clone(c.voices)
}

// ByGender filters List by gender.
func (c *Catalog) ByGender(g scenario.Gender) []Voice {
	var out []Voice
	for _, v := range c.voices {
		if v.Gender == g {
			out = append(out, v)
		}
	}
	return out
}

// Lookup finds a voice by id, ignoring case.
func (c *Catalog) Lookup(id string) (Voice, error) {
	v, ok := c.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Voice{}, fmt.Errorf("%w %q", ErrUnknownVoice, id)
	}
	return v, nil
}

// ForGender resolves the requested voice, falling back to the default
// voice for the gender when id is empty.
func (c *Catalog) ForGender(id string, g scenario.Gender) (Voice, error) {
	if strings.TrimSpace(id) == "" {
		id = scenario.DefaultVoice(g)
	}
	return c.Lookup(id)
}

// LocalVoice returns the pocket-tts voice for id. Paths ending in
// .safetensors are resolved against the manifest directory. Voices without
// a local mapping return "", which lets pocket-tts use its own default.
func (c *Catalog) LocalVoice(id string) (string, error) {
	v, err := c.Lookup(id)
	if err != nil {
		return "", err
	}

	local := v.Local
	if strings.HasSuffix(local, ".safetensors") && !filepath.IsAbs(local) && c.baseDir != "" {
		local = filepath.Clean(filepath.Join(c.baseDir, local))
	}
	return local, nil
}

// CloudName maps a prebuilt voice to its Google Cloud TTS Chirp 3 HD name,
// e.g. "en-US-Chirp3-HD-Kore".
func CloudName(languageCode, id string) string {
	if languageCode == "" {
		languageCode = "en-US"
	}
	return languageCode + "-Chirp3-HD-" + id
}

// PreviewText is the short line read when auditioning a voice.
func PreviewText(g scenario.Gender) string {
	if g == scenario.Male {
		return "Hello. I will be guiding you through this session. Take a slow breath, and let's begin."
	}
	return "Hello. I'll be your guide for this session. Settle in, breathe slowly, and let's begin."
}
