// Package scenario models a guided audio session: the selections a user makes,
// the prompt built from them, and the multi-phase script a text model returns.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/go-scene-voice/internal/text"
)

// MaxParticipants bounds the participant list.
const MaxParticipants = 6

// Defaults applied by WithDefaults.
const (
	DefaultTone         = "calm"
	DefaultRelationship = "strangers"
	DefaultLanguage     = "English"
)

// ErrInvalidConfig is matched by every validation failure.
var ErrInvalidConfig = errors.New("invalid scenario config")

// Gender of a participant or of the narrating voice.
type Gender string

const (
	Male   Gender = "Male"
	Female Gender = "Female"
)

// ParseGender accepts "male"/"female" in any case, plus "m"/"f".
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m":
		return Male, nil
	case "female", "f":
		return Female, nil
	default:
		return "", fmt.Errorf("%w: unknown gender %q (want male or female)", ErrInvalidConfig, s)
	}
}

// DefaultVoice is the prebuilt voice picked for a narrator gender.
func DefaultVoice(g Gender) string {
	if g == Male {
		return "Charon"
	}
	return "Kore"
}

// Participant is one person in the scene.
type Participant struct {
	Name   string `json:"name" yaml:"name"`
	Gender Gender `json:"gender" yaml:"gender"`
}

// Config is the full set of selections for one generation. It is a value:
// pass it by copy and derive new ones with the With* methods.
type Config struct {
	Participants      []Participant `json:"participants" yaml:"participants"`
	Acts              []string      `json:"acts" yaml:"acts"`
	Accessories       []string      `json:"accessories,omitempty" yaml:"accessories"`
	CustomAccessories string        `json:"customAccessories,omitempty" yaml:"custom_accessories"`
	Tone              string        `json:"tone,omitempty" yaml:"tone"`
	Relationship      string        `json:"relationship,omitempty" yaml:"relationship"`
	CustomWords       string        `json:"customWords,omitempty" yaml:"custom_words"`
	SpeakerGender     Gender        `json:"speakerGender,omitempty" yaml:"speaker_gender"`
	Voice             string        `json:"voice,omitempty" yaml:"voice"`
	Language          string        `json:"language,omitempty" yaml:"language"`
	Part              int           `json:"part,omitempty" yaml:"part"`
}

// FieldError is one validation problem.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Reason }

func (e *FieldError) Is(target error) bool { return target == ErrInvalidConfig }

// WithDefaults fills empty optional fields.
func (c Config) WithDefaults() Config {
	if c.Part == 0 {
		c.Part = 1
	}
	if c.SpeakerGender == "" {
		c.SpeakerGender = Female
	}
	if c.Voice == "" {
		c.Voice = DefaultVoice(c.SpeakerGender)
	}
	if c.Tone == "" {
		c.Tone = DefaultTone
	}
	if c.Relationship == "" {
		c.Relationship = DefaultRelationship
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	return c
}

// WithPart returns a copy targeting part 1 or 2.
func (c Config) WithPart(part int) Config {
	c.Part = part
	return c
}

// WithTranscript validates a recognized utterance and returns a copy with it
// appended to CustomWords.
func (c Config) WithTranscript(tr Transcript) (Config, error) {
	if err := tr.Validate(); err != nil {
		return c, err
	}
	c.CustomWords = text.AppendTranscript(c.CustomWords, tr.Text)
	return c, nil
}

// Validate reports every problem with the config, joined.
func (c Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	switch n := len(c.Participants); {
	case n == 0:
		add("participants", "at least one participant is required")
	case n > MaxParticipants:
		add("participants", "at most %d participants are allowed, got %d", MaxParticipants, n)
	}
	for i, p := range c.Participants {
		if strings.TrimSpace(p.Name) == "" {
			add(fmt.Sprintf("participants[%d].name", i), "every participant needs a name")
		}
		if p.Gender != Male && p.Gender != Female {
			add(fmt.Sprintf("participants[%d].gender", i), "must be Male or Female, got %q", p.Gender)
		}
	}
	if len(c.Acts) == 0 {
		add("acts", "select at least one act")
	}
	if c.Part != 0 && c.Part != 1 && c.Part != 2 {
		add("part", "must be 1 or 2, got %d", c.Part)
	}
	if c.SpeakerGender != "" && c.SpeakerGender != Male && c.SpeakerGender != Female {
		add("speakerGender", "must be Male or Female, got %q", c.SpeakerGender)
	}
	return errors.Join(errs...)
}

// ParsePreset decodes a YAML preset.
func ParsePreset(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse preset: %w", err)
	}
	for i := range c.Participants {
		if g, err := ParseGender(string(c.Participants[i].Gender)); err == nil {
			c.Participants[i].Gender = g
		}
	}
	if c.SpeakerGender != "" {
		if g, err := ParseGender(string(c.SpeakerGender)); err == nil {
			c.SpeakerGender = g
		}
	}
	return c, nil
}

// LoadPreset reads a YAML preset file.
func LoadPreset(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read preset: %w", err)
	}
	return ParsePreset(data)
}
