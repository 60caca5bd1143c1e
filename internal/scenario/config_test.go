package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		Participants: []Participant{{Name: "Alex", Gender: Male}, {Name: "Sam", Gender: Female}},
		Acts:         []string{"slow dance"},
	}
}

func TestParseGender(t *testing.T) {
	tests := []struct {
		in      string
		want    Gender
		wantErr bool
	}{
		{"male", Male, false},
		{"Female", Female, false},
		{" M ", Male, false},
		{"f", Female, false},
		{"other", "", true},
	}
	for _, tt := range tests {
		got, err := ParseGender(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseGender(%q) err = %v; wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseGender(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultVoice(t *testing.T) {
	if got := DefaultVoice(Male); got != "Charon" {
		t.Errorf("DefaultVoice(Male) = %q; want Charon", got)
	}
	if got := DefaultVoice(Female); got != "Kore" {
		t.Errorf("DefaultVoice(Female) = %q; want Kore", got)
	}
}

func TestWithDefaults(t *testing.T) {
	c := validConfig().WithDefaults()
	if c.Part != 1 || c.SpeakerGender != Female || c.Voice != "Kore" {
		t.Errorf("defaults = part %d, gender %q, voice %q", c.Part, c.SpeakerGender, c.Voice)
	}
	if c.Tone != DefaultTone || c.Relationship != DefaultRelationship || c.Language != DefaultLanguage {
		t.Errorf("defaults = tone %q, relationship %q, language %q", c.Tone, c.Relationship, c.Language)
	}

	male := validConfig()
	male.SpeakerGender = Male
	if got := male.WithDefaults().Voice; got != "Charon" {
		t.Errorf("male narrator voice = %q; want Charon", got)
	}

	explicit := validConfig()
	explicit.SpeakerGender = Male
	explicit.Voice = "Puck"
	if got := explicit.WithDefaults().Voice; got != "Puck" {
		t.Errorf("explicit voice = %q; want Puck", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"no participants", func(c *Config) { c.Participants = nil }, "participants"},
		{"too many participants", func(c *Config) {
			c.Participants = nil
			for i := 0; i < MaxParticipants+1; i++ {
				c.Participants = append(c.Participants, Participant{Name: "P", Gender: Male})
			}
		}, "participants"},
		{"unnamed participant", func(c *Config) { c.Participants[1].Name = "  " }, "participants[1].name"},
		{"bad gender", func(c *Config) { c.Participants[0].Gender = "x" }, "participants[0].gender"},
		{"no acts", func(c *Config) { c.Acts = nil }, "acts"},
		{"bad part", func(c *Config) { c.Part = 3 }, "part"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v; want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v; want ErrInvalidConfig", err)
			}
			var fe *FieldError
			if !errors.As(err, &fe) || fe.Field != tt.field {
				t.Errorf("field = %v; want %q", fe, tt.field)
			}
		})
	}
}

func TestValidate_MaxParticipantsAllowed(t *testing.T) {
	c := validConfig()
	c.Participants = nil
	for i := 0; i < MaxParticipants; i++ {
		c.Participants = append(c.Participants, Participant{Name: "P", Gender: Female})
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() with %d participants = %v; want nil", MaxParticipants, err)
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	c := Config{}
	err := c.Validate()
	msg := err.Error()
	for _, want := range []string{"participants", "acts"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Validate() = %q; missing %q", msg, want)
		}
	}
}

func TestWithTranscript(t *testing.T) {
	c := validConfig()
	c.CustomWords = "slowly"

	got, err := c.WithTranscript(Transcript{Text: "with soft music", Confidence: 0.9, Final: true})
	if err != nil {
		t.Fatalf("WithTranscript: %v", err)
	}
	if got.CustomWords != "slowly with soft music" {
		t.Errorf("CustomWords = %q", got.CustomWords)
	}
	if c.CustomWords != "slowly" {
		t.Error("WithTranscript modified the receiver")
	}

	if _, err := c.WithTranscript(Transcript{Text: "half", Final: false}); !errors.Is(err, ErrInvalidTranscript) {
		t.Errorf("interim transcript err = %v; want ErrInvalidTranscript", err)
	}
}

func TestLoadPreset(t *testing.T) {
	c, err := LoadPreset(filepath.Join("testdata", "preset.yaml"))
	if err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}
	if len(c.Participants) != 2 || c.Participants[0].Gender != Male || c.Participants[1].Gender != Female {
		t.Errorf("participants = %+v", c.Participants)
	}
	if c.SpeakerGender != Male || c.Part != 2 || c.Tone != "mysterious" {
		t.Errorf("preset = %+v", c)
	}
	if c.CustomAccessories != "silk ribbon" || len(c.Acts) != 2 {
		t.Errorf("preset = %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("preset Validate() = %v", err)
	}
}

func TestLoadPreset_Errors(t *testing.T) {
	if _, err := LoadPreset(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadPreset(missing) = nil error")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("participants: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPreset(bad); err == nil {
		t.Error("LoadPreset(bad yaml) = nil error")
	}
}
