package scenario

import (
	"strings"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	c := Config{
		Participants:      []Participant{{Name: "Alex", Gender: Male}, {Name: "Sam", Gender: Female}},
		Acts:              []string{"slow dance", "storytelling"},
		Accessories:       []string{"candles"},
		CustomAccessories: "silk ribbon",
		Tone:              "mysterious",
		CustomWords:       "keep it slow",
	}.WithDefaults()

	p := BuildPrompt(c)
	for _, want := range []string{
		"part 1 of 2",
		"Alex (male), Sam (female)",
		"Acts: slow dance, storytelling.",
		"Accessories: candles, silk ribbon.",
		"Tone: mysterious.",
		"Narrator voice: female.",
		`Requests: "keep it slow"`,
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestBuildPrompt_PartTwo(t *testing.T) {
	c := validConfig().WithPart(2).WithDefaults()
	p := BuildPrompt(c)
	if !strings.Contains(p, "part 2 of 2") || !strings.Contains(p, "Continue from part 1") {
		t.Errorf("part 2 prompt = %q", p)
	}
	if strings.Contains(p, "Accessories:") || strings.Contains(p, "Requests:") {
		t.Errorf("prompt should omit empty sections: %q", p)
	}
}
