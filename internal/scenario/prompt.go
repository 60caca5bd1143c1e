package scenario

import (
	"fmt"
	"strings"
)

// SystemInstruction frames every generation request.
const SystemInstruction = `You write scripts for immersive guided audio sessions.
Answer strictly in JSON matching the response schema.
The "script" field is a continuous spoken monologue of at least 700 words for the narrator.
Keep the tone atmospheric and confident. Mark short silences as [PAUSE:2s] and audible breaths as [BREATH].`

// BuildPrompt renders the user prompt for c. Call WithDefaults first.
func BuildPrompt(c Config) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write part %d of 2 of a guided audio session. ", c.Part)
	if c.Part == 2 {
		b.WriteString("Continue from part 1 and bring the session to a close. ")
	} else {
		b.WriteString("Open the session and build up gradually. ")
	}
	b.WriteString("Length: about 5 minutes, 700 words. ")

	names := make([]string, len(c.Participants))
	for i, p := range c.Participants {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = fmt.Sprintf("Participant %d", i+1)
		}
		names[i] = fmt.Sprintf("%s (%s)", name, strings.ToLower(string(p.Gender)))
	}
	fmt.Fprintf(&b, "Participants: %s. ", strings.Join(names, ", "))
	fmt.Fprintf(&b, "Relationship: %s. ", c.Relationship)
	fmt.Fprintf(&b, "Narrator voice: %s. ", strings.ToLower(string(c.SpeakerGender)))
	fmt.Fprintf(&b, "Tone: %s. ", c.Tone)
	fmt.Fprintf(&b, "Acts: %s. ", strings.Join(c.Acts, ", "))

	accessories := append([]string(nil), c.Accessories...)
	if extra := strings.TrimSpace(c.CustomAccessories); extra != "" {
		accessories = append(accessories, extra)
	}
	if len(accessories) > 0 {
		fmt.Fprintf(&b, "Accessories: %s. ", strings.Join(accessories, ", "))
	}
	fmt.Fprintf(&b, "Language: %s.", c.Language)
	if words := strings.TrimSpace(c.CustomWords); words != "" {
		fmt.Fprintf(&b, " Requests: %q", words)
	}
	return b.String()
}
