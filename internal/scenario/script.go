package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Phase is one step of the session.
type Phase struct {
	Title         string `json:"title"`
	Duration      string `json:"duration"`
	Pose          string `json:"pose"`
	Inventory     string `json:"inventory"`
	Action        string `json:"action"`
	HighlightLine string `json:"highlightLine"`
	SensoryNotes  string `json:"sensoryNotes"`
}

// Script is the structured text model output.
type Script struct {
	Phases []Phase `json:"phases"`
	Script string  `json:"script"`
}

// WordCount counts whitespace-separated words in the spoken script.
func (s *Script) WordCount() int {
	return len(strings.Fields(s.Script))
}

var phaseFields = []string{"title", "duration", "pose", "inventory", "action", "highlightLine", "sensoryNotes"}

// Schema is the response schema sent with every generation request, in the
// OpenAPI subset the Gemini API accepts.
func Schema() map[string]any {
	props := make(map[string]any, len(phaseFields))
	for _, f := range phaseFields {
		props[f] = map[string]any{"type": "STRING"}
	}
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"phases": map[string]any{
				"type": "ARRAY",
				"items": map[string]any{
					"type":       "OBJECT",
					"properties": props,
					"required":   append([]string(nil), phaseFields...),
				},
			},
			"script": map[string]any{"type": "STRING"},
		},
		"required": []string{"phases", "script"},
	}
}

// ParseScript decodes model output, tolerating a markdown code fence.
func ParseScript(raw string) (*Script, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	if raw == "" {
		return nil, NewGenerationError(KindEmpty, errors.New("empty response text"))
	}

	var s Script
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, NewGenerationError(KindMalformed, fmt.Errorf("decode script JSON: %w", err))
	}
	if strings.TrimSpace(s.Script) == "" {
		return nil, NewGenerationError(KindEmpty, errors.New("script field is empty"))
	}
	return &s, nil
}
