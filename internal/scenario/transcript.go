package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTranscript is matched by every rejected transcript.
var ErrInvalidTranscript = errors.New("invalid transcript")

// Transcript is one voice-input recognition result.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Final      bool    `json:"final"`
}

// Validate rejects empty, interim or out-of-range results.
func (t Transcript) Validate() error {
	if strings.TrimSpace(t.Text) == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidTranscript)
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0, 1]", ErrInvalidTranscript, t.Confidence)
	}
	if !t.Final {
		return fmt.Errorf("%w: interim result", ErrInvalidTranscript)
	}
	return nil
}

// ParseTranscript decodes a JSON recognition result. text and final are
// required; confidence defaults to 1.
func ParseTranscript(data []byte) (Transcript, error) {
	var raw struct {
		Text       *string  `json:"text"`
		Confidence *float64 `json:"confidence"`
		Final      *bool    `json:"final"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", ErrInvalidTranscript, err)
	}
	if raw.Text == nil {
		return Transcript{}, fmt.Errorf("%w: missing text", ErrInvalidTranscript)
	}
	if raw.Final == nil {
		return Transcript{}, fmt.Errorf("%w: missing final", ErrInvalidTranscript)
	}
	tr := Transcript{Text: *raw.Text, Confidence: 1, Final: *raw.Final}
	if raw.Confidence != nil {
		tr.Confidence = *raw.Confidence
	}
	return tr, tr.Validate()
}
