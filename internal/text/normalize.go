package text

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyText is returned when nothing speakable is left after Normalize.
var ErrEmptyText = errors.New("text is empty")

var blankRun = regexp.MustCompile(`\n{3,}`)

// Normalize cleans script text before it is chunked: NFC composition, LF line
// endings, no control or zero-width characters, at most one blank line in a
// row, trimmed edges. Script markers are left for Sanitize.
func Normalize(s string) (string, error) {
	s = norm.NFC.String(s)
	s = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		case unicode.IsSpace(r):
			return ' '
		}
		return r
	}, s)
	s = blankRun.ReplaceAllString(s, "\n\n")

	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyText
	}
	return s, nil
}

// AppendTranscript joins a recognized utterance onto existing free text with
// a single space. Blank transcripts leave prev unchanged.
func AppendTranscript(prev, transcript string) string {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return prev
	}
	prev = strings.TrimRight(prev, " \t\n")
	if prev == "" {
		return transcript
	}
	return prev + " " + transcript
}
