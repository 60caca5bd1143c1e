package text

import (
	"regexp"
	"strings"
)

// DefaultBreathWord replaces [BREATH] markers when SplitOptions leaves it empty.
const DefaultBreathWord = "(breath)"

var (
	pauseMarker  = regexp.MustCompile(`\[PAUSE:.*?\]`)
	breathMarker = regexp.MustCompile(`\[BREATH\]`)
)

// splitPreference lists split characters in the order they are tried.
var splitPreference = []rune{'.', '?', '!', '\n', ' '}

// SplitOptions tunes marker substitution.
type SplitOptions struct {
	BreathWord string
}

// Sanitize rewrites script markers into speakable text: [PAUSE:...] becomes
// an ellipsis and [BREATH] a parenthetical breath word.
func Sanitize(s string) string {
	return sanitize(s, DefaultBreathWord)
}

func sanitize(s, breath string) string {
	s = pauseMarker.ReplaceAllLiteralString(s, " ... ")
	return breathMarker.ReplaceAllLiteralString(s, " "+breath+" ")
}

// Split sanitizes s and cuts it into chunks of at most maxLength characters.
// See SplitWith.
func Split(s string, maxLength int) []string {
	return SplitWith(s, maxLength, SplitOptions{})
}

// SplitWith sanitizes s and cuts it into chunks of at most maxLength
// characters (runes). Each cut lands on the last period in the window, else
// the last question mark, exclamation mark, newline or space, in that order;
// the split character stays with the preceding chunk. A window with none of
// these is cut at exactly maxLength. Chunks are trimmed and empty ones are
// dropped. maxLength <= 0 disables splitting.
func SplitWith(s string, maxLength int, opts SplitOptions) []string {
	breath := opts.BreathWord
	if breath == "" {
		breath = DefaultBreathWord
	}
	runes := []rune(sanitize(s, breath))

	var chunks []string
	emit := func(r []rune) {
		if c := strings.TrimSpace(string(r)); c != "" {
			chunks = append(chunks, c)
		}
	}

	if maxLength <= 0 {
		emit(runes)
		return chunks
	}

	pos := 0
	for pos < len(runes) {
		if len(runes)-pos <= maxLength {
			emit(runes[pos:])
			break
		}
		end := splitPoint(runes, pos, maxLength)
		emit(runes[pos:end])
		pos = end
	}
	return chunks
}

// splitPoint returns the exclusive end of the chunk starting at pos.
func splitPoint(runes []rune, pos, maxLength int) int {
	// The split character is kept, so the last usable index is
	// pos+maxLength-1. A split at pos itself would make no progress.
	last := pos + maxLength - 1
	for _, want := range splitPreference {
		for i := last; i > pos; i-- {
			if runes[i] == want {
				return i + 1
			}
		}
	}
	return pos + maxLength
}
