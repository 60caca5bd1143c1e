package scenario

import (
	"errors"
	"fmt"
	"testing"
)

func TestGenerationError_Is(t *testing.T) {
	kinds := map[Kind]error{
		KindBlocked:     ErrBlocked,
		KindQuota:       ErrQuota,
		KindMalformed:   ErrMalformed,
		KindEmpty:       ErrEmpty,
		KindAuth:        ErrAuth,
		KindUnavailable: ErrUnavailable,
	}
	for kind, sentinel := range kinds {
		err := fmt.Errorf("wrapped: %w", NewGenerationError(kind, errors.New("cause")))
		if !errors.Is(err, sentinel) {
			t.Errorf("%s: errors.Is(err, %v) = false", kind, sentinel)
		}
		for other, s := range kinds {
			if other != kind && errors.Is(err, s) {
				t.Errorf("%s: unexpectedly matches %v", kind, s)
			}
		}
	}
}

func TestGenerationError_MessagesDiffer(t *testing.T) {
	seen := map[string]Kind{}
	for _, k := range []Kind{KindBlocked, KindQuota, KindMalformed, KindEmpty, KindAuth, KindUnavailable} {
		msg := NewGenerationError(k, nil).Message()
		if prev, dup := seen[msg]; dup {
			t.Errorf("%s and %s share message %q", prev, k, msg)
		}
		seen[msg] = k
	}
}

func TestUserMessage(t *testing.T) {
	gen := NewGenerationError(KindQuota, errors.New("429"))
	if got := UserMessage(fmt.Errorf("part 1: %w", gen)); got != gen.Message() {
		t.Errorf("UserMessage = %q; want %q", got, gen.Message())
	}
	if got := UserMessage(errors.New("plain")); got != "plain" {
		t.Errorf("UserMessage = %q; want plain", got)
	}
}

func TestGenerationError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	if err := NewGenerationError(KindAuth, cause); !errors.Is(err, cause) {
		t.Error("GenerationError does not unwrap to its cause")
	}
}
