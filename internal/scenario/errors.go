package scenario

import (
	"errors"
	"fmt"
)

// Kind classifies a generation failure by the remediation it needs.
type Kind int

const (
	KindUnknown Kind = iota
	KindBlocked
	KindQuota
	KindMalformed
	KindEmpty
	KindAuth
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindBlocked:
		return "blocked"
	case KindQuota:
		return "quota"
	case KindMalformed:
		return "malformed"
	case KindEmpty:
		return "empty"
	case KindAuth:
		return "auth"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is against a *GenerationError of the matching kind.
var (
	ErrBlocked     = errors.New("generation blocked by content policy")
	ErrQuota       = errors.New("generation quota or billing limit reached")
	ErrMalformed   = errors.New("generation returned a malformed response")
	ErrEmpty       = errors.New("generation returned no content")
	ErrAuth        = errors.New("generation rejected the credentials")
	ErrUnavailable = errors.New("generation service unavailable")
)

var kindSentinels = map[Kind]error{
	KindBlocked:     ErrBlocked,
	KindQuota:       ErrQuota,
	KindMalformed:   ErrMalformed,
	KindEmpty:       ErrEmpty,
	KindAuth:        ErrAuth,
	KindUnavailable: ErrUnavailable,
}

// GenerationError is returned when the text model produced nothing usable.
type GenerationError struct {
	Kind Kind
	Err  error
}

// NewGenerationError wraps err under kind.
func NewGenerationError(kind Kind, err error) *GenerationError {
	return &GenerationError{Kind: kind, Err: err}
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("script generation failed (%s)", e.Kind)
	}
	return fmt.Sprintf("script generation failed (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *GenerationError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && target == s
}

// Message is the user-facing explanation with the next step to take.
func (e *GenerationError) Message() string {
	switch e.Kind {
	case KindBlocked:
		return "Blocked by the content filter: soften the tone or the selected acts and try again."
	case KindQuota:
		return "Quota or billing limit reached: check the billing status of the API project or wait and retry."
	case KindMalformed:
		return "The model could not assemble a valid script: try generating again."
	case KindEmpty:
		return "The model returned an empty response: check billing status and limits, then retry."
	case KindAuth:
		return "The API key was rejected: set a valid key with --api-key or GEMINI_API_KEY."
	case KindUnavailable:
		return "The generation service is unavailable: check your connection and try again later."
	default:
		return "Script generation failed: " + e.Error()
	}
}

// UserMessage returns the user-facing text for any error, using Message for
// generation errors and the plain error text otherwise.
func UserMessage(err error) string {
	var gen *GenerationError
	if errors.As(err, &gen) {
		return gen.Message()
	}
	return err.Error()
}
