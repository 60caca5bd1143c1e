package speech

import (
	"context"
	"fmt"
	"log/slog"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"github.com/googleapis/gax-go/v2"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/go-scene-voice/internal/audio"
	"github.com/example/go-scene-voice/internal/synth"
	"github.com/example/go-scene-voice/internal/voice"
)

// CloudSynthesizer is the subset of *texttospeech.Client used here.
type CloudSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
}

// CloudOption configures a CloudSpeaker.
type CloudOption func(*CloudSpeaker)

// WithLanguageCode sets the BCP-47 language of the voice, e.g. "de-DE".
func WithLanguageCode(code string) CloudOption {
	return func(s *CloudSpeaker) {
		if code != "" {
			s.languageCode = code
		}
	}
}

// WithCloudSampleRate overrides the requested LINEAR16 sample rate.
func WithCloudSampleRate(rate int) CloudOption {
	return func(s *CloudSpeaker) {
		if rate > 0 {
			s.sampleRate = rate
		}
	}
}

// WithCloudLogger sets the logger.
func WithCloudLogger(l *slog.Logger) CloudOption {
	return func(s *CloudSpeaker) {
		if l != nil {
			s.logger = l
		}
	}
}

// CloudSpeaker synthesizes with Google Cloud Text-to-Speech Chirp 3 HD
// voices, which share their names with the Gemini prebuilt voices.
type CloudSpeaker struct {
	client       CloudSynthesizer
	closer       func() error
	languageCode string
	sampleRate   int
	logger       *slog.Logger
}

var _ synth.Speaker = (*CloudSpeaker)(nil)

// NewCloudSpeaker dials the Text-to-Speech API with application default
// credentials.
func NewCloudSpeaker(ctx context.Context, opts ...CloudOption) (*CloudSpeaker, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}
	s := NewCloudSpeakerWithClient(client, opts...)
	s.closer = client.Close
	return s, nil
}

// NewCloudSpeakerWithClient wraps an existing client.
func NewCloudSpeakerWithClient(client CloudSynthesizer, opts ...CloudOption) *CloudSpeaker {
	s := &CloudSpeaker{
		client:       client,
		languageCode: "en-US",
		sampleRate:   audio.DefaultSampleRate,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Speak implements synth.Speaker.
func (s *CloudSpeaker) Speak(ctx context.Context, text, voiceID string) ([]byte, error) {
	name := voice.CloudName(s.languageCode, voiceID)

	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: s.languageCode,
			Name:         name,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: int32(s.sampleRate),
		},
	}

	resp, err := s.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, classifyRPC(fmt.Errorf("cloud tts %s: %w", name, err))
	}

	if len(resp.GetAudioContent()) == 0 {
		return nil, fmt.Errorf("cloud tts %s: %w", name, synth.ErrChunkBlocked)
	}

	s.logger.Debug("cloud tts chunk", "voice", name, "bytes", len(resp.GetAudioContent()))

	return pcmFromWAV(resp.GetAudioContent(), s.sampleRate)
}

// Close releases the underlying client when this speaker created it.
func (s *CloudSpeaker) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// classifyRPC marks request errors that a retry cannot fix. status.FromError
// sees through fmt wrapping.
func classifyRPC(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
		return err
	default:
		return permanent(err)
	}
}
