// Package gemini adapts the Gemini API, through the google.golang.org/genai
// SDK, to structured script generation and prebuilt-voice speech.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/example/go-scene-voice/internal/scenario"
	"github.com/example/go-scene-voice/internal/synth"
)

const (
	DefaultTextModel   = "gemini-2.5-flash"
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"
)

// ErrNoAPIKey is returned when the client has no key configured.
var ErrNoAPIKey = errors.New("gemini: API key required")

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Status     string // e.g. RESOURCE_EXHAUSTED
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("gemini API returned %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini API returned %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Kind maps the error to a generation failure kind.
func (e *APIError) Kind() scenario.Kind {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return scenario.KindAuth
	case e.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(e.Message), "api key"):
		return scenario.KindAuth
	case e.StatusCode == http.StatusTooManyRequests || e.Status == "RESOURCE_EXHAUSTED":
		return scenario.KindQuota
	case e.StatusCode >= 500:
		return scenario.KindUnavailable
	default:
		return scenario.KindUnknown
	}
}

// fromSDK converts a genai error into *APIError. Other errors pass through.
func fromSDK(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &APIError{StatusCode: apiErrPtr.Code, Status: apiErrPtr.Status, Message: apiErrPtr.Message}
	}
	return err
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another endpoint, e.g. a test server.
// Empty keeps the SDK default.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTextModel overrides DefaultTextModel.
func WithTextModel(m string) Option {
	return func(c *Client) {
		if m != "" {
			c.textModel = m
		}
	}
}

// WithSpeechModel overrides DefaultSpeechModel.
func WithSpeechModel(m string) Option {
	return func(c *Client) {
		if m != "" {
			c.speechModel = m
		}
	}
}

// WithHTTPClient replaces the HTTP client the SDK sends requests with.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client calls generateContent. It is safe for concurrent use; the SDK
// client is created on the first request.
type Client struct {
	apiKey      string
	baseURL     string
	textModel   string
	speechModel string
	http        *http.Client
	logger      *slog.Logger

	once   sync.Once
	sdk    *genai.Client
	sdkErr error
}

// New returns a client for apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		textModel:   DefaultTextModel,
		speechModel: DefaultSpeechModel,
		http:        &http.Client{Timeout: 5 * time.Minute},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) models(ctx context.Context) (*genai.Models, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	c.once.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:     c.apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: c.http,
		}
		if c.baseURL != "" {
			cc.HTTPOptions.BaseURL = c.baseURL
		}
		c.sdk, c.sdkErr = genai.NewClient(ctx, cc)
		if c.sdkErr != nil {
			c.sdkErr = fmt.Errorf("create genai client: %w", c.sdkErr)
		}
	})
	if c.sdkErr != nil {
		return nil, c.sdkErr
	}
	return c.sdk.Models, nil
}

// blockedReasons are finish reasons that mean the content filter stopped output.
var blockedReasons = map[genai.FinishReason]bool{
	genai.FinishReasonSafety:            true,
	genai.FinishReasonProhibitedContent: true,
	genai.FinishReasonBlocklist:         true,
	genai.FinishReasonSPII:              true,
}

// GenerateJSON implements scenario.TextGenerator.
func (c *Client) GenerateJSON(ctx context.Context, req scenario.Request) (string, error) {
	schema, err := toSchema(req.Schema)
	if err != nil {
		return "", err
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(req.Temperature)),
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.generate(ctx, c.textModel, genai.Text(req.Prompt), cfg)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return "", scenario.NewGenerationError(apiErr.Kind(), err)
		}
		if errors.Is(err, ErrNoAPIKey) {
			return "", scenario.NewGenerationError(scenario.KindAuth, err)
		}
		return "", err
	}

	if reason := blockReason(resp); reason != "" {
		return "", scenario.NewGenerationError(scenario.KindBlocked, fmt.Errorf("finish reason %s", reason))
	}
	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", scenario.NewGenerationError(scenario.KindEmpty, errors.New("response has no text"))
	}
	return text, nil
}

// Speak implements synth.Speaker, returning raw 24 kHz mono PCM16LE.
func (c *Client) Speak(ctx context.Context, text, voice string) ([]byte, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	resp, err := c.generate(ctx, c.speechModel, genai.Text(text), cfg)
	if err != nil {
		return nil, err
	}
	if reason := blockReason(resp); reason != "" {
		return nil, fmt.Errorf("%w: finish reason %s", synth.ErrChunkBlocked, reason)
	}

	pcm := inlineAudio(resp)
	if len(pcm) == 0 {
		return nil, synth.ErrChunkBlocked
	}
	return pcm, nil
}

func (c *Client) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m, err := c.models(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := m.GenerateContent(ctx, model, contents, cfg)
	c.logger.Debug("gemini response",
		"model", model,
		"ok", err == nil,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", fromSDK(err))
	}
	return resp, nil
}

// toSchema converts the generator's JSON schema into the SDK type. The map
// uses the same field names as genai.Schema.
func toSchema(m map[string]any) (*genai.Schema, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode response schema: %w", err)
	}
	var s genai.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode response schema: %w", err)
	}
	return &s, nil
}

func blockReason(resp *genai.GenerateContentResponse) string {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return string(resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil && blockedReasons[resp.Candidates[0].FinishReason] {
		return string(resp.Candidates[0].FinishReason)
	}
	return ""
}

func firstParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, p := range firstParts(resp) {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func inlineAudio(resp *genai.GenerateContentResponse) []byte {
	for _, p := range firstParts(resp) {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData.Data
		}
	}
	return nil
}
