package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/go-scene-voice/internal/audio"
	"github.com/example/go-scene-voice/internal/history"
	"github.com/example/go-scene-voice/internal/scenario"
	"github.com/example/go-scene-voice/internal/synth"
	"github.com/example/go-scene-voice/internal/telemetry"
	"github.com/example/go-scene-voice/internal/text"
	"github.com/example/go-scene-voice/internal/voice"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// ScriptGenerator turns a scenario into a script.
type ScriptGenerator interface {
	Generate(ctx context.Context, cfg scenario.Config) (*scenario.Script, error)
}

// Synthesizer renders a script to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*synth.Result, error)
}

// VoiceCatalog lists and resolves narrator voices.
type VoiceCatalog interface {
	List() []voice.Voice
	ForGender(id string, g scenario.Gender) (voice.Voice, error)
}

// SessionRecorder persists generated sessions.
type SessionRecorder interface {
	Save(ctx context.Context, sess history.Session) (history.Session, error)
}

// RequestIDHeader carries the id assigned to each request.
const RequestIDHeader = "X-Request-ID"

// SkippedChunksHeader reports how many chunks were dropped from POST /speech audio.
const SkippedChunksHeader = "X-Skipped-Chunks"

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
	metrics        *telemetry.Metrics
	history        SessionRecorder
	filePrefix     string
	now            func() time.Time
}

func defaultOptions() options {
	return options{
		maxTextBytes:   64 * 1024,
		workers:        2,
		requestTimeout: 5 * time.Minute,
		logger:         slog.Default(),
		filePrefix:     "session",
		now:            time.Now,
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes for POST /speech.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent generation or synthesis calls.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records request counts and serves /metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithHistory records every generated script.
func WithHistory(r SessionRecorder) Option {
	return func(o *options) { o.history = r }
}

// WithFilePrefix sets the download file name prefix.
func WithFilePrefix(p string) Option {
	return func(o *options) { o.filePrefix = p }
}

// WithClock overrides the time source used for download names.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	gen    ScriptGenerator
	synth  Synthesizer
	voices VoiceCatalog
	opts   options
	sem    chan struct{} // semaphore for worker pool
	log    *slog.Logger
}

// NewHandler returns an http.Handler serving /health, /voices, POST /scripts,
// POST /speech and, with WithMetrics, /metrics.
func NewHandler(gen ScriptGenerator, synth Synthesizer, voices VoiceCatalog, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		gen:    gen,
		synth:  synth,
		voices: voices,
		opts:   opts,
		log:    opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/voices", h.handleVoices)
	mux.HandleFunc("/scripts", h.handleScripts)
	mux.HandleFunc("/speech", h.handleSpeech)
	if mh := opts.metrics.Handler(); mh != nil {
		mux.Handle("/metrics", mh)
	}
	return h.withRequestLog(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *handler) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		// The mux fills in Pattern; unmatched paths share one label.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		h.opts.metrics.RequestDone(r.Context(), route, rec.status)
		h.log.DebugContext(r.Context(), "request",
			slog.String("request_id", id),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

func (h *handler) handleVoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	voices := h.voices.List()
	if voices == nil {
		voices = []voice.Voice{}
	}
	writeJSON(w, http.StatusOK, voices)
}

type scriptRequest struct {
	Config     scenario.Config      `json:"config"`
	Transcript *scenario.Transcript `json:"transcript,omitempty"`
}

type scriptResponse struct {
	SessionID string           `json:"sessionId,omitempty"`
	Script    *scenario.Script `json:"script"`
}

func (h *handler) handleScripts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req scriptRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cfg := req.Config
	if req.Transcript != nil {
		var err error
		cfg, err = cfg.WithTranscript(*req.Transcript)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	script, err := h.gen.Generate(ctx, cfg)
	durationMS := time.Since(start).Milliseconds()
	if err != nil {
		h.log.WarnContext(r.Context(), "script generation failed",
			slog.Int("part", cfg.Part),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		h.writeFailure(w, err)
		return
	}

	resp := scriptResponse{Script: script}
	if h.opts.history != nil {
		sess, err := h.opts.history.Save(r.Context(), history.Session{Config: cfg, Script: script, Voice: cfg.Voice})
		if err != nil {
			h.log.WarnContext(r.Context(), "history save failed", slog.String("error", err.Error()))
		} else {
			resp.SessionID = sess.ID
		}
	}

	h.log.InfoContext(r.Context(), "script generated",
		slog.Int("part", cfg.Part),
		slog.Int("phases", len(script.Phases)),
		slog.Int64("duration_ms", durationMS),
	)
	writeJSON(w, http.StatusOK, resp)
}

type speechRequest struct {
	Text   string          `json:"text"`
	Voice  string          `json:"voice"`
	Gender scenario.Gender `json:"gender"`
}

func (h *handler) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req speechRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if len(req.Text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return
	}

	spoken, err := text.Normalize(req.Text)
	if err != nil {
		writeError(w, http.StatusBadRequest, "text field is required")
		return
	}

	v, err := h.voices.ForGender(req.Voice, req.Gender)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	res, err := h.synth.Synthesize(ctx, spoken, v.ID)
	durationMS := time.Since(start).Milliseconds()
	if err != nil {
		h.log.ErrorContext(r.Context(), "synthesis failed",
			slog.String("voice", v.ID),
			slog.Int("text_len", len(req.Text)),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		h.writeFailure(w, err)
		return
	}

	wav := audio.EncodeWAV(res.Buffer)
	h.log.InfoContext(r.Context(), "synthesis complete",
		slog.String("voice", v.ID),
		slog.Int("text_len", len(req.Text)),
		slog.Int("chunks", res.Chunks),
		slog.Int("skipped", res.Skipped),
		slog.Int64("duration_ms", durationMS),
		slog.Int("wav_bytes", len(wav)),
	)

	name := audio.DownloadName(h.opts.filePrefix, h.opts.now())
	w.Header().Set("Content-Type", audio.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.Header().Set(SkippedChunksHeader, strconv.Itoa(res.Skipped))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

// acquire takes a worker slot, honouring cancellation while waiting.
func (h *handler) acquire(w http.ResponseWriter, r *http.Request) (func(), bool) {
	if h.sem == nil {
		return func() {}, true
	}
	select {
	case h.sem <- struct{}{}:
		return func() { <-h.sem }, true
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
		return nil, false
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func (h *handler) writeFailure(w http.ResponseWriter, err error) {
	var (
		genErr   *scenario.GenerationError
		synthErr *synth.SynthesisError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	case errors.Is(err, scenario.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &genErr):
		status := http.StatusUnprocessableEntity
		if genErr.Kind == scenario.KindQuota {
			status = http.StatusTooManyRequests
		}
		writeJSON(w, status, map[string]string{"error": genErr.Message(), "kind": genErr.Kind.String()})
	case errors.As(err, &synthErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": synthErr.Error(), "chunks": synthErr.Chunks})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server wires handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	addr            string
	handler         http.Handler
	shutdownTimeout time.Duration
	log             *slog.Logger
}

func New(addr string, h http.Handler) *Server {
	return &Server{
		addr:            addr,
		handler:         h,
		shutdownTimeout: 30 * time.Second,
		log:             slog.Default(),
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	if d > 0 {
		s.shutdownTimeout = d
	}
	return s
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	s.log.Info("http server listening", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
