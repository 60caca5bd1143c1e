// Package config loads scenevoice settings from defaults, an optional config
// file, SCENEVOICE_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. SCENEVOICE_TTS_VOICE.
const EnvPrefix = "SCENEVOICE"

type Config struct {
	Gemini    GeminiConfig  `mapstructure:"gemini"`
	TTS       TTSConfig     `mapstructure:"tts"`
	Server    ServerConfig  `mapstructure:"server"`
	History   HistoryConfig `mapstructure:"history"`
	Output    OutputConfig  `mapstructure:"output"`
	LogLevel  string        `mapstructure:"log_level"`
	LogFormat string        `mapstructure:"log_format"`
}

type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	TextModel   string  `mapstructure:"text_model"`
	SpeechModel string  `mapstructure:"speech_model"`
	Temperature float64 `mapstructure:"temperature"`
}

type TTSConfig struct {
	Backend       string        `mapstructure:"backend"`
	Voice         string        `mapstructure:"voice"`
	VoiceManifest string        `mapstructure:"voice_manifest"`
	MaxChunkChars int           `mapstructure:"max_chunk_chars"`
	SampleRate    int           `mapstructure:"sample_rate"`
	ChunkTimeout  time.Duration `mapstructure:"chunk_timeout"`
	Retries       int           `mapstructure:"retries"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	LanguageCode  string        `mapstructure:"language_code"`
	CLIPath       string        `mapstructure:"cli_path"`
	Concurrency   int           `mapstructure:"concurrency"`
	Quiet         bool          `mapstructure:"quiet"`
}

type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	Workers         int           `mapstructure:"workers"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxTextBytes    int           `mapstructure:"max_text_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Keep    int    `mapstructure:"keep"`
}

type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Prefix string `mapstructure:"prefix"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Gemini: GeminiConfig{
			TextModel:   "gemini-2.5-flash",
			SpeechModel: "gemini-2.5-flash-preview-tts",
			Temperature: 0.8,
		},
		TTS: TTSConfig{
			Backend:       BackendGemini,
			Voice:         "",
			MaxChunkChars: 1000,
			SampleRate:    24000,
			ChunkTimeout:  60 * time.Second,
			Retries:       2,
			RatePerSecond: 1,
			LanguageCode:  "en-US",
			CLIPath:       "",
			Concurrency:   1,
			Quiet:         true,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         2,
			RequestTimeout:  5 * time.Minute,
			MaxTextBytes:    64 * 1024,
			ShutdownTimeout: 30 * time.Second,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "data/history.db",
			Keep:    200,
		},
		Output: OutputConfig{
			Dir:    "out",
			Prefix: "session",
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// flagKeys maps each flag registered by RegisterFlags to its config key.
var flagKeys = map[string]string{
	"api-key":          "gemini.api_key",
	"gemini-base-url":  "gemini.base_url",
	"text-model":       "gemini.text_model",
	"speech-model":     "gemini.speech_model",
	"temperature":      "gemini.temperature",
	"backend":          "tts.backend",
	"voice":            "tts.voice",
	"voice-manifest":   "tts.voice_manifest",
	"max-chunk-chars":  "tts.max_chunk_chars",
	"sample-rate":      "tts.sample_rate",
	"chunk-timeout":    "tts.chunk_timeout",
	"retries":          "tts.retries",
	"rate":             "tts.rate_per_second",
	"language-code":    "tts.language_code",
	"tts-cli-path":     "tts.cli_path",
	"tts-concurrency":  "tts.concurrency",
	"tts-quiet":        "tts.quiet",
	"listen-addr":      "server.listen_addr",
	"workers":          "server.workers",
	"request-timeout":  "server.request_timeout",
	"max-text-bytes":   "server.max_text_bytes",
	"shutdown-timeout": "server.shutdown_timeout",
	"history":          "history.enabled",
	"history-path":     "history.path",
	"history-keep":     "history.keep",
	"output-dir":       "output.dir",
	"output-prefix":    "output.prefix",
	"log-level":        "log_level",
	"log-format":       "log_format",
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("api-key", defaults.Gemini.APIKey, "Gemini API key (prefer GEMINI_API_KEY)")
	fs.String("gemini-base-url", defaults.Gemini.BaseURL, "Gemini API endpoint override (empty uses the SDK default)")
	fs.String("text-model", defaults.Gemini.TextModel, "Model used for script generation")
	fs.String("speech-model", defaults.Gemini.SpeechModel, "Model used for speech synthesis")
	fs.Float64("temperature", defaults.Gemini.Temperature, "Script generation temperature")
	fs.String("backend", defaults.TTS.Backend, "Speech backend: gemini|cloud|local")
	fs.String("voice", defaults.TTS.Voice, "Narrator voice id (default picked from the speaker gender)")
	fs.String("voice-manifest", defaults.TTS.VoiceManifest, "Path to a voice catalog JSON manifest")
	fs.Int("max-chunk-chars", defaults.TTS.MaxChunkChars, "Maximum characters per synthesis request")
	fs.Int("sample-rate", defaults.TTS.SampleRate, "PCM sample rate returned by the speech backend")
	fs.Duration("chunk-timeout", defaults.TTS.ChunkTimeout, "Timeout for one synthesis request")
	fs.Int("retries", defaults.TTS.Retries, "Retries per chunk on transient errors")
	fs.Float64("rate", defaults.TTS.RatePerSecond, "Maximum synthesis requests per second (0 disables pacing)")
	fs.String("language-code", defaults.TTS.LanguageCode, "BCP-47 language for the cloud backend")
	fs.String("tts-cli-path", defaults.TTS.CLIPath, "Path to pocket-tts executable")
	fs.Int("tts-concurrency", defaults.TTS.Concurrency, "Max concurrent pocket-tts subprocesses")
	fs.Bool("tts-quiet", defaults.TTS.Quiet, "Pass --quiet to pocket-tts generate")
	fs.String("listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("workers", defaults.Server.Workers, "Concurrent generation/synthesis requests")
	fs.Duration("request-timeout", defaults.Server.RequestTimeout, "Per-request timeout")
	fs.Int("max-text-bytes", defaults.Server.MaxTextBytes, "Maximum text accepted by POST /speech")
	fs.Duration("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout")
	fs.Bool("history", defaults.History.Enabled, "Record sessions in the history database")
	fs.String("history-path", defaults.History.Path, "Path to the history SQLite database")
	fs.Int("history-keep", defaults.History.Keep, "Sessions kept when pruning history")
	fs.String("output-dir", defaults.Output.Dir, "Directory for rendered WAV files")
	fs.String("output-prefix", defaults.Output.Prefix, "File name prefix for rendered WAV files")
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
	fs.String("log-format", defaults.LogFormat, "Log format: text|json")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	replacer := strings.NewReplacer("-", "_", ".", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("gemini.api_key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY", "API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind api key env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("scenevoice")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	backend, err := NormalizeBackend(cfg.TTS.Backend)
	if err != nil {
		return Config{}, err
	}
	cfg.TTS.Backend = backend

	return cfg, nil
}

// bindFlags binds only the flags that are present, so commands can register
// a subset.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("gemini.api_key", c.Gemini.APIKey)
	v.SetDefault("gemini.base_url", c.Gemini.BaseURL)
	v.SetDefault("gemini.text_model", c.Gemini.TextModel)
	v.SetDefault("gemini.speech_model", c.Gemini.SpeechModel)
	v.SetDefault("gemini.temperature", c.Gemini.Temperature)
	v.SetDefault("tts.backend", c.TTS.Backend)
	v.SetDefault("tts.voice", c.TTS.Voice)
	v.SetDefault("tts.voice_manifest", c.TTS.VoiceManifest)
	v.SetDefault("tts.max_chunk_chars", c.TTS.MaxChunkChars)
	v.SetDefault("tts.sample_rate", c.TTS.SampleRate)
	v.SetDefault("tts.chunk_timeout", c.TTS.ChunkTimeout)
	v.SetDefault("tts.retries", c.TTS.Retries)
	v.SetDefault("tts.rate_per_second", c.TTS.RatePerSecond)
	v.SetDefault("tts.language_code", c.TTS.LanguageCode)
	v.SetDefault("tts.cli_path", c.TTS.CLIPath)
	v.SetDefault("tts.concurrency", c.TTS.Concurrency)
	v.SetDefault("tts.quiet", c.TTS.Quiet)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("history.enabled", c.History.Enabled)
	v.SetDefault("history.path", c.History.Path)
	v.SetDefault("history.keep", c.History.Keep)
	v.SetDefault("output.dir", c.Output.Dir)
	v.SetDefault("output.prefix", c.Output.Prefix)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("log_format", c.LogFormat)
}
