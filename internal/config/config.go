// Package config handles loading and validating the securecall configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nadzzz/securecall/internal/telephony"
)

// Config is the root configuration for the securecall daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	Voice      VoiceConfig      `mapstructure:"voice"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Telephony  TelephonyConfig  `mapstructure:"telephony"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP/WebSocket transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`

	// PublicURL is the externally reachable base URL used in Twilio
	// callbacks and profile audio links (e.g., "https://securecall.example.com").
	PublicURL string `mapstructure:"public_url"`

	// AllowedOrigins lists browser origins accepted on the WebSocket endpoint.
	// Empty allows same-origin requests only.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// MaxAudioBytes limits uploaded recordings.
	MaxAudioBytes int64 `mapstructure:"max_audio_bytes"`
}

// VoiceConfig selects and configures the voice transformation backend.
type VoiceConfig struct {
	Backend  string         `mapstructure:"backend"` // "gemini" or "pipeline"
	Timeout  time.Duration  `mapstructure:"timeout"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Whisper  WhisperConfig  `mapstructure:"whisper"`
	Piper    PiperConfig    `mapstructure:"piper"`
}

// GeminiConfig holds Google Generative Language API settings.
type GeminiConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Endpoint string `mapstructure:"endpoint"`
}

// PipelineConfig chooses the recognition and synthesis backends of the
// transcribe-then-resynthesize pipeline.
type PipelineConfig struct {
	STT      string `mapstructure:"stt"`      // "openai" or "whisper"
	TTS      string `mapstructure:"tts"`      // "piper" or "openai"
	Language string `mapstructure:"language"` // ISO-639-1 recognition language, whichever STT backend runs
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey             string            `mapstructure:"api_key"`
	BaseURL            string            `mapstructure:"base_url"`
	TranscriptionModel string            `mapstructure:"transcription_model"`
	SpeechModel        string            `mapstructure:"speech_model"`
	Voices             map[string]string `mapstructure:"voices"` // persona -> OpenAI voice
}

// WhisperConfig holds self-hosted whisper settings.
type WhisperConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Type      string `mapstructure:"type"` // "openai" (default) or "asr" (ahmetoner/whisper-asr-webservice)
	VADFilter bool   `mapstructure:"vad_filter"`
	Language  string `mapstructure:"language"` // ISO-639-1 default language (e.g., "es")
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// Endpoint serves every persona unless Endpoints maps a persona to its own
// Wyoming TCP endpoint.
type PiperConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`
	Endpoints map[string]string `mapstructure:"endpoints"` // persona -> host:port
	Voices    map[string]string `mapstructure:"voices"`    // persona -> Piper voice model name
}

// StorageConfig locates the voice profile database.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// TelephonyConfig holds Twilio settings.
type TelephonyConfig struct {
	AccountSID       string        `mapstructure:"account_sid"`
	AuthToken        string        `mapstructure:"auth_token"`
	APIKeySID        string        `mapstructure:"api_key_sid"`
	APIKeySecret     string        `mapstructure:"api_key_secret"`
	TwiMLAppSID      string        `mapstructure:"twiml_app_sid"`
	CallerID         string        `mapstructure:"caller_id"`
	BaseURL          string        `mapstructure:"base_url"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	ValidateWebhooks bool          `mapstructure:"validate_webhooks"`
}

// Twilio converts the settings to the telephony package configuration.
func (t TelephonyConfig) Twilio() telephony.Config {
	return telephony.Config{
		AccountSID:   t.AccountSID,
		AuthToken:    t.AuthToken,
		APIKeySID:    t.APIKeySID,
		APIKeySecret: t.APIKeySecret,
		TwiMLAppSID:  t.TwiMLAppSID,
		CallerID:     t.CallerID,
		BaseURL:      t.BaseURL,
		TokenTTL:     t.TokenTTL,
	}
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./securecall.yaml, ./configs/securecall.yaml, /etc/securecall/securecall.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", true)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.http.public_url", "http://localhost:8080")
	v.SetDefault("transports.http.max_audio_bytes", 25<<20)
	v.SetDefault("voice.backend", "gemini")
	v.SetDefault("voice.timeout", 60*time.Second)
	v.SetDefault("voice.gemini.api_key", "${GEMINI_API_KEY}")
	v.SetDefault("voice.gemini.model", "gemini-2.5-flash")
	v.SetDefault("voice.gemini.endpoint", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("voice.pipeline.stt", "whisper")
	v.SetDefault("voice.pipeline.tts", "piper")
	v.SetDefault("voice.pipeline.language", "es")
	v.SetDefault("voice.openai.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("voice.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("voice.openai.transcription_model", "gpt-4o-transcribe")
	v.SetDefault("voice.openai.speech_model", "gpt-4o-mini-tts")
	v.SetDefault("voice.whisper.endpoint", "http://localhost:8000/v1/audio/transcriptions")
	v.SetDefault("voice.whisper.type", "openai")
	v.SetDefault("voice.whisper.language", "es")
	v.SetDefault("voice.piper.endpoint", "localhost:10200")
	v.SetDefault("storage.path", "securecall.db")
	// Empty defaults register the keys so SECURECALL_TELEPHONY_* env vars are picked up.
	for _, key := range []string{"account_sid", "auth_token", "api_key_sid", "api_key_secret", "twiml_app_sid", "caller_id", "base_url"} {
		v.SetDefault("telephony."+key, "")
	}
	v.SetDefault("telephony.token_ttl", telephony.DefaultTokenTTL)
	v.SetDefault("telephony.validate_webhooks", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("securecall")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/securecall")
	}

	// Environment variables: SECURECALL_VOICE_BACKEND, SECURECALL_TELEPHONY_CALLER_ID, etc.
	v.SetEnvPrefix("SECURECALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The config file is optional; env vars and defaults are sufficient.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${GEMINI_API_KEY}").
	cfg.Voice.Gemini.APIKey = resolveEnvRef(cfg.Voice.Gemini.APIKey)
	cfg.Voice.OpenAI.APIKey = resolveEnvRef(cfg.Voice.OpenAI.APIKey)
	cfg.Telephony.AuthToken = resolveEnvRef(cfg.Telephony.AuthToken)
	cfg.Telephony.APIKeySecret = resolveEnvRef(cfg.Telephony.APIKeySecret)

	tw := cfg.Telephony.Twilio()
	if err := telephony.FillFromEnv(&tw); err != nil {
		return nil, err
	}
	cfg.Telephony.AccountSID = tw.AccountSID
	cfg.Telephony.AuthToken = tw.AuthToken
	cfg.Telephony.APIKeySID = tw.APIKeySID
	cfg.Telephony.APIKeySecret = tw.APIKeySecret
	cfg.Telephony.TwiMLAppSID = tw.TwiMLAppSID
	cfg.Telephony.CallerID = tw.CallerID

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail on the first request.
// Missing credentials are not errors: the affected actions report them to
// the user instead.
func (c *Config) Validate() error {
	switch c.Voice.Backend {
	case "gemini":
	case "pipeline":
		switch c.Voice.Pipeline.STT {
		case "openai", "whisper":
		default:
			return fmt.Errorf("unknown pipeline stt backend %q", c.Voice.Pipeline.STT)
		}
		switch c.Voice.Pipeline.TTS {
		case "openai", "piper":
		default:
			return fmt.Errorf("unknown pipeline tts backend %q", c.Voice.Pipeline.TTS)
		}
	default:
		return fmt.Errorf("unknown voice backend %q", c.Voice.Backend)
	}
	if !c.Transports.HTTP.Enabled && !c.Transports.GRPC.Enabled {
		return fmt.Errorf("no transports enabled, enable at least one in config")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
// Unset references resolve to the empty string.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
