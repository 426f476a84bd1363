// SecureCall is the backend of the SecureCall call screen. It re-voices
// recordings with AI personas, stores voice profiles, and places Twilio calls.
//
// Usage:
//
//	securecall [flags]
//	securecall --config /path/to/securecall.yaml
//
// @title       SecureCall API
// @version     0.1.0
// @description Persona voice transformation, voice profiles and Twilio calling for the SecureCall call screen.
// @BasePath    /
package main

//go:generate swag init -d ../../ -g cmd/securecall/main.go -o ../../docs

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nadzzz/securecall/internal/config"
	"github.com/nadzzz/securecall/internal/dispatch"
	"github.com/nadzzz/securecall/internal/health"
	"github.com/nadzzz/securecall/internal/storage/sqlite"
	"github.com/nadzzz/securecall/internal/stt"
	openaistt "github.com/nadzzz/securecall/internal/stt/openai"
	"github.com/nadzzz/securecall/internal/stt/whisper"
	"github.com/nadzzz/securecall/internal/telephony"
	"github.com/nadzzz/securecall/internal/transport"
	grpctransport "github.com/nadzzz/securecall/internal/transport/grpc"
	httptransport "github.com/nadzzz/securecall/internal/transport/http"
	"github.com/nadzzz/securecall/internal/tts"
	openaitts "github.com/nadzzz/securecall/internal/tts/openai"
	"github.com/nadzzz/securecall/internal/tts/piper"
	"github.com/nadzzz/securecall/internal/voice"
	"github.com/nadzzz/securecall/internal/voice/gemini"
	"github.com/nadzzz/securecall/internal/voice/pipeline"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/securecall.local.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("securecall %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("securecall starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize the voice backend.
	transformer, err := newTransformer(cfg.Voice)
	if err != nil {
		slog.Error("failed to initialize voice backend", "error", err)
		os.Exit(1)
	}
	defer transformer.Close()
	slog.Info("using voice backend", "name", transformer.Name(), "timeout", cfg.Voice.Timeout)

	// Open the voice profile store.
	store, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		slog.Error("failed to open profile store", "path", cfg.Storage.Path, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("profile store opened", "path", cfg.Storage.Path)

	// Twilio. Missing credentials only disable calling.
	twilio := cfg.Telephony.Twilio()
	if twilio.AccountSID == "" || twilio.APIKeySID == "" {
		slog.Warn("twilio credentials not configured, calling is disabled")
	}

	dispatcher := dispatch.New(dispatch.Options{
		Voice:        transformer,
		Store:        store,
		Tokens:       telephony.NewTokenIssuer(twilio, nil),
		Calls:        telephony.NewClient(twilio, nil),
		CallerID:     twilio.CallerID,
		PublicURL:    cfg.Transports.HTTP.PublicURL,
		VoiceTimeout: cfg.Voice.Timeout,
	})

	// Initialize enabled transports.
	var transports []transport.Transport

	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port))
	}
	if cfg.Transports.HTTP.Enabled {
		opts := httptransport.Options{
			Port:           cfg.Transports.HTTP.Port,
			PublicURL:      cfg.Transports.HTTP.PublicURL,
			AllowedOrigins: cfg.Transports.HTTP.AllowedOrigins,
			MaxAudioBytes:  cfg.Transports.HTTP.MaxAudioBytes,
		}
		if cfg.Telephony.ValidateWebhooks {
			if twilio.AuthToken == "" {
				slog.Warn("webhook validation enabled without an auth token, webhooks are not verified")
			}
			opts.WebhookAuthToken = twilio.AuthToken
		}
		transports = append(transports, httptransport.New(opts))
	}

	if len(transports) == 0 {
		slog.Error("no transports enabled, enable at least one in config")
		os.Exit(1)
	}

	// Start health check server.
	healthServer := health.New(cfg.Server.HealthPort)
	healthServer.AddCheck("store", dispatcher.Ping)
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	// Start all transports.
	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, dispatcher); err != nil {
				slog.Error("transport failed", "name", t.Name(), "error", err)
			}
		}(t)
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	slog.Info("securecall ready",
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort)

	// Block until shutdown signal.
	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")

	// Close all transports gracefully.
	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	wg.Wait()
	slog.Info("securecall stopped")
}

// newTransformer builds the configured voice backend.
func newTransformer(cfg config.VoiceConfig) (voice.Transformer, error) {
	switch cfg.Backend {
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			slog.Warn("gemini api key is empty, voice transformation will fail")
		}
		return gemini.New(cfg.Gemini), nil
	case "pipeline":
		var transcriber stt.Transcriber
		switch cfg.Pipeline.STT {
		case "openai":
			transcriber = openaistt.New(cfg.OpenAI)
		case "whisper":
			transcriber = whisper.New(cfg.Whisper)
		default:
			return nil, fmt.Errorf("unknown pipeline stt backend %q", cfg.Pipeline.STT)
		}

		var synthesizer tts.Synthesizer
		switch cfg.Pipeline.TTS {
		case "piper":
			synthesizer = piper.New(cfg.Piper)
		case "openai":
			synthesizer = openaitts.New(cfg.OpenAI)
		default:
			_ = transcriber.Close()
			return nil, fmt.Errorf("unknown pipeline tts backend %q", cfg.Pipeline.TTS)
		}
		p := pipeline.New(transcriber, synthesizer, cfg.Pipeline.Language)
		slog.Info("using pipeline voice backend",
			"stt", transcriber.Name(),
			"tts", synthesizer.Name(),
			"language", p.Language())
		return p, nil
	default:
		return nil, fmt.Errorf("unknown voice backend %q", cfg.Backend)
	}
}
