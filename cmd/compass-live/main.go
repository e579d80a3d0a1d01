package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/malu-zinha/compass-live/internal/audio"
	"github.com/malu-zinha/compass-live/internal/backend"
	"github.com/malu-zinha/compass-live/internal/config"
	"github.com/malu-zinha/compass-live/internal/session"
	"github.com/malu-zinha/compass-live/internal/statusapi"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	var inputWAV string
	var interviewID int64
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&overrides.BackendURL, "backend-url", "", "interview backend base URL")
	flag.StringVar(&overrides.StreamURL, "stream-url", "", "transcription websocket URL")
	flag.StringVar(&overrides.HTTPAddr, "http-addr", "", "status API listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level")
	flag.StringVar(&inputWAV, "input", "", "WAV file to capture from")
	flag.Int64Var(&interviewID, "interview", 0, "interview id to start a session for immediately")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("compass-live starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Backend client
	api := backend.NewClient(backend.Options{
		BaseURL:   cfg.BackendURL,
		AuthToken: cfg.AuthToken,
		Log:       log,
	})

	// Capture device
	device := audio.NewFileDevice(inputWAV, 0)

	// Session
	sess := session.New(session.Options{
		Device:       device,
		Backend:      api,
		StreamURL:    cfg.StreamURL,
		Backoff:      cfg.ReconnectBackoff,
		PollInterval: cfg.PollInterval,
		PollTimeout:  cfg.PollTimeout,
		Log:          log,
	})

	// Status API
	httpLog := log.With().Str("component", "http").Logger()
	srv := statusapi.NewServer(cfg, sess, version, startTime, httpLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Optional immediate session start
	if interviewID > 0 {
		if err := sess.Start(ctx, interviewID); err != nil {
			if errors.Is(err, audio.ErrDeviceUnavailable) {
				log.Fatal().Err(err).Msg("cannot capture audio")
			}
			log.Fatal().Err(err).Int64("interview_id", interviewID).Msg("failed to start session")
		}
	}

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout; stop the session first so the
	// recording upload happens before the process exits.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if sess.Live() {
		if err := sess.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("session teardown error")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("compass-live stopped")
}
