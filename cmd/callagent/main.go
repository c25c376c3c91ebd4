package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nortonjulian/chatforia-calls/internal/adapters/httpapi"
	"github.com/nortonjulian/chatforia-calls/internal/adapters/media"
	"github.com/nortonjulian/chatforia-calls/internal/adapters/rtc"
	"github.com/nortonjulian/chatforia-calls/internal/adapters/signaling"
	"github.com/nortonjulian/chatforia-calls/internal/app/call"
	"github.com/nortonjulian/chatforia-calls/internal/config"
	"github.com/nortonjulian/chatforia-calls/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	httpClient, header, err := sessionTransport(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up session transport")
	}

	sig := signaling.NewClient(httpClient, cfg.SignalingURL)
	push := signaling.NewPush(cfg.PushURL, header, cfg.PingPeriod)

	src, err := media.NewSource()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up media source")
	}

	factory := rtc.NewFactory(sig, src, cfg.StunURLs)
	orch := call.New(domain.UserID(cfg.SelfID), sig, push, factory, src)

	go orch.Run(ctx)

	if err := push.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect push channel")
	}

	r := httpapi.SetupRouter(cfg, orch)
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.APIPort)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("call agent started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	// Hang up before dropping the push channel so the remote side learns.
	if err := orch.EndCall(context.Background(), "shutdown"); err != nil {
		log.Warn().Err(err).Msg("hangup on shutdown")
	}
	push.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Call agent exited gracefully")
}

// sessionTransport builds the HTTP client and websocket headers carrying
// the backend session cookie. Auth itself stays the backend's problem.
func sessionTransport(cfg *config.Config) (*http.Client, http.Header, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, nil, err
	}
	header := http.Header{}
	if cfg.SessionCookie != "" {
		base, err := url.Parse(cfg.SignalingURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse signaling url: %w", err)
		}
		cookie := &http.Cookie{Name: "session", Value: cfg.SessionCookie}
		jar.SetCookies(base, []*http.Cookie{cookie})
		header.Set("Cookie", cookie.String())
	}
	return &http.Client{Jar: jar, Timeout: 15 * time.Second}, header, nil
}
