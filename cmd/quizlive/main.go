package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quizlive/quizlive/internal/bank"
	"github.com/quizlive/quizlive/internal/engine"
	"github.com/quizlive/quizlive/internal/gateway"
	"github.com/quizlive/quizlive/internal/mirror"
	"github.com/quizlive/quizlive/internal/quiz"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(config.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	questionBank, err := bank.Load(config.Bank.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", config.Bank.Path).Msg("failed to load question bank")
	}
	log.Info().
		Int("questions", questionBank.Len()).
		Strs("categories", questionBank.Categories()).
		Msg("question bank loaded")

	connectionManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	var out engine.Broadcaster = connectionManager
	var pub *mirror.Publisher
	if config.Mirror.URL != "" {
		mirrorConfig := mirror.DefaultConfig()
		mirrorConfig.URL = config.Mirror.URL
		mirrorConfig.SubjectPrefix = config.Mirror.SubjectPrefix
		mirrorConfig.MaxReconnects = config.Mirror.MaxReconnects
		pub, err = mirror.NewPublisher(mirrorConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect event mirror")
		}
		defer pub.Close()
		tee := mirror.NewTee(connectionManager, pub)
		defer tee.Close()
		out = tee
		log.Info().Str("url", config.Mirror.URL).Msg("event mirror enabled")
	}

	registry := quiz.NewRegistry()
	sessions := engine.New(registry, questionBank, out, clockwork.NewRealClock())
	connectionManager.SetSessions(sessions)

	server := setupServer(config, gateway.NewWebSocketHandler(connectionManager))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go connectionManager.Start(ctx)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
		os.Exit(1)
	}
}
