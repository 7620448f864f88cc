package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"wamux/internal/auth"
	"wamux/internal/config"
	"wamux/internal/engine"
	"wamux/internal/hub"
	"wamux/internal/instance"
	"wamux/internal/server"
	"wamux/internal/store"
	"wamux/internal/webhook"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()

	gin.SetMode(cfg.GinMode)

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	defer db.Close()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("create upload dir")
	}

	factory, err := engine.Default()
	if err != nil {
		log.Fatal().Err(err).Msg("no protocol engine linked into this build")
	}

	creds := store.NewCredentials(db, 0, log)
	archive := store.NewMessages(db, log)
	dispatcher := webhook.New(webhook.Options{Timeout: cfg.WebhookTimeout}, log)
	wsHub := hub.New()

	manager := instance.NewManager(factory, creds, archive, dispatcher, wsHub,
		instance.Settings{ReconnectDelay: cfg.ReconnectDelay}, log)

	tokenCfg := auth.TokenConfig{
		Secret: cfg.MasterSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: "wamux",
	}

	router := server.NewRouter(server.Deps{
		Manager:     manager,
		Hub:         wsHub,
		TokenConfig: tokenCfg,
		AuthEnabled: cfg.AuthEnabled(),
		UploadDir:   cfg.UploadDir,
	})

	log.Info().Int("port", cfg.Port).Bool("auth", cfg.AuthEnabled()).Msg("listening")
	if err := server.Run(cfg, router); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
