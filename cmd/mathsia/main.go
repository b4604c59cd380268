package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/auth"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/config"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/database"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/logging"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/repository"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to .env configuration file (default: ./.env, optional)")
	addr := flag.String("addr", "0.0.0.0:8000", "listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			fmt.Fprintln(os.Stderr, "Invalid configuration:")
			for _, fieldErr := range verrs {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", fieldErr.Key, fieldErr.Message)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		}
		os.Exit(1)
	}

	logging.InitFromSettings(cfg)

	logging.Infof("%s %s starting in %s mode", cfg.AppName, config.Version, cfg.Environment)
	if cfg.Debug && cfg.IsProduction() {
		logging.Warn("DEBUG is enabled with ENVIRONMENT=production")
	}

	ctx := context.Background()

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		logging.ErrorWithErr("Failed to connect to database", err)
		os.Exit(1)
	}
	defer db.Close(context.Background())

	if err := db.Init(ctx); err != nil {
		logging.ErrorWithErr("Failed to initialize database", err)
		os.Exit(1)
	}

	tokens, err := auth.NewTokenService(cfg.SecretKey, cfg.Algorithm,
		cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	if err != nil {
		logging.ErrorWithErr("Failed to initialize token service", err)
		os.Exit(1)
	}

	mongoDB := db.Database()
	srv := server.New(cfg, server.Deps{
		Users:     repository.NewUserRepository(mongoDB),
		Memocards: repository.NewMemocardRepository(mongoDB),
		Responses: repository.NewResponseRepository(mongoDB),
		Tokens:    tokens,
		DB:        db,
	}, *addr, config.Version)

	if err := srv.Run(); err != nil {
		logging.ErrorWithErr("Server stopped", err)
		os.Exit(1)
	}
}
