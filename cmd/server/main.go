package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wheelhouse-game/backend/internal/audio"
	"github.com/wheelhouse-game/backend/internal/catalog"
	"github.com/wheelhouse-game/backend/internal/config"
	"github.com/wheelhouse-game/backend/internal/httpapi"
	"github.com/wheelhouse-game/backend/internal/hub"
	"github.com/wheelhouse-game/backend/internal/identity"
	"github.com/wheelhouse-game/backend/internal/natspub"
	"github.com/wheelhouse-game/backend/internal/room"
	"github.com/wheelhouse-game/backend/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := buildLogger(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := buildStore(cfg)
	if err != nil {
		return err
	}

	var publisher room.Publisher
	if cfg.NATSURL != "" {
		pub, err := natspub.Connect(cfg.NATSURL, log)
		if err != nil {
			return err
		}
		defer pub.Close()
		publisher = pub
	}

	spotify := catalog.NewSpotifyClient(cfg.CatalogBaseURL, log)
	cat := catalog.NewCachedProvider(spotify, cfg.CatalogCacheTTL)

	var backend audio.Backend = audio.Nop{}
	if cfg.AudioDeviceID != "" && cfg.AudioProviderToken != "" {
		base := cfg.CatalogBaseURL
		if base == "" {
			base = catalog.DefaultBaseURL
		}
		backend = audio.NewConnect(base, func() string { return cfg.AudioProviderToken }, cfg.AudioDeviceID, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, hub.Deps{
		Store:     st,
		Clock:     clockwork.NewRealClock(),
		Catalog:   cat,
		Publisher: publisher,
		Audio:     backend,
		Logger:    log,
	})

	api := &httpapi.API{
		Hub:     h,
		Store:   st,
		Issuer:  identity.NewIssuer(cfg.JWTSecret, cfg.IdentityTTL),
		Catalog: cat,
		Log:     log,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.SetupRoutes(api, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreBackend))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func buildStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		return store.NewRedis(client, cfg.SessionTTL), nil
	case "postgres":
		return store.NewPostgres(cfg.PostgresDSN)
	default:
		return store.NewMemory(), nil
	}
}
