package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/app"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/config"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/email"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/feed"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/logger"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/search"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/store"
)

func main() {
	fallback := zerolog.New(os.Stderr).With().Timestamp().Logger()
	cfg, err := config.Load()
	if err != nil {
		fallback.Fatal().Err(err).Msg("config")
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fallback.Fatal().Err(err).Msg("logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("inquiry api stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	var threadStore store.ThreadStore
	switch cfg.StoreDriver {
	case "memory":
		log.Warn().Msg("using in-memory thread store; data is lost on restart")
		threadStore = store.NewMemoryStore(log)
	default:
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		threadStore = pg
	}

	var bus feed.Bus
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisBus, err := feed.NewRedisBus(cfg.RedisURL, cfg.RedisChannel, log)
		if err != nil {
			return err
		}
		log.Info().Str("channel", cfg.RedisChannel).Msg("using redis change feed")
		bus = redisBus
	} else {
		bus = feed.NewLocalBus()
	}
	defer bus.Close()

	var engine search.Engine
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meiliClient.Close()
		engine = meiliClient
	}
	searchService := search.NewService(engine, threadStore, log)
	if err := searchService.ReindexAll(ctx); err != nil {
		log.Warn().Err(err).Msg("search reindex failed; serving from store until next write")
	}
	defer searchService.Close()

	var notifier app.Notifier
	mailer := email.NewService(email.Config{
		Host:          cfg.SMTPHost,
		Port:          cfg.SMTPPort,
		Username:      cfg.SMTPUsername,
		Password:      cfg.SMTPPassword,
		From:          cfg.SMTPFrom,
		FromName:      cfg.SMTPFromName,
		NotifyAddress: cfg.NotifyAddress,
	}, log)
	if mailer.IsConfigured() {
		notifier = mailer
		defer mailer.Wait()
	}

	diagnostics := app.NewDiagnostics(0)
	service := app.New(cfg, app.Deps{
		Store:       threadStore,
		Bus:         bus,
		Search:      searchService,
		Notifier:    notifier,
		Diagnostics: diagnostics,
		Logger:      log,
	})

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, log)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("store", cfg.StoreDriver).Msg("inquiry api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return diagnostics.Run(gctx, log)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
			return err
		}
		log.Info().Msg("server stopped")
		return nil
	})
	return g.Wait()
}
