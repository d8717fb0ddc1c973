package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"vidpress/config"
	"vidpress/internal/adapter/delivery"
	HTTPAdapter "vidpress/internal/adapter/http"
	"vidpress/internal/adapter/source"
	sqlitestore "vidpress/internal/adapter/storage/sqlite"
	"vidpress/internal/adapter/transcoder/ffmpeg"
	"vidpress/internal/domain"
	"vidpress/internal/infrastructure/logger"
	"vidpress/internal/service"
)

func main() {
	log := logger.New(os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	for _, dir := range []string{cfg.DataDir, cfg.ScratchDir, cfg.DeliveryDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create directory")
		}
	}

	store, err := sqlitestore.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() { _ = store.Close() }()

	jobStore := sqlitestore.NewJobStore(store)
	userStore := sqlitestore.NewUserStore(store)

	authSvc := service.NewAuthService(userStore, cfg.RequireAuth, log)
	if err := authSvc.Bootstrap(context.Background(), cfg.AuthorizedUsers, cfg.AdminUsers); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap users")
	}
	issueInitialAdminTokens(authSvc, userStore, cfg.AdminUsers, log)

	admissionSvc := service.NewAdmissionService(jobStore, cfg.Profiles, cfg.ProfileNames(), service.AdmissionConfig{
		QuotaPerUser:     cfg.QueueLimitUser,
		MaxFileSize:      cfg.MaxFileSize,
		SupportedFormats: config.SupportedFormats,
	}, log)

	eventBus := service.NewEventBus()
	transcoder := ffmpeg.NewTranscoder(log)
	resolver := source.NewHTTPResolver()
	deliverer := delivery.NewArchive(cfg.DeliveryDir, log)
	orchestrator := service.NewOrchestrator(transcoder, resolver, cfg.ScratchDir, cfg.MaxDurationSec, log)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	scheduler := service.NewScheduler(jobStore, orchestrator, deliverer, eventBus, cfg.Profiles, cfg.Workers, log)
	if err := scheduler.Start(workerCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	server := HTTPAdapter.NewServer(authSvc, admissionSvc, jobStore, eventBus, log)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown error")
		}

		// Stop workers; in-flight jobs are finished or released to pending.
		workerCancel()
		if err := scheduler.Wait(); err != nil {
			log.Error().Err(err).Msg("scheduler shutdown error")
		}

		log.Info().Msg("shutdown complete")
	}()

	log.Info().Str("addr", addr).Int("workers", cfg.Workers).Msg("vidpress listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
	<-done
}

// issueInitialAdminTokens generates a credential for admins that have none
// yet and prints it once, so a fresh deployment is reachable.
func issueInitialAdminTokens(authSvc *service.AuthService, users *sqlitestore.UserStore, admins []int64, log zerolog.Logger) {
	ctx := context.Background()
	for _, id := range admins {
		u, err := users.Get(ctx, id)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Error().Err(err).Int64("admin", id).Msg("failed to load admin user")
			continue
		}
		if u != nil && u.TokenHash != "" {
			continue
		}
		token, err := authSvc.Register(ctx, id, "")
		if err != nil {
			log.Error().Err(err).Int64("admin", id).Msg("failed to issue admin token")
			continue
		}
		log.Info().Int64("admin", id).Str("token", token).Msg("initial admin token issued, store it now")
	}
}
