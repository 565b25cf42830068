package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/ar-duel-backend/internal/config"
	"github.com/DoyleJ11/ar-duel-backend/internal/httpapi"
	"github.com/DoyleJ11/ar-duel-backend/internal/hub"
	"github.com/DoyleJ11/ar-duel-backend/internal/logging"
	"github.com/DoyleJ11/ar-duel-backend/internal/store"
	"github.com/DoyleJ11/ar-duel-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Development(), cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := httpapi.Deps{Logger: logger, AllowedOrigins: cfg.AllowedOrigins}
	hubOpts := hub.Options{
		Logger:            logger,
		Grace:             cfg.DisconnectGrace,
		DisconnectCleanup: cfg.DisconnectCleanupDelay,
		LeaveCleanup:      cfg.LeaveCleanupDelay,
		MinRoomAge:        cfg.MinRoomAge,
	}

	if cfg.DatabaseURL != "" {
		db, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		repo := store.NewRepository(db)
		rec := store.NewRecorder(repo, logger, 64)
		go rec.Run()
		defer rec.Close()
		hubOpts.Matches = rec
		deps.Matches = repo
	} else {
		logger.Info("DATABASE_URL not set, match history disabled")
	}

	transport := ws.NewServer(logger, ws.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		ReadTimeout:    cfg.WSReadTimeout,
		PingInterval:   cfg.WSPingInterval,
	})
	hubOpts.Transport = transport

	// Build the hub and router with the transport injected. The hub outlives
	// the signal context so it can drain after the listener stops.
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	h := hub.NewHub(hubCtx, hubOpts)
	deps.Rooms = h
	deps.WS = transport.Handler(h)

	stats, err := hub.StartStatsJob(h, cfg.StatsSchedule, logger)
	if err != nil {
		return err
	}
	defer stats.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.SetupRoutes(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	transport.CloseAll()
	if !h.Post(hub.ShutdownHub{}) {
		logger.Warn("hub already stopped")
	}
	<-h.Done()
	return err
}
