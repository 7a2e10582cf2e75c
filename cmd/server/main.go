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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/planpoker/planning-poker-backend/internal/config"
	"github.com/planpoker/planning-poker-backend/internal/coord"
	"github.com/planpoker/planning-poker-backend/internal/gateway"
	"github.com/planpoker/planning-poker-backend/internal/httpapi"
	"github.com/planpoker/planning-poker-backend/internal/hub"
	"github.com/planpoker/planning-poker-backend/internal/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init failed:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	st := store.New(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Explicit construction and wiring, no global container.
	c := coord.New(cfg.GracePeriod, logger)
	gw := gateway.New(c, logger)
	h := hub.NewHub(ctx, st, gw, logger)

	// Grace-window expiries evict through the same per-room session that
	// handles every other mutation.
	c.SetDepartureHandler(func(roomID, memberID string) {
		sess, err := h.Lookup(context.Background(), roomID)
		if err != nil {
			logger.Warn("departure for unknown room", zap.String("room", roomID), zap.Error(err))
			return
		}
		sess.Leave(memberID)
	})

	handler := httpapi.SetupRoutes(h, c, gw, cfg.AllowedOrigins, cfg.DefaultMaxMembers, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.Int("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}
