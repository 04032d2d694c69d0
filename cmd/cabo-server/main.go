// Command cabo-server runs the Cabo game server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lizeren/Cabo/internal/cache"
	"github.com/lizeren/Cabo/internal/config"
	"github.com/lizeren/Cabo/internal/database"
	"github.com/lizeren/Cabo/internal/game"
	"github.com/lizeren/Cabo/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	logrus.SetLevel(cfg.ParseLogLevel())
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *database.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logrus.WithError(err).Fatal("failed to connect to postgres")
		}
		defer db.Close()
		logrus.Info("postgres connected")
	} else {
		logrus.Warn("DATABASE_URL not set, running without persistence")
	}

	var c *cache.Cache
	if cfg.RedisAddr != "" {
		c, err = cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logrus.WithError(err).Fatal("failed to connect to redis")
		}
		defer c.Close()
		logrus.Info("redis connected")
	} else {
		logrus.Warn("REDIS_ADDR not set, running without action history")
	}

	registry := game.NewRegistry()
	srv := server.New(cfg, registry, db, c)

	httpServer := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     srv.Handler(),
		ReadTimeout: 30 * time.Second,
	}

	go func() {
		logrus.WithField("addr", cfg.ListenAddr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
}
