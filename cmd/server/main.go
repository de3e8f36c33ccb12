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

	"safeashouses/internal/cache"
	"safeashouses/internal/config"
	"safeashouses/internal/database"
	"safeashouses/internal/server"
	"safeashouses/internal/ws"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load(log)
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cache.InitRedis(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB); err != nil {
		log.WithError(err).Fatal("redis init failed")
	}
	defer cache.Close()

	if cfg.DatabaseURL != "" {
		if err := database.Connect(ctx, cfg.DatabaseURL); err != nil {
			log.WithError(err).Fatal("database connect failed")
		}
		defer database.Close()
		if err := database.EnsureSchema(ctx); err != nil {
			log.WithError(err).Fatal("database schema failed")
		}
	} else {
		log.Info("no DATABASE_URL, match archive disabled")
	}

	hub := ws.NewHub(cache.Rdb, log)
	timers := cache.NewTimerManager(cache.Rdb, log)
	timers.MainTTL = cfg.TurnMainTTL
	timers.ActionTTL = cfg.TurnActionTTL
	timers.AbandonTTL = cfg.AbandonTTL

	srv := server.New(log, cfg, hub, timers)
	timers.OnTurnExpired = srv.HandleTurnExpired
	timers.OnAbandonExpired = srv.HandleAbandonExpired

	if cfg.Listener {
		go func() {
			if err := timers.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("timer listener stopped")
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Routes(),
	}
	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown failed")
		os.Exit(1)
	}
}
