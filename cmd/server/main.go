package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-typing/internal/auth"
	"go-typing/internal/clock"
	"go-typing/internal/config"
	"go-typing/internal/redis"
	"go-typing/internal/typing"
	"go-typing/internal/ws"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	validator := auth.NewValidator(cfg.IssuerURL, nil)
	if err := validator.Start(ctx, auth.DefaultRefreshInterval); err != nil {
		return err
	}

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	tracker := typing.NewTracker(
		typing.WithTimeout(cfg.TypingTimeout),
		typing.WithLogger(slog.Default()),
	)
	defer tracker.Close()

	hub := ws.NewHub(redisClient, tracker)
	tracker.OnChange(hub.PublishChange)
	go hub.Run(ctx)

	go func() {
		if err := redis.SubscribeToEvents(ctx, redisClient, tracker); err != nil {
			slog.Error("[REDIS] Subscription failed", "error", err)
			stop()
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws", &ws.Handler{
		Hub:       hub,
		Validator: validator,
		Throttle: typing.ThrottleConfig{
			Enabled:    cfg.EnableTypingMessages,
			Interval:   cfg.TypingUpdateInterval,
			MaxMembers: cfg.MaxNotificationsPerChannel,
		},
		Clock: clock.Real(),
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("Typing server starting", "port", cfg.Port, "typingTimeout", cfg.TypingTimeout)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
