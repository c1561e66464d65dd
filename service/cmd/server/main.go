// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/wallwars/wallwars/service/internal/botengine"
	"github.com/wallwars/wallwars/service/internal/config"
	"github.com/wallwars/wallwars/service/internal/replay"
	"github.com/wallwars/wallwars/service/internal/seat"
	"github.com/wallwars/wallwars/service/internal/server"
	"github.com/wallwars/wallwars/service/internal/store"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	cfg := config.Load(logrus.WithField("component", "config"))
	logrus.SetLevel(cfg.LogLevel)
	log := logrus.WithField("component", "main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := server.Options{
		Defaults:         cfg.Game,
		OfferTimeout:     cfg.OfferTimeout,
		MoveTimeout:      cfg.BotMoveTimeout,
		AutoAcceptDelay:  cfg.AutoAcceptDelay,
		BotDrawThreshold: cfg.BotDrawThreshold,
		Log:              logrus.WithField("component", "hub"),
	}

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid WALLWARS_REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warnf("Redis unreachable, replays disabled: %v", err)
		} else {
			sink := replay.NewSink(rdb, cfg.RedisPrefix)
			opts.Recorder = sink
			opts.Archive = sink
			log.Infof("Recording games to Redis under prefix %q.", cfg.RedisPrefix)
		}
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Invalid WALLWARS_DATABASE_URL: %v", err)
		}
		defer pool.Close()
		results := store.NewResults(pool)
		schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = results.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			log.Warnf("Postgres unavailable, results will not be stored: %v", err)
		} else {
			opts.Results = results
			log.Info("Storing finished games in Postgres.")
		}
	}

	if cfg.SeatSecret == "" {
		log.Warn("WALLWARS_SEAT_SECRET is not set, seat tokens will not survive a restart.")
	}
	seats, err := seat.NewIssuer([]byte(cfg.SeatSecret), cfg.SeatTokenTTL)
	if err != nil {
		log.Fatalf("Seat tokens: %v", err)
	}
	opts.Seats = seats

	if cfg.BotEnginePath != "" {
		proc, err := botengine.StartProcess(cfg.BotEnginePath, cfg.BotEngineArgs, logrus.WithField("component", "botengine"))
		if err != nil {
			log.Warnf("Bot engine unavailable: %v", err)
		} else {
			defer func() {
				if err := proc.Close(); err != nil {
					log.Warnf("Bot engine exited: %v", err)
				}
			}()
			opts.Engine = botengine.NewClient(proc, logrus.WithField("component", "botengine"))
		}
	}

	hub, err := server.NewHub(opts)
	if err != nil {
		log.Fatalf("Creating hub: %v", err)
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           hub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("HTTP server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Shutdown: %v", err)
	}
}
