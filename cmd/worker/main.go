// Command worker consumes purchase.completed events and records them in the
// activity feed and an append-only purchase log.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/muluken16/E-liberary/internal/activity"
	"github.com/muluken16/E-liberary/internal/config"
	"github.com/muluken16/E-liberary/internal/logger"
	"github.com/muluken16/E-liberary/internal/queue"
)

func main() {
	config.LoadDotEnv()
	amqpCfg := config.LoadAMQPConfig()
	jobsCfg := config.LoadJobsConfig()
	log := logger.New(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("APP_ENV")).With().Str("app", "worker").Logger()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unavailable; activity entries stay in this process")
	} else {
		defer rdb.Close()
	}

	rec := &queue.Recorder{Store: activity.StoreFor(rdb), LogPath: jobsCfg.ActivityLogPath}
	consumer := &queue.Consumer{URL: amqpCfg.URL, Queue: amqpCfg.PurchaseQueue, Log: log}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("queue", amqpCfg.PurchaseQueue).Str("log_path", jobsCfg.ActivityLogPath).Msg("worker started")
	if err := consumer.Run(ctx, rec.Handle); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("worker stopped")
		os.Exit(1)
	}
	log.Info().Msg("worker stopped")
}
