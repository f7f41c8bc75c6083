// Command cronjob runs the periodic maintenance jobs: failing stale pending
// payments and refreshing cached exchange rates.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/muluken16/E-liberary/internal/config"
	"github.com/muluken16/E-liberary/internal/database"
	"github.com/muluken16/E-liberary/internal/exchange"
	"github.com/muluken16/E-liberary/internal/gateway"
	"github.com/muluken16/E-liberary/internal/jobs"
	"github.com/muluken16/E-liberary/internal/logger"
	"github.com/muluken16/E-liberary/internal/repository"
	"github.com/muluken16/E-liberary/internal/service"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	log := logger.New(os.Stdout, cfg.LogLevel, cfg.Env).With().Str("app", "cronjob").Logger()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	chapa := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.Chapa.BaseURL,
		SecretKey: cfg.Chapa.SecretKey,
		TestMode:  cfg.Chapa.TestMode,
		Timeout:   cfg.Chapa.Timeout,
	}, log)
	rates := exchange.NewService(chapa, exchange.CacheFor(rdb), cfg.Chapa.RateTTL, log)
	ledger := service.NewLedger(service.LedgerDeps{
		Tx:       database.SQLTx{DB: db},
		Payments: repository.NewPaymentRepo(db),
		Gateway:  chapa,
		Rates:    rates,
		Log:      log,
	})

	sched, err := jobs.NewScheduler(jobs.NewRunner(ledger, rates, cfg.Jobs, log))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid cron spec")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start()
	<-ctx.Done()
	sched.Stop()
}
