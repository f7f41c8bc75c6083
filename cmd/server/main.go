package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muluken16/E-liberary/internal/activity"   // recent-activity feed
	"github.com/muluken16/E-liberary/internal/config"     // internal config loader
	"github.com/muluken16/E-liberary/internal/database"   // MySQL connection and transactions
	"github.com/muluken16/E-liberary/internal/exchange"   // exchange rate cache
	"github.com/muluken16/E-liberary/internal/gateway"    // Chapa client
	"github.com/muluken16/E-liberary/internal/handler"    // HTTP handlers
	"github.com/muluken16/E-liberary/internal/logger"     // zerolog setup
	"github.com/muluken16/E-liberary/internal/queue"      // purchase event publisher
	"github.com/muluken16/E-liberary/internal/repository" // DB repositories
	"github.com/muluken16/E-liberary/internal/router"     // internal router setup
	"github.com/muluken16/E-liberary/internal/service"    // business rules
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load() // Load environment config
	log := logger.New(os.Stdout, cfg.LogLevel, cfg.Env).With().Str("app", "server").Logger()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unavailable; rate limiting and caching disabled, in-memory feeds in use")
	} else {
		defer rdb.Close()
	}

	// Repositories
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	books := repository.NewBookRepo(db)
	categories := repository.NewCategoryRepo(db)
	payments := repository.NewPaymentRepo(db)
	purchases := repository.NewPurchaseRepo(db)
	events := repository.NewPaymentEventRepo(db)
	quizzes := repository.NewQuizRepo(db)

	// Collaborators
	chapa := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.Chapa.BaseURL,
		SecretKey: cfg.Chapa.SecretKey,
		TestMode:  cfg.Chapa.TestMode,
		Timeout:   cfg.Chapa.Timeout,
	}, log)
	rates := exchange.NewService(chapa, exchange.CacheFor(rdb), cfg.Chapa.RateTTL, log)
	feed := activity.StoreFor(rdb)
	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.AMQP.URL != "" {
		publisher = queue.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.PurchaseQueue, log)
	}

	// Services
	ledger := service.NewLedger(service.LedgerDeps{
		Tx:        database.SQLTx{DB: db},
		Books:     books,
		Payments:  payments,
		Events:    events,
		Purchases: purchases,
		Grantor:   service.NewGrantor(purchases, log),
		Gateway:   chapa,
		Rates:     rates,
		Publisher: publisher,
		Activity:  feed,
		Config: service.LedgerConfig{
			WebhookSecret: cfg.Chapa.WebhookSecret,
			CallbackURL:   cfg.Chapa.CallbackURL,
			ReturnURL:     cfg.Chapa.ReturnURL,
		},
		Log: log,
	})
	access := service.NewAccessChecker(books, purchases)
	catalog := service.NewCatalog(books, categories, rates, log)
	quiz := service.NewQuiz(quizzes)

	e := router.New(router.Handlers{
		Auth:      handler.NewAuthHandler(cfg, users, tokens, log),
		Catalog:   handler.NewCatalogHandler(catalog, log),
		Payments:  handler.NewPaymentHandler(ledger, rates, users, log),
		Purchases: handler.NewPurchaseHandler(access, log),
		Quiz:      handler.NewQuizHandler(quiz, log),
		Activity:  handler.NewActivityHandler(feed, log),
		Ready:     handler.Ready(db),
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Log:       log,
	})

	addr := ":" + cfg.Port // Address string with port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Bool("chapa_test_mode", chapa.TestMode()).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
