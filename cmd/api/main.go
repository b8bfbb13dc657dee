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

	"github.com/ariefcatur/go-order-payments/internal/config"
	"github.com/ariefcatur/go-order-payments/internal/httpx"
	kafkax "github.com/ariefcatur/go-order-payments/internal/kafka"
	"github.com/ariefcatur/go-order-payments/internal/logger"
	"github.com/ariefcatur/go-order-payments/internal/orders"
	"github.com/ariefcatur/go-order-payments/internal/payments"
	"github.com/ariefcatur/go-order-payments/internal/postgres"
	"github.com/ariefcatur/go-order-payments/internal/redisx"
	"github.com/ariefcatur/go-order-payments/internal/webhook"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	lg, err := logger.New(cfg.Env, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()
	if err := cfg.Validate(); err != nil {
		lg.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresPool)
	if err != nil {
		lg.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		lg.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cache := &redisx.StatusCache{Redis: rdb}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, lg)
	prod.Start(ctx)

	repo := &orders.Repo{DB: db}
	syncer := &orders.Synchronizer{Store: repo, Log: lg.Named("sync")}

	recv, err := webhook.NewReceiver(cfg.StripeWebhookSecret, cfg.WebhookTolerance, syncer, repo)
	if err != nil {
		lg.Fatal("webhook receiver", zap.Error(err))
	}
	recv.Dedup = &redisx.Dedup{Redis: rdb, Consumer: redisx.DedupWebhook}
	recv.Cache = cache
	recv.Publisher = prod
	recv.Service = cfg.ServiceName
	recv.Log = lg.Named("webhook")

	initiator := &payments.Initiator{
		Store:      repo,
		Provider:   payments.NewStripeProvider(cfg.StripeSecretKey, nil),
		Timeout:    cfg.ProviderTimeout,
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
		Log:        lg.Named("checkout"),
	}

	router := httpx.NewRouter(lg)
	(&httpx.OrdersHandler{Store: repo, Initiator: initiator, Cache: cache, Log: lg}).Register(router)
	(&httpx.WebhookHandler{Receiver: recv, Log: lg}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		lg.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	lg.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // flush buffered status changes
	prod.WaitClosed() // drain
	cancel()
}
