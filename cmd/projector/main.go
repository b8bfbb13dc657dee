package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-order-payments/internal/config"
	kafkax "github.com/ariefcatur/go-order-payments/internal/kafka"
	"github.com/ariefcatur/go-order-payments/internal/logger"
	"github.com/ariefcatur/go-order-payments/internal/orders"
	"github.com/ariefcatur/go-order-payments/internal/projector"
	"github.com/ariefcatur/go-order-payments/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	lg, err := logger.New(cfg.Env, cfg.ServiceName+"-projector")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &projector.Service{
		Cache: &redisx.StatusCache{Redis: rdb},
		Dedup: &redisx.Dedup{Redis: rdb, Consumer: redisx.DedupProjector},
		Log:   lg,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, orders.TopicOrderStatusChanged, cfg.ProjectorWorkers, lg)
	done := make(chan struct{})
	go func() {
		defer close(done)
		lg.Info("projector consumer started",
			zap.String("group", cfg.ProjectorGroup),
			zap.String("topic", orders.TopicOrderStatusChanged),
			zap.Int("workers", cfg.ProjectorWorkers))
		if err := cons.Start(ctx, svc.HandleStatusChanged); err != nil {
			lg.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	lg.Info("shutting down consumer")
	cancel()
	<-done
}
