package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-lodge-escrow/internal/bookings"
	"github.com/ariefcatur/go-lodge-escrow/internal/config"
	kafkax "github.com/ariefcatur/go-lodge-escrow/internal/kafka"
	"github.com/ariefcatur/go-lodge-escrow/internal/paystack"
	"github.com/ariefcatur/go-lodge-escrow/internal/postgres"
	"github.com/ariefcatur/go-lodge-escrow/internal/redisx"
	"github.com/ariefcatur/go-lodge-escrow/internal/settlement"
	"github.com/ariefcatur/go-lodge-escrow/internal/users"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producers: payout results, and decisions made by the sweeper
	payouts := kafkax.NewProducer(cfg.KafkaBrokers, bookings.TopicPayout, 256)
	payouts.Start(ctx)
	decided := kafkax.NewProducer(cfg.KafkaBrokers, bookings.TopicInspectionDecided, 256)
	decided.Start(ctx)

	gw := paystack.New(cfg.PaystackBaseURL, cfg.PaystackSecretKey)
	userRepo := &users.Repo{DB: db}
	bookingRepo := &bookings.Repo{DB: db}
	name := cfg.ServiceName + "-settlement"

	// Service
	svc := &settlement.Service{
		Store:       &settlement.Repo{DB: db},
		Gateway:     gw,
		Users:       userRepo,
		Bookings:    bookingRepo,
		Redis:       rdb,
		Events:      payouts,
		ServiceName: name,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.SettlementGroup, bookings.TopicInspectionDecided, cfg.SettlementWorkers)
	go func() {
		log.Printf("settlement consumer started: group=%s topic=%s workers=%d",
			cfg.SettlementGroup, bookings.TopicInspectionDecided, cfg.SettlementWorkers)
		if err := cons.Start(ctx, svc.HandleInspectionDecided); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	// Inspection window
	sweeper := &settlement.Sweeper{
		Bookings: &bookings.Service{
			Store:          bookingRepo,
			Users:          userRepo,
			DecisionEvents: decided,
			Redis:          rdb,
			ServiceName:    name,
		},
		Window:   cfg.InspectionWindow,
		Interval: cfg.SweepInterval,
	}
	if cfg.InspectionWindow > 0 {
		log.Printf("auto-release enabled: window=%s interval=%s", cfg.InspectionWindow, cfg.SweepInterval)
		go sweeper.Run(ctx)
	}

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down settlement...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	payouts.Close()
	decided.Close()
	payouts.WaitClosed()
	decided.WaitClosed()
}
