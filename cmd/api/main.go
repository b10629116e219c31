package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-lodge-escrow/internal/bookings"
	"github.com/ariefcatur/go-lodge-escrow/internal/config"
	"github.com/ariefcatur/go-lodge-escrow/internal/httpx"
	kafkax "github.com/ariefcatur/go-lodge-escrow/internal/kafka"
	"github.com/ariefcatur/go-lodge-escrow/internal/listings"
	"github.com/ariefcatur/go-lodge-escrow/internal/payments"
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
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	paid := kafkax.NewProducer(cfg.KafkaBrokers, bookings.TopicBookingPaid, 1024)
	paid.Start(ctx)
	decided := kafkax.NewProducer(cfg.KafkaBrokers, bookings.TopicInspectionDecided, 1024)
	decided.Start(ctx)
	payouts := kafkax.NewProducer(cfg.KafkaBrokers, bookings.TopicPayout, 256)
	payouts.Start(ctx)

	if cfg.PaystackSecretKey == "" {
		log.Println("PAYSTACK_SECRET_KEY not set: bank list falls back to the built-in list, charges will fail")
	}
	gw := paystack.New(cfg.PaystackBaseURL, cfg.PaystackSecretKey)

	// Repos & services
	userRepo := &users.Repo{DB: db}
	listingRepo := &listings.Repo{DB: db}
	bookingRepo := &bookings.Repo{DB: db}

	auth := &httpx.Auth{Tokens: users.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)}
	userSvc := &users.Service{Store: userRepo, Tokens: auth.Tokens, Accounts: gw}
	listingSvc := &listings.Service{Store: listingRepo}
	bookingSvc := &bookings.Service{
		Store:          bookingRepo,
		Gateway:        gw,
		Users:          userRepo,
		PaidEvents:     paid,
		DecisionEvents: decided,
		Redis:          rdb,
		ServiceName:    cfg.ServiceName,
	}
	paySvc := payments.NewService(gw, listingRepo, userRepo, rdb, cfg.PaystackCallback)
	payoutSvc := &settlement.Service{
		Store:       &settlement.Repo{DB: db},
		Gateway:     gw,
		Users:       userRepo,
		Bookings:    bookingRepo,
		Redis:       rdb,
		Events:      payouts,
		ServiceName: cfg.ServiceName,
	}

	router := httpx.NewRouter()
	(&httpx.AuthHandler{Users: userSvc, Auth: auth}).Register(router)
	(&httpx.ListingsHandler{Listings: listingSvc, Auth: auth}).Register(router)
	(&httpx.PurchasesHandler{Bookings: bookingSvc, Payments: paySvc, Auth: auth}).Register(router)
	(&httpx.PaymentsHandler{Payments: paySvc, Users: userSvc, Payouts: payoutSvc, Auth: auth}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	for _, p := range []*kafkax.Producer{paid, decided, payouts} {
		p.Close() // close inbox -> flush & close writer
	}
	cancel()
	for _, p := range []*kafkax.Producer{paid, decided, payouts} {
		p.WaitClosed()
	}
}
