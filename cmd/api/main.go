package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-commerce-core.git/internal/cart"
	"github.com/ariefcatur/go-commerce-core.git/internal/commerce"
	"github.com/ariefcatur/go-commerce-core.git/internal/config"
	"github.com/ariefcatur/go-commerce-core.git/internal/httpx"
	"github.com/ariefcatur/go-commerce-core.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-commerce-core.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-core.git/internal/logging"
	"github.com/ariefcatur/go-commerce-core.git/internal/metrics"
	"github.com/ariefcatur/go-commerce-core.git/internal/orders"
	"github.com/ariefcatur/go-commerce-core.git/internal/payments"
	"github.com/ariefcatur/go-commerce-core.git/internal/postgres"
	"github.com/ariefcatur/go-commerce-core.git/internal/redisx"
	"github.com/go-chi/chi/v5"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	store := postgres.NewStore(db)

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, commerce.TopicOrderCreated, 1024)
	pCreated.Start(ctx)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, commerce.TopicOrderCancelled, 1024)
	pCancelled.Start(ctx)
	pVerified := kafkax.NewProducer(cfg.KafkaBrokers, commerce.TopicPaymentVerified, 1024)
	pVerified.Start(ctx)

	// Core services
	ledger := &inventory.Ledger{Store: store}
	engine := orders.NewEngine(store, ledger, logger)
	cartSvc := cart.NewService(store)
	provider := payments.NewClient(cfg.PaystackSecretKey)
	provider.BaseURL = cfg.PaystackBaseURL
	settlement := payments.NewSettlement(store, provider, ledger, cfg.PaystackSecretKey, logger)

	mets := metrics.New()
	validate := validatorv10.New()

	// Router
	router := httpx.NewRouter()
	router.Handle("/metrics", mets.Handler())

	ch := &httpx.CartHandler{Svc: cartSvc, Validate: validate}
	oh := &httpx.OrdersHandler{
		Engine:            engine,
		ProducerCreated:   pCreated,
		ProducerCancelled: pCancelled,
		Redis:             rdb,
		Metrics:           mets,
		Validate:          validate,
		Service:           cfg.ServiceName,
	}
	ph := &httpx.PaymentsHandler{
		Settlement:       settlement,
		ProducerVerified: pVerified,
		Redis:            rdb,
		Metrics:          mets,
		Validate:         validate,
		Service:          cfg.ServiceName,
	}

	router.Group(func(r chi.Router) {
		r.Use(httpx.RequireAuth(cfg.JWTSecret))
		ch.Register(r)
		oh.Register(r)
		ph.Register(r)
		r.Group(func(ar chi.Router) {
			ar.Use(httpx.RequireAdmin)
			oh.RegisterAdmin(ar)
		})
	})
	// provider webhook stays unauthenticated; the HMAC signature is the gate
	ph.RegisterPublic(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	pCreated.Close()
	pCancelled.Close()
	pVerified.Close()
	cancel()
	pCreated.WaitClosed()
	pCancelled.WaitClosed()
	pVerified.WaitClosed()
}
