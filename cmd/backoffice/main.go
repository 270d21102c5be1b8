package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-backoffice/internal/auth"
	"ms-backoffice/internal/config"
	"ms-backoffice/internal/kafka"
	"ms-backoffice/internal/logger"
	"ms-backoffice/internal/order"
	"ms-backoffice/internal/order/db"
	"ms-backoffice/internal/order/order_api"
	"ms-backoffice/internal/order/paymentlink"
	rediswrap "ms-backoffice/internal/order/redis"
	"ms-backoffice/internal/payment"
	"ms-backoffice/internal/payment/storage"
)

func connectPostgres(cfg *config.Config, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))
	return client
}

// noopPublisher stands in when Kafka is disabled so the services keep one
// code path.
type noopPublisher struct{}

func (noopPublisher) Publish(topic string, key string, value []byte) error { return nil }

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Back Office Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg, log)
	defer bunDB.Close()

	redisClient := connectRedis(ctx, cfg, log)
	defer redisClient.Close()

	var publisher interface {
		Publish(topic string, key string, value []byte) error
	} = noopPublisher{}

	if cfg.Kafka.Enabled {
		kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer kafkaProducer.Close()
		log.Info("KAFKA", "Kafka producer initialized successfully")

		requiredTopics := []string{
			order.TopicOrderCreated,
			order.TopicOrderFinalized,
			order.TopicOrderCancelled,
			order.TopicLinkIssued,
			payment.TopicProofSubmitted,
			payment.TopicProofVerified,
			payment.TopicProofRejected,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
		publisher = kafkaProducer
	} else {
		log.Warn("KAFKA", "Kafka disabled, events will not be published")
	}

	proofStore, err := storage.NewDiskStore(cfg.Storage.ProofDir)
	if err != nil {
		log.Fatal("STORAGE", fmt.Sprintf("Failed to initialize proof storage: %v", err))
	}

	store := &db.DB{Bun: bunDB}

	linkManager := paymentlink.NewManager(store, cfg.PaymentLink.PublicBaseURL)
	linkManager.DefaultValidity = time.Duration(cfg.PaymentLink.DefaultValidityHours) * time.Hour
	linkManager.MinValidity = time.Duration(cfg.PaymentLink.MinValidityHours) * time.Hour
	linkManager.MaxValidity = time.Duration(cfg.PaymentLink.MaxValidityHours) * time.Hour
	linkManager.RetryWindow = time.Duration(cfg.PaymentLink.RetryWindowHours) * time.Hour

	orderService := order.NewOrderService(store, linkManager, publisher, log)

	workflow := payment.NewWorkflow(
		store,
		linkManager,
		rediswrap.NewSubmitLock(redisClient, log),
		proofStore,
		publisher,
		log,
	)

	handler := order_api.NewHandler(orderService, workflow, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	// The tokens in the URL are the capability; no session is required.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/payment/{token}", handler.PaymentPage)
		r.Post("/payment/{token}", handler.SubmitProof)
		r.Get("/track/{verificationToken}", handler.TrackOrder)
	})
	log.Info("ROUTER", "Public payment and tracking endpoints registered under /api/v1")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		log.Info("AUTH", "OIDC middleware applied to back-office API routes")

		r.Route("/api/v1/orders", func(r chi.Router) {
			r.Post("/", handler.CreateOrder)
			r.Get("/{orderId}", handler.GetOrder)
			r.Delete("/{orderId}", handler.CancelOrder)
			r.Post("/{orderId}/recalculate", handler.Recalculate)
			r.Post("/{orderId}/finalize", handler.FinalizeNegotiation)
			r.Post("/{orderId}/payment-link", handler.IssuePaymentLink)
		})
		log.Info("ROUTER", "Order routes registered under /api/v1/orders")

		r.Route("/api/v1/payment-proofs", func(r chi.Router) {
			r.Post("/{proofId}/verify", handler.VerifyProof)
			r.Post("/{proofId}/reject", handler.RejectProof)
		})
		log.Info("ROUTER", "Proof review routes registered under /api/v1/payment-proofs")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Back Office Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Back Office Service shutdown complete")
	}
}
