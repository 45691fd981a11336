package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/api"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/auth"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/command"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/guard"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/infrastructure/kafka"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/infrastructure/store"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/inventory"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/lifecycle"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/notification"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Configuration from environment variables
	listenAddr := getEnv("LISTEN_ADDR", ":8080")
	postgresConnStr := os.Getenv("DATABASE_URL")
	kafkaBrokersStr := os.Getenv("KAFKA_BROKERS")
	kafkaTopic := getEnv("KAFKA_TOPIC", "audit-events")
	redisAddr := os.Getenv("REDIS_ADDR")
	dynamoTable := os.Getenv("NOTIFICATIONS_TABLE")
	rateLimit := getEnvInt("RATE_LIMIT", 30)
	rateWindow := getEnvDuration("RATE_WINDOW", time.Minute)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("[API] JWT_SECRET environment variable is required")
	}
	if len(jwtSecret) < 32 {
		log.Fatal("[API] JWT_SECRET must be at least 32 characters long")
	}

	log.Println("[API] ========================================")
	log.Println("[API] Wholesale Commerce - Order/Inventory API")
	log.Println("[API] ========================================")

	// Audit fan-out producer (optional: without brokers, records stay in
	// the database only and the notifier process sees nothing).
	var producer *kafka.Producer
	if kafkaBrokersStr != "" {
		brokers := strings.Split(kafkaBrokersStr, ",")
		producer = kafka.NewProducer(brokers, kafkaTopic)
		defer producer.Close()
		log.Printf("[API] Kafka: %v topic %s", brokers, kafkaTopic)
	}

	// Stores: PostgreSQL in production, in-memory for local runs.
	var (
		products store.ProductStore
		orders   store.OrderStore
		audit    store.AuditStore
		users    store.UserStore
	)
	if postgresConnStr != "" {
		db, err := store.ConnectPostgres(postgresConnStr)
		if err != nil {
			log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
		}
		defer db.Close()
		pg := store.NewPostgres(db)
		if producer != nil {
			pg = pg.WithPublisher(producer)
		}
		products, orders, audit, users = pg, pg, pg, pg
		log.Println("[API] Store: PostgreSQL")
	} else {
		mem := store.NewMemory()
		if producer != nil {
			mem = mem.WithPublisher(producer)
		}
		products, orders, audit, users = mem, mem, mem, mem
		log.Println("[API] Store: in-memory (development)")
	}

	// Admission guard: Redis when configured, per-process otherwise.
	var admission guard.Guard
	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer client.Close()
		admission = guard.NewRedisGuard(client, rateLimit, rateWindow)
		log.Printf("[API] Guard: Redis at %s (%d req / %s)", redisAddr, rateLimit, rateWindow)
	} else {
		admission = guard.NewMemoryGuard(rateLimit, rateWindow)
		log.Printf("[API] Guard: in-memory (%d req / %s)", rateLimit, rateWindow)
	}

	// Notification store: DynamoDB when configured, in-memory otherwise.
	var notifStore notification.Store
	if dynamoTable != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatalf("[API] Failed to load AWS config: %v", err)
		}
		notifStore = notification.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), dynamoTable)
		log.Printf("[API] Notifications: DynamoDB table %s", dynamoTable)
	} else {
		notifStore = notification.NewMemoryStore()
		log.Println("[API] Notifications: in-memory")
	}
	dispatcher := notification.NewDispatcher(notifStore)

	// Core
	engine := inventory.NewEngine(products)
	controller := lifecycle.NewController(orders, products, dispatcher)
	cmdHandler := command.NewHandler(admission, engine, controller, products)

	// HTTP surface
	jwtService := auth.NewJWTService(jwtSecret, 15*time.Minute)
	handlers := api.NewHandlers(cmdHandler, dispatcher, products, orders, audit)
	authHandlers := api.NewAuthHandlers(users, jwtService)
	router := api.NewRouter(handlers, authHandlers, jwtService)

	server := &http.Server{
		Addr:         listenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[API] Listening on %s", listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] Shutdown error: %v", err)
	}
	cancel()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
