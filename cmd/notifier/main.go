package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/alert"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/infrastructure/kafka"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/infrastructure/store"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/notification"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Configuration from environment variables
	kafkaBrokersStr := getEnv("KAFKA_BROKERS", "localhost:9092")
	kafkaBrokers := strings.Split(kafkaBrokersStr, ",")
	kafkaTopic := getEnv("KAFKA_TOPIC", "audit-events")
	consumerGroup := "low-stock-notifier"
	dynamoTable := os.Getenv("NOTIFICATIONS_TABLE")
	threshold := getEnvInt("LOW_STOCK_THRESHOLD", alert.DefaultLowStockThreshold)

	log.Println("[Notifier] ========================================")
	log.Println("[Notifier] Wholesale Commerce - Low Stock Notifier")
	log.Println("[Notifier] ========================================")
	log.Printf("[Notifier] Kafka: %v", kafkaBrokers)
	log.Printf("[Notifier] Topic: %s", kafkaTopic)
	log.Printf("[Notifier] Group: %s", consumerGroup)
	log.Printf("[Notifier] Threshold: %d units", threshold)

	// Notification store must be shared with the API process, so a
	// durable backend is effectively required here.
	var notifStore notification.Store
	if dynamoTable != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatalf("[Notifier] Failed to load AWS config: %v", err)
		}
		notifStore = notification.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), dynamoTable)
		log.Printf("[Notifier] Notifications: DynamoDB table %s", dynamoTable)
	} else {
		notifStore = notification.NewMemoryStore()
		log.Println("[Notifier] Notifications: in-memory (alerts are not visible to the API process)")
	}
	dispatcher := notification.NewDispatcher(notifStore)

	// User directory, used to narrow brand alerts to the owning brand's
	// admins. Without it the shared brand-admin feed is used.
	var users store.UserStore
	if connStr := os.Getenv("DATABASE_URL"); connStr != "" {
		db, err := store.ConnectPostgres(connStr)
		if err != nil {
			log.Fatalf("[Notifier] Failed to connect to PostgreSQL: %v", err)
		}
		defer db.Close()
		users = store.NewPostgres(db)
		log.Println("[Notifier] User directory: PostgreSQL")
	}

	handler := alert.NewHandler(dispatcher, users, threshold)

	consumer := kafka.NewConsumer(kafkaBrokers, kafkaTopic, consumerGroup)
	defer consumer.Close()

	go func() {
		log.Println("[Notifier] Starting audit stream consumer...")
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil {
			log.Printf("[Notifier] Consumer error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Notifier] Shutting down...")
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
