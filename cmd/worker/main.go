package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"healthbrief/appsync"
	"healthbrief/config"
	"healthbrief/events"
	"healthbrief/store"
)

// The upload worker consumes article approval events and pushes each
// approved article to the app database. It shares the review database with
// the API server but runs as its own process so slow app uploads never
// block reviewers.
func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := config.Load()
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatalf("KAFKA_BROKERS is required for the upload worker")
	}
	if cfg.AppAPIURL == "" {
		log.Fatalf("APP_DB_API_URL is required for the upload worker")
	}

	db, err := store.Open(cfg.DSN())
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer store.Close(db)

	appClient, err := appsync.NewClient(cfg.AppAPIURL, cfg.AppAPIKey)
	if err != nil {
		log.Fatalf("app client error: %v", err)
	}
	worker := appsync.NewWorker(store.NewArticleRepository(db), appClient)

	log.Printf("Kafka brokers: %v", cfg.KafkaBrokers)
	log.Printf("Topic: %s", cfg.KafkaTopicApproved)
	log.Printf("Consumer group: %s", cfg.KafkaGroupID)

	consumer, err := events.NewConsumer(events.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopicApproved,
		GroupID: cfg.KafkaGroupID,
		Handler: worker.Handler(),
	})
	if err != nil {
		log.Fatalf("kafka consumer error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := consumer.Start(ctx); err != nil {
		log.Fatalf("failed to start consumer: %v", err)
	}

	// Wait for interrupt signal
	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigterm, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigterm:
		log.Println("Received termination signal")
	case <-ctx.Done():
		log.Println("Context canceled")
	}

	cancel()

	// Give some time for in-flight uploads to complete
	time.Sleep(2 * time.Second)

	if err := consumer.Close(); err != nil {
		log.Printf("consumer close error: %v", err)
	}
}
