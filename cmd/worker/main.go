package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"sezzlepay_echo/internal/services"
	"sezzlepay_echo/internal/tasks"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Worker started. Waiting for next tick...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down worker...")
		cancel()
	}()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	// Run once immediately so restarts pick up overdue records right away.
	sweep(ctx, db)

	for {
		select {
		case <-ticker.C:
			sweep(ctx, db)
		case <-ctx.Done():
			return
		}
	}
}

func sweep(ctx context.Context, db *gorm.DB) {
	swept, err := tasks.SweepExpiredAuthorizations(ctx, db, time.Now())
	if err != nil {
		log.Printf("Expiry sweep failed: %v", err)
		return
	}
	if swept > 0 {
		log.Printf("Expiry sweep done: %d authorizations expired", swept)
	}
}
