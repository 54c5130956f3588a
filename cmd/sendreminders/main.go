package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/wajihaissa/fahamni/internal/repository"
	"github.com/wajihaissa/fahamni/internal/services"
)

// One-shot reminder sweep, for cron setups that prefer a console command
// over the worker's recurring task.
func main() {
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

	var locker services.SweepLocker
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err := services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Redis unavailable, running sweep without claim: %v", err)
		} else {
			defer cache.Close()
			locker = cache
		}
	}

	store := repository.NewReservationRepository(db)
	mailer := services.NewEmailService()
	sweep := services.NewReminderService(store, mailer, locker)

	result, err := sweep.Sweep(context.Background(), time.Now())
	if errors.Is(err, services.ErrSweepLocked) {
		log.Println("Another sweep is already running, nothing to do.")
		return
	}

	for _, sweepErr := range result.Errors {
		log.Printf("Reservation %d: %v", sweepErr.ReservationID, sweepErr.Err)
	}
	log.Printf("Reminder sweep: %d candidates, %d sent, %d failed", result.Candidates, result.Sent, result.Failed)

	if err != nil {
		os.Exit(1)
	}
}
