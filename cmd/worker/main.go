package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatelog/internal/config"
	"gatelog/internal/identity"
	"gatelog/internal/ledger"
	"gatelog/internal/metrics"
	"gatelog/internal/queue"
	"gatelog/internal/resolve"
	"gatelog/internal/store"
)

// Worker consumes unknown-scan messages for targeted resolution and runs the
// full unresolved sweep on an interval, converging registered identities into
// ledger entries that were logged before registration.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "gatelog:scans")
	}

	ids := identity.NewRepository(db.Client)
	led := ledger.NewRepository(db.Client)
	resolver := resolve.NewService(ids, led, metrics.New())

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	log.Printf("worker started, sweep every %s", cfg.SweepInterval)
	for {
		select {
		case <-ctx.Done():
			log.Println("worker stopped")
			return

		case <-ticker.C:
			count, err := resolver.SweepUnresolved(ctx)
			if err != nil {
				log.Printf("sweep failed: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("sweep resolved %d regNos", count)
			}

		case msg, ok := <-messages:
			if !ok {
				log.Println("worker stopped")
				return
			}
			if msg.Type != queue.TypeUnknownScan {
				continue
			}
			regNo := string(msg.Body)
			resolved, err := resolver.ResolveRegNo(ctx, regNo)
			if err != nil {
				log.Printf("resolve %s failed: %v", regNo, err)
				continue
			}
			if resolved {
				log.Printf("resolved %s", regNo)
			}
		}
	}
}
