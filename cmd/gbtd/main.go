package main

import (
	"log"
	"os"
	"strconv"

	"github.com/rawblock/gbt-engine/internal/api"
	"github.com/rawblock/gbt-engine/internal/mempool"
	"github.com/rawblock/gbt-engine/internal/store"
)

func main() {
	log.Println("Starting gbt-engine block template service...")

	var db *store.PostgresStore
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		conn, err := store.Connect(dbURL)
		if err != nil {
			log.Printf("Warning: failed to connect to PostgreSQL, continuing without run persistence. Error: %v", err)
		} else {
			defer conn.Close()
			if err := conn.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			} else {
				db = conn
			}
		}
	} else {
		log.Println("DATABASE_URL not set — running without run persistence")
	}

	maxBlockWeight := getEnvUint32("MAX_BLOCK_WEIGHT", 4_000_000)
	maxBlocks := getEnvUint32("MAX_BLOCKS", 8)

	handle := mempool.New(maxBlockWeight, maxBlocks)

	wsHub := api.NewHub()
	go wsHub.Run()

	limiter := api.NewRateLimiter(30, 10)

	apiHandler := api.NewAPIHandler(handle, wsHub, db)
	r := api.SetupRouter(apiHandler, limiter)

	port := getEnvOrDefault("PORT", "5340")

	log.Printf("gbt-engine listening on :%s (maxBlockWeight=%d maxBlocks=%d)\n", port, maxBlockWeight, maxBlocks)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvUint32(key string, fallback uint32) uint32 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default %d", key, val, fallback)
		return fallback
	}
	return uint32(parsed)
}
