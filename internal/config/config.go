package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string

	// Bidding
	DefaultBidWindow time.Duration
	NATSURL          string

	// Persistence
	StoreType           string
	MongoURI            string
	MongoDB             string
	MongoCollection     string
	FirestoreProjectID  string
	FirestoreCollection string

	// Collaborators
	PlannerURL string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Environment:         getEnv("ENVIRONMENT", "development"),
		DefaultBidWindow:    time.Duration(getEnvInt64("BID_WINDOW_MS", 2000)) * time.Millisecond,
		NATSURL:             getEnv("NATS_URL", "nats://localhost:4222"),
		StoreType:           getEnv("STORE_TYPE", "memory"),
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:             getEnv("MONGO_DB", "rmf"),
		MongoCollection:     getEnv("MONGO_COLLECTION_AUCTIONS", "auction_outcomes"),
		FirestoreProjectID:  getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreCollection: getEnv("FIRESTORE_COLLECTION_AUCTIONS", "auction_outcomes"),
		PlannerURL:          getEnv("PLANNER_URL", "http://localhost:8090"),
	}

	if cfg.DefaultBidWindow <= 0 {
		return nil, fmt.Errorf("BID_WINDOW_MS must be positive")
	}
	if cfg.Environment == "production" && cfg.StoreType == "firestore" && cfg.FirestoreProjectID == "" {
		return nil, fmt.Errorf("FIRESTORE_PROJECT_ID is required in production with firestore store")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
