package db

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DefaultPoolSize bounds both open and idle connections unless
// DB_POOL_SIZE overrides it.
const DefaultPoolSize = 25

func NewPSQLStorage() (*gorm.DB, error) {

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	connString := os.Getenv("DB_URL")

	db, err := gorm.Open(postgres.Open(connString), &gorm.Config{})

	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	poolSize := poolSizeFromEnv(os.Getenv("DB_POOL_SIZE"))
	sqlDB.SetMaxOpenConns(poolSize)
	sqlDB.SetMaxIdleConns(poolSize)

	return db, nil
}

// poolSizeFromEnv parses the configured pool size, falling back to the
// default on empty or nonsensical values.
func poolSizeFromEnv(raw string) int {
	if raw == "" {
		return DefaultPoolSize
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size <= 0 {
		log.Printf("Invalid DB_POOL_SIZE %q, using default %d", raw, DefaultPoolSize)
		return DefaultPoolSize
	}
	return size
}
