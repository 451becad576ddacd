package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDB connection wrapper
type RedisDB struct {
	Client *redis.Client
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int           // Redis database number (0-15)
	PoolSize int           // Connection pool size
	Timeout  time.Duration // Command timeout
}

// NewRedisDB creates a new Redis client
func NewRedisDB(config *RedisConfig) (*RedisDB, error) {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDB{Client: client}, nil
}

// Close closes the Redis connection
func (db *RedisDB) Close() error {
	return db.Client.Close()
}

// Ping tests the Redis connection
func (db *RedisDB) Ping(ctx context.Context) error {
	return db.Client.Ping(ctx).Err()
}
