// Package redis подключает Redis для хранения ожидаемого ввода пользователей.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"soliumcoin.org/airdrop-bot/internal/config"
)

// Connect создаёт клиент и проверяет соединение.
func Connect(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis %s: %w", cfg.RedisAddr, err)
	}

	log.WithField("addr", cfg.RedisAddr).Info("Подключено к Redis")
	return rdb, nil
}
