// Package app builds the infrastructure shared by the binaries.
package app

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/mq"
	"github.com/hackgods/clinic-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

// Sender talks to the Evolution API when an instance is configured and only
// logs otherwise.
func Sender(cfg config.Config, logger *slog.Logger) notify.Sender {
	if cfg.EvolutionURL == "" || cfg.EvolutionInstance == "" {
		logger.Warn("whatsapp transport not configured, messages will only be logged")
		return notify.LogSender{Logger: logger}
	}
	return notify.NewEvolutionClient(notify.EvolutionConfig{
		BaseURL:  cfg.EvolutionURL,
		Instance: cfg.EvolutionInstance,
		APIKey:   cfg.EvolutionAPIKey,
		Timeout:  cfg.NotifyTimeout,
	})
}

// Publisher connects to RabbitMQ when AMQP_URL is set. The returned close
// func is always safe to call.
func Publisher(cfg config.Config, logger *slog.Logger) (mq.Publisher, func()) {
	if cfg.AMQPURL == "" {
		return mq.Noop{}, func() {}
	}
	p, err := mq.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Warn("amqp unavailable, booking events disabled", "error", err)
		return mq.Noop{}, func() {}
	}
	logger.Info("connected to RabbitMQ", "exchange", cfg.AMQPExchange)
	return p, func() {
		if err := p.Close(); err != nil {
			logger.Warn("error closing amqp", "error", err)
		}
	}
}

// Locker prefers Redis and falls back to an in-process lock, which is only
// correct while a single worker runs.
func Locker(ctx context.Context, cfg config.Config, logger *slog.Logger) (redisclient.Locker, *redis.Client) {
	rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Warn("redis unavailable, using in-process reminder lock", "error", err)
		return redisclient.NewLocalLocker(), nil
	}
	logger.Info("connected to Redis", "addr", cfg.RedisAddr)
	return redisclient.NewRedisLocker(rdb, cfg.LockTTL), rdb
}
