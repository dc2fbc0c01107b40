package events

import (
	"context"
	"fmt"

	"LottoChain/internal/config"
)

// New 根据配置创建发布器。
func New(ctx context.Context, cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(int(cfg.Redis.HistoryLimit)), nil
	case "none":
		return Nop{}, nil
	case "redis":
		return NewRedis(ctx, RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			Channel:      cfg.Redis.Channel,
			HistoryKey:   cfg.Redis.HistoryKey,
			HistoryLimit: cfg.Redis.HistoryLimit,
		})
	case "rabbitmq":
		return NewRabbitMQ(RabbitMQConfig{
			URL:      cfg.RabbitMQ.URL,
			Exchange: cfg.RabbitMQ.Exchange,
			Durable:  cfg.RabbitMQ.Durable,
		})
	default:
		return nil, fmt.Errorf("未知的 events 驱动: %s", cfg.Driver)
	}
}
