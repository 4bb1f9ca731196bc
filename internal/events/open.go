package events

import (
	"context"
	"fmt"

	"plugintree/internal/config"
)

// Open 根据配置创建事件总线；driver 为 none 时返回 nil。
func Open(ctx context.Context, cfg config.EventsConfig) (Bus, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryBus(0), nil
	case "none":
		return nil, nil
	case "redis":
		bus, err := NewRedisBus(ctx, RedisConfig{
			Address:  cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			return nil, err
		}
		return bus, nil
	case "rabbitmq":
		bus, err := NewRabbitMQBus(RabbitMQConfig{URL: cfg.RabbitMQ.URL, Queue: cfg.RabbitMQ.Queue, Durable: true})
		if err != nil {
			return nil, err
		}
		return bus, nil
	default:
		return nil, fmt.Errorf("未知的事件驱动: %s", cfg.Driver)
	}
}
