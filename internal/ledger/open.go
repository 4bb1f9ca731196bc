package ledger

import (
	"context"
	"fmt"

	"plugintree/internal/config"
)

// Open 根据配置创建流水存储。
func Open(ctx context.Context, cfg config.LedgerConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(cfg.Capacity), nil
	case "mysql", "postgres", "sqlite":
		store, err := OpenSQLStore(ctx, cfg.Driver, cfg.DSN, PoolConfig{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("未知的流水存储驱动: %s", cfg.Driver)
	}
}
