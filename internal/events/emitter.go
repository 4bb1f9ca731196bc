package events

import (
	"context"
	"log/slog"
	"time"

	xerrors "plugintree/internal/errors"
	"plugintree/pkg/logger"
	"plugintree/pkg/plugin"
)

// Emitter 实现 plugin.Observer，把注册表变更发布到总线。
type Emitter struct {
	publisher Publisher
	timeout   time.Duration
	logger    *slog.Logger
}

// NewEmitter 创建 Emitter，timeout <= 0 时使用 2 秒。
func NewEmitter(publisher Publisher, timeout time.Duration, l *slog.Logger) *Emitter {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if l == nil {
		l = logger.Named("events")
	}
	return &Emitter{publisher: publisher, timeout: timeout, logger: l}
}

// PluginRegistered 实现 plugin.Observer。
func (e *Emitter) PluginRegistered(p *plugin.Plugin) {
	e.emit(NewEvent(TypeRegistered, p))
}

// PluginUnregistered 实现 plugin.Observer。
func (e *Emitter) PluginUnregistered(p *plugin.Plugin) {
	e.emit(NewEvent(TypeUnregistered, p))
}

func (e *Emitter) emit(evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	if err := e.publisher.Publish(ctx, evt); err != nil {
		err = xerrors.Wrap(xerrors.CodePublishFailure, err, "发布注册表事件失败",
			xerrors.WithMetadata("plugin", evt.PluginID))
		e.logger.Warn("event publish failed", "id", evt.PluginID, "type", evt.Type, "error", err)
	}
}
