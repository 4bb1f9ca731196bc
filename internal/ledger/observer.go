package ledger

import (
	"context"
	"log/slog"
	"time"

	"plugintree/pkg/logger"
	"plugintree/pkg/plugin"
)

// Recorder 将注册表的变更写入流水存储。
type Recorder struct {
	store   Store
	timeout time.Duration
	logger  *slog.Logger
}

// NewRecorder 创建 Recorder，timeout <= 0 时使用 2 秒。
func NewRecorder(store Store, timeout time.Duration, l *slog.Logger) *Recorder {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if l == nil {
		l = logger.Named("ledger")
	}
	return &Recorder{store: store, timeout: timeout, logger: l}
}

// PluginRegistered 实现 plugin.Observer。
func (r *Recorder) PluginRegistered(p *plugin.Plugin) {
	r.record(NewEntry(ActionRegister, p))
}

// PluginUnregistered 实现 plugin.Observer。
func (r *Recorder) PluginUnregistered(p *plugin.Plugin) {
	r.record(NewEntry(ActionUnregister, p))
}

func (r *Recorder) record(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.Append(ctx, entry); err != nil {
		r.logger.Error("ledger append failed", "id", entry.PluginID, "action", entry.Action, "error", err)
	}
}
