package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"plugintree/pkg/plugin"
)

// Type 区分事件种类。
type Type string

const (
	TypeRegistered   Type = "plugin.registered"
	TypeUnregistered Type = "plugin.unregistered"
)

// Event 是发布到消息总线上的注册表变更。
type Event struct {
	ID       string    `json:"id"`
	Type     Type      `json:"type"`
	PluginID string    `json:"plugin_id"`
	Name     string    `json:"name"`
	Module   string    `json:"module"`
	FullPath []string  `json:"full_path"`
	Manager  string    `json:"manager,omitempty"`
	At       time.Time `json:"at"`
}

// NewEvent 根据插件快照生成事件。
func NewEvent(typ Type, p *plugin.Plugin) Event {
	return Event{
		ID:       uuid.NewString(),
		Type:     typ,
		PluginID: p.ID(),
		Name:     p.Name(),
		Module:   p.ModuleID(),
		FullPath: p.FullPath(),
		Manager:  plugin.ManagerName(p.Manager()),
		At:       time.Now().UTC(),
	}
}

// Handler 处理来自消息总线的事件。
type Handler func(ctx context.Context, evt Event) error

// Publisher 负责向总线投递事件。
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Subscriber 负责从总线消费事件。
type Subscriber interface {
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}

// Bus 同时具备发布与订阅能力。
type Bus interface {
	Publisher
	Subscriber
}
