package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	xerrors "plugintree/internal/errors"
	"plugintree/pkg/plugin"
)

// Action 表示流水记录的类型。
type Action string

const (
	// ActionRegister 表示插件被注册。
	ActionRegister Action = "register"
	// ActionUnregister 表示插件被移除。
	ActionUnregister Action = "unregister"
)

// IsValidAction 判断动作是否受支持。
func IsValidAction(action Action) bool {
	switch action {
	case ActionRegister, ActionUnregister:
		return true
	default:
		return false
	}
}

// Entry 是一条加载流水。
type Entry struct {
	ID       string    `json:"id"`
	Action   Action    `json:"action"`
	PluginID string    `json:"plugin_id"`
	Name     string    `json:"name"`
	Module   string    `json:"module"`
	Manager  string    `json:"manager,omitempty"`
	At       time.Time `json:"at"`
}

// NewEntry 根据插件快照生成流水记录。
func NewEntry(action Action, p *plugin.Plugin) Entry {
	return Entry{
		ID:       uuid.NewString(),
		Action:   action,
		PluginID: p.ID(),
		Name:     p.Name(),
		Module:   p.ModuleID(),
		Manager:  plugin.ManagerName(p.Manager()),
		At:       time.Now().UTC(),
	}
}

func (e Entry) validate() error {
	if e.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "流水 ID 不能为空")
	}
	if !IsValidAction(e.Action) {
		return xerrors.New(xerrors.CodeInvalidArgument, "未知的流水动作: "+string(e.Action))
	}
	if e.PluginID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "插件 ID 不能为空")
	}
	return nil
}

// Store 定义流水的持久化接口。
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, opts ...ListOption) ([]Entry, error)
	Close() error
}

// ErrEntryConflict 表示流水 ID 已存在。
var ErrEntryConflict = xerrors.New(xerrors.CodeStorageFailure, "流水记录已存在")
