package api

import (
	"time"

	"plugintree/internal/ledger"
	"plugintree/pkg/plugin"
)

// PluginView 是插件在接口上的表示。
type PluginView struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Module     string   `json:"module"`
	FullPath   []string `json:"full_path"`
	Manager    string   `json:"manager,omitempty"`
	Parent     string   `json:"parent,omitempty"`
	SubPlugins []string `json:"sub_plugins,omitempty"`
}

// AvailableView 汇总所有管理器可加载但尚未加载的插件。
type AvailableView struct {
	Names     []string   `json:"names"`
	FullPaths [][]string `json:"full_paths"`
}

// LedgerEntryView 是一条加载流水。
type LedgerEntryView struct {
	ID       string    `json:"id"`
	Action   string    `json:"action"`
	PluginID string    `json:"plugin_id"`
	Name     string    `json:"name"`
	Module   string    `json:"module"`
	Manager  string    `json:"manager,omitempty"`
	At       time.Time `json:"at"`
}

// ErrorResponse 是接口返回的错误结构。
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newPluginView(p *plugin.Plugin) PluginView {
	view := PluginView{
		ID:       p.ID(),
		Name:     p.Name(),
		Module:   p.ModuleID(),
		FullPath: p.FullPath(),
		Manager:  plugin.ManagerName(p.Manager()),
	}
	if parent := p.Parent(); parent != nil {
		view.Parent = parent.ID()
	}
	for _, child := range p.SubPlugins() {
		view.SubPlugins = append(view.SubPlugins, child.ID())
	}
	return view
}

func newLedgerEntryView(e ledger.Entry) LedgerEntryView {
	return LedgerEntryView{
		ID:       e.ID,
		Action:   string(e.Action),
		PluginID: e.PluginID,
		Name:     e.Name,
		Module:   e.Module,
		Manager:  e.Manager,
		At:       e.At,
	}
}
