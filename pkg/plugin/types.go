package plugin

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// FullPath is the sequence of ancestor plugin names followed by the plugin's own name.
type FullPath []string

// String joins the path segments with ":", the form used as a plugin ID.
func (p FullPath) String() string {
	return strings.Join(p, ":")
}

// Equal reports whether both paths hold the same segments.
func (p FullPath) Equal(other FullPath) bool {
	return slices.Equal(p, other)
}

// Parent returns the path one level up, or nil for a top-level path.
func (p FullPath) Parent() FullPath {
	if len(p) <= 1 {
		return nil
	}
	return slices.Clone(p[:len(p)-1])
}

// ParseFullPath splits a ":" separated plugin ID back into a path.
func ParseFullPath(id string) FullPath {
	if id == "" {
		return nil
	}
	return strings.Split(id, ":")
}

// key is the map key for a path; segments never contain NUL.
func (p FullPath) key() string {
	return strings.Join(p, "\x00")
}

// Plugin is the registry record of a loaded module.
type Plugin struct {
	name     string
	moduleID string
	module   Module
	manager  Manager
	fullPath FullPath
	parent   *Plugin
	seq      uint64

	mu  sync.RWMutex
	sub []*Plugin
}

// Name returns the short name derived from the module identifier.
func (p *Plugin) Name() string { return p.name }

// ModuleID returns the identifier of the module that defines the plugin.
func (p *Plugin) ModuleID() string { return p.moduleID }

// Module returns the live module handle. The importer owns it.
func (p *Plugin) Module() Module { return p.module }

// Manager returns the manager that loaded the plugin, or nil.
func (p *Plugin) Manager() Manager { return p.manager }

// FullPath returns a copy of the plugin's hierarchical path.
func (p *Plugin) FullPath() FullPath { return slices.Clone(p.fullPath) }

// ID returns the full path joined with ":".
func (p *Plugin) ID() string { return p.fullPath.String() }

// Parent returns the plugin one level up in the full path, or nil. A plugin
// registered without a manager takes its path from the load chain names, so
// when that prefix is not itself a registered path (for example a:b with b
// loaded top level) the path has several segments and Parent is still nil.
func (p *Plugin) Parent() *Plugin { return p.parent }

// SubPlugins returns the direct children in registration order.
func (p *Plugin) SubPlugins() []*Plugin {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.sub)
}

// HasSubPlugin reports whether child is currently recorded as a direct child.
func (p *Plugin) HasSubPlugin(child *Plugin) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Contains(p.sub, child)
}

func (p *Plugin) addSub(child *Plugin) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sub = append(p.sub, child)
}

func (p *Plugin) removeSub(child *Plugin) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx := slices.Index(p.sub, child); idx >= 0 {
		p.sub = slices.Delete(p.sub, idx, idx+1)
	}
}

// String implements fmt.Stringer.
func (p *Plugin) String() string {
	if p == nil {
		return "<nil>"
	}
	return "Plugin(" + p.ID() + ", module=" + p.moduleID + ")"
}

// AvailableKind discriminates the two shapes an advertised plugin can take.
type AvailableKind int

const (
	// KindName entries carry a short plugin name.
	KindName AvailableKind = iota + 1
	// KindFullPath entries carry a complete hierarchical path.
	KindFullPath
)

// Available is an entry a manager advertises as loadable: either a short name
// or a full path, never both.
type Available struct {
	kind AvailableKind
	name string
	path FullPath
}

// NameEntry builds an Available carrying a short name.
func NameEntry(name string) Available {
	return Available{kind: KindName, name: name}
}

// PathEntry builds an Available carrying a full path.
func PathEntry(path ...string) Available {
	return Available{kind: KindFullPath, path: slices.Clone(FullPath(path))}
}

// Kind reports which variant the entry holds.
func (a Available) Kind() AvailableKind { return a.kind }

// Name returns the short name when the entry is a KindName entry.
func (a Available) Name() (string, bool) {
	return a.name, a.kind == KindName
}

// FullPath returns the path when the entry is a KindFullPath entry.
func (a Available) FullPath() (FullPath, bool) {
	if a.kind != KindFullPath {
		return nil, false
	}
	return slices.Clone(a.path), true
}

// String implements fmt.Stringer.
func (a Available) String() string {
	switch a.kind {
	case KindName:
		return a.name
	case KindFullPath:
		return a.path.String()
	default:
		return ""
	}
}

// Manager is a source of loadable plugins. Its position in the registry's
// manager table decides precedence when nested loads span managers.
// Implementations are compared by identity and must be comparable; use a
// pointer receiver.
type Manager interface {
	// AvailablePlugins lists the plugins the manager could load but has not yet.
	AvailablePlugins() []Available
}

// ManagerName returns the label of m: its Name method when it has one, the
// dynamic type otherwise, and "" for a nil manager.
func ManagerName(m Manager) string {
	if m == nil {
		return ""
	}
	if named, ok := m.(interface{ Name() string }); ok && named.Name() != "" {
		return named.Name()
	}
	return fmt.Sprintf("%T", m)
}

// Observer receives registry mutations after they have been applied.
type Observer interface {
	PluginRegistered(p *Plugin)
	PluginUnregistered(p *Plugin)
}
