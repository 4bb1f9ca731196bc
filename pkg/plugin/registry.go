package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	xerrors "plugintree/internal/errors"
	"plugintree/pkg/logger"
)

var (
	// ErrDuplicatePlugin matches registrations whose full path is already taken.
	ErrDuplicatePlugin = xerrors.New(xerrors.CodeDuplicatePlugin, "")
	// ErrPluginNotFound matches removals of plugins that are not registered.
	ErrPluginNotFound = xerrors.New(xerrors.CodePluginNotFound, "")
)

// Registry indexes loaded plugins by short name and by full path, and keeps
// the ordered table of managers.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]*Plugin
	byPath   map[string]*Plugin
	managers []Manager
	seq      uint64

	logger    *slog.Logger
	observers []Observer
}

// Option modifies the behaviour of a registry instance.
type Option func(*Registry)

// WithLogger overrides the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver subscribes an observer to registry mutations.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// NewRegistry constructs an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byName: make(map[string]*Plugin),
		byPath: make(map[string]*Plugin),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Named("registry")
	}
	return r
}

// RegisterManager appends m to the manager table. Earlier managers outrank
// later ones. Registering the same manager twice keeps its first position.
func (r *Registry) RegisterManager(m Manager) {
	if m == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.indexLocked(m); ok {
		return
	}
	r.managers = append(r.managers, m)
	r.logger.Debug("manager registered", "index", len(r.managers)-1)
}

// PrecedenceIndex returns the position of m in the manager table.
func (r *Registry) PrecedenceIndex(m Manager) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexLocked(m)
}

// Managers returns the manager table in precedence order.
func (r *Registry) Managers() []Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.managers)
}

// Register records a freshly imported module as a plugin. The full path is
// derived from the load chain carried by ctx and the manager precedence.
// Callers push the returned plugin onto ctx with WithLoading before starting
// any nested loads.
func (r *Registry) Register(ctx context.Context, moduleID string, module Module, manager Manager) (*Plugin, error) {
	if moduleID == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "module identifier cannot be empty")
	}
	name := ShortName(moduleID)
	if name == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("module identifier %q yields an empty plugin name", moduleID))
	}

	r.mu.Lock()
	path := r.resolveFullPath(ctx, name, manager)
	key := path.key()
	if _, exists := r.byPath[key]; exists {
		r.mu.Unlock()
		return nil, xerrors.New(xerrors.CodeDuplicatePlugin,
			fmt.Sprintf("plugin %s already exists, check your plugin name", path),
			xerrors.WithMetadata("fullpath", path.String()),
			xerrors.WithMetadata("module", moduleID))
	}
	var parent *Plugin
	if len(path) > 1 {
		parent = r.byPath[path[:len(path)-1].key()]
	}
	r.seq++
	p := &Plugin{
		name:     name,
		moduleID: moduleID,
		module:   module,
		manager:  manager,
		fullPath: path,
		parent:   parent,
		seq:      r.seq,
	}
	r.byName[name] = p
	r.byPath[key] = p
	if parent != nil {
		parent.addSub(p)
	}
	r.mu.Unlock()

	r.logger.Info("plugin registered", "id", p.ID(), "module", moduleID)
	logger.Audit().Info("plugin registered", "id", p.ID(), "module", moduleID)
	for _, o := range r.observers {
		o.PluginRegistered(p)
	}
	return p, nil
}

// Unregister removes p from both indexes and from its parent's sub plugins.
// Descendants are left in place; remove them first or use UnregisterTree.
func (r *Registry) Unregister(p *Plugin) error {
	r.mu.Lock()
	if err := r.checkRegisteredLocked(p); err != nil {
		r.mu.Unlock()
		return err
	}
	r.removeLocked(p)
	r.mu.Unlock()

	r.notifyRemoved(p)
	return nil
}

// UnregisterTree removes p and every descendant, deepest first, as one
// operation. Nothing is removed if p is not registered.
func (r *Registry) UnregisterTree(p *Plugin) error {
	r.mu.Lock()
	if err := r.checkRegisteredLocked(p); err != nil {
		r.mu.Unlock()
		return err
	}
	var removed []*Plugin
	var walk func(node *Plugin)
	walk = func(node *Plugin) {
		for _, child := range node.SubPlugins() {
			walk(child)
		}
		if current, ok := r.byPath[node.fullPath.key()]; ok && current == node {
			r.removeLocked(node)
			removed = append(removed, node)
		}
	}
	walk(p)
	r.mu.Unlock()

	for _, node := range removed {
		r.notifyRemoved(node)
	}
	return nil
}

func (r *Registry) checkRegisteredLocked(p *Plugin) error {
	if p == nil {
		return xerrors.New(xerrors.CodePluginNotFound, "plugin not found")
	}
	if current, ok := r.byPath[p.fullPath.key()]; !ok || current != p {
		return xerrors.New(xerrors.CodePluginNotFound,
			fmt.Sprintf("plugin %s not found", p.ID()),
			xerrors.WithMetadata("fullpath", p.ID()))
	}
	return nil
}

// removeLocked drops p from both indexes. When the name slot pointed at p it
// is handed back to the most recently registered plugin still sharing the name.
func (r *Registry) removeLocked(p *Plugin) {
	delete(r.byPath, p.fullPath.key())
	if r.byName[p.name] == p {
		delete(r.byName, p.name)
		var heir *Plugin
		for _, candidate := range r.byPath {
			if candidate.name == p.name && (heir == nil || candidate.seq > heir.seq) {
				heir = candidate
			}
		}
		if heir != nil {
			r.byName[p.name] = heir
		}
	}
	if p.parent != nil {
		p.parent.removeSub(p)
	}
}

func (r *Registry) notifyRemoved(p *Plugin) {
	r.logger.Info("plugin unregistered", "id", p.ID(), "module", p.moduleID)
	logger.Audit().Info("plugin unregistered", "id", p.ID(), "module", p.moduleID)
	for _, o := range r.observers {
		o.PluginUnregistered(p)
	}
}
