package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	xerrors "plugintree/internal/errors"
	"plugintree/pkg/logger"
)

// Loader is a manager that can load the plugins it advertises.
type Loader interface {
	Manager
	// Declares reports whether name, a short name or module identifier, is
	// one of the manager's plugins.
	Declares(name string) bool
	// LoadPlugin imports and registers the named plugin and runs its module.
	LoadPlugin(ctx context.Context, name string) (*Plugin, error)
}

// PluginManager loads a declared set of modules into a registry.
type PluginManager struct {
	name     string
	registry *Registry
	importer Importer
	modules  []string
	byName   map[string]string
	parent   FullPath
	logger   *slog.Logger
	onFail   []FailureHook
}

// FailureHook is invoked after a declared module failed to import or init.
type FailureHook func(ctx context.Context, moduleID string, err error)

// ManagerOption modifies the behaviour of a plugin manager instance.
type ManagerOption func(*PluginManager)

// WithImporter sets the importer used to resolve module identifiers. Shared
// objects discovered in the configured dirs are tried after it.
func WithImporter(imp Importer) ManagerOption {
	return func(m *PluginManager) {
		if imp != nil {
			m.importer = imp
		}
	}
}

// WithManagerLogger overrides the manager logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *PluginManager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithFailureHook registers a callback fired on every failed load.
func WithFailureHook(h FailureHook) ManagerOption {
	return func(m *PluginManager) {
		if h != nil {
			m.onFail = append(m.onFail, h)
		}
	}
}

// NewPluginManager constructs a manager from cfg and appends it to the
// registry's manager table; construction order is precedence order.
func NewPluginManager(ctx context.Context, reg *Registry, cfg ManagerConfig, opts ...ManagerOption) (*PluginManager, error) {
	if reg == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "registry cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid manager config")
	}
	m := &PluginManager{
		name:     cfg.Name,
		registry: reg,
		byName:   make(map[string]string),
		parent:   slices.Clone(FullPath(cfg.Parent)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.Named("manager")
	}
	if m.name != "" {
		m.logger = m.logger.With("manager", m.name)
	}
	for _, moduleID := range cfg.Plugins {
		m.declare(moduleID)
	}
	if len(cfg.Dirs) > 0 {
		found, err := Discover(ctx, cfg.Dirs...)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeImportFailure, err, "discover shared objects")
		}
		stems := make([]string, 0, len(found))
		for stem := range found {
			stems = append(stems, stem)
		}
		sort.Strings(stems)
		for _, stem := range stems {
			m.declare(stem)
		}
		m.importer = ChainImporter{m.importer, GoPluginImporter{Paths: found}}
		m.logger.Debug("shared objects discovered", "dirs", cfg.Dirs, "count", len(found))
	}
	if m.importer == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "manager needs an importer or plugin dirs")
	}
	reg.RegisterManager(m)
	return m, nil
}

func (m *PluginManager) declare(moduleID string) {
	name := ShortName(moduleID)
	if _, exists := m.byName[name]; exists {
		return
	}
	m.byName[name] = moduleID
	m.modules = append(m.modules, moduleID)
}

// Name returns the configured manager name.
func (m *PluginManager) Name() string { return m.name }

// Modules returns the declared module identifiers in load order.
func (m *PluginManager) Modules() []string { return slices.Clone(m.modules) }

// Declares implements Loader.
func (m *PluginManager) Declares(name string) bool {
	_, ok := m.resolve(name)
	return ok
}

func (m *PluginManager) resolve(name string) (string, bool) {
	if moduleID, ok := m.byName[name]; ok {
		return moduleID, true
	}
	if moduleID, ok := m.byName[ShortName(name)]; ok && moduleID == name {
		return moduleID, true
	}
	return "", false
}

// AvailablePlugins implements Manager. Declared plugins not yet registered
// through this manager are advertised by name, or by full path when the
// manager sits under a parent plugin.
func (m *PluginManager) AvailablePlugins() []Available {
	loaded := make(map[string]struct{})
	for _, p := range m.registry.pluginsOf(m) {
		loaded[p.moduleID] = struct{}{}
	}
	var out []Available
	for _, moduleID := range m.modules {
		if _, ok := loaded[moduleID]; ok {
			continue
		}
		name := ShortName(moduleID)
		if len(m.parent) == 0 {
			out = append(out, NameEntry(name))
			continue
		}
		out = append(out, PathEntry(append(slices.Clone(m.parent), name)...))
	}
	return out
}

// LoadPlugin implements Loader. A plugin already loaded through this manager
// is returned unchanged. When the module fails to initialise, the plugin and
// everything registered beneath it are removed again.
func (m *PluginManager) LoadPlugin(ctx context.Context, name string) (*Plugin, error) {
	moduleID, ok := m.resolve(name)
	if !ok {
		return nil, xerrors.New(xerrors.CodePluginNotFound,
			fmt.Sprintf("plugin %s is not declared by manager %s", name, m.name))
	}
	for _, p := range m.registry.pluginsOf(m) {
		if p.moduleID == moduleID {
			return p, nil
		}
	}

	ctx, err := m.scope(ctx, ShortName(moduleID))
	if err != nil {
		return nil, err
	}
	module, err := m.importer.Import(ctx, moduleID)
	if err != nil {
		m.logger.Error("module import failed", "module", moduleID, "error", err)
		err = xerrors.Wrap(xerrors.CodeImportFailure, err,
			fmt.Sprintf("import module %s", moduleID), xerrors.WithMetadata("module", moduleID))
		m.fail(ctx, moduleID, err)
		return nil, err
	}
	p, err := m.registry.Register(ctx, moduleID, module, m)
	if err != nil {
		m.logger.Error("plugin registration failed", "module", moduleID, "error", err)
		m.fail(ctx, moduleID, err)
		return nil, err
	}
	if err := runInit(WithLoading(WithRegistry(ctx, m.registry), p), module); err != nil {
		if revertErr := m.registry.UnregisterTree(p); revertErr != nil {
			err = errors.Join(err, revertErr)
		}
		m.logger.Error("plugin init failed, reverted", "id", p.ID(), "error", err)
		err = xerrors.Wrap(xerrors.CodeInitFailure, err,
			fmt.Sprintf("init plugin %s", p.ID()),
			xerrors.WithMetadata("module", moduleID), xerrors.WithMetadata("plugin_id", p.ID()))
		m.fail(ctx, moduleID, err)
		return nil, err
	}
	m.logger.Info("plugin loaded", "id", p.ID(), "module", moduleID)
	return p, nil
}

// LoadAll loads every declared plugin in declaration order. Failures do not
// stop the remaining loads; they are joined into the returned error. Under a
// parent that is not loaded yet nothing is loaded and the plugins stay
// advertised.
func (m *PluginManager) LoadAll(ctx context.Context) ([]*Plugin, error) {
	var (
		loaded []*Plugin
		errs   []error
	)
	for _, moduleID := range m.modules {
		if _, err := m.scope(ctx, ShortName(moduleID)); err != nil {
			m.logger.Debug("parent not loaded, deferring", "module", moduleID, "parent", m.parent.String())
			continue
		}
		p, err := m.LoadPlugin(ctx, moduleID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		loaded = append(loaded, p)
	}
	return loaded, errors.Join(errs...)
}

// scope returns the context a plugin called name must be loaded on so that it
// lands under the configured parent. When ctx already nests it there, ctx is
// returned; otherwise a loaded parent is pushed onto the chain. It fails with
// PLUGIN_NOT_FOUND when the advertised path cannot be produced.
func (m *PluginManager) scope(ctx context.Context, name string) (context.Context, error) {
	if len(m.parent) == 0 {
		return ctx, nil
	}
	if m.registry.pathFor(ctx, name, m).Parent().Equal(m.parent) {
		return ctx, nil
	}
	if parent := m.registry.PluginByPath(m.parent); parent != nil {
		scoped := WithLoading(ctx, parent)
		if m.registry.pathFor(scoped, name, m).Parent().Equal(m.parent) {
			return scoped, nil
		}
	}
	return nil, xerrors.New(xerrors.CodePluginNotFound,
		fmt.Sprintf("plugin %s can only be loaded under %s", name, m.parent),
		xerrors.WithMetadata("parent", m.parent.String()))
}

func (m *PluginManager) fail(ctx context.Context, moduleID string, err error) {
	for _, h := range m.onFail {
		h(ctx, moduleID, err)
	}
}

func runInit(ctx context.Context, module Module) (err error) {
	if module == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("module panicked: %v", rec)
		}
	}()
	return module.Init(ctx)
}
