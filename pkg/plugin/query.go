package plugin

import (
	"slices"
	"sort"
	"strings"
)

// Plugin returns the plugin most recently registered under the short name.
func (r *Registry) Plugin(name string) *Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// PluginByPath returns the plugin registered at the full path.
func (r *Registry) PluginByPath(path FullPath) *Plugin {
	if len(path) == 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byPath[path.key()]
}

// Lookup resolves an advertised entry against the loaded plugins.
func (r *Registry) Lookup(entry Available) *Plugin {
	switch entry.Kind() {
	case KindName:
		name, _ := entry.Name()
		return r.Plugin(name)
	case KindFullPath:
		path, _ := entry.FullPath()
		return r.PluginByPath(path)
	default:
		return nil
	}
}

// PluginByModule returns the plugin owning moduleID. A submodule belongs to
// its nearest registered ancestor module.
func (r *Registry) PluginByModule(moduleID string) *Plugin {
	r.mu.RLock()
	loaded := make(map[string]*Plugin, len(r.byPath))
	for _, p := range r.byPath {
		loaded[p.moduleID] = p
	}
	r.mu.RUnlock()

	for moduleID != "" {
		if p, ok := loaded[moduleID]; ok {
			return p
		}
		idx := strings.LastIndexByte(moduleID, '.')
		if idx < 0 {
			break
		}
		moduleID = moduleID[:idx]
	}
	return nil
}

// LoadedPlugins returns every registered plugin once, ordered by ID.
func (r *Registry) LoadedPlugins() []*Plugin {
	r.mu.RLock()
	out := make([]*Plugin, 0, len(r.byPath))
	for _, p := range r.byPath {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// AvailablePluginNames returns the union of the short names advertised by all managers.
func (r *Registry) AvailablePluginNames() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, entry := range r.availableEntries() {
		name, ok := entry.Name()
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AvailablePluginFullPaths returns the union of the full paths advertised by all managers.
func (r *Registry) AvailablePluginFullPaths() []FullPath {
	seen := make(map[string]struct{})
	var out []FullPath
	for _, entry := range r.availableEntries() {
		path, ok := entry.FullPath()
		if !ok {
			continue
		}
		if _, dup := seen[path.key()]; dup {
			continue
		}
		seen[path.key()] = struct{}{}
		out = append(out, path)
	}
	sort.Slice(out, func(i, j int) bool { return slices.Compare(out[i], out[j]) < 0 })
	return out
}

// availableEntries queries managers outside the registry lock, since managers
// typically consult the registry to work out what is still unloaded.
func (r *Registry) availableEntries() []Available {
	var entries []Available
	for _, m := range r.Managers() {
		entries = append(entries, m.AvailablePlugins()...)
	}
	return entries
}

// pluginsOf returns the plugins loaded through m.
func (r *Registry) pluginsOf(m Manager) []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Plugin
	for _, p := range r.byPath {
		if p.manager == m {
			out = append(out, p)
		}
	}
	return out
}
