package plugin

import (
	"context"
	"errors"
	"fmt"
	goplugin "plugin"
	"sync"
)

// Importer resolves a module identifier into a live module.
type Importer interface {
	Import(ctx context.Context, moduleID string) (Module, error)
}

// ErrModuleNotFound is returned by importers that do not know a module.
var ErrModuleNotFound = errors.New("module not found")

// BuiltinImporter serves modules compiled into the host binary.
type BuiltinImporter struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewBuiltinImporter returns an importer serving the given modules.
func NewBuiltinImporter(modules map[string]Module) *BuiltinImporter {
	imp := &BuiltinImporter{modules: make(map[string]Module, len(modules))}
	for id, m := range modules {
		imp.modules[id] = m
	}
	return imp
}

// Provide makes a module importable under moduleID, replacing any previous one.
func (b *BuiltinImporter) Provide(moduleID string, m Module) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.modules == nil {
		b.modules = make(map[string]Module)
	}
	if m == nil {
		m = NopModule
	}
	b.modules[moduleID] = m
}

// Import implements Importer.
func (b *BuiltinImporter) Import(_ context.Context, moduleID string) (Module, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.modules[moduleID]
	if !ok {
		return nil, fmt.Errorf("builtin %s: %w", moduleID, ErrModuleNotFound)
	}
	return m, nil
}

// GoPluginImporter uses the Go standard library plugin mechanism to open
// shared objects. Paths maps module identifiers to .so files.
type GoPluginImporter struct {
	Paths map[string]string
}

// Import opens the shared object and searches for a `Module` symbol
// implementing the Module interface.
func (g GoPluginImporter) Import(_ context.Context, moduleID string) (Module, error) {
	path, ok := g.Paths[moduleID]
	if !ok || path == "" {
		return nil, fmt.Errorf("shared object for %s: %w", moduleID, ErrModuleNotFound)
	}
	so, err := goplugin.Open(path)
	if err != nil {
		return nil, err
	}
	symbol, err := so.Lookup("Module")
	if err != nil {
		return nil, err
	}
	switch m := symbol.(type) {
	case Module:
		return m, nil
	case *Module:
		if m == nil || *m == nil {
			return nil, errors.New("module symbol is nil")
		}
		return *m, nil
	case func() Module:
		return m(), nil
	default:
		return nil, errors.New("module symbol must implement plugin.Module")
	}
}

// ChainImporter tries each importer in order and returns the first module
// found. Errors other than ErrModuleNotFound stop the search.
type ChainImporter []Importer

// Import implements Importer.
func (c ChainImporter) Import(ctx context.Context, moduleID string) (Module, error) {
	for _, imp := range c {
		if imp == nil {
			continue
		}
		m, err := imp.Import(ctx, moduleID)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, ErrModuleNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %w", moduleID, ErrModuleNotFound)
}
