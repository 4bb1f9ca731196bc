package plugin

import (
	"context"
	"strings"
)

// ShortName derives a plugin name from a module identifier: the last
// dot-separated segment.
func ShortName(moduleID string) string {
	if idx := strings.LastIndexByte(moduleID, '.'); idx >= 0 {
		return moduleID[idx+1:]
	}
	return moduleID
}

// pathFor returns the full path a plugin named name loaded by manager would
// receive on ctx, without registering anything.
func (r *Registry) pathFor(ctx context.Context, name string, manager Manager) FullPath {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveFullPath(ctx, name, manager)
}

// resolveFullPath computes the path a plugin named name would receive if it
// were registered now on ctx. Callers must hold r.mu.
func (r *Registry) resolveFullPath(ctx context.Context, name string, manager Manager) FullPath {
	parents := chainFrom(ctx)
	if manager == nil {
		path := make(FullPath, 0, len(parents)+1)
		for _, parent := range parents {
			path = append(path, parent.name)
		}
		return append(path, name)
	}
	rank := r.rankLocked(manager)
	for i := len(parents) - 1; i >= 0; i-- {
		ancestor := parents[i]
		if r.rankLocked(ancestor.manager) < rank {
			path := make(FullPath, 0, len(ancestor.fullPath)+1)
			path = append(path, ancestor.fullPath...)
			return append(path, name)
		}
	}
	return FullPath{name}
}

// rankLocked returns the precedence index of m. Managers missing from the
// table, nil included, rank after every registered one.
func (r *Registry) rankLocked(m Manager) int {
	if idx, ok := r.indexLocked(m); ok {
		return idx
	}
	return len(r.managers)
}

func (r *Registry) indexLocked(m Manager) (int, bool) {
	if m == nil {
		return 0, false
	}
	for idx, registered := range r.managers {
		if registered == m {
			return idx, true
		}
	}
	return 0, false
}
