package plugin

import (
	"context"
	"fmt"

	xerrors "plugintree/internal/errors"
)

// Require returns the plugin called name, loading it first when needed.
// name may be a short name or a module identifier. Managers are asked in
// precedence order; called from a module's Init, the loaded plugin nests
// according to the load chain in ctx.
func (r *Registry) Require(ctx context.Context, name string) (*Plugin, error) {
	if p := r.Plugin(ShortName(name)); p != nil {
		return p, nil
	}
	for _, m := range r.Managers() {
		loader, ok := m.(Loader)
		if !ok || !loader.Declares(name) {
			continue
		}
		return loader.LoadPlugin(ctx, name)
	}
	return nil, xerrors.New(xerrors.CodePluginNotFound,
		fmt.Sprintf("cannot load plugin %s: no manager declares it", name))
}

// Require loads name through the registry attached to ctx. Module bodies use
// it to pull in the plugins they depend on.
func Require(ctx context.Context, name string) (*Plugin, error) {
	reg := RegistryFrom(ctx)
	if reg == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "no registry attached to context")
	}
	return reg.Require(ctx, name)
}
