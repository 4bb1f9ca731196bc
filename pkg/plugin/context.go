package plugin

import (
	"context"
	"slices"
)

type (
	chainKey    struct{}
	registryKey struct{}
)

// WithLoading returns a context whose load chain ends with p. Nested loads
// started with the returned context are attributed to p; dropping the
// context ends the nesting.
func WithLoading(ctx context.Context, p *Plugin) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if p == nil {
		return ctx
	}
	parents := chainFrom(ctx)
	chain := make([]*Plugin, len(parents), len(parents)+1)
	copy(chain, parents)
	return context.WithValue(ctx, chainKey{}, append(chain, p))
}

// LoadChain returns the plugins currently being loaded on ctx, outermost first.
func LoadChain(ctx context.Context) []*Plugin {
	return slices.Clone(chainFrom(ctx))
}

// CurrentPlugin returns the innermost plugin being loaded on ctx, or nil.
func CurrentPlugin(ctx context.Context) *Plugin {
	chain := chainFrom(ctx)
	if len(chain) == 0 {
		return nil
	}
	return chain[len(chain)-1]
}

func chainFrom(ctx context.Context) []*Plugin {
	if ctx == nil {
		return nil
	}
	chain, _ := ctx.Value(chainKey{}).([]*Plugin)
	return chain
}

// WithRegistry attaches reg to ctx so module bodies can call Require.
func WithRegistry(ctx context.Context, reg *Registry) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, registryKey{}, reg)
}

// RegistryFrom returns the registry attached to ctx, or nil.
func RegistryFrom(ctx context.Context) *Registry {
	if ctx == nil {
		return nil
	}
	reg, _ := ctx.Value(registryKey{}).(*Registry)
	return reg
}
