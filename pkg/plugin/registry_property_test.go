package plugin

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"pgregory.net/rapid"
)

// checkInvariants verifies the structural guarantees of the registry.
func checkInvariants(t *rapid.T, reg *Registry) {
	loaded := reg.LoadedPlugins()
	seen := make(map[string]*Plugin, len(loaded))
	latest := make(map[string]*Plugin)
	for _, p := range loaded {
		if prev, dup := seen[p.ID()]; dup {
			t.Fatalf("full path %s shared by %v and %v", p.ID(), prev, p)
		}
		seen[p.ID()] = p

		if got := reg.PluginByPath(p.FullPath()); got != p {
			t.Fatalf("full path lookup of %s returned %v", p.ID(), got)
		}
		if parent := p.Parent(); parent != nil {
			if !parent.FullPath().Equal(p.FullPath().Parent()) {
				t.Fatalf("parent of %s has path %s", p.ID(), parent.ID())
			}
			if !parent.HasSubPlugin(p) {
				t.Fatalf("%s missing from sub plugins of %s", p.ID(), parent.ID())
			}
		}
		for _, child := range p.SubPlugins() {
			if child.Parent() != p {
				t.Fatalf("sub plugin %s of %s points at another parent", child.ID(), p.ID())
			}
			if reg.PluginByPath(child.FullPath()) != child {
				t.Fatalf("sub plugin %s of %s is not registered", child.ID(), p.ID())
			}
		}
		if cur, ok := latest[p.Name()]; !ok || p.seq > cur.seq {
			latest[p.Name()] = p
		}
	}
	for name, want := range latest {
		if got := reg.Plugin(name); got != want {
			t.Fatalf("short name %s resolves to %v, want %v", name, got, want)
		}
	}
}

func TestRegistry_PropertyBased_Invariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reg := newTestRegistry()
		names := []string{"alpha", "beta", "gamma", "delta"}
		steps := rapid.IntRange(1, 60).Draw(t, "steps")

		for i := 0; i < steps; i++ {
			loaded := reg.LoadedPlugins()
			if len(loaded) > 0 && rapid.Bool().Draw(t, fmt.Sprintf("remove%d", i)) {
				var leaves []*Plugin
				for _, p := range loaded {
					if len(p.SubPlugins()) == 0 {
						leaves = append(leaves, p)
					}
				}
				victim := rapid.SampledFrom(leaves).Draw(t, fmt.Sprintf("victim%d", i))
				if err := reg.Unregister(victim); err != nil {
					t.Fatalf("unregister %s: %v", victim.ID(), err)
				}
				if reg.PluginByPath(victim.FullPath()) != nil {
					t.Fatalf("%s still reachable after removal", victim.ID())
				}
				checkInvariants(t, reg)
				continue
			}

			ctx := context.Background()
			if len(loaded) > 0 && rapid.Bool().Draw(t, fmt.Sprintf("nested%d", i)) {
				parent := rapid.SampledFrom(loaded).Draw(t, fmt.Sprintf("parent%d", i))
				ctx = loadingCtx(parent)
			}
			name := rapid.SampledFrom(names).Draw(t, fmt.Sprintf("name%d", i))
			moduleID := fmt.Sprintf("mod%d.%s", i, name)

			want := FullPath{}
			for _, p := range LoadChain(ctx) {
				want = append(want, p.Name())
			}
			want = append(want, name)
			taken := reg.PluginByPath(want) != nil

			p, err := reg.Register(ctx, moduleID, NopModule, nil)
			if taken {
				if err == nil {
					t.Fatalf("expected duplicate error for %s", want)
				}
				continue
			}
			if err != nil {
				t.Fatalf("register %s: %v", moduleID, err)
			}
			if !slices.Equal(p.FullPath(), want) {
				t.Fatalf("registered %s at %s, want %s", moduleID, p.ID(), want)
			}
			checkInvariants(t, reg)
		}
	})
}

func TestRegistry_PropertyBased_RemovalSymmetry(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reg := newTestRegistry()
		base := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,6}`), 0, 8, rapid.ID[string]).Draw(t, "base")
		for _, name := range base {
			if _, err := reg.Register(context.Background(), "base."+name, NopModule, nil); err != nil {
				t.Fatalf("register base %s: %v", name, err)
			}
		}
		before := reg.LoadedPlugins()
		byName := make(map[string]*Plugin)
		for _, p := range before {
			byName[p.Name()] = p
		}

		var ctx context.Context = context.Background()
		var parent *Plugin
		if len(before) > 0 && rapid.Bool().Draw(t, "nested") {
			parent = rapid.SampledFrom(before).Draw(t, "parent")
			ctx = loadingCtx(parent)
		}
		name := rapid.StringMatching(`[a-z]{1,6}`).Draw(t, "name")
		p, err := reg.Register(ctx, "extra."+name, NopModule, nil)
		if err != nil {
			return
		}
		if err := reg.Unregister(p); err != nil {
			t.Fatalf("unregister: %v", err)
		}

		after := reg.LoadedPlugins()
		if !slices.Equal(before, after) {
			t.Fatalf("loaded plugins changed: %v -> %v", before, after)
		}
		if got := reg.Plugin(name); got != byName[name] {
			t.Fatalf("short name %s resolves to %v, want %v", name, got, byName[name])
		}
		if parent != nil && parent.HasSubPlugin(p) {
			t.Fatalf("%s still listed under %s", p.ID(), parent.ID())
		}
	})
}
