// Package builtin holds the modules compiled into plugind. They are served
// through a BuiltinImporter under the "builtin." module prefix.
package builtin

import (
	"context"
	"log/slog"
	"time"

	"plugintree/pkg/logger"
	"plugintree/pkg/plugin"
)

// Module identifiers served by Register.
const (
	HeartbeatModule = "builtin.heartbeat"
	InventoryModule = "builtin.inventory"
)

// Modules returns the builtin modules keyed by module identifier.
func Modules() map[string]plugin.Module {
	return map[string]plugin.Module{
		HeartbeatModule: plugin.ModuleFunc(initHeartbeat),
		InventoryModule: plugin.ModuleFunc(initInventory),
	}
}

// Register provides every builtin module to imp.
func Register(imp *plugin.BuiltinImporter) {
	for id, m := range Modules() {
		imp.Provide(id, m)
	}
}

// Importer returns a BuiltinImporter serving the builtin modules.
func Importer() *plugin.BuiltinImporter {
	return plugin.NewBuiltinImporter(Modules())
}

func initHeartbeat(ctx context.Context) error {
	self := plugin.CurrentPlugin(ctx)
	if self == nil {
		return nil
	}
	logger.Named("builtin").Info("heartbeat ready",
		slog.String("id", self.ID()),
		slog.Time("started_at", time.Now().UTC()))
	return nil
}

// initInventory logs what the registry holds once heartbeat is loaded.
func initInventory(ctx context.Context) error {
	if _, err := plugin.Require(ctx, "heartbeat"); err != nil {
		return err
	}
	reg := plugin.RegistryFrom(ctx)
	loaded := reg.LoadedPlugins()
	ids := make([]string, 0, len(loaded))
	for _, p := range loaded {
		ids = append(ids, p.ID())
	}
	logger.Named("builtin").Info("inventory",
		slog.Any("loaded", ids),
		slog.Any("available", reg.AvailablePluginNames()))
	return nil
}
