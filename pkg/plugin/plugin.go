package plugin

import "context"

// Module is the live handle of an imported code unit.
type Module interface {
	// Init runs the module body once the plugin is registered. ctx carries the
	// load chain ending with the module's own plugin, so plugins required from
	// Init nest under it.
	Init(ctx context.Context) error
}

// ModuleFunc adapts a function to the Module interface.
type ModuleFunc func(ctx context.Context) error

// Init implements Module.
func (f ModuleFunc) Init(ctx context.Context) error {
	if f == nil {
		return nil
	}
	return f(ctx)
}

// NopModule is a module whose body does nothing.
var NopModule Module = ModuleFunc(nil)
