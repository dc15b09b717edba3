package adapter

import "fmt"

// Factory constructs an Adapter from a driver-specific settings map.
type Factory func(settings map[string]any) (Adapter, error)

var factories = make(map[string]Factory)

// Register adds a named adapter Factory to the global registry, grounded on
// the teacher's pkg/plugin/registry.go Register* panics-on-misuse shape: this
// only ever runs from package init(), so a programmer error here should be
// loud at startup rather than a silently ignored runtime error.
func Register(name string, factory Factory) {
	if name == "" {
		panic("adapter: Register called with empty name")
	}
	if factory == nil {
		panic(fmt.Sprintf("adapter: Register(%q) called with nil factory", name))
	}
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("adapter: Register(%q) called twice", name))
	}
	factories[name] = factory
}

// Get returns the named adapter's Factory.
func Get(name string) (Factory, bool) {
	f, ok := factories[name]
	return f, ok
}

// List returns the names of all registered adapters.
func List() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}
