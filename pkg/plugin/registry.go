package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/zostay/sdv-admin/pkg/config"
)

// Instance is the interface that all constructed plugins must implement.
// Presumably, they will also implement rotate.Client and/or rotate.Storage
// and/or disable.Client as well.
type Instance interface {
	// Name is the descriptive name of the plugin used in logging messages.
	Name() string
}

// Builder is the interface that the registered plugins will implement. It
// simply provides a means for constructing the plugin.
type Builder interface {
	Build(ctx context.Context, c *config.Plugin) (Instance, error)
}

// BuilderFunc adapts a plain function to the Builder interface.
type BuilderFunc func(ctx context.Context, c *config.Plugin) (Instance, error)

// Build calls f.
func (f BuilderFunc) Build(ctx context.Context, c *config.Plugin) (Instance, error) {
	return f(ctx, c)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Builder)
)

// Register should be called during package initialization to add a plugin
// package to the registered list of plugins. The Go package name is preferred
// as the registered alias by convention, but it could be anything. Registering
// the same name twice panics.
func Register(pkg string, b Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := registry[pkg]; dup {
		panic(fmt.Sprintf("plugin %q registered twice", pkg))
	}
	registry[pkg] = b
}

// Get retrieves the builder associated with the given package or nil.
func Get(pkg string) Builder {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[pkg]
}

// Build will construct a plugin instance and return it. If the instance fails
// during construction, an error will be returned. If no plugin is registered
// for the given package, an error will be returned.
func Build(ctx context.Context, c *config.Plugin) (Instance, error) {
	if p := Get(c.Package); p != nil {
		return p.Build(ctx, c)
	}

	return nil, fmt.Errorf("no plugin found for package %q", c.Package)
}
