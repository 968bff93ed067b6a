package registry

import (
	"maps"
	"slices"

	"github.com/wippyai/plugin-tracker/handle"
)

// Modules maps module handles to module objects. The registry does not
// manage module lifetime; the owner removes its entry when it goes away.
type Modules struct {
	alloc   *handle.Allocator[handle.Module]
	modules map[handle.Module]any
}

// NewModules creates an empty module registry.
func NewModules() *Modules {
	return NewModulesWithAllocator(handle.NewAllocator[handle.Module]("module"))
}

// NewModulesWithAllocator creates an empty registry drawing handles from alloc.
func NewModulesWithAllocator(alloc *handle.Allocator[handle.Module]) *Modules {
	return &Modules{
		alloc:   alloc,
		modules: make(map[handle.Module]any),
	}
}

// Add registers module and returns its handle.
func (m *Modules) Add(module any) handle.Module {
	h := m.alloc.Next()
	m.modules[h] = module
	return h
}

// Remove unregisters h. Instances created under h are not affected.
func (m *Modules) Remove(h handle.Module) bool {
	if _, ok := m.modules[h]; !ok {
		return false
	}
	delete(m.modules, h)
	Logger().Debug("module removed", zapModule(h))
	return true
}

// Get returns the module object for h.
func (m *Modules) Get(h handle.Module) (any, bool) {
	if h == handle.Invalid {
		return nil, false
	}
	mod, ok := m.modules[h]
	return mod, ok
}

// Handles returns the registered module handles in ascending order.
func (m *Modules) Handles() []handle.Module {
	return slices.Sorted(maps.Keys(m.modules))
}

// Len returns the number of registered modules.
func (m *Modules) Len() int {
	return len(m.modules)
}
