package vars

import (
	"maps"
	"slices"

	"github.com/wippyai/plugin-tracker/errors"
	"github.com/wippyai/plugin-tracker/handle"
)

// Table maps var handles to a value and a plugin use count, and keeps the
// bridge cache consistent with the entries it indexes.
// Not safe for concurrent use; callers serialize access.
type Table struct {
	owners  Owners
	alloc   *handle.Allocator[handle.Var]
	bridges *BridgeCache
	entries map[handle.Var]*entry
}

type entry struct {
	value    any
	bridge   *BridgeKey
	instance handle.Instance
	useCount uint32
}

// NewTable creates an empty table whose handles start at 1.
func NewTable(owners Owners) *Table {
	return NewTableWithAllocator(owners, handle.NewAllocator[handle.Var]("var"))
}

// NewTableWithAllocator creates an empty table drawing handles from alloc.
func NewTableWithAllocator(owners Owners, alloc *handle.Allocator[handle.Var]) *Table {
	return &Table{
		owners:  owners,
		alloc:   alloc,
		bridges: NewBridgeCache(),
		entries: make(map[handle.Var]*entry),
	}
}

// Add tracks value under inst with a use count of 1.
func (t *Table) Add(value any, inst handle.Instance) (handle.Var, error) {
	if err := t.owners.Admit(inst); err != nil {
		return 0, err
	}

	h := t.alloc.Next()
	t.entries[h] = &entry{
		value:    value,
		instance: inst,
		useCount: 1,
	}
	t.owners.AttachVar(inst, h)
	return h, nil
}

// Get returns the tracked value.
func (t *Table) Get(h handle.Var) (any, bool) {
	e, ok := t.live(h)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Instance returns the instance owning h.
func (t *Table) Instance(h handle.Var) (handle.Instance, bool) {
	e, ok := t.live(h)
	if !ok {
		return 0, false
	}
	return e.instance, true
}

// Owner returns the instance recorded for h, whatever the instance's state.
func (t *Table) Owner(h handle.Var) (handle.Instance, bool) {
	e, ok := t.entries[h]
	if !ok {
		return 0, false
	}
	return e.instance, true
}

// UseCount returns the plugin use count of h.
func (t *Table) UseCount(h handle.Var) (uint32, bool) {
	e, ok := t.entries[h]
	if !ok {
		return 0, false
	}
	return e.useCount, true
}

// AddRef increments the use count of h.
func (t *Table) AddRef(h handle.Var) bool {
	e, ok := t.live(h)
	if !ok {
		return false
	}
	e.useCount++
	return true
}

// Unref decrements the use count of h, removing the entry and its bridge
// registration at zero.
func (t *Table) Unref(h handle.Var) (removed, ok bool) {
	e, found := t.entries[h]
	if !found || e.useCount == 0 {
		return false, false
	}

	e.useCount--
	if e.useCount > 0 {
		return false, true
	}

	t.remove(h, e, false)
	t.owners.DetachVar(e.instance, h)
	return true, true
}

// ForceRelease removes h regardless of its use count. The owner's membership
// set is not touched; teardown clears it.
func (t *Table) ForceRelease(h handle.Var) bool {
	e, ok := t.entries[h]
	if !ok {
		return false
	}
	t.remove(h, e, true)
	return true
}

// RegisterBridge records h as the bridge var for object under inst. It is a
// no-op returning false if the key is taken or h is not a live var of inst.
func (t *Table) RegisterBridge(inst handle.Instance, object any, h handle.Var) bool {
	e, ok := t.live(h)
	if !ok || e.instance != inst || e.bridge != nil {
		return false
	}

	key := BridgeKey{Instance: inst, Object: object}
	if !t.bridges.Register(key, h) {
		return false
	}
	e.bridge = &key
	return true
}

// LookupBridge returns the bridge var for object under inst without
// touching its use count.
func (t *Table) LookupBridge(inst handle.Instance, object any) (handle.Var, bool) {
	if !t.owners.Active(inst) {
		return 0, false
	}
	return t.bridges.Lookup(BridgeKey{Instance: inst, Object: object})
}

// UnregisterBridge drops the cache entry for object under inst. The var
// itself stays tracked.
func (t *Table) UnregisterBridge(inst handle.Instance, object any) bool {
	key := BridgeKey{Instance: inst, Object: object}
	h, ok := t.bridges.Lookup(key)
	if !ok {
		return false
	}
	if e, ok := t.entries[h]; ok {
		e.bridge = nil
	}
	return t.bridges.Unregister(key)
}

// FindOrCreateBridge returns the bridge var for object under inst, adding
// a use-count reference for the caller. On a miss it calls factory once and
// registers the result. created reports whether factory ran.
func (t *Table) FindOrCreateBridge(inst handle.Instance, object any, factory Factory) (h handle.Var, created bool, err error) {
	if err := t.owners.Admit(inst); err != nil {
		return 0, false, err
	}

	if h, ok := t.LookupBridge(inst, object); ok {
		if !t.AddRef(h) {
			return 0, false, errors.New(errors.PhaseBridge, errors.KindUnknownHandle).
				Handle(uint32(h)).
				Value(object).
				Detail("bridge cache entry refers to a var that is not live").
				Build()
		}
		return h, false, nil
	}

	value, err := factory()
	if err != nil {
		return 0, false, errors.FactoryFailed(err)
	}

	h, err = t.Add(value, inst)
	if err != nil {
		return 0, false, err
	}
	t.RegisterBridge(inst, object, h)
	return h, true, nil
}

// Bridges returns the bridge cache.
func (t *Table) Bridges() *BridgeCache {
	return t.bridges
}

// Len returns the number of tracked vars.
func (t *Table) Len() int {
	return len(t.entries)
}

// Each calls fn for every tracked var in handle order until fn returns false.
func (t *Table) Each(fn func(h handle.Var, inst handle.Instance, value any) bool) {
	for _, h := range slices.Sorted(maps.Keys(t.entries)) {
		e, ok := t.entries[h]
		if !ok {
			continue
		}
		if !fn(h, e.instance, e.value) {
			return
		}
	}
}

func (t *Table) remove(h handle.Var, e *entry, forced bool) {
	delete(t.entries, h)
	if e.bridge != nil {
		t.bridges.Unregister(*e.bridge)
		e.bridge = nil
	}
	if d, ok := e.value.(Dropper); ok {
		d.LastPluginRefDropped(forced)
	}
}

func (t *Table) live(h handle.Var) (*entry, bool) {
	if h == handle.Invalid {
		return nil, false
	}
	e, ok := t.entries[h]
	if !ok || !t.owners.Active(e.instance) {
		return nil, false
	}
	return e, true
}
