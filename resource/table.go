package resource

import (
	"maps"
	"slices"

	"github.com/wippyai/plugin-tracker/handle"
)

// Table maps resource handles to a strong reference and a plugin use count.
// Not safe for concurrent use; callers serialize access.
type Table struct {
	owners  Owners
	alloc   *handle.Allocator[handle.Resource]
	entries map[handle.Resource]*entry
}

type entry struct {
	value    any
	instance handle.Instance
	useCount uint32
}

// NewTable creates an empty table whose handles start at 1.
func NewTable(owners Owners) *Table {
	return NewTableWithAllocator(owners, handle.NewAllocator[handle.Resource]("resource"))
}

// NewTableWithAllocator creates an empty table drawing handles from alloc.
func NewTableWithAllocator(owners Owners, alloc *handle.Allocator[handle.Resource]) *Table {
	return &Table{
		owners:  owners,
		alloc:   alloc,
		entries: make(map[handle.Resource]*entry),
	}
}

// Add tracks value under inst with a use count of 1.
// Nothing is inserted if inst is unknown or crashed.
func (t *Table) Add(value any, inst handle.Instance) (handle.Resource, error) {
	if err := t.owners.Admit(inst); err != nil {
		return 0, err
	}

	h := t.alloc.Next()
	t.entries[h] = &entry{
		value:    value,
		instance: inst,
		useCount: 1,
	}
	t.owners.AttachResource(inst, h)
	return h, nil
}

// Get returns the tracked object. The returned reference stays valid after
// the entry is removed.
func (t *Table) Get(h handle.Resource) (any, bool) {
	e, ok := t.live(h)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Instance returns the instance owning h.
func (t *Table) Instance(h handle.Resource) (handle.Instance, bool) {
	e, ok := t.live(h)
	if !ok {
		return 0, false
	}
	return e.instance, true
}

// Owner returns the instance recorded for h, whatever the instance's state.
func (t *Table) Owner(h handle.Resource) (handle.Instance, bool) {
	e, ok := t.entries[h]
	if !ok {
		return 0, false
	}
	return e.instance, true
}

// UseCount returns the plugin use count of h.
func (t *Table) UseCount(h handle.Resource) (uint32, bool) {
	e, ok := t.entries[h]
	if !ok {
		return 0, false
	}
	return e.useCount, true
}

// AddRef increments the use count of h.
func (t *Table) AddRef(h handle.Resource) bool {
	e, ok := t.live(h)
	if !ok {
		return false
	}
	e.useCount++
	return true
}

// Unref decrements the use count of h. When the count reaches zero the entry
// is removed and detached from its owner, and removed reports true.
// ok is false for unknown handles; the table is left untouched.
func (t *Table) Unref(h handle.Resource) (removed, ok bool) {
	e, found := t.entries[h]
	if !found || e.useCount == 0 {
		return false, false
	}

	e.useCount--
	if e.useCount > 0 {
		return false, true
	}

	delete(t.entries, h)
	t.owners.DetachResource(e.instance, h)
	if d, ok := e.value.(Dropper); ok {
		d.LastPluginRefDropped(false)
	}
	return true, true
}

// ForceRelease removes h regardless of its use count. The owner's membership
// set is not touched; teardown clears it.
func (t *Table) ForceRelease(h handle.Resource) bool {
	e, ok := t.entries[h]
	if !ok {
		return false
	}

	delete(t.entries, h)
	if d, ok := e.value.(Dropper); ok {
		d.LastPluginRefDropped(true)
	}
	return true
}

// Len returns the number of tracked resources.
func (t *Table) Len() int {
	return len(t.entries)
}

// Each calls fn for every tracked resource in handle order until fn returns false.
func (t *Table) Each(fn func(h handle.Resource, inst handle.Instance, value any) bool) {
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

func (t *Table) live(h handle.Resource) (*entry, bool) {
	if h == handle.Invalid {
		return nil, false
	}
	e, ok := t.entries[h]
	if !ok || !t.owners.Active(e.instance) {
		return nil, false
	}
	return e, true
}
