package tracker

import (
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/plugin-tracker/errors"
	"github.com/wippyai/plugin-tracker/handle"
	"github.com/wippyai/plugin-tracker/registry"
	"github.com/wippyai/plugin-tracker/resource"
	"github.com/wippyai/plugin-tracker/vars"
)

// Tracker is the single entry point for creating, looking up, reference
// counting and tearing down plugin-visible resources and vars.
//
// A Tracker is not safe for concurrent use. All calls must come from one
// goroutine, or be funneled through a dispatch.Queue.
type Tracker struct {
	log       *zap.Logger
	modules   *registry.Modules
	instances *registry.Instances
	resources *resource.Table
	vars      *vars.Table
	observers []subscription

	nextObserver int
}

type subscription struct {
	observer Observer
	id       int
}

// Stats summarizes what a tracker currently holds.
type Stats struct {
	Resources int
	Vars      int
	Bridges   int
	Instances int
	Modules   int
}

// New creates an independent tracker.
func New(opts Options) *Tracker {
	log := opts.Logger
	if log == nil {
		log = Logger()
	}

	first := opts.FirstHandle
	instances := registry.NewInstancesWithAllocator(handle.NewAllocatorFrom[handle.Instance]("instance", first))

	t := &Tracker{
		log:       log,
		modules:   registry.NewModulesWithAllocator(handle.NewAllocatorFrom[handle.Module]("module", first)),
		instances: instances,
		resources: resource.NewTableWithAllocator(instances, handle.NewAllocatorFrom[handle.Resource]("resource", first)),
		vars:      vars.NewTableWithAllocator(instances, handle.NewAllocatorFrom[handle.Var]("var", first)),
	}
	for _, o := range opts.Observers {
		t.Subscribe(o)
	}
	return t
}

// NewWithDefaults creates a tracker with default options.
func NewWithDefaults() *Tracker {
	return New(DefaultOptions())
}

// Resources ------------------------------------------------------------------

// CreateResource tracks obj under inst with a use count of 1.
func (t *Tracker) CreateResource(obj any, inst handle.Instance) (handle.Resource, error) {
	h, err := t.resources.Add(obj, inst)
	if err != nil {
		t.log.Warn("resource creation rejected", zapInstance(inst), zap.Error(err))
		return 0, err
	}
	t.log.Debug("resource created", zapResource(h), zapInstance(inst))
	t.notify(Event{Type: EventResourceCreated, Resource: h, Instance: inst, Value: obj})
	return h, nil
}

// GetResource returns the object behind h. The reference stays valid for
// as long as the caller holds it, even if h is released meanwhile.
func (t *Tracker) GetResource(h handle.Resource) (any, bool) {
	return t.resources.Get(h)
}

// AddRefResource increments the plugin use count of h.
func (t *Tracker) AddRefResource(h handle.Resource) bool {
	return t.resources.AddRef(h)
}

// UnrefResource decrements the plugin use count of h, removing the entry
// when it reaches zero. Extra releases are rejected.
func (t *Tracker) UnrefResource(h handle.Resource) bool {
	inst, _ := t.resources.Owner(h)
	removed, ok := t.resources.Unref(h)
	if !ok {
		t.log.Warn("resource unref rejected", zapResource(h))
		return false
	}
	if removed {
		t.log.Debug("resource released", zapResource(h))
		t.notify(Event{Type: EventResourceReleased, Resource: h, Instance: inst})
	}
	return true
}

// ResourceUseCount returns the plugin use count of h.
func (t *Tracker) ResourceUseCount(h handle.Resource) (uint32, bool) {
	return t.resources.UseCount(h)
}

// InstanceForResource returns the instance that owns h.
func (t *Tracker) InstanceForResource(h handle.Resource) (handle.Instance, bool) {
	return t.resources.Instance(h)
}

// Vars -----------------------------------------------------------------------

// CreateVar tracks val under inst with a use count of 1.
func (t *Tracker) CreateVar(val any, inst handle.Instance) (handle.Var, error) {
	h, err := t.vars.Add(val, inst)
	if err != nil {
		t.log.Warn("var creation rejected", zapInstance(inst), zap.Error(err))
		return 0, err
	}
	t.log.Debug("var created", zapVar(h), zapInstance(inst))
	t.notify(Event{Type: EventVarCreated, Var: h, Instance: inst, Value: val})
	return h, nil
}

// GetVar returns the value behind h.
func (t *Tracker) GetVar(h handle.Var) (any, bool) {
	return t.vars.Get(h)
}

// AddRefVar increments the plugin use count of h.
func (t *Tracker) AddRefVar(h handle.Var) bool {
	return t.vars.AddRef(h)
}

// UnrefVar decrements the plugin use count of h, removing the entry and
// any bridge registration when it reaches zero.
func (t *Tracker) UnrefVar(h handle.Var) bool {
	inst, _ := t.vars.Owner(h)
	removed, ok := t.vars.Unref(h)
	if !ok {
		t.log.Warn("var unref rejected", zapVar(h))
		return false
	}
	if removed {
		t.log.Debug("var released", zapVar(h))
		t.notify(Event{Type: EventVarReleased, Var: h, Instance: inst})
	}
	return true
}

// VarUseCount returns the plugin use count of h.
func (t *Tracker) VarUseCount(h handle.Var) (uint32, bool) {
	return t.vars.UseCount(h)
}

// InstanceForVar returns the instance that owns h.
func (t *Tracker) InstanceForVar(h handle.Var) (handle.Instance, bool) {
	return t.vars.Instance(h)
}

// FindOrCreateBridgeVar returns the var wrapping object as seen from inst.
// A cached var gets an extra use-count reference for the caller; on a miss
// factory runs once and the new var is registered in the bridge cache.
func (t *Tracker) FindOrCreateBridgeVar(inst handle.Instance, object any, factory vars.Factory) (handle.Var, error) {
	h, created, err := t.vars.FindOrCreateBridge(inst, object, factory)
	if err != nil {
		t.log.Warn("bridge var rejected", zapInstance(inst), zap.Error(err))
		return 0, err
	}
	if created {
		val, _ := t.vars.Get(h)
		t.log.Debug("bridge var created", zapVar(h), zapInstance(inst))
		t.notify(Event{Type: EventVarCreated, Var: h, Instance: inst, Value: val})
		t.notify(Event{Type: EventBridgeRegistered, Var: h, Instance: inst, Value: object})
	}
	return h, nil
}

// LookupBridgeVar returns the cached bridge var for object under inst
// without changing its use count.
func (t *Tracker) LookupBridgeVar(inst handle.Instance, object any) (handle.Var, bool) {
	return t.vars.LookupBridge(inst, object)
}

// Modules --------------------------------------------------------------------

// AddModule registers module and returns its handle.
func (t *Tracker) AddModule(module any) handle.Module {
	h := t.modules.Add(module)
	t.log.Debug("module added", zapModule(h))
	t.notify(Event{Type: EventModuleAdded, Module: h, Value: module})
	return h
}

// RemoveModule unregisters h. Instances created under h and their objects
// are left alone.
func (t *Tracker) RemoveModule(h handle.Module) bool {
	if !t.modules.Remove(h) {
		return false
	}
	t.notify(Event{Type: EventModuleRemoved, Module: h})
	return true
}

// GetModule returns the module object registered as h.
func (t *Tracker) GetModule(h handle.Module) (any, bool) {
	return t.modules.Get(h)
}

// Instances ------------------------------------------------------------------

// AddInstance registers a new instance of module.
func (t *Tracker) AddInstance(module handle.Module) (handle.Instance, error) {
	if _, ok := t.modules.Get(module); !ok {
		err := errors.UnknownModule(errors.PhaseInstance, uint32(module))
		t.log.Warn("instance creation rejected", zapModule(module), zap.Error(err))
		return 0, err
	}
	h := t.instances.Create(module)
	t.log.Debug("instance added", zapInstance(h), zapModule(module))
	t.notify(Event{Type: EventInstanceAdded, Instance: h, Module: module})
	return h, nil
}

// GetInstance returns the record of an active instance.
func (t *Tracker) GetInstance(h handle.Instance) (*registry.Record, bool) {
	return t.instances.Get(h)
}

// LookupInstance returns the record of a known instance in any state.
func (t *Tracker) LookupInstance(h handle.Instance) (*registry.Record, bool) {
	return t.instances.Lookup(h)
}

// MarkInstanceCrashed moves h to the crashed state without releasing its
// objects. Lookups of those objects fail from now on.
func (t *Tracker) MarkInstanceCrashed(h handle.Instance) bool {
	return t.instances.MarkCrashed(h)
}

// NotifyInstanceCrashed marks h crashed and force-releases everything it
// owns. The emptied record is kept so h still resolves as a crashed instance.
func (t *Tracker) NotifyInstanceCrashed(h handle.Instance) bool {
	if !t.instances.MarkCrashed(h) {
		return false
	}
	n, _ := t.instances.Teardown(h, false, releaser{t})
	t.log.Info("instance crashed", zapInstance(h), zap.Int("released", n))
	t.notify(Event{Type: EventInstanceCrashed, Instance: h})
	return true
}

// NotifyInstanceDeleted force-releases everything h owns and forgets h.
func (t *Tracker) NotifyInstanceDeleted(h handle.Instance) bool {
	n, ok := t.instances.Teardown(h, true, releaser{t})
	if !ok {
		return false
	}
	t.log.Debug("instance deleted", zapInstance(h), zap.Int("released", n))
	t.notify(Event{Type: EventInstanceDeleted, Instance: h})
	return true
}

// LiveObjectCount returns the number of resources and vars owned by h.
// Unknown or deleted instances report 0.
func (t *Tracker) LiveObjectCount(h handle.Instance) int {
	return t.instances.LiveObjects(h)
}

// Instances returns the known instance handles in ascending order.
func (t *Tracker) Instances() []handle.Instance {
	return t.instances.Handles()
}

// Modules returns the registered module handles in ascending order.
func (t *Tracker) Modules() []handle.Module {
	return t.modules.Handles()
}

// Stats returns current totals.
func (t *Tracker) Stats() Stats {
	return Stats{
		Resources: t.resources.Len(),
		Vars:      t.vars.Len(),
		Bridges:   t.vars.Bridges().Len(),
		Instances: t.instances.Len(),
		Modules:   t.modules.Len(),
	}
}

// Observers ------------------------------------------------------------------

// Subscribe adds an observer for lifecycle events and returns a function
// that removes it again.
func (t *Tracker) Subscribe(o Observer) (cancel func()) {
	t.nextObserver++
	id := t.nextObserver
	t.observers = append(t.observers, subscription{id: id, observer: o})
	return func() {
		for i, s := range t.observers {
			if s.id == id {
				t.observers = append(t.observers[:i], t.observers[i+1:]...)
				return
			}
		}
	}
}

func (t *Tracker) notify(e Event) {
	// Observers may cancel subscriptions while being notified.
	for _, s := range slices.Clone(t.observers) {
		s.observer.OnTrackerEvent(e)
	}
}

// ResourceAs returns the object behind h if it has type T.
func ResourceAs[T any](t *Tracker, h handle.Resource) (T, bool) {
	v, ok := t.GetResource(h)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// VarAs returns the value behind h if it has type T.
func VarAs[T any](t *Tracker, h handle.Var) (T, bool) {
	v, ok := t.GetVar(h)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// releaser force-releases table entries on behalf of instance teardown.
type releaser struct {
	t *Tracker
}

func (r releaser) ForceReleaseResource(h handle.Resource) bool {
	inst, _ := r.t.resources.Owner(h)
	if !r.t.resources.ForceRelease(h) {
		return false
	}
	r.t.log.Debug("resource force released", zapResource(h))
	r.t.notify(Event{Type: EventResourceForceReleased, Resource: h, Instance: inst})
	return true
}

func (r releaser) ForceReleaseVar(h handle.Var) bool {
	inst, _ := r.t.vars.Owner(h)
	if !r.t.vars.ForceRelease(h) {
		return false
	}
	r.t.log.Debug("var force released", zapVar(h))
	r.t.notify(Event{Type: EventVarForceReleased, Var: h, Instance: inst})
	return true
}

func zapResource(h handle.Resource) zap.Field { return zap.Uint32("resource", uint32(h)) }
func zapVar(h handle.Var) zap.Field           { return zap.Uint32("var", uint32(h)) }
func zapModule(h handle.Module) zap.Field     { return zap.Uint32("module", uint32(h)) }
func zapInstance(h handle.Instance) zap.Field { return zap.Uint32("instance", uint32(h)) }
