package registry

import (
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/plugin-tracker/errors"
	"github.com/wippyai/plugin-tracker/handle"
)

// State is the lifecycle state of an instance.
type State uint8

const (
	StateActive State = iota
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// Record is the per-instance bookkeeping: the owning module and the sets of
// resources and vars created under the instance.
type Record struct {
	resources map[handle.Resource]struct{}
	vars      map[handle.Var]struct{}
	Module    handle.Module
	State     State
}

// Resources returns the owned resource handles in ascending order.
func (r *Record) Resources() []handle.Resource {
	return slices.Sorted(maps.Keys(r.resources))
}

// Vars returns the owned var handles in ascending order.
func (r *Record) Vars() []handle.Var {
	return slices.Sorted(maps.Keys(r.vars))
}

// LiveObjects returns the number of resources and vars owned by the instance.
func (r *Record) LiveObjects() int {
	return len(r.resources) + len(r.vars)
}

// Releaser removes table entries during teardown without touching the
// membership sets.
type Releaser interface {
	ForceReleaseResource(h handle.Resource) bool
	ForceReleaseVar(h handle.Var) bool
}

// Instances tracks live instances and the objects they own. It implements
// resource.Owners and vars.Owners.
type Instances struct {
	alloc   *handle.Allocator[handle.Instance]
	records map[handle.Instance]*Record
}

// NewInstances creates an empty instance registry.
func NewInstances() *Instances {
	return NewInstancesWithAllocator(handle.NewAllocator[handle.Instance]("instance"))
}

// NewInstancesWithAllocator creates an empty registry drawing handles from alloc.
func NewInstancesWithAllocator(alloc *handle.Allocator[handle.Instance]) *Instances {
	return &Instances{
		alloc:   alloc,
		records: make(map[handle.Instance]*Record),
	}
}

// Create registers a new active instance owned by module.
func (r *Instances) Create(module handle.Module) handle.Instance {
	h := r.alloc.Next()
	r.records[h] = &Record{
		resources: make(map[handle.Resource]struct{}),
		vars:      make(map[handle.Var]struct{}),
		Module:    module,
		State:     StateActive,
	}
	return h
}

// Get returns the record of an active instance. Crashed and unknown
// instances yield nothing.
func (r *Instances) Get(h handle.Instance) (*Record, bool) {
	rec, ok := r.records[h]
	if !ok || rec.State != StateActive {
		return nil, false
	}
	return rec, true
}

// Lookup returns the record of a known instance in any state.
func (r *Instances) Lookup(h handle.Instance) (*Record, bool) {
	rec, ok := r.records[h]
	return rec, ok
}

// MarkCrashed moves h to the crashed state without releasing anything.
// It returns false for unknown instances and is idempotent otherwise.
func (r *Instances) MarkCrashed(h handle.Instance) bool {
	rec, ok := r.records[h]
	if !ok {
		return false
	}
	rec.State = StateCrashed
	return true
}

// Teardown force-releases every resource and var owned by h. With
// releaseRecord the record is deleted; otherwise it is kept, empty and
// crashed. It returns the number of released entries, and false if h is
// unknown. Tearing down an already empty crashed instance releases nothing.
func (r *Instances) Teardown(h handle.Instance, releaseRecord bool, rel Releaser) (int, bool) {
	rec, ok := r.records[h]
	if !ok {
		return 0, false
	}

	// Blocks new admissions from callbacks fired during release.
	rec.State = StateCrashed

	released := 0
	for rec.LiveObjects() > 0 {
		for _, res := range rec.Resources() {
			delete(rec.resources, res)
			if rel.ForceReleaseResource(res) {
				released++
			}
		}
		for _, v := range rec.Vars() {
			delete(rec.vars, v)
			if rel.ForceReleaseVar(v) {
				released++
			}
		}
	}

	if releaseRecord {
		delete(r.records, h)
	}

	Logger().Debug("instance torn down",
		zapInstance(h),
		zap.Int("released", released),
		zap.Bool("record_released", releaseRecord))
	return released, true
}

// LiveObjects returns the number of objects owned by h, or 0 if h is unknown.
func (r *Instances) LiveObjects(h handle.Instance) int {
	rec, ok := r.records[h]
	if !ok {
		return 0
	}
	return rec.LiveObjects()
}

// Handles returns the known instance handles in ascending order.
func (r *Instances) Handles() []handle.Instance {
	return slices.Sorted(maps.Keys(r.records))
}

// Len returns the number of known instances, crashed ones included.
func (r *Instances) Len() int {
	return len(r.records)
}

// Admit reports whether objects may be created under h.
func (r *Instances) Admit(h handle.Instance) error {
	rec, ok := r.records[h]
	if !ok {
		return errors.UnknownInstance(errors.PhaseInstance, uint32(h))
	}
	if rec.State != StateActive {
		return errors.InstanceCrashed(errors.PhaseInstance, uint32(h))
	}
	return nil
}

// Active reports whether h is known and not crashed.
func (r *Instances) Active(h handle.Instance) bool {
	_, ok := r.Get(h)
	return ok
}

// AttachResource records res as owned by h.
func (r *Instances) AttachResource(h handle.Instance, res handle.Resource) {
	if rec, ok := r.records[h]; ok {
		rec.resources[res] = struct{}{}
	}
}

// DetachResource removes res from the set owned by h.
func (r *Instances) DetachResource(h handle.Instance, res handle.Resource) {
	if rec, ok := r.records[h]; ok {
		delete(rec.resources, res)
	}
}

// AttachVar records v as owned by h.
func (r *Instances) AttachVar(h handle.Instance, v handle.Var) {
	if rec, ok := r.records[h]; ok {
		rec.vars[v] = struct{}{}
	}
}

// DetachVar removes v from the set owned by h.
func (r *Instances) DetachVar(h handle.Instance, v handle.Var) {
	if rec, ok := r.records[h]; ok {
		delete(rec.vars, v)
	}
}
