package scenario

import (
	"github.com/wippyai/plugin-tracker/errors"
	"github.com/wippyai/plugin-tracker/handle"
	"github.com/wippyai/plugin-tracker/tracker"
)

// Object is the trackee created for resource and var steps.
type Object struct {
	Name string
}

// op runs one step against the tracker. bind is the name new handles are
// recorded under; an empty bind discards them.
type op func(r *runner, s Step, bind string) (any, *errors.Error)

var ops = map[string]op{
	"module":        addModule,
	"remove_module": removeModule,
	"instance":      addInstance,
	"mark_crashed":  instanceOp((*tracker.Tracker).MarkInstanceCrashed),
	"crash":         instanceOp((*tracker.Tracker).NotifyInstanceCrashed),
	"delete":        instanceOp((*tracker.Tracker).NotifyInstanceDeleted),
	"live_objects":  liveObjects,

	"resource":        createResource,
	"get_resource":    resourceOp(getResource),
	"addref_resource": resourceOp((*tracker.Tracker).AddRefResource),
	"unref_resource":  resourceOp((*tracker.Tracker).UnrefResource),
	"resource_count":  resourceCount,
	"resource_owner":  resourceOwner,

	"var":           createVar,
	"get_var":       varOp(getVar),
	"addref_var":    varOp((*tracker.Tracker).AddRefVar),
	"unref_var":     varOp((*tracker.Tracker).UnrefVar),
	"var_count":     varCount,
	"bridge":        bridge,
	"lookup_bridge": lookupBridge,
	"same":          same,
}

func addModule(r *runner, _ Step, bind string) (any, *errors.Error) {
	m := r.tracker.AddModule(&Object{Name: bind})
	r.bind(bind, uint32(m))
	return true, nil
}

func removeModule(r *runner, s Step, _ string) (any, *errors.Error) {
	m, err := r.lookup(s.Module)
	if err != nil {
		return nil, err
	}
	return r.tracker.RemoveModule(handle.Module(m)), nil
}

func addInstance(r *runner, s Step, bind string) (any, *errors.Error) {
	m, err := r.lookup(s.Module)
	if err != nil {
		return nil, err
	}
	inst, createErr := r.tracker.AddInstance(handle.Module(m))
	if createErr != nil {
		return false, nil
	}
	r.bind(bind, uint32(inst))
	return true, nil
}

func instanceOp(fn func(*tracker.Tracker, handle.Instance) bool) op {
	return func(r *runner, s Step, _ string) (any, *errors.Error) {
		inst, err := r.lookup(s.Instance)
		if err != nil {
			return nil, err
		}
		return fn(r.tracker, handle.Instance(inst)), nil
	}
}

func liveObjects(r *runner, s Step, _ string) (any, *errors.Error) {
	inst, err := r.lookup(s.Instance)
	if err != nil {
		return nil, err
	}
	return r.tracker.LiveObjectCount(handle.Instance(inst)), nil
}

func createResource(r *runner, s Step, bind string) (any, *errors.Error) {
	inst, err := r.lookup(s.Instance)
	if err != nil {
		return nil, err
	}
	h, createErr := r.tracker.CreateResource(&Object{Name: bind}, handle.Instance(inst))
	if createErr != nil {
		return false, nil
	}
	r.bind(bind, uint32(h))
	return true, nil
}

func getResource(t *tracker.Tracker, h handle.Resource) bool {
	_, ok := t.GetResource(h)
	return ok
}

func resourceOp(fn func(*tracker.Tracker, handle.Resource) bool) op {
	return func(r *runner, s Step, _ string) (any, *errors.Error) {
		h, err := r.lookup(s.Handle)
		if err != nil {
			return nil, err
		}
		return fn(r.tracker, handle.Resource(h)), nil
	}
}

func resourceCount(r *runner, s Step, _ string) (any, *errors.Error) {
	h, err := r.lookup(s.Handle)
	if err != nil {
		return nil, err
	}
	n, _ := r.tracker.ResourceUseCount(handle.Resource(h))
	return int(n), nil
}

func resourceOwner(r *runner, s Step, _ string) (any, *errors.Error) {
	h, err := r.lookup(s.Handle)
	if err != nil {
		return nil, err
	}
	inst, err := r.lookup(s.Instance)
	if err != nil {
		return nil, err
	}
	owner, ok := r.tracker.InstanceForResource(handle.Resource(h))
	return ok && owner == handle.Instance(inst), nil
}

func createVar(r *runner, s Step, bind string) (any, *errors.Error) {
	inst, err := r.lookup(s.Instance)
	if err != nil {
		return nil, err
	}
	h, createErr := r.tracker.CreateVar(&Object{Name: bind}, handle.Instance(inst))
	if createErr != nil {
		return false, nil
	}
	r.bind(bind, uint32(h))
	return true, nil
}

func getVar(t *tracker.Tracker, h handle.Var) bool {
	_, ok := t.GetVar(h)
	return ok
}

func varOp(fn func(*tracker.Tracker, handle.Var) bool) op {
	return func(r *runner, s Step, _ string) (any, *errors.Error) {
		h, err := r.lookup(s.Handle)
		if err != nil {
			return nil, err
		}
		return fn(r.tracker, handle.Var(h)), nil
	}
}

func varCount(r *runner, s Step, _ string) (any, *errors.Error) {
	h, err := r.lookup(s.Handle)
	if err != nil {
		return nil, err
	}
	n, _ := r.tracker.VarUseCount(handle.Var(h))
	return int(n), nil
}

// bridge reports whether the factory ran, so a script can assert that a
// second call for the same object reuses the first var.
func bridge(r *runner, s Step, bind string) (any, *errors.Error) {
	inst, err := r.lookup(s.Instance)
	if err != nil {
		return nil, err
	}
	created := false
	h, bridgeErr := r.tracker.FindOrCreateBridgeVar(handle.Instance(inst), s.Object, func() (any, error) {
		created = true
		return &Object{Name: s.Object}, nil
	})
	if bridgeErr != nil {
		return false, nil
	}
	r.bind(bind, uint32(h))
	return created, nil
}

func lookupBridge(r *runner, s Step, bind string) (any, *errors.Error) {
	inst, err := r.lookup(s.Instance)
	if err != nil {
		return nil, err
	}
	h, ok := r.tracker.LookupBridgeVar(handle.Instance(inst), s.Object)
	if ok {
		r.bind(bind, uint32(h))
	}
	return ok, nil
}

// same compares the handles bound to Handle and Object.
func same(r *runner, s Step, _ string) (any, *errors.Error) {
	a, err := r.lookup(s.Handle)
	if err != nil {
		return nil, err
	}
	b, err := r.lookup(s.Object)
	if err != nil {
		return nil, err
	}
	return a == b, nil
}
