package plugin

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/plugin-tracker/dispatch"
	"github.com/wippyai/plugin-tracker/handle"
	"github.com/wippyai/plugin-tracker/tracker"
)

// hostFunc reads its arguments from stack and writes results back into it.
// It runs on the guest's goroutine and must reach the tracker through the queue.
type hostFunc func(ctx context.Context, h *Host, mod api.Module, caller handle.Instance, stack []uint64) error

var hostFuncs = map[string]hostFunc{
	"add_ref_resource": addRefResource,
	"release_resource": releaseResource,
	"add_ref_var":      addRefVar,
	"release_var":      releaseVar,
	"buffer_create":    bufferCreate,
	"buffer_size":      bufferSize,
	"var_from_utf8":    varFromUTF8,
	"var_length":       varLength,
	"live_objects":     liveObjects,
}

// Functions returns the signatures of all host functions in WIT syntax.
func Functions() []string {
	out := make([]string, len(Signatures))
	for i, sig := range Signatures {
		out[i] = sig.String()
	}
	return out
}

func (h *Host) buildHostModule(ctx context.Context) (api.Module, error) {
	builder := h.runtime.NewHostModuleBuilder(h.options.ModuleName)

	for _, sig := range Signatures {
		impl, ok := hostFuncs[sig.Name]
		if !ok {
			return nil, fmt.Errorf("no implementation for host function %q", sig.Name)
		}
		builder.NewFunctionBuilder().
			WithGoModuleFunction(h.wrap(sig.Name, impl), sig.CoreParams(), sig.CoreResults()).
			WithParameterNames(sig.CoreParamNames()...).
			Export(sig.Name)
	}

	return builder.Instantiate(ctx)
}

// wrap adapts impl to wazero. A call without a calling instance in ctx, or
// one the queue refuses, yields zero results.
func (h *Host) wrap(name string, impl hostFunc) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		caller, ok := InstanceFromContext(ctx)
		if !ok {
			h.logger.Warn("host call without instance", zap.String("func", name))
			clear(stack)
			return
		}
		if err := impl(ctx, h, mod, caller, stack); err != nil {
			h.logger.Warn("host call failed",
				zap.String("func", name),
				zap.Uint32("instance", uint32(caller)),
				zap.Error(err))
			clear(stack)
		}
	}
}

func encodeBool(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// ownsResource reports whether caller owns r. Guests may only touch their own handles.
func ownsResource(t *tracker.Tracker, caller handle.Instance, r handle.Resource) bool {
	inst, ok := t.InstanceForResource(r)
	return ok && inst == caller
}

func ownsVar(t *tracker.Tracker, caller handle.Instance, v handle.Var) bool {
	inst, ok := t.InstanceForVar(v)
	return ok && inst == caller
}

func addRefResource(ctx context.Context, h *Host, _ api.Module, caller handle.Instance, stack []uint64) error {
	r := handle.Resource(api.DecodeU32(stack[0]))
	ok, err := dispatch.Call(ctx, h.queue, func(t *tracker.Tracker) bool {
		return ownsResource(t, caller, r) && t.AddRefResource(r)
	})
	stack[0] = encodeBool(ok)
	return err
}

func releaseResource(ctx context.Context, h *Host, _ api.Module, caller handle.Instance, stack []uint64) error {
	r := handle.Resource(api.DecodeU32(stack[0]))
	ok, err := dispatch.Call(ctx, h.queue, func(t *tracker.Tracker) bool {
		return ownsResource(t, caller, r) && t.UnrefResource(r)
	})
	stack[0] = encodeBool(ok)
	return err
}

func addRefVar(ctx context.Context, h *Host, _ api.Module, caller handle.Instance, stack []uint64) error {
	v := handle.Var(api.DecodeU32(stack[0]))
	ok, err := dispatch.Call(ctx, h.queue, func(t *tracker.Tracker) bool {
		return ownsVar(t, caller, v) && t.AddRefVar(v)
	})
	stack[0] = encodeBool(ok)
	return err
}

func releaseVar(ctx context.Context, h *Host, _ api.Module, caller handle.Instance, stack []uint64) error {
	v := handle.Var(api.DecodeU32(stack[0]))
	ok, err := dispatch.Call(ctx, h.queue, func(t *tracker.Tracker) bool {
		return ownsVar(t, caller, v) && t.UnrefVar(v)
	})
	stack[0] = encodeBool(ok)
	return err
}

func bufferCreate(ctx context.Context, h *Host, _ api.Module, caller handle.Instance, stack []uint64) error {
	size := api.DecodeU32(stack[0])
	if size > MaxBufferSize {
		return fmt.Errorf("buffer size %d exceeds %d", size, MaxBufferSize)
	}
	buf := &Buffer{Data: make([]byte, size)}
	var createErr error
	r, err := dispatch.Call(ctx, h.queue, func(t *tracker.Tracker) handle.Resource {
		r, err := t.CreateResource(buf, caller)
		createErr = err
		return r
	})
	if err == nil {
		err = createErr
	}
	stack[0] = api.EncodeU32(uint32(r))
	return err
}

func bufferSize(ctx context.Context, h *Host, _ api.Module, caller handle.Instance, stack []uint64) error {
	r := handle.Resource(api.DecodeU32(stack[0]))
	size, err := dispatch.Call(ctx, h.queue, func(t *tracker.Tracker) uint32 {
		if !ownsResource(t, caller, r) {
			return 0
		}
		buf, ok := tracker.ResourceAs[*Buffer](t, r)
		if !ok {
			return 0
		}
		return uint32(len(buf.Data))
	})
	stack[0] = api.EncodeU32(size)
	return err
}

func varFromUTF8(ctx context.Context, h *Host, mod api.Module, caller handle.Instance, stack []uint64) error {
	ptr, length := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
	mem := mod.Memory()
	if mem == nil {
		return fmt.Errorf("guest exports no memory")
	}
	data, ok := mem.Read(ptr, length)
	if !ok {
		return fmt.Errorf("string [%d, +%d) out of range of memory size %d", ptr, length, mem.Size())
	}
	sv := &StringVar{Value: string(data)}

	var createErr error
	v, err := dispatch.Call(ctx, h.queue, func(t *tracker.Tracker) handle.Var {
		v, err := t.CreateVar(sv, caller)
		createErr = err
		return v
	})
	if err == nil {
		err = createErr
	}
	stack[0] = api.EncodeU32(uint32(v))
	return err
}

func varLength(ctx context.Context, h *Host, _ api.Module, caller handle.Instance, stack []uint64) error {
	v := handle.Var(api.DecodeU32(stack[0]))
	n, err := dispatch.Call(ctx, h.queue, func(t *tracker.Tracker) uint32 {
		if !ownsVar(t, caller, v) {
			return 0
		}
		sv, ok := tracker.VarAs[*StringVar](t, v)
		if !ok {
			return 0
		}
		return uint32(len(sv.Value))
	})
	stack[0] = api.EncodeU32(n)
	return err
}

func liveObjects(ctx context.Context, h *Host, _ api.Module, caller handle.Instance, stack []uint64) error {
	n, err := dispatch.Call(ctx, h.queue, func(t *tracker.Tracker) uint32 {
		return uint32(t.LiveObjectCount(caller))
	})
	stack[0] = api.EncodeU32(n)
	return err
}
