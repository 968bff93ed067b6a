package plugin

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/plugin-tracker/dispatch"
	"github.com/wippyai/plugin-tracker/errors"
	"github.com/wippyai/plugin-tracker/handle"
	"github.com/wippyai/plugin-tracker/tracker"
)

// DefaultModuleName is the import module name guests use for host functions.
const DefaultModuleName = "ppb_core"

// Options configures a Host.
type Options struct {
	// Logger for the host. Defaults to the package logger.
	Logger *zap.Logger
	// ModuleName is the host module name. Defaults to DefaultModuleName.
	ModuleName string
}

// DefaultOptions returns default host configuration.
func DefaultOptions() Options {
	return Options{ModuleName: DefaultModuleName}
}

// Host runs WebAssembly guests against a tracker. Guests only ever see
// handles; every host call goes through the dispatch queue.
type Host struct {
	runtime    wazero.Runtime
	queue      *dispatch.Queue
	logger     *zap.Logger
	hostModule api.Module
	options    Options
}

// Module is a compiled guest registered with the tracker.
type Module struct {
	host     *Host
	compiled wazero.CompiledModule
	name     string
	handle   handle.Module
	unloaded atomic.Bool
}

// Instance is a running guest registered with the tracker.
type Instance struct {
	module  *Module
	wasm    api.Module
	handle  handle.Instance
	crashed atomic.Bool
	closed  sync.Once
}

// NewHost creates a wazero runtime and instantiates the host module in it.
func NewHost(ctx context.Context, q *dispatch.Queue, opts Options) (*Host, error) {
	if opts.Logger == nil {
		opts.Logger = Logger()
	}
	if opts.ModuleName == "" {
		opts.ModuleName = DefaultModuleName
	}

	h := &Host{
		runtime: wazero.NewRuntime(ctx),
		queue:   q,
		logger:  opts.Logger,
		options: opts,
	}

	mod, err := h.buildHostModule(ctx)
	if err != nil {
		h.runtime.Close(ctx)
		return nil, errors.Wrap(errors.PhasePlugin, errors.KindInvalidInput, err, "instantiate host module")
	}
	h.hostModule = mod
	return h, nil
}

// Close releases the wazero runtime. Instances should be closed first so
// the tracker sees their deletion.
func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

// Load compiles a guest binary and registers it as a tracker module.
func (h *Host) Load(ctx context.Context, name string, wasm []byte) (*Module, error) {
	compiled, err := h.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Wrap(errors.PhasePlugin, errors.KindInvalidInput, err, fmt.Sprintf("compile %q", name))
	}

	m := &Module{host: h, compiled: compiled, name: name}
	m.handle, err = dispatch.Call(ctx, h.queue, func(t *tracker.Tracker) handle.Module {
		return t.AddModule(m)
	})
	if err != nil {
		compiled.Close(ctx)
		return nil, err
	}

	h.logger.Debug("guest module loaded", zap.String("name", name), zap.Uint32("module", uint32(m.handle)))
	return m, nil
}

// Instantiate starts a new guest instance of m. Start functions run with
// the instance already registered, and a trap during start counts as a crash.
func (h *Host) Instantiate(ctx context.Context, m *Module) (*Instance, error) {
	if m.unloaded.Load() {
		return nil, errors.UnknownModule(errors.PhasePlugin, uint32(m.handle))
	}

	var addErr error
	id, err := dispatch.Call(ctx, h.queue, func(t *tracker.Tracker) handle.Instance {
		inst, err := t.AddInstance(m.handle)
		addErr = err
		return inst
	})
	if err != nil {
		return nil, err
	}
	if addErr != nil {
		return nil, addErr
	}

	cfg := wazero.NewModuleConfig().WithName(fmt.Sprintf("%s#%d", m.name, id))
	wasm, err := h.runtime.InstantiateModule(WithInstance(ctx, id), m.compiled, cfg)
	if err != nil {
		h.notify(ctx, id, (*tracker.Tracker).NotifyInstanceCrashed)
		return nil, errors.Trap(uint32(id), "start", err)
	}

	h.logger.Debug("guest instance started", zap.String("module", m.name), zap.Uint32("instance", uint32(id)))
	return &Instance{module: m, wasm: wasm, handle: id}, nil
}

// Unload removes m from the tracker. Running instances are unaffected.
func (h *Host) Unload(ctx context.Context, m *Module) error {
	if !m.unloaded.CompareAndSwap(false, true) {
		return nil
	}
	_, err := dispatch.Call(ctx, h.queue, func(t *tracker.Tracker) bool {
		return t.RemoveModule(m.handle)
	})
	return err
}

func (h *Host) notify(ctx context.Context, id handle.Instance, fn func(*tracker.Tracker, handle.Instance) bool) {
	if err := h.queue.Do(context.WithoutCancel(ctx), func(t *tracker.Tracker) { fn(t, id) }); err != nil {
		h.logger.Warn("instance notification failed", zap.Uint32("instance", uint32(id)), zap.Error(err))
	}
}

// Handle returns the tracker handle of the module.
func (m *Module) Handle() handle.Module {
	return m.handle
}

// Name returns the module name given to Load.
func (m *Module) Name() string {
	return m.name
}

// Handle returns the tracker handle of the instance.
func (i *Instance) Handle() handle.Instance {
	return i.handle
}

// Crashed reports whether the guest has trapped.
func (i *Instance) Crashed() bool {
	return i.crashed.Load()
}

// Call invokes an exported guest function. A trap marks the instance
// crashed and releases everything it owned; later calls fail.
func (i *Instance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	if i.crashed.Load() {
		return nil, errors.InstanceCrashed(errors.PhasePlugin, uint32(i.handle))
	}

	fn := i.wasm.ExportedFunction(name)
	if fn == nil {
		return nil, errors.New(errors.PhasePlugin, errors.KindInvalidInput).
			Handle(uint32(i.handle)).
			Detail("export %q not found", name).
			Build()
	}

	results, err := fn.Call(WithInstance(ctx, i.handle), params...)
	if err != nil {
		i.crashed.Store(true)
		i.module.host.logger.Warn("guest trapped",
			zap.Uint32("instance", uint32(i.handle)),
			zap.String("func", name),
			zap.Error(err))
		i.module.host.notify(ctx, i.handle, (*tracker.Tracker).NotifyInstanceCrashed)
		return nil, errors.Trap(uint32(i.handle), name, err)
	}
	return results, nil
}

// Close shuts the guest down and deletes the instance from the tracker.
func (i *Instance) Close(ctx context.Context) error {
	var err error
	i.closed.Do(func() {
		err = i.wasm.Close(ctx)
		i.module.host.notify(ctx, i.handle, (*tracker.Tracker).NotifyInstanceDeleted)
	})
	return err
}
