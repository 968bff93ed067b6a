package plugin

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/plugin-tracker/dispatch"
	"github.com/wippyai/plugin-tracker/errors"
	"github.com/wippyai/plugin-tracker/handle"
	"github.com/wippyai/plugin-tracker/tracker"
)

func newHost(t *testing.T) (*Host, *dispatch.Queue) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	q := dispatch.New(tracker.NewWithDefaults(), dispatch.Options{})
	q.Start(ctx)

	h, err := NewHost(ctx, q, DefaultOptions())
	if err != nil {
		cancel()
		t.Fatalf("NewHost failed: %v", err)
	}
	t.Cleanup(func() {
		h.Close(context.Background())
		q.Close()
		cancel()
	})
	return h, q
}

func instantiate(t *testing.T, h *Host, name string, wasm []byte) *Instance {
	t.Helper()
	ctx := context.Background()
	m, err := h.Load(ctx, name, wasm)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	inst, err := h.Instantiate(ctx, m)
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	return inst
}

func call1(t *testing.T, inst *Instance, fn string, params ...uint64) uint32 {
	t.Helper()
	res, err := inst.Call(context.Background(), fn, params...)
	if err != nil {
		t.Fatalf("%s failed: %v", fn, err)
	}
	if len(res) != 1 {
		t.Fatalf("%s returned %d results", fn, len(res))
	}
	return api.DecodeU32(res[0])
}

func useCount(t *testing.T, q *dispatch.Queue, r handle.Resource) (uint32, bool) {
	t.Helper()
	var n uint32
	var ok bool
	if err := q.Do(context.Background(), func(tr *tracker.Tracker) {
		n, ok = tr.ResourceUseCount(r)
	}); err != nil {
		t.Fatal(err)
	}
	return n, ok
}

func TestSignatures(t *testing.T) {
	fns := Functions()
	if len(fns) != len(Signatures) {
		t.Fatalf("expected %d functions, got %d", len(Signatures), len(fns))
	}

	for _, sig := range Signatures {
		if _, ok := hostFuncs[sig.Name]; !ok {
			t.Errorf("no implementation for %s", sig.Name)
		}
	}

	tests := []struct {
		name    string
		want    string
		params  int
		results int
	}{
		{"add_ref_resource", "add_ref_resource: func(resource: u32) -> bool", 1, 1},
		{"var_from_utf8", "var_from_utf8: func(text: string) -> u32", 2, 1},
		{"live_objects", "live_objects: func() -> u32", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, sig := range Signatures {
				if sig.Name != tt.name {
					continue
				}
				if got := sig.String(); got != tt.want {
					t.Errorf("String() = %q, want %q", got, tt.want)
				}
				if got := len(sig.CoreParams()); got != tt.params {
					t.Errorf("CoreParams() has %d entries, want %d", got, tt.params)
				}
				if got := len(sig.CoreParamNames()); got != tt.params {
					t.Errorf("CoreParamNames() has %d entries, want %d", got, tt.params)
				}
				if got := len(sig.CoreResults()); got != tt.results {
					t.Errorf("CoreResults() has %d entries, want %d", got, tt.results)
				}
				return
			}
			t.Fatalf("signature %s not found", tt.name)
		})
	}
}

func TestHost_BufferLifecycle(t *testing.T) {
	h, q := newHost(t)
	inst := instantiate(t, h, "buffers", bufferGuest())

	r := handle.Resource(call1(t, inst, "create", 16))
	if r == handle.Invalid {
		t.Fatal("create returned no handle")
	}
	if n := call1(t, inst, "size", uint64(r)); n != 16 {
		t.Errorf("size = %d, want 16", n)
	}
	if n := call1(t, inst, "live"); n != 1 {
		t.Errorf("live = %d, want 1", n)
	}

	if call1(t, inst, "addref", uint64(r)) != 1 {
		t.Fatal("addref failed")
	}
	if n, _ := useCount(t, q, r); n != 2 {
		t.Errorf("use count = %d, want 2", n)
	}

	buf, err := dispatch.Call(context.Background(), q, func(tr *tracker.Tracker) *Buffer {
		b, _ := tracker.ResourceAs[*Buffer](tr, r)
		return b
	})
	if err != nil || buf == nil {
		t.Fatalf("buffer lookup failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if call1(t, inst, "release", uint64(r)) != 1 {
			t.Fatalf("release %d failed", i)
		}
	}
	if _, ok := useCount(t, q, r); ok {
		t.Error("resource should be gone after last release")
	}
	if released, forced := buf.Released(); !released || forced {
		t.Errorf("Released() = %v, %v; want true, false", released, forced)
	}
	if call1(t, inst, "release", uint64(r)) != 0 {
		t.Error("release of a removed resource should fail")
	}
	if n := call1(t, inst, "live"); n != 0 {
		t.Errorf("live = %d, want 0", n)
	}
}

func TestHost_OversizedBuffer(t *testing.T) {
	h, _ := newHost(t)
	inst := instantiate(t, h, "buffers", bufferGuest())

	if r := call1(t, inst, "create", MaxBufferSize+1); r != 0 {
		t.Errorf("oversized create returned %d", r)
	}
	if n := call1(t, inst, "live"); n != 0 {
		t.Errorf("live = %d, want 0", n)
	}
}

func TestHost_ForeignHandles(t *testing.T) {
	h, q := newHost(t)
	ctx := context.Background()

	m, err := h.Load(ctx, "buffers", bufferGuest())
	if err != nil {
		t.Fatal(err)
	}
	a, err := h.Instantiate(ctx, m)
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Instantiate(ctx, m)
	if err != nil {
		t.Fatal(err)
	}

	r := handle.Resource(call1(t, a, "create", 4))
	if call1(t, b, "addref", uint64(r)) != 0 {
		t.Error("addref on another instance's resource should fail")
	}
	if call1(t, b, "release", uint64(r)) != 0 {
		t.Error("release on another instance's resource should fail")
	}
	if call1(t, b, "size", uint64(r)) != 0 {
		t.Error("size on another instance's resource should report 0")
	}
	if n, ok := useCount(t, q, r); !ok || n != 1 {
		t.Errorf("use count = %d, %v; want 1, true", n, ok)
	}
}

func TestHost_TrapCrashesInstance(t *testing.T) {
	h, q := newHost(t)
	ctx := context.Background()
	inst := instantiate(t, h, "buffers", bufferGuest())

	r := handle.Resource(call1(t, inst, "create", 8))
	buf, _ := dispatch.Call(ctx, q, func(tr *tracker.Tracker) *Buffer {
		b, _ := tracker.ResourceAs[*Buffer](tr, r)
		return b
	})

	_, err := inst.Call(ctx, "crash")
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhasePlugin, Kind: errors.KindTrap}) {
		t.Fatalf("expected trap error, got %v", err)
	}
	if !inst.Crashed() {
		t.Error("instance should be marked crashed")
	}

	if _, ok := useCount(t, q, r); ok {
		t.Error("crash should release the instance's resources")
	}
	if released, _ := buf.Released(); !released {
		t.Error("buffer should see its last reference dropped")
	}

	state, err := dispatch.Call(ctx, q, func(tr *tracker.Tracker) bool {
		rec, ok := tr.LookupInstance(inst.Handle())
		return ok && rec.LiveObjects() == 0
	})
	if err != nil || !state {
		t.Error("crashed instance record should remain, empty")
	}

	_, err = inst.Call(ctx, "live")
	if !stderrors.Is(err, errors.InstanceCrashed(errors.PhasePlugin, 0)) {
		t.Errorf("expected instance_crashed, got %v", err)
	}
}

func TestHost_StringVars(t *testing.T) {
	h, q := newHost(t)
	ctx := context.Background()
	inst := instantiate(t, h, "strings", stringGuest())

	v := handle.Var(call1(t, inst, "make"))
	if v == handle.Invalid {
		t.Fatal("make returned no handle")
	}
	got, err := dispatch.Call(ctx, q, func(tr *tracker.Tracker) string {
		sv, _ := tracker.VarAs[*StringVar](tr, v)
		if sv == nil {
			return ""
		}
		return sv.Value
	})
	if err != nil || got != "hello" {
		t.Errorf("var value = %q, %v; want hello", got, err)
	}
	if n := call1(t, inst, "length", uint64(v)); n != 5 {
		t.Errorf("length = %d, want 5", n)
	}

	if bad := call1(t, inst, "bad"); bad != 0 {
		t.Errorf("out of range string returned handle %d", bad)
	}
}

func TestInstance_Close(t *testing.T) {
	h, q := newHost(t)
	ctx := context.Background()
	inst := instantiate(t, h, "buffers", bufferGuest())

	r := handle.Resource(call1(t, inst, "create", 8))

	if err := inst.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := inst.Close(ctx); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	known, err := dispatch.Call(ctx, q, func(tr *tracker.Tracker) bool {
		_, ok := tr.LookupInstance(inst.Handle())
		return ok
	})
	if err != nil || known {
		t.Error("closed instance should be forgotten")
	}
	if _, ok := useCount(t, q, r); ok {
		t.Error("close should release the instance's resources")
	}
}

func TestInstance_MissingExport(t *testing.T) {
	h, _ := newHost(t)
	inst := instantiate(t, h, "buffers", bufferGuest())

	_, err := inst.Call(context.Background(), "nope")
	if !stderrors.Is(err, errors.InvalidInput(errors.PhasePlugin, "")) {
		t.Errorf("expected invalid_input, got %v", err)
	}
	if inst.Crashed() {
		t.Error("missing export must not crash the instance")
	}
}

func TestHost_Unload(t *testing.T) {
	h, q := newHost(t)
	ctx := context.Background()

	m, err := h.Load(ctx, "buffers", bufferGuest())
	if err != nil {
		t.Fatal(err)
	}
	inst, err := h.Instantiate(ctx, m)
	if err != nil {
		t.Fatal(err)
	}

	if err := h.Unload(ctx, m); err != nil {
		t.Fatalf("Unload failed: %v", err)
	}
	known, _ := dispatch.Call(ctx, q, func(tr *tracker.Tracker) bool {
		_, ok := tr.GetModule(m.Handle())
		return ok
	})
	if known {
		t.Error("module should be removed")
	}

	// Running instances outlive their module.
	if n := call1(t, inst, "create", 1); n == 0 {
		t.Error("instance should keep working after unload")
	}

	if _, err := h.Instantiate(ctx, m); !stderrors.Is(err, errors.UnknownModule(errors.PhasePlugin, 0)) {
		t.Errorf("expected unknown_module, got %v", err)
	}
}

func TestHost_InstantiateFailure(t *testing.T) {
	h, q := newHost(t)
	ctx := context.Background()

	m, err := h.Load(ctx, "unlinked", unlinkedGuest())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Instantiate(ctx, m); err == nil {
		t.Fatal("expected link failure")
	}

	stats, _ := dispatch.Call(ctx, q, func(tr *tracker.Tracker) tracker.Stats {
		return tr.Stats()
	})
	if stats.Resources != 0 || stats.Vars != 0 {
		t.Errorf("failed instantiate left objects behind: %+v", stats)
	}
}

func TestHost_LoadInvalid(t *testing.T) {
	h, _ := newHost(t)
	_, err := h.Load(context.Background(), "junk", []byte("not wasm"))
	if !stderrors.Is(err, errors.InvalidInput(errors.PhasePlugin, "")) {
		t.Errorf("expected invalid_input, got %v", err)
	}
}

func TestHostFunction_WithoutInstance(t *testing.T) {
	h, _ := newHost(t)

	stack := []uint64{42}
	h.wrap("live_objects", liveObjects)(context.Background(), nil, stack)
	if stack[0] != 0 {
		t.Errorf("expected 0 without a calling instance, got %d", stack[0])
	}

	stack = []uint64{7}
	h.wrap("add_ref_resource", addRefResource)(context.Background(), nil, stack)
	if stack[0] != 0 {
		t.Errorf("expected 0 without a calling instance, got %d", stack[0])
	}
}

func TestContext(t *testing.T) {
	if _, ok := InstanceFromContext(context.Background()); ok {
		t.Error("empty context should carry no instance")
	}
	if _, ok := InstanceFromContext(WithInstance(context.Background(), handle.Invalid)); ok {
		t.Error("invalid handle should not count as an instance")
	}
	if inst, ok := InstanceFromContext(WithInstance(context.Background(), 7)); !ok || inst != 7 {
		t.Errorf("got %d, %v", inst, ok)
	}
}
