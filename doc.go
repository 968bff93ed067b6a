// Package plugintracker tracks the handles that sandboxed plugins use to
// refer to host-side objects.
//
// Plugins never see host objects directly. They hold small integers, and
// the tracker maps each one to its object, its owning instance and a
// plugin-visible use count. When a plugin instance crashes or is deleted,
// everything it owned is released in one pass, whatever the use counts say.
//
// # Architecture Overview
//
//	plugintracker/
//	├── handle/            Typed handle spaces and the allocator
//	├── errors/            Structured error types
//	├── resource/          Resource table (object, owner, use count)
//	├── vars/              Var table and the object bridge cache
//	├── registry/          Module and instance registries, teardown
//	├── tracker/           Tracker facade, options, lifecycle events
//	├── dispatch/          Serial queue that owns a tracker
//	├── plugin/            wazero host exposing tracker calls to guests
//	├── internal/scenario/ YAML scenario scripts
//	└── cmd/trackersim/    CLI and interactive TUI
//
// # Quick Start
//
//	t := tracker.NewWithDefaults()
//	mod := t.AddModule(myModule)
//	inst, _ := t.AddInstance(mod)
//
//	r, _ := t.CreateResource(buf, inst) // use count 1
//	t.AddRefResource(r)                 // 2
//	t.UnrefResource(r)                  // 1
//
//	t.NotifyInstanceDeleted(inst)       // r is gone
//
// A Tracker is single-threaded. To share one between goroutines, hand it
// to a dispatch.Queue:
//
//	q := dispatch.New(t, dispatch.Options{})
//	q.Start(ctx)
//	n, err := dispatch.Call(ctx, q, func(t *tracker.Tracker) int {
//		return t.LiveObjectCount(inst)
//	})
//
// # Running guests
//
//	host, _ := plugin.NewHost(ctx, q, plugin.DefaultOptions())
//	mod, _ := host.Load(ctx, "guest", wasmBytes)
//	inst, _ := host.Instantiate(ctx, mod)
//	inst.Call(ctx, "run")
//
// A trap in the guest crashes the instance and releases its objects.
package plugintracker
