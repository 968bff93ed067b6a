// Package tracker provides the Tracker façade over the resource and var
// tables and the module and instance registries.
//
// The tracker assigns handles to plugin-visible objects and keeps two
// counts apart: the host's own references (plain Go references) and the
// plugin use count, which the plugin drives through AddRef and Unref.
// The plugin can never force an object to be freed while the host uses it,
// and cannot release an entry twice:
//
//	t := tracker.NewWithDefaults()
//
//	mod := t.AddModule(pluginModule)
//	inst, _ := t.AddInstance(mod)
//
//	res, _ := t.CreateResource(buffer, inst)
//	t.AddRefResource(res)
//	t.UnrefResource(res)
//
//	obj, ok := t.GetResource(res)
//
// # Teardown
//
// When a plugin crashes, NotifyInstanceCrashed force-releases everything
// the instance owns and keeps a crashed record. NotifyInstanceDeleted does
// the same and forgets the instance. Removing a module never cascades to
// its instances.
//
// # Threading
//
// A Tracker performs no locking. Drive it from one goroutine, or wrap it
// in a dispatch.Queue.
//
// # Observers
//
// Subscribe to lifecycle events:
//
//	cancel := t.Subscribe(tracker.ObserverFunc(func(e tracker.Event) {
//	    log.Printf("%s resource=%d instance=%d", e.Type, e.Resource, e.Instance)
//	}))
//	defer cancel()
package tracker
