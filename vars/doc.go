// Package vars provides the var table and the object bridge cache.
//
// Vars are value-like counterparts of resources: each entry pairs a value
// with a plugin use count and belongs to exactly one instance. A var that
// wraps an external object can be registered in the bridge cache, keyed by
// (instance, object), so the same object seen twice from one instance maps
// to one var:
//
//	h, created, err := table.FindOrCreateBridge(inst, obj, func() (any, error) {
//	    return newObjectVar(obj), nil
//	})
//
// The cache stores handles only. Every path that removes a var, normal
// release or forced teardown, also drops its cache registration.
package vars
