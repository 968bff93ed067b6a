// Package resource provides the resource table of the plugin tracker.
//
// Each entry pairs a strong reference to a host object with a plugin use
// count. The use count is separate from whatever ownership the host keeps
// on the object, so the plugin can be cut off from an object without the
// object being destroyed:
//
//	table := resource.NewTable(owners)
//
//	h, err := table.Add(obj, inst) // use count 1
//	table.AddRef(h)                // use count 2
//	table.Unref(h)                 // use count 1
//	removed, ok := table.Unref(h)  // removed == true
//
// Unref never drives a count below zero and never removes an entry twice.
// ForceRelease removes an entry regardless of its count; it is reserved for
// instance teardown.
//
// Entries are grouped by owning instance through the Owners interface.
// Lookups fail once the owner is crashed or gone, even while the entry is
// still present.
package resource
