// Package registry holds the module and instance registries of the tracker.
//
// Modules and instances have independent lifecycles: removing a module
// never touches instances created under it.
//
// An instance moves through these states:
//
//	Active --MarkCrashed--> Crashed --Teardown(false)--> Crashed (empty)
//	Active --Teardown(true)--> removed
//	Crashed --Teardown(true)--> removed
//
// Teardown is the single routine behind both crash handling and normal
// deletion; releaseRecord selects whether the record survives.
package registry
