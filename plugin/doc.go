// Package plugin runs WebAssembly guests as tracker instances.
//
// A Host owns a wazero runtime with one host module (ppb_core by default).
// Guests create and reference tracker objects through the functions in
// Signatures and only ever see numeric handles. Each host function acts on
// handles owned by the calling instance and nothing else.
//
// All tracker access goes through a dispatch.Queue, so Instance.Call may be
// used from many goroutines. It must not be invoked from inside a function
// passed to the queue: the host functions it triggers would wait on the
// worker that is running it.
//
// A guest trap crashes its instance: the tracker releases everything the
// instance owned, and further calls fail with an instance_crashed error.
package plugin
