// Package handle defines the four handle spaces used by the tracker and the
// allocator that issues values in them.
//
// Handles are opaque, process-local uint32 values. The value 0 is reserved
// as the invalid handle in every space:
//
//	alloc := handle.NewAllocator[handle.Resource]("resource")
//	h := alloc.Next() // 1
//	h = alloc.Next()  // 2
//
// Values are never reused. Exhausting a space panics, because the
// uniqueness guarantee cannot be kept once the counter wraps.
package handle
