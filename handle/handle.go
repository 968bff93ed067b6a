package handle

import (
	"math"

	"github.com/wippyai/plugin-tracker/errors"
)

// Resource identifies a tracked resource. Resource 0 is reserved and always invalid.
type Resource uint32

// Var identifies a tracked var. Var 0 is reserved and always invalid.
type Var uint32

// Module identifies a registered module. Module 0 is reserved and always invalid.
type Module uint32

// Instance identifies a registered instance. Instance 0 is reserved and always invalid.
type Instance uint32

// Kind is the set of handle spaces an Allocator can serve.
type Kind interface {
	~uint32
}

// Invalid is the reserved handle value shared by every handle space.
const Invalid = 0

// Allocator issues unique, increasing handles for one handle space.
// Not safe for concurrent use.
type Allocator[H Kind] struct {
	name string
	last uint32
}

// NewAllocator creates an allocator whose first handle is 1.
func NewAllocator[H Kind](name string) *Allocator[H] {
	return &Allocator[H]{name: name}
}

// NewAllocatorFrom creates an allocator whose first handle is first.
// A first value of 0 is treated as 1.
func NewAllocatorFrom[H Kind](name string, first uint32) *Allocator[H] {
	if first == 0 {
		first = 1
	}
	return &Allocator[H]{name: name, last: first - 1}
}

// Next returns the next handle. It panics with an *errors.Error of kind
// KindHandleExhausted once the space wraps around, since handing out a value
// twice would break uniqueness.
func (a *Allocator[H]) Next() H {
	if a.last == math.MaxUint32 {
		panic(errors.HandleExhausted(a.name))
	}
	a.last++
	return H(a.last)
}

// Last returns the most recently issued handle, or 0 if none was issued.
func (a *Allocator[H]) Last() H {
	return H(a.last)
}

// Name returns the handle space name.
func (a *Allocator[H]) Name() string {
	return a.name
}
