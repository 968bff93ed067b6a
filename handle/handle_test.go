package handle

import (
	stderrors "errors"
	"math"
	"testing"

	"github.com/wippyai/plugin-tracker/errors"
)

func TestAllocator_StartsAtOne(t *testing.T) {
	a := NewAllocator[Resource]("resource")

	if a.Last() != Invalid {
		t.Fatalf("expected Last() == 0 before first Next, got %d", a.Last())
	}
	if h := a.Next(); h != 1 {
		t.Fatalf("expected first handle 1, got %d", h)
	}
	if h := a.Next(); h != 2 {
		t.Fatalf("expected second handle 2, got %d", h)
	}
	if a.Last() != 2 {
		t.Fatalf("expected Last() == 2, got %d", a.Last())
	}
}

func TestAllocator_Unique(t *testing.T) {
	a := NewAllocator[Var]("var")
	seen := make(map[Var]bool)

	for i := 0; i < 10000; i++ {
		h := a.Next()
		if h == Invalid {
			t.Fatal("allocator issued the invalid handle")
		}
		if seen[h] {
			t.Fatalf("handle %d issued twice", h)
		}
		seen[h] = true
	}
}

func TestAllocator_IndependentSpaces(t *testing.T) {
	modules := NewAllocator[Module]("module")
	instances := NewAllocator[Instance]("instance")

	modules.Next()
	modules.Next()

	if h := instances.Next(); h != 1 {
		t.Fatalf("instance space should start at 1 regardless of module space, got %d", h)
	}
}

func TestAllocatorFrom(t *testing.T) {
	tests := []struct {
		name  string
		first uint32
		want  Resource
	}{
		{"zero treated as one", 0, 1},
		{"one", 1, 1},
		{"large", 1 << 20, 1 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAllocatorFrom[Resource]("resource", tt.first)
			if h := a.Next(); h != tt.want {
				t.Errorf("expected %d, got %d", tt.want, h)
			}
		})
	}
}

func TestAllocator_ExhaustionPanics(t *testing.T) {
	a := NewAllocatorFrom[Instance]("instance", math.MaxUint32)

	if h := a.Next(); h != math.MaxUint32 {
		t.Fatalf("expected last usable handle %d, got %d", uint32(math.MaxUint32), h)
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on exhaustion")
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("expected error panic value, got %T", r)
		}
		want := &errors.Error{Phase: errors.PhaseAlloc, Kind: errors.KindHandleExhausted}
		if !stderrors.Is(err, want) {
			t.Fatalf("expected handle_exhausted error, got %v", err)
		}
	}()
	a.Next()
}
