package types

import (
	"fmt"
	"sync"

	"fortio.org/safecast"
)

// TypeID uniquely identifies a type inside the registry.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// descriptor is the structural key a type is interned under.
type descriptor struct {
	Kind   Kind
	Width  uint32
	Float  bool
	Signed bool
	Elem   TypeID
	Shape  string
	Lanes  uint32
	Slot   uint32 // nominal structures only
}

// Registry provides stable TypeIDs by interning structural descriptors.
// Two descriptors that are structurally equal always get the same ID;
// structures are nominal and get a fresh slot per definition.
type Registry struct {
	mu      sync.Mutex
	index   map[descriptor]TypeID
	count   uint32
	structs uint32
}

// NewRegistry returns an empty registry. ID 0 is reserved for NoTypeID.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[descriptor]TypeID, 64),
	}
}

// registry backs every constructor in this package.
var registry = NewRegistry()

func (r *Registry) intern(d descriptor) TypeID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.index[d]; ok {
		return id
	}
	r.count++
	id := TypeID(r.count)
	r.index[d] = id
	return id
}

// nominal allocates a fresh slot for a named structure.
func (r *Registry) nominal() uint32 {
	r.mu.Lock()
	r.structs++
	slot := r.structs
	r.mu.Unlock()
	return slot
}

// Len returns the number of interned types.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := safecast.Conv[int](r.count)
	if err != nil {
		panic(fmt.Errorf("registry size overflow: %w", err))
	}
	return n
}

// IdentityKey returns the opaque comparable identity of t.
func IdentityKey(t Type) TypeID {
	if t == nil {
		return NoTypeID
	}
	return t.ID()
}

// SameType reports whether a and b denote the same canonical type.
func SameType(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID() == b.ID()
}

// EqualTypes reports whether two type lists are pairwise identical.
func EqualTypes(left, right []Type) bool {
	if len(left) != len(right) {
		return false
	}
	for i, l := range left {
		if !SameType(l, right[i]) {
			return false
		}
	}
	return true
}
