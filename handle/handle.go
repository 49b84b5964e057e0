// Package handle provides packed, generation-stamped references into a
// storage.FixedStorage[Tag, T] slot array. A Handle is a value type: two small
// integers packed into a single uint32, cheap to copy and compare, safe to
// hold across frames without pinning the object it refers to.
package handle

import "fmt"

const (
	// IndexBits is the number of low bits reserved for the slot index.
	IndexBits = 24
	// GenerationBits is the number of high bits reserved for the generation.
	GenerationBits = 32 - IndexBits

	// MaxIndex is the largest representable index and doubles as the
	// sentinel index value used by Invalid.
	MaxIndex = 1<<IndexBits - 1
	// MaxGeneration is the largest representable generation before it
	// wraps back to zero.
	MaxGeneration = 1<<GenerationBits - 1

	indexMask = uint32(1)<<IndexBits - 1
)

// Handle is a packed (index, generation) pair identifying a slot in a
// storage.FixedStorage. T is a phantom type parameter: it never appears
// in the runtime representation, but it keeps Handle[Job] and
// Handle[SyncPoint] distinct types at compile time even though both pack
// down to the same uint32 layout.
type Handle[T any] struct {
	packed uint32
}

// Invalid returns the reserved invalid handle for T. Its index is MaxIndex,
// which a FixedStorage[T] never assigns to a live slot.
func Invalid[T any]() Handle[T] {
	return Handle[T]{packed: packed(MaxIndex, 0)}
}

// New builds a handle from an explicit index and generation. index must be
// <= MaxIndex and generation is truncated to GenerationBits.
func New[T any](index, generation uint32) Handle[T] {
	return Handle[T]{packed: packed(index, generation)}
}

// NextGeneration builds the handle that a slot will carry the next time it
// is allocated at the given index, advancing currentGeneration by one and
// wrapping at MaxGeneration back to zero (zero is a valid, ordinary
// generation; only the index MaxIndex is reserved as "invalid").
func NextGeneration[T any](index, currentGeneration uint32) Handle[T] {
	next := currentGeneration + 1
	if next > MaxGeneration {
		next = 0
	}
	return New[T](index, next)
}

// FromPacked reconstructs a handle from its packed uint32 representation,
// as produced by Packed. Used when a handle crosses a serialization
// boundary (e.g. stored in an atomic.Uint32 inline continuation slot).
func FromPacked[T any](packed uint32) Handle[T] {
	return Handle[T]{packed: packed}
}

func packed(index, generation uint32) uint32 {
	return (index & indexMask) | (generation << IndexBits)
}

// IsValid reports whether h is anything other than the reserved Invalid
// handle. It does not imply the slot h refers to is still live; see
// storage.FixedStorage.IsValid for that check.
func (h Handle[T]) IsValid() bool {
	return h.Index() != MaxIndex
}

// Index returns the slot index this handle refers to.
func (h Handle[T]) Index() uint32 {
	return h.packed & indexMask
}

// Generation returns the generation this handle was stamped with.
func (h Handle[T]) Generation() uint32 {
	return h.packed >> IndexBits
}

// Packed returns the raw packed representation of h.
func (h Handle[T]) Packed() uint32 {
	return h.packed
}

// String renders the handle as "index:generation", or "invalid" for the
// reserved invalid handle.
func (h Handle[T]) String() string {
	if !h.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%d:%d", h.Index(), h.Generation())
}
