// Package collection implements the struct-of-arrays storage used by params
// and states. A Collection is a contiguous typed buffer tagged with the
// memory space it lives in and whether it owns its data or borrows a view of
// another collection's data.
package collection

import (
	"unsafe"

	"github.com/celeritas-project/celer-engine/internal/assert"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// Collection is a typed array with ownership and residency tags.
type Collection[T any] struct {
	data  []T
	mem   domain.MemSpace
	owner domain.Ownership
}

// New returns an empty owning collection in the given memory space.
func New[T any](mem domain.MemSpace) Collection[T] {
	return Collection[T]{mem: mem, owner: domain.OwnershipValue}
}

// FromSlice returns an owning collection holding a copy of values.
func FromSlice[T any](mem domain.MemSpace, values []T) Collection[T] {
	data := make([]T, len(values))
	copy(data, values)
	return Collection[T]{data: data, mem: mem, owner: domain.OwnershipValue}
}

// Resize reallocates an owning collection to n zero-valued elements.
func (c *Collection[T]) Resize(n int) {
	assert.Expect(c.owner == domain.OwnershipValue, "resize requires value ownership")
	assert.Expect(n >= 0, "n >= 0")
	c.data = make([]T, n)
}

// Ref returns a borrowing view of the same data.
func (c Collection[T]) Ref() Collection[T] {
	return Collection[T]{data: c.data, mem: c.mem, owner: domain.OwnershipReference}
}

// Len is the number of elements.
func (c Collection[T]) Len() int { return len(c.data) }

// Empty reports whether the collection has no elements.
func (c Collection[T]) Empty() bool { return len(c.data) == 0 }

// MemSpace is where the data resides.
func (c Collection[T]) MemSpace() domain.MemSpace { return c.mem }

// Ownership is whether the collection owns its data.
func (c Collection[T]) Ownership() domain.Ownership { return c.owner }

// At returns element i.
func (c Collection[T]) At(i int) T { return c.data[i] }

// Set assigns element i.
func (c Collection[T]) Set(i int, v T) { c.data[i] = v }

// Ptr returns a pointer to element i.
func (c Collection[T]) Ptr(i int) *T { return &c.data[i] }

// Data exposes the backing slice to kernels.
func (c Collection[T]) Data() []T { return c.data }

// Bytes is the storage footprint of the elements.
func (c Collection[T]) Bytes() uint64 {
	var zero T
	return uint64(len(c.data)) * uint64(unsafe.Sizeof(zero))
}

// Fill assigns v to every element.
func Fill[T any](c Collection[T], v T) {
	for i := range c.data {
		c.data[i] = v
	}
}

// FillSequence assigns each element its own index.
func FillSequence[T ~int | ~int32 | ~int64 | ~uint32](c Collection[T]) {
	for i := range c.data {
		c.data[i] = T(i)
	}
}

// Copy copies src into dst, which must have the same length. Copies across
// memory spaces are allowed; this is the only host/device transfer path.
func Copy[T any](dst, src Collection[T]) {
	assert.Expect(dst.Len() == src.Len(), "dst.Len() == src.Len()")
	copy(dst.data, src.data)
}
