package rbtree

import (
	"math"

	"github.com/Sumatoshi-tech/rtalign/pkg/safeconv"
)

// Node #0 is the nil sentinel and node #math.MaxUint32 marks the negative limit.
const (
	nilNode           = 0
	negativeLimitNode = math.MaxUint32
)

// Allocator is the node arena shared by one or more trees with the same key type.
type Allocator[K any] struct {
	storage []node[K]
	free    []uint32
}

// NewAllocator creates a new allocator for RBTree's nodes.
func NewAllocator[K any]() *Allocator[K] {
	return &Allocator[K]{}
}

// Size returns the currently allocated size, including free slots.
func (allocator *Allocator[K]) Size() int {
	return len(allocator.storage)
}

// Used returns the number of live nodes.
func (allocator *Allocator[K]) Used() int {
	if len(allocator.storage) == 0 {
		return 0
	}

	return len(allocator.storage) - len(allocator.free) - 1
}

// Reset drops every node. Trees bound to the allocator must be erased or discarded.
func (allocator *Allocator[K]) Reset() {
	allocator.storage = allocator.storage[:0]
	allocator.free = allocator.free[:0]
}

func (allocator *Allocator[K]) malloc() uint32 {
	if n := len(allocator.free); n > 0 {
		idx := allocator.free[n-1]
		allocator.free = allocator.free[:n-1]

		return idx
	}

	if len(allocator.storage) == 0 {
		allocator.storage = append(allocator.storage, node[K]{})
	}

	size := len(allocator.storage)
	if size == negativeLimitNode-1 {
		panic("rbtree allocator exhausted the uint32 node space")
	}

	allocator.storage = append(allocator.storage, node[K]{})

	return safeconv.MustUint32(size)
}

func (allocator *Allocator[K]) release(nodeIdx uint32) {
	if nodeIdx == nilNode {
		panic("node #0 is special and cannot be deallocated")
	}

	allocator.storage[nodeIdx] = node[K]{}
	allocator.free = append(allocator.free, nodeIdx)
}
