// Package rbtree implements an arena-backed red-black tree ordered by a caller-supplied comparator.
//
// Nodes live in a shared Allocator and are addressed by uint32 indexes, so a tree
// holds no pointers besides its allocator and rebalancing never allocates.
package rbtree

import "iter"

// Item is the object stored in each tree node.
type Item[K any] struct {
	Key   K
	Value uint32
}

// Compare orders keys: negative if a < b, zero if equal, positive if a > b.
type Compare[K any] func(a, b K) int

// RBTree is a red-black tree with an API similar to C++ STL's map.
type RBTree[K any] struct {
	allocator *Allocator[K]
	compare   Compare[K]

	root uint32

	// The minimum and maximum nodes under the tree.
	minNode, maxNode uint32

	count int
}

// NewRBTree creates a new red-black tree that stores its nodes in allocator.
func NewRBTree[K any](allocator *Allocator[K], compare Compare[K]) *RBTree[K] {
	return &RBTree[K]{allocator: allocator, compare: compare}
}

func (tree *RBTree[K]) storage() []node[K] {
	return tree.allocator.storage
}

// Allocator returns the bound nodes allocator.
func (tree *RBTree[K]) Allocator() *Allocator[K] {
	return tree.allocator
}

// Len returns the number of elements in the tree.
func (tree *RBTree[K]) Len() int {
	return tree.count
}

// Erase removes all the nodes from the tree.
func (tree *RBTree[K]) Erase() {
	nodes := make([]uint32, 0, tree.count)

	for it := tree.Min(); !it.Limit(); it = it.Next() {
		nodes = append(nodes, it.node)
	}

	for _, nd := range nodes {
		tree.allocator.release(nd)
	}

	tree.root = nilNode
	tree.minNode = nilNode
	tree.maxNode = nilNode
	tree.count = 0
}

// Get returns the value stored under key, or nil if absent.
func (tree *RBTree[K]) Get(key K) *uint32 {
	nodeIdx, exact := tree.findGE(key)
	if exact {
		return &tree.storage()[nodeIdx].item.Value
	}

	return nil
}

// Min returns an iterator to the minimum item, or Limit() if the tree is empty.
func (tree *RBTree[K]) Min() Iterator[K] {
	return Iterator[K]{tree, tree.minNode}
}

// Max returns an iterator to the maximum item, or NegativeLimit() if the tree is empty.
func (tree *RBTree[K]) Max() Iterator[K] {
	if tree.maxNode == nilNode {
		return Iterator[K]{tree, negativeLimitNode}
	}

	return Iterator[K]{tree, tree.maxNode}
}

// Limit creates an iterator that points beyond the maximum item in the tree.
func (tree *RBTree[K]) Limit() Iterator[K] {
	return Iterator[K]{tree, nilNode}
}

// NegativeLimit creates an iterator that points before the minimum item in the tree.
func (tree *RBTree[K]) NegativeLimit() Iterator[K] {
	return Iterator[K]{tree, negativeLimitNode}
}

// FindGE returns an iterator to the smallest element >= key, or Limit().
func (tree *RBTree[K]) FindGE(key K) Iterator[K] {
	nodeIdx, _ := tree.findGE(key)

	return Iterator[K]{tree, nodeIdx}
}

// FindLE returns an iterator to the largest element <= key, or NegativeLimit().
func (tree *RBTree[K]) FindLE(key K) Iterator[K] {
	nodeIdx, exact := tree.findGE(key)
	if exact {
		return Iterator[K]{tree, nodeIdx}
	}

	if nodeIdx != nilNode {
		return Iterator[K]{tree, doPrev(nodeIdx, tree.storage())}
	}

	return tree.Max()
}

// All yields the items in ascending key order.
// The tree must not be modified during the iteration.
func (tree *RBTree[K]) All() iter.Seq[Item[K]] {
	return func(yield func(Item[K]) bool) {
		for it := tree.Min(); !it.Limit(); it = it.Next() {
			if !yield(*it.Item()) {
				return
			}
		}
	}
}

// Insert adds item. If an equal key is already present the tree is unchanged
// and false is returned along with an iterator to the existing element.
func (tree *RBTree[K]) Insert(item Item[K]) (bool, Iterator[K]) {
	nodeIdx, inserted := tree.doInsert(item)
	if !inserted {
		return false, Iterator[K]{tree, nodeIdx}
	}

	tree.rebalanceAfterInsert(nodeIdx)

	return true, Iterator[K]{tree, nodeIdx}
}

// DeleteWithKey deletes the item with the given key. Returns true iff the item was found.
func (tree *RBTree[K]) DeleteWithKey(key K) bool {
	nodeIdx, exact := tree.findGE(key)
	if exact {
		tree.doDelete(nodeIdx)

		return true
	}

	return false
}

// DeleteWithIterator deletes the current item.
//
// REQUIRES: it.Valid().
func (tree *RBTree[K]) DeleteWithIterator(it Iterator[K]) {
	doAssert(it.Valid())
	tree.doDelete(it.node)
}

func doAssert(condition bool) {
	if !condition {
		panic("rbtree internal assertion failed")
	}
}
