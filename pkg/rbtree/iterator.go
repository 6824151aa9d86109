package rbtree

// Iterator allows scanning tree elements in sort order.
//
// Deleting the element an iterator points to invalidates that iterator.
// Other iterators stay valid across inserts and deletes.
type Iterator[K any] struct {
	tree *RBTree[K]
	node uint32
}

// Equal checks for the underlying nodes equality.
func (iter Iterator[K]) Equal(other Iterator[K]) bool {
	return iter.node == other.node
}

// Limit checks if the iterator points beyond the max element in the tree.
func (iter Iterator[K]) Limit() bool {
	return iter.node == nilNode
}

// NegativeLimit checks if the iterator points before the minimum element in the tree.
func (iter Iterator[K]) NegativeLimit() bool {
	return iter.node == negativeLimitNode
}

// Valid reports whether the iterator points at an element.
func (iter Iterator[K]) Valid() bool {
	return !iter.Limit() && !iter.NegativeLimit()
}

// Min checks if the iterator points to the minimum element in the tree.
func (iter Iterator[K]) Min() bool {
	return iter.node == iter.tree.minNode
}

// Max checks if the iterator points to the maximum element in the tree.
func (iter Iterator[K]) Max() bool {
	return iter.node == iter.tree.maxNode
}

// Item returns the current element, or nil past either end.
// The key must not be mutated in a way that changes its order.
func (iter Iterator[K]) Item() *Item[K] {
	if !iter.Valid() {
		return nil
	}

	return &iter.tree.storage()[iter.node].item
}

// Next returns an iterator to the successor.
//
// REQUIRES: !iter.Limit().
func (iter Iterator[K]) Next() Iterator[K] {
	doAssert(!iter.Limit())

	if iter.NegativeLimit() {
		return Iterator[K]{iter.tree, iter.tree.minNode}
	}

	return Iterator[K]{iter.tree, doNext(iter.node, iter.tree.storage())}
}

// Prev returns an iterator to the predecessor.
//
// REQUIRES: !iter.NegativeLimit().
func (iter Iterator[K]) Prev() Iterator[K] {
	doAssert(!iter.NegativeLimit())

	if !iter.Limit() {
		return Iterator[K]{iter.tree, doPrev(iter.node, iter.tree.storage())}
	}

	if iter.tree.maxNode == nilNode {
		return Iterator[K]{iter.tree, negativeLimitNode}
	}

	return Iterator[K]{iter.tree, iter.tree.maxNode}
}
