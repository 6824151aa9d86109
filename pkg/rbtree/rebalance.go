package rbtree

const (
	red   = false
	black = true
)

type node[K any] struct {
	item                Item[K]
	parent, left, right uint32
	color               bool
}

func colorOf[K any](nodeIdx uint32, nodes []node[K]) bool {
	if nodeIdx == nilNode {
		return black
	}

	return nodes[nodeIdx].color
}

func isLeftChild[K any](nodeIdx uint32, nodes []node[K]) bool {
	return nodeIdx == nodes[nodes[nodeIdx].parent].left
}

func isRightChild[K any](nodeIdx uint32, nodes []node[K]) bool {
	return nodeIdx == nodes[nodes[nodeIdx].parent].right
}

func sibling[K any](nodeIdx uint32, nodes []node[K]) uint32 {
	doAssert(nodes[nodeIdx].parent != nilNode)

	if isLeftChild(nodeIdx, nodes) {
		return nodes[nodes[nodeIdx].parent].right
	}

	return nodes[nodes[nodeIdx].parent].left
}

// doNext returns the in-order successor, or nilNode.
func doNext[K any](nodeIdx uint32, nodes []node[K]) uint32 {
	if nodes[nodeIdx].right != nilNode {
		cursor := nodes[nodeIdx].right

		for nodes[cursor].left != nilNode {
			cursor = nodes[cursor].left
		}

		return cursor
	}

	for nodeIdx != nilNode {
		parentIdx := nodes[nodeIdx].parent
		if parentIdx == nilNode {
			return nilNode
		}

		if isLeftChild(nodeIdx, nodes) {
			return parentIdx
		}

		nodeIdx = parentIdx
	}

	return nilNode
}

// doPrev returns the in-order predecessor, or negativeLimitNode.
func doPrev[K any](nodeIdx uint32, nodes []node[K]) uint32 {
	if nodes[nodeIdx].left != nilNode {
		return maxPredecessor(nodeIdx, nodes)
	}

	for nodeIdx != nilNode {
		parentIdx := nodes[nodeIdx].parent
		if parentIdx == nilNode {
			break
		}

		if isRightChild(nodeIdx, nodes) {
			return parentIdx
		}

		nodeIdx = parentIdx
	}

	return negativeLimitNode
}

func maxPredecessor[K any](nodeIdx uint32, nodes []node[K]) uint32 {
	doAssert(nodes[nodeIdx].left != nilNode)

	cursor := nodes[nodeIdx].left

	for nodes[cursor].right != nilNode {
		cursor = nodes[cursor].right
	}

	return cursor
}

func (tree *RBTree[K]) recomputeMinNode() {
	nodes := tree.storage()
	tree.minNode = tree.root

	if tree.minNode != nilNode {
		for nodes[tree.minNode].left != nilNode {
			tree.minNode = nodes[tree.minNode].left
		}
	}
}

func (tree *RBTree[K]) recomputeMaxNode() {
	nodes := tree.storage()
	tree.maxNode = tree.root

	if tree.maxNode != nilNode {
		for nodes[tree.maxNode].right != nilNode {
			tree.maxNode = nodes[tree.maxNode].right
		}
	}
}

// doInsert places item as a new leaf. When an equal key exists it returns
// that node and false.
func (tree *RBTree[K]) doInsert(item Item[K]) (uint32, bool) {
	if tree.root == nilNode {
		nodeIdx := tree.allocator.malloc()
		tree.storage()[nodeIdx].item = item
		tree.root = nodeIdx
		tree.minNode = nodeIdx
		tree.maxNode = nodeIdx
		tree.count++

		return nodeIdx, true
	}

	parent := tree.root
	nodes := tree.storage()

	for {
		parentNode := nodes[parent]
		comp := tree.compare(item.Key, parentNode.item.Key)

		if comp == 0 {
			return parent, false
		}

		next := parentNode.right
		if comp < 0 {
			next = parentNode.left
		}

		if next != nilNode {
			parent = next

			continue
		}

		nodeIdx := tree.allocator.malloc()
		nodes = tree.storage()
		nodes[nodeIdx].item = item
		nodes[nodeIdx].parent = parent

		if comp < 0 {
			nodes[parent].left = nodeIdx

			if parent == tree.minNode {
				tree.minNode = nodeIdx
			}
		} else {
			nodes[parent].right = nodeIdx

			if parent == tree.maxNode {
				tree.maxNode = nodeIdx
			}
		}

		tree.count++

		return nodeIdx, true
	}
}

// findGE finds the first node whose key >= key. The second result is true iff
// the keys are equal. Returns (nilNode, false) if every key is < key.
func (tree *RBTree[K]) findGE(key K) (uint32, bool) {
	nodes := tree.storage()
	nodeIdx := tree.root

	for {
		if nodeIdx == nilNode {
			return nilNode, false
		}

		comp := tree.compare(key, nodes[nodeIdx].item.Key)

		switch {
		case comp == 0:
			return nodeIdx, true
		case comp < 0:
			if nodes[nodeIdx].left == nilNode {
				return nodeIdx, false
			}

			nodeIdx = nodes[nodeIdx].left
		default:
			if nodes[nodeIdx].right == nilNode {
				succ := doNext(nodeIdx, nodes)
				if succ == nilNode {
					return nilNode, false
				}

				return succ, tree.compare(key, nodes[succ].item.Key) == 0
			}

			nodeIdx = nodes[nodeIdx].right
		}
	}
}

//nolint:gocognit // RB-tree insertion fixup covers every uncle/parent case.
func (tree *RBTree[K]) rebalanceAfterInsert(nodeIdx uint32) {
	nodes := tree.storage()
	nodes[nodeIdx].color = red

	for {
		// The root is always black.
		if nodes[nodeIdx].parent == nilNode {
			nodes[nodeIdx].color = black

			return
		}

		// A black parent keeps every property intact.
		if nodes[nodes[nodeIdx].parent].color == black {
			return
		}

		grandparent := nodes[nodes[nodeIdx].parent].parent

		var uncle uint32
		if isLeftChild(nodes[nodeIdx].parent, nodes) {
			uncle = nodes[grandparent].right
		} else {
			uncle = nodes[grandparent].left
		}

		// Red uncle: recolor and continue from the grandparent.
		if uncle != nilNode && nodes[uncle].color == red {
			nodes[nodes[nodeIdx].parent].color = black
			nodes[uncle].color = black
			nodes[grandparent].color = red
			nodeIdx = grandparent

			continue
		}

		// Black uncle with an inner child: rotate it outward first.
		if isRightChild(nodeIdx, nodes) && isLeftChild(nodes[nodeIdx].parent, nodes) {
			tree.rotateLeft(nodes[nodeIdx].parent)
			nodeIdx = nodes[nodeIdx].left

			continue
		}

		if isLeftChild(nodeIdx, nodes) && isRightChild(nodes[nodeIdx].parent, nodes) {
			tree.rotateRight(nodes[nodeIdx].parent)
			nodeIdx = nodes[nodeIdx].right

			continue
		}

		nodes[nodes[nodeIdx].parent].color = black
		nodes[grandparent].color = red

		if isLeftChild(nodeIdx, nodes) {
			tree.rotateRight(grandparent)
		} else {
			tree.rotateLeft(grandparent)
		}

		return
	}
}

func (tree *RBTree[K]) doDelete(nodeIdx uint32) {
	nodes := tree.storage()

	if nodes[nodeIdx].left != nilNode && nodes[nodeIdx].right != nilNode {
		tree.swapNodes(nodeIdx, maxPredecessor(nodeIdx, nodes))
	}

	doAssert(nodes[nodeIdx].left == nilNode || nodes[nodeIdx].right == nilNode)

	child := nodes[nodeIdx].right
	if child == nilNode {
		child = nodes[nodeIdx].left
	}

	if nodes[nodeIdx].color == black {
		nodes[nodeIdx].color = colorOf(child, nodes)
		tree.deleteFixup(nodeIdx)
	}

	tree.replaceNode(nodeIdx, child)

	if nodes[nodeIdx].parent == nilNode && child != nilNode {
		nodes[child].color = black
	}

	tree.allocator.release(nodeIdx)
	tree.count--

	if tree.count == 0 {
		tree.minNode = nilNode
		tree.maxNode = nilNode

		return
	}

	if tree.minNode == nodeIdx {
		tree.recomputeMinNode()
	}

	if tree.maxNode == nodeIdx {
		tree.recomputeMaxNode()
	}
}

// swapNodes moves pred into nodeIdx's position and nodeIdx into pred's.
// Items stay attached to their nodes, so live iterators are not disturbed.
//
//nolint:gocognit,nestif // every parent/child pointer pair needs relinking.
func (tree *RBTree[K]) swapNodes(nodeIdx, pred uint32) {
	doAssert(pred != nodeIdx)

	nodes := tree.storage()
	isLeft := isLeftChild(pred, nodes)
	tmp := nodes[pred]

	tree.replaceNode(nodeIdx, pred)
	nodes[pred].color = nodes[nodeIdx].color

	if tmp.parent == nodeIdx {
		if isLeft {
			nodes[pred].left = nodeIdx
			nodes[pred].right = nodes[nodeIdx].right

			if nodes[pred].right != nilNode {
				nodes[nodes[pred].right].parent = pred
			}
		} else {
			nodes[pred].left = nodes[nodeIdx].left

			if nodes[pred].left != nilNode {
				nodes[nodes[pred].left].parent = pred
			}

			nodes[pred].right = nodeIdx
		}

		nodes[nodeIdx].parent = pred
	} else {
		nodes[pred].left = nodes[nodeIdx].left

		if nodes[pred].left != nilNode {
			nodes[nodes[pred].left].parent = pred
		}

		nodes[pred].right = nodes[nodeIdx].right

		if nodes[pred].right != nilNode {
			nodes[nodes[pred].right].parent = pred
		}

		if isLeft {
			nodes[tmp.parent].left = nodeIdx
		} else {
			nodes[tmp.parent].right = nodeIdx
		}

		nodes[nodeIdx].parent = tmp.parent
	}

	nodes[nodeIdx].left = tmp.left
	if nodes[nodeIdx].left != nilNode {
		nodes[nodes[nodeIdx].left].parent = nodeIdx
	}

	nodes[nodeIdx].right = tmp.right
	if nodes[nodeIdx].right != nilNode {
		nodes[nodes[nodeIdx].right].parent = nodeIdx
	}

	nodes[nodeIdx].color = tmp.color
}

func (tree *RBTree[K]) deleteFixup(nodeIdx uint32) {
	nodes := tree.storage()

	for nodes[nodeIdx].parent != nilNode {
		if colorOf(sibling(nodeIdx, nodes), nodes) == red {
			nodes[nodes[nodeIdx].parent].color = red
			nodes[sibling(nodeIdx, nodes)].color = black

			if isLeftChild(nodeIdx, nodes) {
				tree.rotateLeft(nodes[nodeIdx].parent)
			} else {
				tree.rotateRight(nodes[nodeIdx].parent)
			}
		}

		sib := sibling(nodeIdx, nodes)
		blackNephews := colorOf(nodes[sib].left, nodes) == black && colorOf(nodes[sib].right, nodes) == black

		if colorOf(nodes[nodeIdx].parent, nodes) == black && colorOf(sib, nodes) == black && blackNephews {
			nodes[sib].color = red
			nodeIdx = nodes[nodeIdx].parent

			continue
		}

		if colorOf(nodes[nodeIdx].parent, nodes) == red && colorOf(sib, nodes) == black && blackNephews {
			nodes[sib].color = red
			nodes[nodes[nodeIdx].parent].color = black
		} else {
			tree.deleteRotate(nodeIdx)
		}

		return
	}
}

func (tree *RBTree[K]) deleteRotate(nodeIdx uint32) {
	nodes := tree.storage()
	sib := sibling(nodeIdx, nodes)

	if isLeftChild(nodeIdx, nodes) && colorOf(sib, nodes) == black &&
		colorOf(nodes[sib].left, nodes) == red && colorOf(nodes[sib].right, nodes) == black {
		nodes[sib].color = red
		nodes[nodes[sib].left].color = black
		tree.rotateRight(sib)
	} else if isRightChild(nodeIdx, nodes) && colorOf(sib, nodes) == black &&
		colorOf(nodes[sib].right, nodes) == red && colorOf(nodes[sib].left, nodes) == black {
		nodes[sib].color = red
		nodes[nodes[sib].right].color = black
		tree.rotateLeft(sib)
	}

	sib = sibling(nodeIdx, nodes)
	parent := nodes[nodeIdx].parent

	nodes[sib].color = colorOf(parent, nodes)
	nodes[parent].color = black

	if isLeftChild(nodeIdx, nodes) {
		doAssert(colorOf(nodes[sib].right, nodes) == red)
		nodes[nodes[sib].right].color = black
		tree.rotateLeft(parent)
	} else {
		doAssert(colorOf(nodes[sib].left, nodes) == red)
		nodes[nodes[sib].left].color = black
		tree.rotateRight(parent)
	}
}

func (tree *RBTree[K]) replaceNode(oldn, newn uint32) {
	nodes := tree.storage()

	switch {
	case nodes[oldn].parent == nilNode:
		tree.root = newn
	case isLeftChild(oldn, nodes):
		nodes[nodes[oldn].parent].left = newn
	default:
		nodes[nodes[oldn].parent].right = newn
	}

	if newn != nilNode {
		nodes[newn].parent = nodes[oldn].parent
	}
}

// rotate performs a left rotation around pivot when left is true, a right one otherwise.
//
//	    X                Y
//	  A   Y    <=>     X   C
//	    B   C        A   B
//
//nolint:dupword // ASCII diagram.
func (tree *RBTree[K]) rotate(pivot uint32, left bool) {
	nodes := tree.storage()

	var child, inner uint32

	if left {
		child = nodes[pivot].right
		inner = nodes[child].left
		nodes[pivot].right = inner
	} else {
		child = nodes[pivot].left
		inner = nodes[child].right
		nodes[pivot].left = inner
	}

	if inner != nilNode {
		nodes[inner].parent = pivot
	}

	nodes[child].parent = nodes[pivot].parent

	switch {
	case nodes[pivot].parent == nilNode:
		tree.root = child
	case isLeftChild(pivot, nodes):
		nodes[nodes[pivot].parent].left = child
	default:
		nodes[nodes[pivot].parent].right = child
	}

	if left {
		nodes[child].left = pivot
	} else {
		nodes[child].right = pivot
	}

	nodes[pivot].parent = child
}

func (tree *RBTree[K]) rotateLeft(nodeIdx uint32) {
	tree.rotate(nodeIdx, true)
}

func (tree *RBTree[K]) rotateRight(nodeIdx uint32) {
	tree.rotate(nodeIdx, false)
}
