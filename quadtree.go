package quadtree

// Item is anything with an axis-aligned rectangle. The x,y pair is the
// top-left corner and w,h are the dimensions. The tree only reads the four
// geometric fields; the item payload is never copied or mutated.
type Item interface {
	Rect() (x, y, w, h float64)
}

// Rect is a basic implementation of Item.
type Rect struct {
	X, Y, W, H float64
}

// Rect returns the rectangle geometry.
func (r *Rect) Rect() (x, y, w, h float64) {
	return r.X, r.Y, r.W, r.H
}

// Default tuning parameters. A node holding more than MaxItems items
// subdivides, unless it already sits at MaxDepth.
const (
	DefaultMaxItems = 2
	DefaultMaxDepth = 4
)

// Config describes the root bounds and tuning parameters of a tree.
// A zero MaxItems or MaxDepth falls back to the defaults.
type Config struct {
	X, Y, W, H float64
	MaxItems   int
	MaxDepth   int
}

// quadrant order of the child node list
const (
	topLeft = iota
	topRight
	bottomLeft
	bottomRight
)

const noQuad = -1

// Node is a rectangular region of the index. A node is either a leaf or has
// exactly four children tiling its rectangle. Items that straddle a midline
// of a subdivided node stay pinned in the node's own item list.
type Node struct {
	x, y, w, h float64
	depth      int
	maxItems   int
	maxDepth   int
	items      []Item
	nodes      []*Node // nil or exactly four, in quadrant order
}

func newNode(x, y, w, h float64, depth, maxItems, maxDepth int) *Node {
	return &Node{
		x: x, y: y, w: w, h: h,
		depth:    depth,
		maxItems: maxItems,
		maxDepth: maxDepth,
	}
}

// Rect returns the node's bounding rectangle.
func (n *Node) Rect() (x, y, w, h float64) {
	return n.x, n.y, n.w, n.h
}

// Depth returns the node's depth. The root is depth zero.
func (n *Node) Depth() int {
	return n.depth
}

// Items returns the items stored directly at this node, in insertion order.
// For a subdivided node these are the pinned items.
func (n *Node) Items() []Item {
	return n.items
}

// Nodes returns the four child nodes in top-left, top-right, bottom-left,
// bottom-right order, or nil if the node has not subdivided.
func (n *Node) Nodes() []*Node {
	return n.nodes
}

func (n *Node) insert(item Item) {
	if n.nodes != nil {
		if quad := n.insertQuad(item); quad != noQuad {
			n.nodes[quad].insert(item)
			return
		}
		// straddles a midline, pin it here
		n.items = append(n.items, item)
		return
	}
	n.items = append(n.items, item)
	if len(n.items) > n.maxItems && n.depth < n.maxDepth {
		n.divide()
	}
}

// insertQuad returns the one quadrant that fully contains the item, or
// noQuad when the item crosses the vertical or horizontal midline. The
// containment test is conservative: the item's far edge must sit strictly
// inside the half-plane.
func (n *Node) insertQuad(item Item) int {
	x, y, w, h := item.Rect()
	midX, midY := n.x+n.w/2, n.y+n.h/2
	switch {
	case x+w < midX: // left half
		switch {
		case y+h < midY:
			return topLeft
		case y >= midY:
			return bottomLeft
		}
	case x >= midX: // right half
		switch {
		case y+h < midY:
			return topRight
		case y >= midY:
			return bottomRight
		}
	}
	return noQuad
}

// overlapsQuad reports whether the rectangle touches the given quadrant.
// Unlike insertQuad this is an inclusive test and any number of the four
// quadrants may overlap a single rectangle.
func (n *Node) overlapsQuad(quad int, x, y, w, h float64) bool {
	midX, midY := n.x+n.w/2, n.y+n.h/2
	switch quad {
	case topLeft:
		return x < midX && y < midY
	case topRight:
		return x+w >= midX && y < midY
	case bottomLeft:
		return x < midX && y+h >= midY
	case bottomRight:
		return x+w >= midX && y+h >= midY
	}
	return false
}

// overlappingNodes calls visit for every child whose quadrant overlaps the
// rectangle, in quadrant order, stopping early if visit returns false.
func (n *Node) overlappingNodes(item Item, visit func(child *Node) bool) bool {
	x, y, w, h := item.Rect()
	for quad, child := range n.nodes {
		if n.overlapsQuad(quad, x, y, w, h) {
			if !visit(child) {
				return false
			}
		}
	}
	return true
}

// divide creates the four children and redistributes this node's items
// through the normal insert path. Items that straddle a midline stay put.
// A node divides at most once; Clear is the only way back to a leaf.
func (n *Node) divide() {
	hw, hh := n.w/2, n.h/2
	n.nodes = []*Node{
		newNode(n.x, n.y, hw, hh, n.depth+1, n.maxItems, n.maxDepth),
		newNode(n.x+hw, n.y, hw, hh, n.depth+1, n.maxItems, n.maxDepth),
		newNode(n.x, n.y+hh, hw, hh, n.depth+1, n.maxItems, n.maxDepth),
		newNode(n.x+hw, n.y+hh, hw, hh, n.depth+1, n.maxItems, n.maxDepth),
	}
	items := n.items
	n.items = nil
	for _, item := range items {
		n.insert(item)
	}
}

// retrieve reports every item at this node unconditionally, then recurses
// into the children whose quadrants overlap the selector.
func (n *Node) retrieve(selector Item, iter func(item Item) bool) bool {
	for _, item := range n.items {
		if !iter(item) {
			return false
		}
	}
	if n.nodes == nil {
		return true
	}
	return n.overlappingNodes(selector, func(child *Node) bool {
		return child.retrieve(selector, iter)
	})
}

func (n *Node) clear() {
	for _, child := range n.nodes {
		child.clear()
	}
	n.items = nil
	n.nodes = nil
}

func (n *Node) count() int {
	counter := len(n.items)
	for _, child := range n.nodes {
		counter += child.count()
	}
	return counter
}

// Tree is a spatial index over axis-aligned rectangles in a bounded plane.
// Retrieval is superset-correct: it never misses an overlapping item but may
// report items that do not actually overlap the selector. Callers needing
// exact overlap must filter the results themselves.
//
// A Tree is not safe for concurrent use.
type Tree struct {
	root *Node
}

// New creates a tree covering the bounds in cfg. The bounds are fixed for
// the life of the tree.
func New(cfg Config) *Tree {
	maxItems := cfg.MaxItems
	if maxItems == 0 {
		maxItems = DefaultMaxItems
	}
	maxDepth := cfg.MaxDepth
	if maxDepth == 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Tree{
		root: newNode(cfg.X, cfg.Y, cfg.W, cfg.H, 0, maxItems, maxDepth),
	}
}

// Insert adds one item to the index. The item is never validated; geometry
// outside the root bounds or with non-finite coordinates ends up pinned at
// whatever node its comparisons land on.
func (tr *Tree) Insert(item Item) {
	tr.root.insert(item)
}

// InsertAll adds items one at a time in order. It is equivalent to calling
// Insert for each item.
func (tr *Tree) InsertAll(items []Item) {
	for _, item := range items {
		tr.root.insert(item)
	}
}

// Retrieve calls iter for every item in a quadrant the selector overlaps,
// plus every item pinned on the path down to those quadrants. Pinned items
// are reported without checking them against the selector. Iteration order
// is insertion order within a node, children in top-left, top-right,
// bottom-left, bottom-right order. Return false from iter to stop early.
func (tr *Tree) Retrieve(selector Item, iter func(item Item) bool) {
	tr.root.retrieve(selector, iter)
}

// Clear empties the tree. The bounds and tuning parameters are kept.
func (tr *Tree) Clear() {
	tr.root.clear()
}

// Count returns the number of items in the tree.
func (tr *Tree) Count() int {
	return tr.root.count()
}

// Bounds returns the root bounds the tree was created with.
func (tr *Tree) Bounds() (x, y, w, h float64) {
	return tr.root.Rect()
}

// Root returns the root node for inspection, such as rendering quadrant
// boundaries. Mutating the tree invalidates any nodes previously returned.
func (tr *Tree) Root() *Node {
	return tr.root
}
