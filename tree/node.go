// Package tree builds decision trees that identify raw instructions from
// their bits.
package tree

import (
	"fmt"

	"github.com/xlab/treeprint"

	"github.com/sarchlab/decgen/insts"
)

// Branch is a keyed child of an internal node.
type Branch struct {
	Key  string // bit pattern of the node window
	Node *Node
}

// Node is a decision tree node. A leaf holds exactly one raw instruction;
// an internal node branches on the bits of Window.
type Node struct {
	Raw *insts.RawInstruction

	Window insts.Window

	// Children are sorted by key.
	Children []Branch

	// Default receives every value not listed in Children. A nil Default
	// means such values are illegal instructions.
	Default *Node

	// Resolved is set when the window came from the conflict fallback
	// rather than a common opcode run.
	Resolved bool
}

// IsLeaf reports whether the node identifies an instruction.
func (n *Node) IsLeaf() bool {
	return n.Raw != nil
}

// Child returns the child keyed by key, or nil.
func (n *Node) Child(key string) *Node {
	for _, b := range n.Children {
		if b.Key == key {
			return b.Node
		}
	}
	return nil
}

// Step is one decision on a root-to-node path. Key is empty for the
// default branch.
type Step struct {
	Window insts.Window
	Key    string
}

// Walk visits every node depth first, children in key order and the
// default child last.
func (n *Node) Walk(fn func(path []Step, node *Node)) {
	n.walk(nil, fn)
}

func (n *Node) walk(path []Step, fn func([]Step, *Node)) {
	fn(path, n)
	if n.IsLeaf() {
		return
	}
	for _, b := range n.Children {
		b.Node.walk(append(path[:len(path):len(path)], Step{Window: n.Window, Key: b.Key}), fn)
	}
	if n.Default != nil {
		n.Default.walk(append(path[:len(path):len(path)], Step{Window: n.Window}), fn)
	}
}

// Leaves returns the leaf instructions in walk order.
func (n *Node) Leaves() []*insts.RawInstruction {
	var out []*insts.RawInstruction
	n.Walk(func(_ []Step, node *Node) {
		if node.IsLeaf() {
			out = append(out, node.Raw)
		}
	})
	return out
}

// Match selects the instruction whose encoding fits bits, a concrete bit
// string starting at an instruction boundary. It returns nil for illegal
// or truncated input.
func (n *Node) Match(bits string) *insts.RawInstruction {
	cur := n
	for !cur.IsLeaf() {
		if cur.Window.End() > len(bits) {
			return nil
		}
		next := cur.Child(bits[cur.Window.Offset:cur.Window.End()])
		if next == nil {
			next = cur.Default
		}
		if next == nil {
			return nil
		}
		cur = next
	}

	s := cur.Raw.Canonical()
	if len(bits) < len(s) || !insts.MatchBits(s, bits[:len(s)]) {
		return nil
	}
	return cur.Raw
}

// String renders the tree.
func (n *Node) String() string {
	t := treeprint.New()
	t.SetValue(n.label())
	n.render(t)
	return t.String()
}

func (n *Node) label() string {
	if n.IsLeaf() {
		return fmt.Sprintf("%s %s", n.Raw.Name, n.Raw.Canonical())
	}
	if n.Resolved {
		return fmt.Sprintf("switch %s (conflict)", n.Window)
	}
	return fmt.Sprintf("switch %s", n.Window)
}

func (n *Node) render(t treeprint.Tree) {
	for _, b := range n.Children {
		addNode(t, b.Key, b.Node)
	}
	if n.Default != nil {
		addNode(t, "default", n.Default)
	}
}

func addNode(t treeprint.Tree, meta string, n *Node) {
	if n.IsLeaf() {
		t.AddMetaNode(meta, n.label())
		return
	}
	n.render(t.AddMetaBranch(meta, n.label()))
}
