// Copyright 2024 SnmpFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package schema holds the static MIB tree used to name nodes and to derive
// access rights without asking the agent.
//
// A Tree is built once (Load, FromModel or a Builder) and never mutated
// afterwards, so any number of goroutines may query it without locking.
// A nil *Tree is a valid empty schema.
package schema

import (
	"sort"

	"snmpfs/internal/oid"
)

// Access is the MAX-ACCESS class of an object.
type Access uint8

const (
	AccessUnknown Access = iota
	AccessNone
	AccessNotify
	AccessReadOnly
	AccessReadWrite
	AccessWriteOnly
)

func (a Access) String() string {
	switch a {
	case AccessNone:
		return "not-accessible"
	case AccessNotify:
		return "accessible-for-notify"
	case AccessReadOnly:
		return "read-only"
	case AccessReadWrite:
		return "read-write"
	case AccessWriteOnly:
		return "write-only"
	}
	return "unknown"
}

// Syntax is the base SMI type of an object.
type Syntax uint8

const (
	SyntaxUnknown Syntax = iota
	SyntaxInteger
	SyntaxUnsigned
	SyntaxCounter32
	SyntaxCounter64
	SyntaxGauge
	SyntaxTimeTicks
	SyntaxIPAddress
	SyntaxOctetString
	SyntaxObjectID
	SyntaxOpaque
	SyntaxBits
)

// Node is one schema entry.
type Node struct {
	SubID  uint32
	Label  string
	Access Access
	Syntax Syntax

	parent   *Node
	children []*Node // sorted by SubID
}

// Parent returns the enclosing node, or nil for a top-level node.
func (n *Node) Parent() *Node {
	if n.parent == nil || n.parent.isRoot() {
		return nil
	}
	return n.parent
}

// isRoot reports whether n is the synthetic node above all top-level nodes.
func (n *Node) isRoot() bool {
	return n.parent == nil
}

// Children returns the child nodes in sub-identifier order. The slice
// must not be modified.
func (n *Node) Children() []*Node {
	return n.children
}

// HasChildren reports whether the schema knows any node below n.
func (n *Node) HasChildren() bool {
	return len(n.children) > 0
}

// Child returns the child with the given sub-identifier.
func (n *Node) Child(sub uint32) *Node {
	i := sort.Search(len(n.children), func(i int) bool { return n.children[i].SubID >= sub })
	if i < len(n.children) && n.children[i].SubID == sub {
		return n.children[i]
	}
	return nil
}

// ChildByLabel returns the child whose label is exactly label.
func (n *Node) ChildByLabel(label string) *Node {
	for _, c := range n.children {
		if c.Label == label {
			return c
		}
	}
	return nil
}

// Path returns the absolute OID of n.
func (n *Node) Path() oid.Path {
	var rev []uint32
	for c := n; c != nil && !c.isRoot(); c = c.parent {
		rev = append(rev, c.SubID)
	}
	p := make(oid.Path, len(rev))
	for i, sub := range rev {
		p[len(rev)-1-i] = sub
	}
	return p
}

// Tree is an immutable schema snapshot.
type Tree struct {
	root  *Node
	count int
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return t.count
}

// FindNearestAncestor returns the deepest schema node that is p or an
// ancestor of p. With exactOnly, only a node at exactly p qualifies.
// It returns nil when nothing matches.
func (t *Tree) FindNearestAncestor(p oid.Path, exactOnly bool) *Node {
	if t == nil {
		return nil
	}
	var best *Node
	cur := t.root
	depth := 0
	for _, sub := range p {
		next := cur.Child(sub)
		if next == nil {
			break
		}
		cur = next
		best = cur
		depth++
	}
	if exactOnly && depth != len(p) {
		return nil
	}
	return best
}

// Lookup returns the node at exactly p.
func (t *Tree) Lookup(p oid.Path) *Node {
	return t.FindNearestAncestor(p, true)
}

// ChildrenOf returns the schema children of the node at p, in
// sub-identifier order. An unknown p has no children.
func (t *Tree) ChildrenOf(p oid.Path) []*Node {
	if t == nil {
		return nil
	}
	if len(p) == 0 {
		return t.root.children
	}
	n := t.Lookup(p)
	if n == nil {
		return nil
	}
	return n.children
}

// Builder assembles a Tree. It is not safe for concurrent use, and must not
// be used after Tree is called.
type Builder struct {
	t *Tree
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{t: &Tree{root: &Node{}}}
}

// Add inserts or updates the node at p. Missing intermediate nodes are
// created without a label. Adding the empty path is a no-op.
func (b *Builder) Add(p oid.Path, label string, access Access, syntax Syntax) *Builder {
	if len(p) == 0 {
		return b
	}
	cur := b.t.root
	for _, sub := range p {
		cur = b.child(cur, sub)
	}
	cur.Label = label
	cur.Access = access
	cur.Syntax = syntax
	return b
}

func (b *Builder) child(parent *Node, sub uint32) *Node {
	i := sort.Search(len(parent.children), func(i int) bool { return parent.children[i].SubID >= sub })
	if i < len(parent.children) && parent.children[i].SubID == sub {
		return parent.children[i]
	}
	n := &Node{SubID: sub, parent: parent}
	parent.children = append(parent.children, nil)
	copy(parent.children[i+1:], parent.children[i:])
	parent.children[i] = n
	b.t.count++
	return n
}

// Tree returns the built tree.
func (b *Builder) Tree() *Tree {
	t := b.t
	b.t = nil
	return t
}
