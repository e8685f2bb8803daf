package oid

import "fmt"

// Kind classifies a node of the remote tree. The kind carried by a Handle
// is a hint; it can disagree with the agent and is re-derived when absent.
type Kind uint8

const (
	// KindUndetermined means the kind has not been established yet. It only
	// appears while a handle is being resolved.
	KindUndetermined Kind = iota
	// KindRoot is the unique handle with an empty path.
	KindRoot
	// KindInterior may have children and holds no value.
	KindInterior
	// KindLeaf holds a scalar value and has no children.
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindUndetermined:
		return "undetermined"
	case KindRoot:
		return "root"
	case KindInterior:
		return "interior"
	case KindLeaf:
		return "leaf"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsDir reports whether nodes of this kind are listed as directories.
func (k Kind) IsDir() bool {
	return k == KindRoot || k == KindInterior
}

// Cookie is the resumption point of a directory listing: the address right
// after the last entry returned. An empty cookie starts from the beginning.
type Cookie = Path

// Handle addresses one node of the remote tree.
type Handle struct {
	Kind Kind
	Path Path
}

// RootHandle returns the handle of the tree root.
func RootHandle() Handle {
	return Handle{Kind: KindRoot, Path: Path{}}
}

// NewHandle returns a handle owning a copy of p.
func NewHandle(kind Kind, p Path) Handle {
	return Handle{Kind: kind, Path: p.Clone()}
}

// Child returns the handle of sub under h with the given kind hint.
func (h Handle) Child(sub uint32, kind Kind) Handle {
	return Handle{Kind: kind, Path: h.Path.Append(sub)}
}

// Parent returns the handle one level up: Root when the result is empty,
// Interior otherwise.
func (h Handle) Parent() Handle {
	p := h.Path.Parent()
	if len(p) == 0 {
		return RootHandle()
	}
	return Handle{Kind: KindInterior, Path: p}
}

// Equal compares kind and path.
func (h Handle) Equal(o Handle) bool {
	return h.Kind == o.Kind && h.Path.Equal(o.Path)
}

func (h Handle) String() string {
	return fmt.Sprintf("%s:%s", h.Kind, h.Path)
}
