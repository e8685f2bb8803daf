package oid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "undetermined", KindUndetermined.String())
	assert.Equal(t, "root", KindRoot.String())
	assert.Equal(t, "interior", KindInterior.String())
	assert.Equal(t, "leaf", KindLeaf.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}

func TestKindIsDir(t *testing.T) {
	t.Parallel()

	assert.True(t, KindRoot.IsDir())
	assert.True(t, KindInterior.IsDir())
	assert.False(t, KindLeaf.IsDir())
	assert.False(t, KindUndetermined.IsDir())
}

func TestHandleParent(t *testing.T) {
	t.Parallel()

	t.Run("length one yields root", func(t *testing.T) {
		t.Parallel()
		h := NewHandle(KindLeaf, Path{1})
		p := h.Parent()
		assert.Equal(t, KindRoot, p.Kind)
		assert.Empty(t, p.Path)
	})

	t.Run("root stays root", func(t *testing.T) {
		t.Parallel()
		p := RootHandle().Parent()
		assert.True(t, p.Equal(RootHandle()))
	})

	t.Run("deeper yields interior", func(t *testing.T) {
		t.Parallel()
		h := NewHandle(KindLeaf, Path{1, 3, 6})
		assert.True(t, h.Parent().Equal(NewHandle(KindInterior, Path{1, 3})))
	})
}

func TestHandleChild(t *testing.T) {
	t.Parallel()

	parent := NewHandle(KindInterior, Path{1, 3})
	child := parent.Child(6, KindLeaf)
	assert.Equal(t, Path{1, 3, 6}, child.Path)
	assert.Equal(t, KindLeaf, child.Kind)
	assert.Equal(t, Path{1, 3}, parent.Path)
}

func TestNewHandleCopies(t *testing.T) {
	t.Parallel()

	p := Path{1, 2}
	h := NewHandle(KindLeaf, p)
	p[0] = 5
	assert.Equal(t, Path{1, 2}, h.Path)
	assert.Equal(t, "leaf:1.2", h.String())
}
