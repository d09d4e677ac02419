package pathtree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wshanks/mansel/pkg/mansel/pathtree"
)

func TestTreeCheck(t *testing.T) {
	paths := []string{"a", "b/c", "b/d"}

	tree, err := pathtree.New(paths...)
	require.NoError(t, err)

	t.Run("inserted paths are leaves", func(t *testing.T) {
		for _, p := range paths {
			assert.Equal(t, pathtree.StatusLeaf, tree.Check(p), "path %s", p)
		}
	})

	t.Run("proper prefixes are parents", func(t *testing.T) {
		assert.Equal(t, pathtree.StatusParent, tree.Check("b"))
	})

	t.Run("unknown paths are unselected", func(t *testing.T) {
		assert.Equal(t, pathtree.StatusUnselected, tree.Check("z"))
		assert.Equal(t, pathtree.StatusUnselected, tree.Check("b/z"))
		assert.Equal(t, pathtree.StatusUnselected, tree.Check("a/deeper"))
	})

	t.Run("root is a parent while non-empty", func(t *testing.T) {
		assert.Equal(t, pathtree.StatusParent, tree.Check("."))
	})
}

func TestTreeInsertConflict(t *testing.T) {
	tree, err := pathtree.New("b/c")
	require.NoError(t, err)

	err = tree.Insert("b/c/d")
	require.Error(t, err)
	assert.ErrorIs(t, err, pathtree.ErrPathConflict)
	assert.Contains(t, err.Error(), "b/c")

	// The other direction is allowed: a leaf may gain a sibling.
	assert.NoError(t, tree.Insert("b/e"))
}

func TestTreeRemove(t *testing.T) {
	t.Run("removing all paths empties the tree", func(t *testing.T) {
		paths := []string{"a", "b/c", "b/d", "x/y/z"}
		tree, err := pathtree.New(paths...)
		require.NoError(t, err)

		for _, p := range paths {
			require.NoError(t, tree.Remove(p))
			assert.Equal(t, pathtree.StatusUnselected, tree.Check(p))
		}
		assert.True(t, tree.Empty())
	})

	t.Run("prunes emptied ancestors but not shared ones", func(t *testing.T) {
		tree, err := pathtree.New("b/c", "b/d")
		require.NoError(t, err)

		require.NoError(t, tree.Remove("b/c"))
		assert.Equal(t, pathtree.StatusParent, tree.Check("b"))
		assert.Equal(t, pathtree.StatusLeaf, tree.Check("b/d"))

		require.NoError(t, tree.Remove("b/d"))
		assert.Equal(t, pathtree.StatusUnselected, tree.Check("b"))
		assert.True(t, tree.Empty())
	})

	t.Run("removing an absent path fails", func(t *testing.T) {
		tree, err := pathtree.New("a")
		require.NoError(t, err)

		err = tree.Remove("nope")
		assert.ErrorIs(t, err, pathtree.ErrNotFound)
	})
}

func TestTreeReinsert(t *testing.T) {
	paths := []string{"a", "b/c", "b/d"}
	tree, err := pathtree.New(paths...)
	require.NoError(t, err)

	for _, p := range paths {
		require.NoError(t, tree.Remove(p))
	}
	for _, p := range paths {
		require.NoError(t, tree.Insert(p))
		assert.Equal(t, pathtree.StatusLeaf, tree.Check(p))
	}
}

func TestTreePaths(t *testing.T) {
	tree, err := pathtree.New("b/d", "a", "b/c")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b/c", "b/d"}, tree.Paths())
	assert.Equal(t, 3, tree.Len())

	require.NoError(t, tree.Remove("b/c"))
	assert.Equal(t, []string{"a", "b/d"}, tree.Paths())
}

func TestTreePathNormalization(t *testing.T) {
	tree, err := pathtree.New("./b//c/")
	require.NoError(t, err)

	assert.Equal(t, pathtree.StatusLeaf, tree.Check("b/c"))
	assert.Equal(t, pathtree.StatusParent, tree.Check("b"))
}
