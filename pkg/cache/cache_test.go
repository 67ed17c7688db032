package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarioS3 inserts keys 1..5 in ascending order and checks the
// tree stays balanced and reaches height 3, per S3.
func TestScenarioS3(t *testing.T) {
	c := New("trampoline")
	for _, k := range []uint32{1, 2, 3, 4, 5} {
		_, err := c.Install(k, "block")
		require.NoErrorf(t, err, "Install(%d)", k)
		assert.Truef(t, c.cur.checkBalanced(), "tree unbalanced after inserting %d", k)
	}
	st := c.Snapshot()
	assert.Equal(t, 3, st.TreeHeight)
	assert.Equal(t, 5, st.LiveEntries)
}

func TestLookupHitsTreeOnHashMiss(t *testing.T) {
	c := New("trampoline")
	_, err := c.Install(42, "block-42")
	require.NoError(t, err)

	// Force the hash slot to point elsewhere, simulating a collision.
	c.table[42&(hashSlots-1)] = &Entry{Key: 999, Valid: true}
	e := c.Lookup(42)
	require.NotNil(t, e)
	assert.Equal(t, "block-42", e.Block)
	assert.Equal(t, uint32(42), c.table[42&(hashSlots-1)].Key)
}

// TestScenarioS4 exercises invalidate-then-gc: a currently running
// block's tree is moved to the old-root list without freeing anything,
// then GC disposes of it, and a subsequent install proceeds fresh.
func TestScenarioS4(t *testing.T) {
	c := New("trampoline")
	_, err := c.Install(7, "block-7")
	require.NoError(t, err)
	c.InvalidateAll()

	assert.Nil(t, c.Lookup(7))
	for i, e := range c.table {
		assert.Equalf(t, uint32(trampolineKey), e.Key, "hash slot %d not refilled with trampoline entry", i)
	}

	released := 0
	c.GC(func(Block) { released++ })
	assert.Equal(t, 1, released)
	assert.Equal(t, 0, c.Snapshot().OldRootCount)

	_, err = c.Install(7, "block-7-fresh")
	require.NoError(t, err)
	e := c.Lookup(7)
	require.NotNil(t, e)
	assert.Equal(t, "block-7-fresh", e.Block)
}

func TestHashIsSubsetOfTree(t *testing.T) {
	c := New("trampoline")
	for k := uint32(1); k <= 50; k++ {
		_, err := c.Install(k, k)
		require.NoError(t, err)
	}
	for _, e := range c.table {
		if e == c.trampoline {
			continue
		}
		assert.NotNilf(t, c.cur.find(e.Key), "hash entry for key %d not reachable through the tree", e.Key)
	}
}

func TestLiveEntryBound(t *testing.T) {
	c := &Cache{cur: newTree(), liveEntries: maxLiveEntries}
	_, err := c.Install(1, "x")
	assert.Error(t, err)
}
