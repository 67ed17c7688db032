package cache

import "fmt"

// hashSlots is the size of the direct-mapped lookup table consulted
// before the AVL tree; index = low 16 bits of the key.
const hashSlots = 1 << 16

// maxLiveEntries is the fatal safety bound on live cache entries. The
// guest has only 16 MB of RAM; legitimate operation never comes close.
const maxLiveEntries = 1 << 20

// trampolineKey is the sentinel fingerprint installed into every hash
// slot on (re)initialization, so generated dispatch code never needs a
// null check on its fast path.
const trampolineKey uint32 = 0xa0000000

// Block is the compiled payload a cache entry owns: either a native
// code pointer or an interpreted block. The cache package doesn't care
// which; backends populate this opaquely.
type Block interface{}

// Entry is one node's payload: the compiled block behind a fingerprint.
type Entry struct {
	Key   uint32
	Valid bool
	Block Block
}

// oldRoot is one link of the old-root list: a whole former tree, kept
// alive until GC runs from a quiescent point.
type oldRoot struct {
	t    *tree
	next *oldRoot
}

// Cache is the two-level code cache: a hash table over a backing AVL
// tree, plus the old-root list awaiting collection and a live-entry
// counter enforcing the fatal safety bound.
type Cache struct {
	table       [hashSlots]*Entry
	cur         *tree
	oldRoots    *oldRoot
	liveEntries int

	trampoline *Entry
}

// New constructs a cache with the hash table pre-filled with the
// trampoline sentinel entry, exactly as after invalidate_all.
func New(trampolineBlock Block) *Cache {
	c := &Cache{
		cur:        newTree(),
		trampoline: &Entry{Key: trampolineKey, Valid: true, Block: trampolineBlock},
	}
	c.refillTrampoline()
	return c
}

func (c *Cache) refillTrampoline() {
	for i := range c.table {
		c.table[i] = c.trampoline
	}
}

// Lookup implements the two-level lookup: consult the hash table first;
// on a hit, confirm by comparing the full key. On miss or mismatch,
// descend the tree and install the result into the table slot,
// evicting whatever was there (no chaining, no probing).
func (c *Cache) Lookup(key uint32) *Entry {
	idx := key & (hashSlots - 1)
	if e := c.table[idx]; e != nil && e.Key == key {
		return e
	}
	e := c.cur.find(key)
	if e != nil {
		c.table[idx] = e
	}
	return e
}

// Install allocates a new entry for key (the caller has already failed
// a Lookup) and inserts it into both the tree and the hash table. It is
// a fatal integrity error to exceed the live-entry bound.
func (c *Cache) Install(key uint32, block Block) (*Entry, error) {
	if c.liveEntries >= maxLiveEntries {
		return nil, fmt.Errorf("cache: integrity error: live entry bound (%d) exceeded", maxLiveEntries)
	}
	e := &Entry{Key: key, Valid: true, Block: block}
	got := c.cur.insert(key, e)
	if got != e {
		// Key raced in between the caller's failed Lookup and Install;
		// at most one entry per key is the contract, so return the
		// existing one rather than create a duplicate.
		return got, nil
	}
	c.liveEntries++
	c.table[key&(hashSlots-1)] = e
	return e, nil
}

// InvalidateAll is called from inside a running block when the guest
// writes the cache-control register. It unlinks the current tree onto
// the old-root list, replaces it with an empty tree, and refills the
// hash table with the trampoline entry. Nothing is freed here — the
// currently executing block's native code is not touched and must
// survive until it returns (P8).
func (c *Cache) InvalidateAll() {
	c.oldRoots = &oldRoot{t: c.cur, next: c.oldRoots}
	c.cur = newTree()
	c.refillTrampoline()
}

// GC must be called only from quiescent context (never from inside a
// running block). It walks and destroys every tree in the old-root
// list, invoking release for each entry's block so the owner can free
// any exec-memory allocation, then drops the arena.
func (c *Cache) GC(release func(Block)) {
	for r := c.oldRoots; r != nil; r = r.next {
		for _, n := range r.t.nodes {
			if n.entry != nil {
				release(n.entry.Block)
				c.liveEntries--
			}
		}
	}
	c.oldRoots = nil
}

// Stats is a point-in-time snapshot of cache health, used by tests
// asserting P1-P3 and by the CLI's cache-stats command.
type Stats struct {
	LiveEntries  int
	TreeHeight   int
	OldRootCount int
	Balanced     bool
}

// Snapshot reports the current cache statistics.
func (c *Cache) Snapshot() Stats {
	oldCount := 0
	for r := c.oldRoots; r != nil; r = r.next {
		oldCount++
	}
	return Stats{
		LiveEntries:  c.liveEntries,
		TreeHeight:   c.cur.height(),
		OldRootCount: oldCount,
		Balanced:     c.cur.checkBalanced(),
	}
}
