package pmap

import (
	"github.com/flowcore/flowcore/flowerr"
	"github.com/flowcore/flowcore/internal/u128"
)

// Reserved leaf codes. NotFound marks an unpopulated region of the key
// space; MaxValue is the largest code an inserter may assign.
const (
	NotFound uint32 = 0x7FFFFFFF
	MaxValue uint32 = 0x7FFFFFFE
)

const tagBit uint32 = 1 << 31
const valueMask uint32 = tagBit - 1

// slot is a tagged 32-bit trie edge: the high bit distinguishes a leaf
// code (tag set) from an index into the trie's record array (tag clear).
// Using an index rather than a pointer keeps the array relocatable and
// every node addressable by a stable integer, which the serialized form
// depends on.
type slot uint32

func leafSlot(code uint32) slot  { return slot(tagBit | (code & valueMask)) }
func nodeSlot(idx uint32) slot   { return slot(idx & valueMask) }
func (s slot) isLeaf() bool      { return uint32(s)&tagBit != 0 }
func (s slot) leafCode() uint32  { return uint32(s) & valueMask }
func (s slot) nodeIndex() uint32 { return uint32(s) & valueMask }

var emptySlot = leafSlot(NotFound)

// record is one trie node: a left (bit=0) and right (bit=1) edge.
type record struct {
	left, right slot
}

// trie is the indexed binary trie backing a Map. Node 0 is always the
// root; new nodes are appended, never reused, so an index into records
// remains valid for the trie's lifetime.
type trie struct {
	kind    Kind
	records []record
}

func newTrie(kind Kind) *trie {
	return &trie{
		kind:    kind,
		records: []record{{left: emptySlot, right: emptySlot}},
	}
}

func (t *trie) allocNode() uint32 {
	idx := uint32(len(t.records))
	t.records = append(t.records, record{left: emptySlot, right: emptySlot})
	return idx
}

// ensureInternalChild turns the leaf referenced by s into an internal node
// whose two children both carry the leaf's former code, and rewrites s to
// point at it. If s already refers to an internal node, that index is
// returned unchanged.
func (t *trie) ensureInternalChild(s *slot) uint32 {
	if !s.isLeaf() {
		return s.nodeIndex()
	}
	code := s.leafCode()
	idx := t.allocNode()
	t.records[idx].left = leafSlot(code)
	t.records[idx].right = leafSlot(code)
	*s = nodeSlot(idx)
	return idx
}

func bitAt(v u128.U128, bit int) uint { return u128.Bit(v, uint(bit)) }

// lowerAllZero reports whether all bits of v below bit are zero, i.e. v is
// the first key of a subtree whose free bits are [0, bit).
func lowerAllZero(v u128.U128, bit int) bool {
	mask := u128.MaskBelow(uint(bit))
	return u128.And(v, mask) == (u128.U128{})
}

// lowerAllOnes reports whether all bits of v below bit are one, i.e. v is
// the last key of a subtree whose free bits are [0, bit).
func lowerAllOnes(v u128.U128, bit int) bool {
	mask := u128.MaskBelow(uint(bit))
	return u128.And(v, mask) == mask
}

// Insert assigns code to every key in the inclusive range [low, high].
// Descent proceeds one bit at a time from the most significant bit of the
// kind's width; at each node the low and/or high bound may each fall
// entirely within this node's left or right subtree, partially within it,
// or span both, and the two sides are handled independently since a range
// can require both.
func (t *trie) Insert(low, high u128.U128, code uint32) error {
	if u128.Cmp(low, high) > 0 {
		return flowerr.New(flowerr.Args, "range low exceeds high")
	}
	if code > MaxValue && code != NotFound {
		return flowerr.Newf(flowerr.Args, "code %d exceeds maximum %d", code, MaxValue)
	}
	t.insertRec(0, t.kind.walkWidth()-1, low, high, code)
	return nil
}

func (t *trie) insertRec(nodeIdx uint32, bit int, low, high u128.U128, code uint32) {
	if bitAt(low, bit) == 0 {
		covered := lowerAllZero(low, bit) && (bitAt(high, bit) == 1 || lowerAllOnes(high, bit))
		if covered {
			t.records[nodeIdx].left = leafSlot(code)
		} else {
			left := t.records[nodeIdx].left
			childIdx := t.ensureInternalChild(&left)
			t.records[nodeIdx].left = left

			childHigh := high
			if bitAt(high, bit) == 1 {
				childHigh = u128.Or(low, u128.MaskBelow(uint(bit)))
			}
			t.insertRec(childIdx, bit-1, low, childHigh, code)
		}
	}

	if bitAt(high, bit) == 1 {
		covered := lowerAllOnes(high, bit) && (bitAt(low, bit) == 0 || lowerAllZero(low, bit))
		if covered {
			t.records[nodeIdx].right = leafSlot(code)
		} else {
			right := t.records[nodeIdx].right
			childIdx := t.ensureInternalChild(&right)
			t.records[nodeIdx].right = right

			childLow := low
			if bitAt(low, bit) == 0 {
				childLow = u128.AndNot(high, u128.MaskBelow(uint(bit)))
			}
			t.insertRec(childIdx, bit-1, childLow, high, code)
		}
	}
}

// Lookup returns the code assigned to key.
func (t *trie) Lookup(key u128.U128) uint32 {
	nodeIdx := uint32(0)
	for bit := t.kind.walkWidth() - 1; bit >= 0; bit-- {
		rec := t.records[nodeIdx]
		s := rec.left
		if bitAt(key, bit) == 1 {
			s = rec.right
		}
		if s.isLeaf() {
			return s.leafCode()
		}
		nodeIdx = s.nodeIndex()
	}
	return NotFound
}

// LookupRange returns the code assigned to key along with the [low, high]
// bounds of the leaf that produced it. Adjacent leaves carrying the same
// code are not merged into the returned range.
func (t *trie) LookupRange(key u128.U128) (low, high u128.U128, code uint32) {
	width := t.kind.walkWidth()
	high = u128.MaskBelow(uint(width))
	nodeIdx := uint32(0)
	for bit := width - 1; bit >= 0; bit-- {
		rec := t.records[nodeIdx]
		var s slot
		if bitAt(key, bit) == 0 {
			high = u128.AndNot(high, u128.PowerOfTwo(uint(bit)))
			s = rec.left
		} else {
			low = u128.Or(low, u128.PowerOfTwo(uint(bit)))
			s = rec.right
		}
		if s.isLeaf() {
			return low, high, s.leafCode()
		}
		nodeIdx = s.nodeIndex()
	}
	return low, high, NotFound
}

// absoluteDepthLimit bounds a DFS independent of kind width, catching a
// cyclic or otherwise pathological record array that a plain width bound
// would not.
const absoluteDepthLimit = 128

// truncateToValidPrefix scans records in order, looking for the first
// record whose child index is at or beyond the declared record count —
// evidence the file was truncated or corrupted at that point — and drops
// it and everything after. A wholly unusable result still leaves an empty
// root, since node 0 must always exist.
func (t *trie) truncateToValidPrefix() error {
	count := uint32(len(t.records))
	for i := uint32(0); i < count; i++ {
		rec := t.records[i]
		for _, s := range [2]slot{rec.left, rec.right} {
			if !s.isLeaf() && s.nodeIndex() >= count {
				t.records = t.records[:i]
				if len(t.records) == 0 {
					t.records = []record{{left: emptySlot, right: emptySlot}}
				}
				return nil
			}
		}
	}
	return nil
}

// validateDepth performs a DFS from the root, bounding depth by both the
// kind's key width and absoluteDepthLimit, and rejecting any child index
// at or beyond the (possibly truncated) record count.
func (t *trie) validateDepth() error {
	limit := t.kind.walkWidth()
	if limit > absoluteDepthLimit {
		limit = absoluteDepthLimit
	}
	return t.walkDepth(0, 0, limit)
}

func (t *trie) walkDepth(nodeIdx uint32, depth, limit int) error {
	if depth > limit {
		return flowerr.Newf(flowerr.CorruptTree, "trie depth %d exceeds limit %d", depth, limit)
	}
	count := uint32(len(t.records))
	rec := t.records[nodeIdx]
	for _, s := range [2]slot{rec.left, rec.right} {
		if s.isLeaf() {
			continue
		}
		if s.nodeIndex() >= count {
			return flowerr.Newf(flowerr.CorruptTree, "node %d references out-of-range child %d", nodeIdx, s.nodeIndex())
		}
		if err := t.walkDepth(s.nodeIndex(), depth+1, limit); err != nil {
			return err
		}
	}
	return nil
}
