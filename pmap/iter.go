package pmap

import "github.com/flowcore/flowcore/internal/u128"

// Range is one contiguous run of keys mapped to the same code by leaves at
// the same trie depth.
type Range struct {
	Start, End u128.U128
	Code       uint32

	// depth is the trie depth the leaf producing this range was found at.
	// Two adjacent leaves only merge into one emitted range when both
	// their code and their depth agree; adjacent leaves with the same code
	// at different depths are emitted as separate ranges.
	depth int
}

// Iterator enumerates a Map's key space as contiguous ranges in ascending
// key order, merging adjacent leaves that share both code and depth.
type Iterator struct {
	ranges []Range
	pos    int
}

// Iterate returns an Iterator walking m's trie in key order.
func (m *Map) Iterate() *Iterator {
	return &Iterator{ranges: mergeAdjacent(m.trie.collectLeaves())}
}

// Next returns the next range and true, or a zero Range and false once
// the iterator is exhausted.
func (it *Iterator) Next() (Range, bool) {
	if it.pos >= len(it.ranges) {
		return Range{}, false
	}
	r := it.ranges[it.pos]
	it.pos++
	return r, true
}

// collectLeaves walks the trie depth-first, left before right, so
// leaves are produced in ascending key order, each carrying the full
// dyadic [low, high] range and depth it was found at.
func (t *trie) collectLeaves() []Range {
	width := t.kind.walkWidth()
	full := u128.MaskBelow(uint(width))

	var out []Range
	var walk func(nodeIdx uint32, bit, depth int, low, high u128.U128)
	walk = func(nodeIdx uint32, bit, depth int, low, high u128.U128) {
		rec := t.records[nodeIdx]

		leftHigh := u128.AndNot(high, u128.PowerOfTwo(uint(bit)))
		if rec.left.isLeaf() {
			out = append(out, Range{Start: low, End: leftHigh, Code: rec.left.leafCode(), depth: depth + 1})
		} else {
			walk(rec.left.nodeIndex(), bit-1, depth+1, low, leftHigh)
		}

		rightLow := u128.Or(low, u128.PowerOfTwo(uint(bit)))
		if rec.right.isLeaf() {
			out = append(out, Range{Start: rightLow, End: high, Code: rec.right.leafCode(), depth: depth + 1})
		} else {
			walk(rec.right.nodeIndex(), bit-1, depth+1, rightLow, high)
		}
	}
	walk(0, width-1, 0, u128.U128{}, full)
	return out
}

// mergeAdjacent coalesces consecutive leaves sharing both code and depth
// into a single range.
func mergeAdjacent(leaves []Range) []Range {
	if len(leaves) == 0 {
		return nil
	}
	out := []Range{leaves[0]}
	for _, r := range leaves[1:] {
		last := &out[len(out)-1]
		if r.Code == last.Code && r.depth == last.depth {
			last.End = r.End
			continue
		}
		out = append(out, r)
	}
	return out
}
