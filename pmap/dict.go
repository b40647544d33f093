package pmap

import (
	"strings"

	"github.com/google/btree"

	"github.com/flowcore/flowcore/flowerr"
)

// Dictionary maps free-text labels to small integer codes and back. Labels
// are compared case-insensitively but stored with their original case; the
// reverse index orders by the case-folded form so lookups are case
// insensitive without mutating what Each/GetLabel hand back.
type Dictionary struct {
	labels []string // code -> original label, code is the slice index
	index  *btree.BTree
}

// dictItem is the btree.Item stored in the Dictionary's reverse index.
type dictItem struct {
	folded string
	code   uint32
}

func (a dictItem) Less(than btree.Item) bool {
	return a.folded < than.(dictItem).folded
}

const dictBTreeDegree = 32

func newDictionary() *Dictionary {
	return &Dictionary{index: btree.New(dictBTreeDegree)}
}

// Insert adds label if it is not already present (case-insensitively) and
// returns its code. An existing label returns its existing code unchanged;
// Insert never creates two codes for the same folded label.
func (d *Dictionary) Insert(label string) (uint32, error) {
	folded := strings.ToLower(label)
	if found := d.index.Get(dictItem{folded: folded}); found != nil {
		return found.(dictItem).code, nil
	}
	if uint32(len(d.labels)) > MaxValue {
		return 0, flowerr.New(flowerr.Memory, "dictionary is full")
	}
	code := uint32(len(d.labels))
	d.labels = append(d.labels, label)
	d.index.ReplaceOrInsert(dictItem{folded: folded, code: code})
	return code, nil
}

// Lookup returns the code bound to label, case-insensitively.
func (d *Dictionary) Lookup(label string) (uint32, bool) {
	found := d.index.Get(dictItem{folded: strings.ToLower(label)})
	if found == nil {
		return 0, false
	}
	return found.(dictItem).code, true
}

// HasCode reports whether code is a valid index into the dictionary
// (inserted, including sparse placeholders).
func (d *Dictionary) HasCode(code uint32) bool {
	return code < uint32(len(d.labels))
}

// GetLabel returns the label bound to code, as originally inserted.
func (d *Dictionary) GetLabel(code uint32) (string, bool) {
	if code >= uint32(len(d.labels)) {
		return "", false
	}
	return d.labels[code], true
}

// Len returns the number of codes in the dictionary, including sparse
// placeholders.
func (d *Dictionary) Len() int { return len(d.labels) }

// growTo extends labels with empty placeholders (sparse codes, rendered
// as a lone NUL on disk) until it has at least n entries, without
// touching the reverse index.
func (d *Dictionary) growTo(n int) {
	for len(d.labels) < n {
		d.labels = append(d.labels, "")
	}
}

// Each calls fn with every code/label pair in code order, stopping early
// if fn returns false.
func (d *Dictionary) Each(fn func(code uint32, label string) bool) {
	for code, label := range d.labels {
		if !fn(uint32(code), label) {
			return
		}
	}
}

// rebuildIndex reconstructs the reverse index from labels, used after a
// dictionary is deserialized.
func (d *Dictionary) rebuildIndex() {
	d.index = btree.New(dictBTreeDegree)
	for code, label := range d.labels {
		if label == "" {
			continue
		}
		d.index.ReplaceOrInsert(dictItem{folded: strings.ToLower(label), code: uint32(code)})
	}
}

// marshal renders the dictionary as a single NUL-delimited byte buffer,
// concatenated by increasing code; a skipped (sparse) code contributes a
// lone NUL.
func (d *Dictionary) marshal() []byte {
	var buf []byte
	for _, label := range d.labels {
		buf = append(buf, label...)
		buf = append(buf, 0)
	}
	return buf
}

// unmarshal parses a marshaled dictionary buffer back into labels and
// rebuilds the reverse index.
func (d *Dictionary) unmarshal(buf []byte) error {
	d.labels = nil
	start := 0
	for i, b := range buf {
		if b != 0 {
			continue
		}
		d.labels = append(d.labels, string(buf[start:i]))
		start = i + 1
	}
	if start != len(buf) {
		return flowerr.New(flowerr.BadHeader, "dictionary buffer missing trailing NUL")
	}
	d.rebuildIndex()
	return nil
}
