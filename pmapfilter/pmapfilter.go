// Package pmapfilter exposes a loaded prefix map to filtering and
// formatting collaborators: match predicates built from comma-separated
// label lists, and printable fields that render a looked-up code as its
// dictionary label.
package pmapfilter

import (
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/flowcore/flowcore/flowerr"
	"github.com/flowcore/flowcore/internal/u128"
	"github.com/flowcore/flowcore/pmap"
)

// Predicate accepts or rejects a record according to whether its key
// resolves to one of a fixed set of codes.
type Predicate struct {
	m          *pmap.Map
	accepted   *bitset.BitSet
	wantsNone  bool // NotFound was explicitly listed
	wantsSpare bool // MaxValue was explicitly listed
}

// NewPredicate parses labels (comma-separated) against m's dictionary,
// falling back to a decimal code when a label does not resolve to a word;
// for a map with a dictionary that code must exist in it, while a map
// without one accepts any legal code. The two
// reserved sentinel codes never appear in a dictionary, so they are
// tracked outside the bitmap rather than forcing it to span the full
// 31-bit code space.
func NewPredicate(m *pmap.Map, labels string) (*Predicate, error) {
	p := &Predicate{m: m, accepted: bitset.New(uint(m.Dict().Len()))}
	for _, label := range splitLabels(labels) {
		code, err := resolveLabel(m, label)
		if err != nil {
			return nil, err
		}
		switch code {
		case pmap.NotFound:
			p.wantsNone = true
		case pmap.MaxValue:
			p.wantsSpare = true
		default:
			p.accepted.Set(uint(code))
		}
	}
	return p, nil
}

func splitLabels(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func resolveLabel(m *pmap.Map, label string) (uint32, error) {
	if code, ok := m.DictLookupWord(label); ok {
		return code, nil
	}
	n, err := strconv.ParseUint(label, 10, 32)
	if err != nil {
		return 0, flowerr.Newf(flowerr.Args, "label %q is neither a known dictionary word nor a valid code", label)
	}
	code := uint32(n)
	if code == pmap.NotFound || code == pmap.MaxValue {
		return code, nil
	}
	if code > pmap.MaxValue {
		return 0, flowerr.Newf(flowerr.Args, "code %d exceeds the maximum legal code", code)
	}
	// Dictionary-less maps carry raw values in their leaves, so any legal
	// code is acceptable; with a dictionary, the code must exist in it.
	if m.HasDictionary() && !m.Dict().HasCode(code) {
		return 0, flowerr.Newf(flowerr.Args, "code %d does not exist in the map's dictionary", code)
	}
	return code, nil
}

// Accepts reports whether key's resolved code is in the predicate's
// accepted set.
func (p *Predicate) Accepts(key u128.U128) bool {
	code := p.m.FindCode(key)
	switch code {
	case pmap.NotFound:
		return p.wantsNone
	case pmap.MaxValue:
		return p.wantsSpare
	default:
		return p.accepted.Test(uint(code))
	}
}

// FieldFunc renders a record's address/port field as its dictionary
// label (or a decimal fallback), for use as a printable report column.
type FieldFunc func(key u128.U128) string

// NewFieldFunc returns a FieldFunc bound to m.
func NewFieldFunc(m *pmap.Map) FieldFunc {
	return func(key u128.U128) string { return m.FindLabel(key) }
}
