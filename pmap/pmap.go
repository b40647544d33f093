package pmap

import (
	"github.com/flowcore/flowcore/flowerr"
	"github.com/flowcore/flowcore/internal/u128"
)

// Map ties together a trie, its companion dictionary, and the metadata
// (name, kind) needed to serialize and describe it. It is the unit that
// Load/Save, the filter glue, and the CLI demonstrator all operate on.
type Map struct {
	kind    Kind
	hasDict bool
	name    string

	trie *trie
	dict *Dictionary

	mutated     bool
	defaultSet  bool
	defaultCode uint32
}

// Create returns an empty map of the given kind. Proto/port maps always
// carry a dictionary; withDictionary is ignored for them.
func Create(kind Kind, withDictionary bool) (*Map, error) {
	switch kind {
	case KindIPv4, KindIPv6, KindProtoPort:
	default:
		return nil, flowerr.Newf(flowerr.Args, "unknown kind %d", kind)
	}
	if kind == KindProtoPort {
		withDictionary = true
	}
	return &Map{
		kind:    kind,
		hasDict: withDictionary,
		trie:    newTrie(kind),
		dict:    newDictionary(),
	}, nil
}

// ContentKind reports the key space this map indexes.
func (m *Map) ContentKind() Kind { return m.kind }

// Dict returns the map's dictionary, for collaborators (such as the
// filter glue) that need direct word/code access beyond FindLabel.
func (m *Map) Dict() *Dictionary { return m.dict }

// HasDictionary reports whether this map's on-disk format carries a
// dictionary. Maps without one (country-code and bare IPv6 formats) store
// raw values in their leaves instead of dictionary codes.
func (m *Map) HasDictionary() bool { return m.hasDict }

// SetName sets the map's display name, used for the PREFIXMAP_ID header
// entry and, by the filter glue, to derive option names.
func (m *Map) SetName(name string) { m.name = name }

// GetName returns the map's display name, or "" if unset.
func (m *Map) GetName() string { return m.name }

// SetDefaultCode assigns code to the map's entire key range. It may only
// be called before any AddRange call, since a later call to either would
// silently discard the other's effect on the overlapping region.
func (m *Map) SetDefaultCode(code uint32) error {
	if m.defaultSet {
		return flowerr.New(flowerr.NotEmpty, "default code already set")
	}
	if m.mutated {
		return flowerr.New(flowerr.NotEmpty, "map already holds inserted ranges")
	}
	width := m.kind.walkWidth()
	low := u128.U128{}
	high := u128.MaskBelow(uint(width))
	if err := m.trie.Insert(low, high, code); err != nil {
		return err
	}
	m.defaultSet = true
	m.defaultCode = code
	return nil
}

// AddRange assigns code to every key in [low, high].
func (m *Map) AddRange(low, high u128.U128, code uint32) error {
	if err := m.trie.Insert(low, high, code); err != nil {
		return err
	}
	m.mutated = true
	return nil
}

// FindCode returns the code assigned to key.
func (m *Map) FindCode(key u128.U128) uint32 {
	return m.trie.Lookup(key)
}

// FindRange returns the code assigned to key along with the [start, end]
// bounds of the trie leaf that holds it: the CIDR block at the depth the
// leaf was found. Neighbouring keys with the same code that sit in other
// leaves are not included.
func (m *Map) FindRange(key u128.U128) (start, end u128.U128, code uint32) {
	return m.trie.LookupRange(key)
}

// FindLabel looks key up and returns its dictionary label: the stored
// word if the map has one for the resolved code, "UNKNOWN" for the two
// reserved sentinel codes, or a decimal rendering of the code if no label
// is bound to it.
func (m *Map) FindLabel(key u128.U128) string {
	return m.renderLabel(m.FindCode(key))
}

func (m *Map) renderLabel(code uint32) string {
	if code == NotFound || code == MaxValue {
		return "UNKNOWN"
	}
	if label, ok := m.dict.GetLabel(code); ok && label != "" {
		return label
	}
	return decimalCode(code)
}

func decimalCode(code uint32) string {
	return u128.U128{Lo: uint64(code)}.String()
}

// DictInsert binds word to code in the map's dictionary. Codes outside
// [0, MaxValue] are rejected; a word already bound to a different code is
// rejected, returning the existing code; re-inserting the same pair is a
// no-op.
func (m *Map) DictInsert(code uint32, word string) (uint32, error) {
	if code > MaxValue {
		return 0, flowerr.Newf(flowerr.Args, "code %d exceeds maximum %d", code, MaxValue)
	}
	if existing, ok := m.dict.Lookup(word); ok {
		if existing != code {
			return existing, flowerr.Newf(flowerr.Duplicate, "word %q already bound to code %d", word, existing)
		}
		return existing, nil
	}
	m.dict.growTo(int(code) + 1)
	m.dict.labels[code] = word
	m.dict.rebuildIndex()
	return code, nil
}

// DictLookupWord returns the code bound to word, case-insensitively.
func (m *Map) DictLookupWord(word string) (uint32, bool) {
	return m.dict.Lookup(word)
}

// DictGetLabel renders code the same way FindLabel does.
func (m *Map) DictGetLabel(code uint32) string {
	return m.renderLabel(code)
}

// Close releases the map. Maps hold no external resources beyond Go's
// garbage-collected memory, so Close is a no-op kept for interface parity
// with I/O-buffer and header lifecycles.
func (m *Map) Close() error { return nil }
