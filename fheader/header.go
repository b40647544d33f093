// Package fheader implements the extensible file-header format shared by
// every on-disk artifact in flowcore: a fixed 16-byte start record followed
// by an ordered list of typed, length-prefixed header entries.
package fheader

import (
	"encoding/binary"

	"github.com/flowcore/flowcore/flowerr"
)

// Magic is the 4-byte sequence every flowcore file begins with.
var Magic = [4]byte{0xDE, 0xAD, 0xBE, 0xEF}

// FileFlag bits within StartRecord.Flags.
const (
	FlagBigEndian byte = 1 << 0
)

// FileFormat identifies the payload kind that follows the header.
type FileFormat byte

// ExpandedInitVersion is the first FileVersion that uses the extensible
// entry-list header instead of a format-specific legacy reader.
const ExpandedInitVersion = 16

// StartRecord is the fixed first 16 bytes of every flowcore file.
type StartRecord struct {
	Magic         [4]byte
	Flags         byte
	FileFormat    FileFormat
	FileVersion   byte
	Compression   byte
	WriterVersion uint32
	RecordSize    uint16
	RecordVersion uint16
}

const startRecordSize = 16

// byteOrder returns the binary.ByteOrder this start record's Flags select.
func (s StartRecord) byteOrder() binary.ByteOrder {
	if s.Flags&FlagBigEndian != 0 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// EntryType identifies the kind of a header entry. Two values are reserved
// sentinels.
type EntryType uint32

const (
	// EntryTypePadding entries are skipped on read; writers emit one sized
	// to reach the configured padding modulus.
	EntryTypePadding EntryType = 0
	// EntryTypeEnd terminates the entry list.
	EntryTypeEnd EntryType = 1
	// firstUserType is the lowest type-id subsystems may register.
	firstUserType EntryType = 2
)

const entryHeaderSize = 8 // type-id(4) + length(4), length counts the header itself

// Entry is one typed header entry: TypeID identifies its codec via the
// Registry, Payload is its undecoded bytes (length - 8).
type Entry struct {
	TypeID  EntryType
	Payload []byte
}

// LockState restricts what mutations a Header accepts.
type LockState byte

const (
	// Mutable allows any mutation.
	Mutable LockState = iota
	// FixedStructure disallows adding/removing entries or changing the
	// start record, but entry payloads already present may still be
	// replaced in place by the owning subsystem.
	FixedStructure
	// ReadOnly disallows all mutation.
	ReadOnly
)

// Header is a parsed or under-construction file header: a start record
// plus an ordered entry list.
type Header struct {
	Start   StartRecord
	Entries []Entry
	lock    LockState
}

// New creates a Header in the Mutable state with the given file format and
// default start-record fields (little-endian, compression none).
func New(format FileFormat) *Header {
	h := &Header{}
	h.Start.Magic = Magic
	h.Start.FileFormat = format
	return h
}

// Lock transitions the header to a more restrictive lock state. Moving to
// a less restrictive state is rejected.
func (h *Header) Lock(to LockState) error {
	if to < h.lock {
		return flowerr.Newf(flowerr.Args, "cannot unlock header from %d to %d", h.lock, to)
	}
	h.lock = to
	return nil
}

// LockState reports the header's current lock state.
func (h *Header) LockState() LockState { return h.lock }

// ByteOrder returns the binary.ByteOrder this header's start record
// selects, for subsystems that need to decode their own entry payloads
// with the file's endianness.
func (h *Header) ByteOrder() binary.ByteOrder { return h.Start.byteOrder() }

func (h *Header) checkMutable(structural bool) error {
	if h.lock == ReadOnly {
		return flowerr.New(flowerr.Locked, "header is read-only")
	}
	if structural && h.lock >= FixedStructure {
		return flowerr.New(flowerr.Locked, "header structure is fixed")
	}
	return nil
}

// SetFileFormat sets the start record's file-format id.
func (h *Header) SetFileFormat(f FileFormat) error {
	if err := h.checkMutable(true); err != nil {
		return err
	}
	h.Start.FileFormat = f
	return nil
}

// SetRecordVersion sets the start record's record-version field.
func (h *Header) SetRecordVersion(v uint16) error {
	if err := h.checkMutable(true); err != nil {
		return err
	}
	h.Start.RecordVersion = v
	return nil
}

// SetCompression sets the start record's compression-method id.
func (h *Header) SetCompression(method byte) error {
	if err := h.checkMutable(true); err != nil {
		return err
	}
	h.Start.Compression = method
	return nil
}

// SetByteOrder sets or clears the big-endian flag.
func (h *Header) SetByteOrder(bigEndian bool) error {
	if err := h.checkMutable(true); err != nil {
		return err
	}
	if bigEndian {
		h.Start.Flags |= FlagBigEndian
	} else {
		h.Start.Flags &^= FlagBigEndian
	}
	return nil
}

// AddEntry appends an entry. id must not be one of the reserved sentinels.
func (h *Header) AddEntry(id EntryType, payload []byte) error {
	if err := h.checkMutable(true); err != nil {
		return err
	}
	if id == EntryTypePadding || id == EntryTypeEnd {
		return flowerr.Newf(flowerr.Args, "entry type %d is reserved", id)
	}
	h.Entries = append(h.Entries, Entry{TypeID: id, Payload: payload})
	return nil
}

// GetFirstMatching returns the first entry with the given type, if any.
func (h *Header) GetFirstMatching(id EntryType) (Entry, bool) {
	for _, e := range h.Entries {
		if e.TypeID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// baseOffset returns the byte offset reached after the start record and
// all explicitly-added entries, before any padding or end entry.
func (h *Header) baseOffset() int {
	off := startRecordSize
	for _, e := range h.Entries {
		off += entryHeaderSize + len(e.Payload)
	}
	return off
}

// paddingModulus returns the modulus headers pad the post-header offset
// to: the start record's RecordSize, or 1 if that is zero (no padding).
func (h *Header) paddingModulus() int {
	if h.Start.RecordSize == 0 {
		return 1
	}
	return int(h.Start.RecordSize)
}
