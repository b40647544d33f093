package fheader

import (
	"encoding/binary"
	"io"

	"github.com/flowcore/flowcore/flowerr"
)

// Write serializes the start record, the entry list, a padding entry
// (sized so the post-header offset is a multiple of the header's padding
// modulus), and the end-of-header sentinel, in that order.
func (h *Header) Write(w io.Writer) error {
	order := h.Start.byteOrder()

	var start [startRecordSize]byte
	copy(start[0:4], h.Start.Magic[:])
	start[4] = h.Start.Flags
	start[5] = byte(h.Start.FileFormat)
	start[6] = h.Start.FileVersion
	start[7] = h.Start.Compression
	order.PutUint32(start[8:12], h.Start.WriterVersion)
	order.PutUint16(start[12:14], h.Start.RecordSize)
	order.PutUint16(start[14:16], h.Start.RecordVersion)
	if _, err := w.Write(start[:]); err != nil {
		return flowerr.Wrap(err, flowerr.IO, "write start record")
	}

	for _, e := range h.Entries {
		if err := writeEntry(w, order, e); err != nil {
			return err
		}
	}

	// If the end-of-header entry alone would leave the post-header offset
	// off the configured modulus, insert a padding entry sized to land it
	// on a multiple.
	modulus := h.paddingModulus()
	base := h.baseOffset() + entryHeaderSize
	if base%modulus != 0 {
		pad := (modulus - (base+entryHeaderSize)%modulus) % modulus
		if err := writeEntry(w, order, Entry{TypeID: EntryTypePadding, Payload: make([]byte, pad)}); err != nil {
			return err
		}
	}

	return writeEntry(w, order, Entry{TypeID: EntryTypeEnd})
}

func writeEntry(w io.Writer, order binary.ByteOrder, e Entry) error {
	var hdr [entryHeaderSize]byte
	order.PutUint32(hdr[0:4], uint32(e.TypeID))
	order.PutUint32(hdr[4:8], uint32(entryHeaderSize+len(e.Payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return flowerr.Wrap(err, flowerr.IO, "write entry header")
	}
	if len(e.Payload) == 0 {
		return nil
	}
	if _, err := w.Write(e.Payload); err != nil {
		return flowerr.Wrap(err, flowerr.IO, "write entry payload")
	}
	return nil
}
