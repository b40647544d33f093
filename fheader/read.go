package fheader

import (
	"io"

	"github.com/flowcore/flowcore/flowerr"
)

// UnknownEntry records a header entry whose type-id had no registered
// codec. Its payload is preserved as opaque bytes rather than rejected.
type UnknownEntry struct {
	TypeID  EntryType
	Payload []byte
}

// Read parses a start record followed by the entry list, dispatching
// legacy file formats (FileVersion < ExpandedInitVersion) to their
// registered LegacyReader instead. Unknown returns any entries whose
// type-id had no registered codec, for callers that want to inspect them.
func Read(r io.Reader) (h *Header, unknown []UnknownEntry, err error) {
	var raw [startRecordSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, nil, flowerr.Wrap(err, flowerr.BadHeader, "read start record")
	}

	if raw[0] != Magic[0] || raw[1] != Magic[1] || raw[2] != Magic[2] || raw[3] != Magic[3] {
		return nil, nil, flowerr.New(flowerr.BadMagic, "bad file magic")
	}

	h = &Header{}
	h.Start.Magic = Magic
	h.Start.Flags = raw[4]
	h.Start.FileFormat = FileFormat(raw[5])
	h.Start.FileVersion = raw[6]
	h.Start.Compression = raw[7]

	order := h.Start.byteOrder()
	h.Start.WriterVersion = order.Uint32(raw[8:12])
	h.Start.RecordSize = order.Uint16(raw[12:14])
	h.Start.RecordVersion = order.Uint16(raw[14:16])

	if h.Start.FileVersion < ExpandedInitVersion {
		legacyReader, recordSizeFn, ok := lookupLegacy(h.Start.FileFormat)
		if !ok {
			return nil, nil, flowerr.Newf(flowerr.BadVersion, "no legacy reader registered for file format %d", h.Start.FileFormat)
		}
		if recordSizeFn != nil {
			h.Start.RecordSize = recordSizeFn(h.Start.FileVersion)
		}
		rest, err := io.ReadAll(r)
		if err != nil {
			return nil, nil, flowerr.Wrap(err, flowerr.IO, "read legacy payload")
		}
		legacy, err := legacyReader(h.Start, rest)
		if err != nil {
			return nil, nil, err
		}
		return legacy, nil, nil
	}

	for {
		var eh [entryHeaderSize]byte
		if _, err := io.ReadFull(r, eh[:]); err != nil {
			return nil, nil, flowerr.Wrap(err, flowerr.BadHeader, "read entry header")
		}
		typeID := EntryType(order.Uint32(eh[0:4]))
		length := order.Uint32(eh[4:8])
		if length < entryHeaderSize {
			return nil, nil, flowerr.Newf(flowerr.BadHeader, "entry length %d shorter than header", length)
		}
		payloadLen := length - entryHeaderSize

		payload := make([]byte, payloadLen)
		if payloadLen > 0 {
			if _, err := io.ReadFull(r, payload); err != nil {
				return nil, nil, flowerr.Wrap(err, flowerr.BadHeader, "read entry payload (truncated entry)")
			}
		}

		switch typeID {
		case EntryTypeEnd:
			return h, unknown, nil
		case EntryTypePadding:
			continue
		default:
			if _, ok := Lookup(typeID); !ok {
				unknown = append(unknown, UnknownEntry{TypeID: typeID, Payload: payload})
			}
			h.Entries = append(h.Entries, Entry{TypeID: typeID, Payload: payload})
		}
	}
}
