package pmap

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/flowcore/flowcore/fheader"
	"github.com/flowcore/flowcore/flowerr"
	"github.com/flowcore/flowcore/iobuf"
)

// FTPrefixMap is the file-format id a prefix-map file's start record carries.
const FTPrefixMap fheader.FileFormat = 1

// PrefixMapID is the header-entry type carrying the optional map name.
const PrefixMapID fheader.EntryType = 2

// version byte values from the on-disk format table: which key kind and
// whether a dictionary follows the record array.
const (
	versionIPv4NoDict    byte = 1
	versionIPv4Dict      byte = 2
	versionProtoPortDict byte = 3
	versionIPv6Dict      byte = 4
	versionIPv6NoDict    byte = 5
)

func formatVersion(kind Kind, hasDict bool) (byte, error) {
	switch kind {
	case KindIPv4:
		if hasDict {
			return versionIPv4Dict, nil
		}
		return versionIPv4NoDict, nil
	case KindIPv6:
		if hasDict {
			return versionIPv6Dict, nil
		}
		return versionIPv6NoDict, nil
	case KindProtoPort:
		if !hasDict {
			return 0, flowerr.New(flowerr.Args, "proto/port maps always carry a dictionary")
		}
		return versionProtoPortDict, nil
	default:
		return 0, flowerr.Newf(flowerr.Args, "unknown kind %d", kind)
	}
}

func kindFromVersion(v byte) (kind Kind, hasDict bool, err error) {
	switch v {
	case versionIPv4NoDict:
		return KindIPv4, false, nil
	case versionIPv4Dict:
		return KindIPv4, true, nil
	case versionProtoPortDict:
		return KindProtoPort, true, nil
	case versionIPv6Dict:
		return KindIPv6, true, nil
	case versionIPv6NoDict:
		return KindIPv6, false, nil
	default:
		return 0, false, flowerr.Newf(flowerr.BadVersion, "unsupported prefix map version %d", v)
	}
}

// nameCodec implements fheader.EntryCodec for PrefixMapID entries. The
// name entry's own version field is always written big-endian; the file's
// byte-order flag does not apply to it. Unpack skips the field without
// reading its value.
type nameCodec struct{}

const nameEntryVersion uint32 = 1

func (nameCodec) Pack(v any) ([]byte, error) {
	name, ok := v.(string)
	if !ok {
		return nil, flowerr.New(flowerr.Args, "name codec expects a string")
	}
	buf := make([]byte, 4, 4+len(name)+1)
	binary.BigEndian.PutUint32(buf, nameEntryVersion)
	buf = append(buf, name...)
	buf = append(buf, 0)
	return buf, nil
}

func (nameCodec) Unpack(payload []byte) (any, error) {
	if len(payload) < 4 {
		return nil, flowerr.New(flowerr.BadHeader, "name entry shorter than its version field")
	}
	nul := bytes.IndexByte(payload[4:], 0)
	if nul < 0 {
		return nil, flowerr.New(flowerr.BadHeader, "name entry missing NUL terminator")
	}
	return string(payload[4 : 4+nul]), nil
}

func init() {
	fheader.Register(PrefixMapID, nameCodec{})
}

// Save writes the header, optional name entry, record array, and (if this
// map's version carries one) dictionary, through a compressed block
// stream using method.
func (m *Map) Save(w io.Writer, method iobuf.Method) error {
	version, err := formatVersion(m.kind, m.hasDict)
	if err != nil {
		return err
	}

	h := fheader.New(FTPrefixMap)
	if err := h.SetRecordVersion(uint16(version)); err != nil {
		return err
	}
	if err := h.SetCompression(byte(method)); err != nil {
		return err
	}
	// FileVersion must stay at or above fheader.ExpandedInitVersion so the
	// generic entry-list reader is used; the prefix-map format version
	// (which key kind, whether a dictionary follows) rides in RecordVersion
	// instead, since it predates and is independent of that cutoff.
	h.Start.FileVersion = fheader.ExpandedInitVersion
	if m.name != "" {
		packed, err := nameCodec{}.Pack(m.name)
		if err != nil {
			return err
		}
		if err := h.AddEntry(PrefixMapID, packed); err != nil {
			return err
		}
	}
	if err := h.Write(w); err != nil {
		return err
	}

	iw := iobuf.NewWriter()
	if err := iw.Bind(w, method); err != nil {
		return err
	}

	order := h.ByteOrder()
	var hdr [4]byte
	order.PutUint32(hdr[:], uint32(len(m.trie.records)))
	if _, err := iw.Write(hdr[:]); err != nil {
		return err
	}
	recBuf := make([]byte, 8*len(m.trie.records))
	for i, rec := range m.trie.records {
		order.PutUint32(recBuf[i*8:], uint32(rec.left))
		order.PutUint32(recBuf[i*8+4:], uint32(rec.right))
	}
	if _, err := iw.Write(recBuf); err != nil {
		return err
	}

	if m.hasDict {
		dictBytes := m.dict.marshal()
		var lenBuf [4]byte
		order.PutUint32(lenBuf[:], uint32(len(dictBytes)))
		if _, err := iw.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := iw.Write(dictBytes); err != nil {
			return err
		}
	}

	if err := iw.Flush(); err != nil {
		return err
	}
	if err := iw.WriteEndMarker(); err != nil {
		return err
	}
	return iw.Close()
}

// Load reads a prefix-map file: header, optional name entry, record
// array, and optional dictionary, validating the trie before returning.
func Load(r io.Reader) (*Map, error) {
	h, _, err := fheader.Read(r)
	if err != nil {
		return nil, err
	}
	if h.Start.FileFormat != FTPrefixMap {
		return nil, flowerr.Newf(flowerr.BadVersion, "not a prefix map file (format id %d)", h.Start.FileFormat)
	}
	kind, hasDict, err := kindFromVersion(byte(h.Start.RecordVersion))
	if err != nil {
		return nil, err
	}

	m := &Map{kind: kind, hasDict: hasDict, trie: newTrie(kind), dict: newDictionary()}
	if e, ok := h.GetFirstMatching(PrefixMapID); ok {
		name, err := nameCodec{}.Unpack(e.Payload)
		if err != nil {
			return nil, err
		}
		m.name = name.(string)
	}

	ir := iobuf.NewReader()
	if err := ir.Bind(r, iobuf.Method(h.Start.Compression)); err != nil {
		return nil, err
	}

	order := h.ByteOrder()
	var countBuf [4]byte
	if _, err := io.ReadFull(ir, countBuf[:]); err != nil {
		return nil, flowerr.Wrap(err, flowerr.IO, "read record count")
	}
	count := order.Uint32(countBuf[:])

	recBuf := make([]byte, 8*int(count))
	if _, err := io.ReadFull(ir, recBuf); err != nil {
		return nil, flowerr.Wrap(err, flowerr.IO, "read record array")
	}
	m.trie.records = make([]record, count)
	for i := range m.trie.records {
		m.trie.records[i] = record{
			left:  slot(order.Uint32(recBuf[i*8:])),
			right: slot(order.Uint32(recBuf[i*8+4:])),
		}
	}

	if hasDict {
		var lenBuf [4]byte
		if _, err := io.ReadFull(ir, lenBuf[:]); err != nil {
			return nil, flowerr.Wrap(err, flowerr.IO, "read dictionary length")
		}
		dictBytes := make([]byte, order.Uint32(lenBuf[:]))
		if _, err := io.ReadFull(ir, dictBytes); err != nil {
			return nil, flowerr.Wrap(err, flowerr.IO, "read dictionary bytes")
		}
		if err := m.dict.unmarshal(dictBytes); err != nil {
			return nil, err
		}
	}

	if err := m.trie.truncateToValidPrefix(); err != nil {
		return nil, err
	}
	if err := m.trie.validateDepth(); err != nil {
		return nil, err
	}
	m.checkDictCoverage()

	return m, nil
}
