package fheader

import (
	"bytes"
	"testing"
)

const testFormat FileFormat = 250
const testEntryType EntryType = 250

type testCodec struct{}

func (testCodec) Pack(v any) ([]byte, error)   { return []byte(v.(string)), nil }
func (testCodec) Unpack(p []byte) (any, error) { return string(p), nil }

func init() {
	Register(testEntryType, testCodec{})
}

func TestWriteReadRoundTrip(t *testing.T) {
	h := New(testFormat)
	if err := h.SetRecordVersion(7); err != nil {
		t.Fatalf("SetRecordVersion: %v", err)
	}
	if err := h.SetCompression(2); err != nil {
		t.Fatalf("SetCompression: %v", err)
	}
	h.Start.FileVersion = ExpandedInitVersion
	if err := h.AddEntry(testEntryType, []byte("hello")); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	var buf bytes.Buffer
	if err := h.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, unknown, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(unknown) != 0 {
		t.Fatalf("expected no unknown entries, got %d", len(unknown))
	}
	if got.Start.FileFormat != testFormat {
		t.Fatalf("got format %d, want %d", got.Start.FileFormat, testFormat)
	}
	if got.Start.RecordVersion != 7 {
		t.Fatalf("got record version %d, want 7", got.Start.RecordVersion)
	}
	e, ok := got.GetFirstMatching(testEntryType)
	if !ok {
		t.Fatalf("expected to find the test entry")
	}
	if string(e.Payload) != "hello" {
		t.Fatalf("got payload %q, want %q", e.Payload, "hello")
	}
}

func TestBadMagicRejected(t *testing.T) {
	buf := bytes.NewBufferString("not a flowcore file, way too short")
	if _, _, err := Read(buf); err == nil {
		t.Fatalf("expected an error for a bad magic")
	}
}

func TestUnknownEntryPreservedOpaque(t *testing.T) {
	const unregistered EntryType = 9001
	h := New(testFormat)
	h.Start.FileVersion = ExpandedInitVersion
	if err := h.AddEntry(unregistered, []byte("opaque")); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	var buf bytes.Buffer
	if err := h.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	_, unknown, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(unknown) != 1 || string(unknown[0].Payload) != "opaque" {
		t.Fatalf("expected the unregistered entry preserved opaquely, got %+v", unknown)
	}
}

func TestLockRejectsMutationAndUnlock(t *testing.T) {
	h := New(testFormat)
	if err := h.Lock(ReadOnly); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := h.SetCompression(1); err == nil {
		t.Fatalf("expected SetCompression to fail on a read-only header")
	}
	if err := h.Lock(Mutable); err == nil {
		t.Fatalf("expected unlocking to a less restrictive state to fail")
	}
}

func TestByteOrderFlag(t *testing.T) {
	h := New(testFormat)
	if h.ByteOrder() == nil {
		t.Fatalf("expected a non-nil default byte order")
	}
	if err := h.SetByteOrder(true); err != nil {
		t.Fatalf("SetByteOrder: %v", err)
	}
	if h.Start.Flags&FlagBigEndian == 0 {
		t.Fatalf("expected the big-endian flag to be set")
	}
}

func TestPaddingAlignsToRecordSize(t *testing.T) {
	h := New(testFormat)
	h.Start.FileVersion = ExpandedInitVersion
	h.Start.RecordSize = 32
	if err := h.AddEntry(testEntryType, []byte("x")); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	var buf bytes.Buffer
	if err := h.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len()%32 != 0 {
		t.Fatalf("expected the post-header offset to be padded to a multiple of 32, got %d", buf.Len())
	}
}

func TestLegacyDispatch(t *testing.T) {
	const legacyFormat FileFormat = 251
	RegisterLegacy(legacyFormat,
		func(start StartRecord, payload []byte) (*Header, error) {
			h := &Header{Start: start}
			h.Entries = append(h.Entries, Entry{TypeID: testEntryType, Payload: payload})
			return h, nil
		},
		func(version byte) uint16 { return uint16(version) * 4 },
	)

	var buf bytes.Buffer
	start := [16]byte{0xDE, 0xAD, 0xBE, 0xEF}
	start[5] = byte(legacyFormat)
	start[6] = 3 // below ExpandedInitVersion, selects the legacy reader
	buf.Write(start[:])
	buf.WriteString("legacy-body")

	h, _, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if h.Start.RecordSize != 12 {
		t.Fatalf("got record size %d, want 12 from the version-derived size function", h.Start.RecordSize)
	}
	e, ok := h.GetFirstMatching(testEntryType)
	if !ok || string(e.Payload) != "legacy-body" {
		t.Fatalf("expected the legacy reader to capture the body, got %+v", h.Entries)
	}
}

func TestLegacyVersionWithoutReaderRejected(t *testing.T) {
	var buf bytes.Buffer
	start := [16]byte{0xDE, 0xAD, 0xBE, 0xEF}
	start[5] = 252 // no legacy reader registered for this format
	start[6] = 1
	buf.Write(start[:])

	if _, _, err := Read(&buf); err == nil {
		t.Fatalf("expected an error for a legacy version with no registered reader")
	}
}
