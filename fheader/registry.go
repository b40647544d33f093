package fheader

import "sync"

// EntryCodec packs and unpacks the payload of one header-entry type. pack
// must be deterministic; unpack must not retain a reference into the
// buffer it is given.
type EntryCodec interface {
	Pack(v any) ([]byte, error)
	Unpack(payload []byte) (any, error)
}

var (
	registryMu sync.Mutex
	registry   = map[EntryType]EntryCodec{}
)

// Register binds codec to id, process-wide. Registration is idempotent:
// calling it again with an equal id is a no-op as long as no other codec
// already claimed that id — registering a *different* codec for an
// already-registered id is a programmer error and panics. Each subsystem
// owns exactly one entry-type registration.
func Register(id EntryType, codec EntryCodec) {
	if id == EntryTypePadding || id == EntryTypeEnd {
		panic("fheader: cannot register a reserved entry type")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if existing, ok := registry[id]; ok {
		if existing == codec {
			return
		}
		panic("fheader: entry type already registered with a different codec")
	}
	registry[id] = codec
}

// Lookup returns the codec registered for id, if any.
func Lookup(id EntryType) (EntryCodec, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	c, ok := registry[id]
	return c, ok
}

// LegacyReader parses a legacy (pre-ExpandedInitVersion) file body directly
// from payload, given the already-parsed start record.
type LegacyReader func(start StartRecord, payload []byte) (*Header, error)

// legacyRegistry maps a file-format id to its legacy reader and its
// record-size-from-version function, for file versions below
// ExpandedInitVersion.
var (
	legacyMu            sync.Mutex
	legacyReaders       = map[FileFormat]LegacyReader{}
	legacyRecordSizeFns = map[FileFormat]func(version byte) uint16{}
)

// RegisterLegacy binds a legacy reader and record-size function to a
// file-format id.
func RegisterLegacy(format FileFormat, reader LegacyReader, recordSizeFromVersion func(version byte) uint16) {
	legacyMu.Lock()
	defer legacyMu.Unlock()
	legacyReaders[format] = reader
	legacyRecordSizeFns[format] = recordSizeFromVersion
}

func lookupLegacy(format FileFormat) (LegacyReader, func(byte) uint16, bool) {
	legacyMu.Lock()
	defer legacyMu.Unlock()
	r, ok := legacyReaders[format]
	if !ok {
		return nil, nil, false
	}
	return r, legacyRecordSizeFns[format], true
}
