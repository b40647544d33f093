// Package iobuf implements the compressed, block-structured I/O buffer: a
// sequential read/write API layered over an abstract channel, with
// transparent per-block compression and best-effort random-access skip.
package iobuf

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"

	"github.com/flowcore/flowcore/flowerr"
)

// DefaultBlockSize is the default uncompressed block size: 64 KiB.
const DefaultBlockSize = 64 * 1024

// MaxBlockSize is the largest block size a buffer accepts.
const MaxBlockSize = 1 << 24

// DefaultRecordSize is the default record-alignment quantum.
const DefaultRecordSize = 1

// overreadPad is the slack allocated past the advertised uncompressed
// length, to tolerate codecs (historically lzo1x_decompress_asm_fast_safe)
// that write in 4-byte units past the logical end. Kept unconditionally
// for format compatibility with streams produced elsewhere.
const overreadPad = 3

// blockHeaderSize is the size of the [compr_size][uncompr_size] prefix
// written before each compressed block.
const blockHeaderSize = 8

var log logrus.FieldLogger = logrus.New()

// SetLogger overrides the logger used for best-effort, non-fatal paths
// (e.g. a writer's final flush on Close failing silently).
func SetLogger(l logrus.FieldLogger) { log = l }

// common holds the state shared by Reader and Writer: the bound channel,
// detected optional capabilities, compression configuration, and the
// first error encountered (which subsequent operations must preserve).
type common struct {
	ch      any
	seeker  Seeker
	flusher Flusher

	method     Method
	codec      codec
	blockSize  int
	recordSize int

	configured bool // true once blockSize/recordSize are frozen by first use
	firstErr   error
	totalBytes int64
}

// bind wires up a channel and detects its optional capabilities.
func (c *common) bind(ch any, method Method) error {
	cd, err := lookupCodec(method)
	if err != nil {
		return err
	}
	c.ch = ch
	c.method = method
	c.codec = cd
	c.blockSize = DefaultBlockSize
	c.recordSize = DefaultRecordSize
	if s, ok := ch.(Seeker); ok {
		c.seeker = s
	}
	if f, ok := ch.(Flusher); ok {
		c.flusher = f
	}
	return nil
}

// setErr records err as the buffer's sticky first error, if none is
// already recorded, and returns the sticky error either way.
func (c *common) setErr(err error) error {
	if c.firstErr == nil {
		c.firstErr = err
	}
	return c.firstErr
}

// LastError returns the first error this buffer encountered, or nil.
func (c *common) LastError() error { return c.firstErr }

// TotalBytes returns the number of logical (uncompressed) bytes this
// buffer has transferred so far.
func (c *common) TotalBytes() int64 { return c.totalBytes }

// freeze locks block-size/record-size configuration on first use.
func (c *common) freeze() { c.configured = true }

// SetBlockSize sets the uncompressed block size. Must be called before
// the first read/write.
func (c *common) SetBlockSize(n int) error {
	if c.configured {
		return c.setErr(flowerr.New(flowerr.CallOrder, "SetBlockSize after first I/O"))
	}
	if n <= 0 || n > MaxBlockSize {
		return flowerr.Newf(flowerr.Args, "block size %d out of range", n)
	}
	c.blockSize = n
	return nil
}

// SetRecordSize sets the record-alignment quantum. Must be called before
// the first read/write.
func (c *common) SetRecordSize(n int) error {
	if c.configured {
		return c.setErr(flowerr.New(flowerr.CallOrder, "SetRecordSize after first I/O"))
	}
	if n <= 0 {
		return flowerr.Newf(flowerr.Args, "record size %d out of range", n)
	}
	c.recordSize = n
	return nil
}

// alignedBlockSize is the padding quantum actually used to decide when to
// flush a block: block-size rounded down to a record-size multiple.
func (c *common) alignedBlockSize() int {
	return c.blockSize - (c.blockSize % c.recordSize)
}

func putBlockHeader(hdr []byte, comprSize, uncomprSize uint32) {
	binary.BigEndian.PutUint32(hdr[0:4], comprSize)
	binary.BigEndian.PutUint32(hdr[4:8], uncomprSize)
}

func getBlockHeader(hdr []byte) (comprSize, uncomprSize uint32) {
	return binary.BigEndian.Uint32(hdr[0:4]), binary.BigEndian.Uint32(hdr[4:8])
}
