package iobuf

import (
	"bytes"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	lzo "github.com/rasky/go-lzo"

	"github.com/flowcore/flowcore/flowerr"
)

// Method identifies an on-disk compression method, matching the
// compression-method id carried in the file header's start record.
type Method byte

const (
	MethodNone Method = iota
	MethodZlib
	MethodLZO
	MethodSnappy
)

func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodZlib:
		return "zlib"
	case MethodLZO:
		return "lzo"
	case MethodSnappy:
		return "snappy"
	default:
		return "unknown"
	}
}

// codec compresses and decompresses whole blocks. decompress is told the
// advertised uncompressed length up front, which is the authoritative
// length per the buffer's "over-read pad" contract: the codec may write
// past it into slack capacity, but must not report success with a
// different length.
type codec interface {
	compress(src []byte) ([]byte, error)
	decompress(dst []byte, uncompressedLen int, src []byte) (n int, err error)
}

var codecs = map[Method]codec{
	MethodNone:   noneCodec{},
	MethodZlib:   zlibCodec{},
	MethodLZO:    lzoCodec{},
	MethodSnappy: snappyCodec{},
}

func lookupCodec(m Method) (codec, error) {
	c, ok := codecs[m]
	if !ok {
		return nil, flowerr.Newf(flowerr.BadCompression, "unknown compression method %d", m)
	}
	return c, nil
}

type noneCodec struct{}

func (noneCodec) compress(src []byte) ([]byte, error) { return src, nil }
func (noneCodec) decompress(dst []byte, uncompressedLen int, src []byte) (int, error) {
	n := copy(dst, src)
	return n, nil
}

type zlibCodec struct{}

func (zlibCodec) compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, errors.Wrap(err, "zlib compress")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "zlib compress: close")
	}
	return buf.Bytes(), nil
}

func (zlibCodec) decompress(dst []byte, uncompressedLen int, src []byte) (int, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return 0, errors.Wrap(err, "zlib decompress")
	}
	defer r.Close()
	n, err := io.ReadFull(r, dst[:uncompressedLen])
	if err != nil && err != io.ErrUnexpectedEOF {
		return n, errors.Wrap(err, "zlib decompress")
	}
	return n, nil
}

// lzoCodec wraps github.com/rasky/go-lzo's LZO1X block codec. LZO1X
// decompressors may write up to 3 bytes past the logical output end,
// which is why the reader keeps the overrun pad unconditionally.
type lzoCodec struct{}

func (lzoCodec) compress(src []byte) ([]byte, error) {
	return lzo.Compress1X(src), nil
}

func (lzoCodec) decompress(dst []byte, uncompressedLen int, src []byte) (int, error) {
	out, err := lzo.Decompress1X(bytes.NewReader(src), len(src), uncompressedLen)
	if err != nil {
		return 0, errors.Wrap(err, "lzo decompress")
	}
	n := copy(dst, out)
	return n, nil
}

type snappyCodec struct{}

func (snappyCodec) compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCodec) decompress(dst []byte, uncompressedLen int, src []byte) (int, error) {
	out, err := snappy.Decode(nil, src)
	if err != nil {
		return 0, errors.Wrap(err, "snappy decompress")
	}
	n := copy(dst, out)
	return n, nil
}
