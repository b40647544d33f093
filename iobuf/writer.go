package iobuf

import (
	"io"

	"github.com/pkg/errors"

	"github.com/flowcore/flowcore/flowerr"
)

// Writer buffers bytes and flushes them, optionally compressed, as fixed
// (record-aligned) blocks to a bound Channel.
type Writer struct {
	common
	wr  io.Writer
	buf []byte // accumulated uncompressed bytes, not yet flushed
}

// NewWriter creates an unbound Writer. Call Bind before writing.
func NewWriter() *Writer { return &Writer{} }

// Bind attaches ch as the writer's channel, using the given compression
// method. Bind must be called exactly once, before any Write.
func (w *Writer) Bind(ch io.Writer, method Method) error {
	if err := w.bind(ch, method); err != nil {
		return err
	}
	w.wr = ch
	return nil
}

// Write appends p to the internal buffer, flushing whole blocks as the
// buffer fills, and returns len(p), nil on success.
func (w *Writer) Write(p []byte) (int, error) {
	if w.firstErr != nil {
		return 0, w.firstErr
	}
	w.freeze()

	if w.wr == nil {
		return 0, w.setErr(flowerr.New(flowerr.CallOrder, "Write before Bind"))
	}
	n := len(p)
	w.buf = append(w.buf, p...)
	w.totalBytes += int64(n)

	aligned := w.alignedBlockSize()
	for len(w.buf) >= aligned && aligned > 0 {
		if err := w.flushBlock(w.buf[:aligned]); err != nil {
			return 0, w.setErr(err)
		}
		w.buf = w.buf[aligned:]
	}
	return n, nil
}

// Flush compresses and writes any partial block currently buffered. The
// partial block must be record-aligned; callers that write in
// non-record-multiple chunks should pad before calling Flush.
func (w *Writer) Flush() error {
	if w.firstErr != nil {
		return w.firstErr
	}
	if w.wr == nil {
		return w.setErr(flowerr.New(flowerr.CallOrder, "Flush before Bind"))
	}
	if len(w.buf)%w.recordSize != 0 {
		return w.setErr(flowerr.Newf(flowerr.Args, "partial block of %d bytes is not record-aligned (record size %d)", len(w.buf), w.recordSize))
	}
	if len(w.buf) > 0 {
		if err := w.flushBlock(w.buf); err != nil {
			return w.setErr(err)
		}
		w.buf = w.buf[:0]
	}
	if w.flusher != nil {
		if err := w.flusher.Flush(); err != nil {
			return w.setErr(flowerr.Wrap(err, flowerr.IO, "channel flush"))
		}
	}
	return nil
}

// flushBlock compresses block (when method != none) and writes the
// size-prefixed frame, or writes block raw when method == none.
func (w *Writer) flushBlock(block []byte) error {
	if w.method == MethodNone {
		return w.writeAll(block)
	}

	compressed, err := w.codec.compress(block)
	if err != nil {
		return flowerr.Wrap(err, flowerr.BadCompression, "block compress")
	}

	var hdr [blockHeaderSize]byte
	putBlockHeader(hdr[:], uint32(len(compressed)), uint32(len(block)))
	if err := w.writeAll(hdr[:]); err != nil {
		return err
	}
	return w.writeAll(compressed)
}

func (w *Writer) writeAll(p []byte) error {
	n, err := w.wr.Write(p)
	if err != nil {
		return flowerr.Wrap(err, flowerr.IO, "channel write")
	}
	if n != len(p) {
		return flowerr.Newf(flowerr.ShortWrite, "wrote %d of %d bytes", n, len(p))
	}
	return nil
}

// writeEndMarker writes the compr_size=0 sentinel that signals logical
// end-of-stream for a compressed (method != none) stream. It is not called
// automatically by Close; embedding formats call it explicitly when they
// need to delimit a compressed sub-stream inside a larger enclosing one.
func (w *Writer) writeEndMarker() error {
	if w.method == MethodNone {
		return nil
	}
	var hdr [blockHeaderSize]byte
	putBlockHeader(hdr[:], 0, 0)
	return w.writeAll(hdr[:])
}

// WriteEndMarker is the exported form of writeEndMarker.
func (w *Writer) WriteEndMarker() error {
	if err := w.writeEndMarker(); err != nil {
		return w.setErr(err)
	}
	return nil
}

// Close flushes any remaining buffered bytes. Per the destructor contract,
// a failure here is logged and tolerated rather than returned, unless the
// caller wants to observe it — Close does return the error too, but a
// writer being torn down via defer w.Close() without checking is the
// expected, supported usage.
func (w *Writer) Close() error {
	err := w.Flush()
	if err != nil {
		log.WithError(err).Debug("iobuf: writer close: final flush failed")
	}
	if closer, ok := w.ch.(interface{ Close() error }); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "channel close")
		}
	}
	return err
}
