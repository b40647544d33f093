package iobuf

import (
	"io"

	"github.com/flowcore/flowcore/flowerr"
)

// Reader decompresses and serves bytes from a bound Channel, one block at
// a time.
type Reader struct {
	common
	rd           io.Reader
	uncompressed []byte // current block's decoded bytes
	pos          int    // read cursor into uncompressed
	eof          bool
	ungot        []byte // bytes pushed back via Unget, served before uncompressed

	pendingHeader []byte // a block header read but not yet consumed by loadBlock
}

// NewReader creates an unbound Reader. Call Bind before reading.
func NewReader() *Reader { return &Reader{} }

// Bind attaches ch as the reader's channel, using the given compression
// method. Bind must be called exactly once, before any Read.
func (r *Reader) Bind(ch io.Reader, method Method) error {
	if err := r.bind(ch, method); err != nil {
		return err
	}
	r.rd = ch
	return nil
}

// Close releases the underlying channel, if it is closeable.
func (r *Reader) Close() error {
	if closer, ok := r.ch.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Read serves up to len(p) bytes, loading further blocks as needed. It
// returns io.EOF once the channel and all buffered blocks are exhausted.
func (r *Reader) Read(p []byte) (int, error) {
	if r.firstErr != nil {
		return 0, r.firstErr
	}
	if r.rd == nil {
		return 0, r.setErr(flowerr.New(flowerr.CallOrder, "Read before Bind"))
	}
	r.freeze()

	total := 0
	for total < len(p) {
		if len(r.ungot) > 0 {
			n := copy(p[total:], r.ungot)
			r.ungot = r.ungot[n:]
			total += n
			continue
		}
		if r.pos >= len(r.uncompressed) {
			if r.eof {
				break
			}
			if err := r.loadBlock(); err != nil {
				if err == io.EOF {
					r.eof = true
					break
				}
				return total, r.setErr(err)
			}
		}
		n := copy(p[total:], r.uncompressed[r.pos:])
		r.pos += n
		total += n
	}

	r.totalBytes += int64(total)
	if total == 0 && r.eof {
		return 0, io.EOF
	}
	return total, nil
}

// ReadUntil reads bytes up to and including the first occurrence of delim,
// or until EOF. The returned slice does not include delim-trailing bytes
// beyond the delimiter itself; io.EOF is returned alongside any bytes read
// when the channel is exhausted before delim is seen.
func (r *Reader) ReadUntil(delim byte) ([]byte, error) {
	var out []byte
	var b [1]byte
	for {
		n, err := r.Read(b[:])
		if n == 1 {
			out = append(out, b[0])
			if b[0] == delim {
				return out, nil
			}
		}
		if err != nil {
			return out, err
		}
	}
}

// Unget pushes bytes back so the next Read serves them before anything
// else. Used by formats that need to peek ahead.
func (r *Reader) Unget(b []byte) {
	r.ungot = append(append([]byte(nil), b...), r.ungot...)
}

// Skip discards the next n bytes, using seek-based skipping when the
// channel supports it and falling back to read-and-discard otherwise.
func (r *Reader) Skip(n int64) error {
	if r.firstErr != nil {
		return r.firstErr
	}
	if r.rd == nil {
		return r.setErr(flowerr.New(flowerr.CallOrder, "Skip before Bind"))
	}
	r.freeze()

	for n > 0 {
		if len(r.ungot) > 0 {
			k := int64(len(r.ungot))
			if k > n {
				k = n
			}
			r.ungot = r.ungot[k:]
			n -= k
			continue
		}
		if r.pos < len(r.uncompressed) {
			avail := int64(len(r.uncompressed) - r.pos)
			k := avail
			if k > n {
				k = n
			}
			r.pos += int(k)
			n -= k
			continue
		}
		if r.eof {
			return nil
		}

		// Nothing buffered: try to skip an entire block via seek.
		if r.seeker != nil && r.method != MethodNone {
			skipped, err := r.skipBlockViaSeek(n)
			if err != nil {
				if err == io.EOF {
					r.eof = true
					return nil
				}
				return r.setErr(err)
			}
			if skipped > 0 {
				n -= skipped
				continue
			}
		}

		// Fall back to loading and discarding the block the normal way.
		if err := r.loadBlock(); err != nil {
			if err == io.EOF {
				r.eof = true
				return nil
			}
			return r.setErr(err)
		}
	}
	return nil
}

// skipBlockViaSeek reads the 8-byte block header and, when the whole block
// falls inside the caller's remaining skip count, seeks forward by
// compr_size instead of decompressing. If the block must be partially
// consumed, or the seek would land past EOF, it backs off and lets the
// caller fall through to a real decode (so the final block is still
// delivered, never silently dropped). It returns the number of logical
// bytes skipped, 0 when the caller must decode the block instead.
func (r *Reader) skipBlockViaSeek(remaining int64) (skipped int64, err error) {
	var hdr [blockHeaderSize]byte
	if _, err := io.ReadFull(r.rd, hdr[:]); err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, flowerr.Wrap(err, flowerr.ShortRead, "block header read")
	}
	comprSize, uncomprSize := getBlockHeader(hdr[:])
	if comprSize == 0 {
		return 0, io.EOF // end-of-stream sentinel
	}
	if int64(uncomprSize) > remaining {
		// The skip ends inside this block; it has to be decoded.
		r.ungetHeader(hdr[:])
		return 0, nil
	}

	cur, err := r.seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, flowerr.Wrap(err, flowerr.IO, "seek tell")
	}
	end, err := r.seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, flowerr.Wrap(err, flowerr.IO, "seek end")
	}
	if cur+int64(comprSize) > end {
		// Would land past EOF: this is the final block. Rewind and decode
		// it for real instead of skipping.
		if _, err := r.seeker.Seek(cur, io.SeekStart); err != nil {
			return 0, flowerr.Wrap(err, flowerr.IO, "seek rewind")
		}
		r.ungetHeader(hdr[:])
		return 0, nil
	}

	if _, err := r.seeker.Seek(cur+int64(comprSize), io.SeekStart); err != nil {
		return 0, flowerr.Wrap(err, flowerr.IO, "seek forward")
	}
	return int64(uncomprSize), nil
}

// ungetHeader pushes a just-read block header back in front of the raw
// channel bytes by buffering it as the start of the next loadBlock call.
// Implemented via a small pending-header slot rather than reusing Unget
// (which operates on decoded bytes, not raw framing).
func (r *Reader) ungetHeader(hdr []byte) {
	r.pendingHeader = append([]byte(nil), hdr...)
}

// loadBlock reads and decodes the next block (compressed or raw) into
// r.uncompressed, resetting the read cursor. Returns io.EOF when the
// channel (or the end-of-stream sentinel) is exhausted.
func (r *Reader) loadBlock() error {
	if r.method == MethodNone {
		return r.loadRawBlock()
	}

	var hdr [blockHeaderSize]byte
	if r.pendingHeader != nil {
		copy(hdr[:], r.pendingHeader)
		r.pendingHeader = nil
	} else {
		n, err := io.ReadFull(r.rd, hdr[:])
		if err != nil {
			if err == io.EOF && n == 0 {
				return io.EOF
			}
			return flowerr.Wrap(err, flowerr.ShortRead, "block header read")
		}
	}

	comprSize, uncomprSize := getBlockHeader(hdr[:])
	if comprSize == 0 {
		return io.EOF // end-of-stream sentinel
	}

	compressed := make([]byte, comprSize)
	n, err := io.ReadFull(r.rd, compressed)
	if err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return flowerr.Newf(flowerr.ShortRead, "expected %d compressed bytes, got %d", comprSize, n)
		}
		return flowerr.Wrap(err, flowerr.IO, "compressed payload read")
	}

	out := make([]byte, int(uncomprSize)+overreadPad)
	got, err := r.codec.decompress(out, int(uncomprSize), compressed)
	if err != nil {
		return flowerr.Wrap(err, flowerr.BadCompression, "block decompress")
	}
	if got != int(uncomprSize) {
		return flowerr.Newf(flowerr.BadCompression, "decompressed %d bytes, header advertised %d", got, uncomprSize)
	}

	r.uncompressed = out[:uncomprSize]
	r.pos = 0
	return nil
}

// loadRawBlock reads up to blockSize raw bytes directly (method == none):
// no per-block header, so a short read is the legitimate final block
// rather than an error.
func (r *Reader) loadRawBlock() error {
	buf := make([]byte, r.blockSize)
	n, err := r.rd.Read(buf)
	if n > 0 {
		r.uncompressed = buf[:n]
		r.pos = 0
	}
	if err != nil {
		if err == io.EOF {
			if n == 0 {
				return io.EOF
			}
			return nil // final short block, delivered above
		}
		return flowerr.Wrap(err, flowerr.IO, "raw block read")
	}
	if n == 0 {
		return io.EOF
	}
	return nil
}
