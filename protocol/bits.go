package protocol

import (
	"fmt"
	"io"
)

// BitWriter packs unsigned values into a byte slice, most significant bit
// first. The unused low bits of the last byte stay zero.
type BitWriter struct {
	buf []byte
	n   int
}

// NewBitWriter creates a writer sized for bitCap bits.
func NewBitWriter(bitCap int) *BitWriter {
	return &BitWriter{
		buf: make([]byte, 0, (bitCap+7)/8),
	}
}

// WriteBits appends the low width bits of v. Higher bits of v are ignored;
// range checks belong to the caller.
func (w *BitWriter) WriteBits(v uint64, width uint8) {
	for i := int(width) - 1; i >= 0; i-- {
		if w.n%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if (v>>uint(i))&1 == 1 {
			w.buf[len(w.buf)-1] |= 0x80 >> uint(w.n%8)
		}
		w.n++
	}
}

// Bytes returns the packed bytes. The slice is valid until the next write.
func (w *BitWriter) Bytes() []byte {
	return w.buf
}

// Len returns the number of bits written.
func (w *BitWriter) Len() int {
	return w.n
}

// Reset empties the writer and keeps its buffer.
func (w *BitWriter) Reset() {
	w.buf = w.buf[:0]
	w.n = 0
}

// BitReader reads unsigned values back out of a packed byte slice.
type BitReader struct {
	buf []byte
	pos int
}

func NewBitReader(buf []byte) *BitReader {
	return &BitReader{buf: buf}
}

// Remaining returns the number of unread bits, padding included.
func (r *BitReader) Remaining() int {
	return len(r.buf)*8 - r.pos
}

// Position returns the number of bits read so far.
func (r *BitReader) Position() int {
	return r.pos
}

// ReadBits reads width bits as an unsigned value.
func (r *BitReader) ReadBits(width uint8) (uint64, error) {
	if width > 64 {
		return 0, fmt.Errorf("protocol: cannot read %d bits into uint64", width)
	}
	if int(width) > r.Remaining() {
		return 0, io.ErrUnexpectedEOF
	}

	var v uint64
	for i := 0; i < int(width); i++ {
		bit := (r.buf[r.pos/8] >> (7 - uint(r.pos%8))) & 1
		v = v<<1 | uint64(bit)
		r.pos++
	}
	return v, nil
}
