package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
)

// reader is a big-endian cursor that records the first error and turns
// every later read into a no-op.
type reader struct {
	buf []byte
	pos int
	err error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("truncated at offset %d (need %d bytes): %w", r.pos, n, io.ErrUnexpectedEOF)
		return false
	}
	return true
}

func (r *reader) u1() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *reader) u2() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u4() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	v := r.buf[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return v
}

func (r *reader) skip(n int) {
	if r.need(n) {
		r.pos += n
	}
}

// slice returns the bytes consumed since start
func (r *reader) slice(start int) []byte {
	if r.err != nil {
		return nil
	}
	return r.buf[start:r.pos:r.pos]
}

type writer struct {
	buf []byte
}

func (w *writer) u1(v uint8) { w.buf = append(w.buf, v) }
func (w *writer) u2(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }
func (w *writer) u4(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }

// count writes a u2 element count, rejecting values the format cannot hold
func (w *writer) count(n int, what string) error {
	if n > 0xFFFF {
		return fmt.Errorf("too many %s: %d", what, n)
	}
	w.u2(uint16(n))
	return nil
}
