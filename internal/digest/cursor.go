package digest

import (
	"encoding/binary"
	"fmt"

	"snmpfs/internal/common"
)

// writer appends big-endian integers to a fixed buffer and refuses to write
// past its end.
type writer struct {
	buf []byte
	off int
}

func newWriter(buf []byte) *writer {
	return &writer{buf: buf}
}

func (w *writer) reserve(n int) ([]byte, error) {
	if n > len(w.buf)-w.off {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d of %d",
			common.ErrBufferTooSmall, n, w.off, len(w.buf))
	}
	b := w.buf[w.off : w.off+n]
	w.off += n
	return b, nil
}

func (w *writer) put8(v byte) error {
	b, err := w.reserve(1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}

func (w *writer) put16(v uint16) error {
	b, err := w.reserve(2)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(b, v)
	return nil
}

func (w *writer) put32(v uint32) error {
	b, err := w.reserve(4)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(b, v)
	return nil
}

// reader is the inverse of writer. Running out of input is a malformed
// token.
type reader struct {
	buf []byte
	off int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) take(n int) ([]byte, error) {
	if n > len(r.buf)-r.off {
		return nil, fmt.Errorf("%w: token truncated at offset %d", common.ErrInvalidArgument, r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) get8() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) get16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) get32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) restZero() bool {
	for _, b := range r.buf[r.off:] {
		if b != 0 {
			return false
		}
	}
	return true
}
