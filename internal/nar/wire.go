package nar

import (
	"encoding/binary"
	"io"
)

// writeU64 writes x as a little-endian 64-bit integer.
func writeU64(w io.Writer, x uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], x)
	_, err := w.Write(buf[:])
	return err
}

// pad writes the zero bytes needed to bring a stream that has just emitted
// a length-len field up to the next multiple of 8 bytes.
func pad(w io.Writer, length uint64) error {
	n := (8 - length%8) % 8
	if n == 0 {
		return nil
	}
	var zeros [8]byte
	_, err := w.Write(zeros[:n])
	return err
}

// str emits the length-prefixed, 8-byte-aligned "str" production: a u64le
// length, the raw bytes of x, then zero padding up to the next multiple of
// 8.
func str(w io.Writer, x string) error {
	b := []byte(x)
	if err := writeU64(w, uint64(len(b))); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	return pad(w, uint64(len(b)))
}
