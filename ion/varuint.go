package ion

import (
	"encoding/binary"
	"io"
)

// ReadVarUInt reads a variable-length unsigned integer from a reader,
// returning the value and the number of bytes consumed.
func ReadVarUInt(r io.Reader) (uint64, int, error) {
	var result uint64
	var bytesRead int
	for {
		var b [1]byte
		n, err := r.Read(b[:])
		if err != nil {
			return 0, bytesRead, err
		}
		bytesRead += n
		result = (result << 7) | uint64(b[0]&0x7F)
		if b[0]&0x80 != 0 {
			return result, bytesRead, nil
		}
	}
}

// WriteVarUInt writes a variable-length unsigned integer to a writer,
// returning the number of bytes written.
func WriteVarUInt(w io.Writer, v uint64) (int, error) {
	if v == 0 {
		return w.Write([]byte{0x80})
	}

	var buf [10]byte
	n := 0
	for v > 0 {
		buf[n] = byte(v & 0x7F)
		v >>= 7
		n++
	}

	written := 0
	for i := n - 1; i >= 0; i-- {
		b := buf[i]
		if i == 0 {
			b |= 0x80
		}
		nw, err := w.Write([]byte{b})
		written += nw
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// readVarUIntBytes reads a VarUInt from the start of data without a Reader,
// returning the value and the number of bytes consumed. Used by prolog
// stripping, which needs to walk raw annotation headers byte by byte.
func readVarUIntBytes(data []byte) (uint64, int) {
	var result uint64
	for i, b := range data {
		result = (result << 7) | uint64(b&0x7F)
		if b&0x80 != 0 {
			return result, i + 1
		}
	}
	return result, len(data)
}

// ReadLittleEndianU16 reads a little-endian uint16.
func ReadLittleEndianU16(data []byte) uint16 { return binary.LittleEndian.Uint16(data) }

// ReadLittleEndianU32 reads a little-endian uint32.
func ReadLittleEndianU32(data []byte) uint32 { return binary.LittleEndian.Uint32(data) }

// ReadLittleEndianU64 reads a little-endian uint64.
func ReadLittleEndianU64(data []byte) uint64 { return binary.LittleEndian.Uint64(data) }

// WriteLittleEndianU16 writes a little-endian uint16.
func WriteLittleEndianU16(buf []byte, v uint16) { binary.LittleEndian.PutUint16(buf, v) }

// WriteLittleEndianU32 writes a little-endian uint32.
func WriteLittleEndianU32(buf []byte, v uint32) { binary.LittleEndian.PutUint32(buf, v) }

// WriteLittleEndianU64 writes a little-endian uint64.
func WriteLittleEndianU64(buf []byte, v uint64) { binary.LittleEndian.PutUint64(buf, v) }
