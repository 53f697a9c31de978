package pio

import "bytes"

// U16BE converts big-endian byte slice to uint16
func U16BE(b []byte) (i uint16) {
	i = uint16(b[0])
	i <<= 8
	i |= uint16(b[1])
	return
}

// U32BE converts big-endian byte slice to uint32
func U32BE(b []byte) (i uint32) {
	i = uint32(U16BE(b[0:2]))
	i <<= 16
	i |= uint32(U16BE(b[2:4]))
	return
}

// U64BE converts big-endian byte slice to uint64
func U64BE(b []byte) (i uint64) {
	i = uint64(U32BE(b[0:4]))
	i <<= 32
	i |= uint64(U32BE(b[4:8]))
	return
}

// CString splits b at its first NUL byte.
// ok is false when b holds no NUL, in which case s is all of b.
func CString(b []byte) (s string, rest []byte, ok bool) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return string(b), nil, false
	}
	return string(b[:i]), b[i+1:], true
}
