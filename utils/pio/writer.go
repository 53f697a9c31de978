package pio

// PutU16BE put uint16 to big-endian byte slice
func PutU16BE(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

// PutU32BE put uint32 to big-endian byte slice
func PutU32BE(b []byte, v uint32) {
	PutU16BE(b[0:2], uint16(v>>16))
	PutU16BE(b[2:4], uint16(v))
}

// AppendU16BE appends v to b in big-endian order
func AppendU16BE(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

// AppendU32BE appends v to b in big-endian order
func AppendU32BE(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
