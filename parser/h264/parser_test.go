package h264

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sps = []byte{0x67, 0x64, 0x00, 0x1f, 0xac}
	pps = []byte{0x68, 0xee, 0x3c, 0x80}
)

func decoderConfig(lengthSizeMinusOne byte) []byte {
	b := []byte{0x01, 0x64, 0x00, 0x1f, 0xfc | lengthSizeMinusOne, 0xe1, 0x00, byte(len(sps))}
	b = append(b, sps...)
	b = append(b, 0x01, 0x00, byte(len(pps)))
	return append(b, pps...)
}

func TestParseDecoderConfig(t *testing.T) {
	at := assert.New(t)
	parser := NewParser()
	require.NoError(t, parser.ParseDecoderConfig(decoderConfig(3)))
	at.Equal(4, parser.NaluLength())
	at.Equal([][]byte{
		append([]byte{0, 0, 0, 1}, sps...),
		append([]byte{0, 0, 0, 1}, pps...),
	}, parser.InitData())

	require.NoError(t, parser.ParseDecoderConfig(decoderConfig(1)))
	at.Equal(2, parser.NaluLength())
}

func TestParseDecoderConfigErrors(t *testing.T) {
	valid := decoderConfig(3)
	badSps := append([]byte(nil), valid...)
	badSps[7] = 0x40
	badPps := append([]byte(nil), valid...)
	badPps[len(badPps)-len(pps)-1] = 0x40

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short", valid[:5], ErrDecDataNil},
		{"three byte lengths", decoderConfig(2), ErrInvalidNaluLength},
		{"sps overflow", badSps, ErrSpsData},
		{"no pps count", valid[:8+len(sps)], ErrPpsHeader},
		{"pps overflow", badPps, ErrPpsData},
	}
	for _, tt := range tests {
		err := NewParser().ParseDecoderConfig(tt.data)
		assert.Equal(t, tt.want, err, tt.name)
	}
}

func TestAnnexB(t *testing.T) {
	at := assert.New(t)
	parser := NewParser()

	sample := []byte{
		0, 0, 0, 2, 0x09, 0xf0, // access unit delimiter
		0, 0, 0, 3, 0x65, 0x88, 0x84,
		0, 0, 0, 2, 0x06, 0x05,
	}
	out, err := parser.AnnexB(sample)
	require.NoError(t, err)
	at.Equal([]byte{0, 0, 0, 1, 0x65, 0x88, 0x84, 0, 0, 0, 1, 0x06, 0x05}, out)

	annexB := []byte{0, 0, 0, 1, 0x41, 0x9a}
	out, err = parser.AnnexB(annexB)
	require.NoError(t, err)
	at.Equal(annexB, out)

	_, err = parser.AnnexB([]byte{0, 0})
	at.Equal(ErrInvalidVideoData, err)
	_, err = parser.AnnexB([]byte{0, 0, 0, 9, 0x65})
	at.Equal(ErrNaluBodyLen, err)
	_, err = parser.AnnexB([]byte{0, 0, 0, 0, 0x65})
	at.Equal(ErrNaluBodyLen, err)
}

func TestAnnexBShortLengths(t *testing.T) {
	parser := NewParser()
	require.NoError(t, parser.ParseDecoderConfig(decoderConfig(1)))
	out, err := parser.AnnexB([]byte{0, 2, 0x41, 0x9a, 0, 1, 0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 1, 0x41, 0x9a, 0, 0, 0, 1, 0x01}, out)
}
