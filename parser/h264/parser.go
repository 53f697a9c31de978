package h264

import (
	"bytes"
	"fmt"
	"io"
)

const (
	// access_unit_delimiter_rbsp( )
	naluTypeAud byte = 9
)

const (
	naluBytesLen int = 4
	maxSpsPpsLen int = 2 * 1024
)

var (
	// ErrDecDataNil means dec buf is nil
	ErrDecDataNil = fmt.Errorf("dec buf is nil")
	// ErrSpsData means sps data error
	ErrSpsData = fmt.Errorf("sps data error")
	// ErrPpsHeader means pps header error
	ErrPpsHeader = fmt.Errorf("pps header error")
	// ErrPpsData means pps data error
	ErrPpsData = fmt.Errorf("pps data error")
	// ErrInvalidNaluLength means the nalu length size is not 1, 2 or 4
	ErrInvalidNaluLength = fmt.Errorf("invalid nalu length size")
	// ErrInvalidVideoData means invalid video data
	ErrInvalidVideoData = fmt.Errorf("invalid video data")
	// ErrNaluBodyLen means nalu body len error
	ErrNaluBodyLen = fmt.Errorf("nalu body len error")
)

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// Parser converts AVCC (length prefixed) h.264 samples to Annex B
type Parser struct {
	naluLen int
	sps     [][]byte
	pps     [][]byte
	out     *bytes.Buffer
}

type sequenceHeader struct {
	configVersion        byte //8bits
	avcProfileIndication byte //8bits
	profileCompatility   byte //8bits
	avcLevelIndication   byte //8bits
	reserved1            byte //6bits
	naluLen              byte //2bits
	reserved2            byte //3bits
	spsNum               byte //5bits
	ppsNum               byte //8bits
}

// NewParser returns a parser
func NewParser() *Parser {
	return &Parser{
		naluLen: naluBytesLen,
		out:     bytes.NewBuffer(make([]byte, 0, maxSpsPpsLen)),
	}
}

// ParseDecoderConfig parses an AVCDecoderConfigurationRecord (avcC payload)
func (parser *Parser) ParseDecoderConfig(src []byte) error {
	if len(src) < 7 {
		return ErrDecDataNil
	}

	var seq sequenceHeader
	seq.configVersion = src[0]
	seq.avcProfileIndication = src[1]
	seq.profileCompatility = src[2]
	seq.avcLevelIndication = src[3]
	seq.reserved1 = src[4] & 0xfc
	seq.naluLen = src[4]&0x03 + 1
	seq.reserved2 = src[5] >> 5
	if seq.naluLen == 3 {
		return ErrInvalidNaluLength
	}

	//get sps
	seq.spsNum = src[5] & 0x1f
	rest := src[6:]
	sps, rest, err := readParameterSets(rest, int(seq.spsNum), ErrSpsData)
	if err != nil {
		return err
	}

	//get pps
	if len(rest) < 1 {
		return ErrPpsHeader
	}
	seq.ppsNum = rest[0]
	pps, _, err := readParameterSets(rest[1:], int(seq.ppsNum), ErrPpsData)
	if err != nil {
		return err
	}

	parser.naluLen = int(seq.naluLen)
	parser.sps = sps
	parser.pps = pps
	return nil
}

func readParameterSets(src []byte, num int, errData error) ([][]byte, []byte, error) {
	var sets [][]byte
	for i := 0; i < num; i++ {
		if len(src) < 2 {
			return nil, nil, errData
		}
		size := int(src[0])<<8 | int(src[1])
		if size <= 0 || len(src[2:]) < size {
			return nil, nil, errData
		}
		sets = append(sets, src[2:2+size])
		src = src[2+size:]
	}
	return sets, src, nil
}

// InitData returns the parameter sets, each prefixed with a start code
func (parser *Parser) InitData() [][]byte {
	var data [][]byte
	for _, set := range append(append([][]byte{}, parser.sps...), parser.pps...) {
		b := make([]byte, 0, len(startCode)+len(set))
		b = append(b, startCode...)
		data = append(data, append(b, set...))
	}
	return data
}

// NaluLength returns the size of the nalu length field
func (parser *Parser) NaluLength() int {
	return parser.naluLen
}

func (parser *Parser) isNaluHeader(src []byte) bool {
	if len(src) < naluBytesLen {
		return false
	}
	return src[0] == 0x00 &&
		src[1] == 0x00 &&
		src[2] == 0x00 &&
		src[3] == 0x01
}

func (parser *Parser) naluSize(src []byte) (int, error) {
	if len(src) < parser.naluLen {
		return 0, fmt.Errorf("nalusizedata invalid")
	}
	size := 0
	for i := 0; i < parser.naluLen; i++ {
		size = size<<8 + int(src[i])
	}
	return size, nil
}

func (parser *Parser) getAnnexbH264(src []byte, w io.Writer) error {
	if len(src) < parser.naluLen {
		return ErrInvalidVideoData
	}

	index := 0
	for index < len(src) {
		nalLen, err := parser.naluSize(src[index:])
		if err != nil {
			return ErrNaluBodyLen
		}
		index += parser.naluLen
		if nalLen <= 0 || len(src[index:]) < nalLen {
			return ErrNaluBodyLen
		}
		if src[index]&0x1f != naluTypeAud {
			if _, err := w.Write(startCode); err != nil {
				return err
			}
			if _, err := w.Write(src[index : index+nalLen]); err != nil {
				return err
			}
		}
		index += nalLen
	}
	return nil
}

// Parse writes the sample b to w in Annex B form
func (parser *Parser) Parse(b []byte, w io.Writer) (err error) {
	// is annexb
	if parser.isNaluHeader(b) {
		_, err = w.Write(b)
	} else {
		err = parser.getAnnexbH264(b, w)
	}
	return
}

// AnnexB converts a length prefixed sample, the result is valid until the next call
func (parser *Parser) AnnexB(b []byte) ([]byte, error) {
	parser.out.Reset()
	if err := parser.Parse(b, parser.out); err != nil {
		return nil, err
	}
	return parser.out.Bytes(), nil
}
