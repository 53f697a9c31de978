package mp4

import (
	"fmt"

	"github.com/colinkho/media-sub001/av"
	"github.com/colinkho/media-sub001/utils/pio"
	"github.com/nareix/joy4/format/mp4/mp4io"
	"github.com/pkg/errors"
)

var (
	// ErrMalformedBox means a box header or payload could not be parsed
	ErrMalformedBox = fmt.Errorf("malformed box")
	// ErrNoMovie means the stream ended without a movie box
	ErrNoMovie = fmt.Errorf("no movie box")
	// ErrMovieTooLarge means the movie box exceeds the size read into memory
	ErrMovieTooLarge = fmt.Errorf("movie box too large")
)

const (
	tagFtyp = mp4io.Tag(0x66747970)
	tagHvcC = mp4io.Tag(0x68766343)
	tagHvc1 = mp4io.Tag(0x68766331)
	tagHev1 = mp4io.Tag(0x68657631)
)

const (
	headerSize     = 8
	longHeaderSize = 16
	// maxMovieSize bounds the movie box held in memory
	maxMovieSize = 16 << 20
	// maxSniffSize bounds the ftyp payload read by sniff
	maxSniffSize = 4096
)

// brands a probed stream must carry as major or compatible brand
var compatibleBrands = map[string]bool{
	"isom": true,
	"iso2": true,
	"iso3": true,
	"iso4": true,
	"iso5": true,
	"iso6": true,
	"iso8": true,
	"avc1": true,
	"hvc1": true,
	"hev1": true,
	"mp41": true,
	"mp42": true,
	"3g2a": true,
	"3g2b": true,
	"3gr6": true,
	"3gs6": true,
	"3ge6": true,
	"3gg6": true,
	"3gp4": true,
	"3gp5": true,
	"3gp6": true,
	"M4V ": true,
	"M4A ": true,
	"M4VH": true,
	"M4VP": true,
	"f4v ": true,
	"kddi": true,
	"MSNV": true,
	"dby1": true,
	"isml": true,
	"piff": true,
	"qt  ": true,
}

// boxHeader is the size and type prefix of a box
type boxHeader struct {
	tag        mp4io.Tag
	size       int64
	headerSize int
}

func (h boxHeader) String() string {
	return fmt.Sprintf("%s(%d)", h.tag, h.size)
}

// payloadSize returns the size of the box after its header
func (h boxHeader) payloadSize() int64 {
	return h.size - int64(h.headerSize)
}

// parseBoxHeader decodes an 8 byte header, size 1 means a 64 bit size
// follows and size 0 means the box runs to the end of the stream
func parseBoxHeader(b []byte) boxHeader {
	return boxHeader{
		size:       int64(pio.U32BE(b)),
		tag:        mp4io.Tag(pio.U32BE(b[4:])),
		headerSize: headerSize,
	}
}

// readBoxHeader reads the next box header. ok is false at a clean end of stream.
func readBoxHeader(in av.Input, scratch []byte) (h boxHeader, ok bool, err error) {
	start := in.Position()
	if ok, err = in.ReadFull(scratch[:headerSize], true); !ok || err != nil {
		return h, ok, err
	}
	h = parseBoxHeader(scratch)
	switch h.size {
	case 1:
		if _, err = in.ReadFull(scratch[:headerSize], false); err != nil {
			return h, false, err
		}
		h.size = int64(pio.U64BE(scratch))
		h.headerSize = longHeaderSize
	case 0:
		length := in.Length()
		if length == av.LengthUnset {
			return h, false, errors.Wrapf(ErrMalformedBox, "%s at %d runs to an unknown end", h.tag, start)
		}
		h.size = length - start
	}
	if h.size < int64(h.headerSize) {
		return h, false, errors.Wrapf(ErrMalformedBox, "%s at %d has size %d", h.tag, start, h.size)
	}
	return h, true, nil
}

// sniff peeks the leading ftyp box and checks its brands
func sniff(in av.Input) (bool, error) {
	scratch := make([]byte, headerSize)
	if ok, err := in.Peek(scratch, true); !ok || err != nil {
		return false, err
	}
	h := parseBoxHeader(scratch)
	if h.tag != tagFtyp {
		return false, nil
	}
	if h.size == 1 {
		if ok, err := in.Peek(scratch, true); !ok || err != nil {
			return false, err
		}
		h.size = int64(pio.U64BE(scratch))
		h.headerSize = longHeaderSize
	}
	payload := h.payloadSize()
	// major brand, minor version and compatible brands
	if payload < 8 || payload > maxSniffSize {
		return false, nil
	}
	b := make([]byte, payload)
	if ok, err := in.Peek(b, true); !ok || err != nil {
		return false, err
	}
	if compatibleBrands[string(b[:4])] {
		return true, nil
	}
	for i := 8; i+4 <= len(b); i += 4 {
		if compatibleBrands[string(b[i:i+4])] {
			return true, nil
		}
	}
	return false, nil
}

// parseMovie parses a whole moov box, header included
func parseMovie(b []byte, offset int64) (movie *mp4io.Movie, err error) {
	movie = &mp4io.Movie{}
	if _, err = movie.Unmarshal(b, int(offset)); err != nil {
		return nil, errors.Wrapf(ErrMalformedBox, "moov at %d: %v", offset, err)
	}
	return movie, nil
}
