package jpeg

import (
	"bytes"
	"fmt"

	"github.com/colinkho/media-sub001/av"
	"github.com/colinkho/media-sub001/utils/pio"
	"github.com/pkg/errors"
)

// Marker definitions
const (
	// MarkerSOI is the start of image marker
	MarkerSOI uint16 = 0xffd8
	// MarkerEOI is the end of image marker
	MarkerEOI uint16 = 0xffd9
	// MarkerSOS is the start of scan marker, entropy coded data follows
	MarkerSOS uint16 = 0xffda
	// MarkerAPP0 is the JFIF application segment
	MarkerAPP0 uint16 = 0xffe0
	// MarkerAPP1 is the Exif / XMP application segment
	MarkerAPP1 uint16 = 0xffe1
	// MarkerTEM is the standalone temporary marker
	MarkerTEM uint16 = 0xff01

	markerRST0 uint16 = 0xffd0
	markerFill byte   = 0xff
)

// XmpHeader prefixes the payload of an APP1 segment holding XMP
const XmpHeader = "http://ns.adobe.com/xap/1.0/"

var (
	// ErrMalformedContainer means the marker / length framing is broken
	ErrMalformedContainer = fmt.Errorf("malformed jpeg container")
)

// hasPayload returns if the marker is followed by a length and payload
func hasPayload(marker uint16) bool {
	if marker == MarkerTEM {
		return false
	}
	return marker < markerRST0 || marker > MarkerEOI
}

// sniff peeks SOI, skips an optional APP0 and expects APP1
func sniff(in av.Input) (bool, error) {
	scratch := make([]byte, 2)
	if ok, err := in.Peek(scratch, true); !ok || err != nil {
		return false, err
	}
	if pio.U16BE(scratch) != MarkerSOI {
		return false, nil
	}
	if ok, err := in.Peek(scratch, true); !ok || err != nil {
		return false, err
	}
	marker := pio.U16BE(scratch)
	if marker == MarkerAPP0 {
		if ok, err := in.Peek(scratch, true); !ok || err != nil {
			return false, err
		}
		length := int(pio.U16BE(scratch))
		if length < 2 {
			return false, nil
		}
		if ok, err := in.AdvancePeek(length-2, true); !ok || err != nil {
			return false, err
		}
		if ok, err := in.Peek(scratch, true); !ok || err != nil {
			return false, err
		}
		marker = pio.U16BE(scratch)
	}
	return marker == MarkerAPP1, nil
}

// readMarker reads the next marker, skipping fill bytes.
// ok is false when the stream ended cleanly before the marker.
func (e *Extractor) readMarker(in av.Input) (marker uint16, ok bool, err error) {
	b := e.scratch[:2]
	if ok, err = in.ReadFull(b, true); !ok || err != nil {
		return 0, ok, err
	}
	if b[0] != markerFill {
		return 0, false, errors.Wrapf(ErrMalformedContainer, "marker 0x%02x%02x at %d",
			b[0], b[1], in.Position()-2)
	}
	for b[1] == markerFill {
		if ok, err = in.ReadFull(b[1:2], true); !ok || err != nil {
			return 0, ok, err
		}
	}
	if b[1] == 0x00 {
		return 0, false, errors.Wrapf(ErrMalformedContainer, "stuffed byte as marker at %d", in.Position()-2)
	}
	return pio.U16BE(b), true, nil
}

// readSegmentLength reads the length field, which counts itself
func (e *Extractor) readSegmentLength(in av.Input) (int, error) {
	b := e.scratch[:2]
	if _, err := in.ReadFull(b, false); err != nil {
		return 0, err
	}
	length := int(pio.U16BE(b))
	if length < 2 {
		return 0, errors.Wrapf(ErrMalformedContainer, "segment 0x%04x length %d at %d",
			e.marker, length, in.Position()-2)
	}
	return length - 2, nil
}

// readSegment consumes the current segment payload and resolves the motion
// photo metadata from the first APP1 segment carrying XMP
func (e *Extractor) readSegment(in av.Input) error {
	if e.marker != MarkerAPP1 || e.metadata != nil {
		_, err := in.SkipFull(e.segmentLength, false)
		return err
	}

	e.pool.Reset()
	payload := e.pool.Get(e.segmentLength)
	if _, err := in.ReadFull(payload, false); err != nil {
		return err
	}
	if !bytes.HasPrefix(payload, []byte(XmpHeader)) {
		return nil
	}
	header, rest, ok := pio.CString(payload)
	if !ok || header != XmpHeader {
		return nil
	}
	xmp, _, _ := pio.CString(rest)
	e.metadata = e.resolveMetadata(xmp, in.Length())
	return nil
}

// resolveMetadata returns nil when the XMP does not describe an embedded
// video inside a stream of known length
func (e *Extractor) resolveMetadata(xmp string, length int64) *MotionPhotoMetadata {
	if length == av.LengthUnset {
		e.log.Debug("stream length unknown, motion photo video ignored")
		return nil
	}
	desc, err := ParseMotionPhotoDescription(xmp)
	if err != nil {
		e.log.Debugf("parse xmp: %v", err)
		return nil
	}
	if desc == nil {
		return nil
	}
	metadata := desc.Metadata(length)
	if metadata == nil {
		e.log.Debugf("motion photo description does not fit a stream of %d bytes", length)
		return nil
	}
	e.log.Debugf("motion photo metadata %s", metadata)
	return metadata
}
