package fixture

import (
	"fmt"

	"github.com/colinkho/media-sub001/utils/pio"
)

const xmpHeader = "http://ns.adobe.com/xap/1.0/\x00"

// DirectoryXMP returns a motion photo XMP packet with a container directory
// listing the primary image and a video of videoLength bytes
func DirectoryXMP(videoLength, primaryPadding, timestampUs int64) string {
	return fmt.Sprintf(`<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="Adobe XMP Core 5.1.0-jc003">
  <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
    <rdf:Description rdf:about=""
        xmlns:GCamera="http://ns.google.com/photos/1.0/camera/"
        xmlns:Container="http://ns.google.com/photos/1.0/container/"
        xmlns:Item="http://ns.google.com/photos/1.0/container/item/"
      GCamera:MotionPhoto="1"
      GCamera:MotionPhotoVersion="1"
      GCamera:MotionPhotoPresentationTimestampUs="%d">
      <Container:Directory>
        <rdf:Seq>
          <rdf:li rdf:parseType="Resource">
            <Container:Item
              Item:Mime="image/jpeg"
              Item:Semantic="Primary"
              Item:Length="0"
              Item:Padding="%d"/>
          </rdf:li>
          <rdf:li rdf:parseType="Resource">
            <Container:Item
              Item:Mime="video/mp4"
              Item:Semantic="MotionPhoto"
              Item:Length="%d"
              Item:Padding="0"/>
          </rdf:li>
        </rdf:Seq>
      </Container:Directory>
    </rdf:Description>
  </rdf:RDF>
</x:xmpmeta>`, timestampUs, primaryPadding, videoLength)
}

// MicroVideoXMP returns a legacy micro video XMP packet
func MicroVideoXMP(videoOffset, timestampUs int64) string {
	return fmt.Sprintf(`<x:xmpmeta xmlns:x="adobe:ns:meta/">
  <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
    <rdf:Description rdf:about=""
        xmlns:GCamera="http://ns.google.com/photos/1.0/camera/"
      GCamera:MicroVideo="1"
      GCamera:MicroVideoVersion="1"
      GCamera:MicroVideoOffset="%d"
      GCamera:MicroVideoPresentationTimestampUs="%d"/>
  </rdf:RDF>
</x:xmpmeta>`, videoOffset, timestampUs)
}

// Segment returns a marker segment, the length field counting itself
func Segment(marker uint16, payload []byte) []byte {
	b := pio.AppendU16BE(nil, marker)
	b = pio.AppendU16BE(b, uint16(len(payload)+2))
	return append(b, payload...)
}

// JFIF returns an APP0 segment
func JFIF() []byte {
	return Segment(0xffe0, []byte{'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00})
}

// XMPSegment returns an APP1 segment carrying xmp
func XMPSegment(xmp string) []byte {
	payload := append([]byte(xmpHeader), xmp...)
	return Segment(0xffe1, payload)
}

// ExifSegment returns an APP1 segment with an empty Exif header
func ExifSegment() []byte {
	return Segment(0xffe1, []byte{'E', 'x', 'i', 'f', 0x00, 0x00, 'M', 'M', 0x00, 0x2a, 0x00, 0x00, 0x00, 0x08})
}

// ScanData is the entropy coded data written after SOS
var ScanData = []byte{0x12, 0x34, 0xff, 0x00, 0x56, 0x78, 0x9a}

// JPEG returns a baseline looking image: SOI, the given segments, a
// quantization table, SOS, scan data and EOI
func JPEG(segments ...[]byte) []byte {
	b := []byte{0xff, 0xd8}
	for _, s := range segments {
		b = append(b, s...)
	}
	dqt := make([]byte, 65)
	for i := 1; i < len(dqt); i++ {
		dqt[i] = 1
	}
	b = append(b, Segment(0xffdb, dqt)...)
	b = append(b, Segment(0xffda, []byte{0x01, 0x01, 0x00, 0x00, 0x3f, 0x00})...)
	b = append(b, ScanData...)
	return append(b, 0xff, 0xd9)
}

// MotionPhoto returns a JPEG with a directory XMP followed by video
func MotionPhoto(video []byte, timestampUs int64) []byte {
	image := JPEG(JFIF(), XMPSegment(DirectoryXMP(int64(len(video)), 0, timestampUs)))
	return append(image, video...)
}
