package jpeg

import (
	"fmt"

	"github.com/colinkho/media-sub001/av"
)

// Semantic definitions of container items
const (
	// SemanticPrimary is the primary image item
	SemanticPrimary = "Primary"
	// SemanticMotionPhoto is the embedded video item
	SemanticMotionPhoto = "MotionPhoto"
)

// ContainerItem is one entry of the XMP container directory
type ContainerItem struct {
	Mime     string
	Semantic string
	Length   int64
	Padding  int64
}

// MotionPhotoDescription is what the XMP packet of a motion photo says
type MotionPhotoDescription struct {
	// PhotoPresentationTimestampUs is the time of the still in the video, or av.TimeUnset
	PhotoPresentationTimestampUs int64
	// Items lists the container items in file order, the first being the primary image
	Items []ContainerItem
}

// MotionPhotoMetadata locates the still image and the embedded video of a
// motion photo in stream coordinates.
type MotionPhotoMetadata struct {
	PhotoStartPosition           int64
	PhotoSize                    int64
	PhotoPresentationTimestampUs int64
	VideoStartPosition           int64
	VideoSize                    int64
}

// String returns the representation string
func (m MotionPhotoMetadata) String() string {
	return fmt.Sprintf("<photo: %d+%d, photoTimeUs: %d, video: %d+%d>",
		m.PhotoStartPosition, m.PhotoSize, m.PhotoPresentationTimestampUs,
		m.VideoStartPosition, m.VideoSize)
}

// Metadata resolves the description against a stream of the given length.
// Items are laid out back to back from the end of the stream, the primary
// image having its length omitted and being the only item whose padding
// counts. The video is the first video item after the photo. It returns nil
// when the length is unknown or no photo followed by a video fits the stream.
func (d *MotionPhotoDescription) Metadata(length int64) *MotionPhotoMetadata {
	if d == nil || len(d.Items) < 2 || length == av.LengthUnset || length <= 0 {
		return nil
	}

	photoStart, photoSize := int64(-1), int64(-1)
	videoStart, videoSize := int64(-1), int64(-1)
	containsVideo := false
	itemStart, itemEnd := length, length
	for i := len(d.Items) - 1; i >= 0; i-- {
		item := d.Items[i]
		containsVideo = containsVideo || item.Mime == av.MimeVideoMP4
		itemEnd = itemStart
		if i == 0 {
			itemStart = 0
			itemEnd -= item.Padding
		} else {
			itemStart -= item.Length
		}
		if itemStart < 0 || itemEnd < itemStart {
			return nil
		}
		if containsVideo && itemStart != itemEnd {
			videoStart = itemStart
			videoSize = itemEnd - itemStart
			containsVideo = false
		}
		if i == 0 {
			photoStart = itemStart
			photoSize = itemEnd
		}
	}

	if videoStart <= 0 || videoSize <= 0 || photoSize <= 0 {
		return nil
	}
	return &MotionPhotoMetadata{
		PhotoStartPosition:           photoStart,
		PhotoSize:                    photoSize,
		PhotoPresentationTimestampUs: d.PhotoPresentationTimestampUs,
		VideoStartPosition:           videoStart,
		VideoSize:                    videoSize,
	}
}
