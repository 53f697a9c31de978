package jpeg

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/colinkho/media-sub001/av"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidXmp means the XMP packet is not well formed
	ErrInvalidXmp = fmt.Errorf("invalid xmp packet")
)

// attribute local names, the Camera and GCamera prefixes are both accepted
var (
	motionPhotoAttributes = []string{
		"MotionPhoto",
		"MicroVideo",
	}
	presentationTimestampAttributes = []string{
		"MotionPhotoPresentationTimestampUs",
		"MicroVideoPresentationTimestampUs",
	}
	microVideoOffsetAttributes = []string{
		"MicroVideoOffset",
	}
)

// ParseMotionPhotoDescription extracts the motion photo description from an
// XMP packet. It returns nil, nil when the packet does not flag a motion photo.
func ParseMotionPhotoDescription(xmp string) (*MotionPhotoDescription, error) {
	dec := xml.NewDecoder(strings.NewReader(xmp))
	dec.Strict = false

	var (
		seenXmpMeta     bool
		isMotionPhoto   bool
		timestampUs     = av.TimeUnset
		offsetItems     []ContainerItem
		directoryItems  []ContainerItem
		inDirectory     bool
		directoryParsed bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(ErrInvalidXmp, err.Error())
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "xmpmeta":
				seenXmpMeta = true
			case "Description":
				if !seenXmpMeta {
					continue
				}
				if !motionPhotoFlag(t.Attr) {
					continue
				}
				isMotionPhoto = true
				if ts, ok := presentationTimestamp(t.Attr); ok {
					timestampUs = ts
				}
				if items := microVideoOffsetItems(t.Attr); items != nil {
					offsetItems = items
				}
			case "Directory":
				inDirectory = true
			case "Item":
				if inDirectory {
					directoryItems = append(directoryItems, containerItem(t.Attr))
				}
			}
		case xml.EndElement:
			if t.Name.Local == "Directory" && inDirectory {
				inDirectory = false
				directoryParsed = true
			}
		}
	}

	if !isMotionPhoto {
		return nil, nil
	}
	items := offsetItems
	if directoryParsed && len(directoryItems) > 0 {
		items = directoryItems
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &MotionPhotoDescription{
		PhotoPresentationTimestampUs: timestampUs,
		Items:                        items,
	}, nil
}

func attr(attrs []xml.Attr, names []string) (string, bool) {
	for _, a := range attrs {
		for _, name := range names {
			if a.Name.Local == name {
				return strings.TrimSpace(a.Value), true
			}
		}
	}
	return "", false
}

func motionPhotoFlag(attrs []xml.Attr) bool {
	v, ok := attr(attrs, motionPhotoAttributes)
	if !ok {
		return false
	}
	flag, err := strconv.Atoi(v)
	return err == nil && flag == 1
}

func presentationTimestamp(attrs []xml.Attr) (int64, bool) {
	v, ok := attr(attrs, presentationTimestampAttributes)
	if !ok {
		return 0, false
	}
	ts, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	// -1 means the still is not part of the video
	if ts == -1 {
		return av.TimeUnset, true
	}
	return ts, true
}

func microVideoOffsetItems(attrs []xml.Attr) []ContainerItem {
	v, ok := attr(attrs, microVideoOffsetAttributes)
	if !ok {
		return nil
	}
	offset, err := strconv.ParseInt(v, 10, 64)
	if err != nil || offset <= 0 {
		return nil
	}
	return []ContainerItem{
		{Mime: av.MimeImageJPEG, Semantic: SemanticPrimary},
		{Mime: av.MimeVideoMP4, Semantic: SemanticMotionPhoto, Length: offset},
	}
}

func containerItem(attrs []xml.Attr) ContainerItem {
	var item ContainerItem
	for _, a := range attrs {
		v := strings.TrimSpace(a.Value)
		switch a.Name.Local {
		case "Mime":
			item.Mime = v
		case "Semantic":
			item.Semantic = v
		case "Length":
			item.Length, _ = strconv.ParseInt(v, 10, 64)
		case "Padding":
			item.Padding, _ = strconv.ParseInt(v, 10, 64)
		}
	}
	return item
}
