package jpeg

import (
	"testing"

	"github.com/colinkho/media-sub001/av"
	"github.com/colinkho/media-sub001/internal/fixture"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirectory(t *testing.T) {
	at := assert.New(t)
	desc, err := ParseMotionPhotoDescription(fixture.DirectoryXMP(1234, 8, 500000))
	require.NoError(t, err)
	require.NotNil(t, desc)
	at.EqualValues(500000, desc.PhotoPresentationTimestampUs)
	at.Equal([]ContainerItem{
		{Mime: av.MimeImageJPEG, Semantic: SemanticPrimary, Length: 0, Padding: 8},
		{Mime: av.MimeVideoMP4, Semantic: SemanticMotionPhoto, Length: 1234, Padding: 0},
	}, desc.Items)
}

func TestParseMicroVideo(t *testing.T) {
	at := assert.New(t)
	desc, err := ParseMotionPhotoDescription(fixture.MicroVideoXMP(4096, -1))
	require.NoError(t, err)
	require.NotNil(t, desc)
	at.Equal(av.TimeUnset, desc.PhotoPresentationTimestampUs)
	at.Equal([]ContainerItem{
		{Mime: av.MimeImageJPEG, Semantic: SemanticPrimary},
		{Mime: av.MimeVideoMP4, Semantic: SemanticMotionPhoto, Length: 4096},
	}, desc.Items)
}

func TestParseCameraPrefix(t *testing.T) {
	xmp := `<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
<rdf:Description xmlns:Camera="http://ns.google.com/photos/1.0/camera/"
  Camera:MotionPhoto="1" Camera:MicroVideoOffset="77"/></rdf:RDF></x:xmpmeta>`
	desc, err := ParseMotionPhotoDescription(xmp)
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, av.TimeUnset, desc.PhotoPresentationTimestampUs)
	assert.EqualValues(t, 77, desc.Items[1].Length)
}

func TestParseNotMotionPhoto(t *testing.T) {
	tests := []struct {
		name string
		xmp  string
	}{
		{"flag zero", `<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
<rdf:Description xmlns:GCamera="http://ns.google.com/photos/1.0/camera/" GCamera:MicroVideo="0" GCamera:MicroVideoOffset="10"/>
</rdf:RDF></x:xmpmeta>`},
		{"no flag", `<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
<rdf:Description xmlns:GCamera="http://ns.google.com/photos/1.0/camera/" GCamera:MicroVideoOffset="10"/>
</rdf:RDF></x:xmpmeta>`},
		{"flag without video", `<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
<rdf:Description xmlns:GCamera="http://ns.google.com/photos/1.0/camera/" GCamera:MotionPhoto="1"/>
</rdf:RDF></x:xmpmeta>`},
		{"no xmpmeta", `<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
<rdf:Description xmlns:GCamera="http://ns.google.com/photos/1.0/camera/" GCamera:MicroVideo="1" GCamera:MicroVideoOffset="10"/>
</rdf:RDF>`},
		{"empty", ""},
	}
	for _, tt := range tests {
		desc, err := ParseMotionPhotoDescription(tt.xmp)
		assert.NoError(t, err, tt.name)
		assert.Nil(t, desc, tt.name)
	}
}

func TestParseInvalidXmp(t *testing.T) {
	_, err := ParseMotionPhotoDescription(`<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:Description GCamera:MotionPhoto="1`)
	assert.True(t, errors.Is(err, ErrInvalidXmp), "%v", err)
}
