package format

import (
	"bytes"
	"context"
	"testing"

	"github.com/colinkho/media-sub001/av"
	"github.com/colinkho/media-sub001/container/jpeg"
	"github.com/colinkho/media-sub001/internal/fixture"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefault(t *testing.T) *Registry {
	r, err := NewDefault(MP4)
	require.NoError(t, err)
	return r
}

func clip() []byte {
	return fixture.MP4(fixture.MP4Options{
		VideoSamples: fixture.NewVideoSamples(6, 3, 24),
		KeyInterval:  3,
		AudioSamples: [][]byte{{0x21, 0x01}, {0x21, 0x02}},
	})
}

func TestNames(t *testing.T) {
	r := newDefault(t)
	assert.Equal(t, []string{JPEG, MP4}, r.Names())

	r.Register("zz", 0, nil)
	r.Register("aa", 5, nil)
	assert.Equal(t, []string{JPEG, "zz", "aa", MP4}, r.Names())
}

func TestNewDefaultUnknownEmbedded(t *testing.T) {
	_, err := NewDefault("flv")
	assert.True(t, errors.Is(err, ErrNotRegistered), "%v", err)
}

func TestFactory(t *testing.T) {
	r := newDefault(t)
	f, err := r.Factory(JPEG)
	require.NoError(t, err)
	_, ok := f().(*jpeg.Extractor)
	assert.True(t, ok)

	_, err = r.Factory("ts")
	assert.True(t, errors.Is(err, ErrNotRegistered), "%v", err)
}

func TestDetect(t *testing.T) {
	r := newDefault(t)
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"mp4", clip(), MP4},
		{"jpeg", fixture.JPEG(fixture.JFIF(), fixture.ExifSegment()), JPEG},
		{"motion photo", fixture.MotionPhoto(clip(), 0), JPEG},
	}
	for _, tt := range tests {
		name, factory, err := r.Detect(bytes.NewReader(tt.data), int64(len(tt.data)))
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, name, tt.name)
		assert.NotNil(t, factory, tt.name)
	}

	// a jpeg without APP1 is not sniffed
	for _, data := range [][]byte{nil, []byte("GIF89a"), {0xff}, fixture.JPEG(fixture.JFIF())} {
		_, _, err := r.Detect(bytes.NewReader(data), int64(len(data)))
		assert.Equal(t, ErrUnknownFormat, err)
	}
}

func TestProbeMotionPhoto(t *testing.T) {
	at := assert.New(t)
	r := newDefault(t)
	video := clip()
	data := fixture.MotionPhoto(video, 250000)
	start := int64(len(data) - len(video))

	report, err := r.Probe(context.Background(), bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	at.Equal(JPEG, report.Format)
	at.EqualValues(len(data), report.Length)

	require.NotNil(t, report.MotionPhoto)
	at.Equal(jpeg.MotionPhotoMetadata{
		PhotoSize:                    start,
		PhotoPresentationTimestampUs: 250000,
		VideoStartPosition:           start,
		VideoSize:                    int64(len(video)),
	}, *report.MotionPhoto)

	require.Len(t, report.Tracks, 3)
	image, videoTrack, audio := report.Tracks[0], report.Tracks[1], report.Tracks[2]
	at.Equal(jpeg.ImageTrackID, image.ID)
	at.Equal("image", image.Type)
	at.Equal(av.MimeImageJPEG, image.Mime)
	at.Equal(0, image.Samples)
	at.Equal(av.TimeUnset, image.FirstTimeUs)

	at.Equal("video", videoTrack.Type)
	at.Equal(av.MimeVideoH264, videoTrack.Mime)
	at.Equal(6, videoTrack.Samples)
	at.Equal(2, videoTrack.KeyFrames)
	at.EqualValues(0, videoTrack.FirstTimeUs)
	at.EqualValues(5*fixture.VideoSampleDuration*1000000/fixture.VideoTimeScale, videoTrack.LastTimeUs)
	at.Equal("audio", audio.Type)
	at.Equal(2, audio.Samples)

	require.NotNil(t, report.SeekMap)
	at.True(report.SeekMap.Seekable)
	at.Greater(report.SeekMap.StartPosition, start)
	at.Less(report.SeekMap.StartPosition, int64(len(data)))
}

func TestProbeStillImage(t *testing.T) {
	at := assert.New(t)
	data := fixture.JPEG(fixture.JFIF(), fixture.ExifSegment())
	report, err := newDefault(t).Probe(context.Background(), bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	at.Equal(JPEG, report.Format)
	at.Nil(report.MotionPhoto)
	require.Len(t, report.Tracks, 1)
	at.Equal(jpeg.ImageTrackID, report.Tracks[0].ID)
	require.NotNil(t, report.SeekMap)
	at.False(report.SeekMap.Seekable)
	at.EqualValues(0, report.SeekMap.StartPosition)
}

func TestProbeMP4(t *testing.T) {
	data := clip()
	report, err := newDefault(t).Probe(context.Background(), bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, MP4, report.Format)
	assert.Len(t, report.Tracks, 2)
	assert.Nil(t, report.MotionPhoto)
}

func TestProbeUnknown(t *testing.T) {
	data := []byte("not media at all")
	_, err := newDefault(t).Probe(context.Background(), bytes.NewReader(data), int64(len(data)))
	assert.Equal(t, ErrUnknownFormat, err)
}
