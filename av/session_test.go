package av

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordExtractor reads "RC" followed by 4 byte records, one sample per
// record. A record starting with 0xFF asks for a seek to its second byte.
type recordExtractor struct {
	out      Output
	track    TrackOutput
	seeks    []int64
	released bool
	jumped   bool
}

func (e *recordExtractor) Probe(in Input) (bool, error) {
	magic := make([]byte, 2)
	ok, err := in.Peek(magic, true)
	if !ok || err != nil {
		return false, err
	}
	return string(magic) == "RC", nil
}

func (e *recordExtractor) Init(out Output) {
	e.out = out
	e.track = out.Track(1, TrackVideo)
	out.EndTracks()
	out.SeekMap(NewUnseekable(TimeUnset))
}

func (e *recordExtractor) Read(in Input, seek *PositionHolder) (Result, error) {
	if in.Position() == 0 {
		if _, err := in.SkipFull(2, false); err != nil {
			return ResultContinue, err
		}
	}
	record := make([]byte, 4)
	position := in.Position()
	ok, err := in.ReadFull(record, true)
	if err != nil {
		return ResultContinue, err
	}
	if !ok {
		return ResultEndOfInput, nil
	}
	if record[0] == 0xFF && !e.jumped {
		e.jumped = true
		seek.Position = int64(record[1])
		return ResultSeek, nil
	}
	err = e.track.WriteSample(&Sample{TrackID: 1, Position: position, Data: record})
	return ResultContinue, err
}

func (e *recordExtractor) Seek(position, timeUs int64) {
	e.seeks = append(e.seeks, position)
}

func (e *recordExtractor) Release() {
	e.released = true
}

func records(rs ...[]byte) []byte {
	data := []byte("RC")
	for _, r := range rs {
		data = append(data, r...)
	}
	return data
}

func TestDrive(t *testing.T) {
	at := assert.New(t)
	data := records([]byte{1, 1, 1, 1}, []byte{0xFF, 14, 0, 0}, []byte{2, 2, 2, 2}, []byte{3, 3, 3, 3})
	ex := &recordExtractor{}
	rec := NewRecorder(true)

	require.NoError(t, Drive(context.Background(), ex, bytes.NewReader(data), int64(len(data)), rec))
	at.True(ex.released)
	at.True(rec.TracksEnded())
	at.Equal(1, rec.SeekMapCount())

	tracks := rec.Tracks()
	require.Len(t, tracks, 1)
	// the seek skips the record at 10
	require.Len(t, tracks[0].Samples, 2)
	at.EqualValues(2, tracks[0].Samples[0].Position)
	at.EqualValues(14, tracks[0].Samples[1].Position)
	at.Equal([]byte{3, 3, 3, 3}, tracks[0].Samples[1].Data)
	at.EqualValues(8, tracks[0].Bytes)
}

func TestDriveNotProbed(t *testing.T) {
	ex := &recordExtractor{}
	data := []byte("XX1234")
	err := Drive(context.Background(), ex, bytes.NewReader(data), int64(len(data)), NewRecorder(false))
	assert.Equal(t, ErrNotProbed, err)
	assert.True(t, ex.released)
}

func TestDriveTruncated(t *testing.T) {
	data := records([]byte{1, 1, 1, 1}, []byte{2, 2})
	err := Drive(context.Background(), &recordExtractor{}, bytes.NewReader(data), LengthUnset, NewRecorder(false))
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	data := records([]byte{1, 1, 1, 1})
	s := NewSession(&recordExtractor{}, bytes.NewReader(data), int64(len(data)))
	s.Init(NewRecorder(false))
	err := s.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "%v", err)
	assert.Equal(t, 0, s.Steps())
}

func TestSessionSeekTo(t *testing.T) {
	at := assert.New(t)
	data := records([]byte{1, 1, 1, 1}, []byte{2, 2, 2, 2}, []byte{3, 3, 3, 3})
	ex := &recordExtractor{}
	s := NewSession(ex, bytes.NewReader(data), int64(len(data)))
	rec := NewRecorder(false)
	s.Init(rec)

	s.SeekTo(10, 0)
	at.Equal([]int64{10}, ex.seeks)
	at.EqualValues(10, s.Input().Position())

	result, position, err := s.Step()
	require.NoError(t, err)
	at.Equal(ResultContinue, result)
	at.EqualValues(14, position)
	at.EqualValues(10, rec.Tracks()[0].Samples[0].Position)
	// samples of the recorder drop payloads but count bytes
	at.Nil(rec.Tracks()[0].Samples[0].Data)
	at.EqualValues(4, rec.Tracks()[0].Bytes)
}

func TestRecorder(t *testing.T) {
	at := assert.New(t)
	rec := NewRecorder(false)
	video := rec.Track(1, TrackVideo)
	at.Equal(video, rec.Track(1, TrackAudio))
	rec.Track(2, TrackAudio)
	video.Format(&Format{ID: 1, SampleMime: MimeVideoH264})

	tracks := rec.Tracks()
	require.Len(t, tracks, 2)
	at.Equal(TrackVideo, tracks[0].Type)
	at.Equal(MimeVideoH264, tracks[0].TrackFormat.SampleMime)
	at.Equal(TrackAudio, tracks[1].Type)
	at.Nil(rec.LastSeekMap())
	at.False(rec.TracksEnded())

	rec.SeekMap(NewUnseekable(10))
	rec.SeekMap(NewUnseekable(20))
	rec.EndTracks()
	at.Equal(2, rec.SeekMapCount())
	at.EqualValues(20, rec.LastSeekMap().DurationUs())

	rec.Reset()
	at.Empty(rec.Tracks())
	at.False(rec.TracksEnded())
	at.Nil(rec.LastSeekMap())
	at.Equal(0, rec.SeekMapCount())
}

func TestStrings(t *testing.T) {
	at := assert.New(t)
	at.Equal("seek", ResultSeek.String())
	at.Equal("result(9)", Result(9).String())
	at.Equal("image", TrackImage.String())
	at.Equal("unknown", TrackType(42).String())
	at.Equal("[timeUs=1, position=2]", SeekPoint{TimeUs: 1, Position: 2}.String())
}
