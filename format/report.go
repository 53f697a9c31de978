package format

import (
	"context"
	"io"
	"time"

	"github.com/colinkho/media-sub001/av"
	"github.com/colinkho/media-sub001/container/jpeg"
	"github.com/pkg/errors"
)

// TrackReport summarizes one track
type TrackReport struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	Mime        string `json:"mime"`
	Container   string `json:"container"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	SampleRate  int    `json:"sample_rate,omitempty"`
	Channels    int    `json:"channels,omitempty"`
	DurationUs  int64  `json:"duration_us"`
	Samples     int    `json:"samples"`
	KeyFrames   int    `json:"key_frames"`
	Bytes       int64  `json:"bytes"`
	FirstTimeUs int64  `json:"first_time_us"`
	LastTimeUs  int64  `json:"last_time_us"`
}

// SeekReport summarizes the seek map
type SeekReport struct {
	Seekable   bool  `json:"seekable"`
	DurationUs int64 `json:"duration_us"`
	// StartPosition is where a read from time 0 starts
	StartPosition int64 `json:"start_position"`
}

// Report is the result of probing a source
type Report struct {
	Format      string                    `json:"format"`
	Length      int64                     `json:"length"`
	Tracks      []TrackReport             `json:"tracks"`
	SeekMap     *SeekReport               `json:"seek_map,omitempty"`
	MotionPhoto *jpeg.MotionPhotoMetadata `json:"motion_photo,omitempty"`
	Elapsed     time.Duration             `json:"elapsed"`
}

// Probe detects the format of src and reads it to the end
func (r *Registry) Probe(ctx context.Context, src io.ReaderAt, length int64) (*Report, error) {
	started := time.Now()
	name, factory, err := r.Detect(src, length)
	if err != nil {
		return nil, err
	}

	rec := av.NewRecorder(false)
	if err := av.Drive(ctx, factory(), src, length, rec); err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}

	report := &Report{
		Format: name,
		Length: length,
		Tracks: []TrackReport{},
	}
	for _, t := range rec.Tracks() {
		report.Tracks = append(report.Tracks, trackReport(t))
		if report.MotionPhoto == nil && t.TrackFormat != nil {
			report.MotionPhoto = motionPhoto(t.TrackFormat)
		}
	}
	if m := rec.LastSeekMap(); m != nil {
		report.SeekMap = &SeekReport{
			Seekable:      m.Seekable(),
			DurationUs:    m.DurationUs(),
			StartPosition: m.SeekPoints(0).First.Position,
		}
	}
	report.Elapsed = time.Since(started)
	return report, nil
}

func trackReport(t *av.RecordedTrack) TrackReport {
	tr := TrackReport{
		ID:          t.ID,
		Type:        t.Type.String(),
		Samples:     len(t.Samples),
		Bytes:       t.Bytes,
		DurationUs:  av.TimeUnset,
		FirstTimeUs: av.TimeUnset,
		LastTimeUs:  av.TimeUnset,
	}
	if f := t.TrackFormat; f != nil {
		tr.Mime = f.SampleMime
		tr.Container = f.ContainerMime
		tr.Width = f.Width
		tr.Height = f.Height
		tr.SampleRate = f.SampleRate
		tr.Channels = f.Channels
		tr.DurationUs = f.DurationUs
	}
	for i, s := range t.Samples {
		if s.IsKeyFrame {
			tr.KeyFrames++
		}
		if i == 0 || s.TimeUs < tr.FirstTimeUs {
			tr.FirstTimeUs = s.TimeUs
		}
		if i == 0 || s.TimeUs > tr.LastTimeUs {
			tr.LastTimeUs = s.TimeUs
		}
	}
	return tr
}

func motionPhoto(f *av.Format) *jpeg.MotionPhotoMetadata {
	for _, m := range f.Metadata {
		if metadata, ok := m.(jpeg.MotionPhotoMetadata); ok {
			return &metadata
		}
	}
	return nil
}
