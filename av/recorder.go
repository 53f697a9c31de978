package av

import "sync"

// RecordedTrack holds what an extractor emitted for one track
type RecordedTrack struct {
	ID          int
	Type        TrackType
	TrackFormat *Format
	Samples     []Sample
	Bytes       int64

	keepData bool
}

// Format records the format of the track
func (t *RecordedTrack) Format(f *Format) {
	t.TrackFormat = f
}

// WriteSample records the sample, dropping its payload unless data is kept
func (t *RecordedTrack) WriteSample(s *Sample) error {
	rec := *s
	if t.keepData {
		rec.Data = append([]byte(nil), s.Data...)
	} else {
		rec.Data = nil
	}
	t.Bytes += int64(len(s.Data))
	t.Samples = append(t.Samples, rec)
	return nil
}

// Recorder is an Output keeping every track, the end of tracks signal and
// the latest seek map. It is used by probing tools and tests.
type Recorder struct {
	lock        sync.Mutex
	keepData    bool
	tracks      []*RecordedTrack
	tracksEnded bool
	seekMap     SeekMap
	seekMaps    int
}

// NewRecorder returns a Recorder, keepData keeps sample payloads
func NewRecorder(keepData bool) *Recorder {
	return &Recorder{
		keepData: keepData,
	}
}

// Track registers a track or returns the one already registered with id
func (r *Recorder) Track(id int, t TrackType) TrackOutput {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, track := range r.tracks {
		if track.ID == id {
			return track
		}
	}
	track := &RecordedTrack{
		ID:       id,
		Type:     t,
		keepData: r.keepData,
	}
	r.tracks = append(r.tracks, track)
	return track
}

// EndTracks records the end of track registration
func (r *Recorder) EndTracks() {
	r.lock.Lock()
	r.tracksEnded = true
	r.lock.Unlock()
}

// SeekMap records the seek map
func (r *Recorder) SeekMap(m SeekMap) {
	r.lock.Lock()
	r.seekMap = m
	r.seekMaps++
	r.lock.Unlock()
}

// Tracks returns the tracks in registration order
func (r *Recorder) Tracks() []*RecordedTrack {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]*RecordedTrack(nil), r.tracks...)
}

// TracksEnded returns if EndTracks was called
func (r *Recorder) TracksEnded() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.tracksEnded
}

// LastSeekMap returns the latest seek map or nil
func (r *Recorder) LastSeekMap() SeekMap {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.seekMap
}

// SeekMapCount returns how many seek maps were published
func (r *Recorder) SeekMapCount() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.seekMaps
}

// Reset forgets everything recorded
func (r *Recorder) Reset() {
	r.lock.Lock()
	r.tracks = nil
	r.tracksEnded = false
	r.seekMap = nil
	r.seekMaps = 0
	r.lock.Unlock()
}
