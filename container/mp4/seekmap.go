package mp4

import "github.com/colinkho/media-sub001/av"

// seekMap maps times to the key frames of the primary track, the first
// video track or else the first track
type seekMap struct {
	tracks     []*track
	primary    *track
	durationUs int64
}

func newSeekMap(tracks []*track, durationUs int64) *seekMap {
	m := &seekMap{
		tracks:     tracks,
		durationUs: durationUs,
	}
	for _, t := range tracks {
		if t.kind == av.TrackVideo {
			m.primary = t
			break
		}
	}
	if m.primary == nil && len(tracks) > 0 {
		m.primary = tracks[0]
	}
	return m
}

func (m *seekMap) Seekable() bool {
	return m.primary != nil && len(m.primary.table.syncIndices) > 0
}

func (m *seekMap) DurationUs() int64 {
	return m.durationUs
}

func (m *seekMap) SeekPoints(timeUs int64) av.SeekPoints {
	if !m.Seekable() {
		return av.SeekPoints{}
	}
	table := m.primary.table
	i := table.syncIndexBefore(timeUs)
	first := av.SeekPoint{
		TimeUs:   table.timesUs[i],
		Position: m.position(table.timesUs[i]),
	}
	if first.TimeUs >= timeUs {
		return av.SeekPoints{First: first, Second: first}
	}
	j := table.syncIndexAfter(timeUs)
	if j < 0 {
		return av.SeekPoints{First: first, Second: first}
	}
	second := av.SeekPoint{
		TimeUs:   table.timesUs[j],
		Position: m.position(table.timesUs[j]),
	}
	return av.SeekPoints{First: first, Second: second}
}

// position returns the smallest offset any track must read from to resume
// at timeUs
func (m *seekMap) position(timeUs int64) int64 {
	position := int64(-1)
	for _, t := range m.tracks {
		i := t.indexAt(timeUs)
		if i < 0 {
			continue
		}
		if position < 0 || t.table.offsets[i] < position {
			position = t.table.offsets[i]
		}
	}
	if position < 0 {
		return 0
	}
	return position
}

// indexAt returns the key frame a read resuming at timeUs starts with, or -1
// when the track has none
func (t *track) indexAt(timeUs int64) int {
	return t.table.syncIndexBefore(timeUs)
}
