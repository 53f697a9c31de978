package mp4

import (
	"sort"

	"github.com/colinkho/media-sub001/av"
	"github.com/colinkho/media-sub001/parser/h264"
	"github.com/colinkho/media-sub001/utils/pio"
	"github.com/nareix/joy4/format/mp4/mp4io"
	"github.com/pkg/errors"
)

const (
	// maxSampleCount bounds the samples of one track, a movie box of
	// maxMovieSize cannot list more sizes
	maxSampleCount = maxMovieSize / 4
	maxSampleSize  = 64 << 20
)

// sampleTable is the expanded stbl of a track, one entry per sample
type sampleTable struct {
	offsets  []int64
	sizes    []int
	timesUs  []int64
	keyFrame []bool
	// syncIndices lists the key frame sample indices in ascending order
	syncIndices []int
	maxSize     int
	durationUs  int64
}

func (t *sampleTable) count() int {
	return len(t.offsets)
}

// syncIndexBefore returns the last key frame at or before timeUs, or the first
// key frame when timeUs precedes all of them. It returns -1 without samples.
func (t *sampleTable) syncIndexBefore(timeUs int64) int {
	if len(t.syncIndices) == 0 {
		return -1
	}
	i := sort.Search(len(t.syncIndices), func(i int) bool {
		return t.timesUs[t.syncIndices[i]] > timeUs
	})
	if i == 0 {
		return t.syncIndices[0]
	}
	return t.syncIndices[i-1]
}

// syncIndexAfter returns the first key frame after timeUs, or -1
func (t *sampleTable) syncIndexAfter(timeUs int64) int {
	i := sort.Search(len(t.syncIndices), func(i int) bool {
		return t.timesUs[t.syncIndices[i]] > timeUs
	})
	if i == len(t.syncIndices) {
		return -1
	}
	return t.syncIndices[i]
}

func scaleToUs(v, timeScale int64) int64 {
	if timeScale <= 0 {
		return av.TimeUnset
	}
	return v * 1000000 / timeScale
}

// newSampleTable expands stts, ctts, stsc, stco, stsz and stss
func newSampleTable(stbl *mp4io.SampleTable, timeScale int64) (*sampleTable, error) {
	if stbl == nil || stbl.TimeToSample == nil || stbl.SampleToChunk == nil ||
		stbl.ChunkOffset == nil || stbl.SampleSize == nil {
		return nil, errors.Wrap(ErrMalformedBox, "incomplete sample table")
	}

	var total uint64
	for _, entry := range stbl.TimeToSample.Entries {
		total += uint64(entry.Count)
	}
	if total > maxSampleCount {
		return nil, errors.Wrapf(ErrMalformedBox, "stts of %d samples", total)
	}
	if stbl.SampleSize.SampleSize > maxSampleSize {
		return nil, errors.Wrapf(ErrMalformedBox, "stsz sample size %d", stbl.SampleSize.SampleSize)
	}

	decodeTimes := make([]int64, 0, total)
	var t int64
	for _, entry := range stbl.TimeToSample.Entries {
		for i := uint32(0); i < entry.Count; i++ {
			decodeTimes = append(decodeTimes, t)
			t += int64(entry.Duration)
		}
	}
	count := len(decodeTimes)

	sizes := make([]int, 0, count)
	if stbl.SampleSize.SampleSize != 0 {
		for i := 0; i < count; i++ {
			sizes = append(sizes, int(stbl.SampleSize.SampleSize))
		}
	} else {
		for i, size := range stbl.SampleSize.Entries {
			if size > maxSampleSize {
				return nil, errors.Wrapf(ErrMalformedBox, "stsz sample %d size %d", i, size)
			}
			sizes = append(sizes, int(size))
		}
	}

	offsets, err := chunkSampleOffsets(stbl.SampleToChunk.Entries, stbl.ChunkOffset.Entries, sizes)
	if err != nil {
		return nil, err
	}

	if len(sizes) < count {
		count = len(sizes)
	}
	if len(offsets) < count {
		count = len(offsets)
	}

	table := &sampleTable{
		offsets:    offsets[:count],
		sizes:      sizes[:count],
		timesUs:    make([]int64, count),
		keyFrame:   make([]bool, count),
		durationUs: scaleToUs(t, timeScale),
	}

	var compositionOffsets []int64
	if stbl.CompositionOffset != nil {
		for _, entry := range stbl.CompositionOffset.Entries {
			for i := uint32(0); i < entry.Count && len(compositionOffsets) < count; i++ {
				// version 1 boxes carry signed offsets
				compositionOffsets = append(compositionOffsets, int64(int32(entry.Offset)))
			}
		}
	}
	for i := 0; i < count; i++ {
		pts := decodeTimes[i]
		if i < len(compositionOffsets) {
			pts += compositionOffsets[i]
		}
		table.timesUs[i] = scaleToUs(pts, timeScale)
		if table.sizes[i] > table.maxSize {
			table.maxSize = table.sizes[i]
		}
	}

	if stbl.SyncSample == nil {
		for i := 0; i < count; i++ {
			table.keyFrame[i] = true
			table.syncIndices = append(table.syncIndices, i)
		}
	} else {
		for _, number := range stbl.SyncSample.Entries {
			i := int(number) - 1
			if i < 0 || i >= count || table.keyFrame[i] {
				continue
			}
			table.keyFrame[i] = true
			table.syncIndices = append(table.syncIndices, i)
		}
		sort.Ints(table.syncIndices)
	}
	return table, nil
}

// chunkSampleOffsets lays the samples out in their chunks
func chunkSampleOffsets(stsc []mp4io.SampleToChunkEntry, chunks []uint32, sizes []int) ([]int64, error) {
	if len(stsc) == 0 && len(chunks) > 0 {
		return nil, errors.Wrap(ErrMalformedBox, "empty stsc")
	}
	offsets := make([]int64, 0, len(sizes))
	entry := 0
	for chunk := range chunks {
		for entry+1 < len(stsc) && int(stsc[entry+1].FirstChunk) <= chunk+1 {
			entry++
		}
		offset := int64(chunks[chunk])
		for i := uint32(0); i < stsc[entry].SamplesPerChunk; i++ {
			n := len(offsets)
			if n >= len(sizes) {
				return offsets, nil
			}
			offsets = append(offsets, offset)
			offset += int64(sizes[n])
		}
	}
	return offsets, nil
}

// track is one demuxed track and its read cursor
type track struct {
	id        int
	kind      av.TrackType
	format    *av.Format
	table     *sampleTable
	output    av.TrackOutput
	avc       *h264.Parser
	nextIndex int
}

func (t *track) done() bool {
	return t.nextIndex >= t.table.count()
}

// newTrack builds a track from a trak box. It returns nil for tracks without
// a sample table.
func newTrack(trak *mp4io.Track, index int, movieDurationUs int64) (*track, error) {
	if trak.Media == nil || trak.Media.Header == nil || trak.Media.Info == nil ||
		trak.Media.Info.Sample == nil || trak.Media.Info.Sample.SampleDesc == nil {
		return nil, nil
	}
	id := index + 1
	if trak.Header != nil && trak.Header.TrackId > 0 {
		id = int(trak.Header.TrackId)
	}

	timeScale := int64(trak.Media.Header.TimeScale)
	stbl := trak.Media.Info.Sample
	t := &track{
		id: id,
		format: &av.Format{
			ID:            id,
			ContainerMime: av.MimeVideoMP4,
			DurationUs:    movieDurationUs,
		},
	}

	desc := stbl.SampleDesc
	switch {
	case desc.AVC1Desc != nil:
		t.kind = av.TrackVideo
		t.format.SampleMime = av.MimeVideoH264
		t.format.Width = int(desc.AVC1Desc.Width)
		t.format.Height = int(desc.AVC1Desc.Height)
		if desc.AVC1Desc.Conf != nil {
			t.avc = h264.NewParser()
			if err := t.avc.ParseDecoderConfig(desc.AVC1Desc.Conf.Data); err != nil {
				return nil, errors.Wrapf(err, "track %d avcC", id)
			}
			t.format.InitData = t.avc.InitData()
		}
	case desc.MP4ADesc != nil:
		t.kind = av.TrackAudio
		t.format.SampleMime = av.MimeAudioAAC
		t.format.Channels = int(desc.MP4ADesc.NumberOfChannels)
		t.format.SampleRate = int(desc.MP4ADesc.SampleRate)
		if desc.MP4ADesc.Conf != nil && len(desc.MP4ADesc.Conf.DecConfig) > 0 {
			t.format.InitData = [][]byte{desc.MP4ADesc.Conf.DecConfig}
		}
	case hevcDescription(desc.Unknowns, t.format):
		t.kind = av.TrackVideo
	default:
		// e.g. the motion data track of camera clips, samples pass through
		t.kind = av.TrackMetadata
		t.format.SampleMime = av.MimeUnknown
	}

	table, err := newSampleTable(stbl, timeScale)
	if err != nil {
		return nil, errors.Wrapf(err, "track %d", id)
	}
	t.table = table
	if t.format.DurationUs == av.TimeUnset || t.format.DurationUs <= 0 {
		t.format.DurationUs = table.durationUs
	}
	return t, nil
}

// hevcDescription fills format from an hvc1 or hev1 sample entry.
// The visual sample entry is 78 bytes before its child boxes.
func hevcDescription(entries []mp4io.Atom, format *av.Format) bool {
	const childrenStart = headerSize + 78
	for _, atom := range entries {
		dummy, ok := atom.(*mp4io.Dummy)
		if !ok || (dummy.Tag() != tagHvc1 && dummy.Tag() != tagHev1) {
			continue
		}
		b := dummy.Data
		if len(b) < childrenStart {
			return false
		}
		format.SampleMime = av.MimeVideoH265
		format.Width = int(pio.U16BE(b[headerSize+24:]))
		format.Height = int(pio.U16BE(b[headerSize+26:]))
		for n := childrenStart; n+headerSize <= len(b); {
			h := parseBoxHeader(b[n:])
			if h.size < headerSize || n+int(h.size) > len(b) {
				break
			}
			if h.tag == tagHvcC {
				format.InitData = [][]byte{b[n+headerSize : n+int(h.size)]}
				break
			}
			n += int(h.size)
		}
		return true
	}
	return false
}

// sampleData returns the payload to publish, converting AVCC to Annex B
func (t *track) sampleData(b []byte) ([]byte, error) {
	if t.avc == nil {
		return b, nil
	}
	data, err := t.avc.AnnexB(b)
	if err != nil {
		return nil, errors.Wrapf(err, "track %d sample %d", t.id, t.nextIndex)
	}
	return data, nil
}
