// Package mp4 demuxes progressive MP4 files whose movie box fits in memory.
package mp4

import (
	"io"

	"github.com/colinkho/media-sub001/av"
	"github.com/colinkho/media-sub001/utils/pio"
	"github.com/colinkho/media-sub001/utils/pool"
	"github.com/nareix/joy4/format/mp4/mp4io"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// reseekThreshold is the largest gap skipped by reading, farther targets are
// reached with ResultSeek
const reseekThreshold = 256 * 1024

type state int

const (
	stateReadingBoxHeader state = iota
	stateReadingMovie
	stateReadingSample
	stateEnded
)

// Extractor is an av.Extractor for MP4. Samples are read in file order.
type Extractor struct {
	log     *log.Entry
	output  av.Output
	pool    *pool.Pool
	scratch [longHeaderSize]byte

	state    state
	header   boxHeader
	boxStart int64
	tracks   []*track
}

// New returns an Extractor
func New() *Extractor {
	return &Extractor{
		log:  log.WithField("component", "mp4"),
		pool: pool.NewPool(1 << 20),
	}
}

// Probe checks the ftyp box
func (e *Extractor) Probe(in av.Input) (bool, error) {
	ok, err := sniff(in)
	if err == io.ErrUnexpectedEOF {
		return false, nil
	}
	return ok, err
}

// Init registers the output
func (e *Extractor) Init(out av.Output) {
	e.output = out
}

// Read reads one box header, the movie box or one sample
func (e *Extractor) Read(in av.Input, seek *av.PositionHolder) (av.Result, error) {
	switch e.state {
	case stateReadingBoxHeader:
		return e.readBoxHeader(in, seek)
	case stateReadingMovie:
		if err := e.readMovie(in); err != nil {
			return av.ResultContinue, err
		}
		e.state = stateReadingSample
	case stateReadingSample:
		return e.readSample(in, seek)
	case stateEnded:
		return av.ResultEndOfInput, nil
	}
	return av.ResultContinue, nil
}

func (e *Extractor) readBoxHeader(in av.Input, seek *av.PositionHolder) (av.Result, error) {
	start := in.Position()
	h, ok, err := readBoxHeader(in, e.scratch[:])
	if err != nil {
		return av.ResultContinue, errors.Wrapf(err, "box header at %d", start)
	}
	if !ok {
		return av.ResultContinue, av.Truncated(errors.Wrapf(ErrNoMovie, "stream ended at %d", start))
	}
	e.log.Debugf("box %s at %d", h, start)

	if h.tag == mp4io.MOOV {
		if h.payloadSize()+headerSize > maxMovieSize {
			return av.ResultContinue, errors.Wrapf(ErrMovieTooLarge, "moov of %d bytes", h.size)
		}
		e.header = h
		e.boxStart = start
		e.state = stateReadingMovie
		return av.ResultContinue, nil
	}

	payload := h.payloadSize()
	if payload > reseekThreshold {
		seek.Position = start + h.size
		return av.ResultSeek, nil
	}
	if _, err := in.SkipFull(int(payload), false); err != nil {
		return av.ResultContinue, errors.Wrapf(err, "skip %s at %d", h, start)
	}
	return av.ResultContinue, nil
}

func (e *Extractor) readMovie(in av.Input) error {
	payload := e.header.payloadSize()
	// the movie is parsed with a short header whatever was on the wire
	b := make([]byte, headerSize+payload)
	pio.PutU32BE(b, uint32(len(b)))
	pio.PutU32BE(b[4:], uint32(mp4io.MOOV))
	if _, err := in.ReadFull(b[headerSize:], false); err != nil {
		return errors.Wrapf(err, "read moov at %d", e.boxStart)
	}
	movie, err := parseMovie(b, e.boxStart)
	if err != nil {
		return err
	}
	return e.buildTracks(movie)
}

func (e *Extractor) buildTracks(movie *mp4io.Movie) error {
	durationUs := av.TimeUnset
	if movie.Header != nil && movie.Header.TimeScale > 0 {
		durationUs = scaleToUs(int64(movie.Header.Duration), int64(movie.Header.TimeScale))
	}

	e.tracks = e.tracks[:0]
	var longest int64 = av.TimeUnset
	for i, trak := range movie.Tracks {
		t, err := newTrack(trak, i, durationUs)
		if err != nil {
			return err
		}
		if t == nil {
			e.log.Debugf("track %d has no sample table", i)
			continue
		}
		t.output = e.output.Track(t.id, t.kind)
		t.output.Format(t.format)
		e.tracks = append(e.tracks, t)
		if t.table.durationUs > longest {
			longest = t.table.durationUs
		}
		e.log.Debugf("track %s with %d samples", t.format, t.table.count())
	}
	if durationUs == av.TimeUnset || durationUs <= 0 {
		durationUs = longest
	}

	e.output.EndTracks()
	e.output.SeekMap(newSeekMap(e.tracks, durationUs))
	return nil
}

// nextTrack returns the track whose next sample comes first in the file
func (e *Extractor) nextTrack() *track {
	var next *track
	for _, t := range e.tracks {
		if t.done() {
			continue
		}
		if next == nil || t.table.offsets[t.nextIndex] < next.table.offsets[next.nextIndex] {
			next = t
		}
	}
	return next
}

func (e *Extractor) readSample(in av.Input, seek *av.PositionHolder) (av.Result, error) {
	t := e.nextTrack()
	if t == nil {
		e.state = stateEnded
		return av.ResultEndOfInput, nil
	}

	i := t.nextIndex
	offset := t.table.offsets[i]
	position := in.Position()
	if offset < position || offset-position > reseekThreshold {
		seek.Position = offset
		return av.ResultSeek, nil
	}
	if _, err := in.SkipFull(int(offset-position), false); err != nil {
		return av.ResultContinue, errors.Wrapf(err, "skip to sample at %d", offset)
	}

	size := t.table.sizes[i]
	if length := in.Length(); length != av.LengthUnset && offset+int64(size) > length {
		return av.ResultContinue, errors.Wrapf(av.ErrTruncated, "track %d sample %d at %d+%d beyond %d",
			t.id, i, offset, size, length)
	}

	e.pool.Reset()
	b := e.pool.Get(size)
	if _, err := in.ReadFull(b, false); err != nil {
		return av.ResultContinue, errors.Wrapf(err, "read track %d sample %d", t.id, i)
	}
	data, err := t.sampleData(b)
	if err != nil {
		return av.ResultContinue, err
	}
	t.nextIndex++
	if err := t.output.WriteSample(&av.Sample{
		TrackID:    t.id,
		TimeUs:     t.table.timesUs[i],
		IsKeyFrame: t.table.keyFrame[i],
		Position:   offset,
		Data:       data,
	}); err != nil {
		return av.ResultContinue, errors.Wrapf(err, "write track %d sample %d", t.id, i)
	}
	return av.ResultContinue, nil
}

// Seek restarts from the first box when position is 0. Otherwise each track
// resumes from its key frame at or before timeUs.
func (e *Extractor) Seek(position, timeUs int64) {
	if position == 0 {
		e.state = stateReadingBoxHeader
		e.tracks = nil
		return
	}
	if len(e.tracks) == 0 {
		e.log.Debugf("seek to %d before the movie was read", position)
		return
	}
	for _, t := range e.tracks {
		i := t.indexAt(timeUs)
		if i < 0 {
			i = t.table.count()
		}
		t.nextIndex = i
	}
	e.state = stateReadingSample
}

// Release drops the parsed tracks
func (e *Extractor) Release() {
	e.tracks = nil
	e.pool.Reset()
}
