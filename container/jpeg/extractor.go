// Package jpeg demuxes JPEG motion photos: the still image is exposed as an
// image track and the MP4 clip appended after the image data is handed to an
// embedded extractor that reads it as if it were a standalone file.
package jpeg

import (
	"io"

	"github.com/colinkho/media-sub001/av"
	"github.com/colinkho/media-sub001/container/mp4"
	"github.com/colinkho/media-sub001/utils/pool"
	"github.com/colinkho/media-sub001/utils/uid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ImageTrackID is the id of the still image track
const ImageTrackID = 1024

// State is the state of the Extractor
type State int

// State definitions
const (
	StateReadingMarker State = iota
	StateReadingSegmentLength
	StateReadingSegment
	StateSniffingEmbedded
	StateReadingEmbedded
	StateEnded
)

var stateNames = map[State]string{
	StateReadingMarker:        "reading_marker",
	StateReadingSegmentLength: "reading_segment_length",
	StateReadingSegment:       "reading_segment",
	StateSniffingEmbedded:     "sniffing_embedded",
	StateReadingEmbedded:      "reading_embedded",
	StateEnded:                "ended",
}

// String returns the representation string
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Extractor is an av.Extractor for JPEG motion photos.
// It is not safe for concurrent use.
type Extractor struct {
	log     *log.Entry
	output  av.Output
	newSub  av.ExtractorFactory
	pool    *pool.Pool
	scratch [2]byte

	state         State
	marker        uint16
	segmentLength int
	metadata      *MotionPhotoMetadata

	embedded       av.Extractor
	embeddedInput  *av.OffsetInput
	embeddedOutput *av.OffsetOutput
	embeddedEnded  bool
	lastInput      av.Input
}

// Option configures an Extractor
type Option func(*Extractor)

// WithEmbedded sets the factory of the extractor reading the embedded video
func WithEmbedded(factory av.ExtractorFactory) Option {
	return func(e *Extractor) {
		if factory != nil {
			e.newSub = factory
		}
	}
}

// WithLogger sets the log entry, a session field is added to it
func WithLogger(entry *log.Entry) Option {
	return func(e *Extractor) {
		if entry != nil {
			e.log = entry
		}
	}
}

// New returns an Extractor reading embedded videos as MP4 by default
func New(opts ...Option) *Extractor {
	e := &Extractor{
		log:    log.NewEntry(log.StandardLogger()),
		newSub: func() av.Extractor { return mp4.New() },
		pool:   pool.NewPool(0xffff),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithFields(log.Fields{
		"component": "jpeg",
		"session":   uid.NewID(),
	})
	return e
}

// Factory returns an av.ExtractorFactory building Extractors with opts
func Factory(opts ...Option) av.ExtractorFactory {
	return func() av.Extractor {
		return New(opts...)
	}
}

// State returns the current state
func (e *Extractor) State() State {
	return e.state
}

// Ended returns if the session reached its end. A finished embedded video
// leaves the state at StateReadingEmbedded so later seeks into it still work.
func (e *Extractor) Ended() bool {
	return e.state == StateEnded || e.embeddedEnded
}

// Metadata returns the resolved motion photo metadata, or nil
func (e *Extractor) Metadata() *MotionPhotoMetadata {
	return e.metadata
}

// Probe checks for SOI followed by an application segment, using peeks only
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

// Read performs one step: one marker, one length, one segment or one
// delegated read of the embedded extractor
func (e *Extractor) Read(in av.Input, seek *av.PositionHolder) (av.Result, error) {
	switch e.state {
	case StateReadingMarker:
		marker, ok, err := e.readMarker(in)
		if err != nil {
			return e.truncatedOr(err, "read marker")
		}
		if !ok {
			e.log.Debugf("stream ended at %d before start of scan", in.Position())
			e.endReading()
			return av.ResultContinue, nil
		}
		e.onMarker(marker)
	case StateReadingSegmentLength:
		length, err := e.readSegmentLength(in)
		if err != nil {
			return e.truncatedOr(err, "read segment length")
		}
		e.segmentLength = length
		e.setState(StateReadingSegment)
	case StateReadingSegment:
		if err := e.readSegment(in); err != nil {
			return e.truncatedOr(err, "read segment")
		}
		e.setState(StateReadingMarker)
	case StateSniffingEmbedded:
		start := e.metadata.VideoStartPosition
		if in.Position() != start {
			seek.Position = start
			return av.ResultSeek, nil
		}
		if err := e.sniffEmbedded(in); err != nil {
			return av.ResultContinue, err
		}
	case StateReadingEmbedded:
		return e.readEmbedded(in, seek)
	case StateEnded:
		return av.ResultEndOfInput, nil
	}
	return av.ResultContinue, nil
}

func (e *Extractor) onMarker(marker uint16) {
	e.marker = marker
	switch {
	case marker == MarkerSOS:
		if e.metadata != nil {
			e.setState(StateSniffingEmbedded)
		} else {
			e.endReadingWithImageTrack()
		}
	case hasPayload(marker):
		e.setState(StateReadingSegmentLength)
	}
}

func (e *Extractor) sniffEmbedded(in av.Input) error {
	start := e.metadata.VideoStartPosition
	scratch := e.scratch[:1]
	ok, err := in.Peek(scratch, true)
	if err != nil && err != io.ErrUnexpectedEOF {
		return errors.Wrap(err, "peek embedded video")
	}
	if !ok {
		e.log.Debugf("embedded video at %d is truncated", start)
		e.endReadingWithImageTrack()
		return nil
	}
	in.ResetPeek()

	if e.embedded == nil {
		e.embedded = e.newSub()
	}
	e.lastInput = in
	e.embeddedInput = av.NewOffsetInput(in, start)
	ok, err = e.embedded.Probe(e.embeddedInput)
	in.ResetPeek()
	if err != nil && err != io.ErrUnexpectedEOF {
		return errors.Wrap(err, "probe embedded video")
	}
	if !ok {
		e.log.Debugf("embedded video at %d failed to probe", start)
		e.endReadingWithImageTrack()
		return nil
	}

	e.outputImageTrack()
	e.embeddedOutput = av.NewOffsetOutput(e.output, start)
	e.embeddedEnded = false
	e.embedded.Init(e.embeddedOutput)
	e.setState(StateReadingEmbedded)
	return nil
}

func (e *Extractor) readEmbedded(in av.Input, seek *av.PositionHolder) (av.Result, error) {
	start := e.metadata.VideoStartPosition
	if e.embeddedInput == nil || in != e.lastInput {
		e.lastInput = in
		e.embeddedInput = av.NewOffsetInput(in, start)
	}
	result, err := e.embedded.Read(e.embeddedInput, seek)
	if av.IsTruncated(err) {
		e.log.Debugf("embedded video at %d truncated: %v", start, err)
		if e.embeddedOutput.TracksEnded() {
			e.setState(StateEnded)
		} else {
			e.endReading()
		}
		return av.ResultContinue, nil
	}
	if err != nil {
		return result, errors.Wrap(err, "read embedded video")
	}
	switch result {
	case av.ResultSeek:
		seek.Position += start
	case av.ResultEndOfInput:
		e.embeddedEnded = true
	}
	return result, nil
}

// truncatedOr ends the session when err is a premature end of stream and
// returns any other error
func (e *Extractor) truncatedOr(err error, what string) (av.Result, error) {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		e.log.Debugf("%s: stream truncated in state %s", what, e.state)
		e.endReading()
		return av.ResultContinue, nil
	}
	return av.ResultContinue, errors.Wrap(err, what)
}

func (e *Extractor) outputImageTrack() {
	format := &av.Format{
		ID:            ImageTrackID,
		ContainerMime: av.MimeImageJPEG,
		SampleMime:    av.MimeImageJPEG,
		DurationUs:    av.TimeUnset,
	}
	if e.metadata != nil {
		format.Metadata = append(format.Metadata, *e.metadata)
	}
	e.output.Track(ImageTrackID, av.TrackImage).Format(format)
}

func (e *Extractor) endReadingWithImageTrack() {
	e.outputImageTrack()
	e.endReading()
}

func (e *Extractor) endReading() {
	e.output.EndTracks()
	e.output.SeekMap(av.NewUnseekable(av.TimeUnset))
	e.setState(StateEnded)
}

func (e *Extractor) setState(s State) {
	if s != e.state {
		e.log.Debugf("state %s -> %s", e.state, s)
	}
	e.state = s
}

// Seek resets to the start of the stream when position is 0, and forwards
// to the embedded extractor while reading it. Other seeks are ignored.
func (e *Extractor) Seek(position, timeUs int64) {
	if position == 0 {
		e.setState(StateReadingMarker)
		e.marker = 0
		e.segmentLength = 0
		e.metadata = nil
		e.releaseEmbedded()
		return
	}
	if e.state == StateReadingEmbedded {
		e.embeddedEnded = false
		e.embedded.Seek(position, timeUs)
		return
	}
	e.log.Debugf("seek to %d ignored in state %s", position, e.state)
}

// Release releases the embedded extractor if one was created
func (e *Extractor) Release() {
	e.releaseEmbedded()
}

func (e *Extractor) releaseEmbedded() {
	if e.embedded != nil {
		e.embedded.Release()
	}
	e.embedded = nil
	e.embeddedInput = nil
	e.embeddedOutput = nil
	e.embeddedEnded = false
	e.lastInput = nil
}
