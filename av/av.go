package av

import (
	"fmt"
	"io"
)

// Unset definitions
const (
	// TimeUnset denotes an unknown or unset time in microseconds
	TimeUnset int64 = -1 << 63
	// LengthUnset denotes an unknown stream length
	LengthUnset int64 = -1
)

// Result is the outcome of a single Extractor.Read step
type Result int

// Result definitions
const (
	// ResultContinue means the extractor should be called again with the same input
	ResultContinue Result = iota
	// ResultSeek means the caller must reposition the input to PositionHolder.Position
	ResultSeek
	// ResultEndOfInput means the extractor consumed everything it needs
	ResultEndOfInput
)

// String returns the representation string
func (r Result) String() string {
	switch r {
	case ResultContinue:
		return "continue"
	case ResultSeek:
		return "seek"
	case ResultEndOfInput:
		return "end_of_input"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// TrackType is the kind of media carried by a track
type TrackType int

// Track definitions
const (
	// TrackUnknown denotes an unknown track
	TrackUnknown TrackType = iota
	// TrackVideo denotes a video track
	TrackVideo
	// TrackAudio denotes an audio track
	TrackAudio
	// TrackImage denotes a still image track
	TrackImage
	// TrackMetadata denotes a timed metadata track
	TrackMetadata
)

// String returns the representation string
func (t TrackType) String() string {
	switch t {
	case TrackVideo:
		return "video"
	case TrackAudio:
		return "audio"
	case TrackImage:
		return "image"
	case TrackMetadata:
		return "metadata"
	}
	return "unknown"
}

// Mime definitions
const (
	MimeImageJPEG = "image/jpeg"
	MimeVideoMP4  = "video/mp4"
	MimeVideoH264 = "video/avc"
	MimeVideoH265 = "video/hevc"
	MimeAudioAAC  = "audio/mp4a-latm"
	MimeUnknown   = "application/octet-stream"
)

// Format describes the samples of a track
type Format struct {
	ID            int
	ContainerMime string
	SampleMime    string
	Width         int
	Height        int
	SampleRate    int
	Channels      int
	DurationUs    int64
	// InitData holds codec initialization data, e.g. Annex B SPS and PPS
	InitData [][]byte
	// Metadata carries container level entries, e.g. motion photo metadata
	Metadata []interface{}
}

// String returns the representation string
func (f Format) String() string {
	return fmt.Sprintf("<id: %d, container: %s, sample: %s, %dx%d, %dHz/%dch>",
		f.ID, f.ContainerMime, f.SampleMime, f.Width, f.Height, f.SampleRate, f.Channels)
}

// Sample is one access unit of a track
type Sample struct {
	TrackID    int
	TimeUs     int64
	IsKeyFrame bool
	// Position is the byte offset of the sample in the coordinates of its extractor
	Position int64
	Data     []byte
}

// SeekPoint maps a time to a byte position
type SeekPoint struct {
	TimeUs   int64
	Position int64
}

// String returns the representation string
func (p SeekPoint) String() string {
	return fmt.Sprintf("[timeUs=%d, position=%d]", p.TimeUs, p.Position)
}

// SeekPoints is the pair of points surrounding a requested time.
// Second equals First when the time maps to an exact point.
type SeekPoints struct {
	First  SeekPoint
	Second SeekPoint
}

// SeekMap maps times to positions of a stream
type SeekMap interface {
	// Seekable returns if positions other than the start can be reached
	Seekable() bool
	// DurationUs returns the duration, or TimeUnset
	DurationUs() int64
	// SeekPoints returns the points to seek to for timeUs
	SeekPoints(timeUs int64) SeekPoints
}

// Unseekable is a SeekMap that only supports seeking to its start position
type Unseekable struct {
	durationUs    int64
	startPosition int64
}

// NewUnseekable returns an Unseekable starting at position 0
func NewUnseekable(durationUs int64) *Unseekable {
	return NewUnseekableAt(durationUs, 0)
}

// NewUnseekableAt returns an Unseekable starting at startPosition
func NewUnseekableAt(durationUs, startPosition int64) *Unseekable {
	return &Unseekable{
		durationUs:    durationUs,
		startPosition: startPosition,
	}
}

// Seekable returns false
func (u *Unseekable) Seekable() bool {
	return false
}

// DurationUs returns the duration
func (u *Unseekable) DurationUs() int64 {
	return u.durationUs
}

// SeekPoints always returns the start position
func (u *Unseekable) SeekPoints(timeUs int64) SeekPoints {
	p := SeekPoint{TimeUs: 0, Position: u.startPosition}
	return SeekPoints{First: p, Second: p}
}

// PositionHolder receives the target of a ResultSeek
type PositionHolder struct {
	Position int64
}

// Input is a byte stream with a rewindable peek cursor.
// The peek position is never behind the read position.
type Input interface {
	io.Reader

	// ReadFull reads len(p) bytes. With allowEOF it returns false, nil when the
	// stream ended before any byte was read.
	ReadFull(p []byte, allowEOF bool) (bool, error)
	// Skip skips up to n bytes and returns the number skipped
	Skip(n int) (int, error)
	// SkipFull skips n bytes with the same end of stream rules as ReadFull
	SkipFull(n int, allowEOF bool) (bool, error)
	// Peek copies len(p) bytes from the peek position and advances it
	Peek(p []byte, allowEOF bool) (bool, error)
	// AdvancePeek moves the peek position n bytes forward
	AdvancePeek(n int, allowEOF bool) (bool, error)
	// ResetPeek moves the peek position back to the read position
	ResetPeek()
	// Position returns the read position
	Position() int64
	// PeekPosition returns the peek position
	PeekPosition() int64
	// Length returns the stream length or LengthUnset
	Length() int64
}

// TrackOutput receives the format and samples of one track
type TrackOutput interface {
	Format(f *Format)
	WriteSample(s *Sample) error
}

// Output receives everything an extractor produces
type Output interface {
	// Track registers or returns the track with the given id
	Track(id int, t TrackType) TrackOutput
	// EndTracks tells no more tracks will be registered
	EndTracks()
	// SeekMap publishes the seek map of the stream
	SeekMap(m SeekMap)
}

// Extractor demuxes a container from an Input
type Extractor interface {
	// Probe checks the format without consuming input
	Probe(in Input) (bool, error)
	// Init registers the output, called once before Read
	Init(out Output)
	// Read performs a bounded amount of work
	Read(in Input, seek *PositionHolder) (Result, error)
	// Seek resets the extractor for a read starting at position
	Seek(position, timeUs int64)
	// Release frees held resources
	Release()
}

// ExtractorFactory creates a fresh Extractor
type ExtractorFactory func() Extractor
