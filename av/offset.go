package av

import "fmt"

// OffsetInput presents the part of an Input starting at base as a stream
// starting at position 0. It holds no state besides base and is cheap to
// rebuild whenever the underlying Input changes.
type OffsetInput struct {
	Input
	base int64
}

// NewOffsetInput returns an OffsetInput over in starting at base.
// It panics if in is already positioned before base.
func NewOffsetInput(in Input, base int64) *OffsetInput {
	if base < 0 || in.Position() < base {
		panic(fmt.Sprintf("av: offset input base %d beyond position %d", base, in.Position()))
	}
	return &OffsetInput{
		Input: in,
		base:  base,
	}
}

// Base returns the offset of position 0 in the underlying input
func (in *OffsetInput) Base() int64 {
	return in.base
}

// Underlying returns the wrapped input
func (in *OffsetInput) Underlying() Input {
	return in.Input
}

// Position returns the read position relative to base
func (in *OffsetInput) Position() int64 {
	return in.Input.Position() - in.base
}

// PeekPosition returns the peek position relative to base
func (in *OffsetInput) PeekPosition() int64 {
	return in.Input.PeekPosition() - in.base
}

// Length returns the length of the region after base, or LengthUnset
func (in *OffsetInput) Length() int64 {
	length := in.Input.Length()
	if length == LengthUnset {
		return LengthUnset
	}
	return length - in.base
}

// OffsetOutput forwards to an Output, translating every seek position
// published by an extractor reading an OffsetInput back to the outer stream.
type OffsetOutput struct {
	Output
	base        int64
	tracksEnded bool
}

// NewOffsetOutput returns an OffsetOutput adding base to seek positions
func NewOffsetOutput(out Output, base int64) *OffsetOutput {
	return &OffsetOutput{
		Output: out,
		base:   base,
	}
}

// EndTracks records and forwards the end of track registration
func (out *OffsetOutput) EndTracks() {
	out.tracksEnded = true
	out.Output.EndTracks()
}

// TracksEnded returns if the wrapped extractor ended its tracks
func (out *OffsetOutput) TracksEnded() bool {
	return out.tracksEnded
}

// SeekMap publishes m with its positions shifted by base
func (out *OffsetOutput) SeekMap(m SeekMap) {
	out.Output.SeekMap(&offsetSeekMap{
		inner: m,
		base:  out.base,
	})
}

type offsetSeekMap struct {
	inner SeekMap
	base  int64
}

func (m *offsetSeekMap) Seekable() bool {
	return m.inner.Seekable()
}

func (m *offsetSeekMap) DurationUs() int64 {
	return m.inner.DurationUs()
}

func (m *offsetSeekMap) SeekPoints(timeUs int64) SeekPoints {
	points := m.inner.SeekPoints(timeUs)
	points.First.Position += m.base
	points.Second.Position += m.base
	return points
}
