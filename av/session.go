package av

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Session drives an Extractor over a random access source, serving
// ResultSeek by reopening the source at the requested position.
type Session struct {
	ex     Extractor
	src    io.ReaderAt
	length int64
	in     Input
	holder PositionHolder
	steps  int
}

// NewSession returns a Session positioned at the start of src.
// length may be LengthUnset.
func NewSession(ex Extractor, src io.ReaderAt, length int64) *Session {
	s := &Session{
		ex:     ex,
		src:    src,
		length: length,
	}
	s.open(0)
	return s
}

// OpenInput returns a DefaultInput reading src from position
func OpenInput(src io.ReaderAt, position, length int64) *DefaultInput {
	n := math.MaxInt64 - position
	if length != LengthUnset {
		n = length - position
	}
	return NewInput(io.NewSectionReader(src, position, n), position, length)
}

func (s *Session) open(position int64) {
	s.in = OpenInput(s.src, position, s.length)
}

// Input returns the current input
func (s *Session) Input() Input {
	return s.in
}

// Probe sniffs the source and rewinds the peek position
func (s *Session) Probe() (bool, error) {
	ok, err := s.ex.Probe(s.in)
	s.in.ResetPeek()
	if err == io.ErrUnexpectedEOF {
		return false, nil
	}
	return ok, err
}

// Init registers out with the extractor
func (s *Session) Init(out Output) {
	s.ex.Init(out)
}

// Step performs one Read. On ResultSeek the input is reopened at the
// target, which is also returned.
func (s *Session) Step() (Result, int64, error) {
	s.steps++
	result, err := s.ex.Read(s.in, &s.holder)
	if err != nil {
		return result, 0, err
	}
	if result == ResultSeek {
		log.Debugf("session seek to %d after %d steps", s.holder.Position, s.steps)
		s.open(s.holder.Position)
		return result, s.holder.Position, nil
	}
	return result, s.in.Position(), nil
}

// SeekTo seeks the extractor and reopens the input at position
func (s *Session) SeekTo(position, timeUs int64) {
	s.ex.Seek(position, timeUs)
	s.open(position)
}

// Run steps until end of input or until ctx is done
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, _, err := s.Step()
		if err != nil {
			return errors.Wrapf(err, "read at %d", s.in.Position())
		}
		if result == ResultEndOfInput {
			return nil
		}
	}
}

// Steps returns the number of Read calls made
func (s *Session) Steps() int {
	return s.steps
}

// Release releases the extractor
func (s *Session) Release() {
	s.ex.Release()
}

// ErrNotProbed means the extractor did not recognize the stream
var ErrNotProbed = fmt.Errorf("stream not recognized")

// Drive probes src with ex, then reads it to the end into out.
// The extractor is released on return.
func Drive(ctx context.Context, ex Extractor, src io.ReaderAt, length int64, out Output) error {
	s := NewSession(ex, src, length)
	defer s.Release()

	ok, err := s.Probe()
	if err != nil {
		return errors.Wrap(err, "probe")
	}
	if !ok {
		return ErrNotProbed
	}
	s.Init(out)
	return s.Run(ctx)
}
