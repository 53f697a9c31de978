package av

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

const (
	peekMinFreeCapacity = 64 * 1024
	skipBufferSize      = 4096
)

var (
	// ErrNegativeLength means a negative byte count was requested
	ErrNegativeLength = fmt.Errorf("negative length")
	// ErrTruncated means the stream ended before the structure being read
	ErrTruncated = fmt.Errorf("stream truncated")
)

type truncatedError struct {
	err error
}

func (e *truncatedError) Error() string {
	return e.err.Error()
}

func (e *truncatedError) Unwrap() error {
	return e.err
}

func (e *truncatedError) Is(target error) bool {
	return target == ErrTruncated
}

// Truncated marks err as a premature end of stream, err stays reachable
// with errors.Is
func Truncated(err error) error {
	if err == nil {
		return nil
	}
	return &truncatedError{err: err}
}

// IsTruncated returns if err reports a premature end of stream
func IsTruncated(err error) bool {
	return errors.Is(err, ErrTruncated) || errors.Is(err, io.ErrUnexpectedEOF)
}

// DefaultInput is an Input reading sequentially from an io.Reader.
// Peeked bytes are kept in one buffer shared by the read and peek cursors:
// peekBuf[0] is the byte at position and peekPos is the peek cursor within it.
type DefaultInput struct {
	r        io.Reader
	position int64
	length   int64

	peekBuf []byte
	peekPos int
	skipBuf []byte
}

// NewInput returns a DefaultInput whose first byte is at position
func NewInput(r io.Reader, position, length int64) *DefaultInput {
	return &DefaultInput{
		r:        r,
		position: position,
		length:   length,
	}
}

// Read reads up to len(p) bytes, serving peeked bytes first
func (in *DefaultInput) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := in.readFromPeek(p)
	if n == 0 {
		var err error
		n, err = in.r.Read(p)
		in.commit(n)
		if n == 0 && err != nil {
			return 0, err
		}
	}
	return n, nil
}

// ReadFull reads exactly len(p) bytes
func (in *DefaultInput) ReadFull(p []byte, allowEOF bool) (bool, error) {
	n := in.readFromPeek(p)
	for n < len(p) {
		m, err := in.r.Read(p[n:])
		in.commit(m)
		n += m
		if err != nil && n < len(p) {
			return in.endOfInput(n == 0 && allowEOF, err)
		}
	}
	return true, nil
}

// Skip skips up to n bytes
func (in *DefaultInput) Skip(n int) (int, error) {
	if n < 0 {
		return 0, ErrNegativeLength
	}
	skipped := in.skipFromPeek(n)
	if skipped > 0 || n == 0 {
		return skipped, nil
	}
	buf := in.skipBuffer(n)
	m, err := in.r.Read(buf)
	in.commit(m)
	if m == 0 && err != nil {
		return 0, err
	}
	return m, nil
}

// SkipFull skips exactly n bytes
func (in *DefaultInput) SkipFull(n int, allowEOF bool) (bool, error) {
	if n < 0 {
		return false, ErrNegativeLength
	}
	skipped := in.skipFromPeek(n)
	for skipped < n {
		buf := in.skipBuffer(n - skipped)
		m, err := in.r.Read(buf)
		in.commit(m)
		skipped += m
		if err != nil && skipped < n {
			return in.endOfInput(skipped == 0 && allowEOF, err)
		}
	}
	return true, nil
}

// Peek copies len(p) bytes at the peek position and advances it
func (in *DefaultInput) Peek(p []byte, allowEOF bool) (bool, error) {
	ok, err := in.AdvancePeek(len(p), allowEOF)
	if !ok || err != nil {
		return ok, err
	}
	copy(p, in.peekBuf[in.peekPos-len(p):in.peekPos])
	return true, nil
}

// AdvancePeek moves the peek position n bytes forward, buffering as needed
func (in *DefaultInput) AdvancePeek(n int, allowEOF bool) (bool, error) {
	if n < 0 {
		return false, ErrNegativeLength
	}
	want := in.peekPos + n
	if want > cap(in.peekBuf) {
		grown := make([]byte, len(in.peekBuf), want+peekMinFreeCapacity)
		copy(grown, in.peekBuf)
		in.peekBuf = grown
	}
	for len(in.peekBuf) < want {
		m, err := in.r.Read(in.peekBuf[len(in.peekBuf):want])
		in.peekBuf = in.peekBuf[:len(in.peekBuf)+m]
		if err != nil && len(in.peekBuf) < want {
			// nothing new beyond the peek position means a clean end of stream
			clean := allowEOF && len(in.peekBuf) <= in.peekPos
			return in.endOfInput(clean, err)
		}
	}
	in.peekPos = want
	return true, nil
}

// ResetPeek moves the peek position back to the read position
func (in *DefaultInput) ResetPeek() {
	in.peekPos = 0
}

// Position returns the read position
func (in *DefaultInput) Position() int64 {
	return in.position
}

// PeekPosition returns the peek position
func (in *DefaultInput) PeekPosition() int64 {
	return in.position + int64(in.peekPos)
}

// Length returns the stream length
func (in *DefaultInput) Length() int64 {
	return in.length
}

func (in *DefaultInput) readFromPeek(p []byte) int {
	n := copy(p, in.peekBuf)
	in.consumePeek(n)
	return n
}

func (in *DefaultInput) skipFromPeek(n int) int {
	if n > len(in.peekBuf) {
		n = len(in.peekBuf)
	}
	in.consumePeek(n)
	return n
}

func (in *DefaultInput) consumePeek(n int) {
	if n == 0 {
		return
	}
	in.peekBuf = in.peekBuf[:copy(in.peekBuf, in.peekBuf[n:])]
	in.peekPos -= n
	if in.peekPos < 0 {
		in.peekPos = 0
	}
	in.position += int64(n)
}

// commit accounts for bytes read directly from the reader
func (in *DefaultInput) commit(n int) {
	in.position += int64(n)
}

func (in *DefaultInput) skipBuffer(n int) []byte {
	if in.skipBuf == nil {
		in.skipBuf = make([]byte, skipBufferSize)
	}
	if n > len(in.skipBuf) {
		n = len(in.skipBuf)
	}
	return in.skipBuf[:n]
}

func (in *DefaultInput) endOfInput(clean bool, err error) (bool, error) {
	if err != io.EOF {
		return false, err
	}
	if clean {
		return false, nil
	}
	return false, io.ErrUnexpectedEOF
}
