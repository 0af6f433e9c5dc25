// Package serial delivers newline-terminated lines from the sensor board.
// The real implementation opens a serial device with go.bug.st/serial.
// The fake implementation replays scripted lines for tests.
package serial

import (
	"bufio"
	"errors"
	"io"
	"sync/atomic"
)

// ErrClosed is returned by ReadLine after Close.
var ErrClosed = errors.New("serial: source closed")

// maxLine bounds a single line. Longer lines are line noise and are dropped.
const maxLine = 512

// Source delivers one line per call.
type Source interface {
	// ReadLine blocks until a full line is available and returns it without
	// the line terminator. It returns ErrClosed once Close has been called.
	ReadLine() (string, error)

	// Close releases the device and unblocks a pending ReadLine.
	Close() error
}

// ReaderSource reads lines from any io.ReadCloser: a serial port, a
// replay file, or stdin.
type ReaderSource struct {
	rc     io.ReadCloser
	r      *bufio.Reader
	closed atomic.Bool
}

// NewReaderSource wraps rc.
func NewReaderSource(rc io.ReadCloser) *ReaderSource {
	return &ReaderSource{
		rc: rc,
		r:  bufio.NewReaderSize(rc, maxLine),
	}
}

// ReadLine returns the next line with CR/LF stripped. A final line without
// a terminator is returned before io.EOF.
func (s *ReaderSource) ReadLine() (string, error) {
	discarding := false
	for {
		b, err := s.r.ReadSlice('\n')
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			discarding = true
			continue
		case err != nil:
			if s.closed.Load() {
				return "", ErrClosed
			}
			if errors.Is(err, io.EOF) && len(b) > 0 && !discarding {
				return trimEOL(b), nil
			}
			return "", err
		case discarding:
			// Tail of an overlong line.
			discarding = false
			continue
		}
		return trimEOL(b), nil
	}
}

// Close closes the underlying reader.
func (s *ReaderSource) Close() error {
	s.closed.Store(true)
	return s.rc.Close()
}

func trimEOL(b []byte) string {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return string(b)
}
